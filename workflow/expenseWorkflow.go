package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/models"
	"github.com/zaraisoft/farmbooks_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostExpense turns a draft expense into its posting group:
//
//	Dr Crop Pool Expenses / Cr Cash
//
// The allocation row carries the expense's scope: SHARED costs reduce the
// pool, HARI_ONLY costs become settlement deductions. Posting an already
// POSTED expense returns it unchanged.
func PostExpense(ctx context.Context, expenseId string) (*models.Expense, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	db := config.GetDB()

	var expense *models.Expense
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireTenantPostingLock(tx, tenantId); err != nil {
			return err
		}
		defer ReleaseTenantPostingLock(tx, tenantId)

		e, err := lockDomainRow[models.Expense](tx.WithContext(ctx), tenantId, expenseId)
		if err != nil {
			return err
		}
		if e.Status == models.DomainStatusPosted {
			expense = e
			return nil
		}
		if e.Status == models.DomainStatusReversed {
			return errors.New("reversed expenses cannot be posted again")
		}

		poolExpense, err := models.GetSystemAccount(tx.WithContext(ctx), tenantId, models.SystemAccountPoolExpense)
		if err != nil {
			return err
		}
		cash, err := models.GetSystemAccount(tx.WithContext(ctx), tenantId, models.SystemAccountCash)
		if err != nil {
			return err
		}

		desc := e.Notes
		if desc == "" {
			desc = "Expense " + e.ExpenseNumber
		}
		input := &PostingInput{
			SourceType:  models.SourceTypeExpense,
			SourceId:    e.ID,
			CropCycleId: e.CropCycleId,
			PostingDate: e.ExpenseDate,
			Description: desc,
		}
		if err := input.AppendEntry(poolExpense.ID, desc, e.Amount, decimal.Zero); err != nil {
			return err
		}
		if err := input.AppendEntry(cash.ID, desc, decimal.Zero, e.Amount); err != nil {
			return err
		}

		scope := e.Scope
		allocType := models.AllocationTypePoolShare
		if scope == models.AllocationScopeHariOnly {
			allocType = models.AllocationTypeHariOnly
		}
		alloc := AllocationInput{
			ProjectId: e.ProjectId,
			Type:      allocType,
			Scope:     &scope,
			Amount:    e.Amount,
		}
		if e.PartyId != nil {
			alloc.PartyId = *e.PartyId
		}
		input.Allocations = append(input.Allocations, alloc)

		group, _, err := postGroup(tx, ctx, tenantId, input)
		if err != nil {
			return err
		}
		e.Status = models.DomainStatusPosted
		e.PostingGroupId = &group.ID
		if err := tx.Model(e).Select("Status", "PostingGroupId", "UpdatedAt").Updates(e).Error; err != nil {
			return err
		}
		expense = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// ReverseExpense voids a posted expense via a reversal group and stamps the
// row REVERSED. The ledger keeps both groups forever.
func ReverseExpense(ctx context.Context, expenseId string, reason string) (*models.Expense, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if reason == "" {
		reason = ReversalReasonExpenseVoidUpdate
	}
	db := config.GetDB()

	var expense *models.Expense
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireTenantPostingLock(tx, tenantId); err != nil {
			return err
		}
		defer ReleaseTenantPostingLock(tx, tenantId)

		e, err := lockDomainRow[models.Expense](tx.WithContext(ctx), tenantId, expenseId)
		if err != nil {
			return err
		}
		if e.Status != models.DomainStatusPosted {
			return errors.New("only posted expenses can be reversed")
		}

		reversal, err := reversePostingGroupTx(tx, ctx, tenantId, *e.PostingGroupId, e.ExpenseDate, reason)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		userName, _ := utils.GetUserNameFromContext(ctx)
		e.Status = models.DomainStatusReversed
		e.ReversalPostingGroupId = &reversal.ID
		e.ReversedAt = &now
		e.ReversedBy = userName
		if err := tx.Model(e).
			Select("Status", "ReversalPostingGroupId", "ReversedAt", "ReversedBy", "UpdatedAt").
			Updates(e).Error; err != nil {
			return err
		}
		expense = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// lockDomainRow loads one tenant-scoped row FOR UPDATE so concurrent
// post/reverse calls on the same document serialize.
func lockDomainRow[T any](db *gorm.DB, tenantId string, id string) (*T, error) {
	var row T
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantId, id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
