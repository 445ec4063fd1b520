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
)

// PostSale records a crop sale:
//
//	Dr Cash               amount / Cr Crop Pool Income  amount
//	Dr Crop Pool Expenses cogs   / Cr Cash              cogs   (when cogs > 0)
//
// Both legs enter the shared pool: revenue raises it, cost of goods
// (harvest handling, bagging, transport paid at sale time) reduces it.
func PostSale(ctx context.Context, saleId string) (*models.Sale, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	db := config.GetDB()

	var sale *models.Sale
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireTenantPostingLock(tx, tenantId); err != nil {
			return err
		}
		defer ReleaseTenantPostingLock(tx, tenantId)

		s, err := lockDomainRow[models.Sale](tx.WithContext(ctx), tenantId, saleId)
		if err != nil {
			return err
		}
		if s.Status == models.DomainStatusPosted {
			sale = s
			return nil
		}
		if s.Status == models.DomainStatusReversed {
			return errors.New("reversed sales cannot be posted again")
		}

		cash, err := models.GetSystemAccount(tx.WithContext(ctx), tenantId, models.SystemAccountCash)
		if err != nil {
			return err
		}
		poolIncome, err := models.GetSystemAccount(tx.WithContext(ctx), tenantId, models.SystemAccountPoolIncome)
		if err != nil {
			return err
		}

		desc := "Sale " + s.SaleNumber
		if s.BuyerName != "" {
			desc += " to " + s.BuyerName
		}
		input := &PostingInput{
			SourceType:  models.SourceTypeSale,
			SourceId:    s.ID,
			CropCycleId: s.CropCycleId,
			PostingDate: s.SaleDate,
			Description: desc,
		}
		if err := input.AppendEntry(cash.ID, desc, s.Amount, decimal.Zero); err != nil {
			return err
		}
		if err := input.AppendEntry(poolIncome.ID, desc, decimal.Zero, s.Amount); err != nil {
			return err
		}

		shared := models.AllocationScopeShared
		input.Allocations = append(input.Allocations, AllocationInput{
			ProjectId: s.ProjectId,
			Type:      models.AllocationTypeSaleRevenue,
			Scope:     &shared,
			Amount:    s.Amount,
			Quantity:  s.Quantity,
			Unit:      s.Unit,
		})

		if s.CogsAmount.IsPositive() {
			poolExpense, err := models.GetSystemAccount(tx.WithContext(ctx), tenantId, models.SystemAccountPoolExpense)
			if err != nil {
				return err
			}
			cogsDesc := "Cost of goods " + s.SaleNumber
			if err := input.AppendEntry(poolExpense.ID, cogsDesc, s.CogsAmount, decimal.Zero); err != nil {
				return err
			}
			if err := input.AppendEntry(cash.ID, cogsDesc, decimal.Zero, s.CogsAmount); err != nil {
				return err
			}
			input.Allocations = append(input.Allocations, AllocationInput{
				ProjectId: s.ProjectId,
				Type:      models.AllocationTypeSaleCogs,
				Scope:     &shared,
				Amount:    s.CogsAmount,
			})
		}

		group, _, err := postGroup(tx, ctx, tenantId, input)
		if err != nil {
			return err
		}
		s.Status = models.DomainStatusPosted
		s.PostingGroupId = &group.ID
		if err := tx.Model(s).Select("Status", "PostingGroupId", "UpdatedAt").Updates(s).Error; err != nil {
			return err
		}
		sale = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// ReverseSale voids a posted sale via a reversal group.
func ReverseSale(ctx context.Context, saleId string, reason string) (*models.Sale, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if reason == "" {
		reason = ReversalReasonSaleVoidUpdate
	}
	db := config.GetDB()

	var sale *models.Sale
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireTenantPostingLock(tx, tenantId); err != nil {
			return err
		}
		defer ReleaseTenantPostingLock(tx, tenantId)

		s, err := lockDomainRow[models.Sale](tx.WithContext(ctx), tenantId, saleId)
		if err != nil {
			return err
		}
		if s.Status != models.DomainStatusPosted {
			return errors.New("only posted sales can be reversed")
		}

		reversal, err := reversePostingGroupTx(tx, ctx, tenantId, *s.PostingGroupId, s.SaleDate, reason)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		userName, _ := utils.GetUserNameFromContext(ctx)
		s.Status = models.DomainStatusReversed
		s.ReversalPostingGroupId = &reversal.ID
		s.ReversedAt = &now
		s.ReversedBy = userName
		if err := tx.Model(s).
			Select("Status", "ReversalPostingGroupId", "ReversedAt", "ReversedBy", "UpdatedAt").
			Updates(s).Error; err != nil {
			return err
		}
		sale = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}
