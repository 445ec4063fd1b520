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

// PostMachineryService bills machine work. The counter-entry depends on who
// is billed:
//
//	SHARED / HARI_ONLY / LANDLORD_ONLY:
//	  Dr Crop Pool Expenses / Cr Machinery Services Income
//	  (internal recharge; the scope decides who bears it at settlement)
//	PARTY_ONLY:
//	  Dr Party Control / Cr Machinery Services Income
//	  (billed straight onto the party's running balance)
func PostMachineryService(ctx context.Context, serviceId string) (*models.MachineryService, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	db := config.GetDB()

	var service *models.MachineryService
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireTenantPostingLock(tx, tenantId); err != nil {
			return err
		}
		defer ReleaseTenantPostingLock(tx, tenantId)

		svc, err := lockDomainRow[models.MachineryService](tx.WithContext(ctx), tenantId, serviceId)
		if err != nil {
			return err
		}
		if svc.Status == models.DomainStatusPosted {
			service = svc
			return nil
		}
		if svc.Status == models.DomainStatusReversed {
			return errors.New("reversed machinery services cannot be posted again")
		}

		machineryIncome, err := models.GetSystemAccount(tx.WithContext(ctx), tenantId, models.SystemAccountMachineryIncome)
		if err != nil {
			return err
		}

		var debitAccountId string
		if svc.Scope == models.AllocationScopePartyOnly {
			if svc.PartyId == nil {
				return invalidInput("party is required for party-only machinery services")
			}
			party, err := loadParty(tx.WithContext(ctx), tenantId, *svc.PartyId)
			if err != nil {
				return err
			}
			control, err := models.GetOrCreatePartyControlAccount(tx.WithContext(ctx), tenantId, party)
			if err != nil {
				return err
			}
			debitAccountId = control.ID
		} else {
			poolExpense, err := models.GetSystemAccount(tx.WithContext(ctx), tenantId, models.SystemAccountPoolExpense)
			if err != nil {
				return err
			}
			debitAccountId = poolExpense.ID
		}

		desc := "Machinery service " + svc.ServiceNumber
		input := &PostingInput{
			SourceType:  models.SourceTypeMachineryService,
			SourceId:    svc.ID,
			CropCycleId: svc.CropCycleId,
			PostingDate: svc.ServiceDate,
			Description: desc,
		}
		if err := input.AppendEntry(debitAccountId, desc, svc.Amount, decimal.Zero); err != nil {
			return err
		}
		if err := input.AppendEntry(machineryIncome.ID, desc, decimal.Zero, svc.Amount); err != nil {
			return err
		}

		scope := svc.Scope
		expenseAlloc := AllocationInput{
			Type:     models.AllocationTypeMachineryExpense,
			Scope:    &scope,
			Amount:   svc.Amount,
			Quantity: svc.Hours,
			Unit:     "hours",
		}
		if svc.ProjectId != nil {
			expenseAlloc.ProjectId = *svc.ProjectId
		}
		if svc.PartyId != nil {
			expenseAlloc.PartyId = *svc.PartyId
		}
		// The income side tracks machine profitability only; it never enters
		// a settlement pool, so it carries no scope.
		incomeAlloc := AllocationInput{
			MachineId: svc.MachineId,
			Type:      models.AllocationTypeMachineryIncome,
			Amount:    svc.Amount,
			Quantity:  svc.Hours,
			Unit:      "hours",
		}
		input.Allocations = append(input.Allocations, expenseAlloc, incomeAlloc)

		group, _, err := postGroup(tx, ctx, tenantId, input)
		if err != nil {
			return err
		}
		svc.Status = models.DomainStatusPosted
		svc.PostingGroupId = &group.ID
		if err := tx.Model(svc).Select("Status", "PostingGroupId", "UpdatedAt").Updates(svc).Error; err != nil {
			return err
		}
		service = svc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return service, nil
}

// ReverseMachineryService voids a posted service via a reversal group.
func ReverseMachineryService(ctx context.Context, serviceId string, reason string) (*models.MachineryService, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if reason == "" {
		reason = ReversalReasonMachineryServiceVoidUpdate
	}
	db := config.GetDB()

	var service *models.MachineryService
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireTenantPostingLock(tx, tenantId); err != nil {
			return err
		}
		defer ReleaseTenantPostingLock(tx, tenantId)

		svc, err := lockDomainRow[models.MachineryService](tx.WithContext(ctx), tenantId, serviceId)
		if err != nil {
			return err
		}
		if svc.Status != models.DomainStatusPosted {
			return errors.New("only posted machinery services can be reversed")
		}

		reversal, err := reversePostingGroupTx(tx, ctx, tenantId, *svc.PostingGroupId, svc.ServiceDate, reason)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		userName, _ := utils.GetUserNameFromContext(ctx)
		svc.Status = models.DomainStatusReversed
		svc.ReversalPostingGroupId = &reversal.ID
		svc.ReversedAt = &now
		svc.ReversedBy = userName
		if err := tx.Model(svc).
			Select("Status", "ReversalPostingGroupId", "ReversedAt", "ReversedBy", "UpdatedAt").
			Updates(svc).Error; err != nil {
			return err
		}
		service = svc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return service, nil
}
