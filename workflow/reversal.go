package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/models"
	"github.com/zaraisoft/farmbooks_backend/utils"
	"gorm.io/gorm"
)

// ReversePostingGroup creates the mirror image of a posted group: debits and
// credits swapped, allocation amounts negated. The original is never touched.
//
// Design:
//   - We do NOT delete or edit posted groups.
//   - The reversal carries source type <base>_REVERSAL and the original's
//     source id, and points back via reversal_of_posting_group_id.
//   - At most one reversal per group; a second attempt gets DoubleReversalError.
func ReversePostingGroup(ctx context.Context, postingGroupId string, postingDate time.Time, reason string) (*models.PostingGroup, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	db := config.GetDB()

	var reversal *models.PostingGroup
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireTenantPostingLock(tx, tenantId); err != nil {
			return err
		}
		defer ReleaseTenantPostingLock(tx, tenantId)
		r, err := reversePostingGroupTx(tx, ctx, tenantId, postingGroupId, postingDate, reason)
		if err != nil {
			return err
		}
		reversal = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// reversePostingGroupTx does the work inside the caller's transaction. The
// caller must hold the tenant posting lock.
func reversePostingGroupTx(tx *gorm.DB, ctx context.Context, tenantId string, postingGroupId string, postingDate time.Time, reason string) (*models.PostingGroup, error) {
	original, err := loadPostingGroup(tx.WithContext(ctx), tenantId, postingGroupId)
	if err != nil {
		return nil, err
	}
	if original.ReversalOfPostingGroupId != nil {
		return nil, errors.New("a reversal group cannot itself be reversed")
	}

	var existing models.PostingGroup
	err = tx.WithContext(ctx).
		Where("tenant_id = ? AND reversal_of_posting_group_id = ?", tenantId, original.ID).
		First(&existing).Error
	if err == nil {
		return nil, &DoubleReversalError{PostingGroupId: original.ID, ReversalGroupId: existing.ID}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	input := &PostingInput{
		SourceType:               models.ReversalSourceType(original.SourceType),
		SourceId:                 original.SourceId,
		PostingDate:              postingDate,
		Description:              "Reversal: " + reason,
		reversalOfPostingGroupId: &original.ID,
		reversalReason:           &reason,
		allowNegativeAllocations: true,
	}
	if original.CropCycleId != nil {
		input.CropCycleId = *original.CropCycleId
	}
	for _, e := range original.Entries {
		input.Entries = append(input.Entries, EntryInput{
			AccountId:   e.AccountId,
			Description: e.Description,
			Debit:       e.CreditAmount,
			Credit:      e.DebitAmount,
		})
	}
	for _, a := range original.Allocations {
		row := AllocationInput{
			Type:         a.AllocationType,
			Scope:        a.AllocationScope,
			Amount:       a.Amount.Neg(),
			Quantity:     a.Quantity.Neg(),
			Unit:         a.Unit,
			RuleSnapshot: a.RuleSnapshot,
		}
		if a.ProjectId != nil {
			row.ProjectId = *a.ProjectId
		}
		if a.PartyId != nil {
			row.PartyId = *a.PartyId
		}
		if a.MachineId != nil {
			row.MachineId = *a.MachineId
		}
		input.Allocations = append(input.Allocations, row)
	}

	group, created, err := postGroup(tx, ctx, tenantId, input)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost the race to a concurrent reversal of the same group.
		return nil, &DoubleReversalError{PostingGroupId: original.ID, ReversalGroupId: group.ID}
	}
	return group, nil
}
