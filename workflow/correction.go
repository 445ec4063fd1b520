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

// CorrectionInput is one reverse-and-repost fix: the original group is
// reversed and re-posted with accounts and/or allocation types remapped.
// Keyed by the original group id, so re-running a batch that already applied
// this fix finds the audit row and skips it.
type CorrectionInput struct {
	OriginalPostingGroupId string
	// AccountRemap rewrites entry account ids (old -> new) in the repost.
	AccountRemap map[string]string
	// AllocationRemap rewrites allocation types (old -> new) in the repost.
	AllocationRemap map[models.AllocationType]models.AllocationType
	Reason          string
}

// RunCorrectionBatch applies a list of corrections, each in its own
// transaction. Already-applied corrections are returned as-is; the batch as a
// whole is safe to re-run after a partial failure.
func RunCorrectionBatch(ctx context.Context, inputs []*CorrectionInput) ([]*models.AccountingCorrection, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	logger := config.GetLogger()

	lock, err := utils.ObtainTenantLock(ctx, logger, "correction_batch", tenantId)
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseTenantLock(ctx, lock)

	results := make([]*models.AccountingCorrection, 0, len(inputs))
	for _, input := range inputs {
		correction, err := applyCorrection(ctx, tenantId, input)
		if err != nil {
			config.LogError(logger, "correction.go", "RunCorrectionBatch", "correction failed",
				input.OriginalPostingGroupId, err)
			return results, err
		}
		results = append(results, correction)
	}
	return results, nil
}

func applyCorrection(ctx context.Context, tenantId string, input *CorrectionInput) (*models.AccountingCorrection, error) {
	if input.OriginalPostingGroupId == "" {
		return nil, invalidInput("original posting group id is required")
	}
	if input.Reason == "" {
		return nil, invalidInput("correction reason is required")
	}
	db := config.GetDB()

	var result *models.AccountingCorrection
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireTenantPostingLock(tx, tenantId); err != nil {
			return err
		}
		defer ReleaseTenantPostingLock(tx, tenantId)

		var existing models.AccountingCorrection
		err := tx.WithContext(ctx).
			Where("tenant_id = ? AND original_posting_group_id = ?", tenantId, input.OriginalPostingGroupId).
			First(&existing).Error
		if err == nil {
			result = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		original, err := loadPostingGroup(tx.WithContext(ctx), tenantId, input.OriginalPostingGroupId)
		if err != nil {
			return err
		}

		postingDate := models.DateOnly(time.Now().UTC())
		reversal, err := reversePostingGroupTx(tx, ctx, tenantId, original.ID, postingDate, ReversalReasonCorrectionRepost)
		if err != nil {
			// A prior partial run may have reversed the group but died before
			// the repost. Pick up its reversal and continue.
			var dre *DoubleReversalError
			if !errors.As(err, &dre) {
				return err
			}
			reversal, err = loadPostingGroup(tx.WithContext(ctx), tenantId, dre.ReversalGroupId)
			if err != nil {
				return err
			}
		}

		corrected, err := repostCorrected(tx, ctx, tenantId, original, input)
		if err != nil {
			return err
		}

		correction := models.AccountingCorrection{
			ID:                      models.NewId(),
			TenantId:                tenantId,
			OriginalPostingGroupId:  &original.ID,
			ReversalPostingGroupId:  &reversal.ID,
			CorrectedPostingGroupId: &corrected.ID,
			Reason:                  input.Reason,
		}
		if err := tx.Create(&correction).Error; err != nil {
			return err
		}
		result = &correction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func repostCorrected(tx *gorm.DB, ctx context.Context, tenantId string, original *models.PostingGroup, input *CorrectionInput) (*models.PostingGroup, error) {
	posting := &PostingInput{
		SourceType:               models.CorrectionSourceType(original.SourceType),
		SourceId:                 original.SourceId,
		PostingDate:              original.PostingDate,
		Description:              "Correction: " + original.Description,
		allowNegativeAllocations: true,
	}
	if original.CropCycleId != nil {
		posting.CropCycleId = *original.CropCycleId
	}
	for _, e := range original.Entries {
		accountId := e.AccountId
		if mapped, ok := input.AccountRemap[accountId]; ok {
			accountId = mapped
		}
		posting.Entries = append(posting.Entries, EntryInput{
			AccountId:   accountId,
			Description: e.Description,
			Debit:       e.DebitAmount,
			Credit:      e.CreditAmount,
		})
	}
	for _, a := range original.Allocations {
		allocType := a.AllocationType
		if mapped, ok := input.AllocationRemap[allocType]; ok {
			allocType = mapped
		}
		row := AllocationInput{
			Type:         allocType,
			Scope:        a.AllocationScope,
			Amount:       a.Amount,
			Quantity:     a.Quantity,
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
		posting.Allocations = append(posting.Allocations, row)
	}

	group, _, err := postGroup(tx, ctx, tenantId, posting)
	return group, err
}

// ReclassInput moves an amount between allocation buckets without touching
// any account balance: the new group carries only a pair of offsetting
// allocation rows. Keyed by the operational group being reattributed.
type ReclassInput struct {
	PostingGroupId string
	ProjectId      string
	PartyId        string
	Amount         decimal.Decimal
	FromType       models.AllocationType
	ToType         models.AllocationType
	FromScope      *models.AllocationScope
	ToScope        *models.AllocationScope
	Reason         string
}

// ApplyReclassCorrection records a settlement-attribution fix. The ledger
// stays untouched; only the settlement aggregation sees the move.
func ApplyReclassCorrection(ctx context.Context, input *ReclassInput) (*models.AccountingCorrection, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if input.PostingGroupId == "" {
		return nil, invalidInput("posting group id is required")
	}
	if !input.Amount.IsPositive() {
		return nil, invalidInput("reclass amount must be positive")
	}
	if input.Reason == "" {
		return nil, invalidInput("correction reason is required")
	}
	db := config.GetDB()

	consolidationKey := "reclass:" + input.PostingGroupId
	var result *models.AccountingCorrection
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireTenantPostingLock(tx, tenantId); err != nil {
			return err
		}
		defer ReleaseTenantPostingLock(tx, tenantId)

		var existing models.AccountingCorrection
		err := tx.WithContext(ctx).
			Where("tenant_id = ? AND consolidation_key = ?", tenantId, consolidationKey).
			First(&existing).Error
		if err == nil {
			result = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		original, err := loadPostingGroup(tx.WithContext(ctx), tenantId, input.PostingGroupId)
		if err != nil {
			return err
		}

		posting := &PostingInput{
			SourceType:               models.SourceTypeAllocationReclass,
			SourceId:                 original.ID,
			PostingDate:              models.DateOnly(time.Now().UTC()),
			Description:              "Allocation reclass: " + input.Reason,
			allowNegativeAllocations: true,
		}
		if original.CropCycleId != nil {
			posting.CropCycleId = *original.CropCycleId
		}
		posting.Allocations = append(posting.Allocations,
			AllocationInput{
				ProjectId: input.ProjectId,
				PartyId:   input.PartyId,
				Type:      input.FromType,
				Scope:     input.FromScope,
				Amount:    input.Amount.Neg(),
			},
			AllocationInput{
				ProjectId: input.ProjectId,
				PartyId:   input.PartyId,
				Type:      input.ToType,
				Scope:     input.ToScope,
				Amount:    input.Amount,
			},
		)

		group, _, err := postGroup(tx, ctx, tenantId, posting)
		if err != nil {
			return err
		}

		correction := models.AccountingCorrection{
			ID:                      models.NewId(),
			TenantId:                tenantId,
			CorrectedPostingGroupId: &group.ID,
			ConsolidationKey:        &consolidationKey,
			Reason:                  input.Reason,
		}
		if err := tx.Create(&correction).Error; err != nil {
			return err
		}
		result = &correction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
