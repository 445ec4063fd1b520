package workflow

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/models"
	"github.com/zaraisoft/farmbooks_backend/utils"
)

// UnbalancedGroupFinding is one reconciliation hit: a stored posting group
// whose entries do not sum to zero. With the posting-path checks in place
// this should never return rows; it exists to prove that in production.
type UnbalancedGroupFinding struct {
	PostingGroupId string
	SourceType     models.PostingSourceType
	SourceId       string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
}

// FindUnbalancedPostingGroups scans the tenant's ledger for groups that
// violate the balance invariant.
func FindUnbalancedPostingGroups(ctx context.Context) ([]UnbalancedGroupFinding, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	db := config.GetDB()

	var findings []UnbalancedGroupFinding
	err := db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Select(`ledger_entries.posting_group_id, posting_groups.source_type, posting_groups.source_id,
			COALESCE(SUM(ledger_entries.debit_amount), 0) AS debit,
			COALESCE(SUM(ledger_entries.credit_amount), 0) AS credit`).
		Joins("JOIN posting_groups ON posting_groups.id = ledger_entries.posting_group_id").
		Where("ledger_entries.tenant_id = ?", tenantId).
		Group("ledger_entries.posting_group_id, posting_groups.source_type, posting_groups.source_id").
		Having("SUM(ledger_entries.debit_amount) <> SUM(ledger_entries.credit_amount)").
		Scan(&findings).Error
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// FindClearingAccountLeaks lists operational posting groups that touched the
// profit distribution clearing account. Only settlements and their reversals
// may post there; anything else is a misrouted entry to correct with
// RunCorrectionBatch.
func FindClearingAccountLeaks(ctx context.Context) ([]string, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	db := config.GetDB()

	clearing, err := models.GetSystemAccount(db.WithContext(ctx), tenantId, models.SystemAccountProfitDistributionClearing)
	if err != nil {
		return nil, err
	}

	allowed := []models.PostingSourceType{
		models.SourceTypeSettlement,
		models.ReversalSourceType(models.SourceTypeSettlement),
		models.CorrectionSourceType(models.SourceTypeSettlement),
	}
	var groupIds []string
	err = db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Joins("JOIN posting_groups ON posting_groups.id = ledger_entries.posting_group_id").
		Where("ledger_entries.tenant_id = ? AND ledger_entries.account_id = ?", tenantId, clearing.ID).
		Where("posting_groups.source_type NOT IN ?", allowed).
		Distinct().
		Pluck("ledger_entries.posting_group_id", &groupIds).Error
	if err != nil {
		return nil, err
	}
	return groupIds, nil
}
