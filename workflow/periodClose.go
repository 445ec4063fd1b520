package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/models"
	"github.com/zaraisoft/farmbooks_backend/utils"
	"gorm.io/gorm"
)

// periodCloseSnapshot is the audit payload stored with every close run.
type periodCloseSnapshot struct {
	CropCycleId   string          `json:"crop_cycle_id"`
	CropCycleName string          `json:"crop_cycle_name"`
	Income        decimal.Decimal `json:"income"`
	Expense       decimal.Decimal `json:"expense"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	ClosedAt      time.Time       `json:"closed_at"`
}

// ClosePeriod closes a crop cycle: computes its net profit, moves it from
// current earnings to retained earnings, flips the cycle to CLOSED and
// records a PeriodCloseRun. Re-invoking on a closed cycle is a no-op that
// returns the existing run.
func ClosePeriod(ctx context.Context, cropCycleId string) (run *models.PeriodCloseRun, err error) {
	ctx, span := tracer.Start(ctx, "workflow.ClosePeriod", sourceAttributes(string(models.SourceTypePeriodClose), cropCycleId))
	defer func() { endSpan(span, err) }()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	logger := config.GetLogger()

	lock, err := utils.ObtainTenantLock(ctx, logger, "period_close", tenantId)
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseTenantLock(ctx, lock)

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireTenantPostingLock(tx, tenantId); err != nil {
			return err
		}
		defer ReleaseTenantPostingLock(tx, tenantId)

		var existing models.PeriodCloseRun
		err := tx.WithContext(ctx).
			Where("tenant_id = ? AND crop_cycle_id = ?", tenantId, cropCycleId).
			First(&existing).Error
		if err == nil {
			run = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		scanCtx := utils.SetSkipTenantScopeInContext(ctx, true)
		cycle, err := models.GetCropCycleTx(tx.WithContext(scanCtx), cropCycleId)
		if err != nil {
			return errors.New("crop cycle not found")
		}
		if cycle.TenantId != tenantId {
			return &TenantMismatchError{Resource: "crop cycle", ResourceId: cropCycleId}
		}
		if cycle.IsClosed() {
			return errors.New("crop cycle is already closed")
		}

		income, expense, err := cycleIncomeExpenseTotals(tx, ctx, tenantId, cropCycleId)
		if err != nil {
			return err
		}
		netProfit := income.Sub(expense)
		now := time.Now().UTC()

		var groupId *string
		if !netProfit.IsZero() {
			currentEarnings, err := models.GetSystemAccount(tx.WithContext(ctx), tenantId, models.SystemAccountCurrentEarnings)
			if err != nil {
				return err
			}
			retainedEarnings, err := models.GetSystemAccount(tx.WithContext(ctx), tenantId, models.SystemAccountRetainedEarnings)
			if err != nil {
				return err
			}

			input := &PostingInput{
				SourceType:  models.SourceTypePeriodClose,
				SourceId:    cycle.ID,
				CropCycleId: cycle.ID,
				PostingDate: now,
				Description: "Period close " + cycle.Name,
			}
			input.appendSigned(currentEarnings.ID, retainedEarnings.ID, "Net profit to retained earnings", netProfit)
			input.Allocations = append(input.Allocations, AllocationInput{
				Type:   models.AllocationTypePeriodClose,
				Amount: netProfit,
			})
			group, _, err := postGroup(tx, ctx, tenantId, input)
			if err != nil {
				return err
			}
			groupId = &group.ID
		}

		snapBytes, err := json.Marshal(&periodCloseSnapshot{
			CropCycleId:   cycle.ID,
			CropCycleName: cycle.Name,
			Income:        income,
			Expense:       expense,
			NetProfit:     netProfit,
			ClosedAt:      now,
		})
		if err != nil {
			return err
		}

		closedBy, _ := utils.GetUserNameFromContext(ctx)
		if err := models.MarkCropCycleClosed(tx.WithContext(ctx), cycle, closedBy, now); err != nil {
			return err
		}

		newRun := models.PeriodCloseRun{
			ID:             models.NewId(),
			TenantId:       tenantId,
			CropCycleId:    cycle.ID,
			PostingGroupId: groupId,
			NetProfit:      netProfit,
			SnapshotJson:   string(snapBytes),
			ClosedBy:       closedBy,
		}
		if err := tx.Create(&newRun).Error; err != nil {
			return err
		}
		run = &newRun
		return nil
	})
	if err != nil {
		config.LogError(logger, "periodClose.go", "ClosePeriod", "period close failed", cropCycleId, err)
		return nil, err
	}
	return run, nil
}

// cycleIncomeExpenseTotals sums the cycle's income and expense activity from
// the ledger itself: income accounts net credit, expense accounts net debit.
func cycleIncomeExpenseTotals(tx *gorm.DB, ctx context.Context, tenantId string, cropCycleId string) (income, expense decimal.Decimal, err error) {
	var totals struct {
		Income  decimal.Decimal
		Expense decimal.Decimal
	}
	err = tx.WithContext(ctx).Model(&models.LedgerEntry{}).
		Select(`COALESCE(SUM(CASE WHEN accounts.main_type = ? THEN ledger_entries.credit_amount - ledger_entries.debit_amount ELSE 0 END), 0) AS income,
			COALESCE(SUM(CASE WHEN accounts.main_type = ? THEN ledger_entries.debit_amount - ledger_entries.credit_amount ELSE 0 END), 0) AS expense`,
			models.AccountMainTypeIncome, models.AccountMainTypeExpense).
		Joins("JOIN accounts ON accounts.id = ledger_entries.account_id").
		Joins("JOIN posting_groups ON posting_groups.id = ledger_entries.posting_group_id").
		Where("ledger_entries.tenant_id = ? AND posting_groups.crop_cycle_id = ?", tenantId, cropCycleId).
		Scan(&totals).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return totals.Income, totals.Expense, nil
}
