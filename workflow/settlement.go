package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/models"
	"github.com/zaraisoft/farmbooks_backend/utils"
	"gorm.io/gorm"
)

// kamdariSplit decides how the kamdar's cut relates to the landlord/hari
// split. Keyed by ShareRule.KamdariOrder.
type kamdariSplit interface {
	Split(basis, pct decimal.Decimal) (kamdari, distributable decimal.Decimal)
}

// kamdariBeforeSplit takes the kamdar's percentage off the whole basis, then
// splits the remainder between landlord and hari.
type kamdariBeforeSplit struct{}

func (kamdariBeforeSplit) Split(basis, pct decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	kamdari := basis.Mul(pct).Div(hundred).Round(4)
	return kamdari, basis.Sub(kamdari)
}

var kamdariSplits = map[models.KamdariOrder]kamdariSplit{
	models.KamdariOrderBeforeSplit: kamdariBeforeSplit{},
}

func kamdariSplitFor(order models.KamdariOrder) (kamdariSplit, error) {
	if s, ok := kamdariSplits[order]; ok {
		return s, nil
	}
	// AFTER_SPLIT is accepted at rule creation but has no agreed formula in
	// production yet; posting with it must fail loudly rather than guess.
	return nil, fmt.Errorf("kamdari order %s is not supported for settlement", order)
}

// settlementFigures is the full arithmetic result for one settlement window.
type settlementFigures struct {
	PoolRevenue    decimal.Decimal
	SharedCosts    decimal.Decimal
	Basis          decimal.Decimal
	Kamdari        decimal.Decimal
	Distributable  decimal.Decimal
	LandlordShare  decimal.Decimal
	HariShare      decimal.Decimal
	HariDeductions decimal.Decimal
	HariNet        decimal.Decimal
}

// computeSettlementFigures runs the split arithmetic. Pure: all inputs are
// already aggregated.
//
// MARGIN basis: revenue minus shared costs. REVENUE basis: revenue only,
// shared costs stay with the pool owner.
func computeSettlementFigures(rule *models.ShareRule, poolRevenue, sharedCosts, hariDeductions decimal.Decimal) (*settlementFigures, error) {
	basis := poolRevenue
	if rule.Basis == models.ShareBasisMargin {
		basis = poolRevenue.Sub(sharedCosts)
	}

	split, err := kamdariSplitFor(rule.KamdariOrder)
	if err != nil {
		return nil, err
	}
	kamdari, distributable := split.Split(basis, rule.PercentageFor(models.PartyRoleKamdar))

	// Landlord is computed and rounded; hari takes the exact remainder so the
	// two always total the distributable to the last paisa.
	landlord := distributable.Mul(rule.PercentageFor(models.PartyRoleLandlord)).Div(hundred).Round(4)
	hari := distributable.Sub(landlord)
	return &settlementFigures{
		PoolRevenue:    poolRevenue,
		SharedCosts:    sharedCosts,
		Basis:          basis,
		Kamdari:        kamdari,
		Distributable:  distributable,
		LandlordShare:  landlord,
		HariShare:      hari,
		HariDeductions: hariDeductions,
		HariNet:        hari.Sub(hariDeductions),
	}, nil
}

// poolRevenueTypes are the allocation types counted as revenue when carried
// with SHARED scope. Every other SHARED row is a shared cost.
var poolRevenueTypes = map[models.AllocationType]bool{
	models.AllocationTypePoolRevenue:     true,
	models.AllocationTypeSaleRevenue:     true,
	models.AllocationTypeMachineryIncome: true,
}

// settlementAllocationTypes never feed back into a later settlement window.
var settlementExcludedTypes = map[models.AllocationType]bool{
	models.AllocationTypeSettlement:  true,
	models.AllocationTypePeriodClose: true,
}

// aggregateAllocations sums the project's allocation rows in the window into
// the three settlement inputs. Reversal rows carry negative amounts and net
// out here without special handling.
func aggregateAllocations(tx *gorm.DB, ctx context.Context, tenantId, projectId string, from, to time.Time) (poolRevenue, sharedCosts, hariDeductions decimal.Decimal, err error) {
	type allocAgg struct {
		AllocationType  models.AllocationType
		AllocationScope *models.AllocationScope
		Total           decimal.Decimal
	}
	var aggs []allocAgg
	err = tx.WithContext(ctx).Model(&models.AllocationRow{}).
		Select("allocation_type, allocation_scope, COALESCE(SUM(amount), 0) AS total").
		Where("tenant_id = ? AND project_id = ? AND effective_date >= ? AND effective_date <= ?",
			tenantId, projectId, models.DateOnly(from), models.DateOnly(to)).
		Group("allocation_type, allocation_scope").
		Scan(&aggs).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}

	poolRevenue, sharedCosts, hariDeductions = decimal.Zero, decimal.Zero, decimal.Zero
	for _, agg := range aggs {
		if settlementExcludedTypes[agg.AllocationType] {
			continue
		}
		if agg.AllocationScope == nil {
			continue
		}
		switch *agg.AllocationScope {
		case models.AllocationScopeShared:
			if poolRevenueTypes[agg.AllocationType] {
				poolRevenue = poolRevenue.Add(agg.Total)
			} else {
				sharedCosts = sharedCosts.Add(agg.Total)
			}
		case models.AllocationScopeHariOnly:
			hariDeductions = hariDeductions.Add(agg.Total)
		}
	}
	return poolRevenue, sharedCosts, hariDeductions, nil
}

type NewSettlement struct {
	ProjectId   string    `json:"project_id" validate:"required"`
	CropCycleId string    `json:"crop_cycle_id"`
	ShareRuleId string    `json:"share_rule_id" validate:"required"`
	FromDate    time.Time `json:"from_date" validate:"required"`
	ToDate      time.Time `json:"to_date" validate:"required"`
}

// ComputeSettlement aggregates the project's allocation rows for the window,
// runs the split arithmetic and stores the result as a DRAFT settlement.
// Drafts are recomputable and have no ledger effect.
func ComputeSettlement(ctx context.Context, input *NewSettlement) (*models.Settlement, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if input.ToDate.Before(input.FromDate) {
		return nil, invalidInput("to date must not precede from date")
	}
	if err := utils.ValidateResourceId[models.Project](ctx, tenantId, input.ProjectId); err != nil {
		return nil, errors.New("project not found")
	}
	rule, err := models.GetShareRule(ctx, input.ShareRuleId)
	if err != nil {
		return nil, errors.New("share rule not found")
	}

	db := config.GetDB()
	settlement := models.Settlement{
		ID:          models.NewId(),
		TenantId:    tenantId,
		ProjectId:   input.ProjectId,
		ShareRuleId: rule.ID,
		Status:      models.SettlementStatusDraft,
		FromDate:    models.DateOnly(input.FromDate),
		ToDate:      models.DateOnly(input.ToDate),
	}
	if input.CropCycleId != "" {
		if err := utils.ValidateResourceId[models.CropCycle](ctx, tenantId, input.CropCycleId); err != nil {
			return nil, errors.New("crop cycle not found")
		}
		v := input.CropCycleId
		settlement.CropCycleId = &v
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := refreshSettlementFigures(tx, ctx, tenantId, &settlement, rule); err != nil {
			return err
		}
		return tx.Create(&settlement).Error
	})
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

// RecomputeSettlement re-runs the aggregation for an existing draft, picking
// up postings that arrived since it was computed.
func RecomputeSettlement(ctx context.Context, settlementId string) (*models.Settlement, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	db := config.GetDB()

	var settlement *models.Settlement
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := loadSettlement(tx.WithContext(ctx), tenantId, settlementId)
		if err != nil {
			return err
		}
		if s.Status != models.SettlementStatusDraft {
			return errors.New("only draft settlements can be recomputed")
		}
		rule, err := loadShareRule(tx.WithContext(ctx), tenantId, s.ShareRuleId)
		if err != nil {
			return err
		}
		if err := tx.Where("settlement_id = ?", s.ID).Delete(&models.SettlementLine{}).Error; err != nil {
			return err
		}
		s.Lines = nil
		if err := refreshSettlementFigures(tx, ctx, tenantId, s, rule); err != nil {
			return err
		}
		if err := tx.Model(s).
			Select("PoolRevenue", "SharedCosts", "BasisAmount", "KamdariAmount", "Distributable", "UpdatedAt").
			Updates(s).Error; err != nil {
			return err
		}
		if err := tx.Create(&s.Lines).Error; err != nil {
			return err
		}
		settlement = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// refreshSettlementFigures fills amounts and lines from the current state of
// the allocation rows.
func refreshSettlementFigures(tx *gorm.DB, ctx context.Context, tenantId string, s *models.Settlement, rule *models.ShareRule) error {
	poolRevenue, sharedCosts, hariDeductions, err := aggregateAllocations(tx, ctx, tenantId, s.ProjectId, s.FromDate, s.ToDate)
	if err != nil {
		return err
	}
	fig, err := computeSettlementFigures(rule, poolRevenue, sharedCosts, hariDeductions)
	if err != nil {
		return err
	}

	s.PoolRevenue = fig.PoolRevenue
	s.SharedCosts = fig.SharedCosts
	s.BasisAmount = fig.Basis
	s.KamdariAmount = fig.Kamdari
	s.Distributable = fig.Distributable

	lines := []models.SettlementLine{
		{
			ID:           models.NewId(),
			SettlementId: s.ID,
			TenantId:     tenantId,
			PartyId:      rule.PartyFor(models.PartyRoleLandlord),
			Role:         models.PartyRoleLandlord,
			ShareAmount:  fig.LandlordShare,
			Amount:       fig.LandlordShare,
		},
		{
			ID:              models.NewId(),
			SettlementId:    s.ID,
			TenantId:        tenantId,
			PartyId:         rule.PartyFor(models.PartyRoleHari),
			Role:            models.PartyRoleHari,
			ShareAmount:     fig.HariShare,
			DeductionAmount: fig.HariDeductions,
			Amount:          fig.HariNet,
		},
	}
	if kamdarId := rule.PartyFor(models.PartyRoleKamdar); kamdarId != "" && !fig.Kamdari.IsZero() {
		lines = append(lines, models.SettlementLine{
			ID:           models.NewId(),
			SettlementId: s.ID,
			TenantId:     tenantId,
			PartyId:      kamdarId,
			Role:         models.PartyRoleKamdar,
			ShareAmount:  fig.Kamdari,
			Amount:       fig.Kamdari,
		})
	}
	s.Lines = lines
	return nil
}

// shareRuleSnapshot is frozen into the settlement's allocation rows so later
// rule edits can never change what a posted settlement meant.
type shareRuleSnapshot struct {
	RuleId       string              `json:"rule_id"`
	Name         string              `json:"name"`
	Basis        models.ShareBasis   `json:"basis"`
	KamdariOrder models.KamdariOrder `json:"kamdari_order"`
	Lines        []shareRuleSnapLine `json:"lines"`
}

type shareRuleSnapLine struct {
	PartyId    string           `json:"party_id"`
	Role       models.PartyRole `json:"role"`
	Percentage decimal.Decimal  `json:"percentage"`
}

func snapshotShareRule(rule *models.ShareRule) (*string, error) {
	snap := shareRuleSnapshot{
		RuleId:       rule.ID,
		Name:         rule.Name,
		Basis:        rule.Basis,
		KamdariOrder: rule.KamdariOrder,
	}
	for _, l := range rule.Lines {
		snap.Lines = append(snap.Lines, shareRuleSnapLine{PartyId: l.PartyId, Role: l.Role, Percentage: l.Percentage})
	}
	b, err := json.Marshal(&snap)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// PostSettlement turns a draft into ledger reality:
//
//	Dr CurrentEarnings            basis   / Cr DistributionClearing  basis
//	Dr DistributionClearing  per payout   / Cr PartyControl     per payout
//	Dr DistributionClearing  deductions   / Cr CurrentEarnings  deductions
//
// The clearing account nets to zero inside the group; party control accounts
// end up carrying exactly the net payouts. Hari-only deductions flow back to
// the pool because the pool already paid those costs in cash.
// Calling it again on a POSTED settlement returns the existing group's
// settlement unchanged.
func PostSettlement(ctx context.Context, settlementId string, postingDate time.Time) (settlement *models.Settlement, err error) {
	ctx, span := tracer.Start(ctx, "workflow.PostSettlement", sourceAttributes(string(models.SourceTypeSettlement), settlementId))
	defer func() { endSpan(span, err) }()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	db := config.GetDB()

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireTenantPostingLock(tx, tenantId); err != nil {
			return err
		}
		defer ReleaseTenantPostingLock(tx, tenantId)

		s, err := loadSettlement(tx.WithContext(ctx), tenantId, settlementId)
		if err != nil {
			return err
		}
		switch s.Status {
		case models.SettlementStatusPosted:
			settlement = s
			return nil
		case models.SettlementStatusReversed:
			return errors.New("reversed settlements cannot be posted again")
		}

		rule, err := loadShareRule(tx.WithContext(ctx), tenantId, s.ShareRuleId)
		if err != nil {
			return err
		}
		snapshot, err := snapshotShareRule(rule)
		if err != nil {
			return err
		}

		currentEarnings, err := models.GetSystemAccount(tx.WithContext(ctx), tenantId, models.SystemAccountCurrentEarnings)
		if err != nil {
			return err
		}
		clearing, err := models.GetSystemAccount(tx.WithContext(ctx), tenantId, models.SystemAccountProfitDistributionClearing)
		if err != nil {
			return err
		}

		input := &PostingInput{
			SourceType:               models.SourceTypeSettlement,
			SourceId:                 s.ID,
			PostingDate:              postingDate,
			Description:              "Settlement " + s.FromDate.Format("2006-01-02") + " to " + s.ToDate.Format("2006-01-02"),
			allowNegativeAllocations: true,
		}
		if s.CropCycleId != nil {
			input.CropCycleId = *s.CropCycleId
		}

		input.appendSigned(currentEarnings.ID, clearing.ID, "Pool profit to distribution", s.BasisAmount)
		deductionTotal := decimal.Zero
		for _, line := range s.Lines {
			party, err := loadParty(tx.WithContext(ctx), tenantId, line.PartyId)
			if err != nil {
				return err
			}
			control, err := models.GetOrCreatePartyControlAccount(tx.WithContext(ctx), tenantId, party)
			if err != nil {
				return err
			}
			input.appendSigned(clearing.ID, control.ID, party.Name+" settlement share", line.Amount)
			scope := models.AllocationScopePartyOnly
			input.Allocations = append(input.Allocations, AllocationInput{
				ProjectId:    s.ProjectId,
				PartyId:      line.PartyId,
				Type:         models.AllocationTypeSettlement,
				Scope:        &scope,
				Amount:       line.Amount,
				RuleSnapshot: snapshot,
			})
			deductionTotal = deductionTotal.Add(line.DeductionAmount)
		}
		input.appendSigned(clearing.ID, currentEarnings.ID, "Party-only deductions retained by pool", deductionTotal)

		group, _, err := postGroup(tx, ctx, tenantId, input)
		if err != nil {
			return err
		}

		s.Status = models.SettlementStatusPosted
		s.PostingGroupId = &group.ID
		if err := tx.Model(s).Select("Status", "PostingGroupId", "UpdatedAt").Updates(s).Error; err != nil {
			return err
		}
		settlement = s
		return nil
	})
	if err != nil {
		config.LogError(config.GetLogger(), "settlement.go", "PostSettlement", "posting settlement failed", settlementId, err)
		return nil, err
	}
	return settlement, nil
}

// ReverseSettlement voids a posted settlement by reversing its posting group
// and marking the row REVERSED. The draft figures stay for audit; a fresh
// settlement must be computed to redo the distribution.
func ReverseSettlement(ctx context.Context, settlementId string, postingDate time.Time, reason string) (*models.Settlement, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	db := config.GetDB()

	var settlement *models.Settlement
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireTenantPostingLock(tx, tenantId); err != nil {
			return err
		}
		defer ReleaseTenantPostingLock(tx, tenantId)

		s, err := loadSettlement(tx.WithContext(ctx), tenantId, settlementId)
		if err != nil {
			return err
		}
		if s.Status != models.SettlementStatusPosted {
			return errors.New("only posted settlements can be reversed")
		}

		reversal, err := reversePostingGroupTx(tx, ctx, tenantId, *s.PostingGroupId, postingDate, reason)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		userName, _ := utils.GetUserNameFromContext(ctx)
		s.Status = models.SettlementStatusReversed
		s.ReversalPostingGroupId = &reversal.ID
		s.ReversedAt = &now
		s.ReversedBy = userName
		if err := tx.Model(s).
			Select("Status", "ReversalPostingGroupId", "ReversedAt", "ReversedBy", "UpdatedAt").
			Updates(s).Error; err != nil {
			return err
		}
		settlement = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

func loadSettlement(db *gorm.DB, tenantId string, id string) (*models.Settlement, error) {
	var s models.Settlement
	err := db.Preload("Lines").
		Where("tenant_id = ? AND id = ?", tenantId, id).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func loadShareRule(db *gorm.DB, tenantId string, id string) (*models.ShareRule, error) {
	var rule models.ShareRule
	err := db.Preload("Lines").
		Where("tenant_id = ? AND id = ?", tenantId, id).
		First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func loadParty(db *gorm.DB, tenantId string, id string) (*models.Party, error) {
	var party models.Party
	err := db.Where("tenant_id = ? AND id = ?", tenantId, id).First(&party).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &party, nil
}
