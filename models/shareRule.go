package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/utils"
	"gorm.io/gorm"
)

// ShareRule is a versioned profit-sharing definition. Once a posted
// settlement references a rule it becomes immutable; changes are expressed as
// a new rule row with a later effective_from.
type ShareRule struct {
	ID            string             `gorm:"primaryKey;size:36" json:"id"`
	TenantId      string             `gorm:"size:36;not null;index" json:"tenant_id"`
	Name          string             `gorm:"size:255;not null" json:"name"`
	AppliesTo     ShareRuleAppliesTo `gorm:"size:16;not null" json:"applies_to"`
	Basis         ShareBasis         `gorm:"size:16;not null;default:'MARGIN'" json:"basis"`
	KamdariOrder  KamdariOrder       `gorm:"size:16;not null;default:'BEFORE_SPLIT'" json:"kamdari_order"`
	EffectiveFrom time.Time          `gorm:"not null;index" json:"effective_from"`
	EffectiveTo   *time.Time         `gorm:"index" json:"effective_to"`
	Lines         []ShareRuleLine    `gorm:"foreignKey:ShareRuleId" json:"lines"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type ShareRuleLine struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	ShareRuleId string          `gorm:"size:36;not null;index" json:"share_rule_id"`
	TenantId    string          `gorm:"size:36;not null;index" json:"tenant_id"`
	PartyId     string          `gorm:"size:36;not null;index" json:"party_id"`
	Role        PartyRole       `gorm:"size:16;not null" json:"role"`
	Percentage  decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"percentage"`
}

type NewShareRule struct {
	Name          string             `json:"name" validate:"required"`
	AppliesTo     ShareRuleAppliesTo `json:"applies_to" validate:"required,oneof=CROP_CYCLE PROJECT SALE"`
	Basis         ShareBasis         `json:"basis" validate:"required,oneof=MARGIN REVENUE"`
	KamdariOrder  KamdariOrder       `json:"kamdari_order" validate:"omitempty,oneof=BEFORE_SPLIT AFTER_SPLIT"`
	EffectiveFrom time.Time          `json:"effective_from" validate:"required"`
	EffectiveTo   *time.Time         `json:"effective_to"`
	Lines         []NewShareRuleLine `json:"lines" validate:"required,min=2,dive"`
}

type NewShareRuleLine struct {
	PartyId    string          `json:"party_id" validate:"required"`
	Role       PartyRole       `json:"role" validate:"required,oneof=LANDLORD HARI KAMDAR"`
	Percentage decimal.Decimal `json:"percentage"`
}

var hundred = decimal.NewFromInt(100)

// validateSharePercentages enforces the split shape at rule-creation time:
// exactly one landlord line and one hari line (at most one kamdar), each
// percentage within [0,100], landlord_pct + hari_pct exactly 100. Settlement
// lines are built per role, so a missing role must fail here, not at posting.
func validateSharePercentages(lines []NewShareRuleLine) error {
	roleCounts := map[PartyRole]int{}
	splitTotal := decimal.Zero
	for _, line := range lines {
		if line.Percentage.IsNegative() || line.Percentage.GreaterThan(hundred) {
			return errors.New("share percentage must be between 0 and 100")
		}
		roleCounts[line.Role]++
		switch line.Role {
		case PartyRoleLandlord, PartyRoleHari:
			splitTotal = splitTotal.Add(line.Percentage)
		}
	}
	if roleCounts[PartyRoleLandlord] != 1 || roleCounts[PartyRoleHari] != 1 {
		return errors.New("a share rule needs exactly one landlord line and one hari line")
	}
	if roleCounts[PartyRoleKamdar] > 1 {
		return errors.New("a share rule supports at most one kamdar line")
	}
	if !splitTotal.Equal(hundred) {
		return errors.New("landlord and hari percentages must total 100")
	}
	return nil
}

func (input *NewShareRule) validate(ctx context.Context, tenantId string) error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if err := validateSharePercentages(input.Lines); err != nil {
		return err
	}
	for _, line := range input.Lines {
		if err := utils.ValidateResourceId[Party](ctx, tenantId, line.PartyId); err != nil {
			return errors.New("party not found")
		}
	}
	return nil
}

func CreateShareRule(ctx context.Context, input *NewShareRule) (*ShareRule, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}
	kamdariOrder := input.KamdariOrder
	if kamdariOrder == "" {
		kamdariOrder = KamdariOrderBeforeSplit
	}

	rule := ShareRule{
		ID:            NewId(),
		TenantId:      tenantId,
		Name:          input.Name,
		AppliesTo:     input.AppliesTo,
		Basis:         input.Basis,
		KamdariOrder:  kamdariOrder,
		EffectiveFrom: input.EffectiveFrom,
		EffectiveTo:   input.EffectiveTo,
	}
	for _, line := range input.Lines {
		rule.Lines = append(rule.Lines, ShareRuleLine{
			ID:          NewId(),
			ShareRuleId: rule.ID,
			TenantId:    tenantId,
			PartyId:     line.PartyId,
			Role:        line.Role,
			Percentage:  line.Percentage,
		})
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpdateShareRule replaces an unreferenced rule's definition. A rule that any
// posted settlement references is frozen forever; create a new version
// instead.
func UpdateShareRule(ctx context.Context, id string, input *NewShareRule) (*ShareRule, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}
	rule, err := utils.FetchModel[ShareRule](ctx, tenantId, id, "Lines")
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var referenced int64
	if err := db.WithContext(ctx).Model(&Settlement{}).
		Where("tenant_id = ? AND share_rule_id = ? AND status <> ?", tenantId, id, SettlementStatusDraft).
		Count(&referenced).Error; err != nil {
		return nil, err
	}
	if referenced > 0 {
		return nil, errors.New("share rule is referenced by a posted settlement and cannot be changed")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(rule).Updates(map[string]interface{}{
			"Name":          input.Name,
			"AppliesTo":     input.AppliesTo,
			"Basis":         input.Basis,
			"EffectiveFrom": input.EffectiveFrom,
			"EffectiveTo":   input.EffectiveTo,
		}).Error; err != nil {
			return err
		}
		if err := tx.Where("share_rule_id = ?", rule.ID).Delete(&ShareRuleLine{}).Error; err != nil {
			return err
		}
		lines := make([]ShareRuleLine, 0, len(input.Lines))
		for _, line := range input.Lines {
			lines = append(lines, ShareRuleLine{
				ID:          NewId(),
				ShareRuleId: rule.ID,
				TenantId:    tenantId,
				PartyId:     line.PartyId,
				Role:        line.Role,
				Percentage:  line.Percentage,
			})
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		rule.Lines = lines
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func GetShareRule(ctx context.Context, id string) (*ShareRule, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[ShareRule](ctx, tenantId, id, "Lines")
}

// PercentageFor returns the summed percentage of all lines carrying a role.
func (r *ShareRule) PercentageFor(role PartyRole) decimal.Decimal {
	total := decimal.Zero
	for _, line := range r.Lines {
		if line.Role == role {
			total = total.Add(line.Percentage)
		}
	}
	return total
}

// PartyFor returns the first party id carrying a role, "" if none.
func (r *ShareRule) PartyFor(role PartyRole) string {
	for _, line := range r.Lines {
		if line.Role == role {
			return line.PartyId
		}
	}
	return ""
}
