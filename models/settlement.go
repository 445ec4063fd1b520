package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Settlement is a computed distribution of pool profit among parties for a
// date window. DRAFT rows are recomputable; POSTED rows are immutable except
// via reversal and must carry a posting group.
type Settlement struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	TenantId    string           `gorm:"size:36;not null;index" json:"tenant_id"`
	ProjectId   string           `gorm:"size:36;not null;index" json:"project_id"`
	CropCycleId *string          `gorm:"size:36;index" json:"crop_cycle_id"`
	ShareRuleId string           `gorm:"size:36;not null;index" json:"share_rule_id"`
	Status      SettlementStatus `gorm:"size:10;not null;default:'DRAFT';index" json:"status"`
	FromDate    time.Time        `gorm:"not null" json:"from_date"`
	ToDate      time.Time        `gorm:"not null" json:"to_date"`

	PoolRevenue   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pool_revenue"`
	SharedCosts   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"shared_costs"`
	BasisAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"basis_amount"`
	KamdariAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"kamdari_amount"`
	Distributable decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"distributable"`

	PostingGroupId         *string    `gorm:"size:36;index" json:"posting_group_id"`
	ReversalPostingGroupId *string    `gorm:"size:36" json:"reversal_posting_group_id"`
	ReversedAt             *time.Time `json:"reversed_at"`
	ReversedBy             string     `gorm:"size:255" json:"reversed_by"`

	Lines     []SettlementLine `gorm:"foreignKey:SettlementId" json:"lines"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// Posted and reversed settlements must always point at their posting group.
func (s *Settlement) BeforeSave(tx *gorm.DB) error {
	if s.Status != SettlementStatusDraft && s.PostingGroupId == nil {
		return errors.New("settlement in status " + string(s.Status) + " requires a posting group")
	}
	return nil
}

// SettlementLine holds one party's computed amounts. Amount is the net
// payout: gross share minus party-only deductions.
type SettlementLine struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	SettlementId    string          `gorm:"size:36;not null;index" json:"settlement_id"`
	TenantId        string          `gorm:"size:36;not null;index" json:"tenant_id"`
	PartyId         string          `gorm:"size:36;not null;index" json:"party_id"`
	Role            PartyRole       `gorm:"size:16;not null" json:"role"`
	ShareAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"share_amount"`
	DeductionAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"deduction_amount"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
}
