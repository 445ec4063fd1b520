package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllocationRow attributes a posting group's economic effect to a
// project/party for settlement, independently of the chart-of-accounts view.
// Insert-only. Amounts may be negative only for reclassification corrections;
// the net effect across scopes must still be correct.
type AllocationRow struct {
	ID             string  `gorm:"primaryKey;size:36" json:"id"`
	PostingGroupId string  `gorm:"size:36;not null;index" json:"posting_group_id"`
	TenantId       string  `gorm:"size:36;not null;index;index:idx_alloc_settle,priority:1" json:"tenant_id"`
	ProjectId      *string `gorm:"size:36;index;index:idx_alloc_settle,priority:2" json:"project_id"`
	PartyId        *string `gorm:"size:36;index" json:"party_id"`
	MachineId      *string `gorm:"size:36;index" json:"machine_id"`

	AllocationType  AllocationType   `gorm:"size:64;not null;index;index:idx_alloc_settle,priority:3" json:"allocation_type"`
	AllocationScope *AllocationScope `gorm:"size:16;index" json:"allocation_scope"`

	Amount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Unit          string          `gorm:"size:32" json:"unit"`
	EffectiveDate time.Time       `gorm:"not null;index" json:"effective_date"`

	// RuleSnapshot freezes the share-rule identity/percentages used when the
	// row was produced, so later rule edits never change historical postings.
	RuleSnapshot *string `gorm:"type:text" json:"rule_snapshot"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
