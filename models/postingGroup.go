package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PostingGroup is the atomic record of one financial event. Created once per
// business event, never updated or deleted; it is only superseded by a
// reversal group referencing it.
//
// Invariants:
// - unique per (tenant_id, source_type, source_id)
// - at most one reversal per group: unique (tenant_id, reversal_of_posting_group_id)
// - ledger entries are balanced per group: sum(debit) == sum(credit)
type PostingGroup struct {
	ID          string            `gorm:"primaryKey;size:36" json:"id"`
	TenantId    string            `gorm:"size:36;not null;index;index:uniq_pg_source,unique,priority:1;index:uniq_pg_reversal,unique,priority:1" json:"tenant_id"`
	CropCycleId *string           `gorm:"size:36;index" json:"crop_cycle_id"`
	SourceType  PostingSourceType `gorm:"size:64;not null;index:uniq_pg_source,unique,priority:2" json:"source_type"`
	SourceId    string            `gorm:"size:64;not null;index:uniq_pg_source,unique,priority:3" json:"source_id"`
	// GroupNumber is the human-facing running number ("PG-12").
	GroupNumber string          `gorm:"size:64" json:"group_number"`
	SequenceNo  decimal.Decimal `gorm:"type:decimal(15);not null" json:"sequence_no"`
	PostingDate time.Time       `gorm:"not null;index" json:"posting_date"`
	Description string          `gorm:"type:text" json:"description"`

	IdempotencyKey           *string `gorm:"size:255;index" json:"idempotency_key"`
	ReversalOfPostingGroupId *string `gorm:"size:36;index:uniq_pg_reversal,unique,priority:2" json:"reversal_of_posting_group_id"`
	ReversalReason           *string `gorm:"type:text" json:"reversal_reason"`

	Entries     []LedgerEntry   `gorm:"foreignKey:PostingGroupId" json:"entries"`
	Allocations []AllocationRow `gorm:"foreignKey:PostingGroupId" json:"allocations"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// LedgerEntry is one debit-or-credit line inside a posting group. Exactly one
// of debit/credit is positive per row. Insert-only.
type LedgerEntry struct {
	ID             string          `gorm:"primaryKey;size:36" json:"id"`
	PostingGroupId string          `gorm:"size:36;not null;index;index:idx_le_tenant_group,priority:2" json:"posting_group_id"`
	TenantId       string          `gorm:"size:36;not null;index;index:idx_le_tenant_group,priority:1;index:idx_le_tenant_acct,priority:1" json:"tenant_id"`
	AccountId      string          `gorm:"size:36;not null;index;index:idx_le_tenant_acct,priority:2" json:"account_id"`
	PostingDate    time.Time       `gorm:"not null;index" json:"posting_date"`
	Description    string          `gorm:"size:255" json:"description"`
	DebitAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit_amount"`
	CreditAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit_amount"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
