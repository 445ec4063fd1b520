package models

import "time"

// AccountingCorrection is the audit row for one applied remediation. The
// unique indexes are the idempotency boundary: re-running a correction batch
// applies each fix at most once.
//
// Keying:
// - reverse+repost corrections: (tenant_id, original_posting_group_id)
// - consolidation-style fixes with no single origin: (tenant_id, consolidation_key)
type AccountingCorrection struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	TenantId string `gorm:"size:36;not null;index;index:uniq_corr_origin,unique,priority:1;index:uniq_corr_consolidation,unique,priority:1" json:"tenant_id"`

	OriginalPostingGroupId  *string `gorm:"size:36;index:uniq_corr_origin,unique,priority:2" json:"original_posting_group_id"`
	ReversalPostingGroupId  *string `gorm:"size:36" json:"reversal_posting_group_id"`
	CorrectedPostingGroupId *string `gorm:"size:36" json:"corrected_posting_group_id"`

	ConsolidationKey *string `gorm:"size:255;index:uniq_corr_consolidation,unique,priority:2" json:"consolidation_key"`
	Reason           string  `gorm:"type:text;not null" json:"reason"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
