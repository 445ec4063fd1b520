package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodCloseRun records one close of a crop cycle. Unique per
// (tenant_id, crop_cycle_id): re-running close returns the existing row.
// Never overwritten.
type PeriodCloseRun struct {
	ID             string          `gorm:"primaryKey;size:36" json:"id"`
	TenantId       string          `gorm:"size:36;not null;index:uniq_close_run,unique,priority:1" json:"tenant_id"`
	CropCycleId    string          `gorm:"size:36;not null;index:uniq_close_run,unique,priority:2" json:"crop_cycle_id"`
	PostingGroupId *string         `gorm:"size:36" json:"posting_group_id"`
	NetProfit      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_profit"`
	// SnapshotJson preserves the computation inputs/outputs for audit.
	SnapshotJson string    `gorm:"type:text" json:"snapshot_json"`
	ClosedBy     string    `gorm:"size:255" json:"closed_by"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
