package models

import (
	"context"
	"errors"
	"time"

	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/utils"
	"gorm.io/gorm"
)

// CropCycle is a farming season. Created OPEN; transitions to CLOSED exactly
// once (period close or manual close). CLOSED is terminal for posting: the
// posting engine rejects any new posting group referencing a closed cycle.
type CropCycle struct {
	ID        string          `gorm:"primaryKey;size:36" json:"id"`
	TenantId  string          `gorm:"size:36;index;not null;index:uniq_cycle_name,unique,priority:1" json:"tenant_id"`
	Name      string          `gorm:"size:255;not null;index:uniq_cycle_name,unique,priority:2" json:"name"`
	Status    CropCycleStatus `gorm:"size:10;not null;default:'OPEN';index" json:"status"`
	StartDate time.Time       `gorm:"not null" json:"start_date"`
	EndDate   *time.Time      `json:"end_date"`
	ClosedAt  *time.Time      `json:"closed_at"`
	ClosedBy  string          `gorm:"size:255" json:"closed_by"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCropCycle struct {
	Name      string     `json:"name" validate:"required"`
	StartDate time.Time  `json:"start_date" validate:"required"`
	EndDate   *time.Time `json:"end_date"`
}

func (c *CropCycle) IsClosed() bool {
	return c.Status == CropCycleStatusClosed
}

func CreateCropCycle(ctx context.Context, input *NewCropCycle) (*CropCycle, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[CropCycle](ctx, tenantId, "name", input.Name, ""); err != nil {
		return nil, err
	}
	if input.EndDate != nil && input.EndDate.Before(input.StartDate) {
		return nil, errors.New("end date must not precede start date")
	}

	cycle := CropCycle{
		ID:        NewId(),
		TenantId:  tenantId,
		Name:      input.Name,
		Status:    CropCycleStatusOpen,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&cycle).Error; err != nil {
		return nil, err
	}
	return &cycle, nil
}

func GetCropCycle(ctx context.Context, id string) (*CropCycle, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[CropCycle](ctx, tenantId, id)
}

// GetCropCycleTx loads the cycle without tenant scoping so the posting engine
// can detect cross-tenant references explicitly.
func GetCropCycleTx(tx *gorm.DB, id string) (*CropCycle, error) {
	var cycle CropCycle
	if err := tx.Where("id = ?", id).First(&cycle).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &cycle, nil
}

// MarkCropCycleClosed flips the cycle to CLOSED. Guarded by the caller
// (period close engine) which holds the tenant posting lock; the WHERE on
// status makes a double close a no-op at the storage layer too.
func MarkCropCycleClosed(tx *gorm.DB, cycle *CropCycle, closedBy string, closedAt time.Time) error {
	res := tx.Model(&CropCycle{}).
		Where("id = ? AND tenant_id = ? AND status = ?", cycle.ID, cycle.TenantId, CropCycleStatusOpen).
		Updates(map[string]interface{}{
			"status":    CropCycleStatusClosed,
			"closed_at": &closedAt,
			"closed_by": closedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("crop cycle already closed")
	}
	cycle.Status = CropCycleStatusClosed
	cycle.ClosedAt = &closedAt
	cycle.ClosedBy = closedBy
	return nil
}
