package models

import (
	"context"
	"errors"
	"time"

	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/utils"
)

// Project groups allocation rows for settlement: typically one field/crop
// combination inside a crop cycle.
type Project struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	TenantId    string    `gorm:"size:36;index;not null;index:uniq_project_name,unique,priority:1" json:"tenant_id"`
	CropCycleId *string   `gorm:"size:36;index" json:"crop_cycle_id"`
	Name        string    `gorm:"size:255;not null;index:uniq_project_name,unique,priority:2" json:"name"`
	CropName    string    `gorm:"size:255" json:"crop_name"`
	AcreArea    string    `gorm:"size:64" json:"acre_area"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProject struct {
	CropCycleId string `json:"crop_cycle_id"`
	Name        string `json:"name" validate:"required"`
	CropName    string `json:"crop_name"`
	AcreArea    string `json:"acre_area"`
}

func CreateProject(ctx context.Context, input *NewProject) (*Project, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Project](ctx, tenantId, "name", input.Name, ""); err != nil {
		return nil, err
	}
	var cropCycleId *string
	if input.CropCycleId != "" {
		if err := utils.ValidateResourceId[CropCycle](ctx, tenantId, input.CropCycleId); err != nil {
			return nil, errors.New("crop cycle not found")
		}
		cropCycleId = &input.CropCycleId
	}

	project := Project{
		ID:          NewId(),
		TenantId:    tenantId,
		CropCycleId: cropCycleId,
		Name:        input.Name,
		CropName:    input.CropName,
		AcreArea:    input.AcreArea,
		IsActive:    newTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func GetProject(ctx context.Context, id string) (*Project, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[Project](ctx, tenantId, id)
}
