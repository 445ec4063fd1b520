package models

import (
	"context"
	"errors"
	"time"

	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/utils"
)

// Party is a settlement counterparty: the landlord, a tenant-farmer (hari)
// or an intermediary (kamdar).
type Party struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TenantId  string    `gorm:"size:36;index;not null;index:uniq_party_code,unique,priority:1" json:"tenant_id"`
	Code      string    `gorm:"size:100;not null;index:uniq_party_code,unique,priority:2" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Role      PartyRole `gorm:"size:16;not null;index" json:"role"`
	Phone     string    `gorm:"size:64" json:"phone"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewParty struct {
	Code  string    `json:"code" validate:"required"`
	Name  string    `json:"name" validate:"required"`
	Role  PartyRole `json:"role" validate:"required,oneof=LANDLORD HARI KAMDAR"`
	Phone string    `json:"phone"`
}

func CreateParty(ctx context.Context, input *NewParty) (*Party, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Party](ctx, tenantId, "code", input.Code, ""); err != nil {
		return nil, err
	}

	party := Party{
		ID:       NewId(),
		TenantId: tenantId,
		Code:     input.Code,
		Name:     input.Name,
		Role:     input.Role,
		Phone:    input.Phone,
		IsActive: newTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&party).Error; err != nil {
		return nil, err
	}
	return &party, nil
}

func GetParty(ctx context.Context, id string) (*Party, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[Party](ctx, tenantId, id)
}
