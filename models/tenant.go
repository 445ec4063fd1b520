package models

import (
	"context"
	"time"

	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/utils"
	"gorm.io/gorm"
)

// Tenant is the isolation root: one farm operator's data. Every ledger table
// below carries tenant_id and the tenant guard scopes all queries by it.
type Tenant struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name" validate:"required"`
	Email     string    `gorm:"size:255" json:"email"`
	Timezone  string    `gorm:"size:64;not null;default:'UTC'" json:"timezone"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTenant struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Timezone string `json:"timezone"`
}

func newTrue() *bool {
	b := true
	return &b
}

// CreateTenant provisions the tenant row plus its system chart of accounts in
// one transaction.
func CreateTenant(ctx context.Context, input *NewTenant) (*Tenant, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	tz := input.Timezone
	if tz == "" {
		tz = "UTC"
	}
	tenant := Tenant{
		ID:       NewId(),
		Name:     input.Name,
		Email:    input.Email,
		Timezone: tz,
		IsActive: newTrue(),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}
		if _, err := CreateDefaultAccounts(tx, ctx, tenant.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func GetTenant(ctx context.Context, id string) (*Tenant, error) {
	db := config.GetDB()
	var tenant Tenant
	if err := db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &tenant, nil
}
