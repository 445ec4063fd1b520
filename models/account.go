package models

import (
	"context"
	"errors"
	"time"

	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/utils"
	"gorm.io/gorm"
)

// System account codes. These accounts are created automatically per tenant
// and are never user-deletable.
const (
	SystemAccountCash                       = "CSH"
	SystemAccountAccountsReceivable         = "ARC"
	SystemAccountAccountsPayable            = "APY"
	SystemAccountPoolIncome                 = "PIN"
	SystemAccountPoolExpense                = "PEX"
	SystemAccountMachineryIncome            = "MIN"
	SystemAccountMachineryExpense           = "MEX"
	SystemAccountLeaseExpense               = "LEX"
	SystemAccountPayrollExpense             = "WEX"
	SystemAccountCurrentEarnings            = "CUE"
	SystemAccountRetainedEarnings           = "RTE"
	SystemAccountProfitDistributionClearing = "PDC"
	SystemAccountPartyControl               = "PCA"
)

type Account struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	TenantId    string          `gorm:"size:36;index;not null;index:uniq_account_code,unique,priority:1" json:"tenant_id"`
	Code        string          `gorm:"size:100;not null;index:uniq_account_code,unique,priority:2" json:"code"`
	Name        string          `gorm:"size:255;not null;index" json:"name"`
	MainType    AccountMainType `gorm:"size:10;not null;index" json:"main_type"`
	Description string          `gorm:"type:text" json:"description"`
	// PartyId links a party-control account to its party. Set only for
	// system accounts with SystemCode = PCA.
	PartyId    *string   `gorm:"size:36;index" json:"party_id"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	IsSystem   *bool     `gorm:"not null;default:false" json:"is_system"`
	SystemCode string    `gorm:"size:3;index" json:"system_code"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	Code        string          `json:"code" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	MainType    AccountMainType `json:"main_type" validate:"required"`
	Description string          `json:"description"`
}

// validate input for both create & update. (id = "" for create)
func (input *NewAccount) validate(ctx context.Context, tenantId string, id string) error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if !input.MainType.Valid() {
		return errors.New("invalid account main type")
	}
	if err := utils.ValidateUnique[Account](ctx, tenantId, "code", input.Code, id); err != nil {
		return err
	}
	if err := utils.ValidateUnique[Account](ctx, tenantId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId, ""); err != nil {
		return nil, err
	}

	account := Account{
		ID:          NewId(),
		TenantId:    tenantId,
		Code:        input.Code,
		Name:        input.Name,
		MainType:    input.MainType,
		Description: input.Description,
		IsActive:    newTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func UpdateAccount(ctx context.Context, id string, input *NewAccount) (*Account, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId, id); err != nil {
		return nil, err
	}
	account, err := utils.FetchModel[Account](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	if account.IsSystem != nil && *account.IsSystem {
		return nil, errors.New("system accounts cannot be modified")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(account).Updates(map[string]interface{}{
		"Code":        input.Code,
		"Name":        input.Name,
		"MainType":    input.MainType,
		"Description": input.Description,
	}).Error
	if err != nil {
		return nil, err
	}
	return account, nil
}

func DeleteAccount(ctx context.Context, id string) (*Account, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	account, err := utils.FetchModel[Account](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	if account.IsSystem != nil && *account.IsSystem {
		return nil, errors.New("system accounts cannot be deleted")
	}

	db := config.GetDB()
	var used int64
	if err := db.WithContext(ctx).Model(&LedgerEntry{}).
		Where("tenant_id = ? AND account_id = ?", tenantId, id).
		Count(&used).Error; err != nil {
		return nil, err
	}
	if used > 0 {
		return nil, errors.New("account has ledger entries and cannot be deleted")
	}
	if err := db.WithContext(ctx).Delete(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

func GetAccount(ctx context.Context, id string) (*Account, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[Account](ctx, tenantId, id)
}

// GetSystemAccount looks up one of the tenant's system-managed accounts by
// its system code.
func GetSystemAccount(tx *gorm.DB, tenantId string, systemCode string) (*Account, error) {
	var account Account
	err := tx.
		Where("tenant_id = ? AND system_code = ? AND is_system = true AND party_id IS NULL", tenantId, systemCode).
		First(&account).Error
	if err != nil {
		return nil, errors.New("system account not found: " + systemCode)
	}
	return &account, nil
}

// GetOrCreatePartyControlAccount returns the party's control account,
// creating it lazily on first use. Control accounts carry the running balance
// owed to/by a party across advances, deductions and settlements.
func GetOrCreatePartyControlAccount(tx *gorm.DB, tenantId string, party *Party) (*Account, error) {
	var account Account
	err := tx.
		Where("tenant_id = ? AND system_code = ? AND party_id = ?", tenantId, SystemAccountPartyControl, party.ID).
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	partyId := party.ID
	account = Account{
		ID:         NewId(),
		TenantId:   tenantId,
		Code:       "2150-" + party.Code,
		Name:       party.Name + " Control",
		MainType:   AccountMainTypeLiability,
		PartyId:    &partyId,
		IsActive:   newTrue(),
		IsSystem:   newTrue(),
		SystemCode: SystemAccountPartyControl,
	}
	if err := tx.Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}
