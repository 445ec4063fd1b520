package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/utils"
)

// Sale records a crop sale feeding the settlement pool: cash in, pool
// revenue recognized, optional cost-of-goods charged against the pool.
type Sale struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	TenantId    string `gorm:"size:36;not null;index" json:"tenant_id"`
	CropCycleId string `gorm:"size:36;not null;index" json:"crop_cycle_id"`
	ProjectId   string `gorm:"size:36;not null;index" json:"project_id"`

	SaleNumber string          `gorm:"size:64" json:"sale_number"`
	SequenceNo decimal.Decimal `gorm:"type:decimal(15);not null" json:"sequence_no"`
	SaleDate   time.Time       `gorm:"not null" json:"sale_date"`
	BuyerName  string          `gorm:"size:255" json:"buyer_name"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Unit       string          `gorm:"size:32" json:"unit"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	CogsAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cogs_amount"`

	Status                 DomainStatus `gorm:"size:10;not null;default:'DRAFT';index" json:"status"`
	PostingGroupId         *string      `gorm:"size:36;index" json:"posting_group_id"`
	ReversalPostingGroupId *string      `gorm:"size:36" json:"reversal_posting_group_id"`
	ReversedAt             *time.Time   `json:"reversed_at"`
	ReversedBy             string       `gorm:"size:255" json:"reversed_by"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSale struct {
	CropCycleId string          `json:"crop_cycle_id" validate:"required"`
	ProjectId   string          `json:"project_id" validate:"required"`
	SaleDate    time.Time       `json:"sale_date" validate:"required"`
	BuyerName   string          `json:"buyer_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	Amount      decimal.Decimal `json:"amount"`
	CogsAmount  decimal.Decimal `json:"cogs_amount"`
}

func (input *NewSale) validate(ctx context.Context, tenantId string) error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if !input.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if input.CogsAmount.IsNegative() {
		return errors.New("cogs amount must not be negative")
	}
	if err := utils.ValidateResourceId[CropCycle](ctx, tenantId, input.CropCycleId); err != nil {
		return errors.New("crop cycle not found")
	}
	if err := utils.ValidateResourceId[Project](ctx, tenantId, input.ProjectId); err != nil {
		return errors.New("project not found")
	}
	return nil
}

func CreateSale(ctx context.Context, input *NewSale) (*Sale, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}

	sale := Sale{
		ID:          NewId(),
		TenantId:    tenantId,
		CropCycleId: input.CropCycleId,
		ProjectId:   input.ProjectId,
		SaleDate:    input.SaleDate,
		BuyerName:   input.BuyerName,
		Quantity:    input.Quantity,
		Unit:        input.Unit,
		Amount:      input.Amount,
		CogsAmount:  input.CogsAmount,
		Status:      DomainStatusDraft,
	}
	seqNo, err := utils.GetSequence[Sale](ctx, tenantId)
	if err != nil {
		return nil, err
	}
	sale.SequenceNo = decimal.NewFromInt(seqNo)
	sale.SaleNumber = "SAL-" + sale.SequenceNo.String()

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func GetSale(ctx context.Context, id string) (*Sale, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[Sale](ctx, tenantId, id)
}
