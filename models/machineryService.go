package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/utils"
)

// MachineryService bills machine work (tractor hours, harvester runs) either
// to the shared pool or to one party.
type MachineryService struct {
	ID          string  `gorm:"primaryKey;size:36" json:"id"`
	TenantId    string  `gorm:"size:36;not null;index" json:"tenant_id"`
	CropCycleId string  `gorm:"size:36;not null;index" json:"crop_cycle_id"`
	ProjectId   *string `gorm:"size:36;index" json:"project_id"`
	MachineId   string  `gorm:"size:36;not null;index" json:"machine_id"`
	PartyId     *string `gorm:"size:36;index" json:"party_id"`

	ServiceNumber string          `gorm:"size:64" json:"service_number"`
	SequenceNo    decimal.Decimal `gorm:"type:decimal(15);not null" json:"sequence_no"`
	ServiceDate   time.Time       `gorm:"not null" json:"service_date"`
	Hours         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"hours"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Scope         AllocationScope `gorm:"size:16;not null;default:'SHARED'" json:"scope"`

	Status                 DomainStatus `gorm:"size:10;not null;default:'DRAFT';index" json:"status"`
	PostingGroupId         *string      `gorm:"size:36;index" json:"posting_group_id"`
	ReversalPostingGroupId *string      `gorm:"size:36" json:"reversal_posting_group_id"`
	ReversedAt             *time.Time   `json:"reversed_at"`
	ReversedBy             string       `gorm:"size:255" json:"reversed_by"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMachineryService struct {
	CropCycleId string          `json:"crop_cycle_id" validate:"required"`
	ProjectId   string          `json:"project_id"`
	MachineId   string          `json:"machine_id" validate:"required"`
	PartyId     string          `json:"party_id"`
	ServiceDate time.Time       `json:"service_date" validate:"required"`
	Hours       decimal.Decimal `json:"hours"`
	Amount      decimal.Decimal `json:"amount"`
	Scope       AllocationScope `json:"scope" validate:"omitempty,oneof=SHARED HARI_ONLY LANDLORD_ONLY PARTY_ONLY"`
}

func CreateMachineryService(ctx context.Context, input *NewMachineryService) (*MachineryService, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, errors.New("amount must be positive")
	}
	if err := utils.ValidateResourceId[CropCycle](ctx, tenantId, input.CropCycleId); err != nil {
		return nil, errors.New("crop cycle not found")
	}
	if input.Scope == AllocationScopePartyOnly && input.PartyId == "" {
		return nil, errors.New("party is required for PARTY_ONLY scope")
	}

	scope := input.Scope
	if scope == "" {
		scope = AllocationScopeShared
	}
	var projectId, partyId *string
	if input.ProjectId != "" {
		projectId = &input.ProjectId
	}
	if input.PartyId != "" {
		partyId = &input.PartyId
	}
	service := MachineryService{
		ID:          NewId(),
		TenantId:    tenantId,
		CropCycleId: input.CropCycleId,
		ProjectId:   projectId,
		MachineId:   input.MachineId,
		PartyId:     partyId,
		ServiceDate: input.ServiceDate,
		Hours:       input.Hours,
		Amount:      input.Amount,
		Scope:       scope,
		Status:      DomainStatusDraft,
	}
	seqNo, err := utils.GetSequence[MachineryService](ctx, tenantId)
	if err != nil {
		return nil, err
	}
	service.SequenceNo = decimal.NewFromInt(seqNo)
	service.ServiceNumber = "MCS-" + service.SequenceNo.String()

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&service).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

func GetMachineryService(ctx context.Context, id string) (*MachineryService, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[MachineryService](ctx, tenantId, id)
}
