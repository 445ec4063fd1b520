package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/utils"
)

// Expense is a thin domain wrapper over the posting engine: a crop-cycle
// cost paid in cash. DRAFT rows are editable; posting and reversal are done
// by the workflow package and only stamp this row.
type Expense struct {
	ID          string  `gorm:"primaryKey;size:36" json:"id"`
	TenantId    string  `gorm:"size:36;not null;index" json:"tenant_id"`
	CropCycleId string  `gorm:"size:36;not null;index" json:"crop_cycle_id"`
	ProjectId   string  `gorm:"size:36;not null;index" json:"project_id"`
	PartyId     *string `gorm:"size:36;index" json:"party_id"`

	ExpenseNumber string          `gorm:"size:64" json:"expense_number"`
	SequenceNo    decimal.Decimal `gorm:"type:decimal(15);not null" json:"sequence_no"`
	ExpenseDate   time.Time       `gorm:"not null" json:"expense_date"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	// Scope decides who bears the cost at settlement: SHARED enters the
	// pool, HARI_ONLY/LANDLORD_ONLY charge a single side.
	Scope AllocationScope `gorm:"size:16;not null;default:'SHARED'" json:"scope"`
	Notes string          `gorm:"type:text" json:"notes"`

	Status                 DomainStatus `gorm:"size:10;not null;default:'DRAFT';index" json:"status"`
	PostingGroupId         *string      `gorm:"size:36;index" json:"posting_group_id"`
	ReversalPostingGroupId *string      `gorm:"size:36" json:"reversal_posting_group_id"`
	ReversedAt             *time.Time   `json:"reversed_at"`
	ReversedBy             string       `gorm:"size:255" json:"reversed_by"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewExpense struct {
	CropCycleId string          `json:"crop_cycle_id" validate:"required"`
	ProjectId   string          `json:"project_id" validate:"required"`
	PartyId     string          `json:"party_id"`
	ExpenseDate time.Time       `json:"expense_date" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Scope       AllocationScope `json:"scope" validate:"omitempty,oneof=SHARED HARI_ONLY LANDLORD_ONLY PARTY_ONLY"`
	Notes       string          `json:"notes"`
}

func (input *NewExpense) validate(ctx context.Context, tenantId string) error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if !input.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if err := utils.ValidateResourceId[CropCycle](ctx, tenantId, input.CropCycleId); err != nil {
		return errors.New("crop cycle not found")
	}
	if err := utils.ValidateResourceId[Project](ctx, tenantId, input.ProjectId); err != nil {
		return errors.New("project not found")
	}
	if input.PartyId != "" {
		if err := utils.ValidateResourceId[Party](ctx, tenantId, input.PartyId); err != nil {
			return errors.New("party not found")
		}
	}
	return nil
}

func CreateExpense(ctx context.Context, input *NewExpense) (*Expense, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}

	scope := input.Scope
	if scope == "" {
		scope = AllocationScopeShared
	}
	var partyId *string
	if input.PartyId != "" {
		partyId = &input.PartyId
	}
	expense := Expense{
		ID:          NewId(),
		TenantId:    tenantId,
		CropCycleId: input.CropCycleId,
		ProjectId:   input.ProjectId,
		PartyId:     partyId,
		ExpenseDate: input.ExpenseDate,
		Amount:      input.Amount,
		Scope:       scope,
		Notes:       input.Notes,
		Status:      DomainStatusDraft,
	}
	seqNo, err := utils.GetSequence[Expense](ctx, tenantId)
	if err != nil {
		return nil, err
	}
	expense.SequenceNo = decimal.NewFromInt(seqNo)
	expense.ExpenseNumber = "EXP-" + expense.SequenceNo.String()

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&expense).Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

func UpdateExpense(ctx context.Context, id string, input *NewExpense) (*Expense, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}
	expense, err := utils.FetchModel[Expense](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	if expense.Status != DomainStatusDraft {
		return nil, errors.New("only draft expenses can be edited")
	}

	scope := input.Scope
	if scope == "" {
		scope = AllocationScopeShared
	}
	var partyId *string
	if input.PartyId != "" {
		partyId = &input.PartyId
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Model(expense).Updates(map[string]interface{}{
		"CropCycleId": input.CropCycleId,
		"ProjectId":   input.ProjectId,
		"PartyId":     partyId,
		"ExpenseDate": input.ExpenseDate,
		"Amount":      input.Amount,
		"Scope":       scope,
		"Notes":       input.Notes,
	}).Error
	if err != nil {
		return nil, err
	}
	return expense, nil
}

func GetExpense(ctx context.Context, id string) (*Expense, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	return utils.FetchModel[Expense](ctx, tenantId, id)
}
