package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/models"
	"github.com/zaraisoft/farmbooks_backend/utils"
)

// PartyAdvanceInput is a cash advance paid to a party ahead of settlement.
// AdvanceRef is the caller's stable reference (voucher number); it is the
// idempotency identity, so retrying the same voucher posts exactly once.
type PartyAdvanceInput struct {
	AdvanceRef  string          `json:"advance_ref" validate:"required"`
	PartyId     string          `json:"party_id" validate:"required"`
	ProjectId   string          `json:"project_id"`
	CropCycleId string          `json:"crop_cycle_id"`
	AdvanceDate time.Time       `json:"advance_date" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Notes       string          `json:"notes"`
}

// PostPartyAdvance pays cash to a party against their future settlement
// share:
//
//	Dr Party Control / Cr Cash
//
// The party's control account goes debit-heavy; the settlement credit later
// nets it off. No draft stage: advances are cash events, posted directly.
func PostPartyAdvance(ctx context.Context, input *PartyAdvanceInput) (*models.PostingGroup, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, invalidInput("advance amount must be positive")
	}

	party, err := models.GetParty(ctx, input.PartyId)
	if err != nil {
		return nil, errors.New("party not found")
	}

	db := config.GetDB().WithContext(ctx)
	control, err := models.GetOrCreatePartyControlAccount(db, tenantId, party)
	if err != nil {
		return nil, err
	}
	cash, err := models.GetSystemAccount(db, tenantId, models.SystemAccountCash)
	if err != nil {
		return nil, err
	}

	desc := "Advance " + input.AdvanceRef + " to " + party.Name
	posting := &PostingInput{
		SourceType:  models.SourceTypeAdvance,
		SourceId:    input.AdvanceRef,
		CropCycleId: input.CropCycleId,
		PostingDate: input.AdvanceDate,
		Description: desc,
	}
	if err := posting.AppendEntry(control.ID, desc, input.Amount, decimal.Zero); err != nil {
		return nil, err
	}
	if err := posting.AppendEntry(cash.ID, desc, decimal.Zero, input.Amount); err != nil {
		return nil, err
	}
	scope := models.AllocationScopePartyOnly
	posting.Allocations = append(posting.Allocations, AllocationInput{
		ProjectId: input.ProjectId,
		PartyId:   input.PartyId,
		Type:      models.AllocationTypeAdvance,
		Scope:     &scope,
		Amount:    input.Amount,
	})
	return Post(ctx, posting)
}
