package workflow

import (
	"context"
	"time"

	"github.com/zaraisoft/farmbooks_backend/models"
	"github.com/zaraisoft/farmbooks_backend/utils"
)

// ManualJournalInput is a free-form balanced journal for adjustments the
// domain documents do not cover. Reference is the idempotency identity.
type ManualJournalInput struct {
	Reference   string    `json:"reference" validate:"required"`
	CropCycleId string    `json:"crop_cycle_id"`
	JournalDate time.Time `json:"journal_date" validate:"required"`
	Description string    `json:"description"`
	Entries     []EntryInput
	Allocations []AllocationInput
}

// PostManualJournal records a hand-written journal through the same engine
// as every domain document: balance, period lock, tenancy and idempotency
// checks all apply.
func PostManualJournal(ctx context.Context, input *ManualJournalInput) (*models.PostingGroup, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if len(input.Entries) < 2 {
		return nil, invalidInput("a manual journal needs at least two entries")
	}
	return Post(ctx, &PostingInput{
		SourceType:  models.SourceTypeManualJournal,
		SourceId:    input.Reference,
		CropCycleId: input.CropCycleId,
		PostingDate: input.JournalDate,
		Description: input.Description,
		Entries:     input.Entries,
		Allocations: input.Allocations,
	})
}
