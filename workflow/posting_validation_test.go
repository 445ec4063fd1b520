package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zaraisoft/farmbooks_backend/models"
)

func balancedInput() *PostingInput {
	return &PostingInput{
		SourceType:  models.SourceTypeManualJournal,
		SourceId:    "jrn-1",
		PostingDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Entries: []EntryInput{
			{AccountId: "acct-cash", Debit: decimal.NewFromInt(500)},
			{AccountId: "acct-income", Credit: decimal.NewFromInt(500)},
		},
	}
}

func TestValidateEntryAmounts(t *testing.T) {
	cases := []struct {
		name    string
		debit   string
		credit  string
		wantErr bool
	}{
		{"debit only", "100", "0", false},
		{"credit only", "0", "100", false},
		{"both zero", "0", "0", true},
		{"both positive", "100", "100", true},
		{"negative debit", "-100", "0", true},
		{"negative credit", "0", "-100", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateEntryAmounts(decimal.RequireFromString(tc.debit), decimal.RequireFromString(tc.credit))
			if (err != nil) != tc.wantErr {
				t.Fatalf("validateEntryAmounts(%s, %s) err=%v; wantErr=%v", tc.debit, tc.credit, err, tc.wantErr)
			}
		})
	}
}

func TestPostingInputValidateBalanced(t *testing.T) {
	if err := balancedInput().validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestPostingInputValidateUnbalanced(t *testing.T) {
	input := balancedInput()
	input.Entries[1].Credit = decimal.NewFromInt(400)

	err := input.validate()
	var ube *UnbalancedPostingError
	if !errors.As(err, &ube) {
		t.Fatalf("expected UnbalancedPostingError; got %v", err)
	}
	if !ube.Debit.Equal(decimal.NewFromInt(500)) || !ube.Credit.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("unexpected totals: debit=%s credit=%s", ube.Debit.String(), ube.Credit.String())
	}
}

func TestPostingInputValidateSingleEntry(t *testing.T) {
	input := balancedInput()
	input.Entries = input.Entries[:1]
	if err := input.validate(); err == nil {
		t.Fatal("expected single-entry posting to be rejected")
	}
}

func TestPostingInputValidateUnknownSourceType(t *testing.T) {
	input := balancedInput()
	input.SourceType = "NOT_A_THING"
	if err := input.validate(); err == nil {
		t.Fatal("expected unknown source type to be rejected")
	}
}

func TestPostingInputValidateReversalSourceTypeAccepted(t *testing.T) {
	input := balancedInput()
	input.SourceType = models.ReversalSourceType(models.SourceTypeSale)
	if err := input.validate(); err != nil {
		t.Fatalf("reversal source type rejected: %v", err)
	}
	input.SourceType = models.CorrectionSourceType(models.SourceTypeExpense)
	if err := input.validate(); err != nil {
		t.Fatalf("correction source type rejected: %v", err)
	}
}

func TestPostingInputValidateRegisteredCustomSourceType(t *testing.T) {
	custom := models.PostingSourceType("WATER_CHARGE")
	input := balancedInput()
	input.SourceType = custom
	if err := input.validate(); err == nil {
		t.Fatal("expected unregistered custom type to be rejected")
	}

	models.RegisterSourceType(custom)
	if err := input.validate(); err != nil {
		t.Fatalf("registered custom type rejected: %v", err)
	}
	input.SourceType = models.ReversalSourceType(custom)
	if err := input.validate(); err != nil {
		t.Fatalf("reversal of registered custom type rejected: %v", err)
	}
}

func TestPostingInputValidateAllocations(t *testing.T) {
	shared := models.AllocationScopeShared
	input := balancedInput()
	input.Allocations = []AllocationInput{
		{Type: models.AllocationTypePoolShare, Scope: &shared, Amount: decimal.NewFromInt(500)},
	}
	if err := input.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	input.Allocations[0].Type = "NOT_REGISTERED"
	if err := input.validate(); err == nil {
		t.Fatal("expected unknown allocation type to be rejected")
	}

	input.Allocations[0].Type = models.AllocationTypePoolShare
	bad := models.AllocationScope("SOMETIMES")
	input.Allocations[0].Scope = &bad
	if err := input.validate(); err == nil {
		t.Fatal("expected unknown allocation scope to be rejected")
	}
}

func TestPostingInputValidateNegativeAllocation(t *testing.T) {
	input := balancedInput()
	input.Allocations = []AllocationInput{
		{Type: models.AllocationTypePoolShare, Amount: decimal.NewFromInt(-500)},
	}
	if err := input.validate(); err == nil {
		t.Fatal("expected negative allocation to be rejected on the normal path")
	}

	// Reversals and corrections negate amounts on purpose.
	input.allowNegativeAllocations = true
	if err := input.validate(); err != nil {
		t.Fatalf("negative allocation rejected on reversal path: %v", err)
	}
}

func TestValidationFailuresAreTyped(t *testing.T) {
	unbalanced := balancedInput()
	unbalanced.Entries[1].Credit = decimal.NewFromInt(400)

	noDate := balancedInput()
	noDate.PostingDate = time.Time{}

	unknownType := balancedInput()
	unknownType.SourceType = "NOT_A_THING"

	twoSided := balancedInput()
	twoSided.Entries[0].Credit = decimal.NewFromInt(500)

	cases := []struct {
		name  string
		input *PostingInput
	}{
		{"missing posting date", noDate},
		{"unknown source type", unknownType},
		{"two-sided entry", twoSided},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.input.validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError; got %v", err)
			}
		})
	}

	// Unbalanced input keeps its own richer type.
	err := unbalanced.validate()
	var ube *UnbalancedPostingError
	if !errors.As(err, &ube) {
		t.Fatalf("expected UnbalancedPostingError; got %v", err)
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		t.Fatal("unbalanced input should not match ValidationError")
	}
}

func TestAppendSignedSwapsNegativeAmounts(t *testing.T) {
	input := &PostingInput{}
	input.appendSigned("acct-a", "acct-b", "x", decimal.NewFromInt(100))
	input.appendSigned("acct-a", "acct-b", "x", decimal.NewFromInt(-40))
	input.appendSigned("acct-a", "acct-b", "x", decimal.Zero)

	if len(input.Entries) != 4 {
		t.Fatalf("expected 4 entries; got %d", len(input.Entries))
	}
	// Positive amount: a debited, b credited.
	if input.Entries[0].AccountId != "acct-a" || !input.Entries[0].Debit.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected first entry: %+v", input.Entries[0])
	}
	// Negative amount: sides swapped, magnitude stored.
	if input.Entries[2].AccountId != "acct-b" || !input.Entries[2].Debit.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected swapped entry: %+v", input.Entries[2])
	}
	for i, e := range input.Entries {
		if err := validateEntryAmounts(e.Debit, e.Credit); err != nil {
			t.Fatalf("entry %d not one-sided: %v", i, err)
		}
	}
}

func TestAppendEntryRejectsTwoSidedRows(t *testing.T) {
	input := &PostingInput{}
	if err := input.AppendEntry("acct-a", "x", decimal.NewFromInt(10), decimal.NewFromInt(10)); err == nil {
		t.Fatal("expected two-sided entry to be rejected")
	}
	if len(input.Entries) != 0 {
		t.Fatalf("rejected entry was appended")
	}
}
