package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/models"
	"github.com/zaraisoft/farmbooks_backend/utils"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// EntryInput is one debit-or-credit line of a posting. Exactly one of
// Debit/Credit must be positive.
type EntryInput struct {
	AccountId   string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// AllocationInput attributes part of the posting's effect to a
// project/party/machine for later settlement.
type AllocationInput struct {
	ProjectId    string
	PartyId      string
	MachineId    string
	Type         models.AllocationType
	Scope        *models.AllocationScope
	Amount       decimal.Decimal
	Quantity     decimal.Decimal
	Unit         string
	RuleSnapshot *string
}

// PostingInput describes one business event to be recorded as a posting
// group. (SourceType, SourceId) is the idempotency identity: posting the same
// pair twice returns the group created by the first call.
type PostingInput struct {
	SourceType     models.PostingSourceType
	SourceId       string
	CropCycleId    string
	PostingDate    time.Time
	Description    string
	IdempotencyKey string
	Entries        []EntryInput
	Allocations    []AllocationInput

	// set internally by the reversal/correction paths
	reversalOfPostingGroupId *string
	reversalReason           *string
	allowNegativeAllocations bool
}

// AppendEntry adds one ledger line after checking its shape.
func (in *PostingInput) AppendEntry(accountId, description string, debit, credit decimal.Decimal) error {
	if err := validateEntryAmounts(debit, credit); err != nil {
		return err
	}
	in.Entries = append(in.Entries, EntryInput{
		AccountId:   accountId,
		Description: description,
		Debit:       debit,
		Credit:      credit,
	})
	return nil
}

// appendSigned records amount as debit->credit; a negative amount swaps the
// sides so every stored row stays one-sided and non-negative. Zero amounts
// produce no rows.
func (in *PostingInput) appendSigned(debitAccountId, creditAccountId, description string, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	if amount.IsNegative() {
		debitAccountId, creditAccountId = creditAccountId, debitAccountId
		amount = amount.Neg()
	}
	in.Entries = append(in.Entries,
		EntryInput{AccountId: debitAccountId, Description: description, Debit: amount},
		EntryInput{AccountId: creditAccountId, Description: description, Credit: amount},
	)
}

func validateEntryAmounts(debit, credit decimal.Decimal) error {
	if debit.IsNegative() || credit.IsNegative() {
		return invalidInput("ledger amounts must not be negative")
	}
	if debit.IsPositive() == credit.IsPositive() {
		return invalidInput("exactly one of debit or credit must be positive")
	}
	return nil
}

func (in *PostingInput) validate() error {
	if !models.IsSourceTypeRegistered(in.SourceType) {
		return invalidInput("unknown source type: " + string(in.SourceType))
	}
	if in.SourceId == "" {
		return invalidInput("source id is required")
	}
	if in.PostingDate.IsZero() {
		return invalidInput("posting date is required")
	}
	if len(in.Entries) == 1 {
		return invalidInput("a posting group needs at least two ledger entries")
	}
	if len(in.Entries) == 0 && len(in.Allocations) == 0 {
		return invalidInput("a posting group must carry ledger entries or allocations")
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, e := range in.Entries {
		if e.AccountId == "" {
			return invalidInput("ledger entry account id is required")
		}
		if err := validateEntryAmounts(e.Debit, e.Credit); err != nil {
			return err
		}
		totalDebit = totalDebit.Add(e.Debit)
		totalCredit = totalCredit.Add(e.Credit)
	}
	if !totalDebit.Equal(totalCredit) {
		return &UnbalancedPostingError{
			SourceType: string(in.SourceType),
			SourceId:   in.SourceId,
			Debit:      totalDebit,
			Credit:     totalCredit,
		}
	}

	for _, a := range in.Allocations {
		if !models.IsAllocationTypeRegistered(a.Type) {
			return invalidInput("unknown allocation type: " + string(a.Type))
		}
		if a.Scope != nil && !a.Scope.Valid() {
			return invalidInput("unknown allocation scope: " + string(*a.Scope))
		}
		if a.Amount.IsNegative() && !in.allowNegativeAllocations {
			return invalidInput("allocation amounts must not be negative")
		}
	}
	return nil
}

// Post records one business event as an immutable posting group. Safe to
// retry: a second call with the same (source type, source id) returns the
// group created by the first.
func Post(ctx context.Context, input *PostingInput) (group *models.PostingGroup, err error) {
	ctx, span := tracer.Start(ctx, "workflow.Post", sourceAttributes(string(input.SourceType), input.SourceId))
	defer func() { endSpan(span, err) }()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	db := config.GetDB()

	existing, err := findPostingGroupBySource(db.WithContext(ctx), tenantId, input.SourceType, input.SourceId)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireTenantPostingLock(tx, tenantId); err != nil {
			return err
		}
		defer ReleaseTenantPostingLock(tx, tenantId)
		g, _, err := postGroup(tx, ctx, tenantId, input)
		if err != nil {
			return err
		}
		group = g
		return nil
	})
	if err != nil {
		config.LogError(config.GetLogger(), "posting.go", "Post", "posting failed", input.SourceId, err)
		return nil, err
	}
	return group, nil
}

// postGroup inserts one posting group inside the caller's transaction. The
// caller must hold the tenant posting lock. created=false means another
// writer got there first and the existing group is returned.
func postGroup(tx *gorm.DB, ctx context.Context, tenantId string, input *PostingInput) (*models.PostingGroup, bool, error) {
	if err := input.validate(); err != nil {
		return nil, false, err
	}

	var cropCycleId *string
	if input.CropCycleId != "" {
		cycle, err := checkPostableCropCycle(tx, ctx, tenantId, input.CropCycleId)
		if err != nil {
			return nil, false, err
		}
		cropCycleId = &cycle.ID
	}
	if err := checkAccountTenancy(tx, ctx, tenantId, input.Entries); err != nil {
		return nil, false, err
	}

	seqNo, err := utils.GetSequence[models.PostingGroup](ctx, tenantId)
	if err != nil {
		return nil, false, err
	}

	group := models.PostingGroup{
		ID:                       models.NewId(),
		TenantId:                 tenantId,
		CropCycleId:              cropCycleId,
		SourceType:               input.SourceType,
		SourceId:                 input.SourceId,
		SequenceNo:               decimal.NewFromInt(seqNo),
		PostingDate:              models.DateOnly(input.PostingDate),
		Description:              input.Description,
		ReversalOfPostingGroupId: input.reversalOfPostingGroupId,
		ReversalReason:           input.reversalReason,
	}
	group.GroupNumber = "PG-" + group.SequenceNo.String()
	if input.IdempotencyKey != "" {
		key := input.IdempotencyKey
		group.IdempotencyKey = &key
	}

	for _, e := range input.Entries {
		desc := e.Description
		if desc == "" {
			desc = input.Description
		}
		group.Entries = append(group.Entries, models.LedgerEntry{
			ID:             models.NewId(),
			PostingGroupId: group.ID,
			TenantId:       tenantId,
			AccountId:      e.AccountId,
			PostingDate:    group.PostingDate,
			Description:    desc,
			DebitAmount:    e.Debit,
			CreditAmount:   e.Credit,
		})
	}
	for _, a := range input.Allocations {
		row := models.AllocationRow{
			ID:              models.NewId(),
			PostingGroupId:  group.ID,
			TenantId:        tenantId,
			AllocationType:  a.Type,
			AllocationScope: a.Scope,
			Amount:          a.Amount,
			Quantity:        a.Quantity,
			Unit:            a.Unit,
			EffectiveDate:   group.PostingDate,
			RuleSnapshot:    a.RuleSnapshot,
		}
		if a.ProjectId != "" {
			v := a.ProjectId
			row.ProjectId = &v
		}
		if a.PartyId != "" {
			v := a.PartyId
			row.PartyId = &v
		}
		if a.MachineId != "" {
			v := a.MachineId
			row.MachineId = &v
		}
		group.Allocations = append(group.Allocations, row)
	}

	if err := tx.Create(&group).Error; err != nil {
		if isDuplicateKeyErr(err) {
			existing, ferr := findPostingGroupBySource(tx.WithContext(ctx), tenantId, input.SourceType, input.SourceId)
			if ferr != nil {
				return nil, false, ferr
			}
			if existing == nil {
				// Under REPEATABLE READ the winner's row can be invisible
				// to this transaction's snapshot. A fresh session reads
				// committed state.
				existing, ferr = findPostingGroupBySource(config.GetDB().WithContext(ctx), tenantId, input.SourceType, input.SourceId)
				if ferr != nil {
					return nil, false, ferr
				}
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	// Re-read what actually landed. Belt over the input-side check: the
	// transaction rolls back if the stored rows do not balance.
	if err := validateStoredBalance(tx, ctx, tenantId, &group); err != nil {
		return nil, false, err
	}
	return &group, true, nil
}

func checkPostableCropCycle(tx *gorm.DB, ctx context.Context, tenantId string, cropCycleId string) (*models.CropCycle, error) {
	// Unscoped load so a cross-tenant reference surfaces as a mismatch
	// instead of a not-found.
	scanCtx := utils.SetSkipTenantScopeInContext(ctx, true)
	cycle, err := models.GetCropCycleTx(tx.WithContext(scanCtx), cropCycleId)
	if err != nil {
		return nil, errors.New("crop cycle not found")
	}
	if cycle.TenantId != tenantId {
		return nil, &TenantMismatchError{Resource: "crop cycle", ResourceId: cropCycleId}
	}
	if cycle.IsClosed() {
		return nil, &PeriodClosedError{CropCycleId: cropCycleId}
	}
	return cycle, nil
}

func checkAccountTenancy(tx *gorm.DB, ctx context.Context, tenantId string, entries []EntryInput) error {
	ids := make([]string, 0, len(entries))
	seen := map[string]bool{}
	for _, e := range entries {
		if !seen[e.AccountId] {
			seen[e.AccountId] = true
			ids = append(ids, e.AccountId)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	scanCtx := utils.SetSkipTenantScopeInContext(ctx, true)
	var accounts []models.Account
	if err := tx.WithContext(scanCtx).
		Select("id", "tenant_id").
		Where("id IN ?", ids).
		Find(&accounts).Error; err != nil {
		return err
	}
	byId := make(map[string]string, len(accounts))
	for _, a := range accounts {
		byId[a.ID] = a.TenantId
	}
	for _, id := range ids {
		owner, found := byId[id]
		if !found {
			return errors.New("account not found: " + id)
		}
		if owner != tenantId {
			return &TenantMismatchError{Resource: "account", ResourceId: id}
		}
	}
	return nil
}

func validateStoredBalance(tx *gorm.DB, ctx context.Context, tenantId string, group *models.PostingGroup) error {
	var totals struct {
		Debit  decimal.Decimal
		Credit decimal.Decimal
	}
	err := tx.WithContext(ctx).Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(debit_amount), 0) AS debit, COALESCE(SUM(credit_amount), 0) AS credit").
		Where("tenant_id = ? AND posting_group_id = ?", tenantId, group.ID).
		Scan(&totals).Error
	if err != nil {
		return err
	}
	if !totals.Debit.Equal(totals.Credit) {
		return &UnbalancedPostingError{
			SourceType: string(group.SourceType),
			SourceId:   group.SourceId,
			Debit:      totals.Debit,
			Credit:     totals.Credit,
		}
	}
	return nil
}

func findPostingGroupBySource(db *gorm.DB, tenantId string, sourceType models.PostingSourceType, sourceId string) (*models.PostingGroup, error) {
	var group models.PostingGroup
	err := db.Preload("Entries").Preload("Allocations").
		Where("tenant_id = ? AND source_type = ? AND source_id = ?", tenantId, sourceType, sourceId).
		First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func loadPostingGroup(db *gorm.DB, tenantId string, id string) (*models.PostingGroup, error) {
	var group models.PostingGroup
	err := db.Preload("Entries").Preload("Allocations").
		Where("tenant_id = ? AND id = ?", tenantId, id).
		First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}
