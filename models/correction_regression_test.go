package models_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/models"
	"github.com/zaraisoft/farmbooks_backend/utils"
	"github.com/zaraisoft/farmbooks_backend/workflow"
)

func TestCorrectionBatchReverseRepostAndReclass(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "farmbooks_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "test@local")

	tenant, err := models.CreateTenant(ctx, &models.NewTenant{Name: "Correction Farm"})
	if err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	ctx = utils.SetTenantIdInContext(ctx, tenant.ID)

	hari, err := models.CreateParty(ctx, &models.NewParty{Code: "HR-1", Name: "Hari One", Role: models.PartyRoleHari})
	if err != nil {
		t.Fatalf("CreateParty: %v", err)
	}
	cycle, err := models.CreateCropCycle(ctx, &models.NewCropCycle{
		Name:      "Cotton 2026",
		StartDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateCropCycle: %v", err)
	}
	project, err := models.CreateProject(ctx, &models.NewProject{CropCycleId: cycle.ID, Name: "South Block Cotton"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	db := config.GetDB()
	cash, err := models.GetSystemAccount(db.WithContext(ctx), tenant.ID, models.SystemAccountCash)
	if err != nil {
		t.Fatalf("GetSystemAccount(cash): %v", err)
	}
	poolExpense, err := models.GetSystemAccount(db.WithContext(ctx), tenant.ID, models.SystemAccountPoolExpense)
	if err != nil {
		t.Fatalf("GetSystemAccount(pool expense): %v", err)
	}
	machineryExpense, err := models.GetSystemAccount(db.WithContext(ctx), tenant.ID, models.SystemAccountMachineryExpense)
	if err != nil {
		t.Fatalf("GetSystemAccount(machinery expense): %v", err)
	}

	// A journal that hit the wrong expense account.
	shared := models.AllocationScopeShared
	wrong, err := workflow.Post(ctx, &workflow.PostingInput{
		SourceType:  models.SourceTypeManualJournal,
		SourceId:    "MJ-FIX-001",
		CropCycleId: cycle.ID,
		PostingDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Description: "Tractor diesel",
		Entries: []workflow.EntryInput{
			{AccountId: poolExpense.ID, Debit: decimal.NewFromInt(8000)},
			{AccountId: cash.ID, Credit: decimal.NewFromInt(8000)},
		},
		Allocations: []workflow.AllocationInput{
			{ProjectId: project.ID, Type: models.AllocationTypePoolShare, Scope: &shared, Amount: decimal.NewFromInt(8000)},
		},
	})
	if err != nil {
		t.Fatalf("Post(wrong journal): %v", err)
	}

	corrections, err := workflow.RunCorrectionBatch(ctx, []*workflow.CorrectionInput{
		{
			OriginalPostingGroupId: wrong.ID,
			AccountRemap:           map[string]string{poolExpense.ID: machineryExpense.ID},
			Reason:                 "Diesel belongs to machinery running",
		},
	})
	if err != nil {
		t.Fatalf("RunCorrectionBatch: %v", err)
	}
	if len(corrections) != 1 || corrections[0].CorrectedPostingGroupId == nil {
		t.Fatalf("unexpected correction result: %+v", corrections)
	}

	// Net effect: pool expense back to zero, machinery expense carries it.
	if bal := accountBalance(t, ctx, tenant.ID, poolExpense.ID); !bal.IsZero() {
		t.Fatalf("pool expense balance = %s; want 0", bal.String())
	}
	if bal := accountBalance(t, ctx, tenant.ID, machineryExpense.ID); !bal.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("machinery expense balance = %s; want 8000", bal.String())
	}

	// Re-running the batch applies nothing new.
	again, err := workflow.RunCorrectionBatch(ctx, []*workflow.CorrectionInput{
		{
			OriginalPostingGroupId: wrong.ID,
			AccountRemap:           map[string]string{poolExpense.ID: machineryExpense.ID},
			Reason:                 "Diesel belongs to machinery running",
		},
	})
	if err != nil {
		t.Fatalf("RunCorrectionBatch(retry): %v", err)
	}
	if again[0].ID != corrections[0].ID {
		t.Fatalf("retry applied a second correction")
	}
	if bal := accountBalance(t, ctx, tenant.ID, machineryExpense.ID); !bal.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("machinery expense balance after retry = %s; want 8000", bal.String())
	}

	// Reclass: move 3000 of the shared cost onto hari without touching any
	// account balance.
	hariOnly := models.AllocationScopeHariOnly
	corrected := *corrections[0].CorrectedPostingGroupId
	reclass, err := workflow.ApplyReclassCorrection(ctx, &workflow.ReclassInput{
		PostingGroupId: corrected,
		ProjectId:      project.ID,
		PartyId:        hari.ID,
		Amount:         decimal.NewFromInt(3000),
		FromType:       models.AllocationTypePoolShare,
		FromScope:      &shared,
		ToType:         models.AllocationTypeHariOnly,
		ToScope:        &hariOnly,
		Reason:         "Hari's plot share of diesel",
	})
	if err != nil {
		t.Fatalf("ApplyReclassCorrection: %v", err)
	}
	reclassRetry, err := workflow.ApplyReclassCorrection(ctx, &workflow.ReclassInput{
		PostingGroupId: corrected,
		ProjectId:      project.ID,
		PartyId:        hari.ID,
		Amount:         decimal.NewFromInt(3000),
		FromType:       models.AllocationTypePoolShare,
		FromScope:      &shared,
		ToType:         models.AllocationTypeHariOnly,
		ToScope:        &hariOnly,
		Reason:         "Hari's plot share of diesel",
	})
	if err != nil {
		t.Fatalf("ApplyReclassCorrection(retry): %v", err)
	}
	if reclassRetry.ID != reclass.ID {
		t.Fatalf("reclass retry applied twice")
	}

	// The reclass group carries allocations only.
	var entryCount int64
	if err := db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Where("tenant_id = ? AND posting_group_id = ?", tenant.ID, *reclass.CorrectedPostingGroupId).
		Count(&entryCount).Error; err != nil {
		t.Fatalf("count reclass entries: %v", err)
	}
	if entryCount != 0 {
		t.Fatalf("reclass group has %d ledger entries; want 0", entryCount)
	}

	// Ledger-wide sanity scans come back clean.
	unbalanced, err := workflow.FindUnbalancedPostingGroups(ctx)
	if err != nil {
		t.Fatalf("FindUnbalancedPostingGroups: %v", err)
	}
	if len(unbalanced) != 0 {
		t.Fatalf("unbalanced groups found: %+v", unbalanced)
	}
	leaks, err := workflow.FindClearingAccountLeaks(ctx)
	if err != nil {
		t.Fatalf("FindClearingAccountLeaks: %v", err)
	}
	if len(leaks) != 0 {
		t.Fatalf("clearing account leaks found: %v", leaks)
	}

	// A journal mistakenly routed through the clearing account shows up as a
	// leak until corrected.
	clearing, err := models.GetSystemAccount(db.WithContext(ctx), tenant.ID, models.SystemAccountProfitDistributionClearing)
	if err != nil {
		t.Fatalf("GetSystemAccount(clearing): %v", err)
	}
	leaky, err := workflow.Post(ctx, &workflow.PostingInput{
		SourceType:  models.SourceTypeManualJournal,
		SourceId:    "MJ-FIX-002",
		CropCycleId: cycle.ID,
		PostingDate: time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC),
		Description: "Cash drawn against clearing",
		Entries: []workflow.EntryInput{
			{AccountId: clearing.ID, Debit: decimal.NewFromInt(1200)},
			{AccountId: cash.ID, Credit: decimal.NewFromInt(1200)},
		},
	})
	if err != nil {
		t.Fatalf("Post(leaky journal): %v", err)
	}
	leaks, err = workflow.FindClearingAccountLeaks(ctx)
	if err != nil {
		t.Fatalf("FindClearingAccountLeaks: %v", err)
	}
	if len(leaks) != 1 || leaks[0] != leaky.ID {
		t.Fatalf("leaks = %v; want [%s]", leaks, leaky.ID)
	}

	leakFix, err := workflow.RunCorrectionBatch(ctx, []*workflow.CorrectionInput{
		{
			OriginalPostingGroupId: leaky.ID,
			AccountRemap:           map[string]string{clearing.ID: poolExpense.ID},
			Reason:                 "Drawn for field labour, not distribution",
		},
	})
	if err != nil {
		t.Fatalf("RunCorrectionBatch(leak): %v", err)
	}
	if bal := accountBalance(t, ctx, tenant.ID, clearing.ID); !bal.IsZero() {
		t.Fatalf("clearing balance after leak fix = %s; want 0", bal.String())
	}

	// The original and its reversal stay on record and stay flagged; only the
	// corrected repost is clean.
	leaks, err = workflow.FindClearingAccountLeaks(ctx)
	if err != nil {
		t.Fatalf("FindClearingAccountLeaks: %v", err)
	}
	if len(leaks) != 2 {
		t.Fatalf("leaks after fix = %v; want original and reversal", leaks)
	}
	for _, id := range leaks {
		if id == *leakFix[0].CorrectedPostingGroupId {
			t.Fatalf("corrected group %s flagged as leak", id)
		}
	}
}
