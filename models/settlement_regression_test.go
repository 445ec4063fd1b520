package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zaraisoft/farmbooks_backend/config"
	"github.com/zaraisoft/farmbooks_backend/models"
	"github.com/zaraisoft/farmbooks_backend/utils"
	"github.com/zaraisoft/farmbooks_backend/workflow"
)

func TestPostingSettlementAndPeriodCloseEndToEnd(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
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

	// Tenant bootstrap also creates the default chart of accounts.
	tenant, err := models.CreateTenant(ctx, &models.NewTenant{Name: "Demo Farm", Email: "owner@demo.farm"})
	if err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	ctx = utils.SetTenantIdInContext(ctx, tenant.ID)

	landlord, err := models.CreateParty(ctx, &models.NewParty{Code: "LL-1", Name: "Ghulam", Role: models.PartyRoleLandlord})
	if err != nil {
		t.Fatalf("CreateParty(landlord): %v", err)
	}
	hari, err := models.CreateParty(ctx, &models.NewParty{Code: "HR-1", Name: "Allah Bux", Role: models.PartyRoleHari})
	if err != nil {
		t.Fatalf("CreateParty(hari): %v", err)
	}
	kamdar, err := models.CreateParty(ctx, &models.NewParty{Code: "KD-1", Name: "Sajid", Role: models.PartyRoleKamdar})
	if err != nil {
		t.Fatalf("CreateParty(kamdar): %v", err)
	}

	cycle, err := models.CreateCropCycle(ctx, &models.NewCropCycle{
		Name:      "Wheat 2026",
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateCropCycle: %v", err)
	}
	project, err := models.CreateProject(ctx, &models.NewProject{
		CropCycleId: cycle.ID,
		Name:        "North Block Wheat",
		CropName:    "Wheat",
		AcreArea:    "25",
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	rule, err := models.CreateShareRule(ctx, &models.NewShareRule{
		Name:          "Wheat 50/50, kamdari 10",
		AppliesTo:     models.ShareRuleAppliesToProject,
		Basis:         models.ShareBasisMargin,
		EffectiveFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Lines: []models.NewShareRuleLine{
			{PartyId: landlord.ID, Role: models.PartyRoleLandlord, Percentage: decimal.NewFromInt(50)},
			{PartyId: hari.ID, Role: models.PartyRoleHari, Percentage: decimal.NewFromInt(50)},
			{PartyId: kamdar.ID, Role: models.PartyRoleKamdar, Percentage: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("CreateShareRule: %v", err)
	}

	// Shared cost of 30000 against the pool.
	sharedExpense, err := models.CreateExpense(ctx, &models.NewExpense{
		CropCycleId: cycle.ID,
		ProjectId:   project.ID,
		ExpenseDate: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(30000),
		Scope:       models.AllocationScopeShared,
		Notes:       "Seed and fertilizer",
	})
	if err != nil {
		t.Fatalf("CreateExpense(shared): %v", err)
	}
	posted, err := workflow.PostExpense(ctx, sharedExpense.ID)
	if err != nil {
		t.Fatalf("PostExpense(shared): %v", err)
	}
	if posted.Status != models.DomainStatusPosted || posted.PostingGroupId == nil {
		t.Fatalf("expense not stamped POSTED: %+v", posted)
	}

	// Posting is idempotent at the document level.
	postedAgain, err := workflow.PostExpense(ctx, sharedExpense.ID)
	if err != nil {
		t.Fatalf("PostExpense(shared, retry): %v", err)
	}
	if *postedAgain.PostingGroupId != *posted.PostingGroupId {
		t.Fatalf("retry produced a second posting group: %s vs %s", *postedAgain.PostingGroupId, *posted.PostingGroupId)
	}

	// Hari-only cost of 5000, recovered from hari's share at settlement.
	hariExpense, err := models.CreateExpense(ctx, &models.NewExpense{
		CropCycleId: cycle.ID,
		ProjectId:   project.ID,
		PartyId:     hari.ID,
		ExpenseDate: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(5000),
		Scope:       models.AllocationScopeHariOnly,
		Notes:       "Hari picking labour",
	})
	if err != nil {
		t.Fatalf("CreateExpense(hari): %v", err)
	}
	if _, err := workflow.PostExpense(ctx, hariExpense.ID); err != nil {
		t.Fatalf("PostExpense(hari): %v", err)
	}

	// Crop sale of 100000 into the pool.
	sale, err := models.CreateSale(ctx, &models.NewSale{
		CropCycleId: cycle.ID,
		ProjectId:   project.ID,
		SaleDate:    time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC),
		BuyerName:   "Mandi Trader",
		Quantity:    decimal.NewFromInt(500),
		Unit:        "maund",
		Amount:      decimal.NewFromInt(100000),
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if _, err := workflow.PostSale(ctx, sale.ID); err != nil {
		t.Fatalf("PostSale: %v", err)
	}

	// Cash advance to hari, posted twice; the voucher reference dedupes it.
	advance, err := workflow.PostPartyAdvance(ctx, &workflow.PartyAdvanceInput{
		AdvanceRef:  "ADV-2026-001",
		PartyId:     hari.ID,
		ProjectId:   project.ID,
		CropCycleId: cycle.ID,
		AdvanceDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(10000),
	})
	if err != nil {
		t.Fatalf("PostPartyAdvance: %v", err)
	}
	advanceRetry, err := workflow.PostPartyAdvance(ctx, &workflow.PartyAdvanceInput{
		AdvanceRef:  "ADV-2026-001",
		PartyId:     hari.ID,
		ProjectId:   project.ID,
		CropCycleId: cycle.ID,
		AdvanceDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(10000),
	})
	if err != nil {
		t.Fatalf("PostPartyAdvance(retry): %v", err)
	}
	if advanceRetry.ID != advance.ID {
		t.Fatalf("advance retry created a second posting group")
	}

	// The ledger tables reject UPDATE outright.
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Where("tenant_id = ?", tenant.ID).
		Update("debit_amount", decimal.NewFromInt(1)).Error
	if !workflow.IsImmutabilityViolation(err) {
		t.Fatalf("expected immutability violation on ledger UPDATE; got %v", err)
	}

	// Settlement: 100000 revenue - 30000 shared = 70000; kamdari 7000;
	// landlord 31500; hari 31500 - 5000 = 26500.
	settlement, err := workflow.ComputeSettlement(ctx, &workflow.NewSettlement{
		ProjectId:   project.ID,
		CropCycleId: cycle.ID,
		ShareRuleId: rule.ID,
		FromDate:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ToDate:      time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("ComputeSettlement: %v", err)
	}
	if !settlement.PoolRevenue.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("pool revenue = %s; want 100000", settlement.PoolRevenue.String())
	}
	if !settlement.SharedCosts.Equal(decimal.NewFromInt(30000)) {
		t.Fatalf("shared costs = %s; want 30000", settlement.SharedCosts.String())
	}
	if !settlement.KamdariAmount.Equal(decimal.NewFromInt(7000)) {
		t.Fatalf("kamdari = %s; want 7000", settlement.KamdariAmount.String())
	}
	if !settlement.Distributable.Equal(decimal.NewFromInt(63000)) {
		t.Fatalf("distributable = %s; want 63000", settlement.Distributable.String())
	}
	assertLineAmount(t, settlement, models.PartyRoleLandlord, "31500")
	assertLineAmount(t, settlement, models.PartyRoleHari, "26500")
	assertLineAmount(t, settlement, models.PartyRoleKamdar, "7000")

	settlement, err = workflow.PostSettlement(ctx, settlement.ID, time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PostSettlement: %v", err)
	}
	if settlement.Status != models.SettlementStatusPosted || settlement.PostingGroupId == nil {
		t.Fatalf("settlement not stamped POSTED: %+v", settlement)
	}

	// The distribution clearing account must net to zero inside the group.
	clearing, err := models.GetSystemAccount(db.WithContext(ctx), tenant.ID, models.SystemAccountProfitDistributionClearing)
	if err != nil {
		t.Fatalf("GetSystemAccount(clearing): %v", err)
	}
	if bal := accountBalance(t, ctx, tenant.ID, clearing.ID); !bal.IsZero() {
		t.Fatalf("distribution clearing balance = %s; want 0", bal.String())
	}

	// Hari's control account: settlement credit 26500 minus advance debit
	// 10000 leaves 16500 still payable.
	var hariControl models.Account
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND system_code = ? AND party_id = ?", tenant.ID, models.SystemAccountPartyControl, hari.ID).
		First(&hariControl).Error; err != nil {
		t.Fatalf("fetch hari control account: %v", err)
	}
	if bal := accountBalance(t, ctx, tenant.ID, hariControl.ID); !bal.Equal(decimal.NewFromInt(-16500)) {
		t.Fatalf("hari control balance = %s; want -16500 (credit)", bal.String())
	}

	// At most one reversal per group, ever.
	journal, err := workflow.PostManualJournal(ctx, &workflow.ManualJournalInput{
		Reference:   "MJ-2026-001",
		CropCycleId: cycle.ID,
		JournalDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Description: "Mislogged cash in",
		Entries: []workflow.EntryInput{
			{AccountId: systemAccountId(t, ctx, tenant.ID, models.SystemAccountCash), Debit: decimal.NewFromInt(1000)},
			{AccountId: systemAccountId(t, ctx, tenant.ID, models.SystemAccountPoolIncome), Credit: decimal.NewFromInt(1000)},
		},
	})
	if err != nil {
		t.Fatalf("PostManualJournal: %v", err)
	}
	if _, err := workflow.ReversePostingGroup(ctx, journal.ID, journal.PostingDate, "Mislogged"); err != nil {
		t.Fatalf("ReversePostingGroup: %v", err)
	}
	var dre *workflow.DoubleReversalError
	_, err = workflow.ReversePostingGroup(ctx, journal.ID, journal.PostingDate, "Mislogged again")
	if !errors.As(err, &dre) {
		t.Fatalf("expected DoubleReversalError; got %v", err)
	}

	// Period close: income 100000 (sale, journal nets out), expenses 35000.
	run, err := workflow.ClosePeriod(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("ClosePeriod: %v", err)
	}
	if !run.NetProfit.Equal(decimal.NewFromInt(65000)) {
		t.Fatalf("net profit = %s; want 65000", run.NetProfit.String())
	}
	runAgain, err := workflow.ClosePeriod(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("ClosePeriod(retry): %v", err)
	}
	if runAgain.ID != run.ID {
		t.Fatalf("re-running period close created a second run")
	}

	// The closed cycle refuses new postings.
	lateExpense, err := models.CreateExpense(ctx, &models.NewExpense{
		CropCycleId: cycle.ID,
		ProjectId:   project.ID,
		ExpenseDate: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(400),
		Notes:       "Too late",
	})
	if err != nil {
		t.Fatalf("CreateExpense(late): %v", err)
	}
	var pce *workflow.PeriodClosedError
	_, err = workflow.PostExpense(ctx, lateExpense.ID)
	if !errors.As(err, &pce) {
		t.Fatalf("expected PeriodClosedError; got %v", err)
	}

	// Tenant isolation: a second tenant sees none of it.
	other, err := models.CreateTenant(ctx, &models.NewTenant{Name: "Other Farm"})
	if err != nil {
		t.Fatalf("CreateTenant(other): %v", err)
	}
	otherCtx := utils.SetTenantIdInContext(ctx, other.ID)
	if _, err := models.GetExpense(otherCtx, sharedExpense.ID); err == nil {
		t.Fatal("expected cross-tenant expense fetch to fail")
	}
}

func assertLineAmount(t *testing.T, s *models.Settlement, role models.PartyRole, want string) {
	t.Helper()
	for _, line := range s.Lines {
		if line.Role == role {
			if !line.Amount.Equal(decimal.RequireFromString(want)) {
				t.Fatalf("%s line amount = %s; want %s", role, line.Amount.String(), want)
			}
			return
		}
	}
	t.Fatalf("no settlement line for role %s", role)
}

func accountBalance(t *testing.T, ctx context.Context, tenantId, accountId string) decimal.Decimal {
	t.Helper()
	var totals struct {
		Debit  decimal.Decimal
		Credit decimal.Decimal
	}
	err := config.GetDB().WithContext(ctx).Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(debit_amount), 0) AS debit, COALESCE(SUM(credit_amount), 0) AS credit").
		Where("tenant_id = ? AND account_id = ?", tenantId, accountId).
		Scan(&totals).Error
	if err != nil {
		t.Fatalf("account balance query: %v", err)
	}
	return totals.Debit.Sub(totals.Credit)
}

func systemAccountId(t *testing.T, ctx context.Context, tenantId, systemCode string) string {
	t.Helper()
	account, err := models.GetSystemAccount(config.GetDB().WithContext(ctx), tenantId, systemCode)
	if err != nil {
		t.Fatalf("GetSystemAccount(%s): %v", systemCode, err)
	}
	return account.ID
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("farmbooks-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("farmbooks-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=farmbooks_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
