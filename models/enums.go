package models

import (
	"strings"
	"sync"
)

type AccountMainType string

const (
	AccountMainTypeAsset     AccountMainType = "Asset"
	AccountMainTypeLiability AccountMainType = "Liability"
	AccountMainTypeEquity    AccountMainType = "Equity"
	AccountMainTypeIncome    AccountMainType = "Income"
	AccountMainTypeExpense   AccountMainType = "Expense"
)

func (t AccountMainType) Valid() bool {
	switch t {
	case AccountMainTypeAsset, AccountMainTypeLiability, AccountMainTypeEquity,
		AccountMainTypeIncome, AccountMainTypeExpense:
		return true
	}
	return false
}

type CropCycleStatus string

const (
	CropCycleStatusOpen   CropCycleStatus = "OPEN"
	CropCycleStatusClosed CropCycleStatus = "CLOSED"
)

type PartyRole string

const (
	PartyRoleLandlord PartyRole = "LANDLORD"
	PartyRoleHari     PartyRole = "HARI"
	PartyRoleKamdar   PartyRole = "KAMDAR"
)

// DomainStatus is the lifecycle of the thin domain wrappers (Expense, Sale,
// MachineryService, ...). Posting and reversal never edit ledger rows; they
// only stamp the wrapper.
type DomainStatus string

const (
	DomainStatusDraft    DomainStatus = "DRAFT"
	DomainStatusPosted   DomainStatus = "POSTED"
	DomainStatusReversed DomainStatus = "REVERSED"
)

type SettlementStatus string

const (
	SettlementStatusDraft    SettlementStatus = "DRAFT"
	SettlementStatusPosted   SettlementStatus = "POSTED"
	SettlementStatusReversed SettlementStatus = "REVERSED"
)

type ShareRuleAppliesTo string

const (
	ShareRuleAppliesToCropCycle ShareRuleAppliesTo = "CROP_CYCLE"
	ShareRuleAppliesToProject   ShareRuleAppliesTo = "PROJECT"
	ShareRuleAppliesToSale      ShareRuleAppliesTo = "SALE"
)

type ShareBasis string

const (
	ShareBasisMargin  ShareBasis = "MARGIN"
	ShareBasisRevenue ShareBasis = "REVENUE"
)

// KamdariOrder fixes when the kamdar's cut is taken relative to the
// landlord/hari split. Only BEFORE_SPLIT is exercised by current rules;
// AFTER_SPLIT is reserved and rejected until its formula is agreed.
type KamdariOrder string

const (
	KamdariOrderBeforeSplit KamdariOrder = "BEFORE_SPLIT"
	KamdariOrderAfterSplit  KamdariOrder = "AFTER_SPLIT"
)

// PostingSourceType tags the business event behind a posting group. The set
// is open: new event types appear over the product's life and historical
// values stay interpretable forever, so this is a registry, not a closed
// native enum.
type PostingSourceType string

const (
	SourceTypeExpense          PostingSourceType = "EXPENSE"
	SourceTypeSale             PostingSourceType = "SALE"
	SourceTypePayment          PostingSourceType = "PAYMENT"
	SourceTypeAdvance          PostingSourceType = "ADVANCE"
	SourceTypePayrollRun       PostingSourceType = "PAYROLL_RUN"
	SourceTypeMachineryService PostingSourceType = "MACHINERY_SERVICE"
	SourceTypeLeaseAccrual     PostingSourceType = "LEASE_ACCRUAL"
	SourceTypeManualJournal    PostingSourceType = "MANUAL_JOURNAL"
	SourceTypeSettlement       PostingSourceType = "SETTLEMENT"
	SourceTypePeriodClose      PostingSourceType = "PERIOD_CLOSE"
	// SourceTypeAllocationReclass carries allocation-only correction groups
	// that move amounts between settlement buckets without ledger effect.
	SourceTypeAllocationReclass PostingSourceType = "ALLOCATION_RECLASS"
)

const (
	reversalSuffix   = "_REVERSAL"
	correctionSuffix = "_CORRECTION"
)

// AllocationType categorizes how a posting group's economic effect enters
// settlement. Open set; same registry treatment as source types.
type AllocationType string

const (
	AllocationTypePoolRevenue      AllocationType = "POOL_REVENUE"
	AllocationTypePoolShare        AllocationType = "POOL_SHARE"
	AllocationTypeHariOnly         AllocationType = "HARI_ONLY"
	AllocationTypeKamdari          AllocationType = "KAMDARI"
	AllocationTypeAdvance          AllocationType = "ADVANCE"
	AllocationTypeSaleRevenue      AllocationType = "SALE_REVENUE"
	AllocationTypeSaleCogs         AllocationType = "SALE_COGS"
	AllocationTypeMachineryIncome  AllocationType = "MACHINERY_INCOME"
	AllocationTypeMachineryExpense AllocationType = "MACHINERY_EXPENSE"
	AllocationTypeLeaseRent        AllocationType = "LEASE_RENT"
	AllocationTypePeriodClose      AllocationType = "PERIOD_CLOSE"
	AllocationTypeSettlement       AllocationType = "SETTLEMENT"
)

// AllocationScope decides how the settlement engine treats a row. Unlike the
// type registries this set is closed: scopes change the split arithmetic, so
// a new scope is a code change by definition.
type AllocationScope string

const (
	AllocationScopeShared       AllocationScope = "SHARED"
	AllocationScopeHariOnly     AllocationScope = "HARI_ONLY"
	AllocationScopeLandlordOnly AllocationScope = "LANDLORD_ONLY"
	AllocationScopePartyOnly    AllocationScope = "PARTY_ONLY"
)

func (s AllocationScope) Valid() bool {
	switch s {
	case AllocationScopeShared, AllocationScopeHariOnly, AllocationScopeLandlordOnly, AllocationScopePartyOnly:
		return true
	}
	return false
}

var (
	registryMu sync.RWMutex

	sourceTypeRegistry = map[PostingSourceType]bool{
		SourceTypeExpense:           true,
		SourceTypeSale:              true,
		SourceTypePayment:           true,
		SourceTypeAdvance:           true,
		SourceTypePayrollRun:        true,
		SourceTypeMachineryService:  true,
		SourceTypeLeaseAccrual:      true,
		SourceTypeManualJournal:     true,
		SourceTypeSettlement:        true,
		SourceTypePeriodClose:       true,
		SourceTypeAllocationReclass: true,
	}

	allocationTypeRegistry = map[AllocationType]bool{
		AllocationTypePoolRevenue:      true,
		AllocationTypePoolShare:        true,
		AllocationTypeHariOnly:         true,
		AllocationTypeKamdari:          true,
		AllocationTypeAdvance:          true,
		AllocationTypeSaleRevenue:      true,
		AllocationTypeSaleCogs:         true,
		AllocationTypeMachineryIncome:  true,
		AllocationTypeMachineryExpense: true,
		AllocationTypeLeaseRent:        true,
		AllocationTypePeriodClose:      true,
		AllocationTypeSettlement:       true,
	}
)

// RegisterSourceType adds a new business event category. Additive only:
// registered types must never be repurposed or removed.
func RegisterSourceType(t PostingSourceType) {
	registryMu.Lock()
	defer registryMu.Unlock()
	sourceTypeRegistry[t] = true
}

// IsSourceTypeRegistered also accepts the derived *_REVERSAL / *_CORRECTION
// variants of any registered base type.
func IsSourceTypeRegistered(t PostingSourceType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if sourceTypeRegistry[t] {
		return true
	}
	s := string(t)
	if base, ok := strings.CutSuffix(s, reversalSuffix); ok {
		return sourceTypeRegistry[PostingSourceType(base)]
	}
	if base, ok := strings.CutSuffix(s, correctionSuffix); ok {
		return sourceTypeRegistry[PostingSourceType(base)]
	}
	return false
}

// ReversalSourceType derives the *_REVERSAL variant for a source type.
func ReversalSourceType(t PostingSourceType) PostingSourceType {
	return PostingSourceType(string(t) + reversalSuffix)
}

// CorrectionSourceType derives the *_CORRECTION variant for a source type.
func CorrectionSourceType(t PostingSourceType) PostingSourceType {
	return PostingSourceType(string(t) + correctionSuffix)
}

func RegisterAllocationType(t AllocationType) {
	registryMu.Lock()
	defer registryMu.Unlock()
	allocationTypeRegistry[t] = true
}

func IsAllocationTypeRegistered(t AllocationType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return allocationTypeRegistry[t]
}
