package models

import "testing"

func TestSourceTypeRegistryDerivedVariants(t *testing.T) {
	if !IsSourceTypeRegistered(SourceTypeExpense) {
		t.Fatal("built-in source type missing from registry")
	}
	if !IsSourceTypeRegistered(ReversalSourceType(SourceTypeExpense)) {
		t.Fatal("EXPENSE_REVERSAL should be accepted via its base type")
	}
	if !IsSourceTypeRegistered(CorrectionSourceType(SourceTypeSettlement)) {
		t.Fatal("SETTLEMENT_CORRECTION should be accepted via its base type")
	}
	if IsSourceTypeRegistered("LEASE_GUESS") {
		t.Fatal("unregistered type accepted")
	}
	if IsSourceTypeRegistered("LEASE_GUESS_REVERSAL") {
		t.Fatal("reversal of unregistered type accepted")
	}
}

func TestRegisterSourceType(t *testing.T) {
	custom := PostingSourceType("CANAL_FEE")
	if IsSourceTypeRegistered(custom) {
		t.Fatal("custom type registered before RegisterSourceType")
	}
	RegisterSourceType(custom)
	if !IsSourceTypeRegistered(custom) {
		t.Fatal("custom type not registered")
	}
	if !IsSourceTypeRegistered(ReversalSourceType(custom)) {
		t.Fatal("reversal variant of custom type not accepted")
	}
}

func TestAllocationTypeRegistry(t *testing.T) {
	if !IsAllocationTypeRegistered(AllocationTypePoolShare) {
		t.Fatal("built-in allocation type missing from registry")
	}
	custom := AllocationType("CANAL_FEE_SHARE")
	if IsAllocationTypeRegistered(custom) {
		t.Fatal("custom allocation type registered too early")
	}
	RegisterAllocationType(custom)
	if !IsAllocationTypeRegistered(custom) {
		t.Fatal("custom allocation type not registered")
	}
}

func TestAllocationScopeIsClosed(t *testing.T) {
	for _, s := range []AllocationScope{
		AllocationScopeShared, AllocationScopeHariOnly, AllocationScopeLandlordOnly, AllocationScopePartyOnly,
	} {
		if !s.Valid() {
			t.Fatalf("scope %s should be valid", s)
		}
	}
	if AllocationScope("VILLAGE_ONLY").Valid() {
		t.Fatal("scopes are a closed set; unknown scope accepted")
	}
}

func TestAccountMainTypeValid(t *testing.T) {
	if !AccountMainTypeAsset.Valid() || !AccountMainTypeExpense.Valid() {
		t.Fatal("built-in main types should be valid")
	}
	if AccountMainType("Contra").Valid() {
		t.Fatal("unknown main type accepted")
	}
}
