package workflow

// Standardized reasons for ledger reversals.
// These are human-readable strings stored in PostingGroup.reversal_reason.
const (
	ReversalReasonExpenseVoidUpdate          = "Expense void/update"
	ReversalReasonSaleVoidUpdate             = "Sale void/update"
	ReversalReasonMachineryServiceVoidUpdate = "Machinery service void/update"
	ReversalReasonSettlementVoid             = "Settlement void"
	ReversalReasonCorrectionRepost           = "Correction: reverse and repost"
)
