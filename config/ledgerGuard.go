package config

import (
	"context"

	"github.com/zaraisoft/farmbooks_backend/appctx"
	"gorm.io/gorm"
)

// LedgerImmutableError is raised by the ledger guard when code attempts to
// update or delete a posted ledger row. Reaching it through the public API
// indicates a defect; all correction paths are insert-only.
type LedgerImmutableError struct{ Table string }

func (e *LedgerImmutableError) Error() string {
	return "ledger rows are immutable: attempted write on " + e.Table
}

// immutableTables are append-only. Posted records are never edited in place;
// corrections happen through reversal/repost rows.
var immutableTables = map[string]bool{
	"posting_groups":  true,
	"ledger_entries":  true,
	"allocation_rows": true,
}

// LedgerGuardPlugin is the storage-layer backstop for ledger immutability.
// The application exposes no update/delete paths for these entities; this
// plugin turns any slip into a hard error instead of silent data damage.
type LedgerGuardPlugin struct{}

func NewLedgerGuardPlugin() *LedgerGuardPlugin { return &LedgerGuardPlugin{} }

func (p *LedgerGuardPlugin) Name() string { return "ledger_guard" }

func (p *LedgerGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Update().Before("gorm:update").Register("ledger_guard:update", ledgerGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("ledger_guard:delete", ledgerGuardCallback); err != nil {
		return err
	}
	return nil
}

func ledgerGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	if shouldBypassLedgerGuard(db.Statement.Context) {
		return
	}
	if immutableTables[db.Statement.Table] {
		db.AddError(&LedgerImmutableError{Table: db.Statement.Table})
	}
}

func shouldBypassLedgerGuard(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, ok := ctx.Value(appctx.ContextKeySkipLedgerGuard).(bool)
	return ok && v
}
