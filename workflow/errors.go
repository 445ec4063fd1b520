package workflow

import (
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/zaraisoft/farmbooks_backend/config"
)

// ValidationError marks input that can never post as written. Callers can
// separate it from infrastructure failures with errors.As; retrying without
// changing the input fails the same way.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalidInput(message string) error {
	return &ValidationError{Message: message}
}

// PeriodClosedError rejects any posting that references a closed crop cycle.
// CLOSED is terminal: no new groups, no reversals, no corrections.
type PeriodClosedError struct {
	CropCycleId string
}

func (e *PeriodClosedError) Error() string {
	return fmt.Sprintf("crop cycle %s is closed for posting", e.CropCycleId)
}

// TenantMismatchError is raised when a posting references a resource owned by
// a different tenant. Distinct from not-found so callers can alert on it.
type TenantMismatchError struct {
	Resource   string
	ResourceId string
}

func (e *TenantMismatchError) Error() string {
	return fmt.Sprintf("%s %s belongs to another tenant", e.Resource, e.ResourceId)
}

// UnbalancedPostingError is raised when a group's debits and credits do not
// match, either in the input or in the re-read of the inserted rows.
type UnbalancedPostingError struct {
	SourceType string
	SourceId   string
	Debit      decimal.Decimal
	Credit     decimal.Decimal
}

func (e *UnbalancedPostingError) Error() string {
	return fmt.Sprintf("posting %s/%s is unbalanced: debit=%s credit=%s",
		e.SourceType, e.SourceId, e.Debit.String(), e.Credit.String())
}

// DoubleReversalError is raised on an attempt to reverse a posting group that
// already has a reversal. At most one reversal per group, ever.
type DoubleReversalError struct {
	PostingGroupId  string
	ReversalGroupId string
}

func (e *DoubleReversalError) Error() string {
	return fmt.Sprintf("posting group %s is already reversed by %s", e.PostingGroupId, e.ReversalGroupId)
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// IsImmutabilityViolation reports whether err came from the storage guard
// that blocks UPDATE/DELETE on posted ledger tables.
func IsImmutabilityViolation(err error) bool {
	var g *config.LedgerImmutableError
	return errors.As(err, &g)
}
