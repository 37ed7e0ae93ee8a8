package plan

import (
	"errors"
	"fmt"

	"github.com/pleeno/commission-engine/money"
	"github.com/pleeno/commission-engine/schedule"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPlanNotFound is returned when a referenced plan doesn't exist.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrInstallmentNotFound is returned when a referenced installment doesn't exist.
	ErrInstallmentNotFound = errors.New("installment not found")

	// ErrCollegeNotFound is returned when a referenced college doesn't exist.
	ErrCollegeNotFound = errors.New("college not found")

	// ErrBranchNotFound is returned when a referenced branch doesn't exist.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrConfigNotFound is returned when agency configuration hasn't been set.
	ErrConfigNotFound = errors.New("agency configuration not found")

	// ErrInvalidStatus is returned when an operation is attempted in a
	// status that doesn't allow it.
	ErrInvalidStatus = errors.New("operation not allowed in current status")

	// ErrInstallmentMismatch is returned when an installment doesn't belong
	// to the plan a payment targets.
	ErrInstallmentMismatch = errors.New("installment does not belong to plan")

	// ErrMissingDueDates is returned when approving a plan whose custom
	// schedule still has undated slots.
	ErrMissingDueDates = errors.New("all installments need due dates before approval")

	// ErrInvalidPayment is returned for a non-positive payment amount.
	ErrInvalidPayment = errors.New("payment amount must be positive")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StatusError reports an operation attempted in a disallowed status.
type StatusError struct {
	Op      string // e.g. "approve plan"
	Current string
	Allowed string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("can only %s when status is %s, current status: %s",
		e.Op, e.Allowed, e.Current)
}

func (e *StatusError) Unwrap() error {
	return ErrInvalidStatus
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrInstallmentNotFound) ||
		errors.Is(err, ErrCollegeNotFound) ||
		errors.Is(err, ErrBranchNotFound) ||
		errors.Is(err, ErrConfigNotFound)
}

// IsClientError returns true if the error is due to invalid client input
// rather than a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInstallmentMismatch) ||
		errors.Is(err, ErrMissingDueDates) ||
		errors.Is(err, ErrInvalidPayment) ||
		errors.Is(err, ErrDuplicatePaymentKey) ||
		errors.Is(err, money.ErrInvalidRate) ||
		errors.Is(err, schedule.ErrScheduleInvariant)
}
