package schedule

import (
	"errors"
	"fmt"

	"github.com/pleeno/commission-engine/money"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrScheduleInvariant is returned when a schedule violates the plan
	// invariants: amounts not summing to the plan total once finalized, a
	// count below 1, or a non-positive total. Never auto-corrected outside
	// an explicit regeneration.
	ErrScheduleInvariant = errors.New("schedule violates plan invariants")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// Invariant violation codes.
const (
	CodeSumMismatch = "sum_mismatch"
	CodeBadCount    = "bad_count"
	CodeBadTotal    = "bad_total"
	CodeBadAmount   = "bad_amount"
)

// InvariantError reports which invariant a schedule broke.
type InvariantError struct {
	Code        string
	PlanTotal   money.Amount
	ScheduleSum money.Amount
	Count       int
	Number      int // offending installment, for CodeBadAmount
}

func (e *InvariantError) Error() string {
	switch e.Code {
	case CodeBadCount:
		return fmt.Sprintf("installment count must be at least 1, got %d", e.Count)
	case CodeBadTotal:
		return fmt.Sprintf("plan total must be positive, got %s", e.PlanTotal)
	case CodeBadAmount:
		return fmt.Sprintf("installment %d amount must be positive", e.Number)
	default:
		return fmt.Sprintf("installment amounts sum to %s, plan total is %s",
			e.ScheduleSum, e.PlanTotal)
	}
}

func (e *InvariantError) Unwrap() error {
	return ErrScheduleInvariant
}
