/*
Package schedule generates rounding-safe installment schedules.

PURPOSE:
  Turns a plan total plus a payment cadence into an ordered list of dated
  draft installments whose amounts sum exactly to the total. Amount splitting
  is delegated to money.DistributeRemainder, so this package never makes its
  own rounding decisions.

CADENCES:
  monthly:    due dates step 1 calendar month per slot
  quarterly:  due dates step 3 calendar months per slot
  custom:     only the first slot gets a date; later dates are entered
              manually by the user. There is deliberately no auto-date
              policy for custom plans.

DATE STEPPING:
  Each due date is computed from the original start date, with the
  day-of-month clamped to the target month's last day. A Jan 31 start
  yields Feb 28, Mar 31, Apr 30 - clamping never accumulates drift.
  The first installment is due on the start date itself.

VALIDATION:
  Generate rejects a non-positive total and a count below 1. After manual
  edits replace the computed amounts, ValidateAmounts checks the schedule
  sum against the plan total with exact decimal equality. Edited values are
  never silently renormalized; regeneration is an explicit reset.

USAGE:
  draft, err := schedule.Generate(schedule.Input{
      TotalAmount:         money.NewAmount(1000, money.AUD),
      InstallmentCount:    3,
      Frequency:           schedule.FrequencyMonthly,
      StartDate:           start,
      InstitutionLeadDays: 14,
  })

SEE ALSO:
  - money/distribute.go: The amount-splitting algorithm
  - plan/: Workflow that persists and approves drafts
*/
package schedule

import (
	"fmt"
	"time"

	"github.com/pleeno/commission-engine/money"
)

// =============================================================================
// FREQUENCY
// =============================================================================

type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyCustom    Frequency = "custom"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyCustom:
		return true
	}
	return false
}

// stepMonths returns the calendar-month stride between due dates, or 0 for
// cadences without automatic dates.
func (f Frequency) stepMonths() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	}
	return 0
}

// =============================================================================
// SCHEDULE GENERATION
// =============================================================================

// Input carries everything needed to draft a schedule. The lead time comes
// from agency configuration and is injected by the caller.
type Input struct {
	TotalAmount         money.Amount
	InstallmentCount    int
	Frequency           Frequency
	StartDate           time.Time
	InstitutionLeadDays int
}

// DraftInstallment is one slot of a generated schedule. Due dates are nil
// for custom-cadence slots past the first until the user supplies them.
type DraftInstallment struct {
	Number             int
	Amount             money.Amount
	StudentDueDate     *time.Time
	InstitutionDueDate *time.Time
}

// Generate drafts a schedule from the input. The returned amounts sum
// exactly to the total for every valid input.
func Generate(in Input) ([]DraftInstallment, error) {
	if in.InstallmentCount < 1 {
		return nil, &InvariantError{Code: CodeBadCount, Count: in.InstallmentCount}
	}
	if !in.TotalAmount.IsPositive() {
		return nil, &InvariantError{Code: CodeBadTotal, PlanTotal: in.TotalAmount}
	}
	if !in.Frequency.Valid() {
		return nil, fmt.Errorf("unsupported frequency %q", in.Frequency)
	}

	amounts := money.DistributeRemainder(in.TotalAmount, in.InstallmentCount)

	start := DateOnly(in.StartDate)
	step := in.Frequency.stepMonths()

	draft := make([]DraftInstallment, in.InstallmentCount)
	for i := range draft {
		number := i + 1
		inst := DraftInstallment{
			Number: number,
			Amount: amounts[i],
		}

		if step > 0 || number == 1 {
			due := AddMonthsClamped(start, i*step)
			inst.StudentDueDate = &due
			instDue := InstitutionDue(due, in.InstitutionLeadDays)
			inst.InstitutionDueDate = &instDue
		}

		draft[i] = inst
	}

	return draft, nil
}

// ValidateAmounts checks a finalized or hand-edited set of installment
// amounts against the plan total. Exact decimal equality; a one-cent gap is
// a violation, not a tolerance case.
func ValidateAmounts(total money.Amount, amounts []money.Amount) error {
	if len(amounts) < 1 {
		return &InvariantError{Code: CodeBadCount, Count: len(amounts)}
	}
	for i, a := range amounts {
		if !a.IsPositive() {
			return &InvariantError{Code: CodeBadAmount, Number: i + 1}
		}
	}
	if sum := money.Sum(amounts); !sum.Equal(total) {
		return &InvariantError{Code: CodeSumMismatch, PlanTotal: total, ScheduleSum: sum}
	}
	return nil
}
