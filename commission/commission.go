/*
Package commission computes expected and earned agency commission.

PURPOSE:
  A partner institution pays the agency a percentage of the commissionable
  part of a plan: the total minus materials, admin, and other fees. This
  package owns that math in two forms:

  Expected: what the full plan will yield once fully paid. Computed at
  approval from the approved schedule and the branch rate, then frozen on
  the plan unless an administrative edit recalculates it.

  Earned: what the partially-paid plan has yielded so far. Recomputed from
  installment state each time a payment posts. Attribution is proportional:
  a partial payment contributes its actual paid amount, never the nominal
  installment amount. Fee-only installments never contribute.

CLAMPING CONTRACT:
  Degenerate states are legitimate, not errors:
  - Commissionable base <= 0 (fully-waived or fee-only plans): both figures
    are 0. No division happens.
  - Paid amounts exceeding the base (manual overrides, overpayment edits):
    earned clamps to expected.
  Rates outside [0, 100] are the opposite: always an InvalidRateError,
  never clamped.

DETERMINISM:
  Both functions are pure. Recomputing from the same installment state
  always yields the same value, so recalculation can run on any worker and
  repeat safely.

USAGE:
  expected, err := commission.Expected(total, fees, rate)
  earned := commission.Earned(installments, total, fees, expected)

SEE ALSO:
  - forecast.go: Projects earned commission onto future months
  - plan/: Persists the figures and owns recalculation triggers
  - report/: Aggregates the figures per college and branch
*/
package commission

import (
	"github.com/shopspring/decimal"

	"github.com/pleeno/commission-engine/money"
)

var hundred = decimal.NewFromInt(100)

// Installment is the slice of installment state the calculator reads.
// The plan workflow converts its records into this view.
type Installment struct {
	PaidAmount          money.Amount
	Paid                bool
	GeneratesCommission bool
}

// Expected computes the commission a fully-paid plan yields:
// (total - fees) x ratePercent / 100, at display precision.
// A non-positive commissionable base yields 0. A rate outside [0, 100]
// is an InvalidRateError.
func Expected(total, fees money.Amount, ratePercent decimal.Decimal) (money.Amount, error) {
	if err := money.ValidatePercentRate(ratePercent); err != nil {
		return total.Zero(), err
	}

	base := total.Sub(fees)
	if !base.IsPositive() {
		return total.Zero(), nil
	}

	return base.Mul(ratePercent).Div(hundred).Round(money.DisplayPlaces), nil
}

// Earned computes the commission yielded so far by the paid, commission-
// generating installments: paidEligible / base x expected, clamped to
// [0, expected]. Partial payments contribute their actual paid amount.
func Earned(installments []Installment, total, fees, expected money.Amount) money.Amount {
	base := total.Sub(fees)
	if !base.IsPositive() {
		return total.Zero()
	}

	paidEligible := total.Zero()
	for _, inst := range installments {
		if inst.Paid && inst.GeneratesCommission {
			paidEligible = paidEligible.Add(inst.PaidAmount)
		}
	}

	// Multiply before dividing so precision is lost only once.
	earned := paidEligible.Mul(expected.Value).Div(base.Value).Round(money.DisplayPlaces)

	return earned.Max(total.Zero()).Min(expected)
}

// Outstanding is the commission still to be earned on a plan.
func Outstanding(expected, earned money.Amount) money.Amount {
	return expected.Sub(earned)
}
