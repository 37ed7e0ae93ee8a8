/*
Package tax computes GST on commission amounts.

PURPOSE:
  Derives the tax component and tax-adjusted totals from a commission figure
  under the two inclusion conventions agencies use:

  Inclusive:  the figure already contains GST, so the tax is extracted:
              tax = amount / (1 + rate) * rate
  Exclusive:  the figure is pre-tax, so the tax is added:
              tax = amount * rate

  Both functions are pure and total. A rate of 0 degenerates to "no tax".
  Negative rates never reach this package; they are rejected upstream by
  money.ValidateTaxRate.

ROUNDING:
  The tax on one plan is a real payable amount, so each result is rounded to
  display precision here. Aggregation sums these per-plan figures; it never
  taxes a summed base.

USAGE:
  gst := tax.Calculate(money.NewAmount(1100, money.AUD), rate, true)
  // gst = 100.00 (extracted from the inclusive figure)

SEE ALSO:
  - report/: Sums per-plan tax into breakdown rows
  - money/: Rate validation
*/
package tax

import (
	"github.com/shopspring/decimal"

	"github.com/pleeno/commission-engine/money"
)

var one = decimal.NewFromInt(1)

// Calculate returns the GST component of amount under the given convention.
func Calculate(amount money.Amount, rate decimal.Decimal, inclusive bool) money.Amount {
	if inclusive {
		return amount.Div(one.Add(rate)).Mul(rate).Round(money.DisplayPlaces)
	}
	return amount.Mul(rate).Round(money.DisplayPlaces)
}

// TotalWithTax returns the tax-inclusive total for amount. An inclusive
// figure already is the total; an exclusive figure has the tax added.
func TotalWithTax(amount money.Amount, rate decimal.Decimal, inclusive bool) money.Amount {
	if inclusive {
		return amount
	}
	return amount.Mul(one.Add(rate)).Round(money.DisplayPlaces)
}
