/*
distribute.go - Deterministic remainder distribution

PURPOSE:
  Splits a monetary total into n shares that sum back to the total exactly.
  This is the single place in the engine where a division-rounding decision
  is made. Every component that needs to split money (the installment
  scheduler above all) calls this instead of re-deriving division, so no
  cent is ever leaked or duplicated.

ALGORITHM:
  Each share is floor(total/n) truncated to 2 decimals, except the last,
  which absorbs the residual total - sum(first n-1 shares).

  DistributeRemainder(1000.00, 3) => [333.33, 333.33, 333.34]

PROPERTIES:
  - Shares always sum to the total, regardless of divisibility
  - No share is negative for a positive total
  - Shares differ from each other by at most one cent
  - The remainder lands in exactly one slot (the last)

SEE ALSO:
  - schedule/: Uses this for installment amounts
*/
package money

import "github.com/shopspring/decimal"

// DistributeRemainder splits total into n shares summing exactly to total.
// Returns nil when n < 1 or total is not positive; callers that need an
// error for those inputs validate before calling.
func DistributeRemainder(total Amount, n int) []Amount {
	if n < 1 || !total.IsPositive() {
		return nil
	}

	base := total.Value.Div(decimal.NewFromInt(int64(n))).Truncate(DisplayPlaces)

	shares := make([]Amount, n)
	for i := 0; i < n-1; i++ {
		shares[i] = Amount{Value: base, Currency: total.Currency}
	}

	allocated := base.Mul(decimal.NewFromInt(int64(n - 1)))
	shares[n-1] = Amount{Value: total.Value.Sub(allocated), Currency: total.Currency}

	return shares
}

// Sum adds a slice of amounts. The currency of the first element is carried;
// an empty slice sums to zero with no currency.
func Sum(amounts []Amount) Amount {
	if len(amounts) == 0 {
		return Amount{Value: decimal.Zero}
	}
	total := amounts[0].Zero()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
