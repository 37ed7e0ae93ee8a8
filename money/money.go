/*
Package money provides fixed-precision monetary values.

PURPOSE:
  This package contains the monetary primitives shared by every calculation
  in the commission engine. Whether splitting a plan total into installments,
  attributing earned commission, or extracting GST, the same Amount type and
  rounding rules apply.

KEY CONCEPTS IN THIS FILE (money.go):
  - Amount: A monetary value with a currency (e.g., 1350.00 AUD)
  - Currency: ISO 4217 currency tag
  - MustParseDecimal: Helper for literals in configuration and tests

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so reconciling sums never touch binary
     floating point
  2. Immutability: Amounts are values; every operation returns a new Amount
  3. Two display digits: Truncation and rounding always target 2 fractional
     digits for display currencies

USAGE:
  total := money.NewAmount(1000, money.AUD)
  shares := money.DistributeRemainder(total, 3)
  // shares: [333.33, 333.33, 333.34]

SEE ALSO:
  - distribute.go: The remainder-distribution algorithm
  - commission/: Commission math built on Amount
  - tax/: GST math built on Amount
*/
package money

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Monetary value with currency
// =============================================================================

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

type Currency string

const (
	AUD Currency = "AUD"
	NZD Currency = "NZD"
	USD Currency = "USD"
	GBP Currency = "GBP"
)

// DisplayPlaces is the number of fractional digits carried by display
// currencies. All truncation and rounding in the engine targets this.
const DisplayPlaces = 2

func NewAmount(value float64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewAmountFromInt(value int, currency Currency) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Currency: currency}
}

func NewAmountFromDecimal(value decimal.Decimal, currency Currency) Amount {
	return Amount{Value: value, Currency: currency}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Currency: a.Currency} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Currency: a.Currency} }
func (a Amount) Div(s decimal.Decimal) Amount { return Amount{Value: a.Value.Div(s), Currency: a.Currency} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Currency: a.Currency} }
func (a Amount) Truncate(places int32) Amount {
	return Amount{Value: a.Value.Truncate(places), Currency: a.Currency}
}
func (a Amount) Round(places int32) Amount {
	return Amount{Value: a.Value.Round(places), Currency: a.Currency}
}
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}
func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// String renders the value at display precision, e.g. "1350.00".
func (a Amount) String() string {
	return a.Value.StringFixed(DisplayPlaces)
}
