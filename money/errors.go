package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRate is returned when a commission or tax rate falls outside
	// its valid domain. Rates are never clamped; a bad rate always surfaces.
	ErrInvalidRate = errors.New("rate outside valid domain")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidRateError reports a rate outside its valid domain.
type InvalidRateError struct {
	Rate   decimal.Decimal
	Bounds string // e.g. "[0, 100]" or ">= 0"
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("invalid rate %v: must be %s", e.Rate, e.Bounds)
}

func (e *InvalidRateError) Unwrap() error {
	return ErrInvalidRate
}

// =============================================================================
// RATE VALIDATION
// =============================================================================

var hundred = decimal.NewFromInt(100)

// ValidatePercentRate checks a percentage-style rate (15 = 15%), which must
// lie in [0, 100]. Commission rates use this form.
func ValidatePercentRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return &InvalidRateError{Rate: rate, Bounds: "[0, 100]"}
	}
	return nil
}

// ValidateTaxRate checks a fractional tax rate (0.10 = 10%), which must not
// be negative. There is no upper bound; jurisdictions vary.
func ValidateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() {
		return &InvalidRateError{Rate: rate, Bounds: ">= 0"}
	}
	return nil
}
