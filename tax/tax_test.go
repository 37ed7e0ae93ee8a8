package tax_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/pleeno/commission-engine/money"
	"github.com/pleeno/commission-engine/tax"
)

func aud(v float64) money.Amount {
	return money.NewAmount(v, money.AUD)
}

var gst10 = money.MustParseDecimal("0.10")

func TestCalculate_Inclusive(t *testing.T) {
	// GIVEN: A commission of 1100.00 that already contains 10% GST
	// WHEN: Extracting the tax
	// THEN: Tax is 100.00, leaving a base of 1000.00

	got := tax.Calculate(aud(1100), gst10, true)

	if got.String() != "100.00" {
		t.Errorf("expected tax 100.00, got %s", got.String())
	}
	if base := aud(1100).Sub(got); base.String() != "1000.00" {
		t.Errorf("expected base 1000.00, got %s", base.String())
	}
}

func TestCalculate_Exclusive(t *testing.T) {
	// GIVEN: A pre-tax commission of 1000.00 at 10% GST
	// WHEN: Computing the additive tax
	// THEN: Tax is 100.00 and the grossed-up total is 1100.00

	got := tax.Calculate(aud(1000), gst10, false)

	if got.String() != "100.00" {
		t.Errorf("expected tax 100.00, got %s", got.String())
	}
	if total := tax.TotalWithTax(aud(1000), gst10, false); total.String() != "1100.00" {
		t.Errorf("expected total 1100.00, got %s", total.String())
	}
}

func TestTotalWithTax_InclusiveIsUnchanged(t *testing.T) {
	got := tax.TotalWithTax(aud(1100), gst10, true)

	if !got.Equal(aud(1100)) {
		t.Errorf("inclusive figure is already the total, got %s", got.String())
	}
}

func TestCalculate_ZeroRateDegeneratesToNoTax(t *testing.T) {
	if got := tax.Calculate(aud(500), decimal.Zero, true); !got.IsZero() {
		t.Errorf("inclusive zero rate: expected 0, got %s", got.String())
	}
	if got := tax.Calculate(aud(500), decimal.Zero, false); !got.IsZero() {
		t.Errorf("exclusive zero rate: expected 0, got %s", got.String())
	}
	if got := tax.TotalWithTax(aud(500), decimal.Zero, false); !got.Equal(aud(500)) {
		t.Errorf("exclusive zero rate total: expected 500.00, got %s", got.String())
	}
}

func TestTaxRoundTrips(t *testing.T) {
	// GIVEN: Assorted 2-decimal commission figures
	// THEN: Inclusive extraction reconstructs the original figure, and the
	//       exclusive gross-up differs from the figure by exactly the tax

	amounts := []float64{1100, 1000, 675, 0.01, 33.33, 12345.67}

	for _, v := range amounts {
		x := aud(v)

		inclTax := tax.Calculate(x, gst10, true)
		if recon := inclTax.Add(x.Sub(inclTax)); !recon.Equal(x) {
			t.Errorf("inclusive round-trip for %v: got %s", v, recon.String())
		}

		exclTax := tax.Calculate(x, gst10, false)
		total := tax.TotalWithTax(x, gst10, false)
		if !total.Sub(x).Equal(exclTax) {
			t.Errorf("exclusive round-trip for %v: total-x = %s, tax = %s",
				v, total.Sub(x).String(), exclTax.String())
		}
	}
}
