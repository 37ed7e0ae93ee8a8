/*
forecast.go - Commission cash-flow projection

PURPOSE:
  Projects when the outstanding commission on active plans will be earned,
  assuming installments are paid on their student due dates. Feeds the
  dashboard's monthly cash-flow view.

ATTRIBUTION:
  Each unpaid commission-generating installment contributes
  amount / base x expected to the month of its student due date - the same
  proportional rule Earned applies once the payment actually posts, so the
  projection converges onto the earned figure as payments arrive.

  Undated slots (custom-cadence plans awaiting manual dates) and fee-only
  installments are excluded. Already-paid installments are excluded; their
  commission is earned, not projected.

SEE ALSO:
  - commission.go: The attribution rule this projection mirrors
  - api/: Dashboard endpoint serving the projection
*/
package commission

import (
	"sort"
	"time"

	"github.com/pleeno/commission-engine/money"
)

// ForecastInstallment is the slice of installment state the projection reads.
type ForecastInstallment struct {
	Amount              money.Amount
	StudentDueDate      *time.Time
	Paid                bool
	GeneratesCommission bool
}

// ForecastPlan bundles one plan's state for projection.
type ForecastPlan struct {
	Installments []ForecastInstallment
	Total        money.Amount
	Fees         money.Amount
	Expected     money.Amount
}

// ForecastEntry is the projected commission for one calendar month.
type ForecastEntry struct {
	Month    time.Time // first day of the month
	Expected money.Amount
}

// ForecastMonthly projects commission earnings per calendar month across
// the given plans. Entries are sorted by month ascending.
func ForecastMonthly(plans []ForecastPlan, currency money.Currency) []ForecastEntry {
	zero := money.NewAmountFromInt(0, currency)
	byMonth := make(map[time.Time]money.Amount)

	for _, p := range plans {
		base := p.Total.Sub(p.Fees)
		if !base.IsPositive() {
			continue
		}

		for _, inst := range p.Installments {
			if inst.Paid || !inst.GeneratesCommission || inst.StudentDueDate == nil {
				continue
			}

			share := inst.Amount.Mul(p.Expected.Value).Div(base.Value).Round(money.DisplayPlaces)

			month := startOfMonth(*inst.StudentDueDate)
			current, ok := byMonth[month]
			if !ok {
				current = zero
			}
			byMonth[month] = current.Add(share)
		}
	}

	entries := make([]ForecastEntry, 0, len(byMonth))
	for month, amount := range byMonth {
		entries = append(entries, ForecastEntry{Month: month, Expected: amount})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Month.Before(entries[j].Month)
	})

	return entries
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
