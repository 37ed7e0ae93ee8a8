/*
Package report aggregates commission figures for reporting.

PURPOSE:
  Rolls persisted plan state up into one row per (college, branch) for the
  breakdown and "top performer" reports. The caller scopes the plan set
  first - tenant, time window, institution filter - and hands this package
  an already-filtered collection; aggregation itself never filters.

AGGREGATION RULES:
  expected      = sum of plan expected commission
  earned        = sum of plan earned commission
  outstanding   = expected - earned
  gst_amount    = sum of per-plan tax.Calculate(earned, rate, inclusive).
                  Tax is computed per plan, because the inclusion convention
                  differs per plan, then summed. Never sum-then-tax.
  total_with_gst = earned + gst_amount
  plan_count    = number of plans in the group

ORDERING:
  Rows sort by earned descending. Ties break by college name ascending,
  then branch name ascending, so reports with identical totals render
  identically across re-runs.

USAGE:
  rows, err := report.Aggregate(plans, agencyGSTRate)

SEE ALSO:
  - tax/: Per-plan GST math
  - window.go: Time windows the caller filters with
*/
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pleeno/commission-engine/money"
	"github.com/pleeno/commission-engine/tax"
)

// PlanSummary is the slice of persisted plan state aggregation reads.
type PlanSummary struct {
	CollegeID    string
	CollegeName  string
	BranchID     string
	BranchName   string
	Expected     money.Amount
	Earned       money.Amount
	TaxInclusive bool
}

// BreakdownRow is one (college, branch) group of the commission report.
// Computed on demand, never persisted.
type BreakdownRow struct {
	CollegeID    string
	CollegeName  string
	BranchID     string
	BranchName   string
	Expected     money.Amount
	Earned       money.Amount
	Outstanding  money.Amount
	GSTAmount    money.Amount
	TotalWithGST money.Amount
	PlanCount    int
}

type groupKey struct {
	collegeID string
	branchID  string
}

// Aggregate produces one BreakdownRow per (college, branch) present in the
// plan set. The GST rate applies agency-wide; each plan's own inclusion
// convention decides whether tax is extracted or added. A negative rate is
// an InvalidRateError.
func Aggregate(plans []PlanSummary, gstRate decimal.Decimal) ([]BreakdownRow, error) {
	if err := money.ValidateTaxRate(gstRate); err != nil {
		return nil, err
	}

	groups := make(map[groupKey]*BreakdownRow)
	var order []groupKey

	for _, p := range plans {
		key := groupKey{collegeID: p.CollegeID, branchID: p.BranchID}
		row, ok := groups[key]
		if !ok {
			row = &BreakdownRow{
				CollegeID:    p.CollegeID,
				CollegeName:  p.CollegeName,
				BranchID:     p.BranchID,
				BranchName:   p.BranchName,
				Expected:     p.Expected.Zero(),
				Earned:       p.Earned.Zero(),
				GSTAmount:    p.Earned.Zero(),
			}
			groups[key] = row
			order = append(order, key)
		}

		row.Expected = row.Expected.Add(p.Expected)
		row.Earned = row.Earned.Add(p.Earned)
		row.GSTAmount = row.GSTAmount.Add(tax.Calculate(p.Earned, gstRate, p.TaxInclusive))
		row.PlanCount++
	}

	rows := make([]BreakdownRow, 0, len(groups))
	for _, key := range order {
		row := groups[key]
		row.Outstanding = row.Expected.Sub(row.Earned)
		row.TotalWithGST = row.Earned.Add(row.GSTAmount)
		rows = append(rows, *row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if cmp := rows[i].Earned.Value.Cmp(rows[j].Earned.Value); cmp != 0 {
			return cmp > 0
		}
		if rows[i].CollegeName != rows[j].CollegeName {
			return rows[i].CollegeName < rows[j].CollegeName
		}
		return rows[i].BranchName < rows[j].BranchName
	})

	return rows, nil
}
