package report_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/pleeno/commission-engine/money"
	"github.com/pleeno/commission-engine/report"
)

func aud(v float64) money.Amount {
	return money.NewAmount(v, money.AUD)
}

var gst10 = money.MustParseDecimal("0.10")

func plan(college, branch string, expected, earned float64, inclusive bool) report.PlanSummary {
	return report.PlanSummary{
		CollegeID:    "col-" + college,
		CollegeName:  college,
		BranchID:     "br-" + college + "-" + branch,
		BranchName:   branch,
		Expected:     aud(expected),
		Earned:       aud(earned),
		TaxInclusive: inclusive,
	}
}

// =============================================================================
// AGGREGATION TESTS
// =============================================================================

func TestAggregate_GroupsByCollegeAndBranch(t *testing.T) {
	// GIVEN: Three plans across two (college, branch) groups
	// WHEN: Aggregating
	// THEN: Figures sum within each group and plan counts are correct

	plans := []report.PlanSummary{
		plan("Aurora College", "City", 1350, 675, false),
		plan("Aurora College", "City", 650, 325, false),
		plan("Aurora College", "North", 500, 100, false),
	}

	rows, err := report.Aggregate(plans, gst10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	city := rows[0]
	if city.BranchName != "City" {
		t.Fatalf("expected City branch first (higher earned), got %s", city.BranchName)
	}
	if city.Expected.String() != "2000.00" || city.Earned.String() != "1000.00" {
		t.Errorf("City: expected 2000.00/1000.00, got %s/%s",
			city.Expected.String(), city.Earned.String())
	}
	if city.Outstanding.String() != "1000.00" {
		t.Errorf("City outstanding: expected 1000.00, got %s", city.Outstanding.String())
	}
	if city.PlanCount != 2 {
		t.Errorf("City plan count: expected 2, got %d", city.PlanCount)
	}
}

func TestAggregate_TaxPerPlanThenSummed(t *testing.T) {
	// GIVEN: One tax-inclusive plan (earned 1100) and one exclusive (earned
	//        1000) in the same branch
	// WHEN: Aggregating at 10% GST
	// THEN: GST is 100.00 extracted + 100.00 added = 200.00, and the total
	//       with GST adds the summed tax onto summed earned

	plans := []report.PlanSummary{
		plan("Aurora College", "City", 1100, 1100, true),
		plan("Aurora College", "City", 1000, 1000, false),
	}

	rows, err := report.Aggregate(plans, gst10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row := rows[0]
	if row.GSTAmount.String() != "200.00" {
		t.Errorf("expected GST 200.00, got %s", row.GSTAmount.String())
	}
	if row.TotalWithGST.String() != "2300.00" {
		t.Errorf("expected total with GST 2300.00, got %s", row.TotalWithGST.String())
	}
}

func TestAggregate_OrderingEarnedDescendingThenNames(t *testing.T) {
	// GIVEN: Branches with distinct earned plus two tied at 500.00
	// WHEN: Aggregating
	// THEN: Higher earned first; the tie breaks alphabetically by college
	//       name, then branch name

	plans := []report.PlanSummary{
		plan("Zenith Institute", "Main", 800, 500, false),
		plan("Aurora College", "City", 900, 500, false),
		plan("Mid University", "Main", 2000, 1500, false),
		plan("Aurora College", "North", 600, 200, false),
	}

	rows, err := report.Aggregate(plans, gst10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []struct {
		college string
		branch  string
	}{
		{"Mid University", "Main"},
		{"Aurora College", "City"},
		{"Zenith Institute", "Main"},
		{"Aurora College", "North"},
	}
	for i, want := range wantOrder {
		if rows[i].CollegeName != want.college || rows[i].BranchName != want.branch {
			t.Errorf("row %d: got (%s, %s), want (%s, %s)",
				i, rows[i].CollegeName, rows[i].BranchName, want.college, want.branch)
		}
	}
}

func TestAggregate_TieBreakWithinOneCollege(t *testing.T) {
	plans := []report.PlanSummary{
		plan("Aurora College", "North", 900, 500, false),
		plan("Aurora College", "City", 900, 500, false),
	}

	rows, err := report.Aggregate(plans, gst10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0].BranchName != "City" || rows[1].BranchName != "North" {
		t.Errorf("equal earned should order branches alphabetically, got %s then %s",
			rows[0].BranchName, rows[1].BranchName)
	}
}

func TestAggregate_AdditivityAcrossGroups(t *testing.T) {
	// GIVEN: An arbitrary plan set
	// WHEN: Aggregating
	// THEN: Summing earned across rows equals summing earned across plans

	plans := []report.PlanSummary{
		plan("Aurora College", "City", 1350, 675, false),
		plan("Mid University", "Main", 2000, 1500, true),
		plan("Aurora College", "North", 600, 200, false),
		plan("Zenith Institute", "Main", 800, 0, false),
	}

	rows, err := report.Aggregate(plans, gst10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	planTotal := aud(0)
	for _, p := range plans {
		planTotal = planTotal.Add(p.Earned)
	}
	rowTotal := aud(0)
	for _, r := range rows {
		rowTotal = rowTotal.Add(r.Earned)
	}

	if !rowTotal.Equal(planTotal) {
		t.Errorf("rows sum to %s, plans sum to %s", rowTotal.String(), planTotal.String())
	}
}

func TestAggregate_NegativeRateIsRejected(t *testing.T) {
	_, err := report.Aggregate([]report.PlanSummary{plan("A", "B", 100, 50, false)},
		decimal.NewFromFloat(-0.10))
	if !errors.Is(err, money.ErrInvalidRate) {
		t.Errorf("expected ErrInvalidRate, got %v", err)
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	rows, err := report.Aggregate(nil, gst10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}
