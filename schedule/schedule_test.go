package schedule_test

import (
	"errors"
	"testing"
	"time"

	"github.com/pleeno/commission-engine/money"
	"github.com/pleeno/commission-engine/schedule"
)

func aud(v float64) money.Amount {
	return money.NewAmount(v, money.AUD)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func monthlyInput(total float64, count int) schedule.Input {
	return schedule.Input{
		TotalAmount:         aud(total),
		InstallmentCount:    count,
		Frequency:           schedule.FrequencyMonthly,
		StartDate:           date(2025, time.March, 15),
		InstitutionLeadDays: 14,
	}
}

// =============================================================================
// GENERATION TESTS
// =============================================================================

func TestGenerate_MonthlyAmountsAndDates(t *testing.T) {
	// GIVEN: 1000.00 over 3 monthly installments starting March 15
	// WHEN: Generating the draft schedule
	// THEN: Amounts are [333.33, 333.33, 333.34] and dates step one month

	draft, err := schedule.Generate(monthlyInput(1000, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(draft) != 3 {
		t.Fatalf("expected 3 installments, got %d", len(draft))
	}

	wantAmounts := []string{"333.33", "333.33", "333.34"}
	wantDue := []time.Time{
		date(2025, time.March, 15),
		date(2025, time.April, 15),
		date(2025, time.May, 15),
	}

	var sum money.Amount = aud(0)
	for i, inst := range draft {
		if inst.Number != i+1 {
			t.Errorf("installment %d: number %d", i+1, inst.Number)
		}
		if inst.Amount.String() != wantAmounts[i] {
			t.Errorf("installment %d: amount %s, want %s", i+1, inst.Amount.String(), wantAmounts[i])
		}
		if inst.StudentDueDate == nil || !inst.StudentDueDate.Equal(wantDue[i]) {
			t.Errorf("installment %d: student due %v, want %v", i+1, inst.StudentDueDate, wantDue[i])
		}
		wantInst := wantDue[i].AddDate(0, 0, 14)
		if inst.InstitutionDueDate == nil || !inst.InstitutionDueDate.Equal(wantInst) {
			t.Errorf("installment %d: institution due %v, want %v", i+1, inst.InstitutionDueDate, wantInst)
		}
		sum = sum.Add(inst.Amount)
	}

	if !sum.Equal(aud(1000)) {
		t.Errorf("schedule sums to %s, want 1000.00", sum.String())
	}
}

func TestGenerate_QuarterlyStepsThreeMonths(t *testing.T) {
	in := monthlyInput(3000, 3)
	in.Frequency = schedule.FrequencyQuarterly

	draft, err := schedule.Generate(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDue := []time.Time{
		date(2025, time.March, 15),
		date(2025, time.June, 15),
		date(2025, time.September, 15),
	}
	for i, inst := range draft {
		if inst.StudentDueDate == nil || !inst.StudentDueDate.Equal(wantDue[i]) {
			t.Errorf("installment %d: due %v, want %v", i+1, inst.StudentDueDate, wantDue[i])
		}
	}
}

func TestGenerate_CustomDatesOnlyFirstSlot(t *testing.T) {
	// GIVEN: A custom-cadence plan
	// WHEN: Generating
	// THEN: Slot 1 is due on the start date; later slots have no dates and
	//       wait for manual input

	in := monthlyInput(900, 3)
	in.Frequency = schedule.FrequencyCustom

	draft, err := schedule.Generate(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if draft[0].StudentDueDate == nil || !draft[0].StudentDueDate.Equal(date(2025, time.March, 15)) {
		t.Errorf("slot 1 should be due on the start date, got %v", draft[0].StudentDueDate)
	}
	if draft[0].InstitutionDueDate == nil {
		t.Error("slot 1 should carry an institution due date")
	}
	for i := 1; i < 3; i++ {
		if draft[i].StudentDueDate != nil || draft[i].InstitutionDueDate != nil {
			t.Errorf("slot %d of a custom plan should have no dates", i+1)
		}
	}
}

func TestGenerate_MonthEndClampingDoesNotDrift(t *testing.T) {
	// GIVEN: A monthly plan starting Jan 31
	// WHEN: Generating four installments
	// THEN: Short months clamp to their last day, and later long months
	//       return to the 31st

	in := monthlyInput(4000, 4)
	in.StartDate = date(2025, time.January, 31)

	draft, err := schedule.Generate(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDue := []time.Time{
		date(2025, time.January, 31),
		date(2025, time.February, 28),
		date(2025, time.March, 31),
		date(2025, time.April, 30),
	}
	for i, inst := range draft {
		if inst.StudentDueDate == nil || !inst.StudentDueDate.Equal(wantDue[i]) {
			t.Errorf("installment %d: due %v, want %v", i+1, inst.StudentDueDate, wantDue[i])
		}
	}
}

func TestGenerate_InvalidInputs(t *testing.T) {
	// GIVEN: A zero installment count or non-positive total
	// WHEN: Generating
	// THEN: A schedule invariant error surfaces; nothing is clamped

	_, err := schedule.Generate(monthlyInput(1000, 0))
	if !errors.Is(err, schedule.ErrScheduleInvariant) {
		t.Errorf("zero count: expected schedule invariant error, got %v", err)
	}

	_, err = schedule.Generate(monthlyInput(-50, 3))
	if !errors.Is(err, schedule.ErrScheduleInvariant) {
		t.Errorf("negative total: expected schedule invariant error, got %v", err)
	}

	in := monthlyInput(1000, 3)
	in.Frequency = "weekly"
	if _, err := schedule.Generate(in); err == nil {
		t.Error("unsupported frequency should be rejected")
	}
}

// =============================================================================
// MANUAL EDIT VALIDATION TESTS
// =============================================================================

func TestValidateAmounts_ExactSumPasses(t *testing.T) {
	err := schedule.ValidateAmounts(aud(1000), []money.Amount{aud(500), aud(250.50), aud(249.50)})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateAmounts_OneCentGapIsAViolation(t *testing.T) {
	// GIVEN: Hand-edited amounts one cent short of the plan total
	// WHEN: Validating
	// THEN: The mismatch surfaces with both sums; nothing is renormalized

	err := schedule.ValidateAmounts(aud(1000), []money.Amount{aud(333.33), aud(333.33), aud(333.33)})
	if err == nil {
		t.Fatal("expected a sum mismatch error")
	}

	var ie *schedule.InvariantError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InvariantError, got %T", err)
	}
	if ie.Code != schedule.CodeSumMismatch {
		t.Errorf("expected code %s, got %s", schedule.CodeSumMismatch, ie.Code)
	}
	if ie.ScheduleSum.String() != "999.99" || ie.PlanTotal.String() != "1000.00" {
		t.Errorf("error should carry both sums, got sum=%s total=%s",
			ie.ScheduleSum.String(), ie.PlanTotal.String())
	}
}

func TestValidateAmounts_RejectsNonPositiveAmounts(t *testing.T) {
	err := schedule.ValidateAmounts(aud(100), []money.Amount{aud(100), aud(0)})
	if !errors.Is(err, schedule.ErrScheduleInvariant) {
		t.Errorf("zero amount: expected schedule invariant error, got %v", err)
	}

	err = schedule.ValidateAmounts(aud(100), nil)
	if !errors.Is(err, schedule.ErrScheduleInvariant) {
		t.Errorf("empty schedule: expected schedule invariant error, got %v", err)
	}
}

func TestGenerate_RegenerationResetsToComputedAmounts(t *testing.T) {
	// GIVEN: A schedule whose amounts were hand-edited
	// WHEN: The user chooses reset-to-computed and the schedule is regenerated
	// THEN: The draft carries the computed split again, not the edits

	draft, err := schedule.Generate(monthlyInput(1000, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft[0].Amount.String() != "333.33" || draft[2].Amount.String() != "333.34" {
		t.Errorf("regenerated draft should carry computed amounts, got %s / %s",
			draft[0].Amount.String(), draft[2].Amount.String())
	}
}
