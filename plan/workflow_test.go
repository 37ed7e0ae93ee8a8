package plan_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleeno/commission-engine/money"
	"github.com/pleeno/commission-engine/plan"
	memstore "github.com/pleeno/commission-engine/plan/store"
	"github.com/pleeno/commission-engine/schedule"
	"github.com/pleeno/commission-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// seed installs agency config, one college, and one branch at a 15% rate.
func seed(t *testing.T, store plan.Store) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, store.SaveConfig(ctx, plan.AgencyConfig{
		GSTRate:             money.MustParseDecimal("0.10"),
		InstitutionLeadDays: 14,
		DefaultTaxInclusive: false,
		Currency:            money.AUD,
		UpdatedAt:           time.Now(),
	}))
	require.NoError(t, store.SaveCollege(ctx, plan.College{
		ID: "col-1", Name: "Aurora College", CreatedAt: time.Now(),
	}))
	require.NoError(t, store.SaveBranch(ctx, plan.Branch{
		ID: "br-1", CollegeID: "col-1", Name: "City Campus",
		CommissionRatePercent: money.MustParseDecimal("15"),
		CreatedAt:             time.Now(),
	}))
}

// seededStore spins up an in-memory sqlite store with the standard seed.
func seededStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	seed(t, store)
	return store
}

func newTestService(t *testing.T) (*plan.Service, *sqlite.Store) {
	t.Helper()
	store := seededStore(t)
	return plan.NewService(store), store
}

var marchFirst = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

func monthlyInput(total, materials string, count int, start time.Time) plan.NewPlanInput {
	return plan.NewPlanInput{
		EnrollmentID:     "enr-1",
		BranchID:         "br-1",
		TotalAmount:      money.MustParseDecimal(total),
		MaterialsCost:    money.MustParseDecimal(materials),
		InstallmentCount: count,
		Frequency:        schedule.FrequencyMonthly,
		StartDate:        start,
	}
}

// approvedPlan creates and approves a plan, returning it with its frozen
// schedule.
func approvedPlan(t *testing.T, svc *plan.Service, in plan.NewPlanInput) (*plan.PaymentPlan, []plan.Installment) {
	t.Helper()
	ctx := context.Background()

	p, _, err := svc.CreatePlan(ctx, in)
	require.NoError(t, err)

	p, err = svc.ApprovePlan(ctx, p.ID)
	require.NoError(t, err)

	insts, err := svc.Store.ListInstallments(ctx, p.ID)
	require.NoError(t, err)
	return p, insts
}

func pay(t *testing.T, svc *plan.Service, planID plan.PlanID, instID plan.InstallmentID, amount, key string) *plan.PaymentPlan {
	t.Helper()
	p, err := svc.RecordPayment(context.Background(), plan.RecordPaymentInput{
		PlanID:         planID,
		InstallmentID:  instID,
		Amount:         money.MustParseDecimal(amount),
		PaidDate:       marchFirst.AddDate(0, 0, 3),
		IdempotencyKey: key,
		RecordedBy:     "test",
	})
	require.NoError(t, err)
	return p
}

// assertAmount compares at display precision, e.g. "1350.00".
func assertAmount(t *testing.T, want string, got money.Amount) {
	t.Helper()
	assert.Equal(t, want, got.String())
}

// =============================================================================
// PLAN CREATION TESTS
// =============================================================================

func TestCreatePlan_SplitsTotalAcrossInstallments(t *testing.T) {
	// GIVEN: 1000.00 over 3 monthly installments
	// WHEN: Creating the plan
	// THEN: Draft schedule is 333.33 / 333.33 / 333.34, summing exactly

	svc, _ := newTestService(t)
	ctx := context.Background()

	p, insts, err := svc.CreatePlan(ctx, monthlyInput("1000", "0", 3, marchFirst))
	require.NoError(t, err)

	assert.Equal(t, plan.PlanDraft, p.Status)
	assertAmount(t, "0.00", p.ExpectedCommission)
	assertAmount(t, "0.00", p.EarnedCommission)
	assert.Equal(t, "15", p.CommissionRatePercent.String(), "rate snapshotted from branch")

	require.Len(t, insts, 3)
	assertAmount(t, "333.33", insts[0].Amount)
	assertAmount(t, "333.33", insts[1].Amount)
	assertAmount(t, "333.34", insts[2].Amount)

	sum := insts[0].Amount.Add(insts[1].Amount).Add(insts[2].Amount)
	assert.True(t, sum.Equal(p.TotalAmount), "schedule must sum to the total")
}

func TestCreatePlan_DatesStepMonthlyWithLeadTime(t *testing.T) {
	// GIVEN: A monthly plan starting March 1 with a 14-day institution lead
	// WHEN: Creating the plan
	// THEN: Student due dates step by month; institution dates trail by 14 days

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, insts, err := svc.CreatePlan(ctx, monthlyInput("900", "0", 3, marchFirst))
	require.NoError(t, err)

	require.Len(t, insts, 3)
	wantStudent := []string{"2025-03-01", "2025-04-01", "2025-05-01"}
	wantInstitution := []string{"2025-03-15", "2025-04-15", "2025-05-15"}
	for i, inst := range insts {
		require.NotNil(t, inst.StudentDueDate)
		require.NotNil(t, inst.InstitutionDueDate)
		assert.Equal(t, wantStudent[i], inst.StudentDueDate.Format("2006-01-02"))
		assert.Equal(t, wantInstitution[i], inst.InstitutionDueDate.Format("2006-01-02"))
	}
}

func TestCreatePlan_RequiresAgencyConfig(t *testing.T) {
	// GIVEN: A store with no agency configuration
	// WHEN: Creating a plan
	// THEN: ErrConfigNotFound

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := plan.NewService(store)
	_, _, err = svc.CreatePlan(context.Background(), monthlyInput("1000", "0", 3, marchFirst))

	assert.ErrorIs(t, err, plan.ErrConfigNotFound)
}

func TestCreatePlan_UnknownBranch(t *testing.T) {
	svc, _ := newTestService(t)

	in := monthlyInput("1000", "0", 3, marchFirst)
	in.BranchID = "br-missing"

	_, _, err := svc.CreatePlan(context.Background(), in)
	assert.ErrorIs(t, err, plan.ErrBranchNotFound)
}

func TestCreatePlan_RejectsNegativeFees(t *testing.T) {
	svc, _ := newTestService(t)

	in := monthlyInput("1000", "0", 3, marchFirst)
	in.AdminFees = money.MustParseDecimal("-50")

	_, _, err := svc.CreatePlan(context.Background(), in)
	assert.Error(t, err)
}

func TestPreviewSchedule_PersistsNothing(t *testing.T) {
	// GIVEN: A preview request
	// WHEN: Drafting the schedule
	// THEN: Amounts come back split, but no plan is stored

	svc, store := newTestService(t)
	ctx := context.Background()

	draft, err := svc.PreviewSchedule(ctx, money.MustParseDecimal("1000"), 3, schedule.FrequencyMonthly, marchFirst)
	require.NoError(t, err)
	require.Len(t, draft, 3)
	assertAmount(t, "333.34", draft[2].Amount)

	plans, err := store.ListPlans(ctx, plan.PlanFilter{})
	require.NoError(t, err)
	assert.Empty(t, plans)
}

// =============================================================================
// DRAFT SCHEDULE EDITING TESTS
// =============================================================================

func editSlot(number int, amount string, due time.Time) plan.InstallmentEdit {
	return plan.InstallmentEdit{
		Number:              number,
		Amount:              money.MustParseDecimal(amount),
		StudentDueDate:      &due,
		GeneratesCommission: true,
	}
}

func TestUpdateDraftSchedule_ReplacesSlots(t *testing.T) {
	// GIVEN: A draft plan of 1000.00 over 3
	// WHEN: Hand-editing the split to 400 / 350 / 250
	// THEN: The edited schedule replaces the computed one, dates re-derived

	svc, _ := newTestService(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlan(ctx, monthlyInput("1000", "0", 3, marchFirst))
	require.NoError(t, err)

	insts, err := svc.UpdateDraftSchedule(ctx, p.ID, []plan.InstallmentEdit{
		editSlot(1, "400", marchFirst),
		editSlot(2, "350", marchFirst.AddDate(0, 1, 0)),
		editSlot(3, "250", marchFirst.AddDate(0, 2, 0)),
	})
	require.NoError(t, err)

	require.Len(t, insts, 3)
	assertAmount(t, "400.00", insts[0].Amount)
	assertAmount(t, "250.00", insts[2].Amount)
	require.NotNil(t, insts[0].InstitutionDueDate)
	assert.Equal(t, "2025-03-15", insts[0].InstitutionDueDate.Format("2006-01-02"))
}

func TestUpdateDraftSchedule_SumMismatchRejected(t *testing.T) {
	// GIVEN: A draft plan of 1000.00
	// WHEN: Editing to installments summing to 900.00
	// THEN: Rejected with the schedule invariant error; nothing renormalized

	svc, _ := newTestService(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlan(ctx, monthlyInput("1000", "0", 3, marchFirst))
	require.NoError(t, err)

	_, err = svc.UpdateDraftSchedule(ctx, p.ID, []plan.InstallmentEdit{
		editSlot(1, "400", marchFirst),
		editSlot(2, "300", marchFirst.AddDate(0, 1, 0)),
		editSlot(3, "200", marchFirst.AddDate(0, 2, 0)),
	})

	assert.ErrorIs(t, err, schedule.ErrScheduleInvariant)

	// The computed schedule must have survived
	insts, err := svc.Store.ListInstallments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, insts, 3)
	assertAmount(t, "333.33", insts[0].Amount)
}

func TestUpdateDraftSchedule_NonContiguousNumbersRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, _, err := svc.CreatePlan(ctx, monthlyInput("1000", "0", 2, marchFirst))
	require.NoError(t, err)

	_, err = svc.UpdateDraftSchedule(ctx, p.ID, []plan.InstallmentEdit{
		editSlot(1, "500", marchFirst),
		editSlot(3, "500", marchFirst.AddDate(0, 1, 0)),
	})
	assert.Error(t, err)
}

func TestUpdateDraftSchedule_OnlyOnDrafts(t *testing.T) {
	// GIVEN: An approved plan
	// WHEN: Attempting a schedule edit
	// THEN: Rejected with a status error

	svc, _ := newTestService(t)
	p, _ := approvedPlan(t, svc, monthlyInput("1000", "0", 2, marchFirst))

	_, err := svc.UpdateDraftSchedule(context.Background(), p.ID, []plan.InstallmentEdit{
		editSlot(1, "500", marchFirst),
		editSlot(2, "500", marchFirst.AddDate(0, 1, 0)),
	})

	assert.ErrorIs(t, err, plan.ErrInvalidStatus)
	var statusErr *plan.StatusError
	assert.ErrorAs(t, err, &statusErr)
}

// =============================================================================
// APPROVAL TESTS
// =============================================================================

func TestApprovePlan_FreezesExpectedCommission(t *testing.T) {
	// GIVEN: 10000.00 total with 1000.00 materials at a 15% branch rate
	// WHEN: Approving the plan
	// THEN: Expected = (10000 - 1000) x 15% = 1350.00, installments pending

	svc, _ := newTestService(t)
	p, insts := approvedPlan(t, svc, monthlyInput("10000", "1000", 4, marchFirst))

	assert.Equal(t, plan.PlanActive, p.Status)
	assertAmount(t, "1350.00", p.ExpectedCommission)
	assertAmount(t, "0.00", p.EarnedCommission)
	require.NotNil(t, p.ApprovedAt)

	require.Len(t, insts, 4)
	for _, inst := range insts {
		assert.Equal(t, plan.InstallmentPending, inst.Status)
	}
}

func TestApprovePlan_FeeOnlyPlanYieldsZeroCommission(t *testing.T) {
	// GIVEN: Fees meet or exceed the plan total (negative base)
	// WHEN: Approving
	// THEN: Expected clamps to zero rather than erroring

	svc, _ := newTestService(t)

	in := monthlyInput("1200", "800", 2, marchFirst)
	in.AdminFees = money.MustParseDecimal("300")
	in.OtherFees = money.MustParseDecimal("200")

	p, _ := approvedPlan(t, svc, in)
	assertAmount(t, "0.00", p.ExpectedCommission)
}

func TestApprovePlan_OnlyOnDrafts(t *testing.T) {
	svc, _ := newTestService(t)
	p, _ := approvedPlan(t, svc, monthlyInput("1000", "0", 2, marchFirst))

	_, err := svc.ApprovePlan(context.Background(), p.ID)
	assert.ErrorIs(t, err, plan.ErrInvalidStatus)
}

func TestApprovePlan_RequiresAllDueDates(t *testing.T) {
	// GIVEN: A custom-cadence draft where only the first slot is dated
	// WHEN: Approving
	// THEN: ErrMissingDueDates

	svc, _ := newTestService(t)
	ctx := context.Background()

	in := monthlyInput("1000", "0", 3, marchFirst)
	in.Frequency = schedule.FrequencyCustom

	p, _, err := svc.CreatePlan(ctx, in)
	require.NoError(t, err)

	_, err = svc.ApprovePlan(ctx, p.ID)
	assert.ErrorIs(t, err, plan.ErrMissingDueDates)
}

// =============================================================================
// PAYMENT RECORDING TESTS
// =============================================================================

func TestRecordPayment_PartialPaymentAccruesProportionally(t *testing.T) {
	// GIVEN: 10000.00 plan, 1000.00 fees, 15% rate -> expected 1350.00
	// WHEN: Installment 1 paid in full (2500) and installment 2 paid 2000
	// THEN: Earned = 4500 / 9000 x 1350 = 675.00, plan still active

	svc, _ := newTestService(t)
	p, insts := approvedPlan(t, svc, monthlyInput("10000", "1000", 4, marchFirst))

	pay(t, svc, p.ID, insts[0].ID, "2500", "pay-1")
	p = pay(t, svc, p.ID, insts[1].ID, "2000", "pay-2")

	assertAmount(t, "675.00", p.EarnedCommission)
	assert.Equal(t, plan.PlanActive, p.Status)

	// The partial installment records what was actually received
	inst, err := svc.Store.GetInstallment(context.Background(), insts[1].ID)
	require.NoError(t, err)
	assert.Equal(t, plan.InstallmentPaid, inst.Status)
	assertAmount(t, "2000.00", inst.PaidAmount)
}

func TestRecordPayment_LastInstallmentCompletesPlan(t *testing.T) {
	// GIVEN: An active 2-installment plan
	// WHEN: Both installments are paid in full
	// THEN: Plan completes with earned == expected

	svc, _ := newTestService(t)
	p, insts := approvedPlan(t, svc, monthlyInput("1000", "0", 2, marchFirst))

	pay(t, svc, p.ID, insts[0].ID, "500", "pay-1")
	p = pay(t, svc, p.ID, insts[1].ID, "500", "pay-2")

	assert.Equal(t, plan.PlanCompleted, p.Status)
	require.NotNil(t, p.CompletedAt)
	assert.True(t, p.EarnedCommission.Equal(p.ExpectedCommission))
	assertAmount(t, "150.00", p.EarnedCommission)
}

func TestRecordPayment_ReplayWithSameKeyIsNoOp(t *testing.T) {
	// GIVEN: A payment posted with idempotency key "pay-1"
	// WHEN: The same posting is retried
	// THEN: No double count: one ledger event, earned unchanged

	svc, _ := newTestService(t)
	p, insts := approvedPlan(t, svc, monthlyInput("10000", "1000", 4, marchFirst))
	ctx := context.Background()

	first := pay(t, svc, p.ID, insts[0].ID, "2500", "pay-1")

	replayed, err := svc.RecordPayment(ctx, plan.RecordPaymentInput{
		PlanID:         p.ID,
		InstallmentID:  insts[0].ID,
		Amount:         money.MustParseDecimal("2500"),
		PaidDate:       marchFirst,
		IdempotencyKey: "pay-1",
		RecordedBy:     "test",
	})
	require.NoError(t, err, "replay should be absorbed, not fail")

	assert.True(t, replayed.EarnedCommission.Equal(first.EarnedCommission))

	events, err := svc.Ledger.History(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1, "replay must not append a second event")
}

func TestRecordPayment_RejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newTestService(t)
	p, insts := approvedPlan(t, svc, monthlyInput("1000", "0", 2, marchFirst))

	_, err := svc.RecordPayment(context.Background(), plan.RecordPaymentInput{
		PlanID:        p.ID,
		InstallmentID: insts[0].ID,
		Amount:        money.MustParseDecimal("0"),
		PaidDate:      marchFirst,
	})
	assert.ErrorIs(t, err, plan.ErrInvalidPayment)
}

func TestRecordPayment_InstallmentMustBelongToPlan(t *testing.T) {
	// GIVEN: Two plans
	// WHEN: Paying plan A against an installment of plan B
	// THEN: ErrInstallmentMismatch

	svc, _ := newTestService(t)
	a, _ := approvedPlan(t, svc, monthlyInput("1000", "0", 2, marchFirst))

	inB := monthlyInput("2000", "0", 2, marchFirst)
	inB.EnrollmentID = "enr-2"
	_, instsB := approvedPlan(t, svc, inB)

	_, err := svc.RecordPayment(context.Background(), plan.RecordPaymentInput{
		PlanID:        a.ID,
		InstallmentID: instsB[0].ID,
		Amount:        money.MustParseDecimal("500"),
		PaidDate:      marchFirst,
	})
	assert.ErrorIs(t, err, plan.ErrInstallmentMismatch)
}

func TestRecordPayment_PaidInstallmentRejected(t *testing.T) {
	// A different key on an already-paid installment is a real double post,
	// not a retry; it must fail.

	svc, _ := newTestService(t)
	p, insts := approvedPlan(t, svc, monthlyInput("1000", "0", 2, marchFirst))

	pay(t, svc, p.ID, insts[0].ID, "500", "pay-1")

	_, err := svc.RecordPayment(context.Background(), plan.RecordPaymentInput{
		PlanID:         p.ID,
		InstallmentID:  insts[0].ID,
		Amount:         money.MustParseDecimal("500"),
		PaidDate:       marchFirst,
		IdempotencyKey: "pay-other",
	})
	assert.ErrorIs(t, err, plan.ErrInvalidStatus)
}

func TestRecordPayment_RequiresActivePlan(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, insts, err := svc.CreatePlan(ctx, monthlyInput("1000", "0", 2, marchFirst))
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, plan.RecordPaymentInput{
		PlanID:        p.ID,
		InstallmentID: insts[0].ID,
		Amount:        money.MustParseDecimal("500"),
		PaidDate:      marchFirst,
	})
	assert.ErrorIs(t, err, plan.ErrInvalidStatus)
}

func TestRecordPayment_ConcurrentPaymentsAllLand(t *testing.T) {
	// GIVEN: An active 4-installment plan
	// WHEN: Each installment is paid in full from its own goroutine
	// THEN: All four land exactly once; the plan completes with earned ==
	//       expected and reconciliation finds no drift

	mem := memstore.NewTxMemory()
	seed(t, mem)
	svc := plan.NewService(mem)

	p, insts := approvedPlan(t, svc, monthlyInput("10000", "1000", 4, marchFirst))

	var wg sync.WaitGroup
	errs := make(chan error, len(insts))
	for i := range insts {
		wg.Add(1)
		go func(inst plan.Installment, key string) {
			defer wg.Done()
			_, err := svc.RecordPayment(context.Background(), plan.RecordPaymentInput{
				PlanID:         p.ID,
				InstallmentID:  inst.ID,
				Amount:         inst.Amount.Value,
				PaidDate:       marchFirst,
				IdempotencyKey: key,
				RecordedBy:     "test",
			})
			errs <- err
		}(insts[i], fmt.Sprintf("pay-%d", i+1))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	ctx := context.Background()
	reloaded, err := svc.Store.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.PlanCompleted, reloaded.Status)
	assertAmount(t, "1350.00", reloaded.EarnedCommission)

	events, err := svc.Ledger.History(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, events, 4)

	_, _, repaired, err := svc.RepairEarned(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, repaired)
}

// =============================================================================
// OVERDUE SWEEP TESTS
// =============================================================================

func TestMarkOverdue_FlagsPastDuePendingInstallments(t *testing.T) {
	// GIVEN: A plan with due dates Jan/Feb/Mar/Apr 15
	// WHEN: Sweeping as of March 20
	// THEN: The first three go overdue; April stays pending

	svc, _ := newTestService(t)
	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	p, _ := approvedPlan(t, svc, monthlyInput("4000", "0", 4, start))

	ctx := context.Background()
	n, err := svc.MarkOverdue(ctx, time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	insts, err := svc.Store.ListInstallments(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.InstallmentOverdue, insts[0].Status)
	assert.Equal(t, plan.InstallmentOverdue, insts[2].Status)
	assert.Equal(t, plan.InstallmentPending, insts[3].Status)
}

func TestMarkOverdue_OverdueInstallmentStillAcceptsPayment(t *testing.T) {
	svc, _ := newTestService(t)
	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	p, insts := approvedPlan(t, svc, monthlyInput("1000", "0", 2, start))

	_, err := svc.MarkOverdue(context.Background(), time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	paid := pay(t, svc, p.ID, insts[0].ID, "500", "late-pay")
	assertAmount(t, "75.00", paid.EarnedCommission)
}

func TestMarkOverdue_IsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	approvedPlan(t, svc, monthlyInput("1000", "0", 2, start))

	asOf := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	n, err := svc.MarkOverdue(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Second sweep finds nothing pending
	n, err = svc.MarkOverdue(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// dueListStore lets a test run a callback right after the overdue sweep
// takes its due-installment snapshot.
type dueListStore struct {
	plan.TxStore
	afterList func()
}

func (s *dueListStore) ListDueInstallments(ctx context.Context, before time.Time) ([]plan.Installment, error) {
	due, err := s.TxStore.ListDueInstallments(ctx, before)
	if err == nil && s.afterList != nil {
		s.afterList()
	}
	return due, err
}

func TestMarkOverdue_PaymentLandingMidSweepIsKept(t *testing.T) {
	// GIVEN: Two past-due installments, with a payment posting between the
	//        sweep's due-list snapshot and its write-back
	// WHEN: The sweep resumes over the stale snapshot
	// THEN: The paid installment keeps its payment and earned commission;
	//       only the untouched one goes overdue, and nothing drifts

	store := seededStore(t)
	hooked := &dueListStore{TxStore: store}
	svc := plan.NewService(hooked)

	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	p, insts := approvedPlan(t, svc, monthlyInput("1000", "0", 2, start))

	hooked.afterList = func() {
		pay(t, svc, p.ID, insts[0].ID, "500", "mid-sweep-pay")
	}

	ctx := context.Background()
	n, err := svc.MarkOverdue(ctx, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the still-pending installment transitions")

	after, err := store.ListInstallments(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.InstallmentPaid, after[0].Status)
	assertAmount(t, "500.00", after[0].PaidAmount)
	require.NotNil(t, after[0].PaidDate)
	assert.Equal(t, plan.InstallmentOverdue, after[1].Status)

	reloaded, err := store.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assertAmount(t, "75.00", reloaded.EarnedCommission)

	_, _, repaired, err := svc.RepairEarned(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, repaired, "sweep must not introduce commission drift")
}

// =============================================================================
// CANCELLATION AND RECALCULATION TESTS
// =============================================================================

func TestCancelPlan_PreservesPaidHistory(t *testing.T) {
	// GIVEN: An active plan with one installment paid
	// WHEN: Cancelling
	// THEN: Unpaid installments cancel, the paid one and its earned stay

	svc, _ := newTestService(t)
	p, insts := approvedPlan(t, svc, monthlyInput("1000", "0", 2, marchFirst))
	pay(t, svc, p.ID, insts[0].ID, "500", "pay-1")

	ctx := context.Background()
	p, err := svc.CancelPlan(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, plan.PlanCancelled, p.Status)
	require.NotNil(t, p.CancelledAt)
	assertAmount(t, "75.00", p.EarnedCommission)

	after, err := svc.Store.ListInstallments(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.InstallmentPaid, after[0].Status)
	assert.Equal(t, plan.InstallmentCancelled, after[1].Status)
}

func TestCancelPlan_ClosedPlanRejected(t *testing.T) {
	svc, _ := newTestService(t)
	p, _ := approvedPlan(t, svc, monthlyInput("1000", "0", 2, marchFirst))

	ctx := context.Background()
	_, err := svc.CancelPlan(ctx, p.ID)
	require.NoError(t, err)

	_, err = svc.CancelPlan(ctx, p.ID)
	assert.ErrorIs(t, err, plan.ErrInvalidStatus)
}

func TestRecalculateExpected_AppliesCorrectedRate(t *testing.T) {
	// GIVEN: An active plan at 15% with 4500.00 paid (earned 675.00)
	// WHEN: An administrator corrects the rate to 20%
	// THEN: Expected moves to 1800.00 and earned re-derives to 900.00

	svc, _ := newTestService(t)
	p, insts := approvedPlan(t, svc, monthlyInput("10000", "1000", 4, marchFirst))
	pay(t, svc, p.ID, insts[0].ID, "2500", "pay-1")
	pay(t, svc, p.ID, insts[1].ID, "2000", "pay-2")

	rate := money.MustParseDecimal("20")
	p, err := svc.RecalculateExpected(context.Background(), p.ID, &rate)
	require.NoError(t, err)

	assertAmount(t, "1800.00", p.ExpectedCommission)
	assertAmount(t, "900.00", p.EarnedCommission)
}

func TestRecalculateExpected_RejectsOutOfRangeRate(t *testing.T) {
	svc, _ := newTestService(t)
	p, _ := approvedPlan(t, svc, monthlyInput("1000", "0", 2, marchFirst))

	rate := money.MustParseDecimal("150")
	_, err := svc.RecalculateExpected(context.Background(), p.ID, &rate)
	assert.ErrorIs(t, err, money.ErrInvalidRate)
}

// =============================================================================
// RECONCILIATION TESTS
// =============================================================================

func TestRepairEarned_DetectsAndFixesDrift(t *testing.T) {
	// GIVEN: A stored plan whose cached earned figure was corrupted
	// WHEN: Running the repair
	// THEN: Drift is reported and the recomputed value written back

	svc, store := newTestService(t)
	p, insts := approvedPlan(t, svc, monthlyInput("10000", "1000", 4, marchFirst))
	pay(t, svc, p.ID, insts[0].ID, "2500", "pay-1")

	ctx := context.Background()

	// Corrupt the cache behind the service's back
	stored, err := store.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	stored.EarnedCommission = money.NewAmountFromDecimal(money.MustParseDecimal("999"), stored.Currency)
	require.NoError(t, store.SavePlan(ctx, *stored))

	cached, recomputed, repaired, err := svc.RepairEarned(ctx, p.ID)
	require.NoError(t, err)

	assert.True(t, repaired)
	assertAmount(t, "999.00", cached)
	assertAmount(t, "375.00", recomputed) // 2500 / 9000 x 1350

	fixed, err := store.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assertAmount(t, "375.00", fixed.EarnedCommission)
}

func TestRepairEarned_CleanPlanUntouched(t *testing.T) {
	svc, _ := newTestService(t)
	p, insts := approvedPlan(t, svc, monthlyInput("10000", "1000", 4, marchFirst))
	pay(t, svc, p.ID, insts[0].ID, "2500", "pay-1")

	cached, recomputed, repaired, err := svc.RepairEarned(context.Background(), p.ID)
	require.NoError(t, err)

	assert.False(t, repaired)
	assert.True(t, cached.Equal(recomputed))
}

// =============================================================================
// REPORTING INPUT TESTS
// =============================================================================

func TestSummaries_ExcludesDraftPlans(t *testing.T) {
	// GIVEN: One draft and one approved plan
	// WHEN: Assembling report summaries
	// THEN: Only the approved plan appears, with names joined

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.CreatePlan(ctx, monthlyInput("500", "0", 1, marchFirst))
	require.NoError(t, err)

	inActive := monthlyInput("10000", "1000", 4, marchFirst)
	inActive.EnrollmentID = "enr-2"
	approvedPlan(t, svc, inActive)

	summaries, err := svc.Summaries(ctx, plan.PlanFilter{})
	require.NoError(t, err)

	require.Len(t, summaries, 1)
	assert.Equal(t, "Aurora College", summaries[0].CollegeName)
	assert.Equal(t, "City Campus", summaries[0].BranchName)
	assertAmount(t, "1350.00", summaries[0].Expected)
}

func TestForecast_ProjectsUnpaidMonths(t *testing.T) {
	// GIVEN: An active 1000.00 plan over March and April, expected 150.00
	// WHEN: Forecasting
	// THEN: Each month projects its proportional share, 75.00 + 75.00

	svc, _ := newTestService(t)
	approvedPlan(t, svc, monthlyInput("1000", "0", 2, marchFirst))

	entries, err := svc.Forecast(context.Background(), plan.PlanFilter{})
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "2025-03", entries[0].Month.Format("2006-01"))
	assertAmount(t, "75.00", entries[0].Expected)
	assert.Equal(t, "2025-04", entries[1].Month.Format("2006-01"))
	assertAmount(t, "75.00", entries[1].Expected)
}

func TestForecast_PaidInstallmentsDropOut(t *testing.T) {
	svc, _ := newTestService(t)
	p, insts := approvedPlan(t, svc, monthlyInput("1000", "0", 2, marchFirst))
	pay(t, svc, p.ID, insts[0].ID, "500", "pay-1")

	entries, err := svc.Forecast(context.Background(), plan.PlanFilter{})
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "2025-04", entries[0].Month.Format("2006-01"))
}
