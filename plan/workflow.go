/*
workflow.go - Plan lifecycle orchestration

PURPOSE:
  The Service is the only writer of plans and installments. It drives:

  1. Creation:   draft plan + generated draft schedule
  2. Editing:    manual schedule edits, validated against the plan total,
                 or an explicit reset back to the computed split
  3. Approval:   schedule frozen, expected commission computed from the
                 snapshotted branch rate, installments go pending
  4. Payments:   installment marked paid, event appended to the ledger,
                 earned commission recomputed and written back
  5. Closure:    completion when every commission-generating installment
                 is paid, or explicit cancellation

CONCURRENCY:
  Payment recording and recalculation for one plan are serialized through
  a per-plan mutex: the read-installments -> compute -> write-back cycle
  never interleaves with another writer of the same plan. Different plans
  proceed in parallel. Store transactions make each cycle atomic on disk;
  the lock makes it exclusive in process.

CACHE INVALIDATION:
  Writes that change commission figures notify the Invalidator so stale
  breakdown summaries are dropped. A nil Invalidator disables this.

SEE ALSO:
  - schedule/: Draft generation and sum validation
  - commission/: Expected/earned math
  - ledger.go: Payment event recording
*/
package plan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pleeno/commission-engine/commission"
	"github.com/pleeno/commission-engine/money"
	"github.com/pleeno/commission-engine/report"
	"github.com/pleeno/commission-engine/schedule"
)

// SummaryInvalidator drops cached report summaries after commission
// figures change.
type SummaryInvalidator interface {
	InvalidateSummaries(ctx context.Context)
}

// Service orchestrates the plan lifecycle on top of a TxStore.
type Service struct {
	Store       TxStore
	Ledger      *PaymentLedger
	Invalidator SummaryInvalidator

	mu        sync.Mutex
	planLocks map[PlanID]*sync.Mutex
}

func NewService(store TxStore) *Service {
	return &Service{
		Store:     store,
		Ledger:    NewPaymentLedger(store),
		planLocks: make(map[PlanID]*sync.Mutex),
	}
}

// lockPlan acquires the per-plan mutex and returns its release func.
func (s *Service) lockPlan(id PlanID) func() {
	s.mu.Lock()
	l, ok := s.planLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.planLocks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) invalidate(ctx context.Context) {
	if s.Invalidator != nil {
		s.Invalidator.InvalidateSummaries(ctx)
	}
}

// =============================================================================
// PLAN CREATION
// =============================================================================

// NewPlanInput carries everything plan creation needs. Monetary values are
// plain decimals; the service tags them with the agency currency.
type NewPlanInput struct {
	EnrollmentID     string
	BranchID         BranchID
	TotalAmount      decimal.Decimal
	MaterialsCost    decimal.Decimal
	AdminFees        decimal.Decimal
	OtherFees        decimal.Decimal
	InstallmentCount int
	Frequency        schedule.Frequency
	StartDate        time.Time
	// Nil uses the agency default.
	TaxInclusive *bool
}

// PreviewSchedule drafts a schedule without persisting anything, using the
// agency lead time. The plan-creation UI shows this before committing.
func (s *Service) PreviewSchedule(ctx context.Context, total decimal.Decimal, count int, freq schedule.Frequency, start time.Time) ([]schedule.DraftInstallment, error) {
	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}
	return schedule.Generate(schedule.Input{
		TotalAmount:         money.NewAmountFromDecimal(total, cfg.Currency),
		InstallmentCount:    count,
		Frequency:           freq,
		StartDate:           start,
		InstitutionLeadDays: cfg.InstitutionLeadDays,
	})
}

// CreatePlan persists a draft plan with a generated draft schedule. The
// branch commission rate is snapshotted onto the plan here; later branch
// edits never touch existing plans.
func (s *Service) CreatePlan(ctx context.Context, in NewPlanInput) (*PaymentPlan, []Installment, error) {
	cfg, err := s.config(ctx)
	if err != nil {
		return nil, nil, err
	}

	branch, err := s.Store.GetBranch(ctx, in.BranchID)
	if err != nil {
		return nil, nil, err
	}
	if branch == nil {
		return nil, nil, ErrBranchNotFound
	}
	if err := money.ValidatePercentRate(branch.CommissionRatePercent); err != nil {
		return nil, nil, err
	}

	total := money.NewAmountFromDecimal(in.TotalAmount, cfg.Currency)
	draft, err := schedule.Generate(schedule.Input{
		TotalAmount:         total,
		InstallmentCount:    in.InstallmentCount,
		Frequency:           in.Frequency,
		StartDate:           in.StartDate,
		InstitutionLeadDays: cfg.InstitutionLeadDays,
	})
	if err != nil {
		return nil, nil, err
	}

	taxInclusive := cfg.DefaultTaxInclusive
	if in.TaxInclusive != nil {
		taxInclusive = *in.TaxInclusive
	}

	now := time.Now()
	p := PaymentPlan{
		ID:                    PlanID(uuid.New().String()),
		EnrollmentID:          in.EnrollmentID,
		CollegeID:             branch.CollegeID,
		BranchID:              branch.ID,
		TotalAmount:           total,
		Currency:              cfg.Currency,
		MaterialsCost:         money.NewAmountFromDecimal(in.MaterialsCost, cfg.Currency),
		AdminFees:             money.NewAmountFromDecimal(in.AdminFees, cfg.Currency),
		OtherFees:             money.NewAmountFromDecimal(in.OtherFees, cfg.Currency),
		CommissionRatePercent: branch.CommissionRatePercent,
		ExpectedCommission:    total.Zero(),
		EarnedCommission:      total.Zero(),
		TaxInclusive:          taxInclusive,
		Status:                PlanDraft,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if p.MaterialsCost.IsNegative() || p.AdminFees.IsNegative() || p.OtherFees.IsNegative() {
		return nil, nil, fmt.Errorf("fee amounts must not be negative")
	}

	insts := draftToInstallments(p.ID, draft, now)

	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.SavePlan(ctx, p); err != nil {
			return err
		}
		return tx.SaveInstallments(ctx, p.ID, insts)
	})
	if err != nil {
		return nil, nil, err
	}

	return &p, insts, nil
}

func draftToInstallments(planID PlanID, draft []schedule.DraftInstallment, now time.Time) []Installment {
	insts := make([]Installment, len(draft))
	for i, d := range draft {
		insts[i] = Installment{
			ID:                  InstallmentID(uuid.New().String()),
			PlanID:              planID,
			Number:              d.Number,
			Amount:              d.Amount,
			StudentDueDate:      d.StudentDueDate,
			InstitutionDueDate:  d.InstitutionDueDate,
			Status:              InstallmentDraft,
			PaidAmount:          d.Amount.Zero(),
			GeneratesCommission: true,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
	}
	return insts
}

// =============================================================================
// DRAFT SCHEDULE EDITING
// =============================================================================

// InstallmentEdit is one slot of a hand-edited schedule. Edits always
// replace the whole draft: numbers must run 1..N.
type InstallmentEdit struct {
	Number              int
	Amount              decimal.Decimal
	StudentDueDate      *time.Time
	GeneratesCommission bool
}

// UpdateDraftSchedule replaces a draft plan's schedule with hand-edited
// slots. The edited amounts must sum exactly to the plan total; nothing is
// renormalized on the user's behalf.
func (s *Service) UpdateDraftSchedule(ctx context.Context, planID PlanID, edits []InstallmentEdit) ([]Installment, error) {
	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.planForUpdate(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !p.IsDraft() {
		return nil, &StatusError{Op: "edit the schedule", Allowed: string(PlanDraft), Current: string(p.Status)}
	}

	amounts := make([]money.Amount, len(edits))
	for i, e := range edits {
		if e.Number != i+1 {
			return nil, fmt.Errorf("installment numbers must be contiguous from 1, got %d at position %d", e.Number, i+1)
		}
		amounts[i] = money.NewAmountFromDecimal(e.Amount, p.Currency)
	}
	if err := schedule.ValidateAmounts(p.TotalAmount, amounts); err != nil {
		return nil, err
	}

	now := time.Now()
	insts := make([]Installment, len(edits))
	for i, e := range edits {
		inst := Installment{
			ID:                  InstallmentID(uuid.New().String()),
			PlanID:              p.ID,
			Number:              e.Number,
			Amount:              amounts[i],
			Status:              InstallmentDraft,
			PaidAmount:          amounts[i].Zero(),
			GeneratesCommission: e.GeneratesCommission,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if e.StudentDueDate != nil {
			due := schedule.DateOnly(*e.StudentDueDate)
			instDue := schedule.InstitutionDue(due, cfg.InstitutionLeadDays)
			inst.StudentDueDate = &due
			inst.InstitutionDueDate = &instDue
		}
		insts[i] = inst
	}

	p.UpdatedAt = now
	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.SavePlan(ctx, *p); err != nil {
			return err
		}
		return tx.SaveInstallments(ctx, p.ID, insts)
	})
	if err != nil {
		return nil, err
	}
	return insts, nil
}

// ResetDraftSchedule throws away manual edits and regenerates the computed
// schedule from the plan's own parameters.
func (s *Service) ResetDraftSchedule(ctx context.Context, planID PlanID, count int, freq schedule.Frequency, start time.Time) ([]Installment, error) {
	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.planForUpdate(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !p.IsDraft() {
		return nil, &StatusError{Op: "reset the schedule", Allowed: string(PlanDraft), Current: string(p.Status)}
	}

	draft, err := schedule.Generate(schedule.Input{
		TotalAmount:         p.TotalAmount,
		InstallmentCount:    count,
		Frequency:           freq,
		StartDate:           start,
		InstitutionLeadDays: cfg.InstitutionLeadDays,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	insts := draftToInstallments(p.ID, draft, now)
	p.UpdatedAt = now

	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.SavePlan(ctx, *p); err != nil {
			return err
		}
		return tx.SaveInstallments(ctx, p.ID, insts)
	})
	if err != nil {
		return nil, err
	}
	return insts, nil
}

// =============================================================================
// APPROVAL
// =============================================================================

// ApprovePlan freezes the schedule and activates the plan. The schedule
// sum is re-validated here - a draft edited outside this service cannot
// sneak a broken sum past approval - and expected commission is computed
// from the snapshotted rate and frozen.
func (s *Service) ApprovePlan(ctx context.Context, planID PlanID) (*PaymentPlan, error) {
	unlock := s.lockPlan(planID)
	defer unlock()

	p, err := s.planForUpdate(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !p.IsDraft() {
		return nil, &StatusError{Op: "approve the plan", Allowed: string(PlanDraft), Current: string(p.Status)}
	}

	insts, err := s.Store.ListInstallments(ctx, planID)
	if err != nil {
		return nil, err
	}

	amounts := make([]money.Amount, len(insts))
	for i, inst := range insts {
		amounts[i] = inst.Amount
		if inst.StudentDueDate == nil {
			return nil, ErrMissingDueDates
		}
	}
	if err := schedule.ValidateAmounts(p.TotalAmount, amounts); err != nil {
		return nil, err
	}

	expected, err := commission.Expected(p.TotalAmount, p.CommissionableFees(), p.CommissionRatePercent)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p.ExpectedCommission = expected
	p.EarnedCommission = expected.Zero()
	p.Status = PlanActive
	p.ApprovedAt = &now
	p.UpdatedAt = now

	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.SavePlan(ctx, *p); err != nil {
			return err
		}
		for i := range insts {
			insts[i].Status = InstallmentPending
			insts[i].UpdatedAt = now
			if err := tx.SaveInstallment(ctx, insts[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return p, nil
}

// =============================================================================
// PAYMENT RECORDING
// =============================================================================

// RecordPaymentInput carries one payment posting.
type RecordPaymentInput struct {
	PlanID        PlanID
	InstallmentID InstallmentID
	Amount        decimal.Decimal
	PaidDate      time.Time
	// Optional; retries with the same key are no-ops.
	IdempotencyKey string
	RecordedBy     string
}

// RecordPayment marks an installment paid and recomputes the plan's earned
// commission, all under the plan's single-writer lock. A partial payment
// records the actual amount received. When the posting completes the last
// commission-generating installment, the plan completes.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (*PaymentPlan, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidPayment
	}

	unlock := s.lockPlan(in.PlanID)
	defer unlock()

	p, err := s.planForUpdate(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive() {
		return nil, &StatusError{Op: "record a payment", Allowed: string(PlanActive), Current: string(p.Status)}
	}

	inst, err := s.Store.GetInstallment(ctx, in.InstallmentID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, ErrInstallmentNotFound
	}
	if inst.PlanID != p.ID {
		return nil, ErrInstallmentMismatch
	}
	if !inst.CanRecordPayment() {
		return nil, &StatusError{Op: "record a payment", Allowed: "pending or overdue", Current: string(inst.Status)}
	}

	paid := money.NewAmountFromDecimal(in.Amount, p.Currency)
	paidDate := schedule.DateOnly(in.PaidDate)
	now := time.Now()

	event := PaymentEvent{
		ID:             EventID(uuid.New().String()),
		PlanID:         p.ID,
		InstallmentID:  inst.ID,
		Amount:         paid,
		PaidDate:       paidDate,
		IdempotencyKey: in.IdempotencyKey,
		RecordedAt:     now,
		RecordedBy:     in.RecordedBy,
	}

	err = s.Store.WithTx(ctx, func(tx Store) error {
		if _, err := NewPaymentLedger(tx).Record(ctx, event); err != nil {
			return err
		}

		inst.Status = InstallmentPaid
		inst.PaidAmount = paid
		inst.PaidDate = &paidDate
		inst.UpdatedAt = now
		if err := tx.SaveInstallment(ctx, *inst); err != nil {
			return err
		}

		insts, err := tx.ListInstallments(ctx, p.ID)
		if err != nil {
			return err
		}

		p.EarnedCommission = commission.Earned(
			CommissionViews(insts), p.TotalAmount, p.CommissionableFees(), p.ExpectedCommission)
		p.UpdatedAt = now

		if allCommissionInstallmentsPaid(insts) {
			p.Status = PlanCompleted
			p.CompletedAt = &now
		}

		return tx.SavePlan(ctx, *p)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicatePaymentKey) {
			// Already recorded by an earlier attempt; the stored plan is
			// the answer.
			return s.planForUpdate(ctx, in.PlanID)
		}
		return nil, err
	}

	s.invalidate(ctx)
	return p, nil
}

func allCommissionInstallmentsPaid(insts []Installment) bool {
	any := false
	for _, inst := range insts {
		if !inst.GeneratesCommission {
			continue
		}
		any = true
		if !inst.IsPaid() {
			return false
		}
	}
	return any
}

// =============================================================================
// OVERDUE SWEEP
// =============================================================================

// MarkOverdue moves pending installments whose student due date has passed
// to overdue. Returns how many transitioned. The due list is a snapshot
// taken outside the plan locks; each installment transitions only after a
// re-read under its plan's lock shows it still pending, so a payment that
// lands mid-sweep keeps its installment.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	due, err := s.Store.ListDueInstallments(ctx, schedule.DateOnly(asOf))
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range due {
		moved, err := s.sweepInstallment(ctx, due[i].PlanID, due[i].ID)
		if err != nil {
			return count, err
		}
		if moved {
			count++
		}
	}
	return count, nil
}

// sweepInstallment re-reads one due installment under its plan's lock and
// marks it overdue if it is still pending.
func (s *Service) sweepInstallment(ctx context.Context, planID PlanID, id InstallmentID) (bool, error) {
	unlock := s.lockPlan(planID)
	defer unlock()

	inst, err := s.Store.GetInstallment(ctx, id)
	if err != nil {
		return false, err
	}
	if inst == nil || inst.Status != InstallmentPending {
		return false, nil
	}

	inst.Status = InstallmentOverdue
	inst.UpdatedAt = time.Now()
	if err := s.Store.SaveInstallment(ctx, *inst); err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// CANCELLATION AND ADMINISTRATIVE RECALCULATION
// =============================================================================

// CancelPlan cancels a plan and its unpaid installments. Paid installments
// keep their history; earned commission stays where it is.
func (s *Service) CancelPlan(ctx context.Context, planID PlanID) (*PaymentPlan, error) {
	unlock := s.lockPlan(planID)
	defer unlock()

	p, err := s.planForUpdate(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p.IsClosed() {
		return nil, &StatusError{Op: "cancel the plan", Allowed: "draft or active", Current: string(p.Status)}
	}

	insts, err := s.Store.ListInstallments(ctx, planID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p.Status = PlanCancelled
	p.CancelledAt = &now
	p.UpdatedAt = now

	err = s.Store.WithTx(ctx, func(tx Store) error {
		for i := range insts {
			if insts[i].IsPaid() {
				continue
			}
			insts[i].Status = InstallmentCancelled
			insts[i].UpdatedAt = now
			if err := tx.SaveInstallment(ctx, insts[i]); err != nil {
				return err
			}
		}
		return tx.SavePlan(ctx, *p)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return p, nil
}

// RecalculateExpected is the administrative edit path: it recomputes the
// frozen expected commission, optionally under a corrected rate, and
// re-derives earned from the new figure.
func (s *Service) RecalculateExpected(ctx context.Context, planID PlanID, newRatePercent *decimal.Decimal) (*PaymentPlan, error) {
	unlock := s.lockPlan(planID)
	defer unlock()

	p, err := s.planForUpdate(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p.IsClosed() {
		return nil, &StatusError{Op: "recalculate commission", Allowed: "draft or active", Current: string(p.Status)}
	}

	if newRatePercent != nil {
		if err := money.ValidatePercentRate(*newRatePercent); err != nil {
			return nil, err
		}
		p.CommissionRatePercent = *newRatePercent
	}

	expected, err := commission.Expected(p.TotalAmount, p.CommissionableFees(), p.CommissionRatePercent)
	if err != nil {
		return nil, err
	}

	insts, err := s.Store.ListInstallments(ctx, planID)
	if err != nil {
		return nil, err
	}

	p.ExpectedCommission = expected
	p.EarnedCommission = commission.Earned(
		CommissionViews(insts), p.TotalAmount, p.CommissionableFees(), expected)
	p.UpdatedAt = time.Now()

	if err := s.Store.SavePlan(ctx, *p); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return p, nil
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// RecomputeEarned derives earned commission purely from installment state,
// never reading the cached figure. Reconciliation compares this against
// the cache.
func (s *Service) RecomputeEarned(ctx context.Context, planID PlanID) (money.Amount, error) {
	p, err := s.planForUpdate(ctx, planID)
	if err != nil {
		return money.Amount{}, err
	}
	insts, err := s.Store.ListInstallments(ctx, planID)
	if err != nil {
		return money.Amount{}, err
	}
	return commission.Earned(
		CommissionViews(insts), p.TotalAmount, p.CommissionableFees(), p.ExpectedCommission), nil
}

// RepairEarned recomputes one plan's earned commission and writes the
// result back if the cache drifted. Returns cached, recomputed, and
// whether a repair happened.
func (s *Service) RepairEarned(ctx context.Context, planID PlanID) (cached, recomputed money.Amount, repaired bool, err error) {
	unlock := s.lockPlan(planID)
	defer unlock()

	p, err := s.planForUpdate(ctx, planID)
	if err != nil {
		return money.Amount{}, money.Amount{}, false, err
	}

	insts, err := s.Store.ListInstallments(ctx, planID)
	if err != nil {
		return money.Amount{}, money.Amount{}, false, err
	}

	recomputed = commission.Earned(
		CommissionViews(insts), p.TotalAmount, p.CommissionableFees(), p.ExpectedCommission)
	cached = p.EarnedCommission

	if recomputed.Equal(cached) {
		return cached, recomputed, false, nil
	}

	p.EarnedCommission = recomputed
	p.UpdatedAt = time.Now()
	if err := s.Store.SavePlan(ctx, *p); err != nil {
		return cached, recomputed, false, err
	}

	s.invalidate(ctx)
	return cached, recomputed, true, nil
}

// =============================================================================
// REPORTING INPUT
// =============================================================================

// Summaries assembles the aggregation engine's input from stored plans,
// joining college and branch names. Draft plans are excluded; their
// figures aren't commitments yet.
func (s *Service) Summaries(ctx context.Context, filter PlanFilter) ([]report.PlanSummary, error) {
	plans, err := s.Store.ListPlans(ctx, filter)
	if err != nil {
		return nil, err
	}

	colleges, err := s.collegeNames(ctx)
	if err != nil {
		return nil, err
	}
	branches, err := s.branchNames(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]report.PlanSummary, 0, len(plans))
	for _, p := range plans {
		if p.IsDraft() {
			continue
		}
		summaries = append(summaries, report.PlanSummary{
			CollegeID:    string(p.CollegeID),
			CollegeName:  colleges[p.CollegeID],
			BranchID:     string(p.BranchID),
			BranchName:   branches[p.BranchID],
			Expected:     p.ExpectedCommission,
			Earned:       p.EarnedCommission,
			TaxInclusive: p.TaxInclusive,
		})
	}
	return summaries, nil
}

// Forecast projects monthly commission earnings across the filtered plans.
func (s *Service) Forecast(ctx context.Context, filter PlanFilter) ([]commission.ForecastEntry, error) {
	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}

	plans, err := s.Store.ListPlans(ctx, filter)
	if err != nil {
		return nil, err
	}

	inputs := make([]commission.ForecastPlan, 0, len(plans))
	for _, p := range plans {
		if !p.IsActive() {
			continue
		}
		insts, err := s.Store.ListInstallments(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		views := make([]commission.ForecastInstallment, len(insts))
		for i := range insts {
			views[i] = insts[i].ForecastView()
		}
		inputs = append(inputs, commission.ForecastPlan{
			Installments: views,
			Total:        p.TotalAmount,
			Fees:         p.CommissionableFees(),
			Expected:     p.ExpectedCommission,
		})
	}

	return commission.ForecastMonthly(inputs, cfg.Currency), nil
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

func (s *Service) config(ctx context.Context) (*AgencyConfig, error) {
	cfg, err := s.Store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}
	return cfg, nil
}

func (s *Service) planForUpdate(ctx context.Context, id PlanID) (*PaymentPlan, error) {
	p, err := s.Store.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPlanNotFound
	}
	return p, nil
}

func (s *Service) collegeNames(ctx context.Context) (map[CollegeID]string, error) {
	colleges, err := s.Store.ListColleges(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[CollegeID]string, len(colleges))
	for _, c := range colleges {
		names[c.ID] = c.Name
	}
	return names, nil
}

func (s *Service) branchNames(ctx context.Context) (map[BranchID]string, error) {
	branches, err := s.Store.ListBranches(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[BranchID]string, len(branches))
	for _, b := range branches {
		names[b.ID] = b.Name
	}
	return names, nil
}
