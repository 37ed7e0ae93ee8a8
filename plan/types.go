/*
Package plan owns payment plans and the workflows around them.

PURPOSE:
  A PaymentPlan is one student enrollment's funding agreement: a total
  amount split into installments, a commission rate copied from the branch
  at creation, and the cached commission figures the engine derives. This
  package holds the domain types, the persistence interfaces, the
  append-only payment ledger, and the Service orchestrating the plan
  lifecycle:

    draft -> active -> completed
                \-> cancelled

  Draft plans carry an editable schedule. Approval freezes the schedule,
  computes expected commission, and moves installments to pending. Payment
  recording marks installments paid and recomputes earned commission under
  a per-plan single-writer lock.

KEY TYPES:
  PaymentPlan:  The agreement with cached expected/earned commission
  Installment:  One scheduled slice with due dates and payment state
  College,
  Branch:       The institution hierarchy reports group by; the branch
                carries the commission rate
  AgencyConfig: Agency-wide GST rate, lead time, currency defaults
  PaymentEvent: Append-only record of one payment posting

SEE ALSO:
  - workflow.go: The Service driving the lifecycle
  - ledger.go: Idempotent payment event recording
  - store.go: Persistence interfaces
  - commission/: The pure math this package persists results of
*/
package plan

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pleeno/commission-engine/commission"
	"github.com/pleeno/commission-engine/money"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PlanID string
type InstallmentID string
type CollegeID string
type BranchID string
type EventID string

// =============================================================================
// STATUSES
// =============================================================================

type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"     // Schedule editable, nothing frozen
	PlanActive    PlanStatus = "active"    // Approved, accruing earned commission
	PlanCompleted PlanStatus = "completed" // All commission-generating installments paid
	PlanCancelled PlanStatus = "cancelled" // Explicitly cancelled
)

type InstallmentStatus string

const (
	InstallmentDraft     InstallmentStatus = "draft"
	InstallmentPending   InstallmentStatus = "pending"
	InstallmentPaid      InstallmentStatus = "paid"
	InstallmentOverdue   InstallmentStatus = "overdue"
	InstallmentCancelled InstallmentStatus = "cancelled"
)

// =============================================================================
// PAYMENT PLAN
// =============================================================================

type PaymentPlan struct {
	ID           PlanID
	EnrollmentID string
	CollegeID    CollegeID
	BranchID     BranchID

	TotalAmount money.Amount
	Currency    money.Currency

	// Non-commissionable fees, each excluded from the commission base.
	MaterialsCost money.Amount
	AdminFees     money.Amount
	OtherFees     money.Amount

	// Copied from the branch at creation time, not live-linked.
	CommissionRatePercent decimal.Decimal

	// Derived figures. Expected is frozen at approval; earned is the cache
	// recomputed on every payment posting.
	ExpectedCommission money.Amount
	EarnedCommission   money.Amount

	TaxInclusive bool
	Status       PlanStatus

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ApprovedAt  *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// CommissionableFees is the sum of the fee components.
func (p *PaymentPlan) CommissionableFees() money.Amount {
	return p.MaterialsCost.Add(p.AdminFees).Add(p.OtherFees)
}

// CommissionableBase is the part of the total commission applies to.
func (p *PaymentPlan) CommissionableBase() money.Amount {
	return p.TotalAmount.Sub(p.CommissionableFees())
}

func (p *PaymentPlan) IsDraft() bool  { return p.Status == PlanDraft }
func (p *PaymentPlan) IsActive() bool { return p.Status == PlanActive }

// IsClosed reports whether the plan has reached a terminal status.
func (p *PaymentPlan) IsClosed() bool {
	return p.Status == PlanCompleted || p.Status == PlanCancelled
}

// =============================================================================
// INSTALLMENT
// =============================================================================

type Installment struct {
	ID     InstallmentID
	PlanID PlanID
	Number int

	Amount money.Amount

	StudentDueDate     *time.Time
	InstitutionDueDate *time.Time

	Status InstallmentStatus

	// Set when the installment is marked paid. PaidAmount may be below
	// Amount for a partial payment; commission attribution always uses
	// the actual PaidAmount.
	PaidAmount money.Amount
	PaidDate   *time.Time

	// False for fee-only slices; excluded from commission attribution.
	GeneratesCommission bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (i *Installment) IsPaid() bool { return i.Status == InstallmentPaid }

// CanRecordPayment reports whether a payment may post to this installment.
func (i *Installment) CanRecordPayment() bool {
	return i.Status == InstallmentPending || i.Status == InstallmentOverdue
}

// CommissionView converts the installment into the calculator's input form.
func (i *Installment) CommissionView() commission.Installment {
	return commission.Installment{
		PaidAmount:          i.PaidAmount,
		Paid:                i.IsPaid(),
		GeneratesCommission: i.GeneratesCommission,
	}
}

// ForecastView converts the installment into the projection's input form.
func (i *Installment) ForecastView() commission.ForecastInstallment {
	return commission.ForecastInstallment{
		Amount:              i.Amount,
		StudentDueDate:      i.StudentDueDate,
		Paid:                i.IsPaid(),
		GeneratesCommission: i.GeneratesCommission,
	}
}

// CommissionViews converts a plan's installments for the calculator.
func CommissionViews(installments []Installment) []commission.Installment {
	views := make([]commission.Installment, len(installments))
	for idx := range installments {
		views[idx] = installments[idx].CommissionView()
	}
	return views
}

// =============================================================================
// INSTITUTION HIERARCHY
// =============================================================================

type College struct {
	ID        CollegeID
	Name      string
	CreatedAt time.Time
}

type Branch struct {
	ID        BranchID
	CollegeID CollegeID
	Name      string

	// Rate applied to plans created under this branch. Validated [0, 100]
	// at write time; plans snapshot it at creation.
	CommissionRatePercent decimal.Decimal

	CreatedAt time.Time
}

// =============================================================================
// AGENCY CONFIGURATION
// =============================================================================

// AgencyConfig carries the agency-wide numeric inputs the engine consumes.
// Injected into each calculation call; never read as ambient state.
type AgencyConfig struct {
	GSTRate             decimal.Decimal // fractional, e.g. 0.10
	InstitutionLeadDays int
	DefaultTaxInclusive bool
	Currency            money.Currency
	UpdatedAt           time.Time
}

// =============================================================================
// PAYMENT EVENT - Append-only payment audit trail
// =============================================================================

type PaymentEvent struct {
	ID            EventID
	PlanID        PlanID
	InstallmentID InstallmentID
	Amount        money.Amount
	PaidDate      time.Time

	// Dedupes retried postings; a repeat of the same key is a no-op.
	IdempotencyKey string

	RecordedAt time.Time
	RecordedBy string
}

// =============================================================================
// AUDIT RUN - One pass of the cache-vs-recompute reconciliation
// =============================================================================

type AuditRun struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	PlansChecked int
	DriftFound   int
	Repaired     int
}
