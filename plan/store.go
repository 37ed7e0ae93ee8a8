/*
store.go - Persistence interfaces for plans and related records

PURPOSE:
  Defines the boundary between the domain and the database. The engine
  itself never dictates persistence technology; any backend upholding the
  contracts below can serve.

CONTRACTS A BACKEND MUST UPHOLD:
  - Schedule invariant: installments are written as a batch; a plan's
    schedule is never partially replaced.
  - Payment events are append-only and unique per idempotency key.
  - WithTx gives the workflow atomic read-modify-write over one plan's
    records; the per-plan single-writer discipline lives above, in the
    Service.

IMPLEMENTATIONS:
  - plan/store/memory.go: In-memory, for tests and demos
  - store/sqlite/: Embedded production store
  - store/postgres/: Server-grade store (GORM)

SEE ALSO:
  - workflow.go: The only writer of plans and installments
  - ledger.go: Payment event recording
*/
package plan

import (
	"context"
	"time"
)

// =============================================================================
// FILTERS
// =============================================================================

// PlanFilter narrows plan listings. Nil fields match everything. The
// half-open [From, To) window applies to plan creation time.
type PlanFilter struct {
	CollegeID    *CollegeID
	BranchID     *BranchID
	EnrollmentID *string
	Statuses     []PlanStatus
	From         *time.Time
	To           *time.Time
}

// Matches reports whether a plan passes the filter. Backends without query
// pushdown filter in memory with this.
func (f PlanFilter) Matches(p *PaymentPlan) bool {
	if f.CollegeID != nil && p.CollegeID != *f.CollegeID {
		return false
	}
	if f.BranchID != nil && p.BranchID != *f.BranchID {
		return false
	}
	if f.EnrollmentID != nil && p.EnrollmentID != *f.EnrollmentID {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if p.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.From != nil && p.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !p.CreatedAt.Before(*f.To) {
		return false
	}
	return true
}

// =============================================================================
// STORE
// =============================================================================

// Store persists plans, installments, the institution hierarchy, agency
// configuration, payment events, and audit runs.
type Store interface {
	// Colleges and branches
	SaveCollege(ctx context.Context, c College) error
	GetCollege(ctx context.Context, id CollegeID) (*College, error)
	ListColleges(ctx context.Context) ([]College, error)
	SaveBranch(ctx context.Context, b Branch) error
	GetBranch(ctx context.Context, id BranchID) (*Branch, error)
	ListBranches(ctx context.Context) ([]Branch, error)

	// Agency configuration (single row)
	GetConfig(ctx context.Context) (*AgencyConfig, error)
	SaveConfig(ctx context.Context, cfg AgencyConfig) error

	// Plans
	SavePlan(ctx context.Context, p PaymentPlan) error
	GetPlan(ctx context.Context, id PlanID) (*PaymentPlan, error)
	ListPlans(ctx context.Context, filter PlanFilter) ([]PaymentPlan, error)
	DeletePlan(ctx context.Context, id PlanID) error // cascades installments and events

	// Installments. SaveInstallments replaces a plan's draft schedule
	// atomically; ListInstallments orders by installment number.
	SaveInstallment(ctx context.Context, inst Installment) error
	SaveInstallments(ctx context.Context, planID PlanID, insts []Installment) error
	GetInstallment(ctx context.Context, id InstallmentID) (*Installment, error)
	ListInstallments(ctx context.Context, planID PlanID) ([]Installment, error)
	// ListDueInstallments returns pending installments whose student due
	// date falls strictly before the given time.
	ListDueInstallments(ctx context.Context, before time.Time) ([]Installment, error)

	// Payment events (append-only)
	AppendPaymentEvent(ctx context.Context, e PaymentEvent) error
	GetPaymentEventByKey(ctx context.Context, idempotencyKey string) (*PaymentEvent, error)
	ListPaymentEvents(ctx context.Context, planID PlanID) ([]PaymentEvent, error)

	// Audit runs
	RecordAuditRun(ctx context.Context, run AuditRun) error
	ListAuditRuns(ctx context.Context, limit int) ([]AuditRun, error)

	// Reset clears all data. Demo/test environments only.
	Reset(ctx context.Context) error
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support. If fn returns an error the
// transaction rolls back; otherwise it commits.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
