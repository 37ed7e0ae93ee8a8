/*
Package sqlite provides a SQLite-backed implementation of the plan storage
interfaces.

PURPOSE:
  Implements plan.Store and plan.TxStore using SQLite. In production, the
  same patterns apply to PostgreSQL - only minor SQL dialect differences
  (the postgres package carries that variant).

INTERFACES IMPLEMENTED:
  plan.Store:   Colleges, branches, agency config, plans, installments,
                payment events, audit runs
  plan.TxStore: Multi-statement atomicity for plan creation, approval and
                payment recording

APPEND-ONLY ENFORCEMENT:
  The payment_events table is append-only:
  - No UPDATE statements on payment_events
  - No DELETE statements outside plan cascade and Reset
  - The idempotency_key UNIQUE constraint rejects replays at the lowest
    layer, independent of the ledger's read-before-write check

MONEY REPRESENTATION:
  Monetary values and rates are stored as TEXT holding the decimal's exact
  string form. REAL would reintroduce the float drift the engine exists to
  avoid.

KEY TABLES:
  plans:          One row per payment plan with frozen commission figures
  installments:   The plan's schedule; replaced wholesale while drafting
  payment_events: Immutable payment ledger
  audit_runs:     Outcome of each commission audit sweep

INDEXES:
  - idx_installments_plan:       Schedule reads (hot path)
  - idx_installments_due:        Overdue sweep by status + student due date
  - idx_payment_events_plan:     Payment history reads
  - idx_plans_branch/college:    Breakdown filtering

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/pleeno.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := plan.NewService(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - plan/store.go: Interface definitions
  - plan/store/memory.go: In-memory implementation for testing
  - store/postgres: GORM-backed variant
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pleeno/commission-engine/money"
	"github.com/pleeno/commission-engine/plan"
)

// Store implements plan.Store and plan.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Colleges (institutions the agency recruits for)
	CREATE TABLE IF NOT EXISTS colleges (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Branches (campuses; each carries its own commission rate)
	CREATE TABLE IF NOT EXISTS branches (
		id TEXT PRIMARY KEY,
		college_id TEXT NOT NULL,
		name TEXT NOT NULL,
		commission_rate_percent TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_branches_college
		ON branches(college_id);

	-- Agency configuration (exactly one row, id always 1)
	CREATE TABLE IF NOT EXISTS agency_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		gst_rate TEXT NOT NULL,
		institution_lead_days INTEGER NOT NULL,
		default_tax_inclusive BOOLEAN NOT NULL,
		currency TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Payment plans
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		enrollment_id TEXT NOT NULL,
		college_id TEXT NOT NULL,
		branch_id TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		materials_cost TEXT NOT NULL,
		admin_fees TEXT NOT NULL,
		other_fees TEXT NOT NULL,
		commission_rate_percent TEXT NOT NULL,
		expected_commission TEXT NOT NULL,
		earned_commission TEXT NOT NULL,
		tax_inclusive BOOLEAN NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		approved_at TEXT,
		completed_at TEXT,
		cancelled_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_plans_college
		ON plans(college_id);
	CREATE INDEX IF NOT EXISTS idx_plans_branch
		ON plans(branch_id);
	CREATE INDEX IF NOT EXISTS idx_plans_status
		ON plans(status);
	CREATE INDEX IF NOT EXISTS idx_plans_enrollment
		ON plans(enrollment_id);
	CREATE INDEX IF NOT EXISTS idx_plans_created_at
		ON plans(created_at);

	-- Installments (a plan's schedule)
	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		student_due_date TEXT,
		institution_due_date TEXT,
		status TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		paid_date TEXT,
		generates_commission BOOLEAN NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(plan_id, number)
	);

	CREATE INDEX IF NOT EXISTS idx_installments_plan
		ON installments(plan_id, number);

	-- Overdue sweep: pending installments past their student due date
	CREATE INDEX IF NOT EXISTS idx_installments_due
		ON installments(status, student_due_date);

	-- Payment events (append-only ledger)
	CREATE TABLE IF NOT EXISTS payment_events (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		installment_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		paid_date TEXT NOT NULL,
		idempotency_key TEXT UNIQUE,
		recorded_at TEXT NOT NULL,
		recorded_by TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_payment_events_plan
		ON payment_events(plan_id);
	CREATE INDEX IF NOT EXISTS idx_payment_events_key
		ON payment_events(idempotency_key) WHERE idempotency_key IS NOT NULL;

	-- Audit runs (commission audit sweep outcomes)
	CREATE TABLE IF NOT EXISTS audit_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		plans_checked INTEGER NOT NULL DEFAULT 0,
		drift_found INTEGER NOT NULL DEFAULT 0,
		repaired INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_audit_runs_started
		ON audit_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so every statement can run
// either standalone or inside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// COLLEGES AND BRANCHES
// =============================================================================

// SaveCollege inserts or updates a college.
func (s *Store) SaveCollege(ctx context.Context, c plan.College) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCollegeTx(ctx, s.db, c)
}

func (s *Store) saveCollegeTx(ctx context.Context, db dbtx, c plan.College) error {
	query := `
		INSERT INTO colleges (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name
	`
	_, err := db.ExecContext(ctx, query,
		string(c.ID), c.Name, timeString(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save college: %w", err)
	}
	return nil
}

// GetCollege retrieves a college by ID. Returns nil when absent.
func (s *Store) GetCollege(ctx context.Context, id plan.CollegeID) (*plan.College, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCollegeTx(ctx, s.db, id)
}

func (s *Store) getCollegeTx(ctx context.Context, db dbtx, id plan.CollegeID) (*plan.College, error) {
	var c plan.College
	var createdAt string

	err := db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM colleges WHERE id = ?",
		string(id),
	).Scan(&c.ID, &c.Name, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// ListColleges returns all colleges ordered by ID.
func (s *Store) ListColleges(ctx context.Context) ([]plan.College, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCollegesTx(ctx, s.db)
}

func (s *Store) listCollegesTx(ctx context.Context, db dbtx) ([]plan.College, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, created_at FROM colleges ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query colleges: %w", err)
	}
	defer rows.Close()

	var colleges []plan.College
	for rows.Next() {
		var c plan.College
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan college: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		colleges = append(colleges, c)
	}
	return colleges, rows.Err()
}

// SaveBranch inserts or updates a branch.
func (s *Store) SaveBranch(ctx context.Context, b plan.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveBranchTx(ctx, s.db, b)
}

func (s *Store) saveBranchTx(ctx context.Context, db dbtx, b plan.Branch) error {
	query := `
		INSERT INTO branches (id, college_id, name, commission_rate_percent, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			college_id = excluded.college_id,
			name = excluded.name,
			commission_rate_percent = excluded.commission_rate_percent
	`
	_, err := db.ExecContext(ctx, query,
		string(b.ID), string(b.CollegeID), b.Name,
		b.CommissionRatePercent.String(), timeString(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save branch: %w", err)
	}
	return nil
}

// GetBranch retrieves a branch by ID. Returns nil when absent.
func (s *Store) GetBranch(ctx context.Context, id plan.BranchID) (*plan.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBranchTx(ctx, s.db, id)
}

func (s *Store) getBranchTx(ctx context.Context, db dbtx, id plan.BranchID) (*plan.Branch, error) {
	var b plan.Branch
	var rate, createdAt string

	err := db.QueryRowContext(ctx,
		"SELECT id, college_id, name, commission_rate_percent, created_at FROM branches WHERE id = ?",
		string(id),
	).Scan(&b.ID, &b.CollegeID, &b.Name, &rate, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b.CommissionRatePercent = money.MustParseDecimal(rate)
	b.CreatedAt = parseTime(createdAt)
	return &b, nil
}

// ListBranches returns all branches ordered by ID.
func (s *Store) ListBranches(ctx context.Context) ([]plan.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listBranchesTx(ctx, s.db)
}

func (s *Store) listBranchesTx(ctx context.Context, db dbtx) ([]plan.Branch, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, college_id, name, commission_rate_percent, created_at FROM branches ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query branches: %w", err)
	}
	defer rows.Close()

	var branches []plan.Branch
	for rows.Next() {
		var b plan.Branch
		var rate, createdAt string
		if err := rows.Scan(&b.ID, &b.CollegeID, &b.Name, &rate, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		b.CommissionRatePercent = money.MustParseDecimal(rate)
		b.CreatedAt = parseTime(createdAt)
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

// =============================================================================
// AGENCY CONFIGURATION
// =============================================================================

// GetConfig retrieves the single agency configuration row. Returns nil
// when the agency has not been configured yet.
func (s *Store) GetConfig(ctx context.Context) (*plan.AgencyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getConfigTx(ctx, s.db)
}

func (s *Store) getConfigTx(ctx context.Context, db dbtx) (*plan.AgencyConfig, error) {
	var cfg plan.AgencyConfig
	var gstRate, currency, updatedAt string

	err := db.QueryRowContext(ctx,
		"SELECT gst_rate, institution_lead_days, default_tax_inclusive, currency, updated_at FROM agency_config WHERE id = 1",
	).Scan(&gstRate, &cfg.InstitutionLeadDays, &cfg.DefaultTaxInclusive, &currency, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cfg.GSTRate = money.MustParseDecimal(gstRate)
	cfg.Currency = money.Currency(currency)
	cfg.UpdatedAt = parseTime(updatedAt)
	return &cfg, nil
}

// SaveConfig writes the single agency configuration row.
func (s *Store) SaveConfig(ctx context.Context, cfg plan.AgencyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveConfigTx(ctx, s.db, cfg)
}

func (s *Store) saveConfigTx(ctx context.Context, db dbtx, cfg plan.AgencyConfig) error {
	query := `
		INSERT INTO agency_config (id, gst_rate, institution_lead_days, default_tax_inclusive, currency, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			gst_rate = excluded.gst_rate,
			institution_lead_days = excluded.institution_lead_days,
			default_tax_inclusive = excluded.default_tax_inclusive,
			currency = excluded.currency,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		cfg.GSTRate.String(), cfg.InstitutionLeadDays, cfg.DefaultTaxInclusive,
		string(cfg.Currency), timeString(cfg.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// =============================================================================
// PLANS
// =============================================================================

// SavePlan inserts or updates a payment plan.
func (s *Store) SavePlan(ctx context.Context, p plan.PaymentPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savePlanTx(ctx, s.db, p)
}

func (s *Store) savePlanTx(ctx context.Context, db dbtx, p plan.PaymentPlan) error {
	query := `
		INSERT INTO plans (id, enrollment_id, college_id, branch_id, total_amount, currency,
			materials_cost, admin_fees, other_fees, commission_rate_percent,
			expected_commission, earned_commission, tax_inclusive, status,
			created_at, updated_at, approved_at, completed_at, cancelled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enrollment_id = excluded.enrollment_id,
			college_id = excluded.college_id,
			branch_id = excluded.branch_id,
			total_amount = excluded.total_amount,
			currency = excluded.currency,
			materials_cost = excluded.materials_cost,
			admin_fees = excluded.admin_fees,
			other_fees = excluded.other_fees,
			commission_rate_percent = excluded.commission_rate_percent,
			expected_commission = excluded.expected_commission,
			earned_commission = excluded.earned_commission,
			tax_inclusive = excluded.tax_inclusive,
			status = excluded.status,
			updated_at = excluded.updated_at,
			approved_at = excluded.approved_at,
			completed_at = excluded.completed_at,
			cancelled_at = excluded.cancelled_at
	`
	_, err := db.ExecContext(ctx, query,
		string(p.ID), p.EnrollmentID, string(p.CollegeID), string(p.BranchID),
		p.TotalAmount.Value.String(), string(p.Currency),
		p.MaterialsCost.Value.String(), p.AdminFees.Value.String(), p.OtherFees.Value.String(),
		p.CommissionRatePercent.String(),
		p.ExpectedCommission.Value.String(), p.EarnedCommission.Value.String(),
		p.TaxInclusive, string(p.Status),
		timeString(p.CreatedAt), timeString(p.UpdatedAt),
		nullTimeString(p.ApprovedAt), nullTimeString(p.CompletedAt), nullTimeString(p.CancelledAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

const planColumns = `id, enrollment_id, college_id, branch_id, total_amount, currency,
	materials_cost, admin_fees, other_fees, commission_rate_percent,
	expected_commission, earned_commission, tax_inclusive, status,
	created_at, updated_at, approved_at, completed_at, cancelled_at`

// GetPlan retrieves a plan by ID. Returns nil when absent.
func (s *Store) GetPlan(ctx context.Context, id plan.PlanID) (*plan.PaymentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPlanTx(ctx, s.db, id)
}

func (s *Store) getPlanTx(ctx context.Context, db dbtx, id plan.PlanID) (*plan.PaymentPlan, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+planColumns+" FROM plans WHERE id = ?", string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query plan: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	p, err := scanPlan(rows)
	if err != nil {
		return nil, err
	}
	return &p, rows.Err()
}

// ListPlans returns plans matching the filter, oldest first. Filtering is
// pushed down to SQL; the semantics match plan.PlanFilter.Matches.
func (s *Store) ListPlans(ctx context.Context, filter plan.PlanFilter) ([]plan.PaymentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPlansTx(ctx, s.db, filter)
}

func (s *Store) listPlansTx(ctx context.Context, db dbtx, filter plan.PlanFilter) ([]plan.PaymentPlan, error) {
	query := "SELECT " + planColumns + " FROM plans WHERE 1=1"
	var args []any

	if filter.CollegeID != nil {
		query += " AND college_id = ?"
		args = append(args, string(*filter.CollegeID))
	}
	if filter.BranchID != nil {
		query += " AND branch_id = ?"
		args = append(args, string(*filter.BranchID))
	}
	if filter.EnrollmentID != nil {
		query += " AND enrollment_id = ?"
		args = append(args, *filter.EnrollmentID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	if filter.From != nil {
		query += " AND created_at >= ?"
		args = append(args, timeString(*filter.From))
	}
	if filter.To != nil {
		query += " AND created_at < ?"
		args = append(args, timeString(*filter.To))
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []plan.PaymentPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// DeletePlan removes a plan together with its installments and payment
// events.
func (s *Store) DeletePlan(ctx context.Context, id plan.PlanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := s.deletePlanTx(ctx, sqlTx, id); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) deletePlanTx(ctx context.Context, db dbtx, id plan.PlanID) error {
	for _, stmt := range []string{
		"DELETE FROM payment_events WHERE plan_id = ?",
		"DELETE FROM installments WHERE plan_id = ?",
		"DELETE FROM plans WHERE id = ?",
	} {
		if _, err := db.ExecContext(ctx, stmt, string(id)); err != nil {
			return fmt.Errorf("failed to delete plan: %w", err)
		}
	}
	return nil
}

func scanPlan(rows *sql.Rows) (plan.PaymentPlan, error) {
	var (
		p                                    plan.PaymentPlan
		total, currency                      string
		materials, admin, other              string
		rate, expected, earned               string
		createdAt, updatedAt                 string
		approvedAt, completedAt, cancelledAt sql.NullString
	)

	err := rows.Scan(
		&p.ID, &p.EnrollmentID, &p.CollegeID, &p.BranchID, &total, &currency,
		&materials, &admin, &other, &rate,
		&expected, &earned, &p.TaxInclusive, &p.Status,
		&createdAt, &updatedAt, &approvedAt, &completedAt, &cancelledAt,
	)
	if err != nil {
		return p, fmt.Errorf("failed to scan plan: %w", err)
	}

	cur := money.Currency(currency)
	p.TotalAmount = parseAmount(total, cur)
	p.Currency = cur
	p.MaterialsCost = parseAmount(materials, cur)
	p.AdminFees = parseAmount(admin, cur)
	p.OtherFees = parseAmount(other, cur)
	p.CommissionRatePercent = money.MustParseDecimal(rate)
	p.ExpectedCommission = parseAmount(expected, cur)
	p.EarnedCommission = parseAmount(earned, cur)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	p.ApprovedAt = parseTimePtr(approvedAt)
	p.CompletedAt = parseTimePtr(completedAt)
	p.CancelledAt = parseTimePtr(cancelledAt)

	return p, nil
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

// SaveInstallment inserts or updates a single installment.
func (s *Store) SaveInstallment(ctx context.Context, inst plan.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveInstallmentTx(ctx, s.db, inst)
}

func (s *Store) saveInstallmentTx(ctx context.Context, db dbtx, inst plan.Installment) error {
	query := `
		INSERT INTO installments (id, plan_id, number, amount, currency,
			student_due_date, institution_due_date, status, paid_amount, paid_date,
			generates_commission, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			number = excluded.number,
			amount = excluded.amount,
			currency = excluded.currency,
			student_due_date = excluded.student_due_date,
			institution_due_date = excluded.institution_due_date,
			status = excluded.status,
			paid_amount = excluded.paid_amount,
			paid_date = excluded.paid_date,
			generates_commission = excluded.generates_commission,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		string(inst.ID), string(inst.PlanID), inst.Number,
		inst.Amount.Value.String(), string(inst.Amount.Currency),
		nullTimeString(inst.StudentDueDate), nullTimeString(inst.InstitutionDueDate),
		string(inst.Status), inst.PaidAmount.Value.String(), nullTimeString(inst.PaidDate),
		inst.GeneratesCommission, timeString(inst.CreatedAt), timeString(inst.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save installment: %w", err)
	}
	return nil
}

// SaveInstallments replaces the plan's whole schedule atomically.
func (s *Store) SaveInstallments(ctx context.Context, planID plan.PlanID, insts []plan.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := s.saveInstallmentsTx(ctx, sqlTx, planID, insts); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) saveInstallmentsTx(ctx context.Context, db dbtx, planID plan.PlanID, insts []plan.Installment) error {
	if _, err := db.ExecContext(ctx,
		"DELETE FROM installments WHERE plan_id = ?", string(planID)); err != nil {
		return fmt.Errorf("failed to replace installments: %w", err)
	}
	for _, inst := range insts {
		if err := s.saveInstallmentTx(ctx, db, inst); err != nil {
			return err
		}
	}
	return nil
}

const installmentColumns = `id, plan_id, number, amount, currency,
	student_due_date, institution_due_date, status, paid_amount, paid_date,
	generates_commission, created_at, updated_at`

// GetInstallment retrieves an installment by ID. Returns nil when absent.
func (s *Store) GetInstallment(ctx context.Context, id plan.InstallmentID) (*plan.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getInstallmentTx(ctx, s.db, id)
}

func (s *Store) getInstallmentTx(ctx context.Context, db dbtx, id plan.InstallmentID) (*plan.Installment, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+installmentColumns+" FROM installments WHERE id = ?", string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query installment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	inst, err := scanInstallment(rows)
	if err != nil {
		return nil, err
	}
	return &inst, rows.Err()
}

// ListInstallments returns a plan's installments ordered by number.
func (s *Store) ListInstallments(ctx context.Context, planID plan.PlanID) ([]plan.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listInstallmentsTx(ctx, s.db, planID)
}

func (s *Store) listInstallmentsTx(ctx context.Context, db dbtx, planID plan.PlanID) ([]plan.Installment, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+installmentColumns+" FROM installments WHERE plan_id = ? ORDER BY number ASC",
		string(planID))
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var insts []plan.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		insts = append(insts, inst)
	}
	return insts, rows.Err()
}

// ListDueInstallments returns pending installments whose student due date
// falls strictly before the given time.
func (s *Store) ListDueInstallments(ctx context.Context, before time.Time) ([]plan.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listDueInstallmentsTx(ctx, s.db, before)
}

func (s *Store) listDueInstallmentsTx(ctx context.Context, db dbtx, before time.Time) ([]plan.Installment, error) {
	query := `
		SELECT ` + installmentColumns + `
		FROM installments
		WHERE status = ? AND student_due_date IS NOT NULL AND student_due_date < ?
		ORDER BY plan_id ASC, number ASC
	`
	rows, err := db.QueryContext(ctx, query,
		string(plan.InstallmentPending), timeString(before))
	if err != nil {
		return nil, fmt.Errorf("failed to query due installments: %w", err)
	}
	defer rows.Close()

	var insts []plan.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		insts = append(insts, inst)
	}
	return insts, rows.Err()
}

func scanInstallment(rows *sql.Rows) (plan.Installment, error) {
	var (
		inst                 plan.Installment
		amount, currency     string
		paidAmount           string
		studentDue, instDue  sql.NullString
		paidDate             sql.NullString
		createdAt, updatedAt string
	)

	err := rows.Scan(
		&inst.ID, &inst.PlanID, &inst.Number, &amount, &currency,
		&studentDue, &instDue, &inst.Status, &paidAmount, &paidDate,
		&inst.GeneratesCommission, &createdAt, &updatedAt,
	)
	if err != nil {
		return inst, fmt.Errorf("failed to scan installment: %w", err)
	}

	cur := money.Currency(currency)
	inst.Amount = parseAmount(amount, cur)
	inst.PaidAmount = parseAmount(paidAmount, cur)
	inst.StudentDueDate = parseTimePtr(studentDue)
	inst.InstitutionDueDate = parseTimePtr(instDue)
	inst.PaidDate = parseTimePtr(paidDate)
	inst.CreatedAt = parseTime(createdAt)
	inst.UpdatedAt = parseTime(updatedAt)

	return inst, nil
}

// =============================================================================
// PAYMENT EVENTS
// =============================================================================

// AppendPaymentEvent adds a payment event to the ledger. Append-only.
func (s *Store) AppendPaymentEvent(ctx context.Context, e plan.PaymentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendPaymentEventTx(ctx, s.db, e)
}

func (s *Store) appendPaymentEventTx(ctx context.Context, db dbtx, e plan.PaymentEvent) error {
	query := `
		INSERT INTO payment_events
		(id, plan_id, installment_id, amount, currency, paid_date,
		 idempotency_key, recorded_at, recorded_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		string(e.ID), string(e.PlanID), string(e.InstallmentID),
		e.Amount.Value.String(), string(e.Amount.Currency), timeString(e.PaidDate),
		nullString(e.IdempotencyKey), timeString(e.RecordedAt), e.RecordedBy,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return plan.ErrDuplicatePaymentKey
		}
		return fmt.Errorf("failed to append payment event: %w", err)
	}
	return nil
}

const eventColumns = `id, plan_id, installment_id, amount, currency, paid_date,
	idempotency_key, recorded_at, recorded_by`

// GetPaymentEventByKey retrieves the event recorded under an idempotency
// key. Returns nil when the key has never been used.
func (s *Store) GetPaymentEventByKey(ctx context.Context, idempotencyKey string) (*plan.PaymentEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPaymentEventByKeyTx(ctx, s.db, idempotencyKey)
}

func (s *Store) getPaymentEventByKeyTx(ctx context.Context, db dbtx, idempotencyKey string) (*plan.PaymentEvent, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM payment_events WHERE idempotency_key = ?",
		idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment event: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := scanPaymentEvent(rows)
	if err != nil {
		return nil, err
	}
	return &e, rows.Err()
}

// ListPaymentEvents returns a plan's payment events in recording order.
func (s *Store) ListPaymentEvents(ctx context.Context, planID plan.PlanID) ([]plan.PaymentEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPaymentEventsTx(ctx, s.db, planID)
}

func (s *Store) listPaymentEventsTx(ctx context.Context, db dbtx, planID plan.PlanID) ([]plan.PaymentEvent, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM payment_events WHERE plan_id = ? ORDER BY recorded_at ASC, id ASC",
		string(planID))
	if err != nil {
		return nil, fmt.Errorf("failed to query payment events: %w", err)
	}
	defer rows.Close()

	var events []plan.PaymentEvent
	for rows.Next() {
		e, err := scanPaymentEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanPaymentEvent(rows *sql.Rows) (plan.PaymentEvent, error) {
	var (
		e                    plan.PaymentEvent
		amount, currency     string
		paidDate, recordedAt string
		idempotencyKey       sql.NullString
		recordedBy           sql.NullString
	)

	err := rows.Scan(
		&e.ID, &e.PlanID, &e.InstallmentID, &amount, &currency, &paidDate,
		&idempotencyKey, &recordedAt, &recordedBy,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan payment event: %w", err)
	}

	e.Amount = parseAmount(amount, money.Currency(currency))
	e.PaidDate = parseTime(paidDate)
	e.IdempotencyKey = idempotencyKey.String
	e.RecordedAt = parseTime(recordedAt)
	e.RecordedBy = recordedBy.String

	return e, nil
}

// =============================================================================
// AUDIT RUNS
// =============================================================================

// RecordAuditRun stores the outcome of one commission audit sweep.
func (s *Store) RecordAuditRun(ctx context.Context, run plan.AuditRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordAuditRunTx(ctx, s.db, run)
}

func (s *Store) recordAuditRunTx(ctx context.Context, db dbtx, run plan.AuditRun) error {
	query := `
		INSERT INTO audit_runs (id, started_at, finished_at, plans_checked, drift_found, repaired)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		run.ID, timeString(run.StartedAt), timeString(run.FinishedAt),
		run.PlansChecked, run.DriftFound, run.Repaired,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit run: %w", err)
	}
	return nil
}

// ListAuditRuns returns the most recent runs first.
func (s *Store) ListAuditRuns(ctx context.Context, limit int) ([]plan.AuditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAuditRunsTx(ctx, s.db, limit)
}

func (s *Store) listAuditRunsTx(ctx context.Context, db dbtx, limit int) ([]plan.AuditRun, error) {
	query := "SELECT id, started_at, finished_at, plans_checked, drift_found, repaired FROM audit_runs ORDER BY started_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit runs: %w", err)
	}
	defer rows.Close()

	var runs []plan.AuditRun
	for rows.Next() {
		var run plan.AuditRun
		var startedAt, finishedAt string
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt,
			&run.PlansChecked, &run.DriftFound, &run.Repaired); err != nil {
			return nil, fmt.Errorf("failed to scan audit run: %w", err)
		}
		run.StartedAt = parseTime(startedAt)
		run.FinishedAt = parseTime(finishedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// RESET
// =============================================================================

// Reset clears all data. Demo/test environments only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetTx(ctx, s.db)
}

func (s *Store) resetTx(ctx context.Context, db dbtx) error {
	for _, table := range []string{
		"payment_events", "installments", "plans", "audit_runs",
		"branches", "colleges", "agency_config",
	} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (plan.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store plan.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &txStore{tx: sqlTx, parent: s}
	if err := fn(txStore); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every statement through the open transaction. The parent
// mutex is already held by WithTx, so nothing here locks.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) SaveCollege(ctx context.Context, c plan.College) error {
	return ts.parent.saveCollegeTx(ctx, ts.tx, c)
}

func (ts *txStore) GetCollege(ctx context.Context, id plan.CollegeID) (*plan.College, error) {
	return ts.parent.getCollegeTx(ctx, ts.tx, id)
}

func (ts *txStore) ListColleges(ctx context.Context) ([]plan.College, error) {
	return ts.parent.listCollegesTx(ctx, ts.tx)
}

func (ts *txStore) SaveBranch(ctx context.Context, b plan.Branch) error {
	return ts.parent.saveBranchTx(ctx, ts.tx, b)
}

func (ts *txStore) GetBranch(ctx context.Context, id plan.BranchID) (*plan.Branch, error) {
	return ts.parent.getBranchTx(ctx, ts.tx, id)
}

func (ts *txStore) ListBranches(ctx context.Context) ([]plan.Branch, error) {
	return ts.parent.listBranchesTx(ctx, ts.tx)
}

func (ts *txStore) GetConfig(ctx context.Context) (*plan.AgencyConfig, error) {
	return ts.parent.getConfigTx(ctx, ts.tx)
}

func (ts *txStore) SaveConfig(ctx context.Context, cfg plan.AgencyConfig) error {
	return ts.parent.saveConfigTx(ctx, ts.tx, cfg)
}

func (ts *txStore) SavePlan(ctx context.Context, p plan.PaymentPlan) error {
	return ts.parent.savePlanTx(ctx, ts.tx, p)
}

func (ts *txStore) GetPlan(ctx context.Context, id plan.PlanID) (*plan.PaymentPlan, error) {
	return ts.parent.getPlanTx(ctx, ts.tx, id)
}

func (ts *txStore) ListPlans(ctx context.Context, filter plan.PlanFilter) ([]plan.PaymentPlan, error) {
	return ts.parent.listPlansTx(ctx, ts.tx, filter)
}

func (ts *txStore) DeletePlan(ctx context.Context, id plan.PlanID) error {
	return ts.parent.deletePlanTx(ctx, ts.tx, id)
}

func (ts *txStore) SaveInstallment(ctx context.Context, inst plan.Installment) error {
	return ts.parent.saveInstallmentTx(ctx, ts.tx, inst)
}

func (ts *txStore) SaveInstallments(ctx context.Context, planID plan.PlanID, insts []plan.Installment) error {
	return ts.parent.saveInstallmentsTx(ctx, ts.tx, planID, insts)
}

func (ts *txStore) GetInstallment(ctx context.Context, id plan.InstallmentID) (*plan.Installment, error) {
	return ts.parent.getInstallmentTx(ctx, ts.tx, id)
}

func (ts *txStore) ListInstallments(ctx context.Context, planID plan.PlanID) ([]plan.Installment, error) {
	return ts.parent.listInstallmentsTx(ctx, ts.tx, planID)
}

func (ts *txStore) ListDueInstallments(ctx context.Context, before time.Time) ([]plan.Installment, error) {
	return ts.parent.listDueInstallmentsTx(ctx, ts.tx, before)
}

func (ts *txStore) AppendPaymentEvent(ctx context.Context, e plan.PaymentEvent) error {
	return ts.parent.appendPaymentEventTx(ctx, ts.tx, e)
}

func (ts *txStore) GetPaymentEventByKey(ctx context.Context, idempotencyKey string) (*plan.PaymentEvent, error) {
	return ts.parent.getPaymentEventByKeyTx(ctx, ts.tx, idempotencyKey)
}

func (ts *txStore) ListPaymentEvents(ctx context.Context, planID plan.PlanID) ([]plan.PaymentEvent, error) {
	return ts.parent.listPaymentEventsTx(ctx, ts.tx, planID)
}

func (ts *txStore) RecordAuditRun(ctx context.Context, run plan.AuditRun) error {
	return ts.parent.recordAuditRunTx(ctx, ts.tx, run)
}

func (ts *txStore) ListAuditRuns(ctx context.Context, limit int) ([]plan.AuditRun, error) {
	return ts.parent.listAuditRunsTx(ctx, ts.tx, limit)
}

func (ts *txStore) Reset(ctx context.Context) error {
	return ts.parent.resetTx(ctx, ts.tx)
}

// =============================================================================
// HELPERS
// =============================================================================

// Timestamps are stored as UTC RFC3339 TEXT so lexical comparison in SQL
// matches chronological order.
func timeString(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullTimeString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := timeString(*t)
	return &s
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseAmount(value string, currency money.Currency) money.Amount {
	return money.NewAmountFromDecimal(money.MustParseDecimal(value), currency)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
