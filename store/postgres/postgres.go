/*
Package postgres provides a GORM/PostgreSQL-backed implementation of the
plan storage interfaces.

PURPOSE:
  Production variant of the sqlite store. Schema is auto-migrated from the
  row structs below; monetary values live in NUMERIC columns and round-trip
  through shopspring decimal without ever touching float64.

CONCURRENCY:
  Unlike the sqlite store there is no process-level mutex: PostgreSQL's own
  concurrency control does the work. Inside WithTx, plan reads take a
  SELECT ... FOR UPDATE row lock, so two transactions cannot interleave a
  read-compute-write cycle on the same plan.

SEE ALSO:
  - plan/store.go: Interface definitions
  - store/sqlite: Development/demo variant of the same schema
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/pleeno/commission-engine/money"
	"github.com/pleeno/commission-engine/plan"
)

// Store implements plan.Store and plan.TxStore on PostgreSQL.
type Store struct {
	db *gorm.DB
	// Set on the transactional view so plan reads lock their row.
	inTx bool
}

// New connects with connection pooling and migrates the schema.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&collegeRow{},
		&branchRow{},
		&configRow{},
		&planRow{},
		&installmentRow{},
		&paymentEventRow{},
		&auditRunRow{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// =============================================================================
// ROW TYPES
// =============================================================================

type collegeRow struct {
	ID        string    `gorm:"primarykey"`
	Name      string    `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (collegeRow) TableName() string { return "colleges" }

type branchRow struct {
	ID                    string          `gorm:"primarykey"`
	CollegeID             string          `gorm:"index;not null"`
	Name                  string          `gorm:"type:varchar(255);not null"`
	CommissionRatePercent decimal.Decimal `gorm:"type:numeric(9,4);not null"`
	CreatedAt             time.Time       `gorm:"not null"`
}

func (branchRow) TableName() string { return "branches" }

// configRow holds the single agency configuration row (ID always 1).
type configRow struct {
	ID                  int             `gorm:"primarykey"`
	GSTRate             decimal.Decimal `gorm:"type:numeric(9,4);not null"`
	InstitutionLeadDays int             `gorm:"not null"`
	DefaultTaxInclusive bool            `gorm:"not null"`
	Currency            string          `gorm:"type:varchar(8);not null"`
	UpdatedAt           time.Time       `gorm:"not null"`
}

func (configRow) TableName() string { return "agency_config" }

type planRow struct {
	ID                    string          `gorm:"primarykey"`
	EnrollmentID          string          `gorm:"index;not null"`
	CollegeID             string          `gorm:"index;not null"`
	BranchID              string          `gorm:"index;not null"`
	TotalAmount           decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	Currency              string          `gorm:"type:varchar(8);not null"`
	MaterialsCost         decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	AdminFees             decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	OtherFees             decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	CommissionRatePercent decimal.Decimal `gorm:"type:numeric(9,4);not null"`
	ExpectedCommission    decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	EarnedCommission      decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	TaxInclusive          bool            `gorm:"not null"`
	Status                string          `gorm:"type:varchar(16);index;not null"`
	CreatedAt             time.Time       `gorm:"index;not null"`
	UpdatedAt             time.Time       `gorm:"not null"`
	ApprovedAt            *time.Time
	CompletedAt           *time.Time
	CancelledAt           *time.Time
}

func (planRow) TableName() string { return "plans" }

type installmentRow struct {
	ID                  string          `gorm:"primarykey"`
	PlanID              string          `gorm:"uniqueIndex:idx_installments_plan_number;index;not null"`
	Number              int             `gorm:"uniqueIndex:idx_installments_plan_number;not null"`
	Amount              decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	Currency            string          `gorm:"type:varchar(8);not null"`
	StudentDueDate      *time.Time      `gorm:"index:idx_installments_due"`
	InstitutionDueDate  *time.Time
	Status              string          `gorm:"type:varchar(16);index:idx_installments_due;not null"`
	PaidAmount          decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	PaidDate            *time.Time
	GeneratesCommission bool            `gorm:"not null"`
	CreatedAt           time.Time       `gorm:"not null"`
	UpdatedAt           time.Time       `gorm:"not null"`
}

func (installmentRow) TableName() string { return "installments" }

type paymentEventRow struct {
	ID             string          `gorm:"primarykey"`
	PlanID         string          `gorm:"index;not null"`
	InstallmentID  string          `gorm:"not null"`
	Amount         decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	Currency       string          `gorm:"type:varchar(8);not null"`
	PaidDate       time.Time       `gorm:"not null"`
	IdempotencyKey *string         `gorm:"uniqueIndex"`
	RecordedAt     time.Time       `gorm:"not null"`
	RecordedBy     string
}

func (paymentEventRow) TableName() string { return "payment_events" }

type auditRunRow struct {
	ID           string    `gorm:"primarykey"`
	StartedAt    time.Time `gorm:"index;not null"`
	FinishedAt   time.Time `gorm:"not null"`
	PlansChecked int       `gorm:"not null"`
	DriftFound   int       `gorm:"not null"`
	Repaired     int       `gorm:"not null"`
}

func (auditRunRow) TableName() string { return "audit_runs" }

// =============================================================================
// COLLEGES AND BRANCHES
// =============================================================================

func (s *Store) SaveCollege(ctx context.Context, c plan.College) error {
	row := collegeRow{ID: string(c.ID), Name: c.Name, CreatedAt: c.CreatedAt}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

func (s *Store) GetCollege(ctx context.Context, id plan.CollegeID) (*plan.College, error) {
	var row collegeRow
	err := s.db.WithContext(ctx).Take(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c := plan.College{ID: plan.CollegeID(row.ID), Name: row.Name, CreatedAt: row.CreatedAt}
	return &c, nil
}

func (s *Store) ListColleges(ctx context.Context) ([]plan.College, error) {
	var rows []collegeRow
	if err := s.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	colleges := make([]plan.College, len(rows))
	for i, row := range rows {
		colleges[i] = plan.College{ID: plan.CollegeID(row.ID), Name: row.Name, CreatedAt: row.CreatedAt}
	}
	return colleges, nil
}

func (s *Store) SaveBranch(ctx context.Context, b plan.Branch) error {
	row := branchRow{
		ID:                    string(b.ID),
		CollegeID:             string(b.CollegeID),
		Name:                  b.Name,
		CommissionRatePercent: b.CommissionRatePercent,
		CreatedAt:             b.CreatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

func (s *Store) GetBranch(ctx context.Context, id plan.BranchID) (*plan.Branch, error) {
	var row branchRow
	err := s.db.WithContext(ctx).Take(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b := branchFromRow(row)
	return &b, nil
}

func (s *Store) ListBranches(ctx context.Context) ([]plan.Branch, error) {
	var rows []branchRow
	if err := s.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	branches := make([]plan.Branch, len(rows))
	for i, row := range rows {
		branches[i] = branchFromRow(row)
	}
	return branches, nil
}

func branchFromRow(row branchRow) plan.Branch {
	return plan.Branch{
		ID:                    plan.BranchID(row.ID),
		CollegeID:             plan.CollegeID(row.CollegeID),
		Name:                  row.Name,
		CommissionRatePercent: row.CommissionRatePercent,
		CreatedAt:             row.CreatedAt,
	}
}

// =============================================================================
// AGENCY CONFIGURATION
// =============================================================================

func (s *Store) GetConfig(ctx context.Context) (*plan.AgencyConfig, error) {
	var row configRow
	err := s.db.WithContext(ctx).Take(&row, "id = 1").Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cfg := plan.AgencyConfig{
		GSTRate:             row.GSTRate,
		InstitutionLeadDays: row.InstitutionLeadDays,
		DefaultTaxInclusive: row.DefaultTaxInclusive,
		Currency:            money.Currency(row.Currency),
		UpdatedAt:           row.UpdatedAt,
	}
	return &cfg, nil
}

func (s *Store) SaveConfig(ctx context.Context, cfg plan.AgencyConfig) error {
	row := configRow{
		ID:                  1,
		GSTRate:             cfg.GSTRate,
		InstitutionLeadDays: cfg.InstitutionLeadDays,
		DefaultTaxInclusive: cfg.DefaultTaxInclusive,
		Currency:            string(cfg.Currency),
		UpdatedAt:           cfg.UpdatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// =============================================================================
// PLANS
// =============================================================================

func (s *Store) SavePlan(ctx context.Context, p plan.PaymentPlan) error {
	row := planToRow(p)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// GetPlan retrieves a plan by ID. Inside WithTx the read locks the row
// (SELECT ... FOR UPDATE) so concurrent transactions serialize per plan.
func (s *Store) GetPlan(ctx context.Context, id plan.PlanID) (*plan.PaymentPlan, error) {
	q := s.db.WithContext(ctx)
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row planRow
	err := q.Take(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := planFromRow(row)
	return &p, nil
}

func (s *Store) ListPlans(ctx context.Context, filter plan.PlanFilter) ([]plan.PaymentPlan, error) {
	q := s.db.WithContext(ctx).Model(&planRow{})
	if filter.CollegeID != nil {
		q = q.Where("college_id = ?", string(*filter.CollegeID))
	}
	if filter.BranchID != nil {
		q = q.Where("branch_id = ?", string(*filter.BranchID))
	}
	if filter.EnrollmentID != nil {
		q = q.Where("enrollment_id = ?", *filter.EnrollmentID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("status IN ?", statuses)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}

	var rows []planRow
	if err := q.Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	plans := make([]plan.PaymentPlan, len(rows))
	for i, row := range rows {
		plans[i] = planFromRow(row)
	}
	return plans, nil
}

func (s *Store) DeletePlan(ctx context.Context, id plan.PlanID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("plan_id = ?", string(id)).Delete(&paymentEventRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("plan_id = ?", string(id)).Delete(&installmentRow{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", string(id)).Delete(&planRow{}).Error
	})
}

func planToRow(p plan.PaymentPlan) planRow {
	return planRow{
		ID:                    string(p.ID),
		EnrollmentID:          p.EnrollmentID,
		CollegeID:             string(p.CollegeID),
		BranchID:              string(p.BranchID),
		TotalAmount:           p.TotalAmount.Value,
		Currency:              string(p.Currency),
		MaterialsCost:         p.MaterialsCost.Value,
		AdminFees:             p.AdminFees.Value,
		OtherFees:             p.OtherFees.Value,
		CommissionRatePercent: p.CommissionRatePercent,
		ExpectedCommission:    p.ExpectedCommission.Value,
		EarnedCommission:      p.EarnedCommission.Value,
		TaxInclusive:          p.TaxInclusive,
		Status:                string(p.Status),
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
		ApprovedAt:            p.ApprovedAt,
		CompletedAt:           p.CompletedAt,
		CancelledAt:           p.CancelledAt,
	}
}

func planFromRow(row planRow) plan.PaymentPlan {
	cur := money.Currency(row.Currency)
	return plan.PaymentPlan{
		ID:                    plan.PlanID(row.ID),
		EnrollmentID:          row.EnrollmentID,
		CollegeID:             plan.CollegeID(row.CollegeID),
		BranchID:              plan.BranchID(row.BranchID),
		TotalAmount:           money.NewAmountFromDecimal(row.TotalAmount, cur),
		Currency:              cur,
		MaterialsCost:         money.NewAmountFromDecimal(row.MaterialsCost, cur),
		AdminFees:             money.NewAmountFromDecimal(row.AdminFees, cur),
		OtherFees:             money.NewAmountFromDecimal(row.OtherFees, cur),
		CommissionRatePercent: row.CommissionRatePercent,
		ExpectedCommission:    money.NewAmountFromDecimal(row.ExpectedCommission, cur),
		EarnedCommission:      money.NewAmountFromDecimal(row.EarnedCommission, cur),
		TaxInclusive:          row.TaxInclusive,
		Status:                plan.PlanStatus(row.Status),
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
		ApprovedAt:            row.ApprovedAt,
		CompletedAt:           row.CompletedAt,
		CancelledAt:           row.CancelledAt,
	}
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

func (s *Store) SaveInstallment(ctx context.Context, inst plan.Installment) error {
	row := installmentToRow(inst)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// SaveInstallments replaces the plan's whole schedule atomically.
func (s *Store) SaveInstallments(ctx context.Context, planID plan.PlanID, insts []plan.Installment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("plan_id = ?", string(planID)).Delete(&installmentRow{}).Error; err != nil {
			return err
		}
		if len(insts) == 0 {
			return nil
		}
		rows := make([]installmentRow, len(insts))
		for i, inst := range insts {
			rows[i] = installmentToRow(inst)
		}
		return tx.Create(&rows).Error
	})
}

func (s *Store) GetInstallment(ctx context.Context, id plan.InstallmentID) (*plan.Installment, error) {
	var row installmentRow
	err := s.db.WithContext(ctx).Take(&row, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	inst := installmentFromRow(row)
	return &inst, nil
}

func (s *Store) ListInstallments(ctx context.Context, planID plan.PlanID) ([]plan.Installment, error) {
	var rows []installmentRow
	err := s.db.WithContext(ctx).
		Where("plan_id = ?", string(planID)).
		Order("number asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	insts := make([]plan.Installment, len(rows))
	for i, row := range rows {
		insts[i] = installmentFromRow(row)
	}
	return insts, nil
}

func (s *Store) ListDueInstallments(ctx context.Context, before time.Time) ([]plan.Installment, error) {
	var rows []installmentRow
	err := s.db.WithContext(ctx).
		Where("status = ? AND student_due_date IS NOT NULL AND student_due_date < ?",
			string(plan.InstallmentPending), before).
		Order("plan_id asc, number asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	insts := make([]plan.Installment, len(rows))
	for i, row := range rows {
		insts[i] = installmentFromRow(row)
	}
	return insts, nil
}

func installmentToRow(inst plan.Installment) installmentRow {
	return installmentRow{
		ID:                  string(inst.ID),
		PlanID:              string(inst.PlanID),
		Number:              inst.Number,
		Amount:              inst.Amount.Value,
		Currency:            string(inst.Amount.Currency),
		StudentDueDate:      inst.StudentDueDate,
		InstitutionDueDate:  inst.InstitutionDueDate,
		Status:              string(inst.Status),
		PaidAmount:          inst.PaidAmount.Value,
		PaidDate:            inst.PaidDate,
		GeneratesCommission: inst.GeneratesCommission,
		CreatedAt:           inst.CreatedAt,
		UpdatedAt:           inst.UpdatedAt,
	}
}

func installmentFromRow(row installmentRow) plan.Installment {
	cur := money.Currency(row.Currency)
	return plan.Installment{
		ID:                  plan.InstallmentID(row.ID),
		PlanID:              plan.PlanID(row.PlanID),
		Number:              row.Number,
		Amount:              money.NewAmountFromDecimal(row.Amount, cur),
		StudentDueDate:      row.StudentDueDate,
		InstitutionDueDate:  row.InstitutionDueDate,
		Status:              plan.InstallmentStatus(row.Status),
		PaidAmount:          money.NewAmountFromDecimal(row.PaidAmount, cur),
		PaidDate:            row.PaidDate,
		GeneratesCommission: row.GeneratesCommission,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
}

// =============================================================================
// PAYMENT EVENTS
// =============================================================================

func (s *Store) AppendPaymentEvent(ctx context.Context, e plan.PaymentEvent) error {
	var key *string
	if e.IdempotencyKey != "" {
		k := e.IdempotencyKey
		key = &k
	}
	row := paymentEventRow{
		ID:             string(e.ID),
		PlanID:         string(e.PlanID),
		InstallmentID:  string(e.InstallmentID),
		Amount:         e.Amount.Value,
		Currency:       string(e.Amount.Currency),
		PaidDate:       e.PaidDate,
		IdempotencyKey: key,
		RecordedAt:     e.RecordedAt,
		RecordedBy:     e.RecordedBy,
	}
	err := s.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		if isUniqueViolation(err) {
			return plan.ErrDuplicatePaymentKey
		}
		return err
	}
	return nil
}

func (s *Store) GetPaymentEventByKey(ctx context.Context, idempotencyKey string) (*plan.PaymentEvent, error) {
	var row paymentEventRow
	err := s.db.WithContext(ctx).Take(&row, "idempotency_key = ?", idempotencyKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e := paymentEventFromRow(row)
	return &e, nil
}

func (s *Store) ListPaymentEvents(ctx context.Context, planID plan.PlanID) ([]plan.PaymentEvent, error) {
	var rows []paymentEventRow
	err := s.db.WithContext(ctx).
		Where("plan_id = ?", string(planID)).
		Order("recorded_at asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	events := make([]plan.PaymentEvent, len(rows))
	for i, row := range rows {
		events[i] = paymentEventFromRow(row)
	}
	return events, nil
}

func paymentEventFromRow(row paymentEventRow) plan.PaymentEvent {
	e := plan.PaymentEvent{
		ID:            plan.EventID(row.ID),
		PlanID:        plan.PlanID(row.PlanID),
		InstallmentID: plan.InstallmentID(row.InstallmentID),
		Amount:        money.NewAmountFromDecimal(row.Amount, money.Currency(row.Currency)),
		PaidDate:      row.PaidDate,
		RecordedAt:    row.RecordedAt,
		RecordedBy:    row.RecordedBy,
	}
	if row.IdempotencyKey != nil {
		e.IdempotencyKey = *row.IdempotencyKey
	}
	return e
}

// =============================================================================
// AUDIT RUNS
// =============================================================================

func (s *Store) RecordAuditRun(ctx context.Context, run plan.AuditRun) error {
	row := auditRunRow{
		ID:           run.ID,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		PlansChecked: run.PlansChecked,
		DriftFound:   run.DriftFound,
		Repaired:     run.Repaired,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) ListAuditRuns(ctx context.Context, limit int) ([]plan.AuditRun, error) {
	q := s.db.WithContext(ctx).Model(&auditRunRow{}).Order("started_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []auditRunRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	runs := make([]plan.AuditRun, len(rows))
	for i, row := range rows {
		runs[i] = plan.AuditRun{
			ID:           row.ID,
			StartedAt:    row.StartedAt,
			FinishedAt:   row.FinishedAt,
			PlansChecked: row.PlansChecked,
			DriftFound:   row.DriftFound,
			Repaired:     row.Repaired,
		}
	}
	return runs, nil
}

// =============================================================================
// RESET
// =============================================================================

// Reset clears all data. Demo/test environments only.
func (s *Store) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&paymentEventRow{}, &installmentRow{}, &planRow{},
			&auditRunRow{}, &branchRow{}, &collegeRow{}, &configRow{},
		} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// TRANSACTIONAL STORE (plan.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. The view
// handed to fn reads plans FOR UPDATE.
func (s *Store) WithTx(ctx context.Context, fn func(store plan.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, inTx: true})
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Fallback for drivers that bypass gorm's error translation.
	return err != nil && (strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "SQLSTATE 23505"))
}
