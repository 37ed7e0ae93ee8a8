/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Institutions:
    CollegeDTO, BranchDTO, CreateCollegeRequest, CreateBranchRequest

  Configuration:
    ConfigDTO, UpdateConfigRequest

  Plans:
    PlanDTO, InstallmentDTO, DraftInstallmentDTO,
    CreatePlanRequest, CreatePlanFromTemplateRequest,
    PreviewScheduleRequest, UpdateScheduleRequest, ResetScheduleRequest

  Payments:
    RecordPaymentRequest, PaymentEventDTO

  Reports:
    BreakdownRowDTO, ForecastEntryDTO, AuditRunDTO

  Scenarios:
    ScenarioDTO

MONEY IN JSON:
  Monetary fields cross the wire as float64. Internally everything is
  decimal; amounts are rounded to display precision before the float
  conversion, so the JSON figure is exactly the two-decimal display value.
  Dates are "2006-01-02" strings, timestamps RFC3339.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/template.go: TemplateJSON type
*/
package api

import (
	"time"

	"github.com/pleeno/commission-engine/commission"
	"github.com/pleeno/commission-engine/factory"
	"github.com/pleeno/commission-engine/money"
	"github.com/pleeno/commission-engine/plan"
	"github.com/pleeno/commission-engine/report"
	"github.com/pleeno/commission-engine/schedule"
)

const (
	dateLayout = "2006-01-02"
)

// =============================================================================
// INSTITUTION TYPES
// =============================================================================

// CollegeDTO represents a college in API responses.
type CollegeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateCollegeRequest is the request to register a college.
type CreateCollegeRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BranchDTO represents a college branch in API responses.
type BranchDTO struct {
	ID                    string  `json:"id"`
	CollegeID             string  `json:"college_id"`
	Name                  string  `json:"name"`
	CommissionRatePercent float64 `json:"commission_rate_percent"`
	CreatedAt             string  `json:"created_at,omitempty"`
}

// CreateBranchRequest is the request to register a branch.
type CreateBranchRequest struct {
	ID                    string  `json:"id"`
	CollegeID             string  `json:"college_id"`
	Name                  string  `json:"name"`
	CommissionRatePercent float64 `json:"commission_rate_percent"`
}

// =============================================================================
// CONFIGURATION TYPES
// =============================================================================

// ConfigDTO represents agency-wide configuration.
type ConfigDTO struct {
	GSTRate             float64 `json:"gst_rate"`
	InstitutionLeadDays int     `json:"institution_lead_days"`
	DefaultTaxInclusive bool    `json:"default_tax_inclusive"`
	Currency            string  `json:"currency"`
	UpdatedAt           string  `json:"updated_at,omitempty"`
}

// UpdateConfigRequest replaces the agency configuration.
type UpdateConfigRequest struct {
	GSTRate             float64 `json:"gst_rate"`
	InstitutionLeadDays int     `json:"institution_lead_days"`
	DefaultTaxInclusive bool    `json:"default_tax_inclusive"`
	Currency            string  `json:"currency"`
}

// =============================================================================
// PLAN TYPES
// =============================================================================

// PlanDTO represents a payment plan in API responses.
type PlanDTO struct {
	ID                    string  `json:"id"`
	EnrollmentID          string  `json:"enrollment_id"`
	CollegeID             string  `json:"college_id"`
	BranchID              string  `json:"branch_id"`
	TotalAmount           float64 `json:"total_amount"`
	Currency              string  `json:"currency"`
	MaterialsCost         float64 `json:"materials_cost"`
	AdminFees             float64 `json:"admin_fees"`
	OtherFees             float64 `json:"other_fees"`
	CommissionRatePercent float64 `json:"commission_rate_percent"`
	ExpectedCommission    float64 `json:"expected_commission"`
	EarnedCommission      float64 `json:"earned_commission"`
	TaxInclusive          bool    `json:"tax_inclusive"`
	Status                string  `json:"status"`
	CreatedAt             string  `json:"created_at,omitempty"`
	ApprovedAt            *string `json:"approved_at,omitempty"`
	CompletedAt           *string `json:"completed_at,omitempty"`
	CancelledAt           *string `json:"cancelled_at,omitempty"`
}

// InstallmentDTO represents one installment of a plan.
type InstallmentDTO struct {
	ID                  string  `json:"id"`
	PlanID              string  `json:"plan_id"`
	Number              int     `json:"number"`
	Amount              float64 `json:"amount"`
	StudentDueDate      *string `json:"student_due_date,omitempty"`
	InstitutionDueDate  *string `json:"institution_due_date,omitempty"`
	Status              string  `json:"status"`
	PaidAmount          float64 `json:"paid_amount"`
	PaidDate            *string `json:"paid_date,omitempty"`
	GeneratesCommission bool    `json:"generates_commission"`
}

// DraftInstallmentDTO is a previewed schedule slot, not yet persisted.
type DraftInstallmentDTO struct {
	Number             int     `json:"number"`
	Amount             float64 `json:"amount"`
	StudentDueDate     *string `json:"student_due_date,omitempty"`
	InstitutionDueDate *string `json:"institution_due_date,omitempty"`
}

// PlanDetailDTO bundles a plan with its schedule.
type PlanDetailDTO struct {
	Plan         PlanDTO          `json:"plan"`
	Installments []InstallmentDTO `json:"installments"`
}

// CreatePlanRequest is the request to create a plan with an explicit
// schedule shape.
type CreatePlanRequest struct {
	EnrollmentID     string  `json:"enrollment_id"`
	BranchID         string  `json:"branch_id"`
	TotalAmount      float64 `json:"total_amount"`
	MaterialsCost    float64 `json:"materials_cost,omitempty"`
	AdminFees        float64 `json:"admin_fees,omitempty"`
	OtherFees        float64 `json:"other_fees,omitempty"`
	InstallmentCount int     `json:"installment_count"`
	Frequency        string  `json:"frequency"`
	StartDate        string  `json:"start_date"`
	TaxInclusive     *bool   `json:"tax_inclusive,omitempty"`
}

// CreatePlanFromTemplateRequest creates a plan from a template config,
// which supplies the schedule shape and fee defaults.
type CreatePlanFromTemplateRequest struct {
	Template     factory.TemplateJSON `json:"template"`
	EnrollmentID string               `json:"enrollment_id"`
	BranchID     string               `json:"branch_id"`
	TotalAmount  float64              `json:"total_amount"`
	StartDate    string               `json:"start_date"`
}

// PreviewScheduleRequest drafts a schedule without persisting anything.
type PreviewScheduleRequest struct {
	TotalAmount      float64 `json:"total_amount"`
	InstallmentCount int     `json:"installment_count"`
	Frequency        string  `json:"frequency"`
	StartDate        string  `json:"start_date"`
}

// InstallmentEditDTO is one slot of a hand-edited schedule.
type InstallmentEditDTO struct {
	Number         int     `json:"number"`
	Amount         float64 `json:"amount"`
	StudentDueDate *string `json:"student_due_date,omitempty"`
	// Nil defaults to true; fee-only slices set it false explicitly.
	GeneratesCommission *bool `json:"generates_commission,omitempty"`
}

// UpdateScheduleRequest replaces a draft plan's schedule with edited slots.
type UpdateScheduleRequest struct {
	Installments []InstallmentEditDTO `json:"installments"`
}

// ResetScheduleRequest regenerates the computed schedule for a draft plan.
type ResetScheduleRequest struct {
	InstallmentCount int    `json:"installment_count"`
	Frequency        string `json:"frequency"`
	StartDate        string `json:"start_date"`
}

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// RecordPaymentRequest posts one payment against an installment.
type RecordPaymentRequest struct {
	InstallmentID  string  `json:"installment_id"`
	Amount         float64 `json:"amount"`
	PaidDate       string  `json:"paid_date"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
	RecordedBy     string  `json:"recorded_by,omitempty"`
}

// PaymentEventDTO represents one recorded payment.
type PaymentEventDTO struct {
	ID             string  `json:"id"`
	PlanID         string  `json:"plan_id"`
	InstallmentID  string  `json:"installment_id"`
	Amount         float64 `json:"amount"`
	PaidDate       string  `json:"paid_date"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
	RecordedAt     string  `json:"recorded_at"`
	RecordedBy     string  `json:"recorded_by,omitempty"`
}

// RecalculateRequest re-derives a plan's commission, optionally under a
// corrected rate.
type RecalculateRequest struct {
	CommissionRatePercent *float64 `json:"commission_rate_percent,omitempty"`
}

// =============================================================================
// REPORT TYPES
// =============================================================================

// BreakdownRowDTO is one (college, branch) row of the commission report.
type BreakdownRowDTO struct {
	CollegeID    string  `json:"college_id"`
	CollegeName  string  `json:"college_name"`
	BranchID     string  `json:"branch_id"`
	BranchName   string  `json:"branch_name"`
	Expected     float64 `json:"expected"`
	Earned       float64 `json:"earned"`
	Outstanding  float64 `json:"outstanding"`
	GSTAmount    float64 `json:"gst_amount"`
	TotalWithGST float64 `json:"total_with_gst"`
	PlanCount    int     `json:"plan_count"`
}

// ForecastEntryDTO is the projected commission for one calendar month.
type ForecastEntryDTO struct {
	Month    string  `json:"month"` // "2006-01"
	Expected float64 `json:"expected"`
}

// AuditRunDTO represents one commission audit pass.
type AuditRunDTO struct {
	ID           string `json:"id"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at"`
	PlansChecked int    `json:"plans_checked"`
	DriftFound   int    `json:"drift_found"`
	Repaired     int    `json:"repaired"`
}

// =============================================================================
// SCENARIO AND ERROR TYPES
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

// jsonAmount renders an Amount at display precision for the wire.
func jsonAmount(a money.Amount) float64 {
	return a.Round(money.DisplayPlaces).Value.InexactFloat64()
}

func datePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func timestampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func toCollegeDTO(c plan.College) CollegeDTO {
	return CollegeDTO{
		ID:        string(c.ID),
		Name:      c.Name,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func toBranchDTO(b plan.Branch) BranchDTO {
	return BranchDTO{
		ID:                    string(b.ID),
		CollegeID:             string(b.CollegeID),
		Name:                  b.Name,
		CommissionRatePercent: b.CommissionRatePercent.InexactFloat64(),
		CreatedAt:             b.CreatedAt.Format(time.RFC3339),
	}
}

func toConfigDTO(cfg plan.AgencyConfig) ConfigDTO {
	return ConfigDTO{
		GSTRate:             cfg.GSTRate.InexactFloat64(),
		InstitutionLeadDays: cfg.InstitutionLeadDays,
		DefaultTaxInclusive: cfg.DefaultTaxInclusive,
		Currency:            string(cfg.Currency),
		UpdatedAt:           cfg.UpdatedAt.Format(time.RFC3339),
	}
}

func toPlanDTO(p *plan.PaymentPlan) PlanDTO {
	return PlanDTO{
		ID:                    string(p.ID),
		EnrollmentID:          p.EnrollmentID,
		CollegeID:             string(p.CollegeID),
		BranchID:              string(p.BranchID),
		TotalAmount:           jsonAmount(p.TotalAmount),
		Currency:              string(p.Currency),
		MaterialsCost:         jsonAmount(p.MaterialsCost),
		AdminFees:             jsonAmount(p.AdminFees),
		OtherFees:             jsonAmount(p.OtherFees),
		CommissionRatePercent: p.CommissionRatePercent.InexactFloat64(),
		ExpectedCommission:    jsonAmount(p.ExpectedCommission),
		EarnedCommission:      jsonAmount(p.EarnedCommission),
		TaxInclusive:          p.TaxInclusive,
		Status:                string(p.Status),
		CreatedAt:             p.CreatedAt.Format(time.RFC3339),
		ApprovedAt:            timestampPtr(p.ApprovedAt),
		CompletedAt:           timestampPtr(p.CompletedAt),
		CancelledAt:           timestampPtr(p.CancelledAt),
	}
}

func toPlanDTOs(plans []plan.PaymentPlan) []PlanDTO {
	dtos := make([]PlanDTO, len(plans))
	for i := range plans {
		dtos[i] = toPlanDTO(&plans[i])
	}
	return dtos
}

func toInstallmentDTO(inst plan.Installment) InstallmentDTO {
	return InstallmentDTO{
		ID:                  string(inst.ID),
		PlanID:              string(inst.PlanID),
		Number:              inst.Number,
		Amount:              jsonAmount(inst.Amount),
		StudentDueDate:      datePtr(inst.StudentDueDate),
		InstitutionDueDate:  datePtr(inst.InstitutionDueDate),
		Status:              string(inst.Status),
		PaidAmount:          jsonAmount(inst.PaidAmount),
		PaidDate:            datePtr(inst.PaidDate),
		GeneratesCommission: inst.GeneratesCommission,
	}
}

func toInstallmentDTOs(insts []plan.Installment) []InstallmentDTO {
	dtos := make([]InstallmentDTO, len(insts))
	for i, inst := range insts {
		dtos[i] = toInstallmentDTO(inst)
	}
	return dtos
}

func toDraftInstallmentDTOs(draft []schedule.DraftInstallment) []DraftInstallmentDTO {
	dtos := make([]DraftInstallmentDTO, len(draft))
	for i, d := range draft {
		dtos[i] = DraftInstallmentDTO{
			Number:             d.Number,
			Amount:             jsonAmount(d.Amount),
			StudentDueDate:     datePtr(d.StudentDueDate),
			InstitutionDueDate: datePtr(d.InstitutionDueDate),
		}
	}
	return dtos
}

func toPaymentEventDTO(e plan.PaymentEvent) PaymentEventDTO {
	return PaymentEventDTO{
		ID:             string(e.ID),
		PlanID:         string(e.PlanID),
		InstallmentID:  string(e.InstallmentID),
		Amount:         jsonAmount(e.Amount),
		PaidDate:       e.PaidDate.Format(dateLayout),
		IdempotencyKey: e.IdempotencyKey,
		RecordedAt:     e.RecordedAt.Format(time.RFC3339),
		RecordedBy:     e.RecordedBy,
	}
}

func toPaymentEventDTOs(events []plan.PaymentEvent) []PaymentEventDTO {
	dtos := make([]PaymentEventDTO, len(events))
	for i, e := range events {
		dtos[i] = toPaymentEventDTO(e)
	}
	return dtos
}

func toBreakdownRowDTOs(rows []report.BreakdownRow) []BreakdownRowDTO {
	dtos := make([]BreakdownRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = BreakdownRowDTO{
			CollegeID:    row.CollegeID,
			CollegeName:  row.CollegeName,
			BranchID:     row.BranchID,
			BranchName:   row.BranchName,
			Expected:     jsonAmount(row.Expected),
			Earned:       jsonAmount(row.Earned),
			Outstanding:  jsonAmount(row.Outstanding),
			GSTAmount:    jsonAmount(row.GSTAmount),
			TotalWithGST: jsonAmount(row.TotalWithGST),
			PlanCount:    row.PlanCount,
		}
	}
	return dtos
}

func toForecastEntryDTOs(entries []commission.ForecastEntry) []ForecastEntryDTO {
	dtos := make([]ForecastEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = ForecastEntryDTO{
			Month:    e.Month.Format("2006-01"),
			Expected: jsonAmount(e.Expected),
		}
	}
	return dtos
}

func toAuditRunDTO(run plan.AuditRun) AuditRunDTO {
	return AuditRunDTO{
		ID:           run.ID,
		StartedAt:    run.StartedAt.Format(time.RFC3339),
		FinishedAt:   run.FinishedAt.Format(time.RFC3339),
		PlansChecked: run.PlansChecked,
		DriftFound:   run.DriftFound,
		Repaired:     run.Repaired,
	}
}

func toAuditRunDTOs(runs []plan.AuditRun) []AuditRunDTO {
	dtos := make([]AuditRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toAuditRunDTO(run)
	}
	return dtos
}
