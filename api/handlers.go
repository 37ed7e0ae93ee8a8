/*
handlers.go - HTTP API handlers for the commission engine

PURPOSE:
  Exposes the commission engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Institutions:
    GET    /api/v1/colleges               List colleges
    POST   /api/v1/colleges               Register college
    GET    /api/v1/colleges/{id}          Get college
    GET    /api/v1/branches               List branches (?college_id=)
    POST   /api/v1/branches               Register branch with commission rate
    GET    /api/v1/branches/{id}          Get branch

  Configuration:
    GET    /api/v1/config                 Get agency configuration
    PUT    /api/v1/config                 Replace agency configuration

  Plans:
    GET    /api/v1/plans                  List plans (filters below)
    POST   /api/v1/plans                  Create draft plan + schedule
    POST   /api/v1/plans/from-template    Create draft plan from a template
    POST   /api/v1/plans/preview          Preview a schedule without saving
    GET    /api/v1/plans/{id}             Plan with installments
    DELETE /api/v1/plans/{id}             Delete plan (cascades)
    PUT    /api/v1/plans/{id}/schedule    Replace draft schedule with edits
    POST   /api/v1/plans/{id}/schedule/reset  Regenerate computed schedule
    POST   /api/v1/plans/{id}/approve     Freeze schedule, activate plan
    POST   /api/v1/plans/{id}/cancel      Cancel plan
    POST   /api/v1/plans/{id}/recalculate Recompute commission (admin)
    POST   /api/v1/plans/{id}/payments    Record a payment
    GET    /api/v1/plans/{id}/payments    Payment history

  Templates:
    GET    /api/v1/templates              Built-in plan templates

  Reports:
    GET    /api/v1/reports/breakdown      Commission breakdown (cached)
    GET    /api/v1/reports/forecast       Monthly earnings projection

  Audit:
    GET    /api/v1/audit/runs             Commission audit history
    POST   /api/v1/audit/run              Trigger an audit pass now

FILTERS (plans, reports):
  college_id, branch_id, enrollment_id, status (comma-separated),
  and a creation-time window: from/to (YYYY-MM-DD, half-open) or one of
  the shorthands month=YYYY-MM, quarter=YYYY-Qn, year=YYYY.

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (service, report, ledger)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, status-guard violations
  - 404: Record not found
  - 409: Conflict (duplicate idempotency key)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pleeno/commission-engine/factory"
	"github.com/pleeno/commission-engine/money"
	"github.com/pleeno/commission-engine/plan"
	"github.com/pleeno/commission-engine/report"
	"github.com/pleeno/commission-engine/schedule"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   plan.TxStore
	Service *plan.Service
	Factory *factory.TemplateFactory
	Cache   SummaryCache

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler on the given store. Caching starts as a
// no-op; install redis with UseCache.
func NewHandler(store plan.TxStore) *Handler {
	return &Handler{
		Store:   store,
		Service: plan.NewService(store),
		Factory: factory.NewTemplateFactory(),
		Cache:   NoopCache{},
	}
}

// UseCache installs the summary cache and wires invalidation into the
// service write paths.
func (h *Handler) UseCache(cache SummaryCache) {
	h.Cache = cache
	h.Service.Invalidator = cache
}

// =============================================================================
// COLLEGE HANDLERS
// =============================================================================

// ListColleges returns all colleges.
func (h *Handler) ListColleges(w http.ResponseWriter, r *http.Request) {
	colleges, err := h.Store.ListColleges(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list colleges", err)
		return
	}

	dtos := make([]CollegeDTO, len(colleges))
	for i, c := range colleges {
		dtos[i] = toCollegeDTO(c)
	}

	writeJSON(w, http.StatusOK, dtos)
}

// GetCollege returns a single college.
func (h *Handler) GetCollege(w http.ResponseWriter, r *http.Request) {
	id := plan.CollegeID(chi.URLParam(r, "id"))

	c, err := h.Store.GetCollege(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get college", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "College not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toCollegeDTO(*c))
}

// CreateCollege registers a college.
func (h *Handler) CreateCollege(w http.ResponseWriter, r *http.Request) {
	var req CreateCollegeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "College name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	c := plan.College{
		ID:        plan.CollegeID(req.ID),
		Name:      req.Name,
		CreatedAt: time.Now(),
	}
	if err := h.Store.SaveCollege(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create college", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCollegeDTO(c))
}

// =============================================================================
// BRANCH HANDLERS
// =============================================================================

// ListBranches returns branches, optionally scoped to one college.
func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	collegeID := r.URL.Query().Get("college_id")

	branches, err := h.Store.ListBranches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list branches", err)
		return
	}

	dtos := make([]BranchDTO, 0, len(branches))
	for _, b := range branches {
		if collegeID != "" && string(b.CollegeID) != collegeID {
			continue
		}
		dtos = append(dtos, toBranchDTO(b))
	}

	writeJSON(w, http.StatusOK, dtos)
}

// GetBranch returns a single branch.
func (h *Handler) GetBranch(w http.ResponseWriter, r *http.Request) {
	id := plan.BranchID(chi.URLParam(r, "id"))

	b, err := h.Store.GetBranch(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get branch", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "Branch not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toBranchDTO(*b))
}

// CreateBranch registers a branch under a college. The commission rate set
// here is what future plans snapshot.
func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	var req CreateBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Branch name is required", nil)
		return
	}

	rate := decimal.NewFromFloat(req.CommissionRatePercent)
	if err := money.ValidatePercentRate(rate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid commission rate", err)
		return
	}

	college, err := h.Store.GetCollege(r.Context(), plan.CollegeID(req.CollegeID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get college", err)
		return
	}
	if college == nil {
		writeError(w, http.StatusNotFound, "College not found", nil)
		return
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	b := plan.Branch{
		ID:                    plan.BranchID(req.ID),
		CollegeID:             college.ID,
		Name:                  req.Name,
		CommissionRatePercent: rate,
		CreatedAt:             time.Now(),
	}
	if err := h.Store.SaveBranch(r.Context(), b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create branch", err)
		return
	}

	writeJSON(w, http.StatusCreated, toBranchDTO(b))
}

// =============================================================================
// CONFIGURATION HANDLERS
// =============================================================================

// GetConfig returns the agency configuration.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Store.GetConfig(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get configuration", err)
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "Agency configuration not set", nil)
		return
	}

	writeJSON(w, http.StatusOK, toConfigDTO(*cfg))
}

// UpdateConfig replaces the agency configuration. The GST rate feeds every
// breakdown report, so cached summaries are dropped.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rate := decimal.NewFromFloat(req.GSTRate)
	if err := money.ValidateTaxRate(rate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid GST rate", err)
		return
	}
	if req.InstitutionLeadDays < 0 {
		writeError(w, http.StatusBadRequest, "Lead days must not be negative", nil)
		return
	}

	currency := money.Currency(req.Currency)
	if currency == "" {
		currency = money.AUD
	}

	cfg := plan.AgencyConfig{
		GSTRate:             rate,
		InstitutionLeadDays: req.InstitutionLeadDays,
		DefaultTaxInclusive: req.DefaultTaxInclusive,
		Currency:            currency,
		UpdatedAt:           time.Now(),
	}
	if err := h.Store.SaveConfig(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save configuration", err)
		return
	}

	h.Cache.InvalidateSummaries(r.Context())
	writeJSON(w, http.StatusOK, toConfigDTO(cfg))
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns plans matching the query filters.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	filter, err := planFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	plans, err := h.Store.ListPlans(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}

	writeJSON(w, http.StatusOK, toPlanDTOs(plans))
}

// GetPlan returns a plan with its installments.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := plan.PlanID(chi.URLParam(r, "id"))
	ctx := r.Context()

	p, err := h.Store.GetPlan(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get plan", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Plan not found", nil)
		return
	}

	insts, err := h.Store.ListInstallments(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list installments", err)
		return
	}

	writeJSON(w, http.StatusOK, PlanDetailDTO{
		Plan:         toPlanDTO(p),
		Installments: toInstallmentDTOs(insts),
	})
}

// CreatePlan creates a draft plan with a generated schedule.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := planInputFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	p, insts, err := h.Service.CreatePlan(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to create plan", err)
		return
	}

	writeJSON(w, http.StatusCreated, PlanDetailDTO{
		Plan:         toPlanDTO(p),
		Installments: toInstallmentDTOs(insts),
	})
}

// CreatePlanFromTemplate creates a draft plan from a template config, which
// supplies the schedule shape and fee defaults.
func (h *Handler) CreatePlanFromTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanFromTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tpl, err := h.Factory.FromJSON(req.Template)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid template", err)
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}

	in := tpl.NewPlanInput(req.EnrollmentID, plan.BranchID(req.BranchID), decimal.NewFromFloat(req.TotalAmount), start)
	p, insts, err := h.Service.CreatePlan(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to create plan", err)
		return
	}

	writeJSON(w, http.StatusCreated, PlanDetailDTO{
		Plan:         toPlanDTO(p),
		Installments: toInstallmentDTOs(insts),
	})
}

// DeletePlan removes a plan, its installments, and its payment events.
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id := plan.PlanID(chi.URLParam(r, "id"))
	ctx := r.Context()

	p, err := h.Store.GetPlan(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get plan", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Plan not found", nil)
		return
	}

	if err := h.Store.DeletePlan(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete plan", err)
		return
	}

	h.Cache.InvalidateSummaries(ctx)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// PreviewSchedule drafts a schedule without persisting anything.
func (h *Handler) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var req PreviewScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}

	draft, err := h.Service.PreviewSchedule(r.Context(),
		decimal.NewFromFloat(req.TotalAmount), req.InstallmentCount, parseFrequency(req.Frequency), start)
	if err != nil {
		writeDomainError(w, "Failed to preview schedule", err)
		return
	}

	writeJSON(w, http.StatusOK, toDraftInstallmentDTOs(draft))
}

// UpdateSchedule replaces a draft plan's schedule with hand-edited slots.
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := plan.PlanID(chi.URLParam(r, "id"))

	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	edits := make([]plan.InstallmentEdit, len(req.Installments))
	for i, in := range req.Installments {
		edit := plan.InstallmentEdit{
			Number:              in.Number,
			Amount:              decimal.NewFromFloat(in.Amount),
			GeneratesCommission: true,
		}
		if in.GeneratesCommission != nil {
			edit.GeneratesCommission = *in.GeneratesCommission
		}
		if in.StudentDueDate != nil {
			due, err := time.Parse(dateLayout, *in.StudentDueDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid student_due_date format (use YYYY-MM-DD)", err)
				return
			}
			edit.StudentDueDate = &due
		}
		edits[i] = edit
	}

	insts, err := h.Service.UpdateDraftSchedule(r.Context(), id, edits)
	if err != nil {
		writeDomainError(w, "Failed to update schedule", err)
		return
	}

	writeJSON(w, http.StatusOK, toInstallmentDTOs(insts))
}

// ResetSchedule discards manual edits and regenerates the computed split.
func (h *Handler) ResetSchedule(w http.ResponseWriter, r *http.Request) {
	id := plan.PlanID(chi.URLParam(r, "id"))

	var req ResetScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}

	insts, err := h.Service.ResetDraftSchedule(r.Context(), id, req.InstallmentCount, parseFrequency(req.Frequency), start)
	if err != nil {
		writeDomainError(w, "Failed to reset schedule", err)
		return
	}

	writeJSON(w, http.StatusOK, toInstallmentDTOs(insts))
}

// =============================================================================
// LIFECYCLE HANDLERS
// =============================================================================

// ApprovePlan freezes the schedule and activates the plan.
func (h *Handler) ApprovePlan(w http.ResponseWriter, r *http.Request) {
	id := plan.PlanID(chi.URLParam(r, "id"))

	p, err := h.Service.ApprovePlan(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to approve plan", err)
		return
	}

	writeJSON(w, http.StatusOK, toPlanDTO(p))
}

// CancelPlan cancels a plan and its unpaid installments.
func (h *Handler) CancelPlan(w http.ResponseWriter, r *http.Request) {
	id := plan.PlanID(chi.URLParam(r, "id"))

	p, err := h.Service.CancelPlan(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to cancel plan", err)
		return
	}

	writeJSON(w, http.StatusOK, toPlanDTO(p))
}

// RecalculatePlan re-derives a plan's commission figures, optionally under
// a corrected rate. Admin path for fixing mis-entered rates.
func (h *Handler) RecalculatePlan(w http.ResponseWriter, r *http.Request) {
	id := plan.PlanID(chi.URLParam(r, "id"))

	var req RecalculateRequest
	json.NewDecoder(r.Body).Decode(&req) // Body is optional

	var rate *decimal.Decimal
	if req.CommissionRatePercent != nil {
		d := decimal.NewFromFloat(*req.CommissionRatePercent)
		rate = &d
	}

	p, err := h.Service.RecalculateExpected(r.Context(), id, rate)
	if err != nil {
		writeDomainError(w, "Failed to recalculate commission", err)
		return
	}

	writeJSON(w, http.StatusOK, toPlanDTO(p))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment posts one payment against an installment. Retries with the
// same idempotency key return the current plan state, not an error.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id := plan.PlanID(chi.URLParam(r, "id"))

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.InstallmentID == "" {
		writeError(w, http.StatusBadRequest, "installment_id is required", nil)
		return
	}

	paidDate := time.Now()
	if req.PaidDate != "" {
		var err error
		paidDate, err = time.Parse(dateLayout, req.PaidDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paid_date format (use YYYY-MM-DD)", err)
			return
		}
	}
	if req.RecordedBy == "" {
		req.RecordedBy = "admin"
	}

	p, err := h.Service.RecordPayment(r.Context(), plan.RecordPaymentInput{
		PlanID:         id,
		InstallmentID:  plan.InstallmentID(req.InstallmentID),
		Amount:         decimal.NewFromFloat(req.Amount),
		PaidDate:       paidDate,
		IdempotencyKey: req.IdempotencyKey,
		RecordedBy:     req.RecordedBy,
	})
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}

	writeJSON(w, http.StatusOK, toPlanDTO(p))
}

// ListPayments returns a plan's payment history, oldest first.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id := plan.PlanID(chi.URLParam(r, "id"))
	ctx := r.Context()

	p, err := h.Store.GetPlan(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get plan", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Plan not found", nil)
		return
	}

	events, err := h.Service.Ledger.History(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get payment history", err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentEventDTOs(events))
}

// =============================================================================
// TEMPLATE HANDLERS
// =============================================================================

// ListTemplates returns the built-in plan templates the UI offers for quick
// plan creation.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	presets := []string{
		plan.MonthlyTemplateJSON("monthly-3", "Monthly x3", 3),
		plan.MonthlyTemplateJSON("monthly-6", "Monthly x6", 6),
		plan.MonthlyTemplateJSON("monthly-12", "Monthly x12", 12),
		plan.QuarterlyTemplateJSON("quarterly-4", "Quarterly x4", 4),
		plan.UpfrontTemplateJSON("upfront", "Single Upfront Payment"),
		plan.FeeLoadedTemplateJSON("fee-loaded-4", "Materials and Admin x4", 4, 450, 200),
	}

	dtos := make([]factory.TemplateJSON, 0, len(presets))
	for _, preset := range presets {
		tpl, err := h.Factory.ParseTemplate(preset)
		if err != nil {
			continue // Skip invalid presets
		}
		dtos = append(dtos, h.Factory.ToJSON(tpl))
	}

	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetBreakdown returns the per-(college, branch) commission report for the
// filtered plan set. Responses are cached; any write that changes commission
// figures invalidates the cache.
func (h *Handler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := planFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	// Encode sorts keys, so equivalent queries share a cache entry.
	cacheKey := "breakdown:" + r.URL.Query().Encode()
	if data, ok := h.Cache.Get(ctx, cacheKey); ok {
		writeJSONBytes(w, http.StatusOK, data)
		return
	}

	cfg, err := h.agencyConfig(ctx)
	if err != nil {
		writeDomainError(w, "Failed to build report", err)
		return
	}

	summaries, err := h.Service.Summaries(ctx, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load plan summaries", err)
		return
	}

	rows, err := report.Aggregate(summaries, cfg.GSTRate)
	if err != nil {
		writeDomainError(w, "Failed to aggregate report", err)
		return
	}

	data, err := json.Marshal(toBreakdownRowDTOs(rows))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode report", err)
		return
	}

	h.Cache.Set(ctx, cacheKey, data)
	writeJSONBytes(w, http.StatusOK, data)
}

// GetForecast returns the projected monthly commission earnings for the
// filtered active plans.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	filter, err := planFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	entries, err := h.Service.Forecast(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to build forecast", err)
		return
	}

	writeJSON(w, http.StatusOK, toForecastEntryDTOs(entries))
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// ListAuditRuns returns commission audit history, newest first.
func (h *Handler) ListAuditRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListAuditRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get audit runs", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": toAuditRunDTOs(runs)})
}

// TriggerAudit runs one commission audit pass immediately.
func (h *Handler) TriggerAudit(w http.ResponseWriter, r *http.Request) {
	run, err := runCommissionAudit(r.Context(), h.Store, h.Service)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Audit failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toAuditRunDTO(run))
}

// =============================================================================
// RESET
// =============================================================================

// ResetDatabase clears everything and reseeds the default agency
// configuration. Dev/demo environments only.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	h.Cache.InvalidateSummaries(ctx)

	// A fresh database still needs agency configuration to accept plans.
	if err := h.Store.SaveConfig(ctx, defaultAgencyConfig()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed configuration", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func defaultAgencyConfig() plan.AgencyConfig {
	return plan.AgencyConfig{
		GSTRate:             money.MustParseDecimal("0.10"),
		InstitutionLeadDays: 14,
		DefaultTaxInclusive: false,
		Currency:            money.AUD,
		UpdatedAt:           time.Now(),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) agencyConfig(ctx context.Context) (*plan.AgencyConfig, error) {
	cfg, err := h.Store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, plan.ErrConfigNotFound
	}
	return cfg, nil
}

func planInputFromRequest(req CreatePlanRequest) (plan.NewPlanInput, error) {
	var in plan.NewPlanInput
	if req.EnrollmentID == "" {
		return in, fmt.Errorf("enrollment_id is required")
	}
	if req.BranchID == "" {
		return in, fmt.Errorf("branch_id is required")
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return in, fmt.Errorf("invalid start_date format (use YYYY-MM-DD)")
	}

	return plan.NewPlanInput{
		EnrollmentID:     req.EnrollmentID,
		BranchID:         plan.BranchID(req.BranchID),
		TotalAmount:      decimal.NewFromFloat(req.TotalAmount),
		MaterialsCost:    decimal.NewFromFloat(req.MaterialsCost),
		AdminFees:        decimal.NewFromFloat(req.AdminFees),
		OtherFees:        decimal.NewFromFloat(req.OtherFees),
		InstallmentCount: req.InstallmentCount,
		Frequency:        parseFrequency(req.Frequency),
		StartDate:        start,
		TaxInclusive:     req.TaxInclusive,
	}, nil
}

// parseFrequency maps the wire value to a Frequency, defaulting to monthly.
// Unknown values pass through so schedule.Generate rejects them with its
// own error.
func parseFrequency(s string) schedule.Frequency {
	if s == "" {
		return schedule.FrequencyMonthly
	}
	return schedule.Frequency(s)
}

// planFilterFromQuery builds a PlanFilter from list/report query
// parameters. Time filtering accepts an explicit from/to pair or one of the
// month/quarter/year shorthands; either way the window is half-open.
func planFilterFromQuery(r *http.Request) (plan.PlanFilter, error) {
	q := r.URL.Query()
	var filter plan.PlanFilter

	if v := q.Get("college_id"); v != "" {
		id := plan.CollegeID(v)
		filter.CollegeID = &id
	}
	if v := q.Get("branch_id"); v != "" {
		id := plan.BranchID(v)
		filter.BranchID = &id
	}
	if v := q.Get("enrollment_id"); v != "" {
		filter.EnrollmentID = &v
	}
	if v := q.Get("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			filter.Statuses = append(filter.Statuses, plan.PlanStatus(strings.TrimSpace(s)))
		}
	}

	window, err := windowFromQuery(q)
	if err != nil {
		return filter, err
	}
	if !window.Start.IsZero() {
		filter.From = &window.Start
	}
	if !window.End.IsZero() {
		filter.To = &window.End
	}

	return filter, nil
}

func windowFromQuery(q url.Values) (report.Window, error) {
	switch {
	case q.Get("month") != "":
		t, err := time.Parse("2006-01", q.Get("month"))
		if err != nil {
			return report.Window{}, fmt.Errorf("invalid month (use YYYY-MM): %w", err)
		}
		return report.MonthWindow(t.Year(), t.Month()), nil

	case q.Get("quarter") != "":
		var year, quarter int
		if _, err := fmt.Sscanf(q.Get("quarter"), "%d-Q%d", &year, &quarter); err != nil || quarter < 1 || quarter > 4 {
			return report.Window{}, fmt.Errorf("invalid quarter (use YYYY-Qn)")
		}
		return report.QuarterWindow(year, quarter), nil

	case q.Get("year") != "":
		year, err := strconv.Atoi(q.Get("year"))
		if err != nil {
			return report.Window{}, fmt.Errorf("invalid year: %w", err)
		}
		return report.YearWindow(year), nil

	case q.Get("from") != "" || q.Get("to") != "":
		var w report.Window
		if v := q.Get("from"); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				return report.Window{}, fmt.Errorf("invalid from (use YYYY-MM-DD): %w", err)
			}
			w.Start = t
		}
		if v := q.Get("to"); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				return report.Window{}, fmt.Errorf("invalid to (use YYYY-MM-DD): %w", err)
			}
			w.End = t
		}
		if !w.Start.IsZero() && !w.End.IsZero() {
			return report.NewWindow(w.Start, w.End)
		}
		return w, nil
	}

	return report.Window{}, nil
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case plan.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, plan.ErrDuplicatePaymentKey):
		writeError(w, http.StatusConflict, message, err)
	case plan.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeJSONBytes writes an already-encoded JSON payload.
func writeJSONBytes(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
