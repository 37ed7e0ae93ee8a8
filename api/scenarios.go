/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates colleges, branches,
	agency configuration, and plans that demonstrate specific features.

AVAILABLE SCENARIOS:

	single-plan:      One approved 3-installment plan, shows the rounding split
	partial-payments: Mid-flight plan with a partial payment and earned accrual
	multi-branch:     Portfolio across branches for the breakdown report
	fee-heavy:        Fees exceed the total; commission clamps to zero

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Seed agency configuration
 3. Create colleges and branches with commission rates
 4. Create plans (directly or from templates)
 5. Approve plans and record payments as the scenario needs

USAGE VIA API:

	POST /api/v1/scenarios/load
	{"scenario_id": "partial-payments"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase handler
  - plan/templates.go: Template JSON used by loaders
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pleeno/commission-engine/money"
	"github.com/pleeno/commission-engine/plan"
	"github.com/pleeno/commission-engine/schedule"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "single-plan",
		Name:        "Single Plan",
		Description: "One approved plan, 1000.00 over 3 installments (333.33/333.33/333.34)",
	},
	{
		ID:          "partial-payments",
		Name:        "Partial Payments",
		Description: "10000.00 plan with 1000.00 fees at 15%: 4500.00 paid earns 675.00",
	},
	{
		ID:          "multi-branch",
		Name:        "Multi-Branch Portfolio",
		Description: "Plans across two colleges and three branches for the breakdown report",
	},
	{
		ID:          "fee-heavy",
		Name:        "Fee-Heavy Plan",
		Description: "Non-commissionable fees exceed the total; commission clamps to zero",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = "" // Clear current scenario on reset
	h.Cache.InvalidateSummaries(ctx)

	var err error
	switch req.ScenarioID {
	case "single-plan":
		err = h.loadSinglePlanScenario(ctx)
	case "partial-payments":
		err = h.loadPartialPaymentsScenario(ctx)
	case "multi-branch":
		err = h.loadMultiBranchScenario(ctx)
	case "fee-heavy":
		err = h.loadFeeHeavyScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	// Track the loaded scenario
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSinglePlanScenario(ctx context.Context) error {
	if err := h.Store.SaveConfig(ctx, defaultAgencyConfig()); err != nil {
		return err
	}

	branch, err := h.seedBranch(ctx,
		"col-aurora", "Aurora College",
		"br-city", "City Campus", "15")
	if err != nil {
		return err
	}

	// The canonical rounding split: 1000.00 over 3 installments. The plan
	// shape comes from the monthly-3 template to exercise the template path.
	tpl, err := h.Factory.ParseTemplate(plan.MonthlyTemplateJSON("monthly-3", "Monthly x3", 3))
	if err != nil {
		return err
	}

	start := schedule.DateOnly(time.Now().AddDate(0, -1, 0))
	in := tpl.NewPlanInput("enr-1001", branch.ID, money.MustParseDecimal("1000"), start)

	p, _, err := h.Service.CreatePlan(ctx, in)
	if err != nil {
		return err
	}

	// Approve so the plan is live: expected commission 150.00 at 15%.
	_, err = h.Service.ApprovePlan(ctx, p.ID)
	return err
}

func (h *Handler) loadPartialPaymentsScenario(ctx context.Context) error {
	if err := h.Store.SaveConfig(ctx, defaultAgencyConfig()); err != nil {
		return err
	}

	branch, err := h.seedBranch(ctx,
		"col-aurora", "Aurora College",
		"br-city", "City Campus", "15")
	if err != nil {
		return err
	}

	// 10000.00 total, 1000.00 materials: commissionable base 9000.00,
	// expected commission 1350.00 at 15%.
	start := schedule.DateOnly(time.Now().AddDate(0, -2, 0))
	p, _, err := h.Service.CreatePlan(ctx, plan.NewPlanInput{
		EnrollmentID:     "enr-2001",
		BranchID:         branch.ID,
		TotalAmount:      money.MustParseDecimal("10000"),
		MaterialsCost:    money.MustParseDecimal("1000"),
		InstallmentCount: 4,
		Frequency:        schedule.FrequencyMonthly,
		StartDate:        start,
	})
	if err != nil {
		return err
	}
	if _, err := h.Service.ApprovePlan(ctx, p.ID); err != nil {
		return err
	}

	insts, err := h.Store.ListInstallments(ctx, p.ID)
	if err != nil {
		return err
	}

	// Installment 1 paid in full (2500.00), installment 2 paid short
	// (2000.00): 4500.00 of the 9000.00 base earns 675.00.
	payments := []struct {
		inst    plan.Installment
		amount  string
		daysAgo int
		key     string
	}{
		{insts[0], "2500", 45, "demo-partial-payment-1"},
		{insts[1], "2000", 15, "demo-partial-payment-2"},
	}
	for _, pay := range payments {
		_, err := h.Service.RecordPayment(ctx, plan.RecordPaymentInput{
			PlanID:         p.ID,
			InstallmentID:  pay.inst.ID,
			Amount:         money.MustParseDecimal(pay.amount),
			PaidDate:       time.Now().AddDate(0, 0, -pay.daysAgo),
			IdempotencyKey: pay.key,
			RecordedBy:     "demo",
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (h *Handler) loadMultiBranchScenario(ctx context.Context) error {
	if err := h.Store.SaveConfig(ctx, defaultAgencyConfig()); err != nil {
		return err
	}

	colleges := []plan.College{
		{ID: "col-aurora", Name: "Aurora College", CreatedAt: time.Now()},
		{ID: "col-beacon", Name: "Beacon Institute", CreatedAt: time.Now()},
	}
	for _, c := range colleges {
		if err := h.Store.SaveCollege(ctx, c); err != nil {
			return err
		}
	}

	branches := []plan.Branch{
		{ID: "br-city", CollegeID: "col-aurora", Name: "City Campus",
			CommissionRatePercent: money.MustParseDecimal("10"), CreatedAt: time.Now()},
		{ID: "br-harbour", CollegeID: "col-beacon", Name: "Harbour Campus",
			CommissionRatePercent: money.MustParseDecimal("10"), CreatedAt: time.Now()},
		{ID: "br-downtown", CollegeID: "col-beacon", Name: "Downtown Campus",
			CommissionRatePercent: money.MustParseDecimal("15"), CreatedAt: time.Now()},
	}
	for _, b := range branches {
		if err := h.Store.SaveBranch(ctx, b); err != nil {
			return err
		}
	}

	// City and Harbour both end up with 500.00 earned, so the breakdown
	// shows the alphabetical tie-break; Downtown's 1200.00 sorts first.
	seeds := []struct {
		enrollment string
		branch     plan.BranchID
		total      string
	}{
		{"enr-3001", "br-city", "5000"},
		{"enr-3002", "br-harbour", "5000"},
		{"enr-3003", "br-downtown", "8000"},
	}

	start := schedule.DateOnly(time.Now().AddDate(0, -3, 0))
	for i, seed := range seeds {
		p, _, err := h.Service.CreatePlan(ctx, plan.NewPlanInput{
			EnrollmentID:     seed.enrollment,
			BranchID:         seed.branch,
			TotalAmount:      money.MustParseDecimal(seed.total),
			InstallmentCount: 2,
			Frequency:        schedule.FrequencyMonthly,
			StartDate:        start,
		})
		if err != nil {
			return err
		}
		if _, err := h.Service.ApprovePlan(ctx, p.ID); err != nil {
			return err
		}

		// Pay every installment in full so earned equals expected.
		insts, err := h.Store.ListInstallments(ctx, p.ID)
		if err != nil {
			return err
		}
		for n, inst := range insts {
			_, err := h.Service.RecordPayment(ctx, plan.RecordPaymentInput{
				PlanID:         p.ID,
				InstallmentID:  inst.ID,
				Amount:         inst.Amount.Value,
				PaidDate:       time.Now().AddDate(0, 0, -(60 - 30*n)),
				IdempotencyKey: fmt.Sprintf("demo-portfolio-%d-%d", i+1, n+1),
				RecordedBy:     "demo",
			})
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (h *Handler) loadFeeHeavyScenario(ctx context.Context) error {
	if err := h.Store.SaveConfig(ctx, defaultAgencyConfig()); err != nil {
		return err
	}

	branch, err := h.seedBranch(ctx,
		"col-aurora", "Aurora College",
		"br-city", "City Campus", "15")
	if err != nil {
		return err
	}

	// Fees (800 + 300 + 200 = 1300.00) exceed the 1200.00 total, so the
	// commissionable base is negative and commission clamps to zero even as
	// payments arrive.
	start := schedule.DateOnly(time.Now().AddDate(0, -1, 0))
	p, _, err := h.Service.CreatePlan(ctx, plan.NewPlanInput{
		EnrollmentID:     "enr-4001",
		BranchID:         branch.ID,
		TotalAmount:      money.MustParseDecimal("1200"),
		MaterialsCost:    money.MustParseDecimal("800"),
		AdminFees:        money.MustParseDecimal("300"),
		OtherFees:        money.MustParseDecimal("200"),
		InstallmentCount: 2,
		Frequency:        schedule.FrequencyMonthly,
		StartDate:        start,
	})
	if err != nil {
		return err
	}
	if _, err := h.Service.ApprovePlan(ctx, p.ID); err != nil {
		return err
	}

	insts, err := h.Store.ListInstallments(ctx, p.ID)
	if err != nil {
		return err
	}

	_, err = h.Service.RecordPayment(ctx, plan.RecordPaymentInput{
		PlanID:         p.ID,
		InstallmentID:  insts[0].ID,
		Amount:         insts[0].Amount.Value,
		PaidDate:       time.Now().AddDate(0, 0, -10),
		IdempotencyKey: "demo-fee-heavy-payment-1",
		RecordedBy:     "demo",
	})
	return err
}

// seedBranch saves one college with one branch and returns the branch.
func (h *Handler) seedBranch(ctx context.Context, collegeID, collegeName, branchID, branchName, ratePercent string) (*plan.Branch, error) {
	c := plan.College{
		ID:        plan.CollegeID(collegeID),
		Name:      collegeName,
		CreatedAt: time.Now(),
	}
	if err := h.Store.SaveCollege(ctx, c); err != nil {
		return nil, err
	}

	b := plan.Branch{
		ID:                    plan.BranchID(branchID),
		CollegeID:             c.ID,
		Name:                  branchName,
		CommissionRatePercent: money.MustParseDecimal(ratePercent),
		CreatedAt:             time.Now(),
	}
	if err := h.Store.SaveBranch(ctx, b); err != nil {
		return nil, err
	}
	return &b, nil
}
