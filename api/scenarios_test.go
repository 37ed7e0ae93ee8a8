/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario correctly sets up the expected state:
	- Colleges and branches are created
	- Plans are created, approved, and paid as advertised
	- Commission figures match the scenario descriptions

These tests ensure scenarios work correctly and can be used as integration tests.
*/
package api

import (
	"context"
	"testing"

	"github.com/pleeno/commission-engine/plan"
	"github.com/pleeno/commission-engine/report"
	"github.com/pleeno/commission-engine/store/sqlite"
)

func setupTestHandler(t *testing.T) *Handler {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return NewHandler(store)
}

func TestLoadSinglePlanScenario(t *testing.T) {
	handler := setupTestHandler(t)
	ctx := context.Background()

	if err := handler.loadSinglePlanScenario(ctx); err != nil {
		t.Fatalf("Failed to load scenario: %v", err)
	}

	colleges, err := handler.Store.ListColleges(ctx)
	if err != nil {
		t.Fatalf("Failed to list colleges: %v", err)
	}
	if len(colleges) != 1 {
		t.Errorf("Expected 1 college, got %d", len(colleges))
	}

	plans, err := handler.Store.ListPlans(ctx, plan.PlanFilter{})
	if err != nil {
		t.Fatalf("Failed to list plans: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("Expected 1 plan, got %d", len(plans))
	}

	p := plans[0]
	if p.Status != plan.PlanActive {
		t.Errorf("Expected active plan, got %s", p.Status)
	}
	if got := p.ExpectedCommission.String(); got != "150.00" {
		t.Errorf("Expected commission 150.00, got %s", got)
	}

	insts, err := handler.Store.ListInstallments(ctx, p.ID)
	if err != nil {
		t.Fatalf("Failed to list installments: %v", err)
	}

	// 1000.00 over 3: truncation leaves a cent for the last slot.
	want := []string{"333.33", "333.33", "333.34"}
	if len(insts) != len(want) {
		t.Fatalf("Expected %d installments, got %d", len(want), len(insts))
	}
	for i, amount := range want {
		if got := insts[i].Amount.String(); got != amount {
			t.Errorf("Installment %d: expected amount %s, got %s", i+1, amount, got)
		}
		if insts[i].Status != plan.InstallmentPending {
			t.Errorf("Installment %d: expected pending, got %s", i+1, insts[i].Status)
		}
	}
}

func TestLoadPartialPaymentsScenario(t *testing.T) {
	handler := setupTestHandler(t)
	ctx := context.Background()

	if err := handler.loadPartialPaymentsScenario(ctx); err != nil {
		t.Fatalf("Failed to load scenario: %v", err)
	}

	plans, err := handler.Store.ListPlans(ctx, plan.PlanFilter{})
	if err != nil {
		t.Fatalf("Failed to list plans: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("Expected 1 plan, got %d", len(plans))
	}

	// 4500.00 of the 9000.00 commissionable base has been paid, so half
	// the 1350.00 expected commission is earned.
	p := plans[0]
	if p.Status != plan.PlanActive {
		t.Errorf("Expected active plan, got %s", p.Status)
	}
	if got := p.ExpectedCommission.String(); got != "1350.00" {
		t.Errorf("Expected commission 1350.00, got %s", got)
	}
	if got := p.EarnedCommission.String(); got != "675.00" {
		t.Errorf("Expected earned 675.00, got %s", got)
	}

	insts, err := handler.Store.ListInstallments(ctx, p.ID)
	if err != nil {
		t.Fatalf("Failed to list installments: %v", err)
	}
	if len(insts) != 4 {
		t.Fatalf("Expected 4 installments, got %d", len(insts))
	}

	if insts[0].Status != plan.InstallmentPaid {
		t.Errorf("Installment 1: expected paid, got %s", insts[0].Status)
	}
	if got := insts[0].PaidAmount.String(); got != "2500.00" {
		t.Errorf("Installment 1: expected paid amount 2500.00, got %s", got)
	}
	if insts[1].Status != plan.InstallmentPaid {
		t.Errorf("Installment 2: expected paid, got %s", insts[1].Status)
	}
	if got := insts[1].PaidAmount.String(); got != "2000.00" {
		t.Errorf("Installment 2: expected paid amount 2000.00, got %s", got)
	}
	for _, inst := range insts[2:] {
		if inst.Status != plan.InstallmentPending {
			t.Errorf("Installment %d: expected pending, got %s", inst.Number, inst.Status)
		}
	}

	events, err := handler.Store.ListPaymentEvents(ctx, p.ID)
	if err != nil {
		t.Fatalf("Failed to list payment events: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("Expected 2 payment events, got %d", len(events))
	}
}

func TestLoadMultiBranchScenario(t *testing.T) {
	handler := setupTestHandler(t)
	ctx := context.Background()

	if err := handler.loadMultiBranchScenario(ctx); err != nil {
		t.Fatalf("Failed to load scenario: %v", err)
	}

	branches, err := handler.Store.ListBranches(ctx)
	if err != nil {
		t.Fatalf("Failed to list branches: %v", err)
	}
	if len(branches) != 3 {
		t.Errorf("Expected 3 branches, got %d", len(branches))
	}

	plans, err := handler.Store.ListPlans(ctx, plan.PlanFilter{})
	if err != nil {
		t.Fatalf("Failed to list plans: %v", err)
	}
	if len(plans) != 3 {
		t.Fatalf("Expected 3 plans, got %d", len(plans))
	}
	for _, p := range plans {
		if p.Status != plan.PlanCompleted {
			t.Errorf("Plan %s: expected completed, got %s", p.ID, p.Status)
		}
	}

	cfg, err := handler.Store.GetConfig(ctx)
	if err != nil {
		t.Fatalf("Failed to get config: %v", err)
	}

	summaries, err := handler.Service.Summaries(ctx, plan.PlanFilter{})
	if err != nil {
		t.Fatalf("Failed to build summaries: %v", err)
	}

	rows, err := report.Aggregate(summaries, cfg.GSTRate)
	if err != nil {
		t.Fatalf("Failed to aggregate breakdown: %v", err)
	}

	// Earned descending, then college name, then branch name: Downtown's
	// 1200.00 sorts first, and the 500.00 tie breaks alphabetically.
	want := []struct {
		college string
		branch  string
		earned  string
	}{
		{"Beacon Institute", "Downtown Campus", "1200.00"},
		{"Aurora College", "City Campus", "500.00"},
		{"Beacon Institute", "Harbour Campus", "500.00"},
	}
	if len(rows) != len(want) {
		t.Fatalf("Expected %d breakdown rows, got %d", len(want), len(rows))
	}
	for i, w := range want {
		if rows[i].CollegeName != w.college || rows[i].BranchName != w.branch {
			t.Errorf("Row %d: expected %s / %s, got %s / %s",
				i, w.college, w.branch, rows[i].CollegeName, rows[i].BranchName)
		}
		if got := rows[i].Earned.String(); got != w.earned {
			t.Errorf("Row %d: expected earned %s, got %s", i, w.earned, got)
		}
	}

	// Every plan is fully paid and GST-exclusive, so tax sits on top.
	if got := rows[0].Outstanding.String(); got != "0.00" {
		t.Errorf("Expected outstanding 0.00, got %s", got)
	}
	if got := rows[0].GSTAmount.String(); got != "120.00" {
		t.Errorf("Expected GST 120.00, got %s", got)
	}
	if got := rows[0].TotalWithGST.String(); got != "1320.00" {
		t.Errorf("Expected total with GST 1320.00, got %s", got)
	}
}

func TestLoadFeeHeavyScenario(t *testing.T) {
	handler := setupTestHandler(t)
	ctx := context.Background()

	if err := handler.loadFeeHeavyScenario(ctx); err != nil {
		t.Fatalf("Failed to load scenario: %v", err)
	}

	plans, err := handler.Store.ListPlans(ctx, plan.PlanFilter{})
	if err != nil {
		t.Fatalf("Failed to list plans: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("Expected 1 plan, got %d", len(plans))
	}

	// Fees exceed the total, so nothing is commissionable even though an
	// installment has been paid.
	p := plans[0]
	if got := p.ExpectedCommission.String(); got != "0.00" {
		t.Errorf("Expected commission 0.00, got %s", got)
	}
	if got := p.EarnedCommission.String(); got != "0.00" {
		t.Errorf("Expected earned 0.00, got %s", got)
	}

	insts, err := handler.Store.ListInstallments(ctx, p.ID)
	if err != nil {
		t.Fatalf("Failed to list installments: %v", err)
	}
	if len(insts) != 2 {
		t.Fatalf("Expected 2 installments, got %d", len(insts))
	}
	if insts[0].Status != plan.InstallmentPaid {
		t.Errorf("Installment 1: expected paid, got %s", insts[0].Status)
	}
}

func TestResetClearsScenarioData(t *testing.T) {
	handler := setupTestHandler(t)
	ctx := context.Background()

	if err := handler.loadSinglePlanScenario(ctx); err != nil {
		t.Fatalf("Failed to load scenario: %v", err)
	}

	if err := handler.Store.Reset(ctx); err != nil {
		t.Fatalf("Failed to reset store: %v", err)
	}

	plans, err := handler.Store.ListPlans(ctx, plan.PlanFilter{})
	if err != nil {
		t.Fatalf("Failed to list plans: %v", err)
	}
	if len(plans) != 0 {
		t.Errorf("Expected no plans after reset, got %d", len(plans))
	}

	colleges, err := handler.Store.ListColleges(ctx)
	if err != nil {
		t.Fatalf("Failed to list colleges: %v", err)
	}
	if len(colleges) != 0 {
		t.Errorf("Expected no colleges after reset, got %d", len(colleges))
	}

	cfg, err := handler.Store.GetConfig(ctx)
	if err != nil {
		t.Fatalf("Failed to get config: %v", err)
	}
	if cfg != nil {
		t.Error("Expected no config after reset")
	}

	// A different scenario loads cleanly onto the wiped store.
	if err := handler.loadFeeHeavyScenario(ctx); err != nil {
		t.Fatalf("Failed to load scenario after reset: %v", err)
	}
	plans, err = handler.Store.ListPlans(ctx, plan.PlanFilter{})
	if err != nil {
		t.Fatalf("Failed to list plans: %v", err)
	}
	if len(plans) != 1 {
		t.Errorf("Expected 1 plan after reload, got %d", len(plans))
	}
}
