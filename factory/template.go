/*
Package factory provides JSON to Go plan-template conversion.

PURPOSE:
  Converts JSON plan-template definitions into PlanTemplate objects and,
  from those, plan.NewPlanInput values. This enables offering configuration
  without code changes - operations staff can define the payment structures
  a college offers in JSON, and the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can modify offerings
  - Easy integration with admin UI
  - Version control for template definitions
  - Database storage of template configs

JSON SCHEMA:
  {
    "id": "trimester-3",
    "name": "Trimester (3 payments)",
    "installment_count": 3,
    "frequency": "monthly",
    "materials_cost": 500,
    "admin_fees": 0,
    "other_fees": 0,
    "tax_inclusive": true,
    "description": "Three equal monthly payments"
  }

KEY FEATURES:
  - Validates JSON structure
  - Sets sensible defaults (monthly frequency, zero fees)
  - Rejects non-positive counts and negative fees
  - Applies a template to an enrollment via NewPlanInput

USAGE:
  factory := NewTemplateFactory()

  // From JSON string
  tmpl, err := factory.ParseTemplate(jsonString)

  // From domain-specific preset (recommended)
  jsonStr := plan.MonthlyTemplateJSON("trimester-3", "Trimester", 3)
  tmpl, err := factory.ParseTemplate(jsonStr)

  // Apply to an enrollment
  input := tmpl.NewPlanInput("enr-042", "branch-syd", decimal.NewFromInt(12000), start)
  p, insts, err := svc.CreatePlan(ctx, input)

SEE ALSO:
  - plan/templates.go: Preset template JSON builders
  - plan/workflow.go: NewPlanInput consumer
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pleeno/commission-engine/plan"
	"github.com/pleeno/commission-engine/schedule"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TemplateJSON is the JSON representation of a plan template.
type TemplateJSON struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	InstallmentCount int     `json:"installment_count"`
	Frequency        string  `json:"frequency,omitempty"` // monthly, quarterly, custom
	MaterialsCost    float64 `json:"materials_cost,omitempty"`
	AdminFees        float64 `json:"admin_fees,omitempty"`
	OtherFees        float64 `json:"other_fees,omitempty"`
	TaxInclusive     *bool   `json:"tax_inclusive,omitempty"` // nil defers to agency default
	Description      string  `json:"description,omitempty"`
}

// =============================================================================
// PLAN TEMPLATE
// =============================================================================

// PlanTemplate is a reusable recipe for creating draft plans: the payment
// structure a college offers, minus the per-student figures.
type PlanTemplate struct {
	ID               string
	Name             string
	InstallmentCount int
	Frequency        schedule.Frequency
	MaterialsCost    decimal.Decimal
	AdminFees        decimal.Decimal
	OtherFees        decimal.Decimal
	TaxInclusive     *bool
	Description      string
}

// NewPlanInput applies the template to one enrollment. The tuition total
// and start date are per-student; everything else comes from the template.
func (t *PlanTemplate) NewPlanInput(enrollmentID string, branchID plan.BranchID, totalAmount decimal.Decimal, startDate time.Time) plan.NewPlanInput {
	return plan.NewPlanInput{
		EnrollmentID:     enrollmentID,
		BranchID:         branchID,
		TotalAmount:      totalAmount,
		MaterialsCost:    t.MaterialsCost,
		AdminFees:        t.AdminFees,
		OtherFees:        t.OtherFees,
		InstallmentCount: t.InstallmentCount,
		Frequency:        t.Frequency,
		StartDate:        startDate,
		TaxInclusive:     t.TaxInclusive,
	}
}

// =============================================================================
// TEMPLATE FACTORY
// =============================================================================

// TemplateFactory converts JSON templates to Go structs.
type TemplateFactory struct{}

// NewTemplateFactory creates a new template factory.
func NewTemplateFactory() *TemplateFactory {
	return &TemplateFactory{}
}

// ParseTemplate parses a JSON string into a PlanTemplate.
func (f *TemplateFactory) ParseTemplate(jsonStr string) (*PlanTemplate, error) {
	var tj TemplateJSON
	if err := json.Unmarshal([]byte(jsonStr), &tj); err != nil {
		return nil, fmt.Errorf("failed to parse template JSON: %w", err)
	}

	return f.FromJSON(tj)
}

// FromJSON converts TemplateJSON to a PlanTemplate, validating and filling
// defaults.
func (f *TemplateFactory) FromJSON(tj TemplateJSON) (*PlanTemplate, error) {
	if tj.ID == "" {
		return nil, fmt.Errorf("template id is required")
	}
	if tj.InstallmentCount < 1 {
		return nil, fmt.Errorf("template %s: installment_count must be at least 1, got %d", tj.ID, tj.InstallmentCount)
	}

	freq, err := parseFrequency(tj.Frequency)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", tj.ID, err)
	}

	if tj.MaterialsCost < 0 || tj.AdminFees < 0 || tj.OtherFees < 0 {
		return nil, fmt.Errorf("template %s: fee amounts must not be negative", tj.ID)
	}

	return &PlanTemplate{
		ID:               tj.ID,
		Name:             tj.Name,
		InstallmentCount: tj.InstallmentCount,
		Frequency:        freq,
		MaterialsCost:    decimal.NewFromFloat(tj.MaterialsCost),
		AdminFees:        decimal.NewFromFloat(tj.AdminFees),
		OtherFees:        decimal.NewFromFloat(tj.OtherFees),
		TaxInclusive:     tj.TaxInclusive,
		Description:      tj.Description,
	}, nil
}

// ToJSON converts a PlanTemplate back to TemplateJSON.
func (f *TemplateFactory) ToJSON(t *PlanTemplate) TemplateJSON {
	materials, _ := t.MaterialsCost.Float64()
	admin, _ := t.AdminFees.Float64()
	other, _ := t.OtherFees.Float64()

	return TemplateJSON{
		ID:               t.ID,
		Name:             t.Name,
		InstallmentCount: t.InstallmentCount,
		Frequency:        string(t.Frequency),
		MaterialsCost:    materials,
		AdminFees:        admin,
		OtherFees:        other,
		TaxInclusive:     t.TaxInclusive,
		Description:      t.Description,
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseFrequency(s string) (schedule.Frequency, error) {
	if s == "" {
		return schedule.FrequencyMonthly, nil
	}
	freq := schedule.Frequency(s)
	if !freq.Valid() {
		return "", fmt.Errorf("unknown frequency: %s", s)
	}
	return freq, nil
}
