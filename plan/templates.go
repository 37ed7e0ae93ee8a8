/*
templates.go - Plan-domain template factory functions

These factory functions create JSON plan-template definitions for the
payment structures colleges commonly offer (monthly split, quarterly
split, upfront, fee-loaded). They construct JSON strings directly to
avoid import cycles with the factory package.

USAGE:
  import "github.com/pleeno/commission-engine/plan"

  jsonStr := plan.MonthlyTemplateJSON("trimester-3", "Trimester", 3)
  tmpl, err := factory.ParseTemplate(jsonStr)
*/
package plan

import (
	"encoding/json"
)

// MonthlyTemplateJSON returns JSON for an even monthly split with no fees.
func MonthlyTemplateJSON(id, name string, count int) string {
	tj := map[string]interface{}{
		"id":                id,
		"name":              name,
		"installment_count": count,
		"frequency":         "monthly",
	}
	b, _ := json.MarshalIndent(tj, "", "  ")
	return string(b)
}

// QuarterlyTemplateJSON returns JSON for an even quarterly split.
func QuarterlyTemplateJSON(id, name string, count int) string {
	tj := map[string]interface{}{
		"id":                id,
		"name":              name,
		"installment_count": count,
		"frequency":         "quarterly",
	}
	b, _ := json.MarshalIndent(tj, "", "  ")
	return string(b)
}

// UpfrontTemplateJSON returns JSON for a single upfront payment.
func UpfrontTemplateJSON(id, name string) string {
	tj := map[string]interface{}{
		"id":                id,
		"name":              name,
		"installment_count": 1,
		"frequency":         "monthly",
	}
	b, _ := json.MarshalIndent(tj, "", "  ")
	return string(b)
}

// FeeLoadedTemplateJSON returns JSON for a monthly split that carries
// materials and admin fees, the structure that shrinks the commission base.
func FeeLoadedTemplateJSON(id, name string, count int, materialsCost, adminFees float64) string {
	tj := map[string]interface{}{
		"id":                id,
		"name":              name,
		"installment_count": count,
		"frequency":         "monthly",
		"materials_cost":    materialsCost,
		"admin_fees":        adminFees,
	}
	b, _ := json.MarshalIndent(tj, "", "  ")
	return string(b)
}
