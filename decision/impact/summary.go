package impact

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pg-png/wwithai-foodcost-sentinel/decision/variance"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
)

// Report limits and bands.
const (
	TopImpactedLimit      = 20
	TopChangesLimit       = 15
	ChangeBandPct         = 2.0
	CriticalSummaryPct    = 10.0
	CriticalSummaryImpact = 50.0
	stableImpact          = 10.0
	notableChangePct      = 5.0
)

// Summary aggregates an impact run.
type Summary struct {
	TotalRecipes               int     `json:"total_recipes"`
	RecipesWithIncrease        int     `json:"recipes_with_increase"`
	RecipesWithDecrease        int     `json:"recipes_with_decrease"`
	CriticalRecipes            int     `json:"critical_recipes"`
	TotalUnitsSold             float64 `json:"total_units_sold"`
	TotalReferenceCost         float64 `json:"total_reference_cost"`
	TotalActualCost            float64 `json:"total_actual_cost"`
	TotalFinancialImpact       float64 `json:"total_financial_impact"`
	AvgVariancePct             float64 `json:"avg_variance_pct"`
	InvoiceItemsAnalyzed       int     `json:"invoice_items_analyzed"`
	IngredientsWithPriceChange int     `json:"ingredients_with_price_change"`
}

// Report is the full cost-impact output for a period.
type Report struct {
	Period                 api.DateRange              `json:"period"`
	PeriodType             string                     `json:"period_type"`
	Summary                Summary                    `json:"summary"`
	TopImpactedRecipes     []api.RecipeImpactAnalysis `json:"top_impacted_recipes"`
	RecipesWithVariance    []api.RecipeImpactAnalysis `json:"recipes_with_variance"`
	IngredientPriceChanges []api.PriceChange          `json:"ingredient_price_changes"`
	OverallSummary         string                     `json:"overall_summary"`
}

// BuildReport summarizes analyses already ordered by AnalyzeAll.
// Totals are weighted by units sold.
func BuildReport(analyses []api.RecipeImpactAnalysis, changes variance.Changes, invoiceItems int) Report {
	var s Summary
	s.TotalRecipes = len(analyses)
	s.InvoiceItemsAnalyzed = invoiceItems
	s.IngredientsWithPriceChange = len(changes)

	withVariance := []api.RecipeImpactAnalysis{}
	for _, a := range analyses {
		s.TotalReferenceCost += a.ReferenceTotalCost * a.UnitsSold
		s.TotalActualCost += a.ActualTotalCost * a.UnitsSold
		s.TotalFinancialImpact += a.TotalFinancialImpact
		s.TotalUnitsSold += a.UnitsSold

		if a.CostVariancePct > ChangeBandPct {
			s.RecipesWithIncrease++
		}
		if a.CostVariancePct < -ChangeBandPct {
			s.RecipesWithDecrease++
		}
		if a.CostVariancePct > CriticalSummaryPct || a.TotalFinancialImpact > CriticalSummaryImpact {
			s.CriticalRecipes++
		}
		if math.Abs(a.CostVariancePct) > ChangeBandPct {
			withVariance = append(withVariance, a)
		}
	}
	s.AvgVariancePct = variance.Pct(s.TotalReferenceCost, s.TotalActualCost)

	top := analyses
	if len(top) > TopImpactedLimit {
		top = top[:TopImpactedLimit]
	}
	ranked := TopChanges(changes)

	return Report{
		Summary:                s,
		TopImpactedRecipes:     top,
		RecipesWithVariance:    withVariance,
		IngredientPriceChanges: ranked,
		OverallSummary:         OverallSummary(s.TotalFinancialImpact, s.CriticalRecipes, ranked),
	}
}

// TopChanges returns changes with |variance%| >= 2, largest first, at
// most 15. Ties are broken by ingredient id.
func TopChanges(changes variance.Changes) []api.PriceChange {
	out := []api.PriceChange{}
	for _, pc := range changes {
		if math.Abs(pc.VariancePct) >= ChangeBandPct {
			out = append(out, pc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].VariancePct), math.Abs(out[j].VariancePct)
		if ai != aj {
			return ai > aj
		}
		return out[i].IngredientID < out[j].IngredientID
	})
	if len(out) > TopChangesLimit {
		out = out[:TopChangesLimit]
	}
	return out
}

// OverallSummary writes the one-paragraph headline for a report.
func OverallSummary(totalImpact float64, criticalCount int, ranked []api.PriceChange) string {
	if math.Abs(totalImpact) < stableImpact && criticalCount == 0 {
		return "Food costs are stable. No immediate action required."
	}

	var parts []string
	switch {
	case totalImpact > 0:
		parts = append(parts, fmt.Sprintf("Cost Alert: $%.0f additional cost this period.", totalImpact))
	case totalImpact < 0:
		parts = append(parts, fmt.Sprintf("Cost Savings: $%.0f saved this period.", math.Abs(totalImpact)))
	}
	if criticalCount > 0 {
		parts = append(parts, fmt.Sprintf("%d recipes need immediate attention.", criticalCount))
	}

	var up, down []string
	for _, pc := range ranked {
		if pc.VariancePct > notableChangePct && len(up) < 3 {
			up = append(up, fmt.Sprintf("%s (+%.0f%%)", pc.IngredientName, pc.VariancePct))
		}
		if pc.VariancePct < -notableChangePct && len(down) < 2 {
			down = append(down, fmt.Sprintf("%s (%.0f%%)", pc.IngredientName, pc.VariancePct))
		}
	}
	if len(up) > 0 {
		parts = append(parts, "Top increases: "+strings.Join(up, ", ")+".")
	}
	if len(down) > 0 {
		parts = append(parts, "Opportunities: "+strings.Join(down, ", ")+".")
	}

	if len(parts) == 0 {
		return "Review individual recipes for details."
	}
	return strings.Join(parts, " ")
}
