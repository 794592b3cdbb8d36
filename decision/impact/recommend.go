package impact

import (
	"fmt"
	"math"

	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
)

// Recommendation thresholds.
const (
	StableBand          = 2.0
	CriticalVariancePct = 15.0
	CriticalImpact      = 100.0
	HighVariancePct     = 8.0
	HighImpact          = 50.0
	OpportunityPct      = -10.0

	// Suggested menu price increase spreads the impact over this many sales.
	priceSpread = 50.0
)

// Recommend derives the action tier and text from a recipe's variance.
func Recommend(variancePct, impact, marginImpactPct, sellingPrice float64) (api.Recommendation, string) {
	if math.Abs(variancePct) < StableBand {
		return api.RecommendStable, "Cost stable - no action needed"
	}

	if variancePct > 0 {
		switch {
		case variancePct >= CriticalVariancePct || impact > CriticalImpact:
			action := "menu price increase"
			if sellingPrice > 0 {
				action = fmt.Sprintf("raising price by $%.2f", impact/priceSpread)
			}
			return api.RecommendCritical, fmt.Sprintf(
				"CRITICAL: +%.0f%% cost increase. Impact: $%.0f/period. Actions: 1) Negotiate with supplier immediately, 2) Source alternatives, 3) Consider %s",
				variancePct, impact, action)
		case variancePct >= HighVariancePct || impact > HighImpact:
			return api.RecommendHigh, fmt.Sprintf(
				"HIGH: +%.0f%% increase. Review supplier contract. Consider reducing portion by %.0f%% or price increase.",
				variancePct, variancePct/2)
		default:
			return api.RecommendMonitor, fmt.Sprintf(
				"MONITOR: +%.0f%% increase. Track for next 2 weeks before action.", variancePct)
		}
	}

	if variancePct <= OpportunityPct {
		return api.RecommendOpportunity, fmt.Sprintf(
			"OPPORTUNITY: %.0f%% cost reduction. Lock in supplier contract or stock up. Margin improved by %.1f%%.",
			variancePct, math.Abs(marginImpactPct))
	}
	return api.RecommendFavorable, fmt.Sprintf(
		"Favorable: %.0f%% cost decrease. Consider bulk purchasing.", variancePct)
}
