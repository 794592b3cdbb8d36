package report

import (
	"strings"
	"testing"

	"github.com/pg-png/wwithai-foodcost-sentinel/decision/alerts"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/impact"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{5.025, "$5.03"},
		{1234.5, "$1234.50"},
		{-3.1, "-$3.10"},
	}
	for _, tt := range tests {
		if got := Money(tt.in); got != tt.want {
			t.Errorf("Money(%v) = %q; want %q", tt.in, got, tt.want)
		}
	}
	if got := Pct(16.666); got != "+16.7%" {
		t.Errorf("Pct = %q", got)
	}
	if got := Truncate("Chicken thighs boneless", 10); got != "Chicken..." {
		t.Errorf("Truncate = %q", got)
	}
}

func TestCostImpactMarkdown(t *testing.T) {
	r := impact.Report{
		Period:     api.DateRange{Start: "2024-03-01", End: "2024-03-31"},
		PeriodType: "month",
		Summary:    impact.Summary{TotalRecipes: 1, RecipesWithIncrease: 1, TotalFinancialImpact: 5.025},
		TopImpactedRecipes: []api.RecipeImpactAnalysis{{
			RecipeName: "Chicken | Rice", ReferenceTotalCost: 3, ActualTotalCost: 3.5025,
			CostVariancePct: 16.75, UnitsSold: 10, TotalFinancialImpact: 5.025, Tier: api.RecommendCritical,
		}},
	}
	out := CostImpact(r)
	for _, want := range []string{"month (2024-03-01 to 2024-03-31)", `Chicken \| Rice`, "$5.03", "+16.8%", "critical"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestAlertsMarkdown(t *testing.T) {
	empty := Alerts(alerts.Report{})
	if !strings.Contains(empty, "No significant price changes") {
		t.Errorf("empty alerts = %q", empty)
	}
	out := Alerts(alerts.Report{
		Alerts: []alerts.Alert{{
			Change:          alerts.Change{Product: "Chicken", OldPrice: 5, NewPrice: 6, ChangePct: 20},
			ImpactLevel:     serrors.SeverityCritical,
			AffectedRecipes: []string{"Chicken Rice"},
			MonthlyImpact:   40,
		}},
		Summary: alerts.Summary{TotalAlerts: 1, TotalImpact: 40},
	})
	if !strings.Contains(out, "| Chicken | $5.00 | $6.00 | +20.0% | $40.00 | Chicken Rice |") {
		t.Errorf("alerts markdown:\n%s", out)
	}
}

func TestHTML(t *testing.T) {
	page, err := HTML("Q1 <report>", "## Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	s := string(page)
	for _, want := range []string{"<title>Q1 &lt;report&gt;</title>", "<h2>Title</h2>", "<table>", "<td>1</td>"} {
		if !strings.Contains(s, want) {
			t.Errorf("html missing %q:\n%s", want, s)
		}
	}
}
