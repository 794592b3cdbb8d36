// Package report renders analysis results as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/pg-png/wwithai-foodcost-sentinel/decision/alerts"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/audit"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/conversions"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/impact"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/sentinel"
)

// Money formats an amount with two decimals.
func Money(v float64) string {
	d := decimal.NewFromFloat(v)
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// Pct formats a signed percentage.
func Pct(v float64) string {
	return fmt.Sprintf("%+.1f%%", v)
}

// cell escapes a value for a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// Truncate shortens s to max runes with an ellipsis.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func period(r impact.Report) string {
	start, end := r.Period.Start, r.Period.End
	if start == "" {
		start = "beginning"
	}
	return fmt.Sprintf("%s (%s to %s)", r.PeriodType, start, end)
}

// CostImpact renders a cost-impact report.
func CostImpact(r impact.Report) string {
	var b strings.Builder
	s := r.Summary
	fmt.Fprintf(&b, "## Food Cost Impact: %s\n\n", period(r))
	if r.OverallSummary != "" {
		fmt.Fprintf(&b, "%s\n\n", r.OverallSummary)
	}
	b.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| **Recipes analyzed** | %d |\n", s.TotalRecipes)
	fmt.Fprintf(&b, "| **Cost increases** | %d |\n", s.RecipesWithIncrease)
	fmt.Fprintf(&b, "| **Cost decreases** | %d |\n", s.RecipesWithDecrease)
	fmt.Fprintf(&b, "| **Critical recipes** | %d |\n", s.CriticalRecipes)
	fmt.Fprintf(&b, "| **Reference cost** | %s |\n", Money(s.TotalReferenceCost))
	fmt.Fprintf(&b, "| **Actual cost** | %s |\n", Money(s.TotalActualCost))
	fmt.Fprintf(&b, "| **Financial impact** | %s |\n", Money(s.TotalFinancialImpact))
	fmt.Fprintf(&b, "| **Average variance** | %s |\n", Pct(s.AvgVariancePct))
	fmt.Fprintf(&b, "| **Invoice items** | %d |\n", s.InvoiceItemsAnalyzed)

	if len(r.TopImpactedRecipes) > 0 {
		b.WriteString("\n### Most Impacted Recipes\n\n")
		b.WriteString("| Recipe | Reference | Actual | Variance | Units Sold | Impact | Action |\n")
		b.WriteString("|--------|-----------|--------|----------|------------|--------|--------|\n")
		for _, a := range r.TopImpactedRecipes {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %.0f | %s | %s |\n",
				cell(a.RecipeName), Money(a.ReferenceTotalCost), Money(a.ActualTotalCost),
				Pct(a.CostVariancePct), a.UnitsSold, Money(a.TotalFinancialImpact), a.Tier)
		}
	}

	if len(r.IngredientPriceChanges) > 0 {
		b.WriteString("\n### Ingredient Price Changes\n\n")
		b.WriteString("| Ingredient | Reference | Invoice | Change | Unit |\n")
		b.WriteString("|------------|-----------|---------|--------|------|\n")
		for _, c := range r.IngredientPriceChanges {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				cell(c.IngredientName), Money(c.ReferencePrice), Money(c.ActualPrice), Pct(c.VariancePct), c.Unit)
		}
	}

	var notes []string
	for _, a := range r.RecipesWithVariance {
		if a.Recommendation != "" {
			notes = append(notes, fmt.Sprintf("- **%s**: %s", a.RecipeName, a.Recommendation))
		}
	}
	if len(notes) > 0 {
		b.WriteString("\n### Recommendations\n\n")
		b.WriteString(strings.Join(notes, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// Audit renders a data-quality audit.
func Audit(r audit.Report) string {
	var b strings.Builder
	s := r.Summary
	fmt.Fprintf(&b, "## Ingredient Audit: %s\n\n", strings.ToUpper(string(r.Status)))
	b.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| **Ingredients** | %d |\n", s.TotalIngredients)
	fmt.Fprintf(&b, "| **Without price** | %d |\n", s.IngredientsWithoutPrice)
	fmt.Fprintf(&b, "| **With conversion** | %d |\n", s.IngredientsWithConversion)
	fmt.Fprintf(&b, "| **Issues** | %d (critical %d, high %d, medium %d, low %d) |\n",
		s.TotalIssues, s.CriticalIssues, s.HighIssues, s.MediumIssues, s.LowIssues)

	if len(r.TopPriority) > 0 {
		b.WriteString("\n### Top Priority\n\n")
		b.WriteString("| Severity | Ingredient | Issue | Suggested Fix |\n")
		b.WriteString("|----------|------------|-------|---------------|\n")
		for _, i := range r.TopPriority {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				i.Severity, cell(i.IngredientName), cell(i.Description), cell(i.SuggestedFix))
		}
	}
	return b.String()
}

// Alerts renders price-trend alerts.
func Alerts(r alerts.Report) string {
	var b strings.Builder
	b.WriteString("## Price Alerts\n\n")
	if len(r.Alerts) == 0 {
		msg := r.Message
		if msg == "" {
			msg = "No significant price changes."
		}
		b.WriteString(msg + "\n")
		return b.String()
	}
	fmt.Fprintf(&b, "%d alerts, estimated monthly impact %s.\n\n", r.Summary.TotalAlerts, Money(r.Summary.TotalImpact))
	b.WriteString("| Level | Product | Old | New | Change | Monthly Impact | Recipes |\n")
	b.WriteString("|-------|---------|-----|-----|--------|----------------|---------|\n")
	for _, a := range r.Alerts {
		c := a.Change
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			a.ImpactLevel, cell(c.Product), Money(c.OldPrice), Money(c.NewPrice), Pct(c.ChangePct),
			Money(a.MonthlyImpact), cell(strings.Join(a.AffectedRecipes, ", ")))
	}
	b.WriteString("\n")
	for _, a := range r.Alerts {
		if a.Recommendation != "" {
			fmt.Fprintf(&b, "- **%s**: %s\n", a.Change.Product, a.Recommendation)
		}
	}
	return b.String()
}

// Reconcile renders invoice matching results.
func Reconcile(r sentinel.ReconcileReport) string {
	var b strings.Builder
	s := r.Summary
	b.WriteString("## Invoice Reconciliation\n\n")
	fmt.Fprintf(&b, "%d items: %d matched, %d need clarification, %d unmatched, %d price changes.\n",
		s.TotalInvoiceItems, s.AutoMatched, s.NeedsClarification, s.NoMatch, s.PriceChangesDetected)

	if len(r.PriceChanges) > 0 {
		b.WriteString("\n### Price Changes\n\n")
		b.WriteString("| Ingredient | Product | Reference | Invoice | Change |\n")
		b.WriteString("|------------|---------|-----------|---------|--------|\n")
		for _, c := range r.PriceChanges {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				cell(c.IngredientName), cell(c.ProductName), Money(c.ReferencePrice), Money(c.ActualPrice), Pct(c.VariancePct))
		}
	}
	if len(r.NeedsClarification) > 0 {
		b.WriteString("\n### Needs Clarification\n\n")
		for _, m := range r.NeedsClarification {
			best := "?"
			if m.Best != nil {
				best = m.Best.Name
			}
			fmt.Fprintf(&b, "- %s → %s (%s, %.0f%%): %s\n",
				m.Item.ProductName, best, m.Confidence, m.Score*100, m.Suggestion)
		}
	}
	if len(r.NoMatch) > 0 {
		b.WriteString("\n### No Match\n\n")
		for _, it := range r.NoMatch {
			fmt.Fprintf(&b, "- %s (%s)\n", it.ProductName, Money(it.UnitPrice))
		}
	}
	return b.String()
}

// Conversions renders a conversion plan.
func Conversions(p conversions.Plan) string {
	var b strings.Builder
	s := p.Summary
	b.WriteString("## Pack Conversions\n\n")
	fmt.Fprintf(&b, "%d suggestions (%d auto-applicable, %d manual), %d configured, %d unmatched.\n",
		s.SuggestionsFound, s.AutoApplyable, s.NeedsManual, s.AlreadyConfigured, s.NoMatchFound)
	if len(p.Suggestions) == 0 {
		return b.String()
	}
	b.WriteString("\n| Ingredient | Invoice Item | Price | Conversion | Unit Cost | Confidence |\n")
	b.WriteString("|------------|--------------|-------|------------|-----------|------------|\n")
	for _, sg := range p.Suggestions {
		conv, unitCost := "manual", "-"
		if sg.Conversion != nil {
			conv = fmt.Sprintf("1 %s = %g", sg.Conversion.InvoiceUnit, sg.Conversion.Factor)
		}
		if sg.CalculatedUnitCost != nil {
			unitCost = Money(*sg.CalculatedUnitCost)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %.0f%% |\n",
			cell(sg.IngredientName), cell(sg.InvoiceItem), Money(sg.InvoicePrice), conv, unitCost, sg.Confidence*100)
	}
	return b.String()
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML converts Markdown into a standalone HTML page.
func HTML(title, markdown string) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}
	var out bytes.Buffer
	fmt.Fprintf(&out, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title>\n", html.EscapeString(title))
	out.WriteString("<style>body{font-family:sans-serif;max-width:960px;margin:2em auto}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>\n")
	out.WriteString("</head><body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body></html>\n")
	return out.Bytes(), nil
}

