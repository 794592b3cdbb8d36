// Package audit provides the Anomaly Detector.
// Flags ingredient records whose cost, per-unit price or invoice variance
// falls outside configured sanity thresholds.
package audit

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pg-png/wwithai-foodcost-sentinel/decision/packsize"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/variance"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/units"
)

// Thresholds are the sanity limits applied to every ingredient.
type Thresholds struct {
	MaxVariancePct        float64 `yaml:"max_variance_pct" json:"max_variance_pct"`
	CriticalVariancePct   float64 `yaml:"critical_variance_pct" json:"critical_variance_pct"`
	MinPrice              float64 `yaml:"min_price" json:"min_price"`
	MaxPricePerGram       float64 `yaml:"max_price_per_gram" json:"max_price_per_gram"`
	MaxPricePerKg         float64 `yaml:"max_price_per_kg" json:"max_price_per_kg"`
	ConversionVariancePct float64 `yaml:"conversion_variance_pct" json:"conversion_variance_pct"`
	ConversionHighPct     float64 `yaml:"conversion_high_pct" json:"conversion_high_pct"`
}

// DefaultThresholds returns the stock limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxVariancePct:        500,
		CriticalVariancePct:   1000,
		MinPrice:              0.001,
		MaxPricePerGram:       10,
		MaxPricePerKg:         500,
		ConversionVariancePct: 20,
		ConversionHighPct:     50,
	}
}

// Range is the plausible unit cost band for a category keyword.
type Range struct {
	Keyword string  `yaml:"keyword" json:"keyword"`
	Min     float64 `yaml:"min" json:"min"`
	Max     float64 `yaml:"max" json:"max"`
	Unit    string  `yaml:"unit" json:"unit"`
}

// Range checks tolerate an order of magnitude either side of the band.
const rangeSlack = 10.0

// DefaultRanges returns the stock category bands.
func DefaultRanges() []Range {
	return []Range{
		{Keyword: "herbs", Min: 0.01, Max: 0.50, Unit: "g"},
		{Keyword: "vegetables", Min: 1, Max: 15, Unit: "kg"},
		{Keyword: "meat", Min: 8, Max: 50, Unit: "kg"},
		{Keyword: "seafood", Min: 15, Max: 80, Unit: "kg"},
		{Keyword: "dairy", Min: 3, Max: 20, Unit: "L"},
		{Keyword: "oil", Min: 3, Max: 15, Unit: "L"},
		{Keyword: "sauce", Min: 5, Max: 30, Unit: "L"},
		{Keyword: "noodles", Min: 2, Max: 10, Unit: "kg"},
		{Keyword: "rice", Min: 1, Max: 5, Unit: "kg"},
		{Keyword: "tofu", Min: 3, Max: 12, Unit: "kg"},
		{Keyword: "eggs", Min: 0.15, Max: 0.50, Unit: "whole unit"},
	}
}

// NeedsConversionUnits are invoice units that never match a costing unit
// without a pack factor.
var NeedsConversionUnits = []string{"box", "case", "bunch", "bag", "each", "pack"}

// Engine is the Anomaly Detector
type Engine struct {
	thresholds Thresholds
	ranges     []Range
	parser     *packsize.Parser
}

// NewEngine creates a new detector with the default limits
func NewEngine() *Engine {
	return &Engine{
		thresholds: DefaultThresholds(),
		ranges:     DefaultRanges(),
		parser:     packsize.NewParser(),
	}
}

// WithThresholds replaces the sanity limits
func (e *Engine) WithThresholds(t Thresholds) *Engine {
	e.thresholds = t
	return e
}

// WithRanges replaces the category bands
func (e *Engine) WithRanges(r []Range) *Engine {
	e.ranges = r
	return e
}

// WithParser replaces the pack-size parser
func (e *Engine) WithParser(p *packsize.Parser) *Engine {
	e.parser = p
	return e
}

// Thresholds returns the configured limits.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Detect runs every check over the ingredients. latest maps lower-cased
// product names to their most recent invoice line. Issues are ordered by
// severity, most urgent first, keeping input order within a tier.
func (e *Engine) Detect(ingredients []api.Ingredient, latest map[string]api.InvoiceLineItem) []api.AuditIssue {
	issues := []api.AuditIssue{}
	seen := make(map[string]api.Ingredient, len(ingredients))

	for _, ing := range ingredients {
		key := api.Key(ing.Name)
		if first, ok := seen[key]; ok {
			issues = append(issues, api.AuditIssue{
				ID:             "dup-" + ing.ID,
				IngredientID:   ing.ID,
				IngredientName: ing.Name,
				Kind:           api.IssueDuplicate,
				Severity:       serrors.SeverityMedium,
				Description:    fmt.Sprintf("Possible duplicate of %q", first.Name),
				CurrentValue:   "ID: " + ing.ID,
				SuggestedFix:   fmt.Sprintf("Merge with %s (ID: %s)", first.Name, first.ID),
			})
		} else {
			seen[key] = ing
		}

		if ing.UnitCost <= 0 {
			issues = append(issues, api.AuditIssue{
				ID:             "missing-" + ing.ID,
				IngredientID:   ing.ID,
				IngredientName: ing.Name,
				Kind:           api.IssueMissingPrice,
				Severity:       serrors.SeverityHigh,
				Description:    "No unit cost defined",
				CurrentValue:   "$0",
				SuggestedFix:   "Add unit cost from supplier invoice",
			})
			continue
		}

		issues = append(issues, e.checkUnitCost(ing)...)
		if item, ok := latest[key]; ok {
			if issue, ok := e.checkInvoice(ing, item); ok {
				issues = append(issues, issue)
			}
		}
		issues = append(issues, e.checkRange(ing)...)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity.Rank() < issues[j].Severity.Rank()
	})
	return issues
}

func (e *Engine) checkUnitCost(ing api.Ingredient) []api.AuditIssue {
	var out []api.AuditIssue
	cost := ing.UnitCost

	if cost < e.thresholds.MinPrice {
		out = append(out, api.AuditIssue{
			ID:             "low-" + ing.ID,
			IngredientID:   ing.ID,
			IngredientName: ing.Name,
			Kind:           api.IssueSuspiciousCost,
			Severity:       serrors.SeverityCritical,
			Description:    fmt.Sprintf("Unit cost $%.6f/%s is suspiciously low", cost, ing.PerUnit),
			CurrentValue:   fmt.Sprintf("$%.6f/%s", cost, ing.PerUnit),
			SuggestedFix:   "Check if unit is correct (g vs kg, mL vs L)",
		})
	}

	switch units.Normalize(ing.PerUnit) {
	case units.Gram:
		if cost > e.thresholds.MaxPricePerGram {
			out = append(out, api.AuditIssue{
				ID:             "high-g-" + ing.ID,
				IngredientID:   ing.ID,
				IngredientName: ing.Name,
				Kind:           api.IssueSuspiciousCost,
				Severity:       serrors.SeverityHigh,
				Description:    fmt.Sprintf("$%.2f/g is very high - check if should be per kg", cost),
				CurrentValue:   fmt.Sprintf("$%.2f/g", cost),
				SuggestedFix:   fmt.Sprintf("Consider changing to $%.4f/g (if price is per kg)", cost/1000),
			})
		}
	case units.Kilogram:
		if cost > e.thresholds.MaxPricePerKg {
			out = append(out, api.AuditIssue{
				ID:             "high-kg-" + ing.ID,
				IngredientID:   ing.ID,
				IngredientName: ing.Name,
				Kind:           api.IssueSuspiciousCost,
				Severity:       serrors.SeverityMedium,
				Description:    fmt.Sprintf("$%.2f/kg is unusually high", cost),
				CurrentValue:   fmt.Sprintf("$%.2f/kg", cost),
				SuggestedFix:   "Verify with recent invoices",
			})
		}
	}
	return out
}

// checkInvoice compares the reference cost with the latest invoice line.
// A stored factor wins; a pack unit goes through the parser; anything
// else is compared as is, after a plain unit conversion when one exists.
func (e *Engine) checkInvoice(ing api.Ingredient, item api.InvoiceLineItem) (api.AuditIssue, bool) {
	issue := api.AuditIssue{
		IngredientID:   ing.ID,
		IngredientName: ing.Name,
		ReferencePrice: ptr(ing.UnitCost),
	}

	if ing.HasConversion() {
		converted := item.UnitPrice / ing.Conversion.Factor
		v := variance.Pct(ing.UnitCost, converted)
		if math.Abs(v) <= e.thresholds.ConversionVariancePct {
			return api.AuditIssue{}, false
		}
		issue.ID = "conversion-variance-" + ing.ID
		issue.Kind = api.IssueConversionMismatch
		issue.Severity = serrors.SeverityMedium
		if math.Abs(v) > e.thresholds.ConversionHighPct {
			issue.Severity = serrors.SeverityHigh
		}
		issue.Description = fmt.Sprintf("%s%% variance after applying conversion (%s %s/%s)",
			signed(v, 1), num(ing.Conversion.Factor), ing.PerUnit, ing.Conversion.InvoiceUnit)
		issue.CurrentValue = fmt.Sprintf("Reference: $%.4f/%s, Converted: $%.4f/%s", ing.UnitCost, ing.PerUnit, converted, ing.PerUnit)
		issue.SuggestedFix = fmt.Sprintf("Verify conversion factor or update unit cost to $%.4f/%s", converted, ing.PerUnit)
		issue.InvoicePrice = ptr(converted)
		issue.VariancePct = ptr(v)
		return issue, true
	}

	invUnit := strings.ToLower(strings.TrimSpace(item.Unit))
	refUnit := strings.ToLower(strings.TrimSpace(ing.PerUnit))
	if invUnit != refUnit && NeedsConversion(invUnit) {
		current := fmt.Sprintf("Invoice: $%.2f/%s | Reference: $%.4f/%s", item.UnitPrice, item.Unit, ing.UnitCost, ing.PerUnit)
		issue.CurrentValue = current
		issue.InvoicePrice = ptr(item.UnitPrice)

		conv, ok := e.parser.ParseFor(item.ProductName, item.Unit)
		factor, inCost := conv.In(ing.PerUnit)
		if ok && inCost && factor > 0 {
			calculated := item.UnitPrice / factor
			issue.ID = "needs-conversion-" + ing.ID
			issue.Kind = api.IssueNeedsConversion
			issue.Severity = serrors.SeverityInfo
			issue.Description = fmt.Sprintf("Unit mismatch detected: invoice is per %s, reference is per %s. Auto-detected conversion available.", item.Unit, ing.PerUnit)
			issue.SuggestedFix = fmt.Sprintf("Set Conversion Factor = %s (%s) -> $%.4f/%s", num(factor), conv.Notes, calculated, ing.PerUnit)
			issue.VariancePct = ptr(variance.Pct(ing.UnitCost, calculated))
			issue.SuggestedConversion = &api.PackConversion{
				InvoiceUnit: item.Unit,
				Factor:      factor,
				Notes:       conv.Notes,
			}
			return issue, true
		}

		issue.ID = "variance-" + ing.ID
		issue.Kind = api.IssueUnitMismatch
		issue.Severity = serrors.SeverityHigh
		issue.Description = fmt.Sprintf("Unit mismatch: invoice is per %s, reference is per %s. Manual conversion needed.", item.Unit, ing.PerUnit)
		issue.SuggestedFix = fmt.Sprintf("Add Invoice Unit = %q and Conversion Factor (%s per %s)", item.Unit, ing.PerUnit, item.Unit)
		issue.VariancePct = ptr(variance.Pct(ing.UnitCost, item.UnitPrice))
		return issue, true
	}

	price := item.UnitPrice
	if invUnit != "" && refUnit != "" && units.Normalize(invUnit) != units.Normalize(refUnit) {
		if per, ok := units.ConvertChecked(1, invUnit, refUnit); ok && per > 0 {
			price = item.UnitPrice / per
		}
	}
	v := variance.Pct(ing.UnitCost, price)
	if math.Abs(v) <= e.thresholds.MaxVariancePct {
		return api.AuditIssue{}, false
	}
	issue.ID = "variance-" + ing.ID
	issue.Kind = api.IssueVarianceTooHigh
	issue.Severity = serrors.SeverityHigh
	if math.Abs(v) > e.thresholds.CriticalVariancePct {
		issue.Severity = serrors.SeverityCritical
	}
	issue.Description = fmt.Sprintf("%s%% variance between reference and invoice price", signed(v, 0))
	issue.CurrentValue = fmt.Sprintf("Reference: $%.4f/%s", ing.UnitCost, ing.PerUnit)
	issue.SuggestedFix = fmt.Sprintf("Update to invoice price: $%.4f/%s", item.UnitPrice, item.Unit)
	issue.InvoicePrice = ptr(price)
	issue.VariancePct = ptr(v)
	return issue, true
}

func (e *Engine) checkRange(ing api.Ingredient) []api.AuditIssue {
	category := strings.ToLower(ing.CategoryName())
	if category == "" {
		return nil
	}
	var out []api.AuditIssue
	for _, r := range e.ranges {
		if !strings.Contains(category, r.Keyword) || units.Normalize(ing.PerUnit) != units.Normalize(r.Unit) {
			continue
		}
		if ing.UnitCost >= r.Min/rangeSlack && ing.UnitCost <= r.Max*rangeSlack {
			continue
		}
		out = append(out, api.AuditIssue{
			ID:             "range-" + ing.ID,
			IngredientID:   ing.ID,
			IngredientName: ing.Name,
			Kind:           api.IssuePriceAnomaly,
			Severity:       serrors.SeverityMedium,
			Description:    fmt.Sprintf("Price $%.2f/%s outside expected range for %s ($%s-$%s)", ing.UnitCost, ing.PerUnit, r.Keyword, num(r.Min), num(r.Max)),
			CurrentValue:   fmt.Sprintf("$%.2f/%s", ing.UnitCost, ing.PerUnit),
			SuggestedFix:   fmt.Sprintf("Expected range: $%s-$%s/%s", num(r.Min), num(r.Max), r.Unit),
		})
	}
	return out
}

// NeedsConversion reports whether an invoice unit is a pack unit.
func NeedsConversion(unit string) bool {
	u := strings.ToLower(strings.TrimSpace(unit))
	for _, n := range NeedsConversionUnits {
		if u == n {
			return true
		}
	}
	return false
}

func ptr(v float64) *float64 { return &v }

func signed(v float64, prec int) string {
	s := fmt.Sprintf("%.*f", prec, v)
	if v > 0 {
		return "+" + s
	}
	return s
}

func num(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
