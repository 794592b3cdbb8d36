// Package alerts detects supplier price trends across invoice history and
// turns the largest ones into actionable alerts.
package alerts

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

// Alert limits and bands.
const (
	MinChangePct         = 3.0
	ChangesLimit         = 20
	AlertsLimit          = 10
	AffectedRecipesLimit = 5

	// Usage estimate for the monthly impact figure.
	EstimatedWeeklyUsage = 10.0
	WeeksPerMonth        = 4.0
)

// Change is a price movement for one product between its oldest and
// newest invoice line.
type Change struct {
	Product   string  `json:"product"`
	Supplier  string  `json:"supplier,omitempty"`
	OldPrice  float64 `json:"old_price"`
	NewPrice  float64 `json:"new_price"`
	ChangePct float64 `json:"change_pct"`
	Unit      string  `json:"unit,omitempty"`
	OldDate   string  `json:"old_date,omitempty"`
	NewDate   string  `json:"new_date,omitempty"`
}

// Alert is a price change with its context and recommendation.
type Alert struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Change          Change           `json:"change"`
	ImpactLevel     serrors.Severity `json:"impact_level"`
	AffectedRecipes []string         `json:"affected_recipes"`
	MonthlyImpact   float64          `json:"monthly_impact"`
	Recommendation  string           `json:"recommendation"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Summary counts alerts by level.
type Summary struct {
	TotalAlerts   int     `json:"total_alerts"`
	CriticalCount int     `json:"critical_count"`
	HighCount     int     `json:"high_count"`
	MediumCount   int     `json:"medium_count"`
	LowCount      int     `json:"low_count"`
	TotalImpact   float64 `json:"total_impact"`
}

// Report is the alerts output.
type Report struct {
	Alerts  []Alert `json:"alerts"`
	Summary Summary `json:"summary"`
	Message string  `json:"message,omitempty"`
}

// Advisor writes a free-text recommendation for a price change.
type Advisor interface {
	AdviseChange(ctx context.Context, c Change, affected []string) (string, error)
}

// Engine builds price alerts
type Engine struct {
	advisor Advisor
	now     func() time.Time
}

// NewEngine creates a new alert engine with template recommendations
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// WithAdvisor sets the recommendation collaborator
func (e *Engine) WithAdvisor(a Advisor) *Engine {
	e.advisor = a
	return e
}

// WithClock sets the clock used to stamp alerts
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// DetectChanges groups lines by product name, compares the newest and
// oldest price of every product seen at least twice and keeps moves of
// 3% or more, largest first.
func DetectChanges(items []api.InvoiceLineItem) []Change {
	groups := make(map[string][]api.InvoiceLineItem)
	var order []string
	for _, it := range items {
		k := api.Key(it.ProductName)
		if k == "" || it.UnitPrice <= 0 {
			continue
		}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], it)
	}

	changes := []Change{}
	for _, k := range order {
		hist := groups[k]
		if len(hist) < 2 {
			continue
		}
		// Newest first; undated lines count as oldest.
		sort.SliceStable(hist, func(i, j int) bool {
			return hist[i].Date() > hist[j].Date()
		})
		newest, oldest := hist[0], hist[len(hist)-1]
		pct := (newest.UnitPrice - oldest.UnitPrice) / oldest.UnitPrice * 100
		if math.Abs(pct) < MinChangePct {
			continue
		}
		changes = append(changes, Change{
			Product:   newest.ProductName,
			Supplier:  firstNonEmpty(newest.Supplier, oldest.Supplier),
			OldPrice:  oldest.UnitPrice,
			NewPrice:  newest.UnitPrice,
			ChangePct: pct,
			Unit:      firstNonEmpty(newest.Unit, oldest.Unit),
			OldDate:   oldest.Date(),
			NewDate:   newest.Date(),
		})
	}

	sort.SliceStable(changes, func(i, j int) bool {
		return math.Abs(changes[i].ChangePct) > math.Abs(changes[j].ChangePct)
	})
	if len(changes) > ChangesLimit {
		changes = changes[:ChangesLimit]
	}
	return changes
}

// Build detects changes and turns the top ones into alerts. Advisor
// failures fall back to template text.
func (e *Engine) Build(ctx context.Context, items []api.InvoiceLineItem, recipes []api.Recipe, idx *api.IngredientIndex) Report {
	if len(items) == 0 {
		return Report{Alerts: []Alert{}, Message: "No invoice items found. Upload some invoices first."}
	}
	changes := DetectChanges(items)
	if len(changes) == 0 {
		return Report{Alerts: []Alert{}, Message: "No significant price changes detected in recent invoices."}
	}
	if len(changes) > AlertsLimit {
		changes = changes[:AlertsLimit]
	}

	r := Report{Alerts: make([]Alert, 0, len(changes))}
	for _, c := range changes {
		affected := AffectedRecipes(c.Product, recipes, idx)
		a := Alert{
			ID:              "alert-" + uuid.NewString(),
			Title:           Title(c),
			Change:          c,
			ImpactLevel:     ImpactLevel(c.ChangePct),
			AffectedRecipes: affected,
			MonthlyImpact:   (c.NewPrice - c.OldPrice) * EstimatedWeeklyUsage * WeeksPerMonth,
			Recommendation:  e.recommend(ctx, c, affected),
			CreatedAt:       e.now(),
		}
		r.Alerts = append(r.Alerts, a)

		r.Summary.TotalImpact += a.MonthlyImpact
		switch a.ImpactLevel {
		case serrors.SeverityCritical:
			r.Summary.CriticalCount++
		case serrors.SeverityHigh:
			r.Summary.HighCount++
		case serrors.SeverityMedium:
			r.Summary.MediumCount++
		default:
			r.Summary.LowCount++
		}
	}
	r.Summary.TotalAlerts = len(r.Alerts)
	return r
}

func (e *Engine) recommend(ctx context.Context, c Change, affected []string) string {
	if e.advisor != nil {
		if text, err := e.advisor.AdviseChange(ctx, c, affected); err == nil && strings.TrimSpace(text) != "" {
			return text
		}
	}
	return Fallback(c)
}

// ImpactLevel grades a change by magnitude.
func ImpactLevel(changePct float64) serrors.Severity {
	switch v := math.Abs(changePct); {
	case v >= 20:
		return serrors.SeverityCritical
	case v >= 10:
		return serrors.SeverityHigh
	case v >= 5:
		return serrors.SeverityMedium
	default:
		return serrors.SeverityLow
	}
}

// Title is the one-line alert headline.
func Title(c Change) string {
	dir := "increased"
	if c.ChangePct < 0 {
		dir = "decreased"
	}
	return fmt.Sprintf("%s price %s %.0f%%", c.Product, dir, math.Abs(c.ChangePct))
}

// Fallback is the template recommendation used without an advisor.
func Fallback(c Change) string {
	switch {
	case c.ChangePct > 15:
		return fmt.Sprintf("Significant %.0f%% price increase detected. Consider: 1) Negotiate with supplier for better rates, 2) Source from alternative suppliers, 3) Review menu pricing for affected dishes.", c.ChangePct)
	case c.ChangePct > 0:
		return fmt.Sprintf("Price increased %.0f%%. Monitor this ingredient and consider adjusting portion sizes or finding alternative suppliers if trend continues.", c.ChangePct)
	case c.ChangePct < -10:
		return fmt.Sprintf("Price decreased %.0f%%. Good opportunity to stock up or improve margins on dishes using this ingredient.", math.Abs(c.ChangePct))
	default:
		return fmt.Sprintf("Minor price decrease of %.0f%%. No immediate action needed.", math.Abs(c.ChangePct))
	}
}

// AffectedRecipes lists recipes with a line whose ingredient name contains
// the first word of the product, in recipe order, at most five.
func AffectedRecipes(product string, recipes []api.Recipe, idx *api.IngredientIndex) []string {
	out := []string{}
	words := strings.Fields(strings.ToLower(product))
	if len(words) == 0 {
		return out
	}
	first := words[0]

	seen := make(map[string]bool)
	for _, r := range recipes {
		if seen[r.Name] {
			continue
		}
		for _, line := range r.Lines {
			name := line.IngredientName
			if name == "" && idx != nil {
				if ing, ok := idx.Resolve(line.IngredientID, ""); ok {
					name = ing.Name
				}
			}
			if strings.Contains(strings.ToLower(name), first) {
				seen[r.Name] = true
				out = append(out, r.Name)
				break
			}
		}
		if len(out) == AffectedRecipesLimit {
			break
		}
	}
	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
