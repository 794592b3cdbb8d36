package alerts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

func line(name string, price float64, date string) api.InvoiceLineItem {
	var d *string
	if date != "" {
		d = &date
	}
	return api.InvoiceLineItem{ProductName: name, UnitPrice: price, Unit: "kg", InvoiceDate: d, Supplier: "Sysco"}
}

func TestDetectChanges(t *testing.T) {
	items := []api.InvoiceLineItem{
		line("Beef Brisket", 10, "2024-01-01"),
		line("beef brisket ", 13, "2024-03-01"),
		line("Beef Brisket", 11, "2024-02-01"),
		line("Rice", 2, "2024-01-01"),
		line("Rice", 2.04, "2024-02-01"), // +2%, below band
		line("Lime", 50, "2024-01-05"),
		line("Lime", 40, "2024-02-05"),
		line("Salt", 1, "2024-01-01"), // single observation
		line("Ghost", 0, "2024-01-01"),
		line("Ghost", 5, "2024-02-01"),
	}

	got := DetectChanges(items)
	if len(got) != 2 {
		t.Fatalf("len = %d; want 2: %+v", len(got), got)
	}
	if got[0].Product != "beef brisket " || got[0].OldPrice != 10 || got[0].NewPrice != 13 {
		t.Errorf("first change = %+v", got[0])
	}
	if math.Abs(got[0].ChangePct-30) > 1e-9 || got[0].OldDate != "2024-01-01" || got[0].NewDate != "2024-03-01" {
		t.Errorf("first change = %+v", got[0])
	}
	if got[1].Product != "Lime" || math.Abs(got[1].ChangePct+20) > 1e-9 {
		t.Errorf("second change = %+v", got[1])
	}
}

func TestDetectChangesLimit(t *testing.T) {
	var items []api.InvoiceLineItem
	for i := 0; i < 25; i++ {
		name := fmt.Sprintf("item-%02d", i)
		items = append(items, line(name, 10, "2024-01-01"), line(name, 11+float64(i), "2024-02-01"))
	}
	got := DetectChanges(items)
	if len(got) != ChangesLimit {
		t.Fatalf("len = %d; want %d", len(got), ChangesLimit)
	}
	if got[0].Product != "item-24" {
		t.Errorf("first = %q; want item-24", got[0].Product)
	}
}

func TestImpactLevel(t *testing.T) {
	tests := []struct {
		pct  float64
		want serrors.Severity
	}{
		{20, serrors.SeverityCritical},
		{-25, serrors.SeverityCritical},
		{19.9, serrors.SeverityHigh},
		{10, serrors.SeverityHigh},
		{-5, serrors.SeverityMedium},
		{4.9, serrors.SeverityLow},
	}
	for _, tt := range tests {
		if got := ImpactLevel(tt.pct); got != tt.want {
			t.Errorf("ImpactLevel(%v) = %s; want %s", tt.pct, got, tt.want)
		}
	}
}

func TestFallback(t *testing.T) {
	tests := []struct {
		pct    float64
		prefix string
	}{
		{16, "Significant 16%"},
		{15, "Price increased 15%"},
		{-11, "Price decreased 11%"},
		{-10, "Minor price decrease of 10%"},
	}
	for _, tt := range tests {
		if got := Fallback(Change{ChangePct: tt.pct}); !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("Fallback(%v) = %q; want prefix %q", tt.pct, got, tt.prefix)
		}
	}
}

func TestAffectedRecipes(t *testing.T) {
	idx := api.NewIngredientIndex([]api.Ingredient{{ID: "b1", Name: "Beef Shank"}})
	recipes := []api.Recipe{
		{Name: "Pho Bo", Lines: []api.RecipeLine{{IngredientID: "b1"}}},
		{Name: "Bun Bo", Lines: []api.RecipeLine{{IngredientName: "ground beef"}, {IngredientName: "beef broth"}}},
		{Name: "Tofu Bowl", Lines: []api.RecipeLine{{IngredientName: "tofu"}}},
	}
	got := AffectedRecipes("BEEF Brisket 5kg", recipes, idx)
	if strings.Join(got, ",") != "Pho Bo,Bun Bo" {
		t.Errorf("AffectedRecipes = %v", got)
	}

	var many []api.Recipe
	for i := 0; i < 8; i++ {
		many = append(many, api.Recipe{Name: fmt.Sprintf("r%d", i), Lines: []api.RecipeLine{{IngredientName: "beef"}}})
	}
	if got := AffectedRecipes("beef", many, nil); len(got) != AffectedRecipesLimit {
		t.Errorf("len = %d; want %d", len(got), AffectedRecipesLimit)
	}
	if got := AffectedRecipes("  ", many, nil); len(got) != 0 {
		t.Errorf("blank product should affect nothing, got %v", got)
	}
}

type stubAdvisor struct {
	text string
	err  error
}

func (s stubAdvisor) AdviseChange(context.Context, Change, []string) (string, error) {
	return s.text, s.err
}

func TestBuild(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	items := []api.InvoiceLineItem{
		line("Beef", 10, "2024-01-01"),
		line("Beef", 12.5, "2024-02-01"),
		line("Lime", 10, "2024-01-01"),
		line("Lime", 9.6, "2024-02-01"),
	}
	recipes := []api.Recipe{{Name: "Pho", Lines: []api.RecipeLine{{IngredientName: "beef"}}}}

	r := NewEngine().WithClock(func() time.Time { return at }).WithAdvisor(stubAdvisor{text: "Call the supplier."}).
		Build(context.Background(), items, recipes, nil)

	if r.Summary.TotalAlerts != 2 || r.Summary.CriticalCount != 1 || r.Summary.LowCount != 1 {
		t.Fatalf("summary = %+v", r.Summary)
	}
	beef := r.Alerts[0]
	if beef.Title != "Beef price increased 25%" || beef.Recommendation != "Call the supplier." {
		t.Errorf("beef alert = %+v", beef)
	}
	if math.Abs(beef.MonthlyImpact-100) > 1e-9 || !beef.CreatedAt.Equal(at) || !strings.HasPrefix(beef.ID, "alert-") {
		t.Errorf("beef alert = %+v", beef)
	}
	if len(beef.AffectedRecipes) != 1 || beef.AffectedRecipes[0] != "Pho" {
		t.Errorf("affected = %v", beef.AffectedRecipes)
	}
	if math.Abs(r.Summary.TotalImpact-(100-16)) > 1e-9 {
		t.Errorf("TotalImpact = %v; want 84", r.Summary.TotalImpact)
	}
	if r.Alerts[0].ID == r.Alerts[1].ID {
		t.Error("alert ids should be unique")
	}
}

func TestBuildFallsBackOnAdvisorError(t *testing.T) {
	items := []api.InvoiceLineItem{line("Beef", 10, "2024-01-01"), line("Beef", 20, "2024-02-01")}
	r := NewEngine().WithAdvisor(stubAdvisor{err: errors.New("quota")}).Build(context.Background(), items, nil, nil)
	if len(r.Alerts) != 1 || !strings.HasPrefix(r.Alerts[0].Recommendation, "Significant 100%") {
		t.Errorf("alerts = %+v", r.Alerts)
	}
}

func TestBuildEmpty(t *testing.T) {
	e := NewEngine()
	if r := e.Build(context.Background(), nil, nil, nil); r.Message == "" || len(r.Alerts) != 0 || r.Alerts == nil {
		t.Errorf("empty report = %+v", r)
	}
	flat := []api.InvoiceLineItem{line("Beef", 10, "2024-01-01"), line("Beef", 10, "2024-02-01")}
	if r := e.Build(context.Background(), flat, nil, nil); !strings.HasPrefix(r.Message, "No significant") {
		t.Errorf("flat report = %+v", r)
	}
}
