package audit

import (
	"math"
	"strings"
	"testing"

	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

func str(s string) *string { return &s }

func byID(issues []api.AuditIssue) map[string]api.AuditIssue {
	m := make(map[string]api.AuditIssue, len(issues))
	for _, is := range issues {
		m[is.ID] = is
	}
	return m
}

func TestDetectRecordChecks(t *testing.T) {
	ingredients := []api.Ingredient{
		{ID: "1", Name: "Rice", UnitCost: 2, PerUnit: "kg"},
		{ID: "2", Name: "RICE", UnitCost: 2, PerUnit: "kg"},
		{ID: "3", Name: "Saffron", UnitCost: 15, PerUnit: "g"},
		{ID: "4", Name: "Wagyu", UnitCost: 600, PerUnit: "kg"},
		{ID: "5", Name: "Salt", UnitCost: 0.0005, PerUnit: "g"},
		{ID: "6", Name: "Pepper", UnitCost: 0, PerUnit: "kg", Category: str("vegetables")},
		{ID: "7", Name: "Carrot", UnitCost: 200, PerUnit: "kg", Category: str("Fresh Vegetables")},
		{ID: "8", Name: "Onion", UnitCost: 2, PerUnit: "kg", Category: str("Vegetables")},
	}

	issues := NewEngine().Detect(ingredients, nil)
	got := byID(issues)

	tests := []struct {
		id       string
		kind     api.IssueKind
		severity serrors.Severity
	}{
		{"dup-2", api.IssueDuplicate, serrors.SeverityMedium},
		{"high-g-3", api.IssueSuspiciousCost, serrors.SeverityHigh},
		{"high-kg-4", api.IssueSuspiciousCost, serrors.SeverityMedium},
		{"low-5", api.IssueSuspiciousCost, serrors.SeverityCritical},
		{"missing-6", api.IssueMissingPrice, serrors.SeverityHigh},
		{"range-7", api.IssuePriceAnomaly, serrors.SeverityMedium},
	}
	for _, tt := range tests {
		is, ok := got[tt.id]
		if !ok {
			t.Errorf("missing issue %s", tt.id)
			continue
		}
		if is.Kind != tt.kind || is.Severity != tt.severity {
			t.Errorf("%s = %s/%s; want %s/%s", tt.id, is.Kind, is.Severity, tt.kind, tt.severity)
		}
	}
	if len(issues) != len(tests) {
		t.Errorf("len(issues) = %d; want %d: %+v", len(issues), len(tests), issues)
	}
	if _, ok := got["range-6"]; ok {
		t.Error("missing price should short-circuit the range check")
	}
	if !strings.Contains(got["dup-2"].SuggestedFix, "ID: 1") {
		t.Errorf("duplicate fix = %q", got["dup-2"].SuggestedFix)
	}
}

func TestDetectInvoiceChecks(t *testing.T) {
	conv := func(factor float64) *api.PackConversion {
		return &api.PackConversion{InvoiceUnit: "box", Factor: factor}
	}
	ingredients := []api.Ingredient{
		{ID: "c1", Name: "Pork", UnitCost: 5, PerUnit: "kg", Conversion: conv(12)},
		{ID: "c2", Name: "Beef", UnitCost: 5, PerUnit: "kg", Conversion: conv(12)},
		{ID: "c3", Name: "Lamb", UnitCost: 5, PerUnit: "kg", Conversion: conv(12)},
		{ID: "n1", Name: "Poulet 12X1KG", UnitCost: 5.5, PerUnit: "kg"},
		{ID: "n2", Name: "Mystery Sauce", UnitCost: 3, PerUnit: "L"},
		{ID: "v1", Name: "Tofu", UnitCost: 1, PerUnit: "kg"},
		{ID: "v2", Name: "Tempeh", UnitCost: 1, PerUnit: "kg"},
		{ID: "v3", Name: "Butter", UnitCost: 10, PerUnit: "kg"},
	}
	latest := map[string]api.InvoiceLineItem{
		"pork":          {ProductName: "Pork", UnitPrice: 66, Unit: "box"},
		"beef":          {ProductName: "Beef", UnitPrice: 90, Unit: "box"},
		"lamb":          {ProductName: "Lamb", UnitPrice: 96, Unit: "box"},
		"poulet 12x1kg": {ProductName: "Poulet 12X1KG", UnitPrice: 60, Unit: "box"},
		"mystery sauce": {ProductName: "Mystery Sauce", UnitPrice: 40, Unit: "case"},
		"tofu":          {ProductName: "Tofu", UnitPrice: 7, Unit: "kg"},
		"tempeh":        {ProductName: "Tempeh", UnitPrice: 12, Unit: "kg"},
		"butter":        {ProductName: "Butter", UnitPrice: 4.5, Unit: "lb"},
	}

	got := byID(NewEngine().Detect(ingredients, latest))

	if _, ok := got["conversion-variance-c1"]; ok {
		t.Error("10% after conversion is within tolerance")
	}
	if is := got["conversion-variance-c2"]; is.Severity != serrors.SeverityMedium || is.Kind != api.IssueConversionMismatch {
		t.Errorf("c2 = %+v; want medium conversion_mismatch", is)
	}
	if is := got["conversion-variance-c3"]; is.Severity != serrors.SeverityHigh {
		t.Errorf("c3 = %+v; want high", is)
	}

	nc, ok := got["needs-conversion-n1"]
	if !ok {
		t.Fatalf("expected needs_conversion for n1, got %+v", got)
	}
	if nc.Severity != serrors.SeverityInfo || nc.SuggestedConversion == nil {
		t.Fatalf("n1 = %+v", nc)
	}
	if math.Abs(nc.SuggestedConversion.Factor-12) > 1e-9 || nc.SuggestedConversion.InvoiceUnit != "box" {
		t.Errorf("suggested conversion = %+v; want 12 kg per box", nc.SuggestedConversion)
	}
	if nc.VariancePct == nil || math.Abs(*nc.VariancePct-(-9.0909)) > 0.01 {
		t.Errorf("n1 variance = %v; want -9.09", nc.VariancePct)
	}

	if is := got["variance-n2"]; is.Kind != api.IssueUnitMismatch || is.Severity != serrors.SeverityHigh {
		t.Errorf("n2 = %+v; want high unit_mismatch", is)
	}
	if is := got["variance-v1"]; is.Kind != api.IssueVarianceTooHigh || is.Severity != serrors.SeverityHigh {
		t.Errorf("v1 = %+v; want high variance_too_high", is)
	}
	if is := got["variance-v2"]; is.Severity != serrors.SeverityCritical {
		t.Errorf("v2 = %+v; want critical", is)
	}
	if _, ok := got["variance-v3"]; ok {
		t.Error("per-lb invoice price should be converted to per-kg before comparing")
	}
}

func TestDetectSeverityOrderingIsStable(t *testing.T) {
	ingredients := []api.Ingredient{
		{ID: "a", Name: "A", UnitCost: 0},                    // high
		{ID: "b", Name: "B", UnitCost: 0.0001, PerUnit: "g"}, // critical
		{ID: "c", Name: "C", UnitCost: 0},                    // high
		{ID: "d", Name: "a", UnitCost: 1, PerUnit: "kg"},     // medium
		{ID: "e", Name: "E", UnitCost: 0.0002, PerUnit: "g"}, // critical
	}
	issues := NewEngine().Detect(ingredients, nil)

	var ids []string
	for _, is := range issues {
		ids = append(ids, is.ID)
	}
	want := "low-b low-e missing-a missing-c dup-d"
	if strings.Join(ids, " ") != want {
		t.Errorf("order = %v; want %s", ids, want)
	}
	for i := 1; i < len(issues); i++ {
		if issues[i-1].Severity.Rank() > issues[i].Severity.Rank() {
			t.Errorf("issues not sorted by severity at %d", i)
		}
	}
}

func TestCustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.MaxPricePerKg = 50
	e := NewEngine().WithThresholds(th).WithRanges(nil)

	issues := e.Detect([]api.Ingredient{{ID: "x", Name: "Veal", UnitCost: 60, PerUnit: "kg", Category: str("meat")}}, nil)
	if len(issues) != 1 || issues[0].ID != "high-kg-x" {
		t.Errorf("issues = %+v; want only high-kg-x", issues)
	}
}

func TestNeedsConversion(t *testing.T) {
	for _, u := range []string{"box", "Case", " bunch ", "BAG", "each", "pack"} {
		if !NeedsConversion(u) {
			t.Errorf("NeedsConversion(%q) = false", u)
		}
	}
	for _, u := range []string{"kg", "", "boxes"} {
		if NeedsConversion(u) {
			t.Errorf("NeedsConversion(%q) = true", u)
		}
	}
}

func TestBuildReport(t *testing.T) {
	ingredients := []api.Ingredient{
		{ID: "1", Name: "Rice", UnitCost: 2, PerUnit: "kg"},
		{ID: "2", Name: "Salt", UnitCost: 0.0001, PerUnit: "g"},
		{ID: "3", Name: "Mint", UnitCost: 0},
		{ID: "4", Name: "Pork", UnitCost: 5, PerUnit: "kg", Conversion: &api.PackConversion{InvoiceUnit: "box", Factor: 10}},
	}
	r := NewEngine().Run(ingredients, map[string]api.InvoiceLineItem{})

	if r.Status != StatusFail {
		t.Errorf("Status = %s; want fail", r.Status)
	}
	s := r.Summary
	if s.TotalIngredients != 4 || s.IngredientsWithPrice != 3 || s.IngredientsWithoutPrice != 1 || s.IngredientsWithConversion != 1 {
		t.Errorf("unexpected ingredient counts: %+v", s)
	}
	if s.TotalIssues != 2 || s.CriticalIssues != 1 || s.HighIssues != 1 {
		t.Errorf("unexpected issue counts: %+v", s)
	}
	if s.IssuesByKind[api.IssueMissingPrice] != 1 || s.IssuesByKind[api.IssueDuplicate] != 0 {
		t.Errorf("IssuesByKind = %v", s.IssuesByKind)
	}
	if len(s.IssuesByKind) != len(AllKinds) {
		t.Errorf("every kind should be reported, got %d", len(s.IssuesByKind))
	}

	clean := BuildReport(ingredients[:1], 0, nil)
	if clean.Status != StatusPass || len(clean.TopPriority) != 0 {
		t.Errorf("clean report = %+v", clean)
	}

	var many []api.AuditIssue
	for i := 0; i < 12; i++ {
		many = append(many, api.AuditIssue{Kind: api.IssueDuplicate, Severity: serrors.SeverityMedium})
	}
	if r := BuildReport(nil, 0, many); len(r.TopPriority) != TopPriorityLimit || r.Status != StatusWarn {
		t.Errorf("TopPriority = %d, Status = %s", len(r.TopPriority), r.Status)
	}
}
