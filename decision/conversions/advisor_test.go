package conversions

import (
	"math"
	"testing"

	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

func fixture() ([]api.Ingredient, map[string]api.InvoiceLineItem) {
	ingredients := []api.Ingredient{
		{ID: "i1", Name: "Chicken Breast", UnitCost: 5.5, PerUnit: "kg"},
		{ID: "i2", Name: "Mint", UnitCost: 0.2, PerUnit: "g"},
		{ID: "i3", Name: "Pork Belly", UnitCost: 9, PerUnit: "kg", Conversion: &api.PackConversion{InvoiceUnit: "box", Factor: 10}},
		{ID: "i4", Name: "Salt", UnitCost: 1, PerUnit: "kg"},
	}
	latest := map[string]api.InvoiceLineItem{
		"chicken breast 12x1kg": {ProductName: "Chicken Breast 12X1KG", UnitPrice: 60, Unit: "box"},
		"fresh mint":            {ProductName: "Fresh Mint", UnitPrice: 6, Unit: "bunch"},
		"pork belly":            {ProductName: "Pork Belly", UnitPrice: 100, Unit: "box"},
		"salt":                  {ProductName: "Salt", UnitPrice: 2, Unit: "kg"},
		"xylophone widget":      {ProductName: "Xylophone Widget", UnitPrice: 3, Unit: "each"},
	}
	return ingredients, latest
}

func TestBestMatch(t *testing.T) {
	a := NewAdvisor(nil)
	ingredients := []api.Ingredient{{ID: "1", Name: "Chicken"}, {ID: "2", Name: "Poulet"}, {ID: "3", Name: "Tomatoes"}}

	tests := []struct {
		product string
		wantID  string
		minConf float64
	}{
		{"POULET 12X1KG", "2", 1},
		{"Fresh Chicken (5LBS)", "1", 1},
		{"Tomatos Roma", "3", 0.5},
	}
	for _, tt := range tests {
		ing, conf, ok := a.BestMatch(tt.product, ingredients)
		if !ok || ing.ID != tt.wantID || conf < tt.minConf {
			t.Errorf("BestMatch(%q) = %s, %.2f, %v; want %s >= %.2f", tt.product, ing.ID, conf, ok, tt.wantID, tt.minConf)
		}
	}

	if _, _, ok := a.BestMatch("anything", nil); ok {
		t.Error("no ingredients should mean no match")
	}
}

func TestAnalyze(t *testing.T) {
	ingredients, latest := fixture()
	p := NewAdvisor(nil).Analyze(ingredients, latest)

	want := Summary{TotalInvoiceItems: 5, SuggestionsFound: 3, AlreadyConfigured: 1, NoMatchFound: 1, AutoApplyable: 2, NeedsManual: 1}
	if p.Summary != want {
		t.Fatalf("Summary = %+v; want %+v", p.Summary, want)
	}

	chicken := p.Suggestions[0]
	if chicken.IngredientID != "i1" || chicken.Conversion == nil || !chicken.AutoApply {
		t.Fatalf("chicken suggestion = %+v", chicken)
	}
	if math.Abs(chicken.Conversion.Factor-12) > 1e-9 || math.Abs(*chicken.CalculatedUnitCost-5) > 1e-9 {
		t.Errorf("chicken conversion = %+v, cost %v; want 12 kg at 5/kg", chicken.Conversion, *chicken.CalculatedUnitCost)
	}

	mint := p.Suggestions[1]
	if mint.Conversion == nil || mint.Conversion.Factor != 30 || mint.Source != "known:mint" {
		t.Errorf("mint suggestion = %+v", mint)
	}

	salt := p.Suggestions[2]
	if !salt.NeedsManual || salt.Conversion != nil || salt.AutoApply {
		t.Errorf("salt suggestion = %+v", salt)
	}
	if p.AlreadyConfigured[0].IngredientID != "i3" {
		t.Errorf("configured = %+v", p.AlreadyConfigured)
	}
	if p.NoMatchFound[0].InvoiceItem != "Xylophone Widget" || p.NoMatchFound[0].Confidence >= MinConfidence {
		t.Errorf("unmatched = %+v", p.NoMatchFound)
	}
}

func TestApply(t *testing.T) {
	ingredients, latest := fixture()
	plan := NewAdvisor(nil).Analyze(ingredients, latest)

	res := Apply(plan, ApplyRequest{}, "2024-03-01")
	if len(res.Applied) != 2 || len(res.Instructions) != 12 {
		t.Fatalf("applied %d with %d instructions; want 2 and 12", len(res.Applied), len(res.Instructions))
	}
	got := map[api.UpdateField]api.UpdateInstruction{}
	for _, in := range res.Instructions {
		if in.IngredientID == "i1" {
			got[in.Field] = in
		}
	}
	if *got[api.FieldConversionFactor].Number != res.Applied[0].Conversion.Factor {
		t.Errorf("factor instruction = %+v", got[api.FieldConversionFactor])
	}
	if math.Abs(*got[api.FieldUnitCost].Number-5) > 1e-9 || *got[api.FieldLatestPrice].Number != 60 {
		t.Errorf("cost instructions = %+v / %+v", got[api.FieldUnitCost], got[api.FieldLatestPrice])
	}
	if *got[api.FieldPriceUpdated].Text != "2024-03-01" || *got[api.FieldInvoiceUnit].Text != "box" {
		t.Errorf("text instructions = %+v / %+v", got[api.FieldPriceUpdated], got[api.FieldInvoiceUnit])
	}

	only := Apply(plan, ApplyRequest{IngredientIDs: []string{"i2"}, RecalculateOff: true}, "2024-03-01")
	if len(only.Applied) != 1 || only.Applied[0].IngredientID != "i2" || len(only.Instructions) != 3 {
		t.Errorf("filtered apply = %+v", only)
	}
}

func TestApplyAllIncludesLowConfidence(t *testing.T) {
	plan := Plan{Suggestions: []Suggestion{
		{IngredientID: "a", InvoicePrice: 20, Conversion: &api.PackConversion{InvoiceUnit: "case", Factor: 4}, Confidence: 0.5},
		{IngredientID: "b", NeedsManual: true, Confidence: 0.9},
	}}
	if res := Apply(plan, ApplyRequest{}, "2024-03-01"); len(res.Applied) != 0 {
		t.Errorf("low confidence applied without ApplyAll: %+v", res.Applied)
	}
	res := Apply(plan, ApplyRequest{ApplyAll: true}, "2024-03-01")
	if len(res.Applied) != 1 || res.Applied[0].NewUnitCost != 5 {
		t.Errorf("ApplyAll = %+v", res.Applied)
	}
}

func TestApplyRule(t *testing.T) {
	ingredients := []api.Ingredient{
		{ID: "1", Name: "Large Egg"},
		{ID: "2", Name: "Eggplant"},
		{ID: "3", Name: "Rice"},
	}

	ins, touched, err := ApplyRule(ingredients, Rule{Keyword: " EGG", InvoiceUnit: "case", Factor: 180})
	if err != nil {
		t.Fatalf("ApplyRule: %v", err)
	}
	if len(touched) != 2 || len(ins) != 6 {
		t.Fatalf("touched %d, instructions %d; want 2 and 6", len(touched), len(ins))
	}
	if *ins[2].Text != "180 units per case" {
		t.Errorf("default notes = %q", *ins[2].Text)
	}

	bad := []struct {
		rule  Rule
		field string
	}{
		{Rule{InvoiceUnit: "case", Factor: 1}, "product_keyword"},
		{Rule{Keyword: "egg", Factor: 1}, "invoice_unit"},
		{Rule{Keyword: "egg", InvoiceUnit: "case"}, "factor"},
	}
	for _, b := range bad {
		_, _, err := ApplyRule(ingredients, b.rule)
		se, ok := err.(*serrors.SentinelError)
		if !ok || se.Field != b.field || !serrors.IsValidation(err) {
			t.Errorf("ApplyRule(%+v) err = %v; want validation on %s", b.rule, err, b.field)
		}
	}
}
