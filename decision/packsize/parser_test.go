package packsize

import (
	"math"
	"testing"

	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/units"
)

func TestParse(t *testing.T) {
	tests := []struct {
		desc       string
		wantFactor float64
		wantBase   units.Unit
		wantUnit   string
		wantNotes  string
		wantSource string
	}{
		{"12X454G chicken breast", 5448, units.Gram, "box", "12x454g", "multi_pack"},
		{"Poulet 12X1KG", 12000, units.Gram, "box", "12x1kg", "multi_pack"},
		{"Coconut milk 24x400ml", 9600, units.Milliliter, "box", "24x400mL", "multi_pack"},
		{"Soy sauce 6 x 1.89L", 11340, units.Milliliter, "box", "6x1.89L", "multi_pack"},
		{"Bacon 4X2.5LBS", 4535.92, units.Gram, "box", "4x2.5lbs", "multi_pack"},
		{"Eggs 15X12UN", 180, units.WholeUnit, "box", "15x12 units", "unit_pack"},
		{"Rice noodles (5LB)", 2267.96, units.Gram, "bag", "5lbs bag", "bag_weight"},
		{"LIMES SIZE 200", 200, units.WholeUnit, "box", "~200 count per box", "size_count"},
		{"Jasmine rice 20KG", 20000, units.Gram, "bag", "20kg", "bare_weight"},
		{"Fish sauce 750 ml", 750, units.Milliliter, "bag", "750mL", "bare_weight"},
		{"Fresh Mint", 30, units.Gram, "bunch", "~30g per bunch", "known:mint"},
		{"Organic Cilantro grade A", 40, units.Gram, "bunch", "~40g per bunch", "known:cilantro"},
		{"Cauliflower", 7000, units.Gram, "box", "~7kg per box", "known:cauliflower"},
		{"Lemongrass stalks", 150, units.Gram, "bunch", "~150g per bunch", "known:lemongrass"},
		{"Large eggs", 180, units.WholeUnit, "case", "15 dozen (180 eggs)", "known:large egg"},
	}

	for _, tt := range tests {
		got, ok := Parse(tt.desc)
		if !ok {
			t.Errorf("Parse(%q) found nothing", tt.desc)
			continue
		}
		if math.Abs(got.Factor-tt.wantFactor) > 0.001 {
			t.Errorf("Parse(%q).Factor = %v; want %v", tt.desc, got.Factor, tt.wantFactor)
		}
		if got.BaseUnit != tt.wantBase {
			t.Errorf("Parse(%q).BaseUnit = %q; want %q", tt.desc, got.BaseUnit, tt.wantBase)
		}
		if got.InvoiceUnit != tt.wantUnit {
			t.Errorf("Parse(%q).InvoiceUnit = %q; want %q", tt.desc, got.InvoiceUnit, tt.wantUnit)
		}
		if got.Notes != tt.wantNotes {
			t.Errorf("Parse(%q).Notes = %q; want %q", tt.desc, got.Notes, tt.wantNotes)
		}
		if got.Source != tt.wantSource {
			t.Errorf("Parse(%q).Source = %q; want %q", tt.desc, got.Source, tt.wantSource)
		}
	}
}

func TestParseNoMatch(t *testing.T) {
	for _, desc := range []string{"", "Tofu firm", "Spring roll wrappers", "!!!"} {
		if c, ok := Parse(desc); ok {
			t.Errorf("Parse(%q) = %+v; want no conversion", desc, c)
		}
	}
}

func TestParseForUsesPrintedUnit(t *testing.T) {
	got, ok := NewParser().ParseFor("Chicken thighs 4x2.5kg", "case")
	if !ok {
		t.Fatal("expected a conversion")
	}
	if got.InvoiceUnit != "case" || got.Factor != 10000 {
		t.Errorf("ParseFor = %+v; want case with factor 10000", got)
	}
}

func TestParseDeterministic(t *testing.T) {
	first, _ := Parse("12X454G chicken breast")
	for i := 0; i < 10; i++ {
		again, _ := Parse("12X454G chicken breast")
		if again != first {
			t.Fatalf("Parse not deterministic: %+v vs %+v", again, first)
		}
	}
}

func TestKnownKeywordMatching(t *testing.T) {
	tests := []struct {
		desc       string
		wantSource string
		wantOK     bool
	}{
		{"Thai basil", "known:thai basil", true},
		{"Basil", "known:basil", true},
		{"Egg", "known:egg", true},
		{"Large egg", "known:large egg", true},
		{"Green onions", "known:green onion", true},
		{"Eggplant", "", false},
		{"Limestone salt", "", false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.desc)
		if ok != tt.wantOK || got.Source != tt.wantSource {
			t.Errorf("Parse(%q) = %q, %v; want %q, %v", tt.desc, got.Source, ok, tt.wantSource, tt.wantOK)
		}
	}
}

func TestWithKnownOverride(t *testing.T) {
	p := NewParser().WithKnown([]Known{
		{Keyword: "mint", InvoiceUnit: "bunch", Factor: 45, BaseUnit: units.Gram, Notes: "~45g per bunch"},
		{Keyword: "dill", InvoiceUnit: "bunch", Factor: 0, BaseUnit: units.Gram},
	})
	got, ok := p.Parse("mint")
	if !ok || got.Factor != 45 {
		t.Errorf("Parse(mint) = %+v, %v; want factor 45", got, ok)
	}
	if _, ok := p.Parse("dill"); ok {
		t.Errorf("zero-factor defaults must be ignored")
	}
	if _, ok := p.Parse("cauliflower"); ok {
		t.Errorf("replaced table should not contain cauliflower")
	}
}

func TestConversionIn(t *testing.T) {
	c, _ := Parse("Poulet 12X1KG")
	kg, ok := c.In("kg")
	if !ok || math.Abs(kg-12) > 0.0001 {
		t.Errorf("In(kg) = %v, %v; want 12, true", kg, ok)
	}
	if _, ok := c.In("L"); ok {
		t.Errorf("In(L) should not be verified for a mass conversion")
	}
}

func TestNormalizeName(t *testing.T) {
	p := NewParser()
	tests := []struct {
		in, want string
	}{
		{"Fresh Thai Basil 2x500g", "thai basil"},
		{"BOK CHOY - Grade A", "bok choy"},
		{"Frozen (organic) peas 5kg", "peas"},
	}
	for _, tt := range tests {
		if got := p.NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
