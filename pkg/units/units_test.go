package units

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Unit
	}{
		{"g", Gram},
		{" Grams ", Gram},
		{"KG", Kilogram},
		{"Kilograms", Kilogram},
		{"ml", Milliliter},
		{"Litres", Liter},
		{"fl oz", FluidOunce},
		{"FL.  OZ", FluidOunce},
		{"Tbsp", Tablespoon},
		{"tablespoon", Tablespoon},
		{"pcs", WholeUnit},
		{"Each", WholeUnit},
		{"whole units", WholeUnit},
		{"LBS", Pound},
		{"Box", Unit("box")},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		in   string
		want Family
	}{
		{"kg", FamilyMass},
		{"oz", FamilyMass},
		{"cup", FamilyVolume},
		{"fl. oz", FamilyVolume},
		{"each", FamilyCount},
		{"bunch", FamilyUnknown},
	}

	for _, tt := range tests {
		if got := FamilyOf(tt.in); got != tt.want {
			t.Errorf("FamilyOf(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestToBase(t *testing.T) {
	tests := []struct {
		qty      float64
		unit     string
		wantQty  float64
		wantUnit Unit
	}{
		{2, "Tbsp", 30, Milliliter},
		{3, "teaspoons", 15, Milliliter},
		{1, "cup", 240, Milliliter},
		{2, "oz", 56.7, Gram},
		{1, "lbs", 453.6, Gram},
		{500, "grams", 500, Gram},
	}

	for _, tt := range tests {
		q, u := ToBase(tt.qty, tt.unit)
		if math.Abs(q-tt.wantQty) > 0.0001 || u != tt.wantUnit {
			t.Errorf("ToBase(%v, %q) = %v %q; want %v %q", tt.qty, tt.unit, q, u, tt.wantQty, tt.wantUnit)
		}
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		qty      float64
		from, to string
		want     float64
		verified bool
	}{
		{250, "g", "kg", 0.25, true},
		{2, "kg", "g", 2000, true},
		{1, "L", "mL", 1000, true},
		{1, "lb", "kg", 0.4536, true},
		{2, "lbs", "g", 907.2, true},
		{4, "each", "whole unit", 4, true},
		{2, "tbsp", "mL", 30, true},
		{2, "tbsp", "L", 0.03, true},
		{8, "oz", "kg", 0.2268, true},
		{3, "g", "mL", 3, false},
		{5, "box", "kg", 5, false},
	}

	for _, tt := range tests {
		got, ok := ConvertChecked(tt.qty, tt.from, tt.to)
		if math.Abs(got-tt.want) > 0.0001 || ok != tt.verified {
			t.Errorf("ConvertChecked(%v, %q, %q) = %v, %v; want %v, %v", tt.qty, tt.from, tt.to, got, ok, tt.want, tt.verified)
		}
	}
}

func TestConvertRoundTrip(t *testing.T) {
	table := DefaultTable()
	c := NewConverter(table)
	for _, p := range table.Pairs() {
		a, b := string(p[0]), string(p[1])
		for _, x := range []float64{0.5, 1, 12.5, 1000} {
			there := c.Convert(x, a, b)
			back := c.Convert(there, b, a)
			if math.Abs(back-x)/x > 1e-4 {
				t.Errorf("round trip %s->%s->%s of %v = %v", a, b, a, x, back)
			}
		}
	}
}

func TestConvertAgreesWithToBase(t *testing.T) {
	for _, unit := range []string{"lb", "kg", "L"} {
		want, base := ToBase(3, unit)
		if got := Convert(3, unit, string(base)); math.Abs(got-want) > 1e-9 {
			t.Errorf("Convert(3, %q, %q) = %v; ToBase = %v", unit, base, got, want)
		}
	}
}
