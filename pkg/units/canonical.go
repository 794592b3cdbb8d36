// Package units provides canonical kitchen units and conversions.
package units

import "strings"

// Unit is a canonical unit spelling.
type Unit string

const (
	// Mass units
	Gram     Unit = "g"
	Kilogram Unit = "kg"
	Pound    Unit = "lb"
	Ounce    Unit = "oz"

	// Volume units
	Milliliter Unit = "mL"
	Liter      Unit = "L"
	FluidOunce Unit = "fl. oz"
	Tablespoon Unit = "tbsp"
	Teaspoon   Unit = "tsp"
	Cup        Unit = "cup"

	// Count units
	WholeUnit Unit = "whole unit"
)

// Family groups units that can be converted into each other.
type Family string

const (
	FamilyMass    Family = "mass"
	FamilyVolume  Family = "volume"
	FamilyCount   Family = "count"
	FamilyUnknown Family = "unknown"
)

// Kitchen multipliers into the base unit of the family.
const (
	MillilitersPerTablespoon = 15.0
	MillilitersPerTeaspoon   = 5.0
	MillilitersPerCup        = 240.0
	GramsPerOunce            = 28.35
	GramsPerPound            = 453.6
)

var synonyms = map[string]Unit{
	"g":            Gram,
	"gr":           Gram,
	"gram":         Gram,
	"grams":        Gram,
	"gramme":       Gram,
	"grammes":      Gram,
	"kg":           Kilogram,
	"kgs":          Kilogram,
	"kilo":         Kilogram,
	"kilos":        Kilogram,
	"kilogram":     Kilogram,
	"kilograms":    Kilogram,
	"lb":           Pound,
	"lbs":          Pound,
	"pound":        Pound,
	"pounds":       Pound,
	"oz":           Ounce,
	"ounce":        Ounce,
	"ounces":       Ounce,
	"ml":           Milliliter,
	"milliliter":   Milliliter,
	"milliliters":  Milliliter,
	"millilitre":   Milliliter,
	"millilitres":  Milliliter,
	"l":            Liter,
	"lt":           Liter,
	"liter":        Liter,
	"liters":       Liter,
	"litre":        Liter,
	"litres":       Liter,
	"fl. oz":       FluidOunce,
	"fl oz":        FluidOunce,
	"fl.oz":        FluidOunce,
	"floz":         FluidOunce,
	"fluid ounce":  FluidOunce,
	"fluid ounces": FluidOunce,
	"tbsp":         Tablespoon,
	"tbs":          Tablespoon,
	"tablespoon":   Tablespoon,
	"tablespoons":  Tablespoon,
	"tsp":          Teaspoon,
	"teaspoon":     Teaspoon,
	"teaspoons":    Teaspoon,
	"cup":          Cup,
	"cups":         Cup,
	"whole unit":   WholeUnit,
	"whole units":  WholeUnit,
	"whole":        WholeUnit,
	"unit":         WholeUnit,
	"units":        WholeUnit,
	"un":           WholeUnit,
	"ea":           WholeUnit,
	"each":         WholeUnit,
	"pc":           WholeUnit,
	"pcs":          WholeUnit,
	"piece":        WholeUnit,
	"pieces":       WholeUnit,
	"serving":      WholeUnit,
	"servings":     WholeUnit,
}

// Normalize folds a unit spelling into its canonical form.
// Unknown spellings (box, bunch, case) come back lowercased and trimmed.
func Normalize(unit string) Unit {
	key := strings.Join(strings.Fields(strings.ToLower(unit)), " ")
	if u, ok := synonyms[key]; ok {
		return u
	}
	return Unit(key)
}

// FamilyOf returns the family of a unit spelling.
func FamilyOf(unit string) Family {
	switch Normalize(unit) {
	case Gram, Kilogram, Pound, Ounce:
		return FamilyMass
	case Milliliter, Liter, FluidOunce, Tablespoon, Teaspoon, Cup:
		return FamilyVolume
	case WholeUnit:
		return FamilyCount
	default:
		return FamilyUnknown
	}
}

// ToBase applies the fixed kitchen multipliers (tbsp, tsp, cup, oz, lb)
// and returns the quantity in g or mL. Other units pass through normalized.
func ToBase(qty float64, unit string) (float64, Unit) {
	u := Normalize(unit)
	switch u {
	case Tablespoon:
		return qty * MillilitersPerTablespoon, Milliliter
	case Teaspoon:
		return qty * MillilitersPerTeaspoon, Milliliter
	case Cup:
		return qty * MillilitersPerCup, Milliliter
	case Ounce:
		return qty * GramsPerOunce, Gram
	case Pound:
		return qty * GramsPerPound, Gram
	default:
		return qty, u
	}
}
