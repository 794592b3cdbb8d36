package packsize

import "github.com/pg-png/wwithai-foodcost-sentinel/pkg/units"

// DefaultFiller lists words removed before known-product lookup.
var DefaultFiller = []string{
	"fresh", "frozen", "dried", "organic", "natural", "premium",
	"quality", "grade", "a", "b", "c",
}

// DefaultKnown returns per-product defaults for items sold without a
// printed size. Keywords match whole words; the longest match wins.
func DefaultKnown() []Known {
	bunch := func(kw string, grams float64) Known {
		return Known{Keyword: kw, InvoiceUnit: "bunch", Factor: grams, BaseUnit: units.Gram, Notes: "~" + num(grams) + "g per bunch"}
	}
	box := func(kw string, kg float64) Known {
		return Known{Keyword: kw, InvoiceUnit: "box", Factor: kg * 1000, BaseUnit: units.Gram, Notes: "~" + num(kg) + "kg per box"}
	}
	count := func(kw, unit string, n float64, notes string) Known {
		return Known{Keyword: kw, InvoiceUnit: unit, Factor: n, BaseUnit: units.WholeUnit, Notes: notes}
	}

	return []Known{
		// Herbs
		bunch("mint", 30),
		bunch("basil", 30),
		bunch("cilantro", 40),
		bunch("coriander", 40),
		bunch("parsley", 50),
		bunch("green onion", 100),
		bunch("scallion", 100),
		bunch("thai basil", 30),
		bunch("lemongrass", 150),

		// Vegetables
		box("cauliflower", 7),
		box("broccoli", 6),
		box("cabbage", 15),
		box("nappa", 12),
		box("bok choy", 5),
		bunch("gai lan", 300),

		// Fruit
		count("lime", "box", 200, "~200 count per box"),
		count("lemon", "box", 150, "~150 count per box"),

		// Proteins
		count("egg", "case", 180, "15 dozen (180 eggs)"),
		count("large egg", "case", 180, "15 dozen (180 eggs)"),
	}
}
