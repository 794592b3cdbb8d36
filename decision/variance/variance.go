// Package variance compares reference ingredient costs with unit-aligned
// invoice prices.
package variance

import (
	"math"
	"sort"

	"github.com/pg-png/wwithai-foodcost-sentinel/decision/matching"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/packsize"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/units"
)

// Variance is the signed difference between an actual and reference value.
type Variance struct {
	Delta      float64 `json:"delta"`
	DeltaPct   float64 `json:"delta_pct"`
	Computable bool    `json:"computable"`
}

// Compute returns actual minus reference and the percentage change.
// A zero reference yields DeltaPct 0 and Computable false.
func Compute(reference, actual float64) Variance {
	v := Variance{Delta: actual - reference}
	if reference == 0 {
		return v
	}
	v.DeltaPct = v.Delta / reference * 100
	v.Computable = true
	return v
}

// Pct is the zero-guarded percentage change.
func Pct(reference, actual float64) float64 {
	return Compute(reference, actual).DeltaPct
}

// AlignMethod records how an invoice price was brought into the
// ingredient's costing unit.
type AlignMethod string

const (
	AlignStored     AlignMethod = "stored_conversion"
	AlignSameUnit   AlignMethod = "same_unit"
	AlignConverted  AlignMethod = "unit_conversion"
	AlignParsed     AlignMethod = "parsed_conversion"
	AlignUnverified AlignMethod = "unverified"
)

// AlignedPrice is an invoice price expressed per ingredient costing unit.
// Only the calculator produces one.
type AlignedPrice struct {
	Price       float64     `json:"price"`
	Unit        string      `json:"unit"`
	Factor      float64     `json:"factor"`
	Method      AlignMethod `json:"method"`
	Verified    bool        `json:"verified"`
	ProductName string      `json:"product_name"`
	Date        *string     `json:"date,omitempty"`
}

// Calculator aligns invoice prices and computes price changes.
type Calculator struct {
	parser *packsize.Parser
}

// NewCalculator creates a calculator. A nil parser uses the defaults.
func NewCalculator(parser *packsize.Parser) *Calculator {
	if parser == nil {
		parser = packsize.NewParser()
	}
	return &Calculator{parser: parser}
}

// Align converts an invoice line price into the ingredient's costing unit.
// Stored conversion factors are expressed in costing units per invoice unit.
func (c *Calculator) Align(item api.InvoiceLineItem, ing api.Ingredient) AlignedPrice {
	out := AlignedPrice{
		Price:       item.UnitPrice,
		Unit:        ing.PerUnit,
		Factor:      1,
		ProductName: item.ProductName,
		Date:        item.InvoiceDate,
	}

	if ing.HasConversion() {
		out.Factor = ing.Conversion.Factor
		out.Price = item.UnitPrice / out.Factor
		out.Method = AlignStored
		out.Verified = true
		return out
	}

	if item.Unit != "" && ing.PerUnit != "" {
		if units.Normalize(item.Unit) == units.Normalize(ing.PerUnit) {
			out.Method = AlignSameUnit
			out.Verified = true
			return out
		}
		if per, ok := units.ConvertChecked(1, item.Unit, ing.PerUnit); ok && per > 0 {
			out.Factor = per
			out.Price = item.UnitPrice / per
			out.Method = AlignConverted
			out.Verified = true
			return out
		}
	}

	if conv, ok := c.parser.ParseFor(item.ProductName, item.Unit); ok {
		if f, ok := conv.In(ing.PerUnit); ok && f > 0 {
			out.Factor = f
			out.Price = item.UnitPrice / f
			out.Method = AlignParsed
			out.Verified = true
			return out
		}
	}

	out.Method = AlignUnverified
	return out
}

// PriceChange compares an ingredient's reference cost with an aligned
// price. It reports false when the reference cost is zero.
func (c *Calculator) PriceChange(ing api.Ingredient, aligned AlignedPrice) (api.PriceChange, bool) {
	if ing.UnitCost <= 0 {
		return api.PriceChange{}, false
	}
	v := Compute(ing.UnitCost, aligned.Price)
	return api.PriceChange{
		IngredientID:   ing.ID,
		IngredientName: ing.Name,
		ProductName:    aligned.ProductName,
		ReferencePrice: ing.UnitCost,
		ActualPrice:    aligned.Price,
		Variance:       v.Delta,
		VariancePct:    v.DeltaPct,
		Unit:           ing.PerUnit,
		ReferenceDate:  ing.PriceUpdated,
		ActualDate:     aligned.Date,
		Verified:       aligned.Verified,
	}, true
}

// Changes holds price changes keyed by ingredient id.
type Changes map[string]api.PriceChange

// ByName pairs each ingredient with the latest invoice line whose product
// name equals the ingredient name, ignoring case.
func (c *Calculator) ByName(ingredients []api.Ingredient, latest map[string]api.InvoiceLineItem) Changes {
	out := make(Changes)
	for _, ing := range ingredients {
		item, ok := latest[api.Key(ing.Name)]
		if !ok {
			continue
		}
		if pc, ok := c.PriceChange(ing, c.Align(item, ing)); ok {
			out[ing.ID] = pc
		}
	}
	return out
}

// ByMatch pairs each ingredient with the newest invoice line the name
// matcher auto-resolved to it. Undated lines lose to dated ones.
func (c *Calculator) ByMatch(results []api.MatchResult) Changes {
	out := make(Changes)
	dates := make(map[string]string)
	for _, r := range results {
		ing := matching.Resolved(r)
		if ing == nil {
			continue
		}
		if d, seen := dates[ing.ID]; seen && r.Item.Date() <= d {
			continue
		}
		if pc, ok := c.PriceChange(*ing, c.Align(r.Item, *ing)); ok {
			out[ing.ID] = pc
			dates[ing.ID] = r.Item.Date()
		}
	}
	return out
}

// Merge adds the changes from other for ingredients not already present.
func (ch Changes) Merge(other Changes) Changes {
	for id, pc := range other {
		if _, ok := ch[id]; !ok {
			ch[id] = pc
		}
	}
	return ch
}

// FromMatches computes price changes for auto-resolved matches, keeping
// those with |variance%| >= minPct, largest first.
func (c *Calculator) FromMatches(results []api.MatchResult, minPct float64) []api.PriceChange {
	var out []api.PriceChange
	for _, r := range results {
		ing := matching.Resolved(r)
		if ing == nil {
			continue
		}
		pc, ok := c.PriceChange(*ing, c.Align(r.Item, *ing))
		if !ok || math.Abs(pc.VariancePct) < minPct {
			continue
		}
		out = append(out, pc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].VariancePct) > math.Abs(out[j].VariancePct)
	})
	return out
}

// LatestByProduct keeps the most recent invoice line per product name,
// ignoring case. Dated lines replace undated ones; ISO dates compare as
// strings.
func LatestByProduct(items []api.InvoiceLineItem) map[string]api.InvoiceLineItem {
	latest := make(map[string]api.InvoiceLineItem, len(items))
	for _, it := range items {
		k := api.Key(it.ProductName)
		if k == "" {
			continue
		}
		cur, ok := latest[k]
		if !ok || (it.Date() != "" && (cur.Date() == "" || it.Date() > cur.Date())) {
			latest[k] = it
		}
	}
	return latest
}

// SortedKeys returns map keys in ascending order.
func SortedKeys(m map[string]api.InvoiceLineItem) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
