// Package conversions suggests and applies pack-size conversion factors
// for ingredients bought in boxes, cases, bunches and bags.
package conversions

import (
	"fmt"
	"strings"

	"github.com/pg-png/wwithai-foodcost-sentinel/decision/matching"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/packsize"
	"github.com/pg-png/wwithai-foodcost-sentinel/decision/variance"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	serrors "github.com/pg-png/wwithai-foodcost-sentinel/pkg/errors"
)

// Confidence bands for invoice-to-ingredient pairing.
const (
	MinConfidence       = 0.4
	AutoApplyConfidence = 0.7

	// Words shorter than this are ignored in word overlap.
	minWordLen = 3
	// Word-level edit distance still counted as the same word.
	maxWordDistance = 2
)

// Suggestion pairs an invoice product with an ingredient lacking a
// conversion. Conversion is nil when the description has no usable pack
// size.
type Suggestion struct {
	IngredientID       string              `json:"ingredient_id"`
	IngredientName     string              `json:"ingredient_name"`
	InvoiceItem        string              `json:"invoice_item"`
	InvoicePrice       float64             `json:"invoice_price"`
	InvoiceUnit        string              `json:"invoice_unit"`
	CurrentUnitCost    float64             `json:"current_unit_cost"`
	Conversion         *api.PackConversion `json:"suggested_conversion"`
	Source             string              `json:"source,omitempty"`
	CalculatedUnitCost *float64            `json:"calculated_unit_cost"`
	Confidence         float64             `json:"confidence"`
	AutoApply          bool                `json:"auto_apply"`
	NeedsManual        bool                `json:"needs_manual_conversion,omitempty"`
}

// Configured is an ingredient that already carries a conversion.
type Configured struct {
	IngredientID   string             `json:"ingredient_id"`
	IngredientName string             `json:"ingredient_name"`
	InvoiceItem    string             `json:"invoice_item"`
	Conversion     api.PackConversion `json:"conversion"`
}

// Unmatched is an invoice product with no ingredient above the floor.
type Unmatched struct {
	InvoiceItem string  `json:"invoice_item"`
	Unit        string  `json:"unit"`
	Price       float64 `json:"price"`
	BestMatch   string  `json:"best_match,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// Summary counts a plan.
type Summary struct {
	TotalInvoiceItems int `json:"total_invoice_items"`
	SuggestionsFound  int `json:"suggestions_found"`
	AlreadyConfigured int `json:"already_configured"`
	NoMatchFound      int `json:"no_match_found"`
	AutoApplyable     int `json:"auto_applyable"`
	NeedsManual       int `json:"needs_manual"`
}

// Plan is the advisor output for one snapshot.
type Plan struct {
	Summary           Summary      `json:"summary"`
	Suggestions       []Suggestion `json:"suggestions"`
	AlreadyConfigured []Configured `json:"already_configured"`
	NoMatchFound      []Unmatched  `json:"no_match_found"`
}

// Advisor builds conversion plans.
type Advisor struct {
	parser *packsize.Parser
}

// NewAdvisor creates an advisor. A nil parser uses the defaults.
func NewAdvisor(parser *packsize.Parser) *Advisor {
	if parser == nil {
		parser = packsize.NewParser()
	}
	return &Advisor{parser: parser}
}

// BestMatch returns the ingredient whose normalized name best fits the
// product, with a confidence in [0, 1]. The first ingredient wins ties.
func (a *Advisor) BestMatch(product string, ingredients []api.Ingredient) (api.Ingredient, float64, bool) {
	np := a.parser.NormalizeName(product)
	pw := longWords(np)

	var best api.Ingredient
	bestScore, found := 0.0, false
	consider := func(ing api.Ingredient, score float64) {
		if score > bestScore {
			best, bestScore, found = ing, score, true
		}
	}

	for _, ing := range ingredients {
		ni := a.parser.NormalizeName(ing.Name)
		if np != "" && ni != "" && (np == ni || strings.Contains(np, ni) || strings.Contains(ni, np)) {
			consider(ing, 1)
			continue
		}

		iw := longWords(ni)
		if n := max(len(pw), len(iw)); n > 0 {
			hits := 0
			for _, p := range pw {
				for _, w := range iw {
					if p == w || matching.Levenshtein(p, w) <= maxWordDistance {
						hits++
						break
					}
				}
			}
			consider(ing, float64(hits)/float64(n))
		}
		consider(ing, matching.Similarity(np, ni))
	}
	return best, bestScore, found
}

// Analyze pairs every latest invoice line with an ingredient and sorts it
// into suggestions, already configured or unmatched. Lines are visited
// in product-name order.
func (a *Advisor) Analyze(ingredients []api.Ingredient, latest map[string]api.InvoiceLineItem) Plan {
	p := Plan{
		Suggestions:       []Suggestion{},
		AlreadyConfigured: []Configured{},
		NoMatchFound:      []Unmatched{},
	}

	for _, key := range variance.SortedKeys(latest) {
		item := latest[key]
		ing, conf, ok := a.BestMatch(item.ProductName, ingredients)
		if !ok || conf < MinConfidence {
			u := Unmatched{InvoiceItem: item.ProductName, Unit: item.Unit, Price: item.UnitPrice, Confidence: conf}
			if ok {
				u.BestMatch = ing.Name
			}
			p.NoMatchFound = append(p.NoMatchFound, u)
			continue
		}

		if ing.HasConversion() {
			p.AlreadyConfigured = append(p.AlreadyConfigured, Configured{
				IngredientID:   ing.ID,
				IngredientName: ing.Name,
				InvoiceItem:    item.ProductName,
				Conversion:     *ing.Conversion,
			})
			continue
		}

		p.Suggestions = append(p.Suggestions, a.suggest(ing, item, conf))
	}

	p.Summary = Summary{
		TotalInvoiceItems: len(latest),
		SuggestionsFound:  len(p.Suggestions),
		AlreadyConfigured: len(p.AlreadyConfigured),
		NoMatchFound:      len(p.NoMatchFound),
	}
	for _, s := range p.Suggestions {
		if s.AutoApply {
			p.Summary.AutoApplyable++
		}
		if s.NeedsManual {
			p.Summary.NeedsManual++
		}
	}
	return p
}

// suggest parses the product description and expresses the factor in
// the ingredient's costing unit.
func (a *Advisor) suggest(ing api.Ingredient, item api.InvoiceLineItem, conf float64) Suggestion {
	s := Suggestion{
		IngredientID:    ing.ID,
		IngredientName:  ing.Name,
		InvoiceItem:     item.ProductName,
		InvoicePrice:    item.UnitPrice,
		InvoiceUnit:     item.Unit,
		CurrentUnitCost: ing.UnitCost,
		Confidence:      conf,
	}

	conv, ok := a.parser.ParseFor(item.ProductName, item.Unit)
	if !ok {
		s.NeedsManual = true
		return s
	}
	factor, ok := conv.In(ing.PerUnit)
	if !ok || factor <= 0 {
		s.NeedsManual = true
		s.Source = conv.Source
		return s
	}

	cost := item.UnitPrice / factor
	s.InvoiceUnit = conv.InvoiceUnit
	s.Conversion = &api.PackConversion{InvoiceUnit: conv.InvoiceUnit, Factor: factor, Notes: conv.Notes}
	s.Source = conv.Source
	s.CalculatedUnitCost = &cost
	s.AutoApply = conf >= AutoApplyConfidence
	return s
}

// ApplyRequest selects which suggestions to write.
type ApplyRequest struct {
	ApplyAll       bool     `json:"apply_all"`
	IngredientIDs  []string `json:"ingredient_ids,omitempty"`
	RecalculateOff bool     `json:"skip_recalculate,omitempty"`
}

// Applied records one written conversion.
type Applied struct {
	IngredientID   string             `json:"ingredient_id"`
	IngredientName string             `json:"ingredient_name"`
	InvoiceItem    string             `json:"invoice_item"`
	Conversion     api.PackConversion `json:"conversion_applied"`
	NewUnitCost    float64            `json:"new_unit_cost"`
}

// ApplyResult is the outcome of Apply.
type ApplyResult struct {
	Applied      []Applied               `json:"results"`
	Instructions []api.UpdateInstruction `json:"instructions"`
}

// Apply turns parsed suggestions into update instructions. Only
// auto-apply suggestions are used unless ApplyAll is set. Unit costs are
// recalculated from the invoice price and stamped with today unless
// RecalculateOff is set.
func Apply(plan Plan, req ApplyRequest, today string) ApplyResult {
	want := make(map[string]bool, len(req.IngredientIDs))
	for _, id := range req.IngredientIDs {
		want[id] = true
	}

	res := ApplyResult{Applied: []Applied{}, Instructions: []api.UpdateInstruction{}}
	done := make(map[string]bool)
	for _, s := range plan.Suggestions {
		if s.Conversion == nil || done[s.IngredientID] {
			continue
		}
		if len(want) > 0 && !want[s.IngredientID] {
			continue
		}
		if !req.ApplyAll && !s.AutoApply {
			continue
		}
		done[s.IngredientID] = true

		reason := "conversion from " + s.InvoiceItem
		res.Instructions = append(res.Instructions, conversionInstructions(s.IngredientID, *s.Conversion, reason)...)
		newCost := s.InvoicePrice / s.Conversion.Factor
		if !req.RecalculateOff {
			res.Instructions = append(res.Instructions,
				api.SetNumber(s.IngredientID, api.FieldUnitCost, newCost, reason),
				api.SetNumber(s.IngredientID, api.FieldLatestPrice, s.InvoicePrice, reason),
				api.SetText(s.IngredientID, api.FieldPriceUpdated, today, reason),
			)
		}
		res.Applied = append(res.Applied, Applied{
			IngredientID:   s.IngredientID,
			IngredientName: s.IngredientName,
			InvoiceItem:    s.InvoiceItem,
			Conversion:     *s.Conversion,
			NewUnitCost:    newCost,
		})
	}
	return res
}

// Rule is a manual conversion applied to every ingredient whose name
// contains Keyword.
type Rule struct {
	Keyword     string  `json:"product_keyword" yaml:"keyword"`
	InvoiceUnit string  `json:"invoice_unit" yaml:"invoice_unit"`
	Factor      float64 `json:"factor" yaml:"factor"`
	Notes       string  `json:"notes,omitempty" yaml:"notes"`
	BaseUnit    string  `json:"base_unit,omitempty" yaml:"base_unit"`
}

// Validate checks the required rule fields.
func (r Rule) Validate() error {
	switch {
	case strings.TrimSpace(r.Keyword) == "":
		return serrors.NewMissingAttributeError("product_keyword")
	case strings.TrimSpace(r.InvoiceUnit) == "":
		return serrors.NewMissingAttributeError("invoice_unit")
	case r.Factor <= 0:
		return serrors.NewInvalidInputError("factor", "factor must be positive")
	}
	return nil
}

// ApplyRule emits conversion instructions for every matching ingredient
// and returns the ingredients it touched.
func ApplyRule(ingredients []api.Ingredient, r Rule) ([]api.UpdateInstruction, []api.Ingredient, error) {
	if err := r.Validate(); err != nil {
		return nil, nil, err
	}
	notes := r.Notes
	if notes == "" {
		base := r.BaseUnit
		if base == "" {
			base = "units"
		}
		notes = fmt.Sprintf("%s %s per %s", num(r.Factor), base, r.InvoiceUnit)
	}
	conv := api.PackConversion{InvoiceUnit: r.InvoiceUnit, Factor: r.Factor, Notes: notes}

	kw := strings.ToLower(strings.TrimSpace(r.Keyword))
	var out []api.UpdateInstruction
	touched := []api.Ingredient{}
	for _, ing := range ingredients {
		if !strings.Contains(strings.ToLower(ing.Name), kw) {
			continue
		}
		out = append(out, conversionInstructions(ing.ID, conv, "rule "+kw)...)
		touched = append(touched, ing)
	}
	return out, touched, nil
}

func conversionInstructions(id string, c api.PackConversion, reason string) []api.UpdateInstruction {
	return []api.UpdateInstruction{
		api.SetText(id, api.FieldInvoiceUnit, c.InvoiceUnit, reason),
		api.SetNumber(id, api.FieldConversionFactor, c.Factor, reason),
		api.SetText(id, api.FieldConversionNotes, c.Notes, reason),
	}
}

func longWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		if len(w) >= minWordLen {
			out = append(out, w)
		}
	}
	return out
}

func num(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
