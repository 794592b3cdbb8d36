// Package packsize infers pack-size conversion factors from invoice
// product descriptions.
package packsize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/textnorm"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/units"
)

// Conversion is a factor translating one invoice unit into base units
// (g for mass, mL for volume, whole unit for count goods).
type Conversion struct {
	InvoiceUnit string     `json:"invoice_unit"`
	Factor      float64    `json:"factor"`
	BaseUnit    units.Unit `json:"base_unit"`
	Notes       string     `json:"notes"`
	Source      string     `json:"source"` // rule name or "known:<keyword>"
}

// In returns the factor expressed in a costing unit, e.g. 12000 g as 12 kg.
// The bool is false when the base unit cannot be converted.
func (c Conversion) In(costUnit string) (float64, bool) {
	if costUnit == "" {
		return c.Factor, true
	}
	return units.ConvertChecked(c.Factor, string(c.BaseUnit), costUnit)
}

// Rule is one ordered pattern strategy.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	InvoiceUnit string
	Convert     func(m []string) (Conversion, bool)
}

// Known is a per-product default used when no pattern matches.
type Known struct {
	Keyword     string     `yaml:"keyword" json:"keyword"`
	InvoiceUnit string     `yaml:"invoice_unit" json:"invoice_unit"`
	Factor      float64    `yaml:"factor" json:"factor"`
	BaseUnit    units.Unit `yaml:"base_unit" json:"base_unit"`
	Notes       string     `yaml:"notes" json:"notes"`
}

// Parser runs the rules in order, then the known defaults.
type Parser struct {
	rules  []Rule
	known  []Known
	filler map[string]bool
}

// NewParser creates a parser with the default rules and tables.
func NewParser() *Parser {
	return &Parser{
		rules:  DefaultRules(),
		known:  DefaultKnown(),
		filler: textnorm.WordSet(DefaultFiller),
	}
}

// WithKnown replaces the known-product defaults.
func (p *Parser) WithKnown(known []Known) *Parser {
	p.known = known
	return p
}

// WithFiller replaces the filler words stripped before known lookup.
func (p *Parser) WithFiller(words []string) *Parser {
	p.filler = textnorm.WordSet(words)
	return p
}

var std = NewParser()

// Parse infers a conversion from a description with the default parser.
func Parse(description string) (Conversion, bool) {
	return std.Parse(description)
}

// Parse infers a conversion from a product description.
// It returns false when nothing matches.
func (p *Parser) Parse(description string) (Conversion, bool) {
	return p.ParseFor(description, "")
}

// ParseFor is Parse with the invoice unit printed on the line, which
// takes precedence over the rule's default invoice unit.
func (p *Parser) ParseFor(description, invoiceUnit string) (Conversion, bool) {
	for _, r := range p.rules {
		m := r.Pattern.FindStringSubmatch(description)
		if m == nil {
			continue
		}
		c, ok := r.Convert(m)
		if !ok {
			continue
		}
		c.InvoiceUnit = r.InvoiceUnit
		if invoiceUnit != "" {
			c.InvoiceUnit = invoiceUnit
		}
		c.Source = r.Name
		return c, true
	}

	name := p.NormalizeName(description)
	if name == "" {
		return Conversion{}, false
	}
	var best *Known
	for i, k := range p.known {
		if k.Factor <= 0 || k.Keyword == "" || !hasPhrase(name, k.Keyword) {
			continue
		}
		if best == nil || len(k.Keyword) > len(best.Keyword) {
			best = &p.known[i]
		}
	}
	if best == nil {
		return Conversion{}, false
	}
	return Conversion{
		InvoiceUnit: best.InvoiceUnit,
		Factor:      best.Factor,
		BaseUnit:    best.BaseUnit,
		Notes:       best.Notes,
		Source:      "known:" + best.Keyword,
	}, true
}

// hasPhrase reports whether keyword appears in name as whole words,
// allowing a plural "s" or "es" on the last word.
func hasPhrase(name, keyword string) bool {
	padded := " " + name + " "
	for _, suffix := range []string{"", "s", "es"} {
		if strings.Contains(padded, " "+keyword+suffix+" ") {
			return true
		}
	}
	return false
}

// NormalizeName lowercases, strips punctuation, filler words, grade
// letters and weight tokens.
func (p *Parser) NormalizeName(name string) string {
	s := textnorm.Alnum(name)
	s = textnorm.DropWords(s, p.filler)
	return textnorm.DropSizeTokens(s)
}

// ===== RULES =====

var (
	multiPack  = regexp.MustCompile(`(?i)(\d+)\s*x\s*(\d+(?:\.\d+)?)\s*(G|KG|ML|L|OZ|LB|LBS)\b`)
	unitPack   = regexp.MustCompile(`(?i)(\d+)\s*x\s*(\d+)\s*UN\b`)
	bagWeight  = regexp.MustCompile(`(?i)\((\d+(?:\.\d+)?)\s*(LB|LBS|KG|G|OZ)\)`)
	sizeCount  = regexp.MustCompile(`(?i)SIZE\s*(\d+)`)
	bareWeight = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(KG|G|LB|LBS|OZ|ML|L)\b`)
)

// Pack multipliers into grams and milliliters.
const (
	gramsPerKilogram = 1000.0
	gramsPerPound    = 453.592
	gramsPerOunce    = 28.3495
	mlPerLiter       = 1000.0
)

// DefaultRules returns the pattern strategies in precedence order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "multi_pack",
			Pattern:     multiPack,
			InvoiceUnit: "box",
			Convert: func(m []string) (Conversion, bool) {
				count, err1 := strconv.ParseFloat(m[1], 64)
				size, err2 := strconv.ParseFloat(m[2], 64)
				if err1 != nil || err2 != nil {
					return Conversion{}, false
				}
				per, base, label := toBase(m[3])
				return Conversion{
					Factor:   count * size * per,
					BaseUnit: base,
					Notes:    fmt.Sprintf("%sx%s%s", num(count), num(size), label),
				}, true
			},
		},
		{
			Name:        "unit_pack",
			Pattern:     unitPack,
			InvoiceUnit: "box",
			Convert: func(m []string) (Conversion, bool) {
				a, err1 := strconv.ParseFloat(m[1], 64)
				b, err2 := strconv.ParseFloat(m[2], 64)
				if err1 != nil || err2 != nil {
					return Conversion{}, false
				}
				return Conversion{
					Factor:   a * b,
					BaseUnit: units.WholeUnit,
					Notes:    fmt.Sprintf("%sx%s units", m[1], m[2]),
				}, true
			},
		},
		{
			Name:        "bag_weight",
			Pattern:     bagWeight,
			InvoiceUnit: "bag",
			Convert: func(m []string) (Conversion, bool) {
				size, err := strconv.ParseFloat(m[1], 64)
				if err != nil {
					return Conversion{}, false
				}
				per, base, label := toBase(m[2])
				return Conversion{
					Factor:   size * per,
					BaseUnit: base,
					Notes:    fmt.Sprintf("%s%s bag", num(size), label),
				}, true
			},
		},
		{
			Name:        "size_count",
			Pattern:     sizeCount,
			InvoiceUnit: "box",
			Convert: func(m []string) (Conversion, bool) {
				n, err := strconv.ParseFloat(m[1], 64)
				if err != nil || n <= 0 {
					return Conversion{}, false
				}
				return Conversion{
					Factor:   n,
					BaseUnit: units.WholeUnit,
					Notes:    fmt.Sprintf("~%s count per box", m[1]),
				}, true
			},
		},
		{
			Name:        "bare_weight",
			Pattern:     bareWeight,
			InvoiceUnit: "bag",
			Convert: func(m []string) (Conversion, bool) {
				size, err := strconv.ParseFloat(m[1], 64)
				if err != nil {
					return Conversion{}, false
				}
				per, base, label := toBase(m[2])
				return Conversion{
					Factor:   size * per,
					BaseUnit: base,
					Notes:    num(size) + label,
				}, true
			},
		},
	}
}

// toBase returns the multiplier into the base unit, the base unit and
// the label used in notes.
func toBase(unit string) (float64, units.Unit, string) {
	switch strings.ToUpper(unit) {
	case "KG":
		return gramsPerKilogram, units.Gram, "kg"
	case "LB", "LBS":
		return gramsPerPound, units.Gram, "lbs"
	case "OZ":
		return gramsPerOunce, units.Gram, "oz"
	case "ML":
		return 1, units.Milliliter, "mL"
	case "L":
		return mlPerLiter, units.Milliliter, "L"
	default:
		return 1, units.Gram, "g"
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
