// Package matching scores free-text invoice product names against
// canonical ingredient names.
package matching

import (
	"sort"
	"strings"

	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/confidence"
	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/textnorm"
)

// Tier scores. Each tier short-circuits the ones below it.
const (
	ScoreExact        = 1.0
	ScoreStemmed      = 0.95
	ScoreSynonym      = 0.9
	ScoreContainsBase = 0.7
	ScoreContainsSpan = 0.2
	LevenshteinMaxLen = 15
	LevenshteinAccept = 0.7
	LevenshteinScale  = 0.85
	OverlapScale      = 0.75
	MaxCandidates     = 5
)

// Matcher scores names using an injected vocabulary.
type Matcher struct {
	filler  map[string]bool
	groupOf map[string][]int
	groups  [][]string
	tiers   []tier
}

// tier is one scoring strategy over the stemmed invoice and ingredient
// names. It reports false when it does not apply.
type tier func(m *Matcher, a, b string) (float64, bool)

// NewMatcher builds a matcher from tables.
func NewMatcher(t Tables) *Matcher {
	m := &Matcher{
		filler:  textnorm.WordSet(t.Filler),
		groupOf: make(map[string][]int),
		tiers:   []tier{stemmedTier, synonymTier, containsTier, levenshteinTier, overlapTier},
	}

	keys := make([]string, 0, len(t.Synonyms))
	for k := range t.Synonyms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		idx := len(m.groups)
		var members []string
		seen := map[string]bool{}
		for _, term := range append([]string{k}, t.Synonyms[k]...) {
			s := m.stem(textnorm.Alnum(term))
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			members = append(members, s)
			m.groupOf[s] = append(m.groupOf[s], idx)
		}
		m.groups = append(m.groups, members)
	}
	return m
}

// Score rates how well an invoice name matches an ingredient name.
// Score(x, x) is 1 for any name with letters or digits. The score is
// not symmetric: pack sizes are only stripped from the invoice side.
func (m *Matcher) Score(invoiceName, ingredientName string) float64 {
	a, b := textnorm.Alnum(invoiceName), textnorm.Alnum(ingredientName)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return ScoreExact
	}
	return m.scoreStemmed(m.StemInvoice(a), m.stem(b))
}

func (m *Matcher) scoreStemmed(a, b string) float64 {
	for _, t := range m.tiers {
		if s, ok := t(m, a, b); ok {
			return confidence.Clamp(s)
		}
	}
	return 0
}

// StemInvoice stems an invoice name: pack sizes, filler words and
// plural endings are removed.
func (m *Matcher) StemInvoice(name string) string {
	return m.stem(textnorm.DropSizeTokens(textnorm.Alnum(name)))
}

// StemIngredient stems an ingredient name: filler words and plural
// endings are removed.
func (m *Matcher) StemIngredient(name string) string {
	return m.stem(textnorm.Alnum(name))
}

func (m *Matcher) stem(normalized string) string {
	words := strings.Fields(normalized)
	out := words[:0]
	for _, w := range words {
		s := singular(w)
		if m.filler[w] || m.filler[s] {
			continue
		}
		out = append(out, s)
	}
	return strings.Join(out, " ")
}

func singular(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}

// expand returns the stem plus every synonym sharing a group with it.
func (m *Matcher) expand(s string) map[string]bool {
	out := map[string]bool{s: true}
	for _, g := range m.groupOf[s] {
		for _, term := range m.groups[g] {
			out[term] = true
		}
	}
	return out
}

// ===== TIERS =====

func stemmedTier(_ *Matcher, a, b string) (float64, bool) {
	if a == b && len(a) > 2 {
		return ScoreStemmed, true
	}
	return 0, false
}

func synonymTier(m *Matcher, a, b string) (float64, bool) {
	if a == "" || b == "" {
		return 0, false
	}
	eb := m.expand(b)
	for term := range m.expand(a) {
		if eb[term] {
			return ScoreSynonym, true
		}
	}
	return 0, false
}

func containsTier(_ *Matcher, a, b string) (float64, bool) {
	if a == "" || b == "" {
		return 0, false
	}
	if !strings.Contains(a, b) && !strings.Contains(b, a) {
		return 0, false
	}
	return ScoreContainsBase + ScoreContainsSpan*confidence.Ratio(len(a), len(b)), true
}

func levenshteinTier(_ *Matcher, a, b string) (float64, bool) {
	if a == "" || b == "" || len(a) > LevenshteinMaxLen || len(b) > LevenshteinMaxLen {
		return 0, false
	}
	sim := Similarity(a, b)
	if sim <= LevenshteinAccept {
		return 0, false
	}
	return sim * LevenshteinScale, true
}

func overlapTier(_ *Matcher, a, b string) (float64, bool) {
	wa, wb := significantWords(a), significantWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0, false
	}

	var exact, partial int
	for _, w := range wa {
		switch {
		case contains(wb, w):
			exact++
		case prefixMatch(w, wb):
			partial++
		}
	}
	if exact == 0 && partial == 0 {
		return 0, false
	}
	score := (float64(exact) + 0.5*float64(partial)) / float64(max(len(wa), len(wb)))
	return score * OverlapScale, true
}

func significantWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		if len(w) >= 2 {
			out = append(out, w)
		}
	}
	return out
}

func contains(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

// prefixMatch reports whether w shares its first 70% with a word in
// words. Only words of four or more characters take part.
func prefixMatch(w string, words []string) bool {
	if len(w) < 4 {
		return false
	}
	for _, x := range words {
		if len(x) < 4 {
			continue
		}
		k := int(0.7 * float64(min(len(w), len(x))))
		if k > 0 && w[:k] == x[:k] {
			return true
		}
	}
	return false
}

// ===== CANDIDATES =====

// FindMatches scores every ingredient against the invoice item and keeps
// the top candidates at or above the acceptance threshold. Equal scores
// keep the input order of the ingredient list.
func (m *Matcher) FindMatches(item api.InvoiceLineItem, ingredients []api.Ingredient) api.MatchResult {
	invoice := textnorm.Alnum(item.ProductName)
	invoiceStem := m.StemInvoice(item.ProductName)

	scored := make([]api.Candidate, 0, len(ingredients))
	for _, ing := range ingredients {
		var s float64
		name := textnorm.Alnum(ing.Name)
		switch {
		case invoice == "" || name == "":
			s = 0
		case invoice == name:
			s = ScoreExact
		default:
			s = m.scoreStemmed(invoiceStem, m.stem(name))
		}
		if confidence.AboveThreshold(s, confidence.MinThreshold) {
			scored = append(scored, api.Candidate{Ingredient: ing, Score: s})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > MaxCandidates {
		scored = scored[:MaxCandidates]
	}

	res := api.MatchResult{
		Item:       item,
		Confidence: confidence.TierNone,
		Candidates: scored,
	}
	if len(scored) == 0 {
		res.Candidates = []api.Candidate{}
		return res
	}

	best := scored[0].Ingredient
	res.Best = &best
	res.Score = scored[0].Score
	res.Confidence = confidence.Classify(res.Score)
	res.NeedsClarification = res.Confidence.NeedsClarification()
	return res
}

// Resolved returns the matched ingredient only when the match may be
// applied without clarification.
func Resolved(r api.MatchResult) *api.Ingredient {
	if r.Best == nil || !r.Confidence.AutoResolves() {
		return nil
	}
	return r.Best
}

var std = NewMatcher(DefaultTables())

// Score rates a pair of names with the default vocabulary.
func Score(invoiceName, ingredientName string) float64 {
	return std.Score(invoiceName, ingredientName)
}

// FindMatches matches an invoice item with the default vocabulary.
func FindMatches(item api.InvoiceLineItem, ingredients []api.Ingredient) api.MatchResult {
	return std.FindMatches(item, ingredients)
}
