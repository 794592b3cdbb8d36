// Package textnorm folds free-text product names into comparable forms.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// StripDiacritics removes combining marks, so "haché" becomes "hache".
func StripDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// Alnum lowercases, folds accents, turns everything outside [a-z0-9]
// into spaces and collapses whitespace.
func Alnum(s string) string {
	s = strings.ToLower(StripDiacritics(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return Collapse(b.String())
}

// Collapse trims and squeezes runs of whitespace to single spaces.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DropWords removes whole words found in the set.
func DropWords(s string, drop map[string]bool) string {
	words := strings.Fields(s)
	out := words[:0]
	for _, w := range words {
		if !drop[w] {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

// WordSet builds a lookup set from a word list.
func WordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[Alnum(w)] = true
	}
	return set
}

// IsSizeToken reports whether a word is a weight or pack size token such as
// "12x1kg", "454g" or "5kg".
func IsSizeToken(w string) bool {
	i := 0
	for i < len(w) && w[i] >= '0' && w[i] <= '9' {
		i++
	}
	if i == 0 || i == len(w) {
		return false
	}
	rest := w[i:]
	if rest[0] == 'x' {
		j := 1
		for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
			j++
		}
		if j > 1 {
			return allLetters(rest[j:])
		}
	}
	return allLetters(rest)
}

func allLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}

// DropSizeTokens removes weight and pack size words.
func DropSizeTokens(s string) string {
	words := strings.Fields(s)
	out := words[:0]
	for _, w := range words {
		if !IsSizeToken(w) {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}
