// Package confidence provides match-score tiers and score math utilities.
package confidence

// Tier is a categorical bucket for a similarity score.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
	TierNone   Tier = "none"
)

// Tier boundaries for name matching.
const (
	HighThreshold   = 0.85
	MediumThreshold = 0.55
	MinThreshold    = 0.25
)

// Classify maps a best score onto a tier.
func Classify(score float64) Tier {
	switch {
	case AboveThreshold(score, HighThreshold):
		return TierHigh
	case AboveThreshold(score, MediumThreshold):
		return TierMedium
	case AboveThreshold(score, MinThreshold):
		return TierLow
	default:
		return TierNone
	}
}

// Rank orders tiers: none < low < medium < high.
func (t Tier) Rank() int {
	switch t {
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	default:
		return 0
	}
}

// AutoResolves reports whether a match in this tier may be applied
// without clarification.
func (t Tier) AutoResolves() bool {
	return t == TierHigh
}

// NeedsClarification reports whether the match must be confirmed first.
func (t Tier) NeedsClarification() bool {
	return t == TierMedium || t == TierLow
}

// AboveThreshold checks if a score meets a minimum requirement.
func AboveThreshold(score, threshold float64) bool {
	return score >= threshold
}

// Clamp ensures a score is in the valid range [0, 1].
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Ratio returns min(a,b)/max(a,b), or 0 when both are zero.
func Ratio(a, b int) float64 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi == 0 {
		return 0
	}
	return float64(lo) / float64(hi)
}
