package matching

import (
	"math"

	"github.com/spigell/fruit-matcher/internal/fruit"
)

// Scoring policy. Every contribution is additive on top of BaseScore.
const (
	BaseScore = 50.0
	MinScore  = 0.0
	MaxScore  = 100.0

	RangeViolationPenalty = -20.0
	RangeProximityBonus   = 15.0
	// RangeOneSidedWindow is the decay window above min (or below max) when only
	// one bound is set. It is not scaled to the attribute, so it is much tighter
	// for weight than for size.
	RangeOneSidedWindow = 5.0

	BoolMatchBonus      = 15.0
	BoolMismatchPenalty = -25.0

	EnumMatchBonus      = 12.0
	EnumMismatchPenalty = -15.0
)

// ScoreRange scores a numeric attribute against an optional {min, max} window.
func ScoreRange(pref *fruit.Range, value *float64) float64 {
	if !pref.Active() {
		return 0
	}
	if value == nil {
		return 0
	}

	v := *value
	if pref.Min != nil && v < *pref.Min {
		return RangeViolationPenalty
	}
	if pref.Max != nil && v > *pref.Max {
		return RangeViolationPenalty
	}

	switch {
	case pref.Min != nil && pref.Max != nil:
		// Halve before subtracting so bounds near ±MaxFloat64 do not overflow.
		lo, hi := *pref.Min, *pref.Max
		halfWidth := hi/2 - lo/2
		if halfWidth <= 0 {
			// min == max and v is inside, so v sits exactly on the midpoint.
			return RangeProximityBonus
		}
		mid := lo/2 + hi/2
		return decay(math.Abs(v-mid) / halfWidth)
	case pref.Min != nil:
		return decay((v - *pref.Min) / RangeOneSidedWindow)
	default:
		return decay((*pref.Max - v) / RangeOneSidedWindow)
	}
}

// decay turns a distance ratio into a bonus: full at 0, nothing from 1 on.
// A NaN ratio only comes from non-finite input and earns nothing.
func decay(ratio float64) float64 {
	if math.IsNaN(ratio) {
		return 0
	}
	return RangeProximityBonus * math.Max(0, 1-ratio)
}

// ScoreBool scores an exact-match boolean preference. A mismatch costs more than a match earns.
func ScoreBool(pref *bool, value *bool) float64 {
	if pref == nil {
		return 0
	}
	if value == nil {
		return 0
	}
	if *pref == *value {
		return BoolMatchBonus
	}
	return BoolMismatchPenalty
}

// ScoreShine scores the shine factor against the set of acceptable values.
func ScoreShine(pref fruit.ShineSet, value *fruit.ShineFactor) float64 {
	if len(pref) == 0 {
		return 0
	}
	if value == nil {
		return 0
	}
	if pref.Contains(*value) {
		return EnumMatchBonus
	}
	return EnumMismatchPenalty
}
