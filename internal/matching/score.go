package matching

import (
	"fmt"
	"math"

	"github.com/spigell/fruit-matcher/internal/fruit"
)

// Dimension names the seven scored attributes as they appear on the wire.
type Dimension string

const (
	DimensionSize         Dimension = "size"
	DimensionWeight       Dimension = "weight"
	DimensionHasStem      Dimension = "hasStem"
	DimensionHasLeaf      Dimension = "hasLeaf"
	DimensionHasWorm      Dimension = "hasWorm"
	DimensionShineFactor  Dimension = "shineFactor"
	DimensionHasChemicals Dimension = "hasChemicals"
)

// Contribution is the signed number of points one dimension adds to a directional score.
type Contribution struct {
	Dimension Dimension `json:"dimension"`
	Points    float64   `json:"points"`
}

// Breakdown lists the contribution of every dimension the seeker has a preference on,
// in a fixed dimension order. Dimensions without a preference are omitted.
func Breakdown(prefs fruit.Preferences, attrs fruit.Attributes) []Contribution {
	var out []Contribution
	add := func(d Dimension, active bool, points float64) {
		if active {
			out = append(out, Contribution{Dimension: d, Points: points})
		}
	}

	add(DimensionSize, prefs.Size.Active(), ScoreRange(prefs.Size, attrs.Size))
	add(DimensionWeight, prefs.Weight.Active(), ScoreRange(prefs.Weight, attrs.Weight))
	add(DimensionHasStem, prefs.HasStem != nil, ScoreBool(prefs.HasStem, attrs.HasStem))
	add(DimensionHasLeaf, prefs.HasLeaf != nil, ScoreBool(prefs.HasLeaf, attrs.HasLeaf))
	add(DimensionHasWorm, prefs.HasWorm != nil, ScoreBool(prefs.HasWorm, attrs.HasWorm))
	add(DimensionShineFactor, len(prefs.ShineFactor) > 0, ScoreShine(prefs.ShineFactor, attrs.ShineFactor))
	add(DimensionHasChemicals, prefs.HasChemicals != nil, ScoreBool(prefs.HasChemicals, attrs.HasChemicals))

	return out
}

// DirectionalScore is how well candidate fits seeker's preferences, in [0, 100].
func DirectionalScore(seeker, candidate *fruit.Fruit) float64 {
	total := BaseScore
	for _, c := range Breakdown(seeker.Preferences, candidate.Attributes) {
		total += c.Points
	}
	return clamp(total)
}

// MutualScore combines both directions with a geometric mean rounded to one decimal.
// It is symmetric in a and b.
func MutualScore(a, b *fruit.Fruit) float64 {
	return combine(DirectionalScore(a, b), DirectionalScore(b, a))
}

func combine(ab, ba float64) float64 {
	if ab < 0 || ba < 0 {
		panic(fmt.Sprintf("matching: negative directional score (%v, %v)", ab, ba))
	}
	return round1(math.Sqrt(ab * ba))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		panic("matching: directional score is NaN")
	}
	return math.Min(MaxScore, math.Max(MinScore, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
