package matching

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/spigell/fruit-matcher/internal/fruit"
)

func TestDirectionalScoreWithoutPreferencesIsBase(t *testing.T) {
	t.Parallel()

	seeker := &fruit.Fruit{Type: fruit.TypeApple}
	candidate := &fruit.Fruit{
		Type: fruit.TypeOrange,
		Attributes: fruit.Attributes{
			Size:         fruit.Float(3),
			Weight:       fruit.Float(120),
			HasStem:      fruit.Bool(true),
			HasWorm:      fruit.Bool(true),
			ShineFactor:  fruit.Shine(fruit.ShineDull),
			HasChemicals: fruit.Bool(true),
		},
	}

	if got := DirectionalScore(seeker, candidate); got != BaseScore {
		t.Fatalf("expected %v, got %v", BaseScore, got)
	}
	if got := MutualScore(seeker, candidate); got != 50.0 {
		t.Fatalf("expected mutual score 50.0, got %v", got)
	}
}

func TestDirectionalScoreMatchingCandidate(t *testing.T) {
	t.Parallel()

	seeker := &fruit.Fruit{
		Type: fruit.TypeApple,
		Preferences: fruit.Preferences{
			Size:        &fruit.Range{Min: fruit.Float(7), Max: fruit.Float(10)},
			Weight:      &fruit.Range{Min: fruit.Float(180), Max: fruit.Float(220)},
			HasWorm:     fruit.Bool(false),
			ShineFactor: fruit.ShineSet{fruit.ShineShiny, fruit.ShineExtraShiny},
		},
	}
	candidate := &fruit.Fruit{
		Type: fruit.TypeOrange,
		Attributes: fruit.Attributes{
			Size:        fruit.Float(8),
			Weight:      fruit.Float(195),
			HasWorm:     fruit.Bool(false),
			ShineFactor: fruit.Shine(fruit.ShineShiny),
		},
	}

	got := DirectionalScore(seeker, candidate)
	if got <= 60 {
		t.Fatalf("expected score above 60, got %v", got)
	}
	// 50 + 10 (size) + 11.25 (weight) + 15 (worm) + 12 (shine)
	if !approxEqual(got, 98.25) {
		t.Fatalf("expected 98.25, got %v", got)
	}

	breakdown := Breakdown(seeker.Preferences, candidate.Attributes)
	if len(breakdown) != 4 {
		t.Fatalf("expected 4 contributions, got %+v", breakdown)
	}
	for _, c := range breakdown {
		if c.Points <= 0 {
			t.Fatalf("expected only positive contributions, got %+v", c)
		}
	}
}

func TestDirectionalScoreIsClamped(t *testing.T) {
	t.Parallel()

	picky := &fruit.Fruit{
		Type: fruit.TypeApple,
		Preferences: fruit.Preferences{
			Size:         &fruit.Range{Min: fruit.Float(9)},
			Weight:       &fruit.Range{Max: fruit.Float(50)},
			HasStem:      fruit.Bool(true),
			HasLeaf:      fruit.Bool(true),
			HasWorm:      fruit.Bool(false),
			ShineFactor:  fruit.ShineSet{fruit.ShineExtraShiny},
			HasChemicals: fruit.Bool(false),
		},
	}
	awful := &fruit.Fruit{
		Type: fruit.TypeOrange,
		Attributes: fruit.Attributes{
			Size:         fruit.Float(1),
			Weight:       fruit.Float(300),
			HasStem:      fruit.Bool(false),
			HasLeaf:      fruit.Bool(false),
			HasWorm:      fruit.Bool(true),
			ShineFactor:  fruit.Shine(fruit.ShineDull),
			HasChemicals: fruit.Bool(true),
		},
	}
	perfect := &fruit.Fruit{
		Type: fruit.TypeOrange,
		Attributes: fruit.Attributes{
			Size:         fruit.Float(9),
			Weight:       fruit.Float(50),
			HasStem:      fruit.Bool(true),
			HasLeaf:      fruit.Bool(true),
			HasWorm:      fruit.Bool(false),
			ShineFactor:  fruit.Shine(fruit.ShineExtraShiny),
			HasChemicals: fruit.Bool(false),
		},
	}

	if got := DirectionalScore(picky, awful); got != MinScore {
		t.Fatalf("expected clamp to %v, got %v", MinScore, got)
	}
	if got := DirectionalScore(picky, perfect); got != MaxScore {
		t.Fatalf("expected clamp to %v, got %v", MaxScore, got)
	}

	// One direction at zero zeroes the mutual score whatever the other says.
	if got := MutualScore(picky, awful); got != 0 {
		t.Fatalf("expected mutual score 0, got %v", got)
	}
	if got := MutualScore(awful, picky); got != 0 {
		t.Fatalf("expected mutual score 0, got %v", got)
	}
}

func TestCombinePanicsOnNegativeScore(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on negative directional score")
		}
	}()
	combine(-1, 50)
}

func TestClampPanicsOnNaN(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on NaN directional score")
		}
	}()
	clamp(math.NaN())
}

func TestScoresStayInRangeForHugeFiniteBounds(t *testing.T) {
	t.Parallel()

	seeker := &fruit.Fruit{
		Type:        fruit.TypeApple,
		Attributes:  fruit.Attributes{Weight: fruit.Float(150)},
		Preferences: fruit.Preferences{Weight: &fruit.Range{Min: fruit.Float(-math.MaxFloat64), Max: fruit.Float(math.MaxFloat64)}},
	}
	candidate := &fruit.Fruit{
		Type:        fruit.TypeOrange,
		Attributes:  fruit.Attributes{Weight: fruit.Float(195)},
		Preferences: fruit.Preferences{Weight: &fruit.Range{Min: fruit.Float(-math.MaxFloat64), Max: fruit.Float(math.MaxFloat64)}},
	}
	if err := seeker.Validate(); err != nil {
		t.Fatalf("expected seeker to be valid: %v", err)
	}

	if got := DirectionalScore(seeker, candidate); got != 65 {
		t.Fatalf("expected 65, got %v", got)
	}
	if got := MutualScore(seeker, candidate); got != 65 {
		t.Fatalf("expected mutual 65, got %v", got)
	}
}

func TestScorePropertiesExtremeMagnitudes(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(11, 5))
	extremes := []float64{
		-math.MaxFloat64, math.MaxFloat64,
		-1e308, 1e308,
		-math.SmallestNonzeroFloat64, math.SmallestNonzeroFloat64,
		-1e-308, 1e-308,
		0, 7, 195,
	}
	pick := func() *float64 {
		if rng.IntN(5) == 0 {
			return nil
		}
		return fruit.Float(extremes[rng.IntN(len(extremes))])
	}
	window := func() *fruit.Range {
		r := &fruit.Range{Min: pick(), Max: pick()}
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			r.Min, r.Max = r.Max, r.Min
		}
		return r
	}

	for i := 0; i < 2000; i++ {
		a := randomFruit(rng, fruit.TypeApple)
		b := randomFruit(rng, fruit.TypeOrange)
		a.Attributes.Size, a.Attributes.Weight = pick(), pick()
		b.Attributes.Size, b.Attributes.Weight = pick(), pick()
		a.Preferences.Size, a.Preferences.Weight = window(), window()
		b.Preferences.Size, b.Preferences.Weight = window(), window()

		if err := a.Validate(); err != nil {
			t.Fatalf("generated an invalid fruit: %v", err)
		}

		ab := DirectionalScore(a, b)
		ba := DirectionalScore(b, a)
		if !(ab >= MinScore && ab <= MaxScore) || !(ba >= MinScore && ba <= MaxScore) {
			t.Fatalf("directional score out of range: %v, %v (prefs %+v / %+v)", ab, ba, a.Preferences, b.Preferences)
		}
		if mutual := MutualScore(a, b); !(mutual >= MinScore && mutual <= MaxScore) {
			t.Fatalf("mutual score out of range: %v", mutual)
		}
	}
}

func TestCombineRoundsToOneDecimal(t *testing.T) {
	t.Parallel()

	// sqrt(25 * 50) = 35.3553...
	if got := combine(25, 50); got != 35.4 {
		t.Fatalf("expected 35.4, got %v", got)
	}
	if got := combine(50, 50); got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
}

func TestScoreProperties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 42))

	for i := 0; i < 2000; i++ {
		a := randomFruit(rng, fruit.TypeApple)
		b := randomFruit(rng, fruit.TypeOrange)

		ab := DirectionalScore(a, b)
		ba := DirectionalScore(b, a)
		if ab < MinScore || ab > MaxScore || ba < MinScore || ba > MaxScore {
			t.Fatalf("directional score out of range: %v, %v", ab, ba)
		}

		mutual := MutualScore(a, b)
		if mutual < MinScore || mutual > MaxScore {
			t.Fatalf("mutual score out of range: %v", mutual)
		}
		if mutual != MutualScore(b, a) {
			t.Fatalf("mutual score is not symmetric: %v vs %v", mutual, MutualScore(b, a))
		}
		if (ab == 0 || ba == 0) && mutual != 0 {
			t.Fatalf("expected zero mutual score when a direction is zero, got %v", mutual)
		}
	}
}

func TestUnknownAttributeEqualsAbsentPreference(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(3, 9))

	type dimension struct {
		name        string
		forgetValue func(*fruit.Attributes)
		dropPref    func(*fruit.Preferences)
	}
	dims := []dimension{
		{"size", func(a *fruit.Attributes) { a.Size = nil }, func(p *fruit.Preferences) { p.Size = nil }},
		{"weight", func(a *fruit.Attributes) { a.Weight = nil }, func(p *fruit.Preferences) { p.Weight = nil }},
		{"hasStem", func(a *fruit.Attributes) { a.HasStem = nil }, func(p *fruit.Preferences) { p.HasStem = nil }},
		{"hasLeaf", func(a *fruit.Attributes) { a.HasLeaf = nil }, func(p *fruit.Preferences) { p.HasLeaf = nil }},
		{"hasWorm", func(a *fruit.Attributes) { a.HasWorm = nil }, func(p *fruit.Preferences) { p.HasWorm = nil }},
		{"shineFactor", func(a *fruit.Attributes) { a.ShineFactor = nil }, func(p *fruit.Preferences) { p.ShineFactor = nil }},
		{"hasChemicals", func(a *fruit.Attributes) { a.HasChemicals = nil }, func(p *fruit.Preferences) { p.HasChemicals = nil }},
	}

	for i := 0; i < 500; i++ {
		seeker := randomFruit(rng, fruit.TypeApple)
		candidate := randomFruit(rng, fruit.TypeOrange)

		for _, d := range dims {
			unknown := *candidate
			d.forgetValue(&unknown.Attributes)

			noPref := *seeker
			d.dropPref(&noPref.Preferences)

			withUnknown := DirectionalScore(seeker, &unknown)
			withoutPref := DirectionalScore(&noPref, &unknown)
			if withUnknown != withoutPref {
				t.Fatalf("%s: unknown value changed the score (%v vs %v)", d.name, withUnknown, withoutPref)
			}
		}
	}
}

func randomFruit(rng *rand.Rand, typ fruit.Type) *fruit.Fruit {
	maybeFloat := func(lo, hi float64) *float64 {
		if rng.IntN(4) == 0 {
			return nil
		}
		return fruit.Float(lo + rng.Float64()*(hi-lo))
	}
	maybeBool := func() *bool {
		if rng.IntN(3) == 0 {
			return nil
		}
		return fruit.Bool(rng.IntN(2) == 0)
	}
	maybeRange := func(lo, hi float64) *fruit.Range {
		if rng.IntN(3) == 0 {
			return nil
		}
		r := &fruit.Range{Min: maybeFloat(lo, hi), Max: maybeFloat(lo, hi)}
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			r.Min, r.Max = r.Max, r.Min
		}
		return r
	}

	var shine *fruit.ShineFactor
	if rng.IntN(4) != 0 {
		shine = fruit.Shine(fruit.ShineFactors[rng.IntN(len(fruit.ShineFactors))])
	}
	var accepted fruit.ShineSet
	for _, s := range fruit.ShineFactors {
		if rng.IntN(3) == 0 {
			accepted = append(accepted, s)
		}
	}

	// Attribute values deliberately reach outside the usual size (0-10) and weight (0-300) scales.
	return &fruit.Fruit{
		Type: typ,
		Attributes: fruit.Attributes{
			Size:         maybeFloat(-5, 20),
			Weight:       maybeFloat(-50, 500),
			HasStem:      maybeBool(),
			HasLeaf:      maybeBool(),
			HasWorm:      maybeBool(),
			ShineFactor:  shine,
			HasChemicals: maybeBool(),
		},
		Preferences: fruit.Preferences{
			Size:         maybeRange(0, 10),
			Weight:       maybeRange(0, 300),
			HasStem:      maybeBool(),
			HasLeaf:      maybeBool(),
			HasWorm:      maybeBool(),
			ShineFactor:  accepted,
			HasChemicals: maybeBool(),
		},
	}
}
