package matching

import (
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/spigell/fruit-matcher/internal/fruit"
)

const (
	DefaultLimit = 5
	// Pools smaller than this are scored inline; spawning workers costs more than it saves.
	parallelThreshold = 64
)

// Match pairs a seeker with one candidate. Scores are rounded to one decimal.
type Match struct {
	CandidateID  string       `json:"candidateId"`
	Candidate    *fruit.Fruit `json:"candidate"`
	Score        float64      `json:"score"`
	ReverseScore float64      `json:"reverseScore"`
	MutualScore  float64      `json:"mutualScore"`
}

// Ranker scores candidate pools. It holds no state between calls.
type Ranker struct {
	workers int
}

// NewRanker returns a ranker scoring up to workers candidates concurrently.
// workers <= 1 scores sequentially.
func NewRanker(workers int) *Ranker {
	if workers < 1 {
		workers = 1
	}
	return &Ranker{workers: workers}
}

// FindTopMatches ranks candidates with a sequential ranker.
func FindTopMatches(seeker *fruit.Fruit, candidates []*fruit.Fruit, limit int) []Match {
	return NewRanker(1).FindTopMatches(seeker, candidates, limit)
}

// FindTopMatches scores every candidate against seeker in both directions and
// returns at most limit matches ordered by mutual score, highest first. Equal
// mutual scores keep the order of candidates. Candidates are expected to be of
// the opposite type; the ranker does not filter them. A negative limit is
// treated as zero.
func (r *Ranker) FindTopMatches(seeker *fruit.Fruit, candidates []*fruit.Fruit, limit int) []Match {
	if limit <= 0 || len(candidates) == 0 {
		return []Match{}
	}

	matches := make([]Match, len(candidates))
	if r.workers > 1 && len(candidates) >= parallelThreshold {
		var g errgroup.Group
		g.SetLimit(r.workers)
		for i, candidate := range candidates {
			g.Go(func() error {
				matches[i] = Pair(seeker, candidate)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, candidate := range candidates {
			matches[i] = Pair(seeker, candidate)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MutualScore > matches[j].MutualScore
	})

	if limit < len(matches) {
		matches = matches[:limit]
	}
	return matches
}

// Pair scores a single seeker/candidate pair in both directions.
func Pair(seeker, candidate *fruit.Fruit) Match {
	forward := DirectionalScore(seeker, candidate)
	reverse := DirectionalScore(candidate, seeker)

	return Match{
		CandidateID:  candidate.ID,
		Candidate:    candidate,
		Score:        round1(forward),
		ReverseScore: round1(reverse),
		MutualScore:  combine(forward, reverse),
	}
}
