package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/fruit-matcher/internal/ai"
	"github.com/spigell/fruit-matcher/internal/filtering"
	"github.com/spigell/fruit-matcher/internal/fruit"
	"github.com/spigell/fruit-matcher/internal/logger"
	"github.com/spigell/fruit-matcher/internal/matching"
	"github.com/spigell/fruit-matcher/internal/metrics"
)

// ErrInvalidPair is returned when two fruits cannot be matched with each other.
var ErrInvalidPair = errors.New("fruits cannot be paired")

// Store is the persistence the matchmaker needs.
type Store interface {
	GetFruit(ctx context.Context, id string) (*fruit.Fruit, error)
	ListFruits(ctx context.Context, typ fruit.Type) (*fruit.Fruits, error)
	SaveMatches(ctx context.Context, seekerID string, matches []matching.Match) error
	MatchedCandidateIDs(ctx context.Context, seekerID string) ([]string, error)
}

// Config holds the matchmaker settings.
type Config struct {
	Limit       int
	ExcludeFile string
}

// Options tune a single Match call.
type Options struct {
	// Limit overrides Config.Limit when positive.
	Limit          int
	IncludeMatched bool
	// Record stores the returned matches in the seeker's history.
	Record bool
}

// Result is a ranked list of matches plus how the pool was narrowed down.
type Result struct {
	Seeker  *fruit.Fruit       `json:"seeker"`
	Matches []matching.Match   `json:"matches"`
	Filters []filtering.Status `json:"-"`
}

// Service loads pools from the store, filters and ranks them.
type Service struct {
	store     Store
	ranker    *matching.Ranker
	explainer ai.Explainer
	cfg       Config
	logger    *zap.Logger
}

// New creates a Service. explainer may be nil when explanations are disabled.
func New(store Store, ranker *matching.Ranker, explainer ai.Explainer, cfg Config, l *zap.Logger) *Service {
	if cfg.Limit <= 0 {
		cfg.Limit = matching.DefaultLimit
	}
	if ranker == nil {
		ranker = matching.NewRanker(1)
	}

	return &Service{
		store:     store,
		ranker:    ranker,
		explainer: explainer,
		cfg:       cfg,
		logger:    logger.WithFields(l),
	}
}

// Match ranks every eligible candidate for seekerID.
func (s *Service) Match(ctx context.Context, seekerID string, opts Options) (*Result, error) {
	seeker, err := s.store.GetFruit(ctx, seekerID)
	if err != nil {
		return nil, err
	}

	pool, err := s.store.ListFruits(ctx, seeker.Type.Opposite())
	if err != nil {
		return nil, err
	}

	start := time.Now()

	steps := filtering.Default()
	if opts.IncludeMatched {
		filtering.DisableByName(steps, filtering.MatchedHistoryName, "include matched requested")
	}

	log := logger.WithFields(s.logger, logger.MatchFields(seeker.ID, "")...)
	pool, err = filtering.Run(ctx, &filtering.Config{ExcludeFile: s.cfg.ExcludeFile}, filtering.Deps{
		Logger:  log,
		Seeker:  seeker,
		History: s.store,
	}, steps, pool)
	if err != nil {
		return nil, fmt.Errorf("filter candidates: %w", err)
	}

	limit := s.cfg.Limit
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	matches := s.ranker.FindTopMatches(seeker, pool.Items, limit)

	metrics.RankingPoolSize.Observe(float64(pool.Len()))
	metrics.RankingDuration.Observe(time.Since(start).Seconds())

	log.Info("ranked candidates",
		zap.Int("pool", pool.Len()),
		zap.Int("limit", limit),
		zap.Int("matches", len(matches)),
	)

	if opts.Record {
		if err := s.store.SaveMatches(ctx, seeker.ID, matches); err != nil {
			return nil, fmt.Errorf("record matches: %w", err)
		}
	}

	return &Result{Seeker: seeker, Matches: matches, Filters: filtering.Describe(steps)}, nil
}

// Explained is a scored pair with its satisfied preferences and the LLM's account of it.
type Explained struct {
	matching.Match
	Reasons     []string        `json:"reasons"`
	Explanation *ai.Explanation `json:"explanation"`
}

// Explain scores candidateID against seekerID and asks the LLM why they suit each other.
func (s *Service) Explain(ctx context.Context, seekerID, candidateID string) (*Explained, error) {
	if s.explainer == nil {
		return nil, ai.ErrDisabled
	}

	seeker, err := s.store.GetFruit(ctx, seekerID)
	if err != nil {
		return nil, err
	}
	candidate, err := s.store.GetFruit(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	if seeker.ID == candidate.ID || candidate.Type != seeker.Type.Opposite() {
		return nil, fmt.Errorf("%s (%s) and %s (%s): %w", seeker.ID, seeker.Type, candidate.ID, candidate.Type, ErrInvalidPair)
	}

	match := matching.Pair(seeker, candidate)
	explanation, err := s.ExplainMatch(ctx, seeker, match)
	if err != nil {
		return nil, err
	}

	return &Explained{
		Match:       match,
		Reasons:     matching.Reasons(seeker, match),
		Explanation: explanation,
	}, nil
}

// ExplainMatch explains an already scored match.
func (s *Service) ExplainMatch(ctx context.Context, seeker *fruit.Fruit, match matching.Match) (*ai.Explanation, error) {
	if s.explainer == nil {
		return nil, ai.ErrDisabled
	}
	return s.explainer.Explain(ctx, seeker, match)
}

// ExplanationsEnabled reports whether an LLM provider is configured.
func (s *Service) ExplanationsEnabled() bool {
	return s.explainer != nil
}
