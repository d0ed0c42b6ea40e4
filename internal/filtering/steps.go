package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/fruit-matcher/internal/fruit"
)

const (
	OppositeTypeName   = "opposite_type"
	ExcludeFileName    = "exclude_file"
	MatchedHistoryName = "matched_history"
)

type oppositeTypeFilter struct {
	toggle
}

// NewOppositeType creates a filter that keeps only fruits of the other type
// and drops the seeker itself.
func NewOppositeType() Filter {
	return &oppositeTypeFilter{}
}

func (f *oppositeTypeFilter) Name() string { return OppositeTypeName }

func (f *oppositeTypeFilter) Validate(*Config) error { return nil }

func (f *oppositeTypeFilter) Apply(_ context.Context, deps Deps, pool *fruit.Fruits) (*fruit.Fruits, Step, error) {
	initial := pool.Len()
	if !deps.Seeker.Type.Valid() {
		return pool, Step{}, fmt.Errorf("seeker %s has unknown type %q", deps.Seeker.ID, deps.Seeker.Type)
	}

	excluded := pool.KeepOnly(fruit.TypeField, string(deps.Seeker.Type.Opposite()))
	if deps.Seeker.ID != "" {
		excluded = append(excluded, pool.Exclude(fruit.IDField, []string{deps.Seeker.ID})...)
	}

	if len(excluded) > 0 {
		deps.Logger.Debug("excluding fruits of the seeker's own type",
			zap.Strings("excluded_fruits", excluded),
			zap.Int("fruits_left", pool.Len()),
		)
	}

	return pool, Step{Initial: initial, Dropped: len(excluded), Left: pool.Len()}, nil
}

type excludeFileFilter struct {
	toggle
	path string
}

// NewExcludeFile creates a filter that removes fruits listed in the exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return ExcludeFileName }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, pool *fruit.Fruits) (*fruit.Fruits, Step, error) {
	initial := pool.Len()
	if f.path == "" {
		return pool, Step{Initial: initial, Left: initial}, nil
	}

	excluded, err := fruit.GetExcludedFruitsFromFile(f.path)
	if err != nil {
		return pool, Step{}, fmt.Errorf("getting excluded fruits from file: %w", err)
	}

	removed := pool.Exclude(fruit.IDField, excluded.FruitIDs())
	if len(removed) > 0 {
		deps.Logger.Info("excluding fruits based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_fruits", removed),
			zap.Int("fruits_left", pool.Len()),
		)
	}

	return pool, Step{Initial: initial, Dropped: len(removed), Left: pool.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type matchedHistoryFilter struct {
	toggle
}

// NewMatchedHistory creates a filter that removes candidates already offered to the seeker.
func NewMatchedHistory() Filter {
	return &matchedHistoryFilter{}
}

func (f *matchedHistoryFilter) Name() string { return MatchedHistoryName }

func (f *matchedHistoryFilter) Validate(*Config) error { return nil }

func (f *matchedHistoryFilter) Apply(ctx context.Context, deps Deps, pool *fruit.Fruits) (*fruit.Fruits, Step, error) {
	initial := pool.Len()
	if deps.History == nil {
		deps.Logger.Debug("match history is not configured; skipping filter")
		return pool, Step{Initial: initial, Left: initial}, nil
	}

	ids, err := deps.History.MatchedCandidateIDs(ctx, deps.Seeker.ID)
	if err != nil {
		return pool, Step{}, fmt.Errorf("get match history: %w", err)
	}

	removed := pool.Exclude(fruit.IDField, ids)
	if len(removed) > 0 {
		deps.Logger.Info("excluding already matched fruits",
			zap.Strings("excluded_fruits", removed),
			zap.Int("fruits_left", pool.Len()),
		)
	}

	return pool, Step{Initial: initial, Dropped: len(removed), Left: pool.Len()}, nil
}

func (f *matchedHistoryFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
