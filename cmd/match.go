package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spigell/fruit-matcher/internal/fruit"
	"github.com/spigell/fruit-matcher/internal/matching"
	"github.com/spigell/fruit-matcher/internal/matchmaker"
)

const (
	PromptReasons          = "Show reasons"
	PromptExplain          = "Explain a match"
	PromptMatchesToFile    = "Dump matches to file"
	PromptAppendToExclude  = "Append all matches to exclude file"
	PromptExit             = "Exit"
	PromptBack             = "back"
	excludedFromPromptNote = "excluded from match prompt"
)

var errExit = errors.New("exit requested")

var matchCmd = &cobra.Command{
	Use:   "match SEEKER_ID",
	Short: "Find the best matches for a stored fruit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runMatch(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().IntP("limit", "l", 0, "maximum number of matches, 0 or less returns none (default is matching.limit)")
	matchCmd.Flags().BoolP("include-matched", "f", false, "do not exclude candidates already matched to this seeker")
	matchCmd.Flags().BoolP("yes", "y", false, "do not ask what to do with the matches")
	matchCmd.Flags().Bool("no-record", false, "do not store the matches in the seeker's history")
}

func runMatch(cmd *cobra.Command, seekerID string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e := setup(ctx)
	defer e.Close()

	limit, none := requestedLimit(cmd.Flags())
	if none {
		if _, err := e.db.GetFruit(ctx, seekerID); err != nil {
			e.logger.Fatal("matching failed", zap.String("seeker_id", seekerID), zap.Error(err))
		}
		e.logger.Info("exiting", zap.String("reason", "limit is 0"))
		return
	}
	includeMatched, _ := cmd.Flags().GetBool("include-matched")
	noRecord, _ := cmd.Flags().GetBool("no-record")
	autoApprove, _ := cmd.Flags().GetBool("yes")

	svc := e.matchmaker(ctx)

	res, err := svc.Match(ctx, seekerID, matchmaker.Options{
		Limit:          limit,
		IncludeMatched: includeMatched,
		Record:         !noRecord,
	})
	if err != nil {
		e.logger.Fatal("matching failed", zap.String("seeker_id", seekerID), zap.Error(err))
	}

	for _, status := range res.Filters {
		e.logger.Debug("filter status",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	if len(res.Matches) == 0 {
		e.logger.Info("exiting", zap.String("reason", "no candidates left after filters"))
		return
	}

	logMatches(e.logger, res.Matches)

	if autoApprove {
		return
	}

	s := &session{
		ctx:         ctx,
		svc:         svc,
		logger:      e.logger,
		seeker:      res.Seeker,
		matches:     res.Matches,
		excludeFile: strings.TrimSpace(e.config.ExcludeFile),
	}

	for {
		items := []string{PromptReasons, PromptMatchesToFile}
		if svc.ExplanationsEnabled() {
			items = append(items, PromptExplain)
		}
		if s.excludeFile != "" && len(s.matches) > 0 {
			items = append(items, PromptAppendToExclude)
		}

		prompt := promptui.Select{
			Label: "What next?",
			Items: append(items, PromptExit),
		}

		_, action, err := prompt.Run()
		if err != nil {
			e.logger.Fatal("exiting", zap.Error(err))
		}

		if err := s.handle(action); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			e.logger.Fatal("exiting", zap.Error(err))
		}
	}
}

// requestedLimit reads --limit. An unset flag defers to matching.limit (limit 0),
// an explicit value of 0 or less asks for no matches at all.
func requestedLimit(fs *pflag.FlagSet) (limit int, none bool) {
	if !fs.Changed("limit") {
		return 0, false
	}
	limit, _ = fs.GetInt("limit")
	if limit <= 0 {
		return 0, true
	}
	return limit, false
}

func logMatches(l *zap.Logger, matches []matching.Match) {
	for i, m := range matches {
		l.Info("match",
			zap.Int("rank", i+1),
			zap.String("candidate_id", m.CandidateID),
			zap.Float64("score", m.Score),
			zap.Float64("reverse_score", m.ReverseScore),
			zap.Float64("mutual_score", m.MutualScore),
		)
	}
}

// session is the state of the interactive prompt after ranking.
type session struct {
	ctx         context.Context
	svc         *matchmaker.Service
	logger      *zap.Logger
	seeker      *fruit.Fruit
	matches     []matching.Match
	excludeFile string
}

func (s *session) handle(action string) error {
	switch action {
	case PromptExit:
		s.logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptReasons:
		for _, m := range s.matches {
			s.logger.Info("reasons",
				zap.String("candidate_id", m.CandidateID),
				zap.Strings("reasons", matching.Reasons(s.seeker, m)),
			)
		}
		return nil
	case PromptExplain:
		return s.explain()
	case PromptMatchesToFile:
		filename, err := s.candidates().DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump matches to file: %w", err)
		}
		s.logger.Info("dumping matches to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExclude:
		excluded := s.candidates().ToExcluded(fruit.ExcludeActorUser, excludedFromPromptNote)
		if err := fruit.AppendToExcludeFile(s.excludeFile, excluded); err != nil {
			return err
		}
		s.logger.Info("appended to exclude file",
			zap.String("filename", s.excludeFile),
			zap.Strings("fruit_ids", excluded.FruitIDs()),
		)
		s.matches = nil
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func (s *session) explain() error {
	for {
		items := make([]string, 0, len(s.matches)+1)
		for i, m := range s.matches {
			items = append(items, fmt.Sprintf("%d %s (mutual %s)", i+1, m.CandidateID, strconv.FormatFloat(m.MutualScore, 'f', 1, 64)))
		}

		prompt := promptui.Select{
			Label: "Choose a match and press ENTER",
			Items: append(items, PromptBack),
		}

		idx, selected, err := prompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		m := s.matches[idx]
		explanation, err := s.svc.ExplainMatch(s.ctx, s.seeker, m)
		if err != nil {
			s.logger.Warn("explanation failed", zap.String("candidate_id", m.CandidateID), zap.Error(err))
			continue
		}

		s.logger.Info(explanation.Summary,
			zap.String("candidate_id", m.CandidateID),
			zap.Strings("highlights", explanation.Highlights),
			zap.Strings("concerns", explanation.Concerns),
		)
	}
}

func (s *session) candidates() *fruit.Fruits {
	out := &fruit.Fruits{Items: make([]*fruit.Fruit, 0, len(s.matches))}
	for _, m := range s.matches {
		out.Items = append(out.Items, m.Candidate)
	}
	return out
}
