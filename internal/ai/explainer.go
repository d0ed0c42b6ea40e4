package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/fruit-matcher/internal/fruit"
	"github.com/spigell/fruit-matcher/internal/logger"
	"github.com/spigell/fruit-matcher/internal/matching"
	"github.com/spigell/fruit-matcher/internal/metrics"
	"github.com/spigell/fruit-matcher/internal/utils"
)

var (
	// ErrDisabled is returned when an explanation is requested but no provider is configured.
	ErrDisabled = errors.New("ai explanations are disabled")
	// ErrEmptyResponse is returned when the provider answers with no text.
	ErrEmptyResponse = errors.New("ai provider returned empty response")
	// ErrProviderError wraps failures reported by the provider itself.
	ErrProviderError = errors.New("ai provider error")
)

//go:embed prompt.md
var systemPrompt string

const defaultMaxLogLength = 200

// Explanation is the LLM's account of one match.
type Explanation struct {
	Summary    string   `json:"summary" mapstructure:"summary"`
	Highlights []string `json:"highlights,omitempty" mapstructure:"highlights"`
	Concerns   []string `json:"concerns,omitempty" mapstructure:"concerns"`
	Raw        string   `json:"-" mapstructure:"-"`
}

// Generator sends a system instruction and a user message to an LLM and returns its text.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Provider() string
	Model() string
}

// Explainer produces natural-language explanations of matches.
type Explainer interface {
	Explain(ctx context.Context, seeker *fruit.Fruit, match matching.Match) (*Explanation, error)
}

// LLMExplainer explains matches through a Generator, rate limited per process.
type LLMExplainer struct {
	generator Generator
	limiter   *rate.Limiter
	logger    *zap.Logger
	maxLogLen int
}

// NewExplainer wraps generator. A nil limiter means no rate limiting.
func NewExplainer(generator Generator, limiter *rate.Limiter, maxLogLength int, l *zap.Logger) *LLMExplainer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &LLMExplainer{
		generator: generator,
		limiter:   limiter,
		logger:    logger.WithAIFields(l, generator.Provider(), generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (e *LLMExplainer) Explain(ctx context.Context, seeker *fruit.Fruit, match matching.Match) (*Explanation, error) {
	if seeker == nil {
		return nil, fmt.Errorf("seeker is required")
	}
	if match.Candidate == nil {
		return nil, fmt.Errorf("match candidate is required")
	}

	message, err := buildMessage(seeker, match)
	if err != nil {
		return nil, err
	}

	fields := logger.MatchFields(seeker.ID, match.CandidateID)

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for ai rate limiter: %w", err)
		}
	}

	e.logger.Debug("ai explanation request", append(fields,
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, e.maxLogLen)),
	)...)

	provider := e.generator.Provider()
	start := time.Now()
	raw, err := e.generator.GenerateContent(ctx, systemPrompt, message)
	metrics.LLMRequestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(provider, "error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrProviderError, err)
	}

	e.logger.Debug("ai explanation response", append(fields,
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)...)

	explanation, err := parseResponse(raw)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(provider, "invalid").Inc()
		return nil, err
	}
	metrics.LLMRequestsTotal.WithLabelValues(provider, "success").Inc()

	explanation.Raw = raw
	return explanation, nil
}

func buildMessage(seeker *fruit.Fruit, match matching.Match) (string, error) {
	seekerJSON, err := json.MarshalIndent(seeker, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal seeker: %w", err)
	}
	candidateJSON, err := json.MarshalIndent(match.Candidate, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidate: %w", err)
	}

	var b strings.Builder
	b.WriteString("[Seeker]\n")
	b.Write(seekerJSON)
	b.WriteString("\n\n[Candidate]\n")
	b.Write(candidateJSON)

	b.WriteString("\n\n[Scores]\n")
	fmt.Fprintf(&b, "- seeker likes candidate: %s/100\n", formatScore(match.Score))
	fmt.Fprintf(&b, "- candidate likes seeker: %s/100\n", formatScore(match.ReverseScore))
	fmt.Fprintf(&b, "- mutual: %s/100\n", formatScore(match.MutualScore))

	b.WriteString("\n[Points from the seeker's preferences]\n")
	breakdown := matching.Breakdown(seeker.Preferences, match.Candidate.Attributes)
	if len(breakdown) == 0 {
		b.WriteString("- none stated\n")
	}
	for _, c := range breakdown {
		fmt.Fprintf(&b, "- %s: %+.2f\n", c.Dimension, c.Points)
	}

	b.WriteString("\n[Satisfied preferences]\n")
	for _, reason := range matching.Reasons(seeker, match) {
		fmt.Fprintf(&b, "- %s\n", reason)
	}

	return b.String(), nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func parseResponse(raw string) (*Explanation, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, ErrEmptyResponse
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse ai response: %w", err)
	}

	var explanation Explanation
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &explanation,
	})
	if err != nil {
		return nil, fmt.Errorf("build response decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode ai response: %w", err)
	}

	explanation.Summary = strings.TrimSpace(explanation.Summary)
	if explanation.Summary == "" {
		return nil, fmt.Errorf("ai response has no summary: %w", ErrEmptyResponse)
	}
	explanation.Highlights = compact(explanation.Highlights)
	explanation.Concerns = compact(explanation.Concerns)

	return &explanation, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func compact(items []string) []string {
	out := items[:0]
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
