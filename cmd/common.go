package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/fruit-matcher/internal/ai"
	"github.com/spigell/fruit-matcher/internal/ai/gemini"
	"github.com/spigell/fruit-matcher/internal/ai/openai"
	"github.com/spigell/fruit-matcher/internal/logger"
	"github.com/spigell/fruit-matcher/internal/matching"
	"github.com/spigell/fruit-matcher/internal/matchmaker"
	"github.com/spigell/fruit-matcher/internal/secrets"
	"github.com/spigell/fruit-matcher/internal/store"
)

// env bundles what every command needs once the config is loaded.
type env struct {
	config *Config
	logger *zap.Logger
	db     *store.DB
}

func (e *env) Close() {
	if err := e.db.Close(); err != nil {
		e.logger.Warn("closing the store", zap.Error(err))
	}
	_ = e.logger.Sync()
}

// setup builds the logger, reads the config and opens the store. Failures are fatal.
func setup(ctx context.Context) *env {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), viper.GetString("log-level"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}
	if config == nil || config.Store == nil || config.Matching == nil {
		l.Fatal("config is required")
	}

	l.Info("starting the fruit-matcher", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	l.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	db, err := store.Open(ctx, config.Store.Path)
	if err != nil {
		l.Fatal("opening the store", zap.String("path", config.Store.Path), zap.Error(err))
	}

	return &env{config: config, logger: l, db: db}
}

func (e *env) matchmaker(ctx context.Context) *matchmaker.Service {
	explainer, err := newExplainer(ctx, e.config.AI, e.logger)
	if err != nil {
		e.logger.Warn("explanations are disabled", zap.Error(err))
		explainer = nil
	}

	return matchmaker.New(
		e.db,
		matching.NewRanker(e.config.Matching.Workers),
		explainer,
		matchmaker.Config{
			Limit:       e.config.Matching.Limit,
			ExcludeFile: strings.TrimSpace(e.config.ExcludeFile),
		},
		e.logger,
	)
}

// newExplainer returns a nil Explainer when explanations are turned off.
func newExplainer(ctx context.Context, cfg *AIConfig, l *zap.Logger) (ai.Explainer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	generator, err := newGenerator(ctx, cfg, l)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(cfg.Burst, 1))
	}

	l.Info("explanations are enabled",
		zap.String(logger.FieldProvider, generator.Provider()),
		zap.String(logger.FieldModel, generator.Model()),
		zap.Float64("rate_per_second", cfg.RatePerSecond),
	)

	return ai.NewExplainer(generator, limiter, cfg.MaxLogLength, l), nil
}

func newGenerator(ctx context.Context, cfg *AIConfig, l *zap.Logger) (ai.Generator, error) {
	switch provider := strings.TrimSpace(strings.ToLower(cfg.Provider)); provider {
	case "", gemini.Provider:
		gc := cfg.Gemini
		if gc == nil {
			gc = &GeminiConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: gc.APIKeyFile,
			Env:  "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
		}
		return gemini.NewGenerator(ctx, apiKey, gc.Model, gc.MaxRetries, l)
	case openai.Provider:
		oc := cfg.OpenAI
		if oc == nil {
			oc = &OpenAIConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name: "openai api key",
			File: oc.APIKeyFile,
			Env:  "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY_FILE)", err)
		}
		return openai.NewGenerator(&openai.Config{
			APIKey:  apiKey,
			BaseURL: oc.BaseURL,
			Model:   oc.Model,
			Logger:  l,
		})
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}
