package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/fruit-matcher/internal/ai/openai"
)

func TestNewExplainerDisabled(t *testing.T) {
	for _, cfg := range []*AIConfig{nil, {Enabled: false, Provider: "openai"}} {
		explainer, err := newExplainer(context.Background(), cfg, zap.NewNop())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if explainer != nil {
			t.Fatalf("expected nil explainer for %+v", cfg)
		}
	}
}

func TestNewGeneratorErrors(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	tests := []struct {
		name   string
		cfg    *AIConfig
		expect string
	}{
		{name: "unknown provider", cfg: &AIConfig{Provider: "claude"}, expect: "unsupported ai provider"},
		{name: "gemini without key", cfg: &AIConfig{Provider: "gemini"}, expect: "GEMINI_API_KEY_FILE"},
		{name: "openai without key", cfg: &AIConfig{Provider: "OpenAI"}, expect: "OPENAI_API_KEY_FILE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newGenerator(context.Background(), tt.cfg, zap.NewNop())
			if err == nil || !strings.Contains(err.Error(), tt.expect) {
				t.Fatalf("expected error containing %q, got %v", tt.expect, err)
			}
		})
	}
}

func TestNewExplainerOpenAI(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "openai.key")
	if err := os.WriteFile(keyFile, []byte("sk-test\n"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	cfg := &AIConfig{
		Enabled:       true,
		Provider:      "openai",
		RatePerSecond: 2,
		OpenAI:        &OpenAIConfig{APIKeyFile: keyFile, Model: "gpt-test"},
	}

	gen, err := newGenerator(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.Provider() != openai.Provider || gen.Model() != "gpt-test" {
		t.Fatalf("unexpected generator %s/%s", gen.Provider(), gen.Model())
	}

	explainer, err := newExplainer(context.Background(), cfg, zap.NewNop())
	if err != nil || explainer == nil {
		t.Fatalf("expected explainer, got %v (%v)", explainer, err)
	}
}
