package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	t.Setenv("FRUIT_TEST_KEY", "from-env")

	got, err := Load(Source{Name: "gemini api key", File: path, Env: "FRUIT_TEST_KEY"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("expected file secret, got %q", got)
	}
}

func TestLoadFallsBackToEnv(t *testing.T) {
	t.Setenv("FRUIT_TEST_KEY", " from-env ")

	got, err := Load(Source{Name: "openai api key", Env: "FRUIT_TEST_KEY"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-env" {
		t.Fatalf("expected env secret, got %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	t.Setenv("FRUIT_TEST_EMPTY", "")

	tests := []struct {
		name   string
		src    Source
		expect string
	}{
		{name: "empty file", src: Source{Name: "key", File: empty}, expect: "is empty"},
		{name: "missing file", src: Source{Name: "key", File: empty + ".missing"}, expect: "reading key"},
		{name: "empty env", src: Source{Name: "key", Env: "FRUIT_TEST_EMPTY"}, expect: "FRUIT_TEST_EMPTY"},
		{name: "nothing", src: Source{}, expect: "secret is not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.src)
			if err == nil || !strings.Contains(err.Error(), tt.expect) {
				t.Fatalf("expected error containing %q, got %v", tt.expect, err)
			}
		})
	}
}
