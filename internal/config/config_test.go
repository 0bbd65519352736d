package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_PORT", "LLM_API_KEY", "MAX_DOCUMENT_BYTES", "FETCH_TIMEOUT", "HISTORY_WINDOW"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxDocumentBytes != 5_242_880 {
		t.Fatalf("expected 5 MB document limit, got %d", cfg.MaxDocumentBytes)
	}
	if cfg.FetchTimeout != 10*time.Second {
		t.Fatalf("expected 10s fetch timeout, got %s", cfg.FetchTimeout)
	}
	if cfg.HistoryWindow != 10 {
		t.Fatalf("expected history window 10, got %d", cfg.HistoryWindow)
	}
	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.HTTPPort)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("HISTORY_WINDOW", "4")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FetchTimeout != 3*time.Second || cfg.HistoryWindow != 4 || cfg.LLMAPIKey != "sk-test" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigInvalidDuration(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected parse error for invalid duration")
	}
}
