package config

import (
	"testing"
	"time"
)

func TestLoadAcceptsVariantNames(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_KEY", "sk-variant")
	t.Setenv("OPENAI_ASSISTANT_ID", "")
	t.Setenv("ASSISTANT_ID", "asst_123")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SUPABASE_DB_URL", "postgres://variant")

	cfg := Load()
	if cfg.OpenAIAPIKey != "sk-variant" {
		t.Fatalf("expected variant api key, got %q", cfg.OpenAIAPIKey)
	}
	if cfg.AssistantID != "asst_123" {
		t.Fatalf("expected variant assistant id, got %q", cfg.AssistantID)
	}
	if cfg.DatabaseURL != "postgres://variant" {
		t.Fatalf("expected variant database url, got %q", cfg.DatabaseURL)
	}
}

func TestLoadPrimaryNameWinsOverVariant(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-primary")
	t.Setenv("OPENAI_KEY", "sk-variant")

	cfg := Load()
	if cfg.OpenAIAPIKey != "sk-primary" {
		t.Fatalf("expected primary api key, got %q", cfg.OpenAIAPIKey)
	}
}

func TestLoadPollDefaults(t *testing.T) {
	t.Setenv("RUN_POLL_INTERVAL", "")
	t.Setenv("RUN_POLL_ATTEMPTS", "bogus")

	cfg := Load()
	if cfg.RunPollInterval != 2*time.Second {
		t.Fatalf("expected default run poll interval, got %s", cfg.RunPollInterval)
	}
	if cfg.RunPollAttempts != 60 {
		t.Fatalf("expected default run poll attempts, got %d", cfg.RunPollAttempts)
	}
}

func TestNormalizeStrategy(t *testing.T) {
	if got := normalizeStrategy("WEBHOOK"); got != StrategyWebhook {
		t.Fatalf("expected webhook, got %q", got)
	}
	if got := normalizeStrategy("anything-else"); got != StrategyDirect {
		t.Fatalf("expected direct fallback, got %q", got)
	}
}
