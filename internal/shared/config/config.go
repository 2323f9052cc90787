package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string
	RedisURL        string

	OpenAIAPIKey    string
	AssistantID     string
	VisionModel     string
	RunPollInterval time.Duration
	RunPollAttempts int

	Strategy   string
	WebhookURL string

	WatchInterval time.Duration
	WatchAttempts int
}

const (
	// StrategyDirect calls the model API in-process.
	StrategyDirect = "direct"
	// StrategyWebhook relays the job to an external automation and waits
	// for it to write the result rows.
	StrategyWebhook = "webhook"
)

// Load reads configuration from environment variables with sensible defaults.
// Several keys accept legacy variable names left over from earlier deploy
// targets; the first non-empty variant wins.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := getEnvFirst("DATABASE_URL", "SUPABASE_DB_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,
		RedisURL:        getEnvFirst("REDIS_URL", "REDIS_ADDR"),
		OpenAIAPIKey:    getEnvFirst("OPENAI_API_KEY", "OPENAI_KEY"),
		AssistantID:     getEnvFirst("OPENAI_ASSISTANT_ID", "ASSISTANT_ID"),
		VisionModel:     getEnv("OPENAI_VISION_MODEL", "gpt-4o-mini"),
		RunPollInterval: getEnvDuration("RUN_POLL_INTERVAL", 2*time.Second),
		RunPollAttempts: getEnvInt("RUN_POLL_ATTEMPTS", 60),
		Strategy:        normalizeStrategy(getEnv("ANALYSIS_STRATEGY", StrategyDirect)),
		WebhookURL:      getEnv("ANALYSIS_WEBHOOK_URL", ""),
		WatchInterval:   getEnvDuration("WATCH_POLL_INTERVAL", 3*time.Second),
		WatchAttempts:   getEnvInt("WATCH_POLL_ATTEMPTS", 20),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvFirst(keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return ""
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStrategy(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StrategyWebhook:
		return StrategyWebhook
	default:
		return StrategyDirect
	}
}
