package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process configuration, loaded from the environment
// (optionally seeded from a .env file).
type Config struct {
	HTTPAddr           string
	DatabaseURL        string
	CORSAllowedOrigins []string

	// LLM service. Provider is "deepseek" (OpenAI-compatible, the default),
	// "openai" or "anthropic".
	LLMProvider string
	LLMAPIKey   string
	LLMBaseURL  string
	LLMModel    string
	LLMTimeout  time.Duration

	// Embedding service. Provider is "openai" (API, the default), "onnx"
	// (local model, requires the onnx build tag) or "mock".
	EmbedProvider string
	EmbedModel    string

	// VectorDBPath enables on-disk persistence for the conversation store.
	// Empty keeps everything in memory.
	VectorDBPath string

	// Summarization policy.
	SummaryMaxChars    int
	SentimentThreshold float64

	// Rollup schedule.
	DailyRollupAt     string // "HH:MM"
	MonthlyRollupDay  int    // day of month, 1-28
	Timezone          string
	RollupConcurrency int
}

// Load reads configuration from the environment. A missing DATABASE_URL or
// LLM_API_KEY is a startup error, not something to limp along without.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		LLMProvider:   getenv("LLM_PROVIDER", "deepseek"),
		LLMAPIKey:     os.Getenv("LLM_API_KEY"),
		LLMBaseURL:    getenv("LLM_BASE_URL", "https://api.deepseek.com/v1"),
		LLMModel:      getenv("LLM_MODEL", "deepseek-chat"),
		EmbedProvider: getenv("EMBED_PROVIDER", "openai"),
		EmbedModel:    getenv("EMBED_MODEL", "text-embedding-ada-002"),
		VectorDBPath:  os.Getenv("VECTOR_DB_PATH"),
		DailyRollupAt: getenv("DAILY_ROLLUP_AT", "00:00"),
		Timezone:      getenv("TIMEZONE", "UTC"),
	}

	var err error
	if cfg.LLMTimeout, err = getenvDuration("LLM_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SummaryMaxChars, err = getenvInt("SUMMARY_MAX_CHARS", 200); err != nil {
		return Config{}, err
	}
	if cfg.SentimentThreshold, err = getenvFloat("SENTIMENT_THRESHOLD", 0); err != nil {
		return Config{}, err
	}
	if cfg.MonthlyRollupDay, err = getenvInt("MONTHLY_ROLLUP_DAY", 1); err != nil {
		return Config{}, err
	}
	if cfg.RollupConcurrency, err = getenvInt("ROLLUP_CONCURRENCY", 1); err != nil {
		return Config{}, err
	}

	for _, o := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if _, err := ParseTimeOfDay(c.DailyRollupAt); err != nil {
		return fmt.Errorf("DAILY_ROLLUP_AT: %w", err)
	}
	if c.MonthlyRollupDay < 1 || c.MonthlyRollupDay > 28 {
		return fmt.Errorf("MONTHLY_ROLLUP_DAY must be 1-28, got %d", c.MonthlyRollupDay)
	}
	if c.RollupConcurrency < 1 {
		return fmt.Errorf("ROLLUP_CONCURRENCY must be >= 1, got %d", c.RollupConcurrency)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	switch c.LLMProvider {
	case "deepseek", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.EmbedProvider {
	case "openai", "onnx", "mock":
	default:
		return fmt.Errorf("unknown EMBED_PROVIDER %q", c.EmbedProvider)
	}
	return nil
}

// Location resolves the configured timezone. Config is validated at load
// time, so a bad zone never gets this far.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TimeOfDay is a clock time without a date, used for schedule triggers.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
