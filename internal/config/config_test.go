package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HTTP_ADDR", "DATABASE_URL", "CORS_ALLOWED_ORIGINS",
		"LLM_PROVIDER", "LLM_API_KEY", "LLM_BASE_URL", "LLM_MODEL", "LLM_TIMEOUT",
		"EMBED_PROVIDER", "EMBED_MODEL", "VECTOR_DB_PATH",
		"SUMMARY_MAX_CHARS", "SENTIMENT_THRESHOLD",
		"DAILY_ROLLUP_AT", "MONTHLY_ROLLUP_DAY", "TIMEZONE", "ROLLUP_CONCURRENCY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "deepseek", cfg.LLMProvider)
	assert.Equal(t, "deepseek-chat", cfg.LLMModel)
	assert.Equal(t, "https://api.deepseek.com/v1", cfg.LLMBaseURL)
	assert.Equal(t, 200, cfg.SummaryMaxChars)
	assert.Equal(t, float64(0), cfg.SentimentThreshold)
	assert.Equal(t, "00:00", cfg.DailyRollupAt)
	assert.Equal(t, 1, cfg.MonthlyRollupDay)
	assert.Equal(t, 1, cfg.RollupConcurrency)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestLoadOverridesAndOrigins(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("SENTIMENT_THRESHOLD", "-0.25")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, -0.25, cfg.SentimentThreshold)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"LLM_PROVIDER":       "llama-at-home",
		"EMBED_PROVIDER":     "carrier-pigeon",
		"DAILY_ROLLUP_AT":    "25:00",
		"MONTHLY_ROLLUP_DAY": "31",
		"ROLLUP_CONCURRENCY": "0",
		"TIMEZONE":           "Mars/Olympus_Mons",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("03:15")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 3, Minute: 15}, tod)

	for _, bad := range []string{"", "3", "24:00", "12:60", "aa:bb"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}
