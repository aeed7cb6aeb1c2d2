package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"LLM_PROVIDER", "LLM_MODEL", "API_KEY", "AUGMENTER_ENABLED", "PORT",
		"CONFIDENCE_THRESHOLD", "MAX_CANDIDATES", "MIN_PATTERN_INSTANCES",
		"DOM_TRAVERSAL_LIMIT", "ANCHOR_VALIDATION", "ANCHOR_SAMPLE_SIZE",
		"IDEMPOTENCY_TTL_SECONDS", "TELEMETRY_BATCH_SIZE", "TELEMETRY_FLUSH_MS",
		"TELEMETRY_REDACT_PII", "BUDGET_CONTRACT_TOKENS", "BUDGET_CONTRACT_MS",
		"BUDGET_AUGMENT_TOKENS", "BUDGET_AUGMENT_MS", "BUDGET_DETERMINISTIC_MS",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_RequiresModelWhenAugmenterEnabled(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUGMENTER_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_MODEL")
}

func TestLoad_DefaultsWithAugmenterDisabled(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUGMENTER_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.False(t, cfg.LLM.AugmenterEnabled)
	assert.Equal(t, "8090", cfg.LLM.Port)

	assert.Equal(t, 0.6, cfg.Pipeline.ConfidenceThreshold)
	assert.Equal(t, 10, cfg.Pipeline.MaxCandidates)
	assert.Equal(t, 3, cfg.Pipeline.MinPatternInstances)
	assert.Equal(t, 5000, cfg.Pipeline.DOMTraversalLimit)
	assert.True(t, cfg.Pipeline.AnchorValidation)
	assert.Equal(t, 15*time.Minute, cfg.Pipeline.IdempotencyTTL)

	assert.Equal(t, 50, cfg.Telemetry.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Telemetry.FlushInterval)
	assert.True(t, cfg.Telemetry.RedactPII)

	assert.Equal(t, 500, cfg.Budgets.ContractTokens)
	assert.Equal(t, 800, cfg.Budgets.ContractMillis)
	assert.Equal(t, 400, cfg.Budgets.AugmentTokens)
	assert.Equal(t, 1200, cfg.Budgets.AugmentMillis)
	assert.Equal(t, 500, cfg.Budgets.DeterministicMillis)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUGMENTER_ENABLED", "true")
	t.Setenv("LLM_MODEL", "gemini-2.0-flash")
	t.Setenv("API_KEY", "k-123")
	t.Setenv("PORT", "9000")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("BUDGET_AUGMENT_MS", "3000")
	t.Setenv("TELEMETRY_REDACT_PII", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, "k-123", cfg.LLM.ApiKey)
	assert.Equal(t, "9000", cfg.LLM.Port)
	assert.Equal(t, 0.75, cfg.Pipeline.ConfidenceThreshold)
	assert.Equal(t, 3000, cfg.Budgets.AugmentMillis)
	assert.False(t, cfg.Telemetry.RedactPII)
}

func TestLoad_MalformedNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUGMENTER_ENABLED", "false")
	t.Setenv("MAX_CANDIDATES", "not-a-number")
	t.Setenv("CONFIDENCE_THRESHOLD", "abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Pipeline.MaxCandidates)
	assert.Equal(t, 0.6, cfg.Pipeline.ConfidenceThreshold)
}
