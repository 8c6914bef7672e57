package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webintel-server/internal/routing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AI_API_KEY", "gsk_test_key_value")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.ServerPort)
	assert.Equal(t, "openai", cfg.AIClientType)
	assert.Equal(t, "llama-3.1-70b-versatile", cfg.PrimaryModel)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.FallbackModel)
	assert.Equal(t, 6000, cfg.PrimaryThreshold)
	assert.Equal(t, 25000, cfg.FallbackThreshold)
	assert.Equal(t, 200, cfg.GenerationMaxItems)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, 10, cfg.MaxJobs)
}

func TestLoad_OpenAIRequiresKey(t *testing.T) {
	t.Setenv("AI_API_KEY", "")
	t.Setenv("AI_CLIENT_TYPE", "openai")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_OllamaWithoutKey(t *testing.T) {
	t.Setenv("AI_API_KEY", "")
	t.Setenv("AI_CLIENT_TYPE", "ollama")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.AIClientType)
}

func TestLoad_UnknownClientType(t *testing.T) {
	t.Setenv("AI_CLIENT_TYPE", "bard")
	_, err := Load()
	assert.Error(t, err)
}

func TestTiers(t *testing.T) {
	t.Setenv("AI_API_KEY", "k")
	cfg, err := Load()
	require.NoError(t, err)

	tiers, err := cfg.Tiers()
	require.NoError(t, err)
	require.Len(t, tiers, 2)

	assert.Equal(t, cfg.PrimaryModel, tiers[0].Name)
	assert.Equal(t, routing.StyleOpenEnded, tiers[0].PromptStyle)
	assert.Equal(t, cfg.FallbackModel, tiers[1].Name)
	assert.Equal(t, routing.StyleDirective, tiers[1].PromptStyle)
	assert.Less(t, tiers[0].TokenBudget, tiers[1].TokenBudget)
}

func TestTiers_RejectsInvertedBudgets(t *testing.T) {
	t.Setenv("AI_API_KEY", "k")
	t.Setenv("AI_PRIMARY_TOKEN_BUDGET", "50000")

	cfg, err := Load()
	require.NoError(t, err)
	_, err = cfg.Tiers()
	assert.Error(t, err)
}

func TestMaskedAPIKey(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "[not set]", cfg.MaskedAPIKey())

	cfg.AIAPIKey = "short"
	assert.Equal(t, "********", cfg.MaskedAPIKey())

	cfg.AIAPIKey = "gsk_1234567890abcdef"
	masked := cfg.MaskedAPIKey()
	assert.Equal(t, "gsk_****cdef", masked)
	assert.NotContains(t, masked, "1234567890")
}
