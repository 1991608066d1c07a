package provider

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOllamaConfig() ModelConfig {
	return ModelConfig{
		Provider:    KindOllama,
		ModelName:   "qwen3:8b",
		Endpoint:    "http://localhost:11434",
		APIPath:     "/api/generate",
		Temperature: 0.7,
		MaxTokens:   2048,
		Timeout:     120 * time.Second,
		RetryCount:  3,
	}
}

func TestModelConfig_FullURL(t *testing.T) {
	cases := []struct {
		endpoint string
		path     string
		want     string
	}{
		{"http://localhost:11434", "/api/generate", "http://localhost:11434/api/generate"},
		{"http://localhost:11434/", "/api/generate", "http://localhost:11434/api/generate"},
		{"http://localhost:11434//", "api/generate", "http://localhost:11434/api/generate"},
		{"http://localhost:11434", "api/generate", "http://localhost:11434/api/generate"},
		{"http://localhost:11434,", "//api/generate", "http://localhost:11434/api/generate"},
		{" https://openrouter.ai ", " /api/v1/chat/completions", "https://openrouter.ai/api/v1/chat/completions"},
	}

	for _, tc := range cases {
		cfg := ModelConfig{Endpoint: tc.endpoint, APIPath: tc.path}
		assert.Equal(t, tc.want, cfg.FullURL(), "%q + %q", tc.endpoint, tc.path)
	}
}

func TestModelConfig_ValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validOllamaConfig().Validate())
}

func TestModelConfig_ValidateNamesTheProblem(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ModelConfig)
		want   string
	}{
		{"blank model", func(c *ModelConfig) { c.ModelName = " " }, "model name"},
		{"blank endpoint", func(c *ModelConfig) { c.Endpoint = "" }, "endpoint"},
		{"blank path", func(c *ModelConfig) { c.APIPath = "/" }, "api path"},
		{"temperature too high", func(c *ModelConfig) { c.Temperature = 2.5 }, "temperature 2.5"},
		{"negative temperature", func(c *ModelConfig) { c.Temperature = -0.1 }, "temperature -0.1"},
		{"nan temperature", func(c *ModelConfig) { c.Temperature = math.NaN() }, "temperature"},
		{"zero max tokens", func(c *ModelConfig) { c.MaxTokens = 0 }, "max tokens 0"},
		{"zero timeout", func(c *ModelConfig) { c.Timeout = 0 }, "timeout 0s"},
		{"negative retry", func(c *ModelConfig) { c.RetryCount = -1 }, "retry count -1"},
		{"unknown provider", func(c *ModelConfig) { c.Provider = "bedrock" }, `provider "bedrock"`},
		{"openrouter without key", func(c *ModelConfig) { c.Provider = KindOpenRouter }, "API key"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validOllamaConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestModelConfig_TemperatureBoundsAreInclusive(t *testing.T) {
	cfg := validOllamaConfig()
	cfg.Temperature = 0
	assert.NoError(t, cfg.Validate())
	cfg.Temperature = 2
	assert.NoError(t, cfg.Validate())
}

func TestModelConfig_Attempts(t *testing.T) {
	cfg := validOllamaConfig()
	for retry, want := range map[int]int{0: 1, 1: 1, 3: 3, 5: 5} {
		cfg.RetryCount = retry
		assert.Equal(t, want, cfg.Attempts(), "retry count %d", retry)
	}
}

func TestModelConfig_WithModelCopies(t *testing.T) {
	cfg := validOllamaConfig()
	other := cfg.WithModel("llama3:8b")
	assert.Equal(t, "llama3:8b", other.ModelName)
	assert.Equal(t, "qwen3:8b", cfg.ModelName)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" OpenRouter ")
	require.NoError(t, err)
	assert.Equal(t, KindOpenRouter, k)

	_, err = ParseKind("azure")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestProviderError_IsMatchesByCode(t *testing.T) {
	err := &ProviderError{Code: ErrCodeTimeout, Message: "no response within 30s", Cause: errors.New("boom")}
	wrapped := errors.Join(errors.New("outer"), err)

	assert.ErrorIs(t, wrapped, ErrTimeout)
	assert.NotErrorIs(t, err, ErrConnectionRefused)
	assert.True(t, err.Retryable())
	assert.False(t, (&ProviderError{Code: ErrCodeInvalidConfig}).Retryable())
}

func TestProviderError_NeverPrintsBody(t *testing.T) {
	err := &ProviderError{
		Code:       ErrCodeHTTPStatus,
		Message:    "endpoint answered HTTP 500",
		Provider:   "ollama",
		StatusCode: 500,
		Body:       []byte("func secret() {}"),
	}
	assert.NotContains(t, err.Error(), "secret")
	assert.Contains(t, err.Error(), "HTTP 500")
}
