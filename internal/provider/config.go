package provider

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ---------------------------------------------------------------------------
// Configuration helpers
// ---------------------------------------------------------------------------

// Config keys shared by the CLI and ResolveModelConfig.
const (
	KeyProvider    = "provider"
	KeyTemperature = "temperature"
	KeyMaxTokens   = "max_tokens"
	KeyTimeout     = "timeout"
	KeyRetryCount  = "retry_count"
	KeyFailover    = "failover"
	KeyBackoff     = "backoff"
)

// ProviderKey returns the config key of a per-provider setting, e.g.
// "providers.ollama.endpoint".
func ProviderKey(kind Kind, field string) string {
	return fmt.Sprintf("providers.%s.%s", kind, field)
}

// SetDefaults registers the default of every model setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyProvider, string(KindOllama))
	v.SetDefault(KeyTemperature, 0.7)
	v.SetDefault(KeyMaxTokens, 2048)
	v.SetDefault(KeyTimeout, "120s")
	v.SetDefault(KeyRetryCount, 3)
	v.SetDefault(KeyFailover, true)
	v.SetDefault(KeyBackoff, DefaultBackoff.String())

	for _, name := range Names() {
		d, err := Lookup(Kind(name))
		if err != nil {
			continue
		}
		def := d.Defaults()
		v.SetDefault(ProviderKey(d.Kind(), "endpoint"), def.Endpoint)
		v.SetDefault(ProviderKey(d.Kind(), "api_path"), def.APIPath)
		v.SetDefault(ProviderKey(d.Kind(), "model"), def.Model)
	}
}

// ResolveModelConfig builds the ModelConfig for the active provider. The
// lookup order for every value is:
//
//  1. well-known environment variables (OLLAMA_HOST, OPENROUTER_API_KEY, ...)
//  2. AIREVIEW_* environment variables bound on v
//  3. the config file (~/.config/aireview/config.yml)
//  4. defaults from SetDefaults
//
// CLI flags are applied by the caller on the returned value. The result is
// not validated; callers run Validate before dispatching.
func ResolveModelConfig(v *viper.Viper) (ModelConfig, error) {
	SetDefaults(v)

	kind, err := ParseKind(v.GetString(KeyProvider))
	if err != nil {
		return ModelConfig{}, err
	}
	bindProviderEnvVars(kind, v)

	timeout, err := durationValue(v, KeyTimeout)
	if err != nil {
		return ModelConfig{}, err
	}

	return ModelConfig{
		Provider:    kind,
		ModelName:   strings.TrimSpace(v.GetString(ProviderKey(kind, "model"))),
		Endpoint:    strings.TrimSpace(v.GetString(ProviderKey(kind, "endpoint"))),
		APIPath:     strings.TrimSpace(v.GetString(ProviderKey(kind, "api_path"))),
		APIKey:      strings.TrimSpace(v.GetString(ProviderKey(kind, "api_key"))),
		Temperature: v.GetFloat64(KeyTemperature),
		MaxTokens:   v.GetInt(KeyMaxTokens),
		Timeout:     timeout,
		RetryCount:  v.GetInt(KeyRetryCount),
		Failover:    v.GetBool(KeyFailover),
	}, nil
}

// ResolveBackoff returns the base delay of the linear backoff.
func ResolveBackoff(v *viper.Viper) (time.Duration, error) {
	SetDefaults(v)
	return durationValue(v, KeyBackoff)
}

// bindProviderEnvVars lets users configure the tool entirely through the
// environment variables the providers themselves document.
func bindProviderEnvVars(kind Kind, v *viper.Viper) {
	switch kind {
	case KindOllama:
		overrideFromEnv(v, ProviderKey(kind, "endpoint"), "OLLAMA_HOST")
		overrideFromEnv(v, ProviderKey(kind, "model"), "OLLAMA_MODEL")
	case KindOpenRouter:
		overrideFromEnv(v, ProviderKey(kind, "api_key"), "OPENROUTER_API_KEY")
		overrideFromEnv(v, ProviderKey(kind, "model"), "OPENROUTER_MODEL")
	}
}

func overrideFromEnv(v *viper.Viper, key, envName string) {
	if value := strings.TrimSpace(os.Getenv(envName)); value != "" {
		v.Set(key, value)
	}
}

// durationValue reads "90s"-style strings; bare numbers are milliseconds.
func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	switch raw := v.Get(key).(type) {
	case int:
		return time.Duration(raw) * time.Millisecond, nil
	case int64:
		return time.Duration(raw) * time.Millisecond, nil
	case float64:
		return time.Duration(raw * float64(time.Millisecond)), nil
	case time.Duration:
		return raw, nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return 0, &ProviderError{
				Code:    ErrCodeInvalidConfig,
				Message: fmt.Sprintf("%s %q is not a duration (e.g. 120s, 2m)", key, raw),
				Cause:   err,
			}
		}
		return d, nil
	case nil:
		return 0, nil
	default:
		return 0, &ProviderError{
			Code:    ErrCodeInvalidConfig,
			Message: fmt.Sprintf("%s has unsupported value %v", key, raw),
		}
	}
}

// SampleConfigYAML returns an example config.yml that documents every
// setting. It is used by the "aireview config init" command.
func SampleConfigYAML() string {
	return `# aireview configuration
# Active provider (ollama | openrouter).
provider: ollama

# Provider-specific settings. Each block corresponds to a registered provider.
providers:
  ollama:
    # endpoint can also be set via OLLAMA_HOST env var.
    endpoint: "http://localhost:11434"
    # /api/generate or /api/chat
    api_path: "/api/generate"
    model: "qwen3:8b"

  openrouter:
    # api_key can also be set via OPENROUTER_API_KEY env var.
    api_key: ""
    endpoint: "https://openrouter.ai"
    api_path: "/api/v1/chat/completions"
    model: "qwen/qwen3-coder:free"

# Generation settings (apply to every provider).
temperature: 0.7
max_tokens: 2048
# Read timeout per attempt; values under 30s are raised to 30s.
timeout: 120s
# Total number of attempts (0 behaves like 1).
retry_count: 3
# Base of the linear backoff between attempts (2s, 4s, 6s, ...).
backoff: 2s
# Switch to another installed model after a timeout.
failover: true

# Response language of the review (en | zh | any language name).
language: en

review:
  # Built-in (concise | detailed | security | performance) or a saved template.
  template: concise
  templates_dir: "~/.config/aireview/templates"
  # Where review reports are written, relative to the working directory
  # unless absolute.
  output_dir: ".ai-codereview"
  save: true
  # Parallel requests for --per-file reviews.
  concurrency: 2

debug: false
`
}
