// Package provider talks to LLM inference endpoints. It hides the
// differences between the Ollama API and the OpenAI-compatible OpenRouter
// API behind a Dialect, and runs requests through an Executor that retries,
// fails over to other models and honours cancellation.
//
// Design principles:
//   - A ModelConfig value is passed explicitly into every call
//   - context.Context is the cancellation token, down to the socket
//   - go-resty/v2 as the HTTP transport layer
//   - Normalized error codes shared by every dialect
package provider

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Provider kinds
// ---------------------------------------------------------------------------

// Kind names the API dialect spoken by an endpoint.
type Kind string

const (
	KindOllama     Kind = "ollama"
	KindOpenRouter Kind = "openrouter"
)

// ParseKind accepts the configured provider name in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindOllama:
		return KindOllama, nil
	case KindOpenRouter:
		return KindOpenRouter, nil
	}
	return "", &ProviderError{
		Code:    ErrCodeInvalidConfig,
		Message: fmt.Sprintf("unknown provider %q (expected %s or %s)", s, KindOllama, KindOpenRouter),
	}
}

// ---------------------------------------------------------------------------
// Model configuration
// ---------------------------------------------------------------------------

const (
	// ConnectTimeout bounds TCP connection setup whatever the user configured.
	ConnectTimeout = 30 * time.Second

	// MinReadTimeout is the floor applied to ModelConfig.Timeout. Slow local
	// models spuriously fail with aggressive timeouts.
	MinReadTimeout = 30 * time.Second

	// DefaultBackoff is the base of the linear backoff between attempts.
	DefaultBackoff = 2 * time.Second
)

// ModelConfig holds everything needed to send one review request. It is
// loaded once per request and never mutated; failover works on copies made
// with WithModel.
type ModelConfig struct {
	Provider    Kind
	ModelName   string
	Endpoint    string
	APIPath     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	RetryCount  int
	APIKey      string

	// Failover switches to another installed model after a timeout.
	Failover bool
}

// FullURL joins Endpoint and APIPath with exactly one slash.
func (c ModelConfig) FullURL() string {
	return joinURL(c.Endpoint, c.APIPath)
}

// WithModel returns a copy of the config targeting another model.
func (c ModelConfig) WithModel(name string) ModelConfig {
	c.ModelName = name
	return c
}

// Attempts is the number of network attempts a request may use.
func (c ModelConfig) Attempts() int {
	if c.RetryCount < 1 {
		return 1
	}
	return c.RetryCount
}

// Problems lists every constraint the config violates. Each entry names the
// field and its current value.
func (c ModelConfig) Problems() []string {
	var out []string
	if c.Provider != KindOllama && c.Provider != KindOpenRouter {
		out = append(out, fmt.Sprintf("provider %q must be %s or %s", c.Provider, KindOllama, KindOpenRouter))
	}
	if strings.TrimSpace(c.ModelName) == "" {
		out = append(out, "model name must not be blank")
	}
	if strings.TrimSpace(c.Endpoint) == "" {
		out = append(out, "endpoint must not be blank")
	}
	if strings.Trim(strings.TrimSpace(c.APIPath), "/") == "" {
		out = append(out, fmt.Sprintf("api path %q must not be blank", c.APIPath))
	}
	if math.IsNaN(c.Temperature) || c.Temperature < 0 || c.Temperature > 2 {
		out = append(out, fmt.Sprintf("temperature %v must be between 0.0 and 2.0", c.Temperature))
	}
	if c.MaxTokens <= 0 {
		out = append(out, fmt.Sprintf("max tokens %d must be greater than 0", c.MaxTokens))
	}
	if c.Timeout <= 0 {
		out = append(out, fmt.Sprintf("timeout %s must be greater than 0", c.Timeout))
	}
	if c.RetryCount < 0 {
		out = append(out, fmt.Sprintf("retry count %d must be 0 or more", c.RetryCount))
	}
	if c.Provider == KindOpenRouter && strings.TrimSpace(c.APIKey) == "" {
		out = append(out, "OpenRouter API key is required")
	}
	return out
}

// Validate must pass before a config is handed to the Executor.
func (c ModelConfig) Validate() error {
	problems := c.Problems()
	if len(problems) == 0 {
		return nil
	}
	return &ProviderError{
		Code:     ErrCodeInvalidConfig,
		Provider: string(c.Provider),
		Model:    c.ModelName,
		Message:  strings.Join(problems, "; "),
	}
}

func joinURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/,")
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	return base + "/" + path
}

// ---------------------------------------------------------------------------
// Response
// ---------------------------------------------------------------------------

// Response is a successful (2xx) exchange with the endpoint.
type Response struct {
	Body       []byte
	StatusCode int

	// Model is the model that produced Body, which differs from the
	// configured one after a failover.
	Model string

	// Attempts counts network attempts including the successful one.
	Attempts int

	// ModelsTried lists the model used by each attempt, in order.
	ModelsTried []string

	Duration time.Duration
}

// ---------------------------------------------------------------------------
// Error types
// ---------------------------------------------------------------------------

// ErrorCode classifies request failures so callers can decide whether to
// retry, fail over or give up without inspecting transport errors.
type ErrorCode string

const (
	ErrCodeTimeout           ErrorCode = "timeout"
	ErrCodeConnectionRefused ErrorCode = "connection_refused"
	ErrCodeHostUnreachable   ErrorCode = "host_unreachable"
	ErrCodeHTTPStatus        ErrorCode = "http_status"
	ErrCodeInvalidResponse   ErrorCode = "invalid_response"
	ErrCodeInvalidConfig     ErrorCode = "invalid_config"
	ErrCodeCancelled         ErrorCode = "cancelled"
	ErrCodeUnknown           ErrorCode = "unknown"
)

// ProviderError carries a normalized code plus the request details an
// operator needs to fix the problem. Body holds the raw error payload for
// diagnostics and is never part of Error().
type ProviderError struct {
	Code       ErrorCode
	Message    string
	Provider   string
	Model      string
	URL        string
	StatusCode int
	Body       []byte
	Cause      error
}

func (e *ProviderError) Error() string {
	var sb strings.Builder
	if e.Provider != "" {
		sb.WriteString(fmt.Sprintf("[%s] ", e.Provider))
	}
	sb.WriteString(string(e.Code))
	if e.Message != "" {
		sb.WriteString(": " + e.Message)
	}
	if e.StatusCode != 0 {
		sb.WriteString(fmt.Sprintf(" (HTTP %d)", e.StatusCode))
	}
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	return sb.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is to match ProviderErrors by code.
func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Retryable reports whether another attempt may succeed.
func (e *ProviderError) Retryable() bool {
	switch e.Code {
	case ErrCodeTimeout, ErrCodeConnectionRefused, ErrCodeHostUnreachable, ErrCodeHTTPStatus, ErrCodeUnknown:
		return true
	default:
		return false
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrTimeout           = &ProviderError{Code: ErrCodeTimeout}
	ErrConnectionRefused = &ProviderError{Code: ErrCodeConnectionRefused}
	ErrHostUnreachable   = &ProviderError{Code: ErrCodeHostUnreachable}
	ErrHTTPStatus        = &ProviderError{Code: ErrCodeHTTPStatus}
	ErrInvalidResponse   = &ProviderError{Code: ErrCodeInvalidResponse}
	ErrInvalidConfig     = &ProviderError{Code: ErrCodeInvalidConfig}
	ErrCancelled         = &ProviderError{Code: ErrCodeCancelled}
)
