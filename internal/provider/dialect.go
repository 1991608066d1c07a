package provider

// ---------------------------------------------------------------------------
// Dialects
// ---------------------------------------------------------------------------

// Defaults are the values a dialect starts from when the configuration file
// leaves them out.
type Defaults struct {
	Endpoint string
	APIPath  string
	Model    string
}

// Dialect translates between a ModelConfig and one endpoint's wire format.
// Implementations are stateless and safe for concurrent use.
type Dialect interface {
	// Kind is the registry key, also the value of the "provider" setting.
	Kind() Kind

	// Defaults returns the connection values used when none are configured.
	Defaults() Defaults

	// RequestBody builds the JSON payload for a prompt. maxTokens overrides
	// cfg.MaxTokens when positive (connection tests ask for a few tokens).
	RequestBody(cfg ModelConfig, prompt string, maxTokens int) interface{}

	// Headers returns extra request headers such as authentication.
	Headers(cfg ModelConfig) map[string]string

	// ModelsPath is the model-listing path relative to the endpoint.
	ModelsPath() string

	// ParseModels extracts model names from a model-listing response.
	ParseModels(body []byte) ([]string, error)

	// FallbackModels is returned when the listing cannot be fetched.
	FallbackModels() []string
}

type userMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func userMessages(prompt string) []userMessage {
	return []userMessage{{Role: "user", Content: prompt}}
}

func tokenLimit(cfg ModelConfig, override int) int {
	if override > 0 {
		return override
	}
	return cfg.MaxTokens
}
