package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

func init() {
	Register(ollamaDialect{})
}

// ollamaFallbackModels is served when /api/tags cannot be reached.
var ollamaFallbackModels = []string{
	"codellama:13b",
	"codellama:7b",
	"deepseek-coder:33b",
	"deepseek-coder:6.7b",
	"llama3:70b",
	"llama3:8b",
	"mistral:7b",
	"qwen3:8b",
	"qwen:14b",
	"qwen:7b",
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	TopK        int     `json:"top_k"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []userMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name       string `json:"name"`
		Size       int64  `json:"size"`
		Digest     string `json:"digest"`
		ModifiedAt string `json:"modified_at"`
	} `json:"models"`
}

type ollamaDialect struct{}

func (ollamaDialect) Kind() Kind { return KindOllama }

func (ollamaDialect) Defaults() Defaults {
	return Defaults{
		Endpoint: "http://localhost:11434",
		APIPath:  "/api/generate",
		Model:    "qwen3:8b",
	}
}

// RequestBody speaks /api/generate, or /api/chat when the configured path
// points there.
func (ollamaDialect) RequestBody(cfg ModelConfig, prompt string, maxTokens int) interface{} {
	opts := ollamaOptions{
		Temperature: cfg.Temperature,
		TopP:        0.9,
		TopK:        40,
		NumPredict:  tokenLimit(cfg, maxTokens),
	}
	if strings.HasSuffix(strings.TrimRight(cfg.APIPath, "/"), "api/chat") {
		return ollamaChatRequest{
			Model:    cfg.ModelName,
			Messages: userMessages(prompt),
			Options:  opts,
		}
	}
	return ollamaGenerateRequest{
		Model:   cfg.ModelName,
		Prompt:  prompt,
		Options: opts,
	}
}

func (ollamaDialect) Headers(ModelConfig) map[string]string { return nil }

func (ollamaDialect) ModelsPath() string { return "/api/tags" }

func (ollamaDialect) ParseModels(body []byte) ([]string, error) {
	var tags ollamaTagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if name := strings.TrimSpace(m.Name); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (ollamaDialect) FallbackModels() []string {
	return append([]string(nil), ollamaFallbackModels...)
}
