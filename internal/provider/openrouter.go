package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

func init() {
	Register(openRouterDialect{})
}

const (
	openRouterReferer = "https://github.com/sanix-darker/aireview"
	openRouterTitle   = "aireview"
)

var openRouterFallbackModels = []string{
	"deepseek/deepseek-chat",
	"meta-llama/llama-3.3-70b-instruct",
	"mistralai/codestral-2501",
	"openai/gpt-4o-mini",
	"qwen/qwen-2.5-coder-32b-instruct",
	"qwen/qwen3-coder:free",
}

type openRouterRequest struct {
	Model       string        `json:"model"`
	Messages    []userMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type openRouterModelsResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

type openRouterDialect struct{}

func (openRouterDialect) Kind() Kind { return KindOpenRouter }

func (openRouterDialect) Defaults() Defaults {
	return Defaults{
		Endpoint: "https://openrouter.ai",
		APIPath:  "/api/v1/chat/completions",
		Model:    "qwen/qwen3-coder:free",
	}
}

func (openRouterDialect) RequestBody(cfg ModelConfig, prompt string, maxTokens int) interface{} {
	return openRouterRequest{
		Model:       cfg.ModelName,
		Messages:    userMessages(prompt),
		Temperature: cfg.Temperature,
		MaxTokens:   tokenLimit(cfg, maxTokens),
	}
}

func (openRouterDialect) Headers(cfg ModelConfig) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + strings.TrimSpace(cfg.APIKey),
		"HTTP-Referer":  openRouterReferer,
		"X-Title":       openRouterTitle,
	}
}

func (openRouterDialect) ModelsPath() string { return "/api/v1/models" }

func (openRouterDialect) ParseModels(body []byte) ([]string, error) {
	var resp openRouterModelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	names := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		if id := strings.TrimSpace(m.ID); id != "" {
			names = append(names, id)
		}
	}
	return names, nil
}

func (openRouterDialect) FallbackModels() []string {
	return append([]string(nil), openRouterFallbackModels...)
}
