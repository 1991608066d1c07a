package core

import (
	"encoding/json"
	"fmt"
)

// EnvelopeKind tells which API shape produced a response body.
type EnvelopeKind int

const (
	EnvelopeUnrecognized EnvelopeKind = iota
	// EnvelopeGenerate is Ollama /api/generate: {"response": "..."}.
	EnvelopeGenerate
	// EnvelopeChat is Ollama /api/chat: {"message": {"content": "..."}}.
	EnvelopeChat
	// EnvelopeCompletion is OpenAI-compatible: {"choices": [{"message": {"content": "..."}}]}.
	EnvelopeCompletion
)

func (k EnvelopeKind) String() string {
	switch k {
	case EnvelopeGenerate:
		return "generate"
	case EnvelopeChat:
		return "chat"
	case EnvelopeCompletion:
		return "completion"
	default:
		return "unrecognized"
	}
}

// Envelope is the decoded response. Text is empty for EnvelopeUnrecognized.
type Envelope struct {
	Kind  EnvelopeKind
	Text  string
	Model string
}

type rawMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type rawEnvelope struct {
	Model    string      `json:"model"`
	Response *string     `json:"response"`
	Message  *rawMessage `json:"message"`
	Choices  []struct {
		Message *rawMessage `json:"message"`
		Text    *string     `json:"text"`
	} `json:"choices"`
}

// DecodeEnvelope parses a response body into one of the known shapes.
// Unknown fields are ignored; only invalid JSON is an error.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(body, &raw); err != nil {
		return Envelope{}, fmt.Errorf("decode response body: %w", err)
	}

	env := Envelope{Model: raw.Model}
	switch {
	case raw.Response != nil:
		env.Kind = EnvelopeGenerate
		env.Text = *raw.Response
	case raw.Message != nil && raw.Message.Content != nil:
		env.Kind = EnvelopeChat
		env.Text = *raw.Message.Content
	case len(raw.Choices) > 0 && raw.Choices[0].Message != nil && raw.Choices[0].Message.Content != nil:
		env.Kind = EnvelopeCompletion
		env.Text = *raw.Choices[0].Message.Content
	case len(raw.Choices) > 0 && raw.Choices[0].Text != nil:
		env.Kind = EnvelopeCompletion
		env.Text = *raw.Choices[0].Text
	}
	return env, nil
}

// ExtractContent returns the generated text, or "" when the body is not JSON
// or has none of the known shapes.
func ExtractContent(body []byte) string {
	env, err := DecodeEnvelope(body)
	if err != nil {
		return ""
	}
	return env.Text
}
