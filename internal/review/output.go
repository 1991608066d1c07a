package review

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Markdown renders the result for the terminal.
func (r Result) Markdown() string {
	var sb strings.Builder

	sb.WriteString("# Code Review Results\n\n")

	if r.Status == StatusSuccess {
		sb.WriteString("## Review Feedback\n\n")
		sb.WriteString(r.Content)
		sb.WriteString("\n\n")
	} else {
		sb.WriteString("## Error\n\n")
		sb.WriteString(r.ErrorMessage)
		sb.WriteString("\n\n")
	}

	if len(r.Changes) > 0 {
		sb.WriteString("## Reviewed Changes\n\n")
		for _, c := range r.Changes {
			sb.WriteString(fmt.Sprintf("- %s (%s)\n", c.FilePath, c.ChangeType))
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

var statusLabels = map[Status]string{
	StatusSuccess:    "✅ Success",
	StatusError:      "❌ Failed",
	StatusInProgress: "⏳ In progress",
	StatusCancelled:  "❎ Cancelled",
}

// Report renders the result as the Markdown document saved to disk.
func (r Result) Report() string {
	var sb strings.Builder

	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	sb.WriteString("# AI Code Review Report\n\n")
	sb.WriteString(fmt.Sprintf("**Generated**: %s\n", ts.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Review ID**: %s\n", r.ID))
	sb.WriteString(fmt.Sprintf("**Model**: %s\n", r.ModelUsed))
	if r.ConfiguredModel != "" && r.ConfiguredModel != r.ModelUsed {
		sb.WriteString(fmt.Sprintf("**Configured model**: %s (failover)\n", r.ConfiguredModel))
	}
	if r.Template != "" {
		sb.WriteString(fmt.Sprintf("**Template**: %s\n", r.Template))
	}
	sb.WriteString(fmt.Sprintf("**Status**: %s\n", statusLabels[r.Status]))
	if r.Duration > 0 {
		sb.WriteString(fmt.Sprintf("**Duration**: %s\n", r.Duration.Round(time.Millisecond)))
	}
	sb.WriteString("\n---\n\n")

	if r.Status == StatusSuccess {
		sb.WriteString(r.Content)
		sb.WriteString("\n")
	} else {
		sb.WriteString("## ❌ Review failed\n\n")
		sb.WriteString(fmt.Sprintf("**Error**: %s\n\n", r.ErrorMessage))
		sb.WriteString("Check the provider configuration and your network connection, then try again.\n")
	}

	if len(r.Changes) > 0 {
		sb.WriteString("\n## Reviewed Changes\n\n")
		for _, c := range r.Changes {
			sb.WriteString(fmt.Sprintf("- %s (%s)\n", c.FilePath, c.ChangeType))
		}
	}

	sb.WriteString("\n---\n")
	return sb.String()
}

// jsonResult is the --json shape: file contents are left out, only paths
// and change types are listed.
type jsonResult struct {
	ID              string       `json:"id"`
	Status          Status       `json:"status"`
	ReviewContent   string       `json:"review_content,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	ModelUsed       string       `json:"model_used"`
	ConfiguredModel string       `json:"configured_model"`
	Template        string       `json:"prompt_template_used"`
	Timestamp       time.Time    `json:"timestamp"`
	DurationMS      int64        `json:"duration_ms"`
	Attempts        int          `json:"attempts"`
	Changes         []jsonChange `json:"code_changes"`
}

type jsonChange struct {
	FilePath   string `json:"file_path"`
	ChangeType string `json:"change_type"`
}

// JSON encodes results for machine consumption.
func JSON(results ...Result) ([]byte, error) {
	out := make([]jsonResult, 0, len(results))
	for _, r := range results {
		jr := jsonResult{
			ID:              r.ID,
			Status:          r.Status,
			ReviewContent:   r.Content,
			ErrorMessage:    r.ErrorMessage,
			ModelUsed:       r.ModelUsed,
			ConfiguredModel: r.ConfiguredModel,
			Template:        r.Template,
			Timestamp:       r.Timestamp,
			DurationMS:      r.Duration.Milliseconds(),
			Attempts:        r.Attempts,
			Changes:         make([]jsonChange, 0, len(r.Changes)),
		}
		for _, c := range r.Changes {
			jr.Changes = append(jr.Changes, jsonChange{FilePath: c.FilePath, ChangeType: string(c.ChangeType)})
		}
		out = append(out, jr)
	}
	if len(out) == 1 {
		return json.MarshalIndent(out[0], "", "  ")
	}
	return json.MarshalIndent(out, "", "  ")
}
