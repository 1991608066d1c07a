package review

import (
	"strings"
	"time"

	"github.com/sanix-darker/aireview/internal/core"
)

// Status is the lifecycle state of a review run.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusError      Status = "ERROR"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}

// Result is the outcome of one orchestration run. It starts IN_PROGRESS and
// is finalized exactly once by Succeed, Fail or Cancel; later calls to any
// finalizer are ignored.
//
// SUCCESS always carries non-empty Content and no ErrorMessage. ERROR and
// CANCELLED always carry an ErrorMessage and empty Content.
type Result struct {
	ID              string            `json:"id"`
	Content         string            `json:"review_content"`
	ModelUsed       string            `json:"model_used"`
	ConfiguredModel string            `json:"configured_model"`
	Template        string            `json:"prompt_template_used"`
	Changes         []core.CodeChange `json:"code_changes"`
	Status          Status            `json:"status"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
	Duration        time.Duration     `json:"-"`
	Attempts        int               `json:"attempts"`
}

func newResult(id, template, model string, changes []core.CodeChange, now time.Time) Result {
	return Result{
		ID:              id,
		Template:        template,
		ConfiguredModel: model,
		ModelUsed:       model,
		Changes:         changes,
		Status:          StatusInProgress,
		Timestamp:       now,
	}
}

// Succeed finalizes the result with the review text. Blank content is not a
// review, so it finalizes as ERROR instead.
func (r *Result) Succeed(content, model string) {
	if r.Status.Terminal() {
		return
	}
	content = strings.TrimSpace(content)
	if content == "" {
		r.Fail("The model " + quoteModel(model) + " returned an empty review. Try again or pick another model.")
		return
	}
	if model != "" {
		r.ModelUsed = model
	}
	r.Content = content
	r.ErrorMessage = ""
	r.finalize(StatusSuccess)
}

// Fail finalizes the result as ERROR.
func (r *Result) Fail(message string) {
	if r.Status.Terminal() {
		return
	}
	if strings.TrimSpace(message) == "" {
		message = "Review failed for an unknown reason."
	}
	r.Content = ""
	r.ErrorMessage = message
	r.finalize(StatusError)
}

// Cancel finalizes the result as CANCELLED.
func (r *Result) Cancel(message string) {
	if r.Status.Terminal() {
		return
	}
	if strings.TrimSpace(message) == "" {
		message = "Review cancelled."
	}
	r.Content = ""
	r.ErrorMessage = message
	r.finalize(StatusCancelled)
}

func (r *Result) finalize(s Status) {
	r.Status = s
	if !r.Timestamp.IsZero() {
		r.Duration = time.Since(r.Timestamp)
	}
}

func quoteModel(model string) string {
	if model == "" {
		return "in use"
	}
	return `"` + model + `"`
}
