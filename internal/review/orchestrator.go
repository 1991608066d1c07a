package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sanix-darker/aireview/internal/core"
	"github.com/sanix-darker/aireview/internal/provider"
	"go.uber.org/zap"
)

// Executor sends one prompt, retrying as configured. *provider.Executor
// satisfies it.
type Executor interface {
	Execute(ctx context.Context, prompt string, cfg provider.ModelConfig) (*provider.Response, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLanguage sets the language the model is asked to answer in.
func WithLanguage(lang string) Option {
	return func(o *Orchestrator) { o.assembler = core.NewAssembler(lang) }
}

// Orchestrator runs a review end to end: assemble the prompt, dispatch it,
// clean up the answer. It holds no per-run state and is safe for
// concurrent use.
type Orchestrator struct {
	executor  Executor
	assembler core.Assembler
	logger    *zap.Logger
	newID     func() string
	now       func() time.Time
}

// NewOrchestrator returns an Orchestrator dispatching through exec.
func NewOrchestrator(exec Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		executor:  exec,
		assembler: core.NewAssembler("en"),
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Review reviews changes with the given template and model settings. It
// never returns an error and never panics: every failure, cancellation
// included, is reported through the returned Result.
func (o *Orchestrator) Review(
	ctx context.Context,
	changes []core.CodeChange,
	templateText string,
	templateName string,
	cfg provider.ModelConfig,
) (res Result) {
	res = newResult(o.newID(), templateName, cfg.ModelName, changes, o.now())
	log := o.logger.With(
		zap.String("run_id", res.ID),
		zap.String("template", templateName),
		zap.String("model", cfg.ModelName),
		zap.Int("files", len(changes)),
	)

	defer func() {
		if p := recover(); p != nil {
			log.Error("review panicked", zap.Any("panic", p), zap.Stack("stack"))
			res.Fail(fmt.Sprintf("Internal error while reviewing: %v", p))
		}
		if !res.Status.Terminal() {
			res.Fail("Review ended without a result.")
		}
		log.Info("review finished",
			zap.String("status", string(res.Status)),
			zap.String("model_used", res.ModelUsed),
			zap.Int("attempts", res.Attempts),
			zap.Duration("duration", res.Duration),
		)
	}()

	o.run(ctx, &res, changes, templateText, templateName, cfg, log)
	return res
}

func (o *Orchestrator) run(
	ctx context.Context,
	res *Result,
	changes []core.CodeChange,
	templateText string,
	templateName string,
	cfg provider.ModelConfig,
	log *zap.Logger,
) {
	if ctx.Err() != nil {
		res.Cancel(cancelMessage)
		return
	}
	if err := cfg.Validate(); err != nil {
		res.Fail(describeError(err, cfg))
		return
	}
	if problem := inputProblem(changes, templateText); problem != "" {
		res.Fail(problem)
		return
	}

	// ASSEMBLING
	prompt := o.assembler.Assemble(templateText, changes, templateName)
	log.Debug("prompt assembled", zap.Int("prompt_length", len(prompt)))

	// DISPATCHING
	resp, err := o.executor.Execute(ctx, prompt, cfg)
	if resp != nil {
		res.Attempts = resp.Attempts
	}
	if err != nil {
		if errors.Is(err, provider.ErrCancelled) || ctx.Err() != nil {
			res.Cancel(cancelMessage)
			return
		}
		log.Warn("review request failed", zap.Error(err))
		res.Fail(describeError(err, cfg))
		return
	}

	// PROCESSING
	text, err := responseText(resp.Body, log)
	if err != nil {
		res.Fail(describeError(&provider.ProviderError{
			Code:  provider.ErrCodeInvalidResponse,
			Model: resp.Model,
			Cause: err,
		}, cfg))
		return
	}
	if text == "" {
		res.Fail(fmt.Sprintf(
			"The response from %s (model %q) contained no review text. Check that the API path matches the provider.",
			cfg.FullURL(), resp.Model,
		))
		return
	}
	cleaned := core.StripReasoning(text)

	if ctx.Err() != nil {
		res.Cancel(cancelMessage)
		return
	}
	if resp.Model != cfg.ModelName {
		log.Info("review produced by failover model", zap.String("model_used", resp.Model))
	}
	res.Succeed(cleaned, resp.Model)
}

const cancelMessage = "Review cancelled by user."

// inputProblem describes what is wrong with the review input, or returns "".
func inputProblem(changes []core.CodeChange, templateText string) string {
	if strings.TrimSpace(templateText) == "" {
		return "Invalid configuration: the review template is empty."
	}
	if len(changes) == 0 {
		return "Nothing to review: no code changes were provided."
	}
	for _, c := range changes {
		if err := c.Validate(); err != nil {
			return fmt.Sprintf("Invalid code change: %v", err)
		}
	}
	return ""
}

// responseText extracts the model's answer. A body that is not JSON is an
// error.
func responseText(body []byte, log *zap.Logger) (string, error) {
	env, err := core.DecodeEnvelope(body)
	if err != nil {
		log.Warn("response is not JSON", zap.Int("body_length", len(body)), zap.Error(err))
		return "", err
	}
	if env.Kind == core.EnvelopeUnrecognized {
		log.Warn("response has no known content field", zap.Int("body_length", len(body)))
	}
	return strings.TrimSpace(env.Text), nil
}

// describeError turns an executor error into a message naming the setting
// the user should look at.
func describeError(err error, cfg provider.ModelConfig) string {
	url := cfg.FullURL()
	var pe *provider.ProviderError
	errors.As(err, &pe)
	model := cfg.ModelName
	if pe != nil && pe.Model != "" {
		model = pe.Model
	}

	switch {
	case errors.Is(err, provider.ErrInvalidConfig):
		msg := err.Error()
		if pe != nil && pe.Message != "" {
			msg = pe.Message
		}
		return fmt.Sprintf("Invalid configuration: %s", msg)
	case errors.Is(err, provider.ErrTimeout):
		return fmt.Sprintf(
			"Request to %s timed out (timeout %s, model %q). Increase the timeout or choose a smaller model.",
			url, effectiveTimeout(cfg), model,
		)
	case errors.Is(err, provider.ErrConnectionRefused):
		return fmt.Sprintf(
			"Connection to %s was refused. Check that the %s service is running and listening on that address.",
			url, cfg.Provider,
		)
	case errors.Is(err, provider.ErrHostUnreachable):
		return fmt.Sprintf(
			"Cannot reach %s. Check the endpoint address and your network connection.",
			url,
		)
	case errors.Is(err, provider.ErrHTTPStatus):
		status := 0
		if pe != nil {
			status = pe.StatusCode
		}
		return fmt.Sprintf(
			"%s answered HTTP %d for model %q. Check the model name%s.",
			url, status, model, apiKeyHint(cfg),
		)
	case errors.Is(err, provider.ErrInvalidResponse):
		return fmt.Sprintf("%s returned a response that could not be read (model %q).", url, model)
	default:
		return fmt.Sprintf("Review request to %s failed (model %q): %v", url, model, err)
	}
}

func effectiveTimeout(cfg provider.ModelConfig) time.Duration {
	if cfg.Timeout < provider.MinReadTimeout {
		return provider.MinReadTimeout
	}
	return cfg.Timeout
}

func apiKeyHint(cfg provider.ModelConfig) string {
	if cfg.Provider == provider.KindOpenRouter {
		return " and API key"
	}
	return ""
}
