package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Executor
// ---------------------------------------------------------------------------

// Attempt describes one network attempt, reported to hooks.
type Attempt struct {
	// Number is 1-based.
	Number int
	Max    int
	Model  string
	// Err is nil for the successful attempt.
	Err error
	// Delay is the backoff before the next attempt (retry hook only).
	Delay time.Duration
	// NextModel is the model the next attempt will use (retry hook only).
	NextModel string
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. Bodies are never logged, only sizes.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBackoff replaces the default linear 2s backoff.
func WithBackoff(b BackoffFunc) Option {
	return func(e *Executor) {
		if b != nil {
			e.backoff = b
		}
	}
}

// WithMinReadTimeout changes the floor applied to ModelConfig.Timeout.
func WithMinReadTimeout(d time.Duration) Option {
	return func(e *Executor) { e.minReadTimeout = d }
}

// WithRegistry resolves dialects from r instead of the global registry.
func WithRegistry(r *Registry) Option {
	return func(e *Executor) { e.registry = r }
}

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) Option {
	return func(e *Executor) { e.userAgent = ua }
}

// OnAttempt registers a hook called after every attempt.
func OnAttempt(fn func(Attempt)) Option {
	return func(e *Executor) { e.onAttempt = fn }
}

// OnRetry registers a hook called when a failed attempt will be retried,
// right before the backoff sleep starts.
func OnRetry(fn func(Attempt)) Option {
	return func(e *Executor) { e.onRetry = fn }
}

// Executor sends prompts with bounded retries, linear backoff and optional
// model failover. One Executor is safe for concurrent use: per-call state
// lives on the stack and timeouts are applied per request, so concurrent
// calls with different configs do not affect each other.
type Executor struct {
	client         *resty.Client
	registry       *Registry
	discovery      *Discovery
	logger         *zap.Logger
	backoff        BackoffFunc
	minReadTimeout time.Duration
	userAgent      string
	onAttempt      func(Attempt)
	onRetry        func(Attempt)
}

// NewExecutor builds an Executor with a pooled HTTP client.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		registry:       globalRegistry,
		logger:         zap.NewNop(),
		backoff:        LinearBackoff(DefaultBackoff),
		minReadTimeout: MinReadTimeout,
		userAgent:      defaultUserAgent,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.client = newHTTPClient(e.logger, e.userAgent)
	e.discovery = &Discovery{
		client:   e.client,
		registry: e.registry,
		logger:   e.logger,
		timeout:  discoveryTimeout,
	}
	return e
}

// Discovery returns the model discovery sharing this executor's client.
func (e *Executor) Discovery() *Discovery {
	return e.discovery
}

// newHTTPClient returns a resty client whose dialer enforces the fixed
// connect timeout. Read timeouts are set per request through the context.
func newHTTPClient(logger *zap.Logger, userAgent string) *resty.Client {
	dialer := &net.Dialer{
		Timeout:   ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return resty.New().
		SetTransport(transport).
		SetLogger(logger.Sugar()).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)
}

// readTimeout applies the floor to the configured timeout.
func (e *Executor) readTimeout(cfg ModelConfig) time.Duration {
	if cfg.Timeout < e.minReadTimeout {
		return e.minReadTimeout
	}
	return cfg.Timeout
}

type execState int

const (
	stateAttempting execState = iota
	stateRetrying
	stateSuccess
	stateExhausted
	stateCancelled
)

// failoverState caches the model list for the duration of one call.
type failoverState struct {
	loaded bool
	models []string
}

// Execute sends prompt to the endpoint described by cfg.
//
// Each call is a small state machine: ATTEMPTING(n) ends in SUCCESS, in
// RETRYING(n+1) or in EXHAUSTED once cfg.Attempts() attempts have been made.
// Cancellation of ctx is checked at the top of every state and aborts the
// in-flight request, so it is honoured during the HTTP call and during the
// backoff sleep alike.
//
// On a timeout, when cfg.Failover is set and the endpoint lists more than one
// model, the next attempt uses the next model in the sorted list, wrapping
// around at the end. This is a heuristic: a smaller model may answer where a
// bigger one times out, but nothing guarantees the review is as good.
func (e *Executor) Execute(ctx context.Context, prompt string, cfg ModelConfig) (*Response, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialect, err := e.registry.Lookup(cfg.Provider)
	if err != nil {
		return nil, err
	}

	var (
		start    = time.Now()
		maxTries = cfg.Attempts()
		current  = cfg
		attempt  = 1
		state    = stateAttempting
		tried    []string
		body     []byte
		status   int
		lastErr  error
		failover failoverState
	)

	log := e.logger.With(
		zap.String("provider", string(cfg.Provider)),
		zap.String("url", cfg.FullURL()),
		zap.Int("prompt_length", len(prompt)),
	)

	for {
		if state != stateSuccess && state != stateCancelled && ctx.Err() != nil {
			state = stateCancelled
		}

		switch state {
		case stateAttempting:
			tried = append(tried, current.ModelName)
			body, status, lastErr = e.send(ctx, dialect, current, prompt, 0, attempt)
			e.notify(e.onAttempt, Attempt{Number: attempt, Max: maxTries, Model: current.ModelName, Err: lastErr})

			switch {
			case lastErr == nil:
				state = stateSuccess
			case errors.Is(lastErr, ErrCancelled):
				state = stateCancelled
			case !retryable(lastErr) || attempt >= maxTries:
				state = stateExhausted
			default:
				state = stateRetrying
			}

		case stateRetrying:
			if cfg.Failover && triggersFailover(lastErr) {
				current = e.failover(ctx, &failover, current, log)
			}
			delay := e.backoff(attempt)
			log.Warn("request attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxTries),
				zap.Duration("backoff", delay),
				zap.String("next_model", current.ModelName),
				zap.Error(lastErr),
			)
			e.notify(e.onRetry, Attempt{
				Number:    attempt,
				Max:       maxTries,
				Model:     tried[len(tried)-1],
				Err:       lastErr,
				Delay:     delay,
				NextModel: current.ModelName,
			})
			if err := sleep(ctx, delay); err != nil {
				state = stateCancelled
				continue
			}
			attempt++
			state = stateAttempting

		case stateSuccess:
			log.Info("request succeeded",
				zap.String("model", current.ModelName),
				zap.Int("status", status),
				zap.Int("body_length", len(body)),
				zap.Int("attempts", attempt),
				zap.Duration("elapsed", time.Since(start)),
			)
			return &Response{
				Body:        body,
				StatusCode:  status,
				Model:       current.ModelName,
				Attempts:    attempt,
				ModelsTried: tried,
				Duration:    time.Since(start),
			}, nil

		case stateExhausted:
			log.Error("request failed",
				zap.String("model", current.ModelName),
				zap.Int("attempts", attempt),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(lastErr),
			)
			return nil, lastErr

		case stateCancelled:
			log.Info("request cancelled",
				zap.Int("attempts", len(tried)),
				zap.Duration("elapsed", time.Since(start)),
			)
			return nil, &ProviderError{
				Code:     ErrCodeCancelled,
				Message:  "request cancelled",
				Provider: string(cfg.Provider),
				Model:    current.ModelName,
				URL:      cfg.FullURL(),
				Cause:    context.Cause(ctx),
			}
		}
	}
}

// Ping sends a tiny prompt once to check the endpoint and model respond.
func (e *Executor) Ping(ctx context.Context, cfg ModelConfig) (*Response, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialect, err := e.registry.Lookup(cfg.Provider)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout < e.minReadTimeout {
		timeout = e.minReadTimeout
	}
	if timeout > pingMaxTimeout {
		timeout = pingMaxTimeout
	}
	cfg.Timeout = timeout

	start := time.Now()
	body, status, err := e.send(ctx, dialect, cfg, pingPrompt, pingMaxTokens, 1)
	if err != nil {
		return nil, err
	}
	return &Response{
		Body:        body,
		StatusCode:  status,
		Model:       cfg.ModelName,
		Attempts:    1,
		ModelsTried: []string{cfg.ModelName},
		Duration:    time.Since(start),
	}, nil
}

const (
	pingPrompt     = "Hello, please respond with 'OK' if you can see this message."
	pingMaxTokens  = 10
	pingMaxTimeout = 120 * time.Second
)

// send performs exactly one HTTP POST.
func (e *Executor) send(
	ctx context.Context,
	dialect Dialect,
	cfg ModelConfig,
	prompt string,
	maxTokens int,
	attempt int,
) ([]byte, int, error) {
	timeout := e.readTimeout(cfg)
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := cfg.FullURL()
	e.logger.Debug("sending request",
		zap.Int("attempt", attempt),
		zap.String("model", cfg.ModelName),
		zap.String("url", url),
		zap.Duration("read_timeout", timeout),
		zap.Int("prompt_length", len(prompt)),
	)

	started := time.Now()
	resp, err := e.client.R().
		SetContext(attemptCtx).
		SetHeaders(dialect.Headers(cfg)).
		SetBody(dialect.RequestBody(cfg, prompt, maxTokens)).
		Post(url)
	if err != nil {
		code := classifyTransport(ctx, err)
		return nil, 0, &ProviderError{
			Code:     code,
			Message:  transportMessage(code, timeout),
			Provider: string(cfg.Provider),
			Model:    cfg.ModelName,
			URL:      url,
			Cause:    err,
		}
	}

	e.logger.Debug("response received",
		zap.Int("attempt", attempt),
		zap.Int("status", resp.StatusCode()),
		zap.Int("body_length", len(resp.Body())),
		zap.Duration("elapsed", time.Since(started)),
	)

	if !resp.IsSuccess() {
		return nil, resp.StatusCode(), &ProviderError{
			Code:       ErrCodeHTTPStatus,
			Message:    fmt.Sprintf("endpoint answered HTTP %d", resp.StatusCode()),
			Provider:   string(cfg.Provider),
			Model:      cfg.ModelName,
			URL:        url,
			StatusCode: resp.StatusCode(),
			Body:       resp.Body(),
		}
	}
	return resp.Body(), resp.StatusCode(), nil
}

func transportMessage(code ErrorCode, timeout time.Duration) string {
	switch code {
	case ErrCodeTimeout:
		return fmt.Sprintf("no response within %s", timeout)
	case ErrCodeConnectionRefused:
		return "connection refused"
	case ErrCodeHostUnreachable:
		return "host unreachable"
	case ErrCodeCancelled:
		return "request cancelled"
	default:
		return "request failed"
	}
}

// failover picks the model after current in the endpoint's model list. The
// list is fetched at most once per call; when it cannot be fetched or has a
// single entry the current model is kept.
func (e *Executor) failover(ctx context.Context, st *failoverState, current ModelConfig, log *zap.Logger) ModelConfig {
	if !st.loaded {
		st.loaded = true
		models, err := e.discovery.Lookup(ctx, current)
		if err != nil {
			log.Warn("model list unavailable, failover disabled for this request", zap.Error(err))
		}
		st.models = models
	}
	if len(st.models) < 2 {
		return current
	}

	next := st.models[0]
	for i, m := range st.models {
		if m == current.ModelName {
			next = st.models[(i+1)%len(st.models)]
			break
		}
	}
	log.Info("failing over to another model",
		zap.String("from", current.ModelName),
		zap.String("to", next),
	)
	return current.WithModel(next)
}

func (e *Executor) notify(fn func(Attempt), a Attempt) {
	if fn != nil {
		fn(a)
	}
}
