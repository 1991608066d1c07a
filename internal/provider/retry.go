package provider

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"
)

// ---------------------------------------------------------------------------
// Retry helpers
// ---------------------------------------------------------------------------

// BackoffFunc returns how long to wait after the given failed attempt
// (1-based) before the next one.
type BackoffFunc func(attempt int) time.Duration

// LinearBackoff waits attempt*base: 2s, 4s, 6s for a 2s base.
func LinearBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * base
	}
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classifyTransport maps a transport error to an error code. parent is the
// caller's context: its cancellation wins over everything else, while a
// deadline on the per-attempt context is a timeout.
func classifyTransport(parent context.Context, err error) ErrorCode {
	if parent.Err() != nil {
		return ErrCodeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrCodeTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrCodeConnectionRefused
	}
	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return ErrCodeHostUnreachable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrCodeHostUnreachable
	}
	return ErrCodeUnknown
}

// retryable returns true if the error is worth another attempt.
func retryable(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return true
	}
	return pe.Retryable()
}

// triggersFailover is true only for timeouts: a refused connection will be
// refused for every model on the same host.
func triggersFailover(err error) bool {
	return errors.Is(err, ErrTimeout)
}
