package interceptors

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

// RetryInterceptor re-dispatches a failed command with exponential
// backoff between attempts. Errors wrapped by Permanent, or any error
// whose IsRetryable method reports false, stop the loop immediately.
type RetryInterceptor struct {
	maxRetries int
	min        time.Duration
	max        time.Duration
	factor     float64
	jitter     bool
	logger     *slog.Logger
}

// NewRetryInterceptor creates a retry interceptor that re-dispatches a
// failed command up to maxRetries additional times.
func NewRetryInterceptor(maxRetries int) *RetryInterceptor {
	return &RetryInterceptor{
		maxRetries: maxRetries,
		min:        100 * time.Millisecond,
		max:        10 * time.Second,
		factor:     2,
		jitter:     true,
		logger:     slog.Default(),
	}
}

// WithBackoff overrides the default backoff window.
func (i *RetryInterceptor) WithBackoff(min, max time.Duration, factor float64) *RetryInterceptor {
	i.min = min
	i.max = max
	i.factor = factor
	return i
}

// WithJitter toggles jitter on the backoff delays.
func (i *RetryInterceptor) WithJitter(jitter bool) *RetryInterceptor {
	i.jitter = jitter
	return i
}

// WithLogger sets the logger for the retry interceptor.
func (i *RetryInterceptor) WithLogger(logger *slog.Logger) *RetryInterceptor {
	i.logger = logger
	return i
}

// Intercept implements contracts.CommandInterceptor.
func (i *RetryInterceptor) Intercept(ctx context.Context, command any, next contracts.CommandHandler) error {
	// The backoff counter is stateful, so every dispatch gets its own.
	delay := &backoff.Backoff{
		Min:    i.min,
		Max:    i.max,
		Factor: i.factor,
		Jitter: i.jitter,
	}

	var lastErr error
	for attempt := 0; attempt <= i.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay.Duration()):
			case <-ctx.Done():
				return ctx.Err()
			}

			i.logger.Debug("retrying command",
				"commandType", typeutil.DisplayNameOf(command),
				"attempt", attempt,
			)
		}

		lastErr = next.Handle(ctx, command)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
	}

	i.logger.Warn("command retries exhausted",
		"commandType", typeutil.DisplayNameOf(command),
		"retries", i.maxRetries,
		"error", lastErr,
	)

	return lastErr
}

// Name implements contracts.CommandInterceptor.
func (i *RetryInterceptor) Name() string {
	return "RetryInterceptor"
}

// InterceptorOrder implements contracts.Ordered.
func (i *RetryInterceptor) InterceptorOrder() int {
	return OrderRetry
}

// retryable lets errors opt out of the retry loop.
type retryable interface {
	IsRetryable() bool
}

// isRetryable reports whether err may be retried. Unknown errors default
// to retryable.
func isRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return true
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// IsRetryable implements retryable.
func (e *permanentError) IsRetryable() bool { return false }

var _ contracts.CommandInterceptor = (*RetryInterceptor)(nil)
