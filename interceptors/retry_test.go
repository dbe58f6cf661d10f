package interceptors

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchmate/dmate-go/contracts"
)

// countingHandler fails until the given attempt succeeds.
func countingHandler(calls *atomic.Int32, succeedOn int32, err error) contracts.CommandHandler {
	return contracts.CommandHandlerFunc(func(ctx context.Context, command any) error {
		if calls.Add(1) >= succeedOn {
			return nil
		}
		return err
	})
}

func TestRetryInterceptor(t *testing.T) {
	ctx := context.Background()
	fastRetry := func(maxRetries int) *RetryInterceptor {
		return NewRetryInterceptor(maxRetries).
			WithBackoff(time.Millisecond, 5*time.Millisecond, 2).
			WithJitter(false).
			WithLogger(quiet())
	}

	t.Run("does not retry successful dispatches", func(t *testing.T) {
		var calls atomic.Int32
		i := fastRetry(3)

		err := i.Intercept(ctx, submitPayment{}, countingHandler(&calls, 1, nil))

		assert.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries until success", func(t *testing.T) {
		var calls atomic.Int32
		boom := errors.New("transient")
		i := fastRetry(5)

		err := i.Intercept(ctx, submitPayment{}, countingHandler(&calls, 3, boom))

		assert.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("returns the last error when retries run out", func(t *testing.T) {
		var calls atomic.Int32
		boom := errors.New("still broken")
		i := fastRetry(2)

		err := i.Intercept(ctx, submitPayment{}, countingHandler(&calls, 100, boom))

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int32(3), calls.Load()) // initial attempt + 2 retries
	})

	t.Run("permanent errors stop the loop immediately", func(t *testing.T) {
		var calls atomic.Int32
		boom := Permanent(errors.New("bad input"))
		i := fastRetry(5)

		next := contracts.CommandHandlerFunc(func(ctx context.Context, command any) error {
			calls.Add(1)
			return boom
		})

		err := i.Intercept(ctx, submitPayment{}, next)

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("cancellation interrupts the backoff wait", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		i := NewRetryInterceptor(5).
			WithBackoff(time.Hour, time.Hour, 2).
			WithLogger(quiet())

		next := contracts.CommandHandlerFunc(func(ctx context.Context, command any) error {
			cancel()
			return errors.New("transient")
		})

		err := i.Intercept(cancelCtx, submitPayment{}, next)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPermanent(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Permanent(nil))
	})

	t.Run("wraps and unwraps", func(t *testing.T) {
		boom := errors.New("bad input")
		wrapped := Permanent(boom)

		require.Error(t, wrapped)
		assert.ErrorIs(t, wrapped, boom)
		assert.Equal(t, boom.Error(), wrapped.Error())
		assert.False(t, isRetryable(wrapped))
	})

	t.Run("unknown errors default to retryable", func(t *testing.T) {
		assert.True(t, isRetryable(errors.New("anything")))
	})
}
