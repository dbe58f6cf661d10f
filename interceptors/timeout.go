package interceptors

import (
	"context"
	"fmt"
	"time"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

// TimeoutInterceptor bounds how long the rest of the chain may take. The
// downstream handler keeps running on its own goroutine after a timeout;
// it is expected to honor the cancelled context.
type TimeoutInterceptor struct {
	timeout time.Duration
}

// NewTimeoutInterceptor creates a new timeout interceptor.
func NewTimeoutInterceptor(timeout time.Duration) *TimeoutInterceptor {
	return &TimeoutInterceptor{timeout: timeout}
}

// Intercept implements contracts.CommandInterceptor.
func (i *TimeoutInterceptor) Intercept(ctx context.Context, command any, next contracts.CommandHandler) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- next.Handle(timeoutCtx, command)
	}()

	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		return fmt.Errorf("command %s timed out after %v: %w",
			typeutil.DisplayNameOf(command), i.timeout, timeoutCtx.Err())
	}
}

// Name implements contracts.CommandInterceptor.
func (i *TimeoutInterceptor) Name() string {
	return "TimeoutInterceptor"
}

// InterceptorOrder implements contracts.Ordered.
func (i *TimeoutInterceptor) InterceptorOrder() int {
	return OrderTimeout
}

var _ contracts.CommandInterceptor = (*TimeoutInterceptor)(nil)
