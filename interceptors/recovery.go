package interceptors

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

// PanicError wraps a recovered panic value with the stack trace captured
// at the point of recovery.
type PanicError struct {
	PanicValue any
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.PanicValue)
}

// RecoveryInterceptor converts panics raised by downstream command
// interceptors or the handler into a *PanicError so a single misbehaving
// handler cannot take the process down.
type RecoveryInterceptor struct {
	logger *slog.Logger
}

// NewRecoveryInterceptor creates a new recovery interceptor.
func NewRecoveryInterceptor(logger *slog.Logger) *RecoveryInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return &RecoveryInterceptor{logger: logger}
}

// Intercept implements contracts.CommandInterceptor.
func (i *RecoveryInterceptor) Intercept(ctx context.Context, command any, next contracts.CommandHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			panicErr := &PanicError{
				PanicValue: r,
				StackTrace: string(debug.Stack()),
			}
			i.logger.Error("command handler panicked",
				"commandType", typeutil.DisplayNameOf(command),
				"panic", r,
				"stack", panicErr.StackTrace,
			)
			err = panicErr
		}
	}()

	return next.Handle(ctx, command)
}

// Name implements contracts.CommandInterceptor.
func (i *RecoveryInterceptor) Name() string {
	return "RecoveryInterceptor"
}

// InterceptorOrder implements contracts.Ordered.
func (i *RecoveryInterceptor) InterceptorOrder() int {
	return OrderRecovery
}

// RequestRecoveryInterceptor converts panics raised by downstream request
// interceptors or the handler into a *PanicError.
type RequestRecoveryInterceptor struct {
	logger *slog.Logger
}

// NewRequestRecoveryInterceptor creates a new request recovery interceptor.
func NewRequestRecoveryInterceptor(logger *slog.Logger) *RequestRecoveryInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return &RequestRecoveryInterceptor{logger: logger}
}

// Intercept implements contracts.RequestInterceptor.
func (i *RequestRecoveryInterceptor) Intercept(ctx context.Context, request any, next contracts.RequestHandler) (response any, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicErr := &PanicError{
				PanicValue: r,
				StackTrace: string(debug.Stack()),
			}
			i.logger.Error("request handler panicked",
				"requestType", typeutil.DisplayNameOf(request),
				"panic", r,
				"stack", panicErr.StackTrace,
			)
			response = nil
			err = panicErr
		}
	}()

	return next.Handle(ctx, request)
}

// Name implements contracts.RequestInterceptor.
func (i *RequestRecoveryInterceptor) Name() string {
	return "RequestRecoveryInterceptor"
}

// InterceptorOrder implements contracts.Ordered.
func (i *RequestRecoveryInterceptor) InterceptorOrder() int {
	return OrderRecovery
}

var (
	_ contracts.CommandInterceptor = (*RecoveryInterceptor)(nil)
	_ contracts.RequestInterceptor = (*RequestRecoveryInterceptor)(nil)
)
