package interceptors

import (
	"context"
	"fmt"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

// ValidationInterceptor rejects commands that fail their own Validate
// method before they reach the handler. Commands that do not implement
// contracts.Validator pass through untouched.
type ValidationInterceptor struct{}

// NewValidationInterceptor creates a new validation interceptor.
func NewValidationInterceptor() *ValidationInterceptor {
	return &ValidationInterceptor{}
}

// Intercept implements contracts.CommandInterceptor.
func (i *ValidationInterceptor) Intercept(ctx context.Context, command any, next contracts.CommandHandler) error {
	if err := validatePayload(ctx, command); err != nil {
		return err
	}

	return next.Handle(ctx, command)
}

// Name implements contracts.CommandInterceptor.
func (i *ValidationInterceptor) Name() string {
	return "ValidationInterceptor"
}

// InterceptorOrder implements contracts.Ordered.
func (i *ValidationInterceptor) InterceptorOrder() int {
	return OrderValidation
}

// RequestValidationInterceptor rejects requests that fail their own
// Validate method before they reach the handler.
type RequestValidationInterceptor struct{}

// NewRequestValidationInterceptor creates a new request validation
// interceptor.
func NewRequestValidationInterceptor() *RequestValidationInterceptor {
	return &RequestValidationInterceptor{}
}

// Intercept implements contracts.RequestInterceptor.
func (i *RequestValidationInterceptor) Intercept(ctx context.Context, request any, next contracts.RequestHandler) (any, error) {
	if err := validatePayload(ctx, request); err != nil {
		return nil, err
	}

	return next.Handle(ctx, request)
}

// Name implements contracts.RequestInterceptor.
func (i *RequestValidationInterceptor) Name() string {
	return "RequestValidationInterceptor"
}

// InterceptorOrder implements contracts.Ordered.
func (i *RequestValidationInterceptor) InterceptorOrder() int {
	return OrderValidation
}

func validatePayload(ctx context.Context, payload any) error {
	v, ok := payload.(contracts.Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(ctx); err != nil {
		return fmt.Errorf("%s validation failed: %w", typeutil.DisplayNameOf(payload), err)
	}
	return nil
}

var (
	_ contracts.CommandInterceptor = (*ValidationInterceptor)(nil)
	_ contracts.RequestInterceptor = (*RequestValidationInterceptor)(nil)
)
