package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
	"github.com/dispatchmate/dmate-go/pipeline"
)

// LoggingInterceptor logs command dispatches with duration and outcome.
type LoggingInterceptor struct {
	logger *slog.Logger
}

// NewLoggingInterceptor creates a new logging interceptor.
func NewLoggingInterceptor(logger *slog.Logger) *LoggingInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return &LoggingInterceptor{logger: logger}
}

// Intercept implements contracts.CommandInterceptor.
func (i *LoggingInterceptor) Intercept(ctx context.Context, command any, next contracts.CommandHandler) error {
	start := time.Now()
	commandType := typeutil.DisplayNameOf(command)

	i.logger.Info("dispatching command",
		"commandType", commandType,
		"executionId", executionID(ctx),
	)

	err := next.Handle(ctx, command)
	duration := time.Since(start)

	if err != nil {
		i.logger.Error("command dispatch failed",
			"commandType", commandType,
			"executionId", executionID(ctx),
			"duration", duration,
			"error", err,
		)
	} else {
		i.logger.Info("command dispatched",
			"commandType", commandType,
			"executionId", executionID(ctx),
			"duration", duration,
		)
	}

	return err
}

// Name implements contracts.CommandInterceptor.
func (i *LoggingInterceptor) Name() string {
	return "LoggingInterceptor"
}

// InterceptorOrder implements contracts.Ordered.
func (i *LoggingInterceptor) InterceptorOrder() int {
	return OrderLogging
}

// RequestLoggingInterceptor logs request dispatches with duration and
// outcome.
type RequestLoggingInterceptor struct {
	logger *slog.Logger
}

// NewRequestLoggingInterceptor creates a new request logging interceptor.
func NewRequestLoggingInterceptor(logger *slog.Logger) *RequestLoggingInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return &RequestLoggingInterceptor{logger: logger}
}

// Intercept implements contracts.RequestInterceptor.
func (i *RequestLoggingInterceptor) Intercept(ctx context.Context, request any, next contracts.RequestHandler) (any, error) {
	start := time.Now()
	requestType := typeutil.DisplayNameOf(request)

	i.logger.Info("dispatching request",
		"requestType", requestType,
		"executionId", executionID(ctx),
	)

	response, err := next.Handle(ctx, request)
	duration := time.Since(start)

	if err != nil {
		i.logger.Error("request dispatch failed",
			"requestType", requestType,
			"executionId", executionID(ctx),
			"duration", duration,
			"error", err,
		)
	} else {
		i.logger.Info("request dispatched",
			"requestType", requestType,
			"executionId", executionID(ctx),
			"duration", duration,
		)
	}

	return response, err
}

// Name implements contracts.RequestInterceptor.
func (i *RequestLoggingInterceptor) Name() string {
	return "RequestLoggingInterceptor"
}

// InterceptorOrder implements contracts.Ordered.
func (i *RequestLoggingInterceptor) InterceptorOrder() int {
	return OrderLogging
}

// executionID extracts the pipeline execution id for log correlation.
func executionID(ctx context.Context) string {
	if exec, ok := pipeline.ExecutionFromContext(ctx); ok {
		return exec.ID
	}
	return ""
}

var (
	_ contracts.CommandInterceptor = (*LoggingInterceptor)(nil)
	_ contracts.Ordered            = (*LoggingInterceptor)(nil)
	_ contracts.RequestInterceptor = (*RequestLoggingInterceptor)(nil)
	_ contracts.Ordered            = (*RequestLoggingInterceptor)(nil)
)
