package interceptors

import (
	"context"
	"log/slog"
	"math"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

// NotificationErrorBoundary swallows errors from the rest of the
// notification chain so one failing observer cannot fail the publish. It
// pins itself to the outermost position; everything inside the boundary
// is covered.
type NotificationErrorBoundary struct {
	logger *slog.Logger
}

// NewNotificationErrorBoundary creates a new notification error boundary.
func NewNotificationErrorBoundary(logger *slog.Logger) *NotificationErrorBoundary {
	if logger == nil {
		logger = slog.Default()
	}

	return &NotificationErrorBoundary{logger: logger}
}

// Intercept implements contracts.NotificationInterceptor.
func (i *NotificationErrorBoundary) Intercept(ctx context.Context, notification any, next contracts.NotificationHandler) error {
	if err := next.Handle(ctx, notification); err != nil {
		i.logger.Error("notification chain failed",
			"notificationType", typeutil.DisplayNameOf(notification),
			"executionId", executionID(ctx),
			"error", err,
		)
	}

	return nil
}

// Name implements contracts.NotificationInterceptor.
func (i *NotificationErrorBoundary) Name() string {
	return "NotificationErrorBoundary"
}

// InterceptorOrder implements contracts.Ordered. The boundary always runs
// first.
func (i *NotificationErrorBoundary) InterceptorOrder() int {
	return math.MinInt
}

var (
	_ contracts.NotificationInterceptor = (*NotificationErrorBoundary)(nil)
	_ contracts.Ordered                 = (*NotificationErrorBoundary)(nil)
)
