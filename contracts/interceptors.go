package contracts

import "context"

// Interceptors wrap pipeline execution. Each receives the next stage of
// its pipeline as a handler: calling next continues the chain, returning
// without calling next short-circuits it, and work placed after the call
// runs on the way back out.

// RequestInterceptor wraps request execution.
type RequestInterceptor interface {
	// Intercept processes the request and decides whether to invoke next.
	Intercept(ctx context.Context, request any, next RequestHandler) (any, error)

	// Name identifies the interceptor in logs and reports.
	Name() string
}

// CommandInterceptor wraps command execution.
type CommandInterceptor interface {
	Intercept(ctx context.Context, command any, next CommandHandler) error
	Name() string
}

// NotificationInterceptor wraps notification fan-out. The next stage
// delivers the notification to every remaining interceptor and then to
// all subscribers.
type NotificationInterceptor interface {
	Intercept(ctx context.Context, notification any, next NotificationHandler) error
	Name() string
}

// StreamInterceptor wraps stream execution. Implementations may return
// the channel from next unchanged or wrap it to observe or transform
// items as they flow.
type StreamInterceptor interface {
	Intercept(ctx context.Context, request any, next StreamHandler) (<-chan StreamItem, error)
	Name() string
}
