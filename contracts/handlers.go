package contracts

import "context"

// Specialized handler interfaces for the four pipeline shapes. Handlers
// sit at the end of a pipeline; interceptors wrap them.

// RequestHandler processes a request and produces a response.
type RequestHandler interface {
	Handle(ctx context.Context, request any) (any, error)
}

// RequestHandlerFunc adapts a function to RequestHandler.
type RequestHandlerFunc func(ctx context.Context, request any) (any, error)

// Handle implements RequestHandler.
func (f RequestHandlerFunc) Handle(ctx context.Context, request any) (any, error) {
	return f(ctx, request)
}

// CommandHandler processes a command that produces no response value.
type CommandHandler interface {
	Handle(ctx context.Context, command any) error
}

// CommandHandlerFunc adapts a function to CommandHandler.
type CommandHandlerFunc func(ctx context.Context, command any) error

// Handle implements CommandHandler.
func (f CommandHandlerFunc) Handle(ctx context.Context, command any) error {
	return f(ctx, command)
}

// NotificationHandler receives a published notification. Multiple handlers
// may be subscribed to the same notification type.
type NotificationHandler interface {
	Handle(ctx context.Context, notification any) error
}

// NotificationHandlerFunc adapts a function to NotificationHandler.
type NotificationHandlerFunc func(ctx context.Context, notification any) error

// Handle implements NotificationHandler.
func (f NotificationHandlerFunc) Handle(ctx context.Context, notification any) error {
	return f(ctx, notification)
}

// StreamItem is one element of a streamed response. A non-nil Err
// terminates the stream; Value is meaningful only when Err is nil.
type StreamItem struct {
	Value any
	Err   error
}

// StreamHandler processes a request by producing a channel of items. The
// handler owns the channel and must close it when the stream ends or ctx
// is cancelled.
type StreamHandler interface {
	Handle(ctx context.Context, request any) (<-chan StreamItem, error)
}

// StreamHandlerFunc adapts a function to StreamHandler.
type StreamHandlerFunc func(ctx context.Context, request any) (<-chan StreamItem, error)

// Handle implements StreamHandler.
func (f StreamHandlerFunc) Handle(ctx context.Context, request any) (<-chan StreamItem, error) {
	return f(ctx, request)
}
