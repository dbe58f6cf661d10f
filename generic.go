package dmate

import (
	"context"
	"fmt"
	"reflect"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

// Type-safe wrappers over the Mediator methods. Go methods cannot take
// type parameters, so these live at package level and derive the reflect
// types the engine is keyed by.

// typeOf returns the reflect.Type denoted by T, including interface and
// pointer instantiations.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Send dispatches a request and asserts the response to TResponse.
func Send[TResponse any](ctx context.Context, m *Mediator, request any) (TResponse, error) {
	out, err := m.Send(ctx, request)
	if err != nil {
		var zero TResponse
		return zero, err
	}
	return assertResponse[TResponse](out)
}

// SendTo dispatches a request looking the handler up by the TRequest type
// parameter rather than the payload's runtime type, which reaches
// handlers registered for interface types.
func SendTo[TRequest, TResponse any](ctx context.Context, m *Mediator, request TRequest) (TResponse, error) {
	out, err := m.sendByType(ctx, typeOf[TRequest](), request)
	if err != nil {
		var zero TResponse
		return zero, err
	}
	return assertResponse[TResponse](out)
}

// RegisterRequestHandler registers handler for TRequest dispatches and
// declares TResponse so response-constrained templates can join them.
func RegisterRequestHandler[TRequest, TResponse any](m *Mediator, handler contracts.RequestHandler) error {
	return m.registerRequest(typeOf[TRequest](), typeOf[TResponse](), handler)
}

// RegisterRequestHandlerFunc registers a typed function as the TRequest
// handler.
func RegisterRequestHandlerFunc[TRequest, TResponse any](m *Mediator, fn func(ctx context.Context, request TRequest) (TResponse, error)) error {
	if fn == nil {
		return fmt.Errorf("dmate: handler cannot be nil")
	}
	handler := contracts.RequestHandlerFunc(func(ctx context.Context, request any) (any, error) {
		typed, err := assertPayload[TRequest](request)
		if err != nil {
			return nil, err
		}
		return fn(ctx, typed)
	})
	return m.registerRequest(typeOf[TRequest](), typeOf[TResponse](), handler)
}

// RegisterCommandHandler registers handler for TCommand dispatches.
func RegisterCommandHandler[TCommand any](m *Mediator, handler contracts.CommandHandler) error {
	return m.registerCommand(typeOf[TCommand](), handler)
}

// RegisterCommandHandlerFunc registers a typed function as the TCommand
// handler.
func RegisterCommandHandlerFunc[TCommand any](m *Mediator, fn func(ctx context.Context, command TCommand) error) error {
	if fn == nil {
		return fmt.Errorf("dmate: handler cannot be nil")
	}
	handler := contracts.CommandHandlerFunc(func(ctx context.Context, command any) error {
		typed, err := assertPayload[TCommand](command)
		if err != nil {
			return err
		}
		return fn(ctx, typed)
	})
	return m.registerCommand(typeOf[TCommand](), handler)
}

// RegisterStreamHandler registers handler for TRequest stream dispatches
// and declares TItem so response-constrained templates can join them.
func RegisterStreamHandler[TRequest, TItem any](m *Mediator, handler contracts.StreamHandler) error {
	return m.registerStream(typeOf[TRequest](), typeOf[TItem](), handler)
}

// RegisterStreamHandlerFunc registers a typed function as the TRequest
// stream handler.
func RegisterStreamHandlerFunc[TRequest, TItem any](m *Mediator, fn func(ctx context.Context, request TRequest) (<-chan contracts.StreamItem, error)) error {
	if fn == nil {
		return fmt.Errorf("dmate: handler cannot be nil")
	}
	handler := contracts.StreamHandlerFunc(func(ctx context.Context, request any) (<-chan contracts.StreamItem, error) {
		typed, err := assertPayload[TRequest](request)
		if err != nil {
			return nil, err
		}
		return fn(ctx, typed)
	})
	return m.registerStream(typeOf[TRequest](), typeOf[TItem](), handler)
}

// Subscribe adds subscriber for notifications assignable to
// TNotification. Interface instantiations subscribe to every
// notification implementing them.
func Subscribe[TNotification any](m *Mediator, subscriber contracts.NotificationHandler) error {
	return m.subscribe(typeOf[TNotification](), subscriber)
}

// SubscribeFunc adds a typed function as a TNotification subscriber and
// returns the adapter so it can be handed to Unsubscribe later. Each call
// returns a distinct adapter; two adapters wrapping the same function do
// not alias each other.
func SubscribeFunc[TNotification any](m *Mediator, fn func(ctx context.Context, notification TNotification) error) (contracts.NotificationHandler, error) {
	if fn == nil {
		return nil, fmt.Errorf("dmate: subscriber cannot be nil")
	}
	subscriber := &typedSubscriber[TNotification]{fn: fn}
	if err := m.subscribe(typeOf[TNotification](), subscriber); err != nil {
		return nil, err
	}
	return subscriber, nil
}

// typedSubscriber adapts a typed function to contracts.NotificationHandler
// behind a pointer, so every SubscribeFunc call has its own identity.
type typedSubscriber[T any] struct {
	fn func(ctx context.Context, notification T) error
}

// Handle implements contracts.NotificationHandler.
func (s *typedSubscriber[T]) Handle(ctx context.Context, notification any) error {
	typed, err := assertPayload[T](notification)
	if err != nil {
		return err
	}
	return s.fn(ctx, typed)
}

// assertPayload narrows a pipeline payload back to its registered type.
// Interceptors may replace the payload mid-chain, so the narrowing can
// legitimately fail.
func assertPayload[T any](payload any) (T, error) {
	typed, ok := payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("dmate: payload is %s, not %s", typeutil.DisplayNameOf(payload), typeutil.DisplayName(typeOf[T]()))
	}
	return typed, nil
}

// assertResponse narrows a pipeline response to the declared type. A nil
// response narrows to the zero value.
func assertResponse[TResponse any](out any) (TResponse, error) {
	if out == nil {
		var zero TResponse
		return zero, nil
	}
	resp, ok := out.(TResponse)
	if !ok {
		var zero TResponse
		return zero, fmt.Errorf("dmate: response is %s, not %s", typeutil.DisplayNameOf(out), typeutil.DisplayName(typeOf[TResponse]()))
	}
	return resp, nil
}
