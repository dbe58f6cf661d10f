package pipeline

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

var (
	// ErrRegistryFrozen is returned by Add once the first execution has
	// locked the registry.
	ErrRegistryFrozen = errors.New("pipeline: registry is frozen after first execution")

	// ErrNilDefinition is returned when Add receives a nil definition.
	ErrNilDefinition = errors.New("pipeline: interceptor definition cannot be nil")

	// ErrNilPayload is returned by the execute entry points for nil
	// payloads.
	ErrNilPayload = errors.New("pipeline: payload cannot be nil")

	// ErrNilHandler is returned when an execute entry point receives a
	// nil final handler.
	ErrNilHandler = errors.New("pipeline: final handler cannot be nil")
)

// MissingInterceptorError reports that the resolver produced no instance
// for an interceptor registered by type. It is a configuration error and
// aborts the invocation.
type MissingInterceptorError struct {
	Type reflect.Type
}

// Error implements error.
func (e *MissingInterceptorError) Error() string {
	return fmt.Sprintf("pipeline: resolver produced no instance for interceptor %s", typeutil.DisplayName(e.Type))
}

// ShapeMismatchError reports that a resolved interceptor instance does
// not implement the interface required by the pipeline shape it was
// wired into. It is a configuration error and aborts the invocation.
type ShapeMismatchError struct {
	Type  reflect.Type
	Shape Shape
}

// Error implements error.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("pipeline: %s does not implement the %s interceptor interface", typeutil.DisplayName(e.Type), e.Shape)
}
