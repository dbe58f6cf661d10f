package pipeline

import (
	"reflect"

	"github.com/dispatchmate/dmate-go/contracts"
)

// Shape identifies which of the four pipeline families an invocation or
// an interceptor belongs to.
type Shape uint8

const (
	// ShapeRequest is the request pipeline: a payload in, a response out.
	ShapeRequest Shape = iota
	// ShapeCommand is the void request pipeline: a payload in, only an
	// error out.
	ShapeCommand
	// ShapeNotification is the fan-out pipeline ending in a broadcast to
	// subscribers.
	ShapeNotification
	// ShapeStream is the streaming pipeline: a payload in, a lazy channel
	// of items out.
	ShapeStream
)

// String implements fmt.Stringer.
func (s Shape) String() string {
	switch s {
	case ShapeRequest:
		return "request"
	case ShapeCommand:
		return "command"
	case ShapeNotification:
		return "notification"
	case ShapeStream:
		return "stream"
	default:
		return "unknown"
	}
}

// arity is the number of type arguments a template needs to serve this
// shape: payload and response for request and stream pipelines, payload
// only for command and notification pipelines.
func (s Shape) arity() int {
	if s == ShapeRequest || s == ShapeStream {
		return 2
	}
	return 1
}

var (
	requestInterceptorType      = reflect.TypeOf((*contracts.RequestInterceptor)(nil)).Elem()
	commandInterceptorType      = reflect.TypeOf((*contracts.CommandInterceptor)(nil)).Elem()
	notificationInterceptorType = reflect.TypeOf((*contracts.NotificationInterceptor)(nil)).Elem()
	streamInterceptorType       = reflect.TypeOf((*contracts.StreamInterceptor)(nil)).Elem()
	conditionalType             = reflect.TypeOf((*contracts.Conditional)(nil)).Elem()
)

// shapeSet is a bitmask of the shapes an interceptor serves.
type shapeSet uint8

func (set shapeSet) has(s Shape) bool { return set&(1<<s) != 0 }

func (set *shapeSet) add(s Shape) { *set |= 1 << s }

func (set shapeSet) names() []string {
	var out []string
	for _, s := range []Shape{ShapeRequest, ShapeCommand, ShapeNotification, ShapeStream} {
		if set.has(s) {
			out = append(out, s.String())
		}
	}
	return out
}

// shapesOf reports which interceptor interfaces the instance implements.
func shapesOf(instance any) shapeSet {
	var set shapeSet
	if _, ok := instance.(contracts.RequestInterceptor); ok {
		set.add(ShapeRequest)
	}
	if _, ok := instance.(contracts.CommandInterceptor); ok {
		set.add(ShapeCommand)
	}
	if _, ok := instance.(contracts.NotificationInterceptor); ok {
		set.add(ShapeNotification)
	}
	if _, ok := instance.(contracts.StreamInterceptor); ok {
		set.add(ShapeStream)
	}
	return set
}

// shapesOfType is shapesOf for a definition type with no instance at hand.
func shapesOfType(t reflect.Type) shapeSet {
	var set shapeSet
	if t == nil {
		return set
	}
	if t.Implements(requestInterceptorType) {
		set.add(ShapeRequest)
	}
	if t.Implements(commandInterceptorType) {
		set.add(ShapeCommand)
	}
	if t.Implements(notificationInterceptorType) {
		set.add(ShapeNotification)
	}
	if t.Implements(streamInterceptorType) {
		set.add(ShapeStream)
	}
	return set
}
