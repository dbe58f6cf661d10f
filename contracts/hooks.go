package contracts

import (
	"context"
	"math"
	"reflect"
)

// Ordered is implemented by interceptors that declare where they run in
// the pipeline. Lower orders run earlier, closer to the caller.
type Ordered interface {
	InterceptorOrder() int
}

// UnspecifiedOrder marks an InterceptorOrder result as "no declaration".
// Implementations that embed a base interceptor type without overriding
// its order should return UnspecifiedOrder so the pipeline falls back to
// registration-order placement instead of treating the inherited value as
// a real choice.
const UnspecifiedOrder = math.MaxInt

// Conditional is implemented by interceptors that can skip themselves for
// particular payloads. When ShouldExecute returns false the pipeline
// invokes the next stage directly and the interceptor never sees that
// payload.
type Conditional interface {
	ShouldExecute(ctx context.Context, payload any) bool
}

// CapabilityConstrained restricts a notification interceptor to payloads
// satisfying at least one of the returned types. Interface entries match
// payloads that implement them, concrete entries match by assignability.
// The set is read once at registration and cached; it must not change
// afterwards.
type CapabilityConstrained interface {
	Capabilities() []reflect.Type
}

// Configurable is implemented by interceptors that accept the opaque
// configuration object attached at registration. Configure runs once for
// prototype instances and after every resolution for interceptors
// registered by type. Template bind functions receive no configuration;
// they close over whatever they need.
type Configurable interface {
	Configure(config any)
}

// Capability returns the reflect.Type of T, typically an interface, for
// use in Capabilities implementations:
//
//	func (a *AuditInterceptor) Capabilities() []reflect.Type {
//		return []reflect.Type{contracts.Capability[Auditable]()}
//	}
func Capability[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
