package contracts

import "reflect"

// Resolver supplies instances for interceptors registered by type rather
// than by value. Resolve returns false when it cannot produce an instance
// of t; the pipeline treats that as a configuration error.
type Resolver interface {
	Resolve(t reflect.Type) (any, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(t reflect.Type) (any, bool)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(t reflect.Type) (any, bool) {
	return f(t)
}
