// Package resolver provides ready-made implementations of
// contracts.Resolver for materializing interceptors registered by type:
// reflective zero-value construction, an explicit constructor registry,
// and a chain combinator that tries several resolvers in turn.
package resolver

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/dispatchmate/dmate-go/contracts"
)

var (
	_ contracts.Resolver = Reflective{}
	_ contracts.Resolver = (*Registry)(nil)
)

// Reflective resolves struct-backed types by zero-value construction:
// *T yields a pointer to a fresh T, a plain struct type yields its zero
// value. Interfaces and other kinds cannot be constructed here and
// resolve to false.
type Reflective struct{}

// Resolve implements contracts.Resolver.
func (Reflective) Resolve(t reflect.Type) (any, bool) {
	if t == nil {
		return nil, false
	}
	switch t.Kind() {
	case reflect.Ptr:
		if t.Elem().Kind() == reflect.Struct {
			return reflect.New(t.Elem()).Interface(), true
		}
		return nil, false
	case reflect.Struct:
		return reflect.New(t).Elem().Interface(), true
	default:
		return nil, false
	}
}

// Registry resolves types through explicitly registered constructors.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	ctors map[reflect.Type]func() any
}

// NewRegistry creates an empty constructor registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[reflect.Type]func() any)}
}

// Register associates a constructor with t. Registering the same type
// again replaces the earlier constructor.
func (r *Registry) Register(t reflect.Type, ctor func() any) error {
	if t == nil {
		return fmt.Errorf("resolver: type cannot be nil")
	}
	if ctor == nil {
		return fmt.Errorf("resolver: constructor cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[t] = ctor
	return nil
}

// RegisterFor registers a typed constructor for T.
func RegisterFor[T any](r *Registry, ctor func() T) error {
	return r.Register(reflect.TypeOf((*T)(nil)).Elem(), func() any { return ctor() })
}

// Resolve implements contracts.Resolver. A constructor returning nil is
// reported as a miss.
func (r *Registry) Resolve(t reflect.Type) (any, bool) {
	r.mu.RLock()
	ctor, ok := r.ctors[t]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	v := ctor()
	return v, v != nil
}

// Chain combines resolvers into one that returns the first successful
// resolution. Nil entries are skipped.
func Chain(resolvers ...contracts.Resolver) contracts.Resolver {
	return contracts.ResolverFunc(func(t reflect.Type) (any, bool) {
		for _, r := range resolvers {
			if r == nil {
				continue
			}
			if v, ok := r.Resolve(t); ok {
				return v, true
			}
		}
		return nil, false
	})
}
