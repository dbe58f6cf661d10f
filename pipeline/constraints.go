package pipeline

import (
	"fmt"
	"reflect"

	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

// ParamKind restricts which kind class of Go types may bind a template
// type parameter.
type ParamKind uint8

const (
	// KindAny accepts both reference and value kinds.
	KindAny ParamKind = iota
	// KindReference accepts pointers, interfaces, maps, slices, channels,
	// and functions.
	KindReference
	// KindValue accepts structs, arrays, strings, numerics, and booleans.
	// A pointer to a value type does not qualify.
	KindValue
)

// String implements fmt.Stringer.
func (k ParamKind) String() string {
	switch k {
	case KindReference:
		return "reference"
	case KindValue:
		return "value"
	default:
		return "any"
	}
}

// TypeParam declares one type parameter of a template: an optional kind
// restriction, whether the argument must be directly constructible, and
// interface or concrete types the argument must satisfy. Requirements
// that cannot be expressed structurally belong in the template's bind
// function, which may still reject arguments the probe let through.
type TypeParam struct {
	// Name labels the parameter in reports, e.g. "TRequest".
	Name string

	// Kind restricts the argument's kind class. The zero value is KindAny.
	Kind ParamKind

	// Constructible requires an argument the runtime can instantiate
	// directly, which excludes interface types.
	Constructible bool

	// Implements lists interface types the argument must implement.
	Implements []reflect.Type

	// AssignableTo lists types the argument must be assignable to.
	AssignableTo []reflect.Type
}

// validate rejects malformed declarations up front so the compatibility
// probe can stay silent and allocation-free.
func (p TypeParam) validate() error {
	for _, iface := range p.Implements {
		if iface == nil {
			return fmt.Errorf("parameter %s: Implements entry cannot be nil", p.label())
		}
		if iface.Kind() != reflect.Interface {
			return fmt.Errorf("parameter %s: Implements entry %s is not an interface", p.label(), typeutil.DisplayName(iface))
		}
	}
	for _, target := range p.AssignableTo {
		if target == nil {
			return fmt.Errorf("parameter %s: AssignableTo entry cannot be nil", p.label())
		}
	}
	return nil
}

func (p TypeParam) label() string {
	if p.Name != "" {
		return p.Name
	}
	return "<unnamed>"
}

// satisfies reports whether arg can bind this parameter. It never panics
// and allocates nothing; any ambiguity counts as a mismatch.
func (p TypeParam) satisfies(arg reflect.Type) bool {
	if arg == nil {
		return false
	}
	switch p.Kind {
	case KindReference:
		if !typeutil.IsReferenceKind(arg) {
			return false
		}
	case KindValue:
		if typeutil.IsReferenceKind(arg) {
			return false
		}
	}
	if p.Constructible && arg.Kind() == reflect.Interface {
		return false
	}
	for _, iface := range p.Implements {
		if !arg.Implements(iface) {
			return false
		}
	}
	for _, target := range p.AssignableTo {
		if !arg.AssignableTo(target) {
			return false
		}
	}
	return true
}

// compatible runs the probe across all parameters in declaration order.
func compatible(params []TypeParam, args []reflect.Type) bool {
	if len(params) != len(args) {
		return false
	}
	for i, p := range params {
		if !p.satisfies(args[i]) {
			return false
		}
	}
	return true
}
