package pipeline

import (
	"errors"
	"fmt"
	"reflect"
)

// BindFunc materializes a template for concrete type arguments. It
// returns the specialized interceptor instance, or an error when the
// arguments cannot be bound for reasons the structural probe could not
// see. Errors and panics from bind convert to a cached incompatibility,
// never to a caller-visible failure.
type BindFunc func(args ...reflect.Type) (any, error)

// Template is an interceptor definition declared over type parameters,
// not yet bound to concrete types. Two-parameter templates serve request
// and stream pipelines, single-parameter templates serve command and
// notification pipelines. The same *Template value may be registered on
// several pipelines; its specializations are cached by identity.
type Template struct {
	name         string
	params       []TypeParam
	bind         BindFunc
	order        int
	orderSet     bool
	capabilities []reflect.Type
}

// TemplateOption configures a Template.
type TemplateOption func(*Template)

// WithTemplateOrder declares a fixed pipeline order for every
// specialization. Without it, the order is read from each bound instance,
// falling back to registration-order placement.
func WithTemplateOrder(order int) TemplateOption {
	return func(t *Template) {
		t.order = order
		t.orderSet = true
	}
}

// WithTemplateCapabilities declares capability constraints that apply to
// every specialization, in addition to any the bound instance declares
// itself.
func WithTemplateCapabilities(capabilities ...reflect.Type) TemplateOption {
	return func(t *Template) {
		t.capabilities = append(t.capabilities, capabilities...)
	}
}

// NewTemplate declares a template. name labels it in logs and reports,
// params declares one entry per type parameter in order, and bind runs
// once per compatible specialization.
func NewTemplate(name string, params []TypeParam, bind BindFunc, opts ...TemplateOption) (*Template, error) {
	if name == "" {
		return nil, errors.New("pipeline: template name cannot be empty")
	}
	if bind == nil {
		return nil, fmt.Errorf("pipeline: template %s: bind function cannot be nil", name)
	}
	if len(params) < 1 || len(params) > 2 {
		return nil, fmt.Errorf("pipeline: template %s must declare one or two type parameters, got %d", name, len(params))
	}
	for _, p := range params {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("pipeline: template %s: %w", name, err)
		}
	}

	t := &Template{
		name:   name,
		params: make([]TypeParam, len(params)),
		bind:   bind,
	}
	copy(t.params, params)
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// MustTemplate is like NewTemplate but panics on an invalid declaration.
// Intended for package-level template variables.
func MustTemplate(name string, params []TypeParam, bind BindFunc, opts ...TemplateOption) *Template {
	t, err := NewTemplate(name, params, bind, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template's display name.
func (t *Template) Name() string { return t.name }

// Arity returns the number of declared type parameters.
func (t *Template) Arity() int { return len(t.params) }

// Params returns a copy of the declared type parameters.
func (t *Template) Params() []TypeParam {
	out := make([]TypeParam, len(t.params))
	copy(out, t.params)
	return out
}

// Compatible runs the structural probe against candidate type arguments
// without materializing anything. It is side-effect free and never
// panics.
func (t *Template) Compatible(args ...reflect.Type) bool {
	return compatible(t.params, args)
}
