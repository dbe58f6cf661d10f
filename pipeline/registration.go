package pipeline

import (
	"fmt"
	"reflect"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
	"github.com/dispatchmate/dmate-go/resolver"
)

// definitionKind distinguishes how an interceptor was registered.
type definitionKind uint8

const (
	kindInstance definitionKind = iota
	kindType
	kindTemplate
)

// registration is one registry entry. Entries are append-only during the
// build phase and immutable after the registry freezes; index values are
// never reused.
type registration struct {
	index       int
	kind        definitionKind
	displayName string

	instance any          // kindInstance: the prototype, reused across calls
	defType  reflect.Type // kindType: resolved per execution
	template *Template    // kindTemplate

	order         int // declared order or deferred placeholder
	orderDeclared bool

	configuration any

	shapes       shapeSet
	conditional  bool
	capabilities []reflect.Type
}

// RegistrationOption configures one Add call.
type RegistrationOption func(*registrationOptions)

type registrationOptions struct {
	order  *int
	config any
}

// WithOrder pins the registration to an explicit pipeline order. An
// order declared by the definition itself takes precedence for instance
// and template registrations.
func WithOrder(order int) RegistrationOption {
	return func(o *registrationOptions) {
		v := order
		o.order = &v
	}
}

// WithConfiguration attaches an opaque configuration object to the
// registration. It is handed to instances implementing
// contracts.Configurable and surfaced unchanged by the inspection views.
// Template bind functions do not receive it; they close over their own
// settings.
func WithConfiguration(config any) RegistrationOption {
	return func(o *registrationOptions) {
		o.config = config
	}
}

// Add registers an interceptor definition: a prototype instance, a
// reflect.Type resolved per execution, or a *Template. A definition
// participates in every pipeline shape whose interceptor interface it
// implements. Add fails with ErrRegistryFrozen once the first execution
// has locked the registry.
func (p *Pipeline) Add(definition any, opts ...RegistrationOption) error {
	if definition == nil {
		return ErrNilDefinition
	}

	var options registrationOptions
	for _, opt := range opts {
		opt(&options)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen.Load() {
		return ErrRegistryFrozen
	}

	reg := &registration{
		index:         len(p.registrations),
		configuration: options.config,
	}

	var probe any
	switch def := definition.(type) {
	case *Template:
		if def == nil {
			return ErrNilDefinition
		}
		reg.kind = kindTemplate
		reg.template = def
		reg.displayName = def.Name()
		// Execution reads capabilities off the specialization's merged
		// set; this copy feeds the inspection views.
		reg.capabilities = def.capabilities
	case reflect.Type:
		var err error
		if probe, err = p.initTypeRegistration(reg, def); err != nil {
			return err
		}
	default:
		if err := initInstanceRegistration(reg, definition); err != nil {
			return err
		}
	}

	resolveRegistrationOrder(reg, options.order, probe)
	p.registrations = append(p.registrations, reg)

	p.logger.Debug("registered interceptor",
		"interceptor", reg.displayName,
		"order", OrderDisplay(reg.order),
		"index", reg.index,
	)
	return nil
}

// initInstanceRegistration fills registry metadata from a prototype
// instance. The prototype is reused for every execution, so its hooks
// are read once here.
func initInstanceRegistration(reg *registration, instance any) error {
	shapes := shapesOf(instance)
	if shapes == 0 {
		return fmt.Errorf("pipeline: %s does not implement any interceptor interface", typeutil.DisplayNameOf(instance))
	}

	reg.kind = kindInstance
	reg.instance = instance
	reg.displayName = typeutil.DisplayNameOf(instance)
	reg.shapes = shapes
	_, reg.conditional = instance.(contracts.Conditional)
	if cc, ok := instance.(contracts.CapabilityConstrained); ok {
		reg.capabilities = cc.Capabilities()
	}
	if cfg, ok := instance.(contracts.Configurable); ok && reg.configuration != nil {
		cfg.Configure(reg.configuration)
	}
	return nil
}

// initTypeRegistration fills registry metadata from a definition type.
// Capability sets and declared orders live on instances, so a disposable
// instance is probed up front, best effort; execution-time resolution
// stays strict. The probe is returned for order resolution.
func (p *Pipeline) initTypeRegistration(reg *registration, t reflect.Type) (any, error) {
	if t == nil {
		return nil, ErrNilDefinition
	}

	shapes := shapesOfType(t)
	if shapes == 0 && t.Kind() == reflect.Struct {
		// The methods may hang off the pointer receiver.
		if pt := reflect.PointerTo(t); shapesOfType(pt) != 0 {
			t = pt
			shapes = shapesOfType(pt)
		}
	}
	if shapes == 0 {
		return nil, fmt.Errorf("pipeline: %s does not implement any interceptor interface", typeutil.DisplayName(t))
	}

	reg.kind = kindType
	reg.defType = t
	reg.displayName = typeutil.DisplayName(t)
	reg.shapes = shapes
	reg.conditional = t.Implements(conditionalType)

	probe, ok := p.disposable(t)
	if !ok {
		return nil, nil
	}
	if cfg, ok := probe.(contracts.Configurable); ok && reg.configuration != nil {
		cfg.Configure(reg.configuration)
	}
	if cc, ok := probe.(contracts.CapabilityConstrained); ok {
		reg.capabilities = cc.Capabilities()
	}
	return probe, nil
}

// disposable builds a throwaway instance of t for registration-time
// probing, trying the configured resolver first and zero-value
// construction second.
func (p *Pipeline) disposable(t reflect.Type) (any, bool) {
	if v, ok := p.resolver.Resolve(t); ok && v != nil {
		return v, true
	}
	return resolver.Reflective{}.Resolve(t)
}

// resolveRegistrationOrder computes the registration's order value.
// Priority: an order declared by the definition itself (a prototype's
// accessor, or a template's fixed order), then the explicit WithOrder
// option, then an order read from a disposable instance for type
// registrations, then the deferred placeholder band. Template
// specializations that declare their own order replace the placeholder
// at assembly time.
func resolveRegistrationOrder(reg *registration, explicit *int, probe any) {
	switch reg.kind {
	case kindInstance:
		if o, ok := declaredOrderOf(reg.instance); ok {
			reg.order, reg.orderDeclared = o, true
			return
		}
	case kindTemplate:
		if reg.template.orderSet {
			reg.order, reg.orderDeclared = reg.template.order, true
			return
		}
	}

	if explicit != nil {
		reg.order, reg.orderDeclared = *explicit, true
		return
	}

	if reg.kind == kindType && probe != nil {
		if o, ok := declaredOrderOf(probe); ok {
			reg.order, reg.orderDeclared = o, true
			return
		}
	}

	reg.order = deferredOrder(reg.index)
}
