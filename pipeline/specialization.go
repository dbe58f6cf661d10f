package pipeline

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

// Specialization is the cached outcome of binding a template to concrete
// type arguments: either a materialized interceptor instance plus its
// per-specialization metadata, or a remembered incompatibility. Either
// way the outcome is computed once per (template, arguments) pairing and
// reused for the pipeline's lifetime.
type Specialization struct {
	template    *Template
	args        []reflect.Type
	displayName string

	compatible bool
	reason     string

	instance     any
	shapes       shapeSet
	conditional  bool
	capabilities []reflect.Type
	order        int
	orderSet     bool
}

// Compatible reports whether the pairing is legal and materialized.
func (s *Specialization) Compatible() bool { return s.compatible }

// Reason explains why an incompatible pairing was rejected. Empty for
// compatible pairings.
func (s *Specialization) Reason() string { return s.reason }

// Instance returns the bound interceptor instance, nil when incompatible.
func (s *Specialization) Instance() any { return s.instance }

// Name returns the display name of the pairing, e.g. "Audit[OrderPlaced]".
func (s *Specialization) Name() string { return s.displayName }

// specKey identifies one (template, type arguments) pairing. Templates
// key by identity: two templates built from identical parts stay
// distinct cache entries.
type specKey struct {
	template *Template
	payload  reflect.Type
	response reflect.Type // nil for single-parameter templates
}

// resolveSpecialization returns the cached specialization for a pairing,
// materializing it on first encounter. Concurrent first encounters
// converge on a single cached value through insert-if-absent; the loser
// of the race discards its result.
func (p *Pipeline) resolveSpecialization(t *Template, payload, response reflect.Type) *Specialization {
	key := specKey{template: t, payload: payload, response: response}
	if v, ok := p.specializations.Load(key); ok {
		return v.(*Specialization)
	}

	spec := materialize(t, payload, response)
	if actual, loaded := p.specializations.LoadOrStore(key, spec); loaded {
		return actual.(*Specialization)
	}

	if spec.compatible {
		p.logger.Debug("materialized template specialization",
			"specialization", spec.displayName,
			"order", OrderDisplay(specOrderForLog(spec)),
		)
	} else {
		p.logger.Debug("template specialization rejected",
			"specialization", spec.displayName,
			"reason", spec.reason,
		)
	}
	return spec
}

func specOrderForLog(s *Specialization) int {
	if s.orderSet {
		return s.order
	}
	return deferredOrderBase
}

// materialize runs the structural probe and, when it passes, attempts to
// bind. Bind failures demote the pairing to incompatible rather than
// raising: the probe is deliberately permissive about requirements it
// cannot see structurally, and bind is where those get rejected.
func materialize(t *Template, payload, response reflect.Type) *Specialization {
	args := make([]reflect.Type, 1, 2)
	args[0] = payload
	if t.Arity() == 2 {
		args = append(args, response)
	}

	spec := &Specialization{
		template:    t,
		args:        args,
		displayName: specializationName(t, args),
	}

	if !compatible(t.params, args) {
		spec.reason = "type arguments do not satisfy the declared constraints"
		return spec
	}

	instance, err := bindTemplate(t, args)
	if err != nil {
		spec.reason = err.Error()
		return spec
	}

	shapes := shapesOf(instance)
	if shapes == 0 {
		spec.reason = fmt.Sprintf("bound instance %s implements no interceptor interface", typeutil.DisplayNameOf(instance))
		return spec
	}

	spec.compatible = true
	spec.instance = instance
	spec.shapes = shapes
	_, spec.conditional = instance.(contracts.Conditional)

	spec.capabilities = append(spec.capabilities, t.capabilities...)
	if cc, ok := instance.(contracts.CapabilityConstrained); ok {
		spec.capabilities = append(spec.capabilities, cc.Capabilities()...)
	}

	// The bound instance may declare its own order; it replaces the
	// registration placeholder at assembly time unless the registration
	// already declared one.
	if o, ok := declaredOrderOf(instance); ok {
		spec.order, spec.orderSet = o, true
	}
	return spec
}

// bindTemplate invokes the template's bind function, converting panics
// and nil results into errors.
func bindTemplate(t *Template, args []reflect.Type) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = fmt.Errorf("bind panicked: %v", r)
		}
	}()

	instance, err = t.bind(args...)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, errors.New("bind returned a nil instance")
	}
	return instance, nil
}

// specializationName renders "Template[Arg1,Arg2]" with clean type names.
func specializationName(t *Template, args []reflect.Type) string {
	names := make([]string, len(args))
	for i, arg := range args {
		names[i] = typeutil.DisplayName(arg)
	}
	return t.name + "[" + strings.Join(names, ",") + "]"
}
