package pipeline

import (
	"reflect"
	"sort"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

// planKey identifies one assembled chain: the shape plus the concrete
// payload (and, for request and stream pipelines, response) type.
type planKey struct {
	shape    Shape
	payload  reflect.Type
	response reflect.Type
}

// link is one interceptor position in an assembled chain.
type link struct {
	reg   *registration
	spec  *Specialization // non-nil for template registrations
	order int             // effective order used for sorting
}

// displayName labels the link in traces and errors.
func (l link) displayName() string {
	if l.spec != nil {
		return l.spec.displayName
	}
	return l.reg.displayName
}

// capabilities returns the link's effective capability constraints.
func (l link) capabilities() []reflect.Type {
	if l.spec != nil {
		return l.spec.capabilities
	}
	return l.reg.capabilities
}

// plan is an immutable assembled chain for one plan key.
type plan struct {
	links []link
}

// assemble returns the cached plan for the invocation, building it on
// first use. The first assembly freezes the registry. For a fixed
// registry and fixed types the result is deterministic, so concurrent
// first builds converge on equivalent plans.
func (p *Pipeline) assemble(shape Shape, payload, response reflect.Type) *plan {
	p.freeze()

	key := planKey{shape: shape, payload: payload, response: response}
	if v, ok := p.plans.Load(key); ok {
		return v.(*plan)
	}

	built := p.buildPlan(shape, payload, response)
	if actual, loaded := p.plans.LoadOrStore(key, built); loaded {
		return actual.(*plan)
	}

	p.logger.Debug("assembled pipeline",
		"shape", shape.String(),
		"payloadType", typeutil.DisplayName(payload),
		"links", len(built.links),
	)
	return built
}

// buildPlan filters registrations down to the invocation shape, resolves
// template specializations, and sorts by (effective order, registration
// index). The stable sort breaks ties by registration order because
// registrations are visited in index order.
func (p *Pipeline) buildPlan(shape Shape, payload, response reflect.Type) *plan {
	regs := p.snapshot()
	links := make([]link, 0, len(regs))

	for _, reg := range regs {
		switch reg.kind {
		case kindTemplate:
			t := reg.template
			if t.Arity() != shape.arity() {
				continue
			}
			spec := p.resolveSpecialization(t, payload, response)
			if !spec.compatible || !spec.shapes.has(shape) {
				continue
			}
			order := reg.order
			if !reg.orderDeclared && spec.orderSet {
				order = spec.order
			}
			links = append(links, link{reg: reg, spec: spec, order: order})
		default:
			if !reg.shapes.has(shape) {
				continue
			}
			links = append(links, link{reg: reg, order: reg.order})
		}
	}

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].order < links[j].order
	})
	return &plan{links: links}
}

// instanceFor produces the interceptor instance for a link: template
// links reuse the cached bound instance, instance links reuse the
// registered prototype, and type links resolve fresh per call. A
// resolver miss is a configuration error that aborts the invocation.
func (p *Pipeline) instanceFor(l link) (any, error) {
	if l.spec != nil {
		return l.spec.instance, nil
	}

	reg := l.reg
	switch reg.kind {
	case kindInstance:
		return reg.instance, nil
	case kindType:
		instance, ok := p.resolver.Resolve(reg.defType)
		if !ok || instance == nil {
			return nil, &MissingInterceptorError{Type: reg.defType}
		}
		if cfg, ok := instance.(contracts.Configurable); ok && reg.configuration != nil {
			cfg.Configure(reg.configuration)
		}
		return instance, nil
	default:
		return nil, &MissingInterceptorError{Type: reg.defType}
	}
}

// satisfiesCapability reports whether the payload type satisfies at least
// one declared capability: interface capabilities match by
// implementation, concrete ones by assignability. A nil payload type,
// seen when an upstream interceptor forwards nil, satisfies nothing.
func satisfiesCapability(payload reflect.Type, capabilities []reflect.Type) bool {
	if payload == nil {
		return false
	}
	for _, c := range capabilities {
		if c == nil {
			continue
		}
		if c.Kind() == reflect.Interface {
			if payload.Implements(c) {
				return true
			}
			continue
		}
		if payload.AssignableTo(c) {
			return true
		}
	}
	return false
}
