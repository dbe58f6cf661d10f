package pipeline

import (
	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

// RegistrationInfo is one read-only registry entry view.
type RegistrationInfo struct {
	// Name is the clean display name of the definition.
	Name string

	// Order is the resolved order value, possibly a deferred placeholder.
	Order int

	// OrderDisplay renders Order for humans: "first", "deferred", or the
	// plain number.
	OrderDisplay string

	// OrderDeclared reports whether the order was declared rather than
	// assigned from the placeholder band.
	OrderDeclared bool

	// Template reports whether the definition is an open template.
	Template bool

	// Configuration is the opaque object attached at registration, if any.
	Configuration any

	// Index is the registration position.
	Index int
}

// Registrations enumerates the registry in registration order. It never
// mutates pipeline state and may be called during or after the build
// phase.
func (p *Pipeline) Registrations() []RegistrationInfo {
	regs := p.snapshot()

	out := make([]RegistrationInfo, 0, len(regs))
	for _, reg := range regs {
		out = append(out, RegistrationInfo{
			Name:          reg.displayName,
			Order:         reg.order,
			OrderDisplay:  OrderDisplay(reg.order),
			OrderDeclared: reg.orderDeclared,
			Template:      reg.kind == kindTemplate,
			Configuration: reg.configuration,
			Index:         reg.index,
		})
	}
	return out
}

// InterceptorAnalysis is the human-readable analysis view of one
// registration, computed on demand from the registry plus a live
// resolver query. Diagnostic tooling renders it; nothing in the pipeline
// consumes it.
type InterceptorAnalysis struct {
	// Name is the clean display name of the definition.
	Name string

	// Order and OrderDisplay mirror RegistrationInfo.
	Order        int
	OrderDisplay string

	// Template reports whether the definition is an open template, and
	// TypeParams labels its declared parameters when it is.
	Template   bool
	TypeParams []string

	// Shapes lists the pipeline families the definition serves. Empty for
	// templates, whose shapes are known only per specialization.
	Shapes []string

	// Conditional reports whether the definition exposes a per-payload
	// skip predicate.
	Conditional bool

	// Capabilities lists declared capability constraints by display name.
	Capabilities []string

	// Resolvable reports whether the resolver can currently produce an
	// instance. Always true for prototype and template registrations.
	Resolvable bool

	// Configuration is the opaque object attached at registration, if any.
	Configuration any

	// Index is the registration position.
	Index int
}

// Analyze builds the analysis view for every registration, in
// registration order.
func (p *Pipeline) Analyze() []InterceptorAnalysis {
	regs := p.snapshot()

	out := make([]InterceptorAnalysis, 0, len(regs))
	for _, reg := range regs {
		a := InterceptorAnalysis{
			Name:          reg.displayName,
			Order:         reg.order,
			OrderDisplay:  OrderDisplay(reg.order),
			Template:      reg.kind == kindTemplate,
			Conditional:   reg.conditional,
			Resolvable:    true,
			Configuration: reg.configuration,
			Index:         reg.index,
		}

		switch reg.kind {
		case kindTemplate:
			for _, param := range reg.template.params {
				a.TypeParams = append(a.TypeParams, param.label())
			}
		case kindType:
			_, a.Resolvable = p.resolver.Resolve(reg.defType)
			a.Shapes = reg.shapes.names()
		default:
			a.Shapes = reg.shapes.names()
		}

		for _, c := range reg.capabilities {
			a.Capabilities = append(a.Capabilities, typeutil.DisplayName(c))
		}
		out = append(out, a)
	}
	return out
}
