package pipeline

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/resolver"
)

// Pipeline owns the interceptor registry, the specialization and plan
// caches, and the execution runtime for all four shapes. Registrations
// happen during a build phase; the registry freezes on the first
// execution, after which the caches populate lazily under concurrent
// read access. Concurrent invocations share only those read-mostly
// structures.
type Pipeline struct {
	logger   *slog.Logger
	resolver contracts.Resolver
	recorder TraceRecorder

	mu            sync.Mutex
	registrations []*registration
	frozen        atomic.Bool

	specializations sync.Map // specKey -> *Specialization
	plans           sync.Map // planKey -> *plan
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithResolver sets the resolver used to materialize interceptors
// registered by type. Defaults to resolver.Reflective zero-value
// construction.
func WithResolver(r contracts.Resolver) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.resolver = r
		}
	}
}

// WithTraceRecorder wires a recorder that receives one entry per pipeline
// step outcome.
func WithTraceRecorder(rec TraceRecorder) Option {
	return func(p *Pipeline) {
		p.recorder = rec
	}
}

// New creates an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:   slog.Default(),
		resolver: resolver.Reflective{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Len returns the number of registrations.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.registrations)
}

// Frozen reports whether the registry has been locked by an execution.
func (p *Pipeline) Frozen() bool {
	return p.frozen.Load()
}

// freeze locks the registry ahead of the first assembly.
func (p *Pipeline) freeze() {
	if p.frozen.CompareAndSwap(false, true) {
		p.logger.Debug("interceptor registry frozen", "registrations", p.Len())
	}
}

// snapshot returns the registration list for assembly. Entries are
// immutable once frozen; the slice header copy keeps the lock out of the
// execution path.
func (p *Pipeline) snapshot() []*registration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registrations
}
