// Package pipeline implements the interceptor engine behind the dispatch
// facade.
//
// It holds a registry of interceptor definitions (concrete instances,
// resolver-backed types, and open templates declared over type
// parameters) and assembles them into an ordered chain per concrete
// payload (and, for request and stream pipelines, response) type. Open
// templates go through a two-phase probe-then-materialize step whose
// outcomes, compatible or not, are cached for the pipeline's lifetime.
//
// Ordering: interceptors run in ascending order value, ties broken by
// registration position. OrderFirst pins a stage ahead of everything
// explicitly ordered; definitions with no declared order run after all
// explicitly ordered ones, in registration order.
//
// The registry is mutable only until the first execution; the
// specialization and plan caches populate lazily and converge under
// concurrent use.
package pipeline
