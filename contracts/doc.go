// Package contracts defines the interfaces exchanged between the dispatch
// layer and application code.
//
// It covers four pipeline shapes, each with a handler and an interceptor
// interface:
//   - Request: produces a response value and an error
//   - Command: produces only an error
//   - Notification: fans out to zero or more subscribers
//   - Stream: produces a channel of items
//
// It also defines the optional hooks interceptors may implement (Ordered,
// Conditional, CapabilityConstrained) and the Resolver used to materialize
// interceptors that were registered by type instead of by instance.
package contracts
