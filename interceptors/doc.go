// Package interceptors provides ready-made cross-cutting interceptors
// for the dispatch pipeline: logging, panic recovery, retries, timeouts,
// tracing, validation, metrics, circuit breaking, and a notification
// error boundary.
//
// Each interceptor serves one pipeline family. The request/response and
// command families get separate types where both are useful, because an
// interceptor type can only carry one Intercept method. All built-ins
// declare an order so that a default chain assembles the same way every
// time: recovery runs outermost, validation runs closest to the handler.
package interceptors
