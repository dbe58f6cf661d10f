// Copyright 2024 Dmate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dmate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/interceptors"
	"github.com/dispatchmate/dmate-go/internal/journal"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
	"github.com/dispatchmate/dmate-go/pipeline"
	"github.com/dispatchmate/dmate-go/stats"
)

// Mediator provides the main entry point for dmate-go: it routes requests,
// commands, notifications, and streams to registered handlers through the
// interceptor pipeline.
type Mediator struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	stats    *stats.InMemoryCollector
	journal  *journal.TraceJournal

	mu            sync.RWMutex
	requests      map[reflect.Type]requestRegistration
	commands      map[reflect.Type]contracts.CommandHandler
	streams       map[reflect.Type]streamRegistration
	subscriptions []subscription
}

// requestRegistration pairs a request handler with its declared response
// type, which selects response-constrained template specializations.
type requestRegistration struct {
	handler      contracts.RequestHandler
	responseType reflect.Type
}

// streamRegistration pairs a stream handler with its declared item type.
type streamRegistration struct {
	handler  contracts.StreamHandler
	itemType reflect.Type
}

// subscription is one notification subscriber. The global slice keeps
// subscribers in subscription order across notification types.
type subscription struct {
	notificationType reflect.Type
	subscriber       contracts.NotificationHandler
}

// ErrNoHandler marks dispatches whose payload type has no registered
// handler. Use errors.Is to detect it.
var ErrNoHandler = errors.New("dmate: no handler registered")

// NoHandlerError reports which payload type and dispatch shape missed.
type NoHandlerError struct {
	Shape       pipeline.Shape
	PayloadType reflect.Type
}

// Error implements error.
func (e *NoHandlerError) Error() string {
	return fmt.Sprintf("dmate: no %s handler registered for %s", e.Shape, typeutil.DisplayName(e.PayloadType))
}

// Unwrap ties the error to ErrNoHandler for errors.Is.
func (e *NoHandlerError) Unwrap() error { return ErrNoHandler }

// New creates a mediator with options. Interceptors queued with
// WithInterceptor are registered here; a bad definition fails construction.
func New(options ...Option) (*Mediator, error) {
	cfg := &mediatorConfig{
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(cfg)
	}

	popts := []pipeline.Option{pipeline.WithLogger(cfg.logger)}
	if cfg.resolver != nil {
		popts = append(popts, pipeline.WithResolver(cfg.resolver))
	}

	var trail *journal.TraceJournal
	if cfg.journal {
		var jopts []journal.Option
		if cfg.journalCapacity > 0 {
			jopts = append(jopts, journal.WithMaxEntries(cfg.journalCapacity))
		}
		trail = journal.NewTraceJournal(jopts...)
		popts = append(popts, pipeline.WithTraceRecorder(trail))
	}

	m := &Mediator{
		pipeline: pipeline.New(popts...),
		logger:   cfg.logger,
		journal:  trail,
		requests: make(map[reflect.Type]requestRegistration),
		commands: make(map[reflect.Type]contracts.CommandHandler),
		streams:  make(map[reflect.Type]streamRegistration),
	}

	if cfg.statistics {
		m.stats = stats.NewInMemoryCollector()
		if err := m.pipeline.Add(interceptors.NewMetricsInterceptor(m.stats)); err != nil {
			return nil, fmt.Errorf("failed to register metrics interceptor: %w", err)
		}
		if err := m.pipeline.Add(interceptors.NewRequestMetricsInterceptor(m.stats)); err != nil {
			return nil, fmt.Errorf("failed to register metrics interceptor: %w", err)
		}
	}

	for _, pending := range cfg.interceptors {
		if err := m.pipeline.Add(pending.definition, pending.opts...); err != nil {
			return nil, fmt.Errorf("failed to register interceptor: %w", err)
		}
	}

	return m, nil
}

// AddInterceptor registers an interceptor definition with the pipeline.
// It fails with pipeline.ErrRegistryFrozen after the first dispatch.
func (m *Mediator) AddInterceptor(definition any, opts ...pipeline.RegistrationOption) error {
	return m.pipeline.Add(definition, opts...)
}

// RegisterRequestHandler registers handler for the runtime type of the
// request prototype. Registrations made this way carry no response type,
// so response-constrained templates do not join those dispatches; the
// generic RegisterRequestHandler function declares both sides.
func (m *Mediator) RegisterRequestHandler(request any, handler contracts.RequestHandler) error {
	t, err := prototypeType(request)
	if err != nil {
		return err
	}
	return m.registerRequest(t, nil, handler)
}

// RegisterCommandHandler registers handler for the runtime type of the
// command prototype.
func (m *Mediator) RegisterCommandHandler(command any, handler contracts.CommandHandler) error {
	t, err := prototypeType(command)
	if err != nil {
		return err
	}
	return m.registerCommand(t, handler)
}

// RegisterStreamHandler registers handler for the runtime type of the
// request prototype. Registrations made this way carry no item type; the
// generic RegisterStreamHandler function declares it.
func (m *Mediator) RegisterStreamHandler(request any, handler contracts.StreamHandler) error {
	t, err := prototypeType(request)
	if err != nil {
		return err
	}
	return m.registerStream(t, nil, handler)
}

// Subscribe adds subscriber for notifications assignable to the runtime
// type of the notification prototype. Passing a reflect.Type prototype
// keys the subscription to that type directly, interfaces included. The
// same subscriber may be added to several notification types.
func (m *Mediator) Subscribe(notification any, subscriber contracts.NotificationHandler) error {
	t, err := prototypeType(notification)
	if err != nil {
		return err
	}
	return m.subscribe(t, subscriber)
}

// Unsubscribe removes the first subscription matching the notification
// prototype's runtime type and the subscriber identity.
func (m *Mediator) Unsubscribe(notification any, subscriber contracts.NotificationHandler) error {
	t, err := prototypeType(notification)
	if err != nil {
		return err
	}
	if subscriber == nil {
		return fmt.Errorf("dmate: subscriber cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscriptions {
		if sub.notificationType == t && sameHandler(sub.subscriber, subscriber) {
			m.subscriptions = append(m.subscriptions[:i], m.subscriptions[i+1:]...)
			m.logger.Debug("unsubscribed notification handler",
				"notificationType", typeutil.DisplayName(t),
			)
			return nil
		}
	}

	return fmt.Errorf("dmate: subscriber not found for notification type %s", typeutil.DisplayName(t))
}

// Send dispatches a request through the pipeline to its handler and
// returns the response.
func (m *Mediator) Send(ctx context.Context, request any) (any, error) {
	if request == nil {
		return nil, pipeline.ErrNilPayload
	}
	return m.sendByType(ctx, reflect.TypeOf(request), request)
}

// sendByType looks up the request handler by t, which is the payload's
// runtime type for Send and the declared type parameter for SendTo.
func (m *Mediator) sendByType(ctx context.Context, t reflect.Type, request any) (any, error) {
	m.mu.RLock()
	reg, ok := m.requests[t]
	m.mu.RUnlock()
	if !ok {
		return nil, &NoHandlerError{Shape: pipeline.ShapeRequest, PayloadType: t}
	}

	return m.pipeline.ExecuteRequest(ctx, request, reg.responseType, reg.handler)
}

// Execute dispatches a command through the pipeline to its handler.
func (m *Mediator) Execute(ctx context.Context, command any) error {
	if command == nil {
		return pipeline.ErrNilPayload
	}

	t := reflect.TypeOf(command)
	m.mu.RLock()
	handler, ok := m.commands[t]
	m.mu.RUnlock()
	if !ok {
		return &NoHandlerError{Shape: pipeline.ShapeCommand, PayloadType: t}
	}

	return m.pipeline.ExecuteCommand(ctx, command, handler)
}

// Publish fans a notification out to every subscriber whose registered
// type the payload's runtime type is assignable to. Subscribers run in
// subscription order; a failing subscriber does not stop its siblings,
// and their errors come back joined. Publishing with no matching
// subscribers logs a warning and returns nil.
func (m *Mediator) Publish(ctx context.Context, notification any) error {
	if notification == nil {
		return pipeline.ErrNilPayload
	}

	t := reflect.TypeOf(notification)
	matched := m.matchSubscribers(t)
	if len(matched) == 0 {
		m.logger.Warn("no subscribers for notification type",
			"notificationType", typeutil.DisplayName(t),
		)
		return nil
	}

	broadcast := contracts.NotificationHandlerFunc(func(ctx context.Context, notification any) error {
		var errs []error
		for _, subscriber := range matched {
			if err := subscriber.Handle(ctx, notification); err != nil {
				m.logger.Error("notification subscriber failed",
					"notificationType", typeutil.DisplayName(t),
					"subscriber", typeutil.DisplayNameOf(subscriber),
					"error", err,
				)
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return m.pipeline.ExecuteNotification(ctx, notification, broadcast)
}

// Stream dispatches a streaming request through the pipeline and returns
// the resulting channel. Items materialize lazily as the handler emits
// them.
func (m *Mediator) Stream(ctx context.Context, request any) (<-chan contracts.StreamItem, error) {
	if request == nil {
		return nil, pipeline.ErrNilPayload
	}

	t := reflect.TypeOf(request)
	m.mu.RLock()
	reg, ok := m.streams[t]
	m.mu.RUnlock()
	if !ok {
		return nil, &NoHandlerError{Shape: pipeline.ShapeStream, PayloadType: t}
	}

	return m.pipeline.ExecuteStream(ctx, request, reg.itemType, reg.handler)
}

// Pipeline returns the underlying interceptor pipeline for registration
// and inspection.
func (m *Mediator) Pipeline() *pipeline.Pipeline {
	return m.pipeline
}

// Statistics returns the dispatch statistics collector, or nil when
// WithStatistics was not set.
func (m *Mediator) Statistics() *stats.InMemoryCollector {
	return m.stats
}

// ExecutionTrace returns the journaled steps of one execution in
// recording order. It returns nil when WithJournal was not set.
func (m *Mediator) ExecutionTrace(executionID string) []pipeline.TraceEntry {
	if m.journal == nil {
		return nil
	}
	return traceEntries(m.journal.ByExecution(executionID))
}

// RecentTraces returns up to limit of the most recently journaled steps,
// oldest first. A non-positive limit returns everything. It returns nil
// when WithJournal was not set.
func (m *Mediator) RecentTraces(limit int) []pipeline.TraceEntry {
	if m.journal == nil {
		return nil
	}
	return traceEntries(m.journal.Recent(limit))
}

// FailedTraces returns up to limit of the most recently journaled steps
// that ended in an error, oldest first. It returns nil when WithJournal
// was not set.
func (m *Mediator) FailedTraces(limit int) []pipeline.TraceEntry {
	if m.journal == nil {
		return nil
	}
	return traceEntries(m.journal.Failures(limit))
}

// registerRequest stores a request registration, rejecting duplicates.
func (m *Mediator) registerRequest(t, responseType reflect.Type, handler contracts.RequestHandler) error {
	if handler == nil {
		return fmt.Errorf("dmate: handler cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.requests[t]; exists {
		return fmt.Errorf("dmate: request handler already registered for %s", typeutil.DisplayName(t))
	}
	m.requests[t] = requestRegistration{handler: handler, responseType: responseType}

	m.logger.Debug("registered request handler",
		"requestType", typeutil.DisplayName(t),
	)
	return nil
}

// registerCommand stores a command registration, rejecting duplicates.
func (m *Mediator) registerCommand(t reflect.Type, handler contracts.CommandHandler) error {
	if handler == nil {
		return fmt.Errorf("dmate: handler cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.commands[t]; exists {
		return fmt.Errorf("dmate: command handler already registered for %s", typeutil.DisplayName(t))
	}
	m.commands[t] = handler

	m.logger.Debug("registered command handler",
		"commandType", typeutil.DisplayName(t),
	)
	return nil
}

// registerStream stores a stream registration, rejecting duplicates.
func (m *Mediator) registerStream(t, itemType reflect.Type, handler contracts.StreamHandler) error {
	if handler == nil {
		return fmt.Errorf("dmate: handler cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.streams[t]; exists {
		return fmt.Errorf("dmate: stream handler already registered for %s", typeutil.DisplayName(t))
	}
	m.streams[t] = streamRegistration{handler: handler, itemType: itemType}

	m.logger.Debug("registered stream handler",
		"requestType", typeutil.DisplayName(t),
	)
	return nil
}

// subscribe appends one subscription.
func (m *Mediator) subscribe(t reflect.Type, subscriber contracts.NotificationHandler) error {
	if subscriber == nil {
		return fmt.Errorf("dmate: subscriber cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscriptions = append(m.subscriptions, subscription{
		notificationType: t,
		subscriber:       subscriber,
	})

	m.logger.Debug("subscribed notification handler",
		"notificationType", typeutil.DisplayName(t),
		"subscriber", typeutil.DisplayNameOf(subscriber),
	)
	return nil
}

// matchSubscribers snapshots the subscribers whose registered type t is
// assignable to, in subscription order.
func (m *Mediator) matchSubscribers(t reflect.Type) []contracts.NotificationHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []contracts.NotificationHandler
	for _, sub := range m.subscriptions {
		if t.AssignableTo(sub.notificationType) {
			matched = append(matched, sub.subscriber)
		}
	}
	return matched
}

// prototypeType extracts the registration key from a payload prototype.
// A reflect.Type prototype is used as the key directly, which is the only
// way to key an interface type from non-generic code.
func prototypeType(prototype any) (reflect.Type, error) {
	if prototype == nil {
		return nil, fmt.Errorf("dmate: payload prototype cannot be nil")
	}
	if t, ok := prototype.(reflect.Type); ok {
		return t, nil
	}
	return reflect.TypeOf(prototype), nil
}

// sameHandler reports whether two subscribers are the same registration.
// Comparable handlers match by equality; func adapters match by code
// pointer. Uncomparable struct handlers never match.
func sameHandler(a, b contracts.NotificationHandler) bool {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	switch ta.Kind() {
	case reflect.Func, reflect.Map, reflect.Slice:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	default:
		return false
	}
}

// traceEntries projects journal entries onto their pipeline view.
func traceEntries(entries []journal.Entry) []pipeline.TraceEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]pipeline.TraceEntry, len(entries))
	for i, e := range entries {
		out[i] = e.TraceEntry
	}
	return out
}

// mediatorConfig holds mediator configuration.
type mediatorConfig struct {
	logger          *slog.Logger
	resolver        contracts.Resolver
	statistics      bool
	journal         bool
	journalCapacity int
	interceptors    []pendingInterceptor
}

// pendingInterceptor is one WithInterceptor registration, applied in New.
type pendingInterceptor struct {
	definition any
	opts       []pipeline.RegistrationOption
}

// Option configures the mediator.
type Option func(*mediatorConfig)

// WithLogger sets the logger for the mediator and its pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *mediatorConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithResolver sets the resolver used to materialize interceptors
// registered by type.
func WithResolver(r contracts.Resolver) Option {
	return func(cfg *mediatorConfig) {
		cfg.resolver = r
	}
}

// WithStatistics enables in-memory dispatch statistics, collected by
// metrics interceptors registered ahead of any WithInterceptor
// definitions.
func WithStatistics() Option {
	return func(cfg *mediatorConfig) {
		cfg.statistics = true
	}
}

// WithJournal enables the bounded execution journal. A non-positive
// capacity keeps the default of 10000 entries.
func WithJournal(capacity int) Option {
	return func(cfg *mediatorConfig) {
		cfg.journal = true
		cfg.journalCapacity = capacity
	}
}

// WithInterceptor queues an interceptor definition for registration
// during New. Registration options follow pipeline.Add.
func WithInterceptor(definition any, opts ...pipeline.RegistrationOption) Option {
	return func(cfg *mediatorConfig) {
		cfg.interceptors = append(cfg.interceptors, pendingInterceptor{
			definition: definition,
			opts:       opts,
		})
	}
}
