package pipeline

import (
	"context"
	"reflect"
	"time"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

// ExecuteNotification runs the fan-out pipeline for the payload's runtime
// type. broadcast is the terminal stage that delivers the notification to
// every subscriber; how it isolates subscriber failures is the caller's
// policy, not the pipeline's.
func (p *Pipeline) ExecuteNotification(ctx context.Context, notification any, broadcast contracts.NotificationHandler) error {
	if notification == nil {
		return ErrNilPayload
	}
	if broadcast == nil {
		return ErrNilHandler
	}

	payloadType := reflect.TypeOf(notification)
	pln := p.assemble(ShapeNotification, payloadType, nil)
	ctx, _ = p.newExecution(ctx, ShapeNotification, payloadType)

	handler := p.terminalNotificationHandler(broadcast)
	for i := len(pln.links) - 1; i >= 0; i-- {
		lnk := pln.links[i]
		next := handler
		handler = contracts.NotificationHandlerFunc(func(ctx context.Context, notification any) error {
			return p.runNotificationLink(ctx, lnk, notification, next)
		})
	}

	return handler.Handle(ctx, notification)
}

// terminalNotificationHandler wraps the broadcast with trace recording.
func (p *Pipeline) terminalNotificationHandler(broadcast contracts.NotificationHandler) contracts.NotificationHandler {
	if p.recorder == nil {
		return broadcast
	}
	name := typeutil.DisplayNameOf(broadcast)
	return contracts.NotificationHandlerFunc(func(ctx context.Context, notification any) error {
		start := time.Now()
		err := broadcast.Handle(ctx, notification)
		outcome := OutcomeHandlerCompleted
		if err != nil {
			outcome = OutcomeHandlerFailed
		}
		p.record(ctx, ShapeNotification, name, outcome, time.Since(start), err)
		return err
	})
}

// runNotificationLink materializes the link's interceptor and runs the
// per-call skip checks. A capability-constrained interceptor whose
// capabilities match nothing on the payload stays wired as a transparent
// pass-through: downstream interceptors and the broadcast still run. The
// check uses the payload's runtime type, which may satisfy more
// capabilities than its declared type.
func (p *Pipeline) runNotificationLink(ctx context.Context, l link, notification any, next contracts.NotificationHandler) error {
	instance, err := p.instanceFor(l)
	if err != nil {
		return err
	}
	interceptor, ok := instance.(contracts.NotificationInterceptor)
	if !ok {
		return &ShapeMismatchError{Type: reflect.TypeOf(instance), Shape: ShapeNotification}
	}

	if caps := l.capabilities(); len(caps) > 0 && !satisfiesCapability(reflect.TypeOf(notification), caps) {
		p.record(ctx, ShapeNotification, l.displayName(), OutcomeSkippedCapability, 0, nil)
		return next.Handle(ctx, notification)
	}

	if cond, ok := instance.(contracts.Conditional); ok && !cond.ShouldExecute(ctx, notification) {
		p.record(ctx, ShapeNotification, l.displayName(), OutcomeSkippedConditional, 0, nil)
		return next.Handle(ctx, notification)
	}

	start := time.Now()
	err = interceptor.Intercept(ctx, notification, next)
	outcome := OutcomeCompleted
	if err != nil {
		outcome = OutcomeFailed
	}
	p.record(ctx, ShapeNotification, l.displayName(), outcome, time.Since(start), err)
	return err
}
