package pipeline

import (
	"context"
	"reflect"
	"time"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

// ExecuteStream runs the streaming pipeline for the payload's runtime
// type and returns the channel produced by the chain. The sequence is
// lazy: items materialize as the final handler emits them, and it can
// only be restarted by a fresh invocation. responseType selects which
// two-parameter template specializations participate and refers to the
// item type flowing through the channel.
func (p *Pipeline) ExecuteStream(ctx context.Context, request any, responseType reflect.Type, final contracts.StreamHandler) (<-chan contracts.StreamItem, error) {
	if request == nil {
		return nil, ErrNilPayload
	}
	if final == nil {
		return nil, ErrNilHandler
	}

	payloadType := reflect.TypeOf(request)
	pln := p.assemble(ShapeStream, payloadType, responseType)
	ctx, _ = p.newExecution(ctx, ShapeStream, payloadType)

	handler := p.terminalStreamHandler(final)
	for i := len(pln.links) - 1; i >= 0; i-- {
		lnk := pln.links[i]
		next := handler
		handler = contracts.StreamHandlerFunc(func(ctx context.Context, request any) (<-chan contracts.StreamItem, error) {
			return p.runStreamLink(ctx, lnk, request, next)
		})
	}

	return handler.Handle(ctx, request)
}

// terminalStreamHandler wraps the final handler with trace recording.
// Only the synchronous open step is recorded; item flow belongs to the
// interceptors that choose to observe it.
func (p *Pipeline) terminalStreamHandler(final contracts.StreamHandler) contracts.StreamHandler {
	if p.recorder == nil {
		return final
	}
	name := typeutil.DisplayNameOf(final)
	return contracts.StreamHandlerFunc(func(ctx context.Context, request any) (<-chan contracts.StreamItem, error) {
		start := time.Now()
		items, err := final.Handle(ctx, request)
		outcome := OutcomeHandlerCompleted
		if err != nil {
			outcome = OutcomeHandlerFailed
		}
		p.record(ctx, ShapeStream, name, outcome, time.Since(start), err)
		return items, err
	})
}

// runStreamLink materializes the link's interceptor, runs the per-call
// skip check, and invokes its logic.
func (p *Pipeline) runStreamLink(ctx context.Context, l link, request any, next contracts.StreamHandler) (<-chan contracts.StreamItem, error) {
	instance, err := p.instanceFor(l)
	if err != nil {
		return nil, err
	}
	interceptor, ok := instance.(contracts.StreamInterceptor)
	if !ok {
		return nil, &ShapeMismatchError{Type: reflect.TypeOf(instance), Shape: ShapeStream}
	}

	if cond, ok := instance.(contracts.Conditional); ok && !cond.ShouldExecute(ctx, request) {
		p.record(ctx, ShapeStream, l.displayName(), OutcomeSkippedConditional, 0, nil)
		return next.Handle(ctx, request)
	}

	start := time.Now()
	items, err := interceptor.Intercept(ctx, request, next)
	outcome := OutcomeCompleted
	if err != nil {
		outcome = OutcomeFailed
	}
	p.record(ctx, ShapeStream, l.displayName(), outcome, time.Since(start), err)
	return items, err
}
