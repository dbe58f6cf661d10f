package pipeline

import (
	"context"
	"reflect"
	"time"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

// ExecuteRequest runs the request pipeline for the payload's runtime type
// and hands the request to final at the end of the chain. responseType
// selects which two-parameter template specializations participate;
// callers that do not track response types may pass nil, which excludes
// two-parameter templates entirely: a type argument never binds to nil,
// constrained or not.
func (p *Pipeline) ExecuteRequest(ctx context.Context, request any, responseType reflect.Type, final contracts.RequestHandler) (any, error) {
	if request == nil {
		return nil, ErrNilPayload
	}
	if final == nil {
		return nil, ErrNilHandler
	}

	payloadType := reflect.TypeOf(request)
	pln := p.assemble(ShapeRequest, payloadType, responseType)
	ctx, _ = p.newExecution(ctx, ShapeRequest, payloadType)

	// Build the chain right to left so the first link runs first.
	handler := p.terminalRequestHandler(final)
	for i := len(pln.links) - 1; i >= 0; i-- {
		lnk := pln.links[i]
		next := handler
		handler = contracts.RequestHandlerFunc(func(ctx context.Context, request any) (any, error) {
			return p.runRequestLink(ctx, lnk, request, next)
		})
	}

	return handler.Handle(ctx, request)
}

// terminalRequestHandler wraps the final handler with trace recording.
func (p *Pipeline) terminalRequestHandler(final contracts.RequestHandler) contracts.RequestHandler {
	if p.recorder == nil {
		return final
	}
	name := typeutil.DisplayNameOf(final)
	return contracts.RequestHandlerFunc(func(ctx context.Context, request any) (any, error) {
		start := time.Now()
		response, err := final.Handle(ctx, request)
		outcome := OutcomeHandlerCompleted
		if err != nil {
			outcome = OutcomeHandlerFailed
		}
		p.record(ctx, ShapeRequest, name, outcome, time.Since(start), err)
		return response, err
	})
}

// runRequestLink materializes the link's interceptor, runs the per-call
// skip check, and invokes its logic.
func (p *Pipeline) runRequestLink(ctx context.Context, l link, request any, next contracts.RequestHandler) (any, error) {
	instance, err := p.instanceFor(l)
	if err != nil {
		return nil, err
	}
	interceptor, ok := instance.(contracts.RequestInterceptor)
	if !ok {
		return nil, &ShapeMismatchError{Type: reflect.TypeOf(instance), Shape: ShapeRequest}
	}

	if cond, ok := instance.(contracts.Conditional); ok && !cond.ShouldExecute(ctx, request) {
		p.record(ctx, ShapeRequest, l.displayName(), OutcomeSkippedConditional, 0, nil)
		return next.Handle(ctx, request)
	}

	start := time.Now()
	response, err := interceptor.Intercept(ctx, request, next)
	outcome := OutcomeCompleted
	if err != nil {
		outcome = OutcomeFailed
	}
	p.record(ctx, ShapeRequest, l.displayName(), outcome, time.Since(start), err)
	return response, err
}
