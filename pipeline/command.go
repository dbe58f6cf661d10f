package pipeline

import (
	"context"
	"reflect"
	"time"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
)

// ExecuteCommand runs the void request pipeline for the payload's runtime
// type and hands the command to final at the end of the chain.
func (p *Pipeline) ExecuteCommand(ctx context.Context, command any, final contracts.CommandHandler) error {
	if command == nil {
		return ErrNilPayload
	}
	if final == nil {
		return ErrNilHandler
	}

	payloadType := reflect.TypeOf(command)
	pln := p.assemble(ShapeCommand, payloadType, nil)
	ctx, _ = p.newExecution(ctx, ShapeCommand, payloadType)

	handler := p.terminalCommandHandler(final)
	for i := len(pln.links) - 1; i >= 0; i-- {
		lnk := pln.links[i]
		next := handler
		handler = contracts.CommandHandlerFunc(func(ctx context.Context, command any) error {
			return p.runCommandLink(ctx, lnk, command, next)
		})
	}

	return handler.Handle(ctx, command)
}

// terminalCommandHandler wraps the final handler with trace recording.
func (p *Pipeline) terminalCommandHandler(final contracts.CommandHandler) contracts.CommandHandler {
	if p.recorder == nil {
		return final
	}
	name := typeutil.DisplayNameOf(final)
	return contracts.CommandHandlerFunc(func(ctx context.Context, command any) error {
		start := time.Now()
		err := final.Handle(ctx, command)
		outcome := OutcomeHandlerCompleted
		if err != nil {
			outcome = OutcomeHandlerFailed
		}
		p.record(ctx, ShapeCommand, name, outcome, time.Since(start), err)
		return err
	})
}

// runCommandLink materializes the link's interceptor, runs the per-call
// skip check, and invokes its logic.
func (p *Pipeline) runCommandLink(ctx context.Context, l link, command any, next contracts.CommandHandler) error {
	instance, err := p.instanceFor(l)
	if err != nil {
		return err
	}
	interceptor, ok := instance.(contracts.CommandInterceptor)
	if !ok {
		return &ShapeMismatchError{Type: reflect.TypeOf(instance), Shape: ShapeCommand}
	}

	if cond, ok := instance.(contracts.Conditional); ok && !cond.ShouldExecute(ctx, command) {
		p.record(ctx, ShapeCommand, l.displayName(), OutcomeSkippedConditional, 0, nil)
		return next.Handle(ctx, command)
	}

	start := time.Now()
	err = interceptor.Intercept(ctx, command, next)
	outcome := OutcomeCompleted
	if err != nil {
		outcome = OutcomeFailed
	}
	p.record(ctx, ShapeCommand, l.displayName(), outcome, time.Since(start), err)
	return err
}
