package pipeline

import (
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchmate/dmate-go/contracts"
)

// contextKey is the type used for pipeline context values.
type contextKey string

// executionContextKey carries the *Execution of the active invocation.
const executionContextKey contextKey = "dmate:pipeline:execution"

// Execution describes one pipeline invocation. It travels in the context
// so interceptors and handlers can correlate their work; nested
// dispatches shadow the outer execution for the inner call.
type Execution struct {
	// ID uniquely identifies the invocation.
	ID string

	// Shape is the pipeline family being executed.
	Shape Shape

	// PayloadType is the runtime type of the dispatched payload.
	PayloadType reflect.Type

	// StartedAt is when the invocation entered the pipeline.
	StartedAt time.Time

	// Resolver materializes interceptors registered by type. Exposed so
	// interceptors can resolve their own collaborators the same way.
	Resolver contracts.Resolver
}

// newExecution stamps a fresh Execution into ctx.
func (p *Pipeline) newExecution(ctx context.Context, shape Shape, payloadType reflect.Type) (context.Context, *Execution) {
	exec := &Execution{
		ID:          uuid.New().String(),
		Shape:       shape,
		PayloadType: payloadType,
		StartedAt:   time.Now(),
		Resolver:    p.resolver,
	}
	return context.WithValue(ctx, executionContextKey, exec), exec
}

// ExecutionFromContext extracts the active pipeline execution, if any.
func ExecutionFromContext(ctx context.Context) (*Execution, bool) {
	exec, ok := ctx.Value(executionContextKey).(*Execution)
	return exec, ok
}

// StepOutcome classifies how one pipeline step ended.
type StepOutcome string

const (
	// OutcomeCompleted marks an interceptor that ran its logic and
	// returned without error.
	OutcomeCompleted StepOutcome = "completed"

	// OutcomeFailed marks an interceptor that returned an error.
	OutcomeFailed StepOutcome = "failed"

	// OutcomeSkippedConditional marks an interceptor whose ShouldExecute
	// returned false, passing the payload straight through.
	OutcomeSkippedConditional StepOutcome = "skipped-conditional"

	// OutcomeSkippedCapability marks a notification interceptor none of
	// whose capabilities matched the payload, passing it straight through.
	OutcomeSkippedCapability StepOutcome = "skipped-capability"

	// OutcomeHandlerCompleted marks the terminal handler finishing
	// without error.
	OutcomeHandlerCompleted StepOutcome = "handler-completed"

	// OutcomeHandlerFailed marks the terminal handler returning an error.
	OutcomeHandlerFailed StepOutcome = "handler-failed"
)

// TraceEntry is one recorded pipeline step.
type TraceEntry struct {
	ExecutionID string
	Shape       Shape
	PayloadType reflect.Type
	Step        string // interceptor or handler display name
	Outcome     StepOutcome
	Duration    time.Duration
	Err         error
	At          time.Time
}

// TraceRecorder receives trace entries as steps complete. Implementations
// must be safe for concurrent use and must not block the pipeline.
type TraceRecorder interface {
	Record(ctx context.Context, entry TraceEntry)
}

// record emits a trace entry when a recorder is configured.
func (p *Pipeline) record(ctx context.Context, shape Shape, step string, outcome StepOutcome, d time.Duration, err error) {
	if p.recorder == nil {
		return
	}

	entry := TraceEntry{
		Shape:    shape,
		Step:     step,
		Outcome:  outcome,
		Duration: d,
		Err:      err,
		At:       time.Now(),
	}
	if exec, ok := ExecutionFromContext(ctx); ok {
		entry.ExecutionID = exec.ID
		entry.PayloadType = exec.PayloadType
	}
	p.recorder.Record(ctx, entry)
}
