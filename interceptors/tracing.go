package interceptors

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
	"github.com/dispatchmate/dmate-go/pipeline"
)

// TracingInterceptor opens an opentracing span around each command
// dispatch. The span follows any parent already carried by the context,
// so dispatches nested inside a traced operation show up as children.
type TracingInterceptor struct {
	tracer opentracing.Tracer
}

// NewTracingInterceptor creates a new tracing interceptor. A nil tracer
// falls back to the process-global one.
func NewTracingInterceptor(tracer opentracing.Tracer) *TracingInterceptor {
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}

	return &TracingInterceptor{tracer: tracer}
}

// Intercept implements contracts.CommandInterceptor.
func (i *TracingInterceptor) Intercept(ctx context.Context, command any, next contracts.CommandHandler) error {
	commandType := typeutil.DisplayNameOf(command)
	opName := fmt.Sprintf("Command(%s)", commandType)
	sp, ctx := opentracing.StartSpanFromContextWithTracer(ctx, i.tracer, opName)

	err := next.Handle(ctx, command)

	sp.SetTag("dispatch.command_type", commandType)
	if exec, ok := pipeline.ExecutionFromContext(ctx); ok {
		sp.SetTag("dispatch.execution_id", exec.ID)
	}
	if err != nil {
		ext.LogError(sp, err)
	}
	sp.Finish()

	return err
}

// Name implements contracts.CommandInterceptor.
func (i *TracingInterceptor) Name() string {
	return "TracingInterceptor"
}

// InterceptorOrder implements contracts.Ordered.
func (i *TracingInterceptor) InterceptorOrder() int {
	return OrderTracing
}

var _ contracts.CommandInterceptor = (*TracingInterceptor)(nil)
