package interceptors

import (
	"context"
	"reflect"
	"time"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/internal/typeutil"
	"github.com/dispatchmate/dmate-go/pipeline"
)

// MetricsCollector receives dispatch measurements from the metrics
// interceptors. The stats package ships an in-memory implementation.
type MetricsCollector interface {
	IncrementDispatchCount(shape, payloadType string)
	RecordDispatchTime(shape, payloadType string, duration time.Duration)
	IncrementErrorCount(shape, payloadType string)
}

// payloadName keys stats rows by the payload's logical type: pointer
// indirection is folded away so pointer and value dispatches of the same
// type aggregate under one row.
func payloadName(payload any) string {
	return typeutil.DisplayName(typeutil.Indirect(reflect.TypeOf(payload)))
}

// MetricsInterceptor feeds command dispatch measurements to a collector.
type MetricsInterceptor struct {
	collector MetricsCollector
}

// NewMetricsInterceptor creates a new metrics interceptor.
func NewMetricsInterceptor(collector MetricsCollector) *MetricsInterceptor {
	return &MetricsInterceptor{collector: collector}
}

// Intercept implements contracts.CommandInterceptor.
func (i *MetricsInterceptor) Intercept(ctx context.Context, command any, next contracts.CommandHandler) error {
	start := time.Now()
	shape := pipeline.ShapeCommand.String()
	commandType := payloadName(command)

	i.collector.IncrementDispatchCount(shape, commandType)

	err := next.Handle(ctx, command)

	i.collector.RecordDispatchTime(shape, commandType, time.Since(start))
	if err != nil {
		i.collector.IncrementErrorCount(shape, commandType)
	}

	return err
}

// Name implements contracts.CommandInterceptor.
func (i *MetricsInterceptor) Name() string {
	return "MetricsInterceptor"
}

// InterceptorOrder implements contracts.Ordered.
func (i *MetricsInterceptor) InterceptorOrder() int {
	return OrderMetrics
}

// RequestMetricsInterceptor feeds request dispatch measurements to a
// collector.
type RequestMetricsInterceptor struct {
	collector MetricsCollector
}

// NewRequestMetricsInterceptor creates a new request metrics interceptor.
func NewRequestMetricsInterceptor(collector MetricsCollector) *RequestMetricsInterceptor {
	return &RequestMetricsInterceptor{collector: collector}
}

// Intercept implements contracts.RequestInterceptor.
func (i *RequestMetricsInterceptor) Intercept(ctx context.Context, request any, next contracts.RequestHandler) (any, error) {
	start := time.Now()
	shape := pipeline.ShapeRequest.String()
	requestType := payloadName(request)

	i.collector.IncrementDispatchCount(shape, requestType)

	response, err := next.Handle(ctx, request)

	i.collector.RecordDispatchTime(shape, requestType, time.Since(start))
	if err != nil {
		i.collector.IncrementErrorCount(shape, requestType)
	}

	return response, err
}

// Name implements contracts.RequestInterceptor.
func (i *RequestMetricsInterceptor) Name() string {
	return "RequestMetricsInterceptor"
}

// InterceptorOrder implements contracts.Ordered.
func (i *RequestMetricsInterceptor) InterceptorOrder() int {
	return OrderMetrics
}

var (
	_ contracts.CommandInterceptor = (*MetricsInterceptor)(nil)
	_ contracts.RequestInterceptor = (*RequestMetricsInterceptor)(nil)
)
