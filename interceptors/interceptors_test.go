package interceptors

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dispatchmate/dmate-go/contracts"
)

// quiet returns a logger that discards everything.
func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Test payloads
type submitPayment struct {
	Amount int
}

// invalidPayment fails its own validation.
type invalidPayment struct{}

func (p invalidPayment) Validate(ctx context.Context) error {
	return errors.New("amount required")
}

// Mock handlers
type mockCommandHandler struct {
	mock.Mock
}

func (m *mockCommandHandler) Handle(ctx context.Context, command any) error {
	args := m.Called(ctx, command)
	return args.Error(0)
}

type mockRequestHandler struct {
	mock.Mock
}

func (m *mockRequestHandler) Handle(ctx context.Context, request any) (any, error) {
	args := m.Called(ctx, request)
	return args.Get(0), args.Error(1)
}

type mockCollector struct {
	mock.Mock
}

func (m *mockCollector) IncrementDispatchCount(shape, payloadType string) {
	m.Called(shape, payloadType)
}

func (m *mockCollector) RecordDispatchTime(shape, payloadType string, duration time.Duration) {
	m.Called(shape, payloadType, duration)
}

func (m *mockCollector) IncrementErrorCount(shape, payloadType string) {
	m.Called(shape, payloadType)
}

func TestLoggingInterceptor(t *testing.T) {
	ctx := context.Background()
	cmd := submitPayment{Amount: 10}

	t.Run("passes success through", func(t *testing.T) {
		i := NewLoggingInterceptor(quiet())
		handler := &mockCommandHandler{}
		handler.On("Handle", mock.Anything, cmd).Return(nil)

		err := i.Intercept(ctx, cmd, handler)

		assert.NoError(t, err)
		handler.AssertExpectations(t)
	})

	t.Run("passes failure through", func(t *testing.T) {
		i := NewLoggingInterceptor(quiet())
		boom := errors.New("declined")
		handler := &mockCommandHandler{}
		handler.On("Handle", mock.Anything, cmd).Return(boom)

		err := i.Intercept(ctx, cmd, handler)

		assert.ErrorIs(t, err, boom)
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		i := NewLoggingInterceptor(nil)
		assert.NotNil(t, i.logger)
	})

	t.Run("request variant forwards the response", func(t *testing.T) {
		i := NewRequestLoggingInterceptor(quiet())
		handler := &mockRequestHandler{}
		handler.On("Handle", mock.Anything, cmd).Return("receipt-1", nil)

		response, err := i.Intercept(ctx, cmd, handler)

		assert.NoError(t, err)
		assert.Equal(t, "receipt-1", response)
	})
}

func TestValidationInterceptor(t *testing.T) {
	ctx := context.Background()

	t.Run("payloads without Validate pass through", func(t *testing.T) {
		i := NewValidationInterceptor()
		handler := &mockCommandHandler{}
		handler.On("Handle", mock.Anything, submitPayment{}).Return(nil)

		err := i.Intercept(ctx, submitPayment{}, handler)

		assert.NoError(t, err)
		handler.AssertExpectations(t)
	})

	t.Run("failed validation stops the chain", func(t *testing.T) {
		i := NewValidationInterceptor()
		handler := &mockCommandHandler{}

		err := i.Intercept(ctx, invalidPayment{}, handler)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalidPayment validation failed")
		handler.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
	})

	t.Run("request variant returns no response on failure", func(t *testing.T) {
		i := NewRequestValidationInterceptor()
		handler := &mockRequestHandler{}

		response, err := i.Intercept(ctx, invalidPayment{}, handler)

		require.Error(t, err)
		assert.Nil(t, response)
		handler.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
	})
}

func TestMetricsInterceptor(t *testing.T) {
	ctx := context.Background()
	cmd := submitPayment{Amount: 10}

	t.Run("records count and time on success", func(t *testing.T) {
		collector := &mockCollector{}
		collector.On("IncrementDispatchCount", "command", "submitPayment").Once()
		collector.On("RecordDispatchTime", "command", "submitPayment", mock.Anything).Once()

		i := NewMetricsInterceptor(collector)
		handler := &mockCommandHandler{}
		handler.On("Handle", mock.Anything, cmd).Return(nil)

		err := i.Intercept(ctx, cmd, handler)

		assert.NoError(t, err)
		collector.AssertExpectations(t)
		collector.AssertNotCalled(t, "IncrementErrorCount", mock.Anything, mock.Anything)
	})

	t.Run("records errors on failure", func(t *testing.T) {
		collector := &mockCollector{}
		collector.On("IncrementDispatchCount", "command", "submitPayment").Once()
		collector.On("RecordDispatchTime", "command", "submitPayment", mock.Anything).Once()
		collector.On("IncrementErrorCount", "command", "submitPayment").Once()

		i := NewMetricsInterceptor(collector)
		boom := errors.New("declined")
		handler := &mockCommandHandler{}
		handler.On("Handle", mock.Anything, cmd).Return(boom)

		err := i.Intercept(ctx, cmd, handler)

		assert.ErrorIs(t, err, boom)
		collector.AssertExpectations(t)
	})

	t.Run("request variant reports the request shape", func(t *testing.T) {
		collector := &mockCollector{}
		collector.On("IncrementDispatchCount", "request", "submitPayment").Once()
		collector.On("RecordDispatchTime", "request", "submitPayment", mock.Anything).Once()

		i := NewRequestMetricsInterceptor(collector)
		handler := &mockRequestHandler{}
		handler.On("Handle", mock.Anything, cmd).Return("ok", nil)

		response, err := i.Intercept(ctx, cmd, handler)

		assert.NoError(t, err)
		assert.Equal(t, "ok", response)
		collector.AssertExpectations(t)
	})

	t.Run("pointer payloads aggregate under the value type name", func(t *testing.T) {
		collector := &mockCollector{}
		collector.On("IncrementDispatchCount", "command", "submitPayment").Once()
		collector.On("RecordDispatchTime", "command", "submitPayment", mock.Anything).Once()

		i := NewMetricsInterceptor(collector)
		handler := &mockCommandHandler{}
		handler.On("Handle", mock.Anything, mock.Anything).Return(nil)

		err := i.Intercept(ctx, &submitPayment{Amount: 10}, handler)

		assert.NoError(t, err)
		collector.AssertExpectations(t)
	})
}

func TestNotificationErrorBoundary(t *testing.T) {
	ctx := context.Background()

	t.Run("swallows downstream errors", func(t *testing.T) {
		boundary := NewNotificationErrorBoundary(quiet())
		next := contracts.NotificationHandlerFunc(func(ctx context.Context, notification any) error {
			return errors.New("observer blew up")
		})

		err := boundary.Intercept(ctx, submitPayment{}, next)

		assert.NoError(t, err)
	})

	t.Run("passes success through", func(t *testing.T) {
		boundary := NewNotificationErrorBoundary(quiet())
		var handled bool
		next := contracts.NotificationHandlerFunc(func(ctx context.Context, notification any) error {
			handled = true
			return nil
		})

		err := boundary.Intercept(ctx, submitPayment{}, next)

		assert.NoError(t, err)
		assert.True(t, handled)
	})

	t.Run("pins itself to the outermost position", func(t *testing.T) {
		boundary := NewNotificationErrorBoundary(nil)
		assert.Equal(t, math.MinInt, boundary.InterceptorOrder())
	})
}

func TestTimeoutInterceptor(t *testing.T) {
	ctx := context.Background()

	t.Run("fast handlers pass through", func(t *testing.T) {
		i := NewTimeoutInterceptor(time.Second)
		next := contracts.CommandHandlerFunc(func(ctx context.Context, command any) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return nil
		})

		err := i.Intercept(ctx, submitPayment{}, next)

		assert.NoError(t, err)
	})

	t.Run("slow handlers time out", func(t *testing.T) {
		i := NewTimeoutInterceptor(10 * time.Millisecond)
		next := contracts.CommandHandlerFunc(func(ctx context.Context, command any) error {
			select {
			case <-time.After(time.Second):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		err := i.Intercept(ctx, submitPayment{}, next)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Contains(t, err.Error(), "timed out")
	})
}

func TestTracingInterceptor(t *testing.T) {
	ctx := context.Background()
	cmd := submitPayment{Amount: 10}

	t.Run("finishes a span per dispatch", func(t *testing.T) {
		tracer := mocktracer.New()
		i := NewTracingInterceptor(tracer)
		next := contracts.CommandHandlerFunc(func(ctx context.Context, command any) error {
			return nil
		})

		err := i.Intercept(ctx, cmd, next)

		require.NoError(t, err)
		spans := tracer.FinishedSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "Command(submitPayment)", spans[0].OperationName)
		assert.Equal(t, "submitPayment", spans[0].Tags()["dispatch.command_type"])
	})

	t.Run("tags failed dispatches", func(t *testing.T) {
		tracer := mocktracer.New()
		i := NewTracingInterceptor(tracer)
		boom := errors.New("declined")
		next := contracts.CommandHandlerFunc(func(ctx context.Context, command any) error {
			return boom
		})

		err := i.Intercept(ctx, cmd, next)

		require.ErrorIs(t, err, boom)
		spans := tracer.FinishedSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, true, spans[0].Tags()["error"])
	})
}

func TestDefaultChainOrdering(t *testing.T) {
	// The documented default chain: recovery outermost, validation next
	// to the handler.
	assert.Less(t, OrderRecovery, OrderTracing)
	assert.Less(t, OrderTracing, OrderLogging)
	assert.Less(t, OrderLogging, OrderMetrics)
	assert.Less(t, OrderMetrics, OrderTimeout)
	assert.Less(t, OrderTimeout, OrderCircuitBreaker)
	assert.Less(t, OrderCircuitBreaker, OrderRetry)
	assert.Less(t, OrderRetry, OrderValidation)
	assert.Less(t, OrderValidation, 0)
}
