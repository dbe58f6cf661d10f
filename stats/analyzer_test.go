package stats

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/dispatchmate/dmate-go/contracts"
	"github.com/dispatchmate/dmate-go/pipeline"
)

// auditCommands is a command interceptor double for analysis rendering.
type auditCommands struct{}

func (a *auditCommands) Name() string { return "auditCommands" }

func (a *auditCommands) InterceptorOrder() int { return 10 }

func (a *auditCommands) Intercept(ctx context.Context, command any, next contracts.CommandHandler) error {
	return next.Handle(ctx, command)
}

// orderEvents scopes an observer to order notifications.
type orderEvents interface {
	OrderID() string
}

// scopedObserver only observes order events and skips per payload.
type scopedObserver struct{}

func (o *scopedObserver) Name() string { return "scopedObserver" }

func (o *scopedObserver) Capabilities() []reflect.Type {
	return []reflect.Type{contracts.Capability[orderEvents]()}
}

func (o *scopedObserver) ShouldExecute(ctx context.Context, payload any) bool { return true }

func (o *scopedObserver) Intercept(ctx context.Context, notification any, next contracts.NotificationHandler) error {
	return next.Handle(ctx, notification)
}

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRenderAnalysis(t *testing.T) {
	tpl := pipeline.MustTemplate("Audit", []pipeline.TypeParam{
		{Name: "TRequest", Kind: pipeline.KindAny},
		{Name: "TResponse", Kind: pipeline.KindReference},
	}, func(args ...reflect.Type) (any, error) {
		return &auditCommands{}, nil
	})

	p := pipeline.New()
	require.NoError(t, p.Add(&auditCommands{}))
	require.NoError(t, p.Add(&scopedObserver{}))
	require.NoError(t, p.Add(tpl))
	require.NoError(t, p.Add(reflect.TypeOf(&auditCommands{})))

	out := RenderAnalysis(p.Analyze())

	g := newGoldie(t)
	g.Assert(t, "analysis", []byte(out))
}

func TestRenderSnapshot(t *testing.T) {
	snap := Snapshot{Rows: []Row{
		{
			Shape:       "command",
			PayloadType: "placeOrder",
			Dispatches:  3,
			Errors:      1,
			TotalTime:   15 * time.Millisecond,
			AverageTime: 5 * time.Millisecond,
			MinTime:     time.Millisecond,
			MaxTime:     10 * time.Millisecond,
		},
		{
			Shape:       "request",
			PayloadType: "getReceipt",
			Dispatches:  2,
			TotalTime:   4 * time.Millisecond,
			AverageTime: 2 * time.Millisecond,
			MinTime:     2 * time.Millisecond,
			MaxTime:     2 * time.Millisecond,
		},
	}}

	out := RenderSnapshot(snap)

	g := newGoldie(t)
	g.Assert(t, "snapshot", []byte(out))
}
