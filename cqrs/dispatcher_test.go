package cqrs_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/code19m/errx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/recoengine/cqrs"
	"github.com/rise-and-shine/recoengine/cqrs/wrapper"
	"github.com/rise-and-shine/recoengine/logger"
	"github.com/rise-and-shine/recoengine/metrics"
	"github.com/rise-and-shine/recoengine/val"
)

type echoQuery struct {
	cqrs.QueryMarker

	Text string `json:"text" validate:"required"`
}

func (echoQuery) RequestName() string { return "EchoQuery" }

type bumpCommand struct {
	cqrs.CommandMarker

	By int `json:"by"`
}

func (bumpCommand) RequestName() string { return "BumpCommand" }

type panicQuery struct{ cqrs.QueryMarker }

func (panicQuery) RequestName() string { return "PanicQuery" }

type unknownQuery struct{ cqrs.QueryMarker }

func (unknownQuery) RequestName() string { return "UnknownQuery" }

type failCommand struct{ cqrs.CommandMarker }

func (failCommand) RequestName() string { return "FailCommand" }

func newDispatcher(t *testing.T, counter *atomic.Int64, m *metrics.Metrics) *cqrs.Dispatcher {
	t.Helper()

	b := cqrs.NewRegistryBuilder()
	cqrs.Register(b, cqrs.HandlerFunc[echoQuery, string]{
		ID: "echo",
		Fn: func(_ context.Context, q echoQuery) (string, error) { return q.Text, nil },
	}, wrapper.Default[echoQuery, string](logger.Nop(), 0)...)
	cqrs.Register(b, cqrs.HandlerFunc[bumpCommand, cqrs.Empty]{
		ID: "bump",
		Fn: func(_ context.Context, c bumpCommand) (cqrs.Empty, error) {
			counter.Add(int64(c.By))
			return cqrs.Empty{}, nil
		},
	})
	cqrs.Register(b, cqrs.HandlerFunc[panicQuery, int]{
		ID: "panic",
		Fn: func(context.Context, panicQuery) (int, error) { panic("boom") },
	})
	cqrs.Register(b, cqrs.HandlerFunc[failCommand, cqrs.Empty]{
		ID: "fail",
		Fn: func(context.Context, failCommand) (cqrs.Empty, error) {
			return cqrs.Empty{}, errx.New("player missing",
				errx.WithCode("PLAYER_NOT_FOUND"),
				errx.WithType(errx.T_NotFound),
			)
		},
	})

	registry, err := b.Build()
	require.NoError(t, err)
	return cqrs.NewDispatcher(registry, logger.Nop(), m)
}

func TestDispatchRoutesToHandler(t *testing.T) {
	var counter atomic.Int64
	d := newDispatcher(t, &counter, nil)

	res := cqrs.Dispatch[string](t.Context(), d, echoQuery{Text: "hello"})
	require.True(t, res.IsOk())
	assert.Equal(t, "hello", res.MustValue())

	bump := cqrs.Dispatch[cqrs.Empty](t.Context(), d, bumpCommand{By: 3})
	require.True(t, bump.IsOk())
	assert.Equal(t, int64(3), counter.Load())
}

func TestDispatchFailures(t *testing.T) {
	var counter atomic.Int64
	d := newDispatcher(t, &counter, nil)

	tests := []struct {
		name     string
		dispatch func() string
		wantCode string
	}{
		{
			name:     "no handler",
			dispatch: func() string { return cqrs.Dispatch[int](t.Context(), d, unknownQuery{}).Code() },
			wantCode: cqrs.CodeNoHandler,
		},
		{
			name:     "nil request",
			dispatch: func() string { return cqrs.Dispatch[int](t.Context(), d, nil).Code() },
			wantCode: cqrs.CodeNoHandler,
		},
		{
			name:     "handler panic",
			dispatch: func() string { return cqrs.Dispatch[int](t.Context(), d, panicQuery{}).Code() },
			wantCode: cqrs.CodePanicRecovered,
		},
		{
			name:     "output type mismatch",
			dispatch: func() string { return cqrs.Dispatch[int](t.Context(), d, echoQuery{Text: "x"}).Code() },
			wantCode: cqrs.CodeHandlerOutputMismatch,
		},
		{
			name:     "handler error keeps its code",
			dispatch: func() string { return cqrs.Dispatch[cqrs.Empty](t.Context(), d, failCommand{}).Code() },
			wantCode: "PLAYER_NOT_FOUND",
		},
		{
			name:     "validation wrapper rejects input",
			dispatch: func() string { return cqrs.Dispatch[string](t.Context(), d, echoQuery{}).Code() },
			wantCode: val.CodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.dispatch())
		})
	}
}

func TestDuplicateRegistrationFailsBuild(t *testing.T) {
	b := cqrs.NewRegistryBuilder()
	h := cqrs.HandlerFunc[echoQuery, string]{
		ID: "echo",
		Fn: func(_ context.Context, q echoQuery) (string, error) { return q.Text, nil },
	}
	cqrs.Register(b, h)
	cqrs.Register(b, h)

	_, err := b.Build()
	require.Error(t, err)
	assert.Equal(t, cqrs.CodeDuplicateHandler, errx.AsErrorX(err).Code())
}

func TestOperations(t *testing.T) {
	var counter atomic.Int64
	b := cqrs.NewRegistryBuilder()
	cqrs.Register(b, cqrs.HandlerFunc[bumpCommand, cqrs.Empty]{
		ID: "bump",
		Fn: func(_ context.Context, c bumpCommand) (cqrs.Empty, error) {
			counter.Add(int64(c.By))
			return cqrs.Empty{}, nil
		},
	})
	cqrs.Register(b, cqrs.HandlerFunc[echoQuery, string]{
		ID: "echo",
		Fn: func(_ context.Context, q echoQuery) (string, error) { return q.Text, nil },
	})

	registry, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"bump", "echo"}, registry.Operations())
}

func TestConcurrentDispatch(t *testing.T) {
	var counter atomic.Int64
	m := metrics.New()
	d := newDispatcher(t, &counter, m)

	const workers = 32
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				cqrs.Dispatch[cqrs.Empty](context.Background(), d, bumpCommand{By: 1})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers*10), counter.Load())
	assert.InDelta(t, float64(workers*10),
		testutil.ToFloat64(m.DispatchTotal.WithLabelValues("BumpCommand", metrics.OutcomeSuccess)), 0)
}

func TestSendUntyped(t *testing.T) {
	var counter atomic.Int64
	d := newDispatcher(t, &counter, nil)

	res := d.Send(t.Context(), echoQuery{Text: "raw"})
	require.True(t, res.IsOk())
	assert.Equal(t, "raw", res.MustValue())
}
