package tracing_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/rise-and-shine/recoengine/tracing"
)

func TestDisabledTracer(t *testing.T) {
	shutdown, err := tracing.InitGlobalTracer(t.Context(), tracing.Config{Disable: true}, "recoengine", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(t.Context()))
}

func TestTraceID(t *testing.T) {
	generated := tracing.TraceID(t.Context())
	assert.True(t, strings.HasPrefix(generated, "man-"))
	assert.NotEqual(t, generated, tracing.TraceID(t.Context()))

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })
	ctx, span := tp.Tracer("test").Start(t.Context(), "op")
	defer span.End()

	assert.Equal(t, span.SpanContext().TraceID().String(), tracing.TraceID(ctx))
}
