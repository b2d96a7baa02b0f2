package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInitWithoutEndpointKeepsNoop(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	shutdown, err := Init(context.Background(), Config{ServiceName: "pos-agent"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
}

func TestProviderTagsSpansWithService(t *testing.T) {
	ctx := context.Background()
	rec := tracetest.NewSpanRecorder()
	tp, err := NewProvider(ctx, Config{ServiceName: "pos-agent", Version: "1.2.0"}, sdktrace.WithSpanProcessor(rec))
	require.NoError(t, err)
	defer tp.Shutdown(ctx)

	_, span := tp.Tracer("test").Start(ctx, "syncqueue.Drain")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "syncqueue.Drain", ended[0].Name())
	assert.Contains(t, ended[0].Resource().Attributes(), semconv.ServiceName("pos-agent"))
}
