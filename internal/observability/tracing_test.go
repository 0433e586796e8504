package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() { Tracer = prev })
	return rec
}

func TestStartServiceSpan(t *testing.T) {
	rec := withRecorder(t)

	span, ctx := StartServiceSpan(context.Background(), "PostService", "Approve", attribute.Int64("post.id", 7))
	require.NotNil(t, ctx)
	span.RecordTransition("PENDING", "APPROVED", true)
	span.SetError(errors.New("boom"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	s := ended[0]
	assert.Equal(t, "PostService.Approve", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, int64(7), attrs["post.id"].AsInt64())
	assert.Equal(t, "APPROVED", attrs["post.status.to"].AsString())
	assert.True(t, attrs["transition.applied"].AsBool())
}

func TestStartRepositorySpan(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartRepositorySpan(context.Background(), "posts", "transition")
	span.End()

	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "repository.posts.transition", rec.Ended()[0].Name())
}

func TestInitTracing(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "gatekeeper-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = InitTracing(TracingConfig{Enabled: true, Exporter: "zipkin"})
	assert.Error(t, err)

	_, err = InitTracing(TracingConfig{Enabled: true, Exporter: "otlp"})
	assert.Error(t, err)
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1.5).Description())
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}
