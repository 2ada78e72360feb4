package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// recordSpans routes the package tracer into an in-memory recorder for the
// duration of the test
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	UseTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { UseTracerProvider(noop.NewTracerProvider()) })
	return rec
}

func TestInitTracing_NoEndpoint(t *testing.T) {
	t.Setenv("OTLP_ENDPOINT", "")

	ctx := context.Background()
	shutdown, err := InitTracing(ctx, "test-version")
	if err != nil {
		t.Fatalf("InitTracing failed: %v", err)
	}
	defer shutdown(ctx)

	ctx, span := StartSpan(ctx, "test-span")
	if span == nil {
		t.Fatal("StartSpan returned nil span")
	}
	if span.IsRecording() {
		t.Error("no-op span should not record")
	}

	// helpers are safe on non-recording spans
	SetAttributes(ctx, attribute.String("test", "value"))
	RecordError(ctx, errors.New("boom"))
	SetStatus(ctx, codes.Error, "boom")
	AddEvent(ctx, "event")
	span.End()
}

func TestSpanHelpersRecord(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartSpan(context.Background(), "engine.query",
		trace.WithAttributes(QueryAttributes("batch", 42, 3, 500)...),
	)
	AddEvent(ctx, "level", trace.WithAttributes(LevelAttributes(1, 7)...))
	SetAttributes(ctx, attribute.Int(AttrReachedRoads, 7))
	RecordError(ctx, errors.New("too broad"))
	SetStatus(ctx, codes.Error, "too broad")
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("got %d spans, want 1", len(ended))
	}
	s := ended[0]
	if s.Name() != "engine.query" {
		t.Errorf("span name = %q", s.Name())
	}
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status().Code)
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs[AttrQueryRootID].AsInt64() != 42 {
		t.Errorf("root id attribute = %v", attrs[AttrQueryRootID])
	}
	if attrs[AttrReachedRoads].AsInt64() != 7 {
		t.Errorf("reached attribute = %v", attrs[AttrReachedRoads])
	}

	// one "level" event plus the recorded error
	if len(s.Events()) != 2 || s.Events()[0].Name != "level" {
		t.Errorf("events = %+v", s.Events())
	}
}

func TestAttributeHelpers(t *testing.T) {
	if got := len(QueryAttributes("stream", 1, 2, 3)); got != 4 {
		t.Errorf("QueryAttributes returned %d attributes, expected 4", got)
	}
	if got := len(LevelAttributes(1, 2)); got != 2 {
		t.Errorf("LevelAttributes returned %d attributes, expected 2", got)
	}
	if got := len(MCPToolAttributes("reachable_roads", StatusSuccess, 12, 34)); got != 4 {
		t.Errorf("MCPToolAttributes returned %d attributes, expected 4", got)
	}
	if got := len(CacheAttributes(CacheTypeResult, true, "k")); got != 3 {
		t.Errorf("CacheAttributes returned %d attributes, expected 3", got)
	}
	if got := len(ErrorAttributes(nil)); got != 0 {
		t.Errorf("ErrorAttributes(nil) returned %d attributes, expected 0", got)
	}
	if got := len(ErrorAttributes(errors.New("x"))); got != 2 {
		t.Errorf("ErrorAttributes returned %d attributes, expected 2", got)
	}
}

func TestExporterSettings(t *testing.T) {
	tests := []struct {
		insecure, ratio string
		wantInsecure    bool
		wantRatio       float64
	}{
		{"", "", true, 1},
		{"false", "0.25", false, 0.25},
		{"true", "2", true, 1},
		{"nonsense", "-1", true, 1},
	}
	for _, tt := range tests {
		t.Setenv("OTLP_INSECURE", tt.insecure)
		t.Setenv("OTLP_SAMPLE_RATIO", tt.ratio)
		if got := insecureExporter(); got != tt.wantInsecure {
			t.Errorf("OTLP_INSECURE=%q: insecureExporter() = %v", tt.insecure, got)
		}
		if got := sampleRatio(); got != tt.wantRatio {
			t.Errorf("OTLP_SAMPLE_RATIO=%q: sampleRatio() = %v", tt.ratio, got)
		}
	}
}

func TestEnvironmentDetection(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	if env := getEnvironment(); env != "development" {
		t.Errorf("getEnvironment() = %s, expected 'development'", env)
	}

	t.Setenv("ENVIRONMENT", "production")
	if env := getEnvironment(); env != "production" {
		t.Errorf("getEnvironment() = %s, expected 'production'", env)
	}
}
