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
)

// recordSpans routes Tracer into an in-memory recorder for one test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer(TracerName)
	t.Cleanup(func() {
		Tracer = prev
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	t.Setenv("OTLP_ENDPOINT", "")
	prev := Tracer
	defer func() { Tracer = prev }()

	ctx := context.Background()
	shutdown, err := InitTracing(ctx, "test")
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown: %v", err)
	}

	_, span := StartSpan(ctx, "trip.plan")
	defer span.End()
	if span.IsRecording() {
		t.Error("span should not record without an exporter")
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("OTLP_ENDPOINT", "collector:4317")
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("OTLP_INSECURE", "false")

	opts := OptionsFromEnv()
	if opts.Endpoint != "collector:4317" || opts.Environment != "staging" {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.Insecure {
		t.Error("OTLP_INSECURE=false should disable insecure transport")
	}
	if opts.SampleRatio != 1 {
		t.Errorf("sample ratio = %v, expected 1", opts.SampleRatio)
	}

	t.Setenv("ENVIRONMENT", "")
	if env := getEnvironment(); env != "development" {
		t.Errorf("default environment = %s", env)
	}
}

func TestTripSpanCarriesDecision(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartSpan(context.Background(), "trip.plan")
	SetAttributes(ctx, DecisionAttributes("cycling-regular", 0, 3)...)
	SetAttributes(ctx, attribute.String(AttrTripOutcome, "success"))
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d", len(ended))
	}
	got := attrMap(ended[0].Attributes())
	if got[AttrTripBestMode].AsString() != "cycling-regular" {
		t.Errorf("best mode = %v", got[AttrTripBestMode])
	}
	if got[AttrTripCandidates].AsInt64() != 3 {
		t.Errorf("candidates = %v", got[AttrTripCandidates])
	}
	if got[AttrTripEmissionKg].AsFloat64() != 0 {
		t.Errorf("emission = %v", got[AttrTripEmissionKg])
	}
	if got[AttrTripOutcome].AsString() != "success" {
		t.Errorf("outcome = %v", got[AttrTripOutcome])
	}
}

func TestLookupSpanRecordsFailure(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartSpan(context.Background(), "trip.lookup",
		trace.WithAttributes(attribute.String(AttrTripMode, "driving-car")))
	lookupErr := errors.New("openrouteservice service error: busy")
	RecordError(ctx, lookupErr)
	SetAttributes(ctx, ErrorAttributes(lookupErr)...)
	SetStatus(ctx, codes.Error, "unavailable")
	span.End()

	s := rec.Ended()[0]
	if s.Status().Code != codes.Error || s.Status().Description != "unavailable" {
		t.Errorf("status = %+v", s.Status())
	}
	if len(s.Events()) != 1 || s.Events()[0].Name != "exception" {
		t.Errorf("expected a single exception event, got %+v", s.Events())
	}
	got := attrMap(s.Attributes())
	if got[AttrTripMode].AsString() != "driving-car" {
		t.Errorf("mode = %v", got[AttrTripMode])
	}
	if got[AttrErrorMessage].AsString() != lookupErr.Error() {
		t.Errorf("error message = %v", got[AttrErrorMessage])
	}
}

func TestLookupSpanRecordsObservation(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartSpan(context.Background(), "trip.lookup")
	SetAttributes(ctx, ModeAttributes("publicTransport", 10.358, true)...)
	AddEvent(ctx, "cache_lookup")
	SetAttributes(ctx, CacheAttributes(CacheTypeDistance, true, "ors|driving-car|13.4,52.5;13.06,52.39")...)
	span.End()

	s := rec.Ended()[0]
	got := attrMap(s.Attributes())
	if got[AttrTripDistanceKm].AsFloat64() != 10.358 || !got[AttrTripApproximated].AsBool() {
		t.Errorf("mode attributes = %v", s.Attributes())
	}
	if got[AttrCacheType].AsString() != CacheTypeDistance || !got[AttrCacheHit].AsBool() {
		t.Errorf("cache attributes = %v", s.Attributes())
	}
	if len(s.Events()) != 1 || s.Events()[0].Name != "cache_lookup" {
		t.Errorf("events = %+v", s.Events())
	}
}

func TestServiceAttributes(t *testing.T) {
	got := attrMap(ServiceAttributes(ServiceORS, "directions", "https://api.openrouteservice.org/v2/directions/driving-car", 503))
	if got[AttrServiceName].AsString() != ServiceORS || got[AttrServiceOperation].AsString() != "directions" {
		t.Errorf("unexpected attributes %v", got)
	}
	if got[AttrServiceStatus].AsInt64() != 503 {
		t.Errorf("status = %v", got[AttrServiceStatus])
	}

	tool := attrMap(MCPToolAttributes("plan_low_carbon_trip", StatusSuccess, 12, 640))
	if tool[AttrMCPToolName].AsString() != "plan_low_carbon_trip" || tool[AttrMCPResultSize].AsInt64() != 640 {
		t.Errorf("tool attributes = %v", tool)
	}
}

func TestHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()
	RecordError(ctx, errors.New("ignored"))
	SetStatus(ctx, codes.Error, "ignored")
	AddEvent(ctx, "ignored")
	SetAttributes(ctx, attribute.String(AttrTripMode, "foot-walking"))

	if ErrorAttributes(nil) != nil {
		t.Error("nil error should produce no attributes")
	}
}

func TestSampler(t *testing.T) {
	for _, ratio := range []float64{0, 1, 2} {
		if got := sampler(ratio).Description(); got != "AlwaysOnSampler" {
			t.Errorf("sampler(%v) = %s", ratio, got)
		}
	}
	if got := sampler(0.25).Description(); got == "AlwaysOnSampler" {
		t.Error("fractional ratio should not sample everything")
	}
}
