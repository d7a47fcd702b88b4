package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("reportflow")

	if cfg.ServiceName != "reportflow" {
		t.Errorf("expected ServiceName 'reportflow', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("reportflow")
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestMetrics_RunLifecycle(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRunStart(ctx)
	m.RecordRunStart(ctx)
	m.RecordRunEnd(ctx, "nightly", "ok", 20*time.Millisecond)

	got := collect(t, reader)
	if v := sumOf(t, got[MetricRunActive]); v != 1 {
		t.Errorf("active runs: expected 1, got %d", v)
	}
	if v := sumOf(t, got[MetricRunTotal]); v != 1 {
		t.Errorf("run total: expected 1, got %d", v)
	}
	if _, ok := got[MetricRunDuration].Data.(metricdata.Histogram[float64]); !ok {
		t.Errorf("run duration: expected histogram, got %T", got[MetricRunDuration].Data)
	}
}

func TestMetrics_ViolationAttributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordViolation(context.Background(), "duplicate_completion", "gzip")
	m.RecordViolation(context.Background(), "duplicate_completion", "gzip")

	sum := collect(t, reader)[MetricViolationTotal].Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(sum.DataPoints))
	}
	dp := sum.DataPoints[0]
	if dp.Value != 2 {
		t.Errorf("expected 2 violations, got %d", dp.Value)
	}
	if v, _ := dp.Attributes.Value(attribute.Key("stage")); v.AsString() != "gzip" {
		t.Errorf("expected stage gzip, got %q", v.AsString())
	}
}

func TestMetrics_FilterAndRetry(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordFilter(ctx, "redact", "ok", time.Millisecond)
	m.RecordFilter(ctx, "redact", "error", time.Millisecond)
	m.RecordRetry(ctx, "redis-sink")

	got := collect(t, reader)
	if v := sumOf(t, got[MetricFilterTotal]); v != 2 {
		t.Errorf("filter total: expected 2, got %d", v)
	}
	if v := sumOf(t, got[MetricRetryTotal]); v != 1 {
		t.Errorf("retries: expected 1, got %d", v)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordRunStart(ctx)
	m.RecordRunEnd(ctx, "root", "ok", time.Second)
	m.RecordFilter(ctx, "f", "ok", time.Second)
	m.RecordViolation(ctx, "panic", "f")
	m.RecordRetry(ctx, "f")
}

func TestNewMetrics_Noop(t *testing.T) {
	if _, err := NewMetrics(noop.NewMeterProvider().Meter("test")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStartRun_RecordsSpan(t *testing.T) {
	rec := withSpanRecorder(t)
	m, reader := newTestMetrics(t)

	ctx, scope := StartRun(context.Background(), "run-1", "nightly", 3, m)
	if RunScopeFromContext(ctx) != scope {
		t.Fatal("expected scope in context")
	}
	scope.End(ctx, "error", "TIMEOUT", errors.New("deadline"))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != SpanRun {
		t.Errorf("expected span %q, got %q", SpanRun, span.Name())
	}
	if span.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", span.Status().Code)
	}

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs[AttrRunID].AsString() != "run-1" {
		t.Errorf("expected run id attribute, got %v", attrs[AttrRunID])
	}
	if attrs[AttrErrorCode].AsString() != "TIMEOUT" {
		t.Errorf("expected error code attribute, got %v", attrs[AttrErrorCode])
	}
	if attrs[AttrReports].AsInt64() != 3 {
		t.Errorf("expected reports attribute 3, got %v", attrs[AttrReports])
	}

	got := collect(t, reader)
	if v := sumOf(t, got[MetricRunActive]); v != 0 {
		t.Errorf("expected no active runs, got %d", v)
	}
}

func TestRunScopeFromContext_NotSet(t *testing.T) {
	if RunScopeFromContext(context.Background()) != nil {
		t.Error("expected nil scope")
	}
}

func TestFilterSpan(t *testing.T) {
	rec := withSpanRecorder(t)

	_, span := StartFilterSpan(context.Background(), "reportflow.gzip", "gzip", 2)
	span.End("failed", "ENCODING_FAILED", errors.New("boom"))

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	s := ended[0]
	if s.Name() != "reportflow.gzip" {
		t.Errorf("name = %q", s.Name())
	}
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v", s.Status())
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs[AttrFilter].AsString() != "gzip" || attrs[AttrReports].AsInt64() != 2 {
		t.Errorf("attributes = %v", attrs)
	}
	if attrs[AttrErrorCode].AsString() != "ENCODING_FAILED" || attrs[AttrStatus].AsString() != "failed" {
		t.Errorf("attributes = %v", attrs)
	}
	if len(s.Events()) != 1 {
		t.Errorf("expected 1 error event, got %d", len(s.Events()))
	}
}

func TestFilterSpan_Success(t *testing.T) {
	rec := withSpanRecorder(t)

	_, span := StartFilterSpan(context.Background(), "reportflow.pass", "pass", 0)
	span.End("ok", "", nil)

	s := rec.Ended()[0]
	if s.Status().Code == codes.Error || len(s.Events()) != 0 {
		t.Errorf("unexpected error state: %v %v", s.Status(), s.Events())
	}
}

func TestWorst(t *testing.T) {
	tests := []struct {
		a, b, want HealthStatus
	}{
		{HealthStatusUp, HealthStatusUp, HealthStatusUp},
		{HealthStatusUp, HealthStatusDegraded, HealthStatusDegraded},
		{HealthStatusDegraded, HealthStatusDown, HealthStatusDown},
		{HealthStatusDown, HealthStatusUp, HealthStatusDown},
	}
	for _, tc := range tests {
		if got := Worst(tc.a, tc.b); got != tc.want {
			t.Errorf("Worst(%s, %s) = %s, want %s", tc.a, tc.b, got, tc.want)
		}
	}
}

type staticChecker Health

func (c staticChecker) CheckHealth(context.Context) Health { return Health(c) }

func TestAggregate(t *testing.T) {
	h := Aggregate(context.Background(), "uploader",
		staticChecker{Name: "executor", Status: HealthStatusUp},
		staticChecker{Name: "redis", Status: HealthStatusDegraded, Message: "slow"},
	)
	if h.Name != "uploader" || h.Status != HealthStatusDegraded {
		t.Errorf("health = %+v", h)
	}
	if h.Details["executor"] != "up" || h.Details["redis"] != "degraded" {
		t.Errorf("details = %v", h.Details)
	}
	if h.Message != "redis: slow" {
		t.Errorf("message = %q", h.Message)
	}

	if empty := Aggregate(context.Background(), "idle"); empty.Status != HealthStatusUp {
		t.Errorf("no checkers should be up, got %s", empty.Status)
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource("reportflow", "1.2.3", "test")
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	v, ok := res.Set().Value(AttrServiceName)
	if !ok || v.AsString() != "reportflow" {
		t.Errorf("expected service.name reportflow, got %v", v)
	}
}

func TestSampler(t *testing.T) {
	if sampler(1).Description() != sdktrace.AlwaysSample().Description() {
		t.Error("expected always sample at 1.0")
	}
	if sampler(0).Description() != sdktrace.NeverSample().Description() {
		t.Error("expected never sample at 0")
	}
	if sampler(0.5).Description() != sdktrace.TraceIDRatioBased(0.5).Description() {
		t.Error("expected ratio sampler at 0.5")
	}
}
