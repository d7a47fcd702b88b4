package filter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/filtertest"
	"github.com/kbukum/reportflow/logger"
	"github.com/kbukum/reportflow/observability"
)

func TestWithTracing_SpanEndsOnCompletion(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	f := filter.WithTracing(filtertest.Delayed("gzip", 10*time.Millisecond), "reportflow")

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), f, filtertest.Reports(t, "r1"), capture.Done)
	if n := len(rec.Ended()); n != 0 {
		t.Fatalf("expected span to stay open until completion, %d ended", n)
	}
	capture.Wait(t, waitFor)

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(ended))
	}
	if ended[0].Name() != "reportflow.gzip" {
		t.Errorf("unexpected span name %q", ended[0].Name())
	}
}

func TestWithMetrics_RecordsStatus(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observability.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	ok := filter.WithMetrics(filtertest.Succeed("ok"), metrics)
	bad := filter.WithMetrics(filtertest.Failing("bad", errors.New("x")), metrics)
	for _, f := range []filter.Filter{ok, bad, ok} {
		capture := filtertest.NewCapture()
		filter.Invoke(context.Background(), f, filtertest.Reports(t, "r1"), capture.Done)
		capture.Wait(t, waitFor)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != observability.MetricFilterTotal {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 3 {
		t.Errorf("expected 3 filter invocations, got %d", total)
	}
}

func TestWithLogging_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "test", &buf)

	f := filter.WithLogging(filtertest.Failing("redact", errors.New("bad pattern")), log)
	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), f, filtertest.Reports(t, "r1", "r2"), capture.Done)
	capture.Wait(t, waitFor)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["level"] != "warn" || entry[logger.FieldFilter] != "redact" {
		t.Errorf("unexpected log entry: %v", entry)
	}
	if entry[logger.FieldReports] != float64(2) {
		t.Errorf("expected reports=2, got %v", entry[logger.FieldReports])
	}
	if !strings.Contains(entry[logger.FieldError].(string), "bad pattern") {
		t.Errorf("expected error field, got %v", entry[logger.FieldError])
	}
}

func TestDecorators_PreserveResult(t *testing.T) {
	in := filtertest.Reports(t, "r1")
	f := filter.WithLogging(filter.WithMetrics(filter.WithTracing(filtertest.Succeed("x"), "p"), nil), logger.NewNop())

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), f, in, capture.Done)

	if res := capture.Wait(t, waitFor); !res.OK() || !res.Reports.Equal(in) {
		t.Errorf("expected unchanged result, got %+v", res)
	}
	if f.Name() != "x" {
		t.Errorf("expected decorated name x, got %s", f.Name())
	}
}
