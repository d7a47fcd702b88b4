package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/reportflow/logger"
)

// MeterConfig configures periodic OTLP/HTTP export of run and filter
// metrics. It shares the resource fields of TracerConfig.
type MeterConfig struct {
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Environment    string        `mapstructure:"environment"`
	Endpoint       string        `mapstructure:"endpoint"`
	Insecure       bool          `mapstructure:"insecure"`
	Interval       time.Duration `mapstructure:"interval"`
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter installs a periodic OTLP meter provider as the global one.
// Shutting it down flushes the last interval.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Instrument names.
const (
	MetricRunTotal       = "reportflow.run.total"
	MetricRunDuration    = "reportflow.run.duration"
	MetricRunActive      = "reportflow.run.active"
	MetricFilterTotal    = "reportflow.filter.total"
	MetricFilterDuration = "reportflow.filter.duration"
	MetricViolationTotal = "reportflow.violation.total"
	MetricRetryTotal     = "reportflow.filter.retries"
)

// Metrics holds the instruments recorded by the executor and the filter
// decorators. A nil *Metrics records nothing.
type Metrics struct {
	runTotal       metric.Int64Counter
	runDuration    metric.Float64Histogram
	runActive      metric.Int64UpDownCounter
	filterTotal    metric.Int64Counter
	filterDuration metric.Float64Histogram
	violationTotal metric.Int64Counter
	retryTotal     metric.Int64Counter
}

// instruments collects instrument creation errors so NewMetrics can
// report them together.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (b *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	b.note(name, err)
	return c
}

func (b *instruments) seconds(name, desc string) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	b.note(name, err)
	return h
}

func (b *instruments) gauge(name, desc string) metric.Int64UpDownCounter {
	g, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	b.note(name, err)
	return g
}

func (b *instruments) note(name string, err error) {
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("creating %s: %w", name, err))
	}
}

// NewMetrics creates the run and filter instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	b := &instruments{meter: meter}
	m := &Metrics{
		runTotal:       b.counter(MetricRunTotal, "Runs by root and status"),
		runDuration:    b.seconds(MetricRunDuration, "Run duration from submit to completion"),
		runActive:      b.gauge(MetricRunActive, "Runs in flight"),
		filterTotal:    b.counter(MetricFilterTotal, "Filter invocations by status"),
		filterDuration: b.seconds(MetricFilterDuration, "Time from filter invocation to completion"),
		violationTotal: b.counter(MetricViolationTotal, "Contract violations by kind and stage"),
		retryTotal:     b.counter(MetricRetryTotal, "Filter retries scheduled"),
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRunStart increments the in-flight run count.
func (m *Metrics) RecordRunStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.runActive.Add(ctx, 1)
}

// RecordRunEnd decrements in-flight runs and records the finished run.
func (m *Metrics) RecordRunEnd(ctx context.Context, root, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runActive.Add(ctx, -1)
	m.runTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("root", root),
		attribute.String("status", status),
	))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("root", root),
	))
}

// RecordFilter records one filter invocation.
func (m *Metrics) RecordFilter(ctx context.Context, filter, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.filterTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("filter", filter),
		attribute.String("status", status),
	))
	m.filterDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("filter", filter),
	))
}

// RecordViolation records a contract violation by kind and stage.
func (m *Metrics) RecordViolation(ctx context.Context, kind, stage string) {
	if m == nil {
		return
	}
	m.violationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("stage", stage),
	))
}

// RecordRetry records a scheduled filter retry.
func (m *Metrics) RecordRetry(ctx context.Context, filter string) {
	if m == nil {
		return
	}
	m.retryTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("filter", filter),
	))
}
