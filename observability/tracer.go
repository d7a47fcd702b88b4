package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/reportflow/logger"
)

const defaultTracerName = "github.com/kbukum/reportflow"

// TracerConfig configures OTLP/HTTP trace export of run and filter spans.
type TracerConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
	// Endpoint is the collector host:port, without scheme.
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
	// SampleRate is the fraction of runs traced, 0 to 1.
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// DefaultTracerConfig returns sensible defaults for development.
func DefaultTracerConfig(serviceName string) TracerConfig {
	return TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// InitTracer installs a batching OTLP tracer provider as the global one.
// The caller shuts it down to flush pending spans.
func InitTracer(ctx context.Context, config *TracerConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(config.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracer initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"sample_rate", config.SampleRate,
	))

	return tp, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// newResource creates an OpenTelemetry resource with service metadata.
// The service attributes are schemaless so merging never conflicts with the
// SDK's default schema version.
func newResource(serviceName, serviceVersion, environment string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String(AttrServiceName, serviceName),
			attribute.String("service.version", serviceVersion),
			attribute.String("environment", environment),
		),
	)
}

func tracer() trace.Tracer {
	return otel.Tracer(defaultTracerName)
}

// FilterSpan is the span of one filter invocation. It stays open until the
// filter completes, which may be long after FilterReports returned.
type FilterSpan struct {
	span trace.Span
}

// StartFilterSpan opens the span name for filter running on reports. An
// empty name falls back to SpanFilter.
func StartFilterSpan(ctx context.Context, name, filter string, reports int) (context.Context, *FilterSpan) {
	if name == "" {
		name = SpanFilter
	}
	ctx, span := tracer().Start(ctx, name, trace.WithAttributes(
		attribute.String(AttrFilter, filter),
		attribute.Int(AttrReports, reports),
	))
	return ctx, &FilterSpan{span: span}
}

// End records the outcome and closes the span. code is the error code of
// err, if any.
func (fs *FilterSpan) End(status, code string, err error) {
	fs.span.SetAttributes(attribute.String(AttrStatus, status))
	if err != nil {
		fs.span.RecordError(err)
		fs.span.SetStatus(codes.Error, err.Error())
		if code != "" {
			fs.span.SetAttributes(attribute.String(AttrErrorCode, code))
		}
	}
	fs.span.End()
}

// Span names.
const (
	SpanRun    = "reportflow.run"
	SpanFilter = "reportflow.filter"
)

// Attribute keys.
const (
	AttrServiceName  = "service.name"
	AttrRunID        = "run.id"
	AttrRoot         = "run.root"
	AttrFilter       = "filter.name"
	AttrReports      = "reports.count"
	AttrDurationMs   = "duration_ms"
	AttrStatus       = "status"
	AttrErrorCode    = "error.code"
	AttrErrorMessage = "error.message"
)
