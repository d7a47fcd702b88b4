package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RunScope holds the span and metrics of one executor run.
type RunScope struct {
	RunID     string
	Root      string
	StartTime time.Time
	Metrics   *Metrics

	span trace.Span
}

type runScopeKey struct{}

// StartRun opens a span for a run and counts it as in flight.
// If metrics is nil, metric recording is skipped.
func StartRun(ctx context.Context, runID, root string, reports int, metrics *Metrics) (context.Context, *RunScope) {
	ctx, span := tracer().Start(ctx, SpanRun, trace.WithAttributes(
		attribute.String(AttrRunID, runID),
		attribute.String(AttrRoot, root),
		attribute.Int(AttrReports, reports),
	))
	rs := &RunScope{
		RunID:     runID,
		Root:      root,
		StartTime: time.Now(),
		Metrics:   metrics,
		span:      span,
	}
	metrics.RecordRunStart(ctx)
	return context.WithValue(ctx, runScopeKey{}, rs), rs
}

// RunScopeFromContext retrieves the RunScope from context, or nil.
func RunScopeFromContext(ctx context.Context) *RunScope {
	if rs, ok := ctx.Value(runScopeKey{}).(*RunScope); ok {
		return rs
	}
	return nil
}

// End closes the run span and records the run metrics. code is the error
// code of err, if any. End must be called once.
func (rs *RunScope) End(ctx context.Context, status, code string, err error) {
	duration := rs.Duration()

	if err != nil {
		rs.span.RecordError(err)
		rs.span.SetStatus(codes.Error, err.Error())
		if code != "" {
			rs.span.SetAttributes(attribute.String(AttrErrorCode, code))
		}
	}
	rs.span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	rs.span.End()

	rs.Metrics.RecordRunEnd(ctx, rs.Root, status, duration)
}

// Duration returns the elapsed time since the run started.
func (rs *RunScope) Duration() time.Duration {
	return time.Since(rs.StartTime)
}
