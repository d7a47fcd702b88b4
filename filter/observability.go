package filter

import (
	"context"
	"time"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/logger"
	"github.com/kbukum/reportflow/observability"
	"github.com/kbukum/reportflow/report"
)

// WithTracing wraps a Filter with OpenTelemetry span creation.
// Each invocation creates a span named "{prefix}.{filterName}" that ends
// when the filter completes, not when FilterReports returns.
func WithTracing(f Filter, prefix string) Filter {
	return &tracingFilter{inner: f, prefix: prefix}
}

type tracingFilter struct {
	inner  Filter
	prefix string
}

func (t *tracingFilter) Name() string { return t.inner.Name() }

func (t *tracingFilter) FilterReports(ctx context.Context, reports report.Set, done *Token) {
	ctx, span := observability.StartFilterSpan(ctx, t.prefix+"."+t.inner.Name(), t.inner.Name(), reports.Len())
	Invoke(ctx, t.inner, reports, func(r Result) {
		span.End(statusOf(r), string(apperrors.CodeOf(r.Err)), r.Err)
		done.Complete(r)
	})
}

// WithMetrics wraps a Filter with metric recording: invocation count by
// status and time to completion.
func WithMetrics(f Filter, metrics *observability.Metrics) Filter {
	return &metricsFilter{inner: f, metrics: metrics}
}

type metricsFilter struct {
	inner   Filter
	metrics *observability.Metrics
}

func (m *metricsFilter) Name() string { return m.inner.Name() }

func (m *metricsFilter) FilterReports(ctx context.Context, reports report.Set, done *Token) {
	start := time.Now()
	Invoke(ctx, m.inner, reports, func(r Result) {
		m.metrics.RecordFilter(ctx, m.inner.Name(), statusOf(r), time.Since(start))
		done.Complete(r)
	})
}

// WithLogging wraps a Filter with completion logging.
// Logs: filter name, report counts, duration, and status.
func WithLogging(f Filter, log *logger.Logger) Filter {
	return &loggingFilter{inner: f, log: log}
}

type loggingFilter struct {
	inner Filter
	log   *logger.Logger
}

func (l *loggingFilter) Name() string { return l.inner.Name() }

func (l *loggingFilter) FilterReports(ctx context.Context, reports report.Set, done *Token) {
	start := time.Now()
	Invoke(ctx, l.inner, reports, func(r Result) {
		fields := logger.MergeWithDuration(logger.Fields(
			logger.FieldFilter, l.inner.Name(),
			logger.FieldReports, reports.Len(),
			"output", r.Reports.Len(),
			logger.FieldStatus, statusOf(r),
		), time.Since(start))

		switch {
		case r.Err != nil:
			l.log.Warn("filter failed", logger.WithError(fields, r.Err))
		case !r.Completed:
			l.log.Warn("filter incomplete", fields)
		default:
			l.log.Debug("filter completed", fields)
		}
		done.Complete(r)
	})
}

// Status values recorded for a completed filter.
const (
	StatusOK         = "ok"
	StatusPartial    = "partial"
	StatusIncomplete = "incomplete"
	StatusError      = "error"
)

func statusOf(r Result) string {
	switch {
	case r.OK():
		return StatusOK
	case r.Err == nil:
		return StatusIncomplete
	case !r.Reports.IsEmpty():
		return StatusPartial
	default:
		return StatusError
	}
}
