// Package observability provides OpenTelemetry tracing and metrics for
// report filter runs.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, &cfg)
//	defer tp.Shutdown(ctx)
//
// Metrics:
//
//	metrics, err := observability.NewMetrics(otel.Meter("reportflow"))
//	metrics.RecordFilter(ctx, "gzip", "ok", duration)
//
// Every run submitted to an executor is wrapped in a RunScope:
//
//	ctx, scope := observability.StartRun(ctx, runID, "nightly", 12, metrics)
//	defer scope.End(ctx, "ok", "", nil)
package observability
