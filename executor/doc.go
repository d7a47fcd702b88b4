// Package executor owns filter runs: it starts a root filter on a report set,
// enforces one global timeout per run and guarantees the caller's completion
// fires exactly once.
//
//	exec, err := executor.New(executor.DefaultConfig(), executor.WithLogger(log))
//	run, err := exec.Submit(ctx, root, reports, func(r filter.Result) {
//	    // exactly once: root's result, or TIMEOUT at the deadline
//	})
//
// Cancellation is advisory. Run.Cancel cancels the context seen by every
// filter in the run; composites stop before their next stage and complete
// with CANCELLED. A filter that ignores cancellation is detached when the
// deadline expires and its eventual completion is dropped.
package executor
