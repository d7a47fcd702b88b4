package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/logger"
	"github.com/kbukum/reportflow/observability"
)

// Run is one submitted execution of a root filter.
type Run struct {
	id      string
	root    string
	exec    *Executor
	cancel  context.CancelFunc
	done    func(filter.Result)
	pending *pendingTokens
	scope   *observability.RunScope
	timer   *time.Timer
	log     *logger.Logger

	ended    atomic.Bool
	mu       sync.Mutex
	result   filter.Result
	finished chan struct{}
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Root returns the name of the root filter.
func (r *Run) Root() string { return r.root }

// Cancel asks every filter in the run to stop. The run still ends with a
// single result: the root's, or TIMEOUT at the deadline.
func (r *Run) Cancel() { r.cancel() }

// Done is closed once the run delivered its terminal result.
func (r *Run) Done() <-chan struct{} { return r.finished }

// Result returns the terminal result and whether the run has ended.
func (r *Run) Result() (filter.Result, bool) {
	select {
	case <-r.finished:
	default:
		return filter.Result{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, true
}

// complete receives the root's result.
func (r *Run) complete(res filter.Result) {
	if r.finish(res, true) {
		return
	}
	r.exec.stats.late.Add(1)
	fields := logger.Fields(
		logger.FieldFilter, r.root,
		logger.FieldStatus, StatusOf(res),
	)
	if res.Err != nil {
		fields[logger.FieldError] = res.Err.Error()
	}
	r.log.Warn("late completion dropped", fields)
}

// expire ends the run with TIMEOUT and reports every token still pending.
func (r *Run) expire() {
	if r.ended.Load() {
		return
	}
	observer := r.exec.runObserver(r.log)
	for _, stage := range r.pending.stages() {
		observer.Violation(filter.Violation{
			Kind:  filter.ViolationMissingCompletion,
			Stage: stage,
			Err:   apperrors.ContractViolation(stage, "no completion before run timeout"),
		})
	}
	r.finish(filter.Failed(apperrors.Timeout(r.id, r.exec.cfg.Timeout)), false)
}

// finish delivers res if the run has not ended yet. It reports whether res
// was delivered.
func (r *Run) finish(res filter.Result, stopTimer bool) bool {
	if !r.ended.CompareAndSwap(false, true) {
		return false
	}
	if stopTimer {
		r.timer.Stop()
	}
	r.cancel()

	status := StatusOf(res)
	r.exec.stats.inc(status)
	r.scope.End(context.Background(), status, string(apperrors.CodeOf(res.Err)), res.Err)

	fields := logger.MergeWithDuration(logger.Fields(
		logger.FieldFilter, r.root,
		logger.FieldReports, res.Reports.Len(),
		logger.FieldStatus, status,
	), r.scope.Duration())
	if res.Err != nil {
		r.log.Warn("run ended", logger.WithError(fields, res.Err))
	} else {
		r.log.Info("run ended", fields)
	}

	r.mu.Lock()
	r.result = res
	r.mu.Unlock()
	close(r.finished)
	r.exec.release(r)

	if r.done != nil {
		r.done(res)
	}
	return true
}
