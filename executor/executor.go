package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/logger"
	"github.com/kbukum/reportflow/observability"
	"github.com/kbukum/reportflow/report"
)

// Submission errors.
var (
	ErrClosed = errors.New("executor is shut down")
	ErrBusy   = errors.New("executor is at its in-flight limit")
)

// Run outcome labels used in logs, metrics and Stats.
const (
	StatusOK         = "ok"
	StatusPartial    = "partial"
	StatusIncomplete = "incomplete"
	StatusFailed     = "failed"
	StatusTimeout    = "timeout"
	StatusCancelled  = "cancelled"
)

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithObserver adds an observer for contract violations. Violations are
// always logged; this observer receives them as well.
func WithObserver(o filter.Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// WithMetrics records run and violation metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// Executor starts filter runs and guarantees each one a single terminal result.
type Executor struct {
	cfg      Config
	log      *logger.Logger
	observer filter.Observer
	metrics  *observability.Metrics
	slots    chan struct{}

	mu     sync.Mutex
	runs   map[string]*Run
	closed bool
	wg     sync.WaitGroup

	stats counters
}

type counters struct {
	submitted atomic.Int64
	rejected  atomic.Int64
	late      atomic.Int64
	byStatus  sync.Map // status -> *atomic.Int64
}

func (c *counters) inc(status string) {
	v, _ := c.byStatus.LoadOrStore(status, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

func (c *counters) get(status string) int64 {
	if v, ok := c.byStatus.Load(status); ok {
		return v.(*atomic.Int64).Load()
	}
	return 0
}

// New creates an Executor. The config must carry a positive timeout.
func New(cfg Config, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("executor config: %w", err)
	}
	e := &Executor{
		cfg:  cfg,
		runs: make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.GetGlobalLogger()
	}
	e.log = e.log.WithComponent("executor")
	if cfg.MaxInFlight > 0 {
		e.slots = make(chan struct{}, cfg.MaxInFlight)
	}
	return e, nil
}

// Submit starts root on reports and returns immediately. done is invoked
// exactly once with the root's result, or with a TIMEOUT failure if the root
// has not completed when the run's timeout expires.
func (e *Executor) Submit(ctx context.Context, root filter.Filter, reports report.Set, done func(filter.Result)) (*Run, error) {
	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		id:       id,
		root:     root.Name(),
		exec:     e,
		cancel:   cancel,
		done:     done,
		pending:  newPendingTokens(),
		finished: make(chan struct{}),
		log:      e.log.WithRunID(id),
	}
	if err := e.admit(r); err != nil {
		cancel()
		e.stats.rejected.Add(1)
		return nil, err
	}
	e.stats.submitted.Add(1)

	runCtx, r.scope = observability.StartRun(runCtx, id, r.root, reports.Len(), e.metrics)
	runCtx = filter.WithTracker(runCtx, r.pending)
	runCtx = filter.WithObserver(runCtx, e.runObserver(r.log))

	r.log.Debug("run started", logger.Fields(
		logger.FieldFilter, r.root,
		logger.FieldReports, reports.Len(),
	))

	r.timer = time.AfterFunc(e.cfg.Timeout, r.expire)
	go filter.Invoke(runCtx, root, reports, r.complete)
	return r, nil
}

// Execute runs root and blocks until its terminal result. Cancelling ctx
// cancels the run; Execute still returns only once the run has ended.
func (e *Executor) Execute(ctx context.Context, root filter.Filter, reports report.Set) filter.Result {
	r, err := e.Submit(ctx, root, reports, nil)
	if err != nil {
		return filter.Failed(err)
	}
	select {
	case <-r.Done():
	case <-ctx.Done():
		r.Cancel()
		<-r.Done()
	}
	res, _ := r.Result()
	return res
}

// Shutdown refuses new runs, cancels every in-flight run and waits until
// they ended or ctx expires.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	inFlight := make([]*Run, 0, len(e.runs))
	for _, r := range e.runs {
		inFlight = append(inFlight, r)
	}
	e.mu.Unlock()

	e.log.Info("shutting down", logger.Fields("in_flight", len(inFlight)))
	for _, r := range inFlight {
		r.Cancel()
	}

	drained := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is a snapshot of executor activity.
type Stats struct {
	InFlight        int
	Submitted       int64
	Rejected        int64
	Succeeded       int64
	Partial         int64
	Incomplete      int64
	Failed          int64
	TimedOut        int64
	Cancelled       int64
	LateCompletions int64
}

// Stats returns current counters.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	inFlight := len(e.runs)
	e.mu.Unlock()

	return Stats{
		InFlight:        inFlight,
		Submitted:       e.stats.submitted.Load(),
		Rejected:        e.stats.rejected.Load(),
		Succeeded:       e.stats.get(StatusOK),
		Partial:         e.stats.get(StatusPartial),
		Incomplete:      e.stats.get(StatusIncomplete),
		Failed:          e.stats.get(StatusFailed),
		TimedOut:        e.stats.get(StatusTimeout),
		Cancelled:       e.stats.get(StatusCancelled),
		LateCompletions: e.stats.late.Load(),
	}
}

// Health reports down after Shutdown and degraded while the in-flight
// limit is reached.
func (e *Executor) Health(_ context.Context) observability.Health {
	e.mu.Lock()
	closed, inFlight := e.closed, len(e.runs)
	e.mu.Unlock()

	h := observability.Health{
		Name:   e.cfg.Name,
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"in_flight": strconv.Itoa(inFlight),
			"timeout":   e.cfg.Timeout.String(),
		},
	}
	switch {
	case closed:
		h.Status = observability.HealthStatusDown
		h.Message = "shut down"
	case e.cfg.MaxInFlight > 0 && inFlight >= e.cfg.MaxInFlight:
		h.Status = observability.HealthStatusDegraded
		h.Message = "in-flight limit reached"
	}
	return h
}

// CheckHealth implements observability.HealthChecker.
func (e *Executor) CheckHealth(ctx context.Context) observability.Health {
	return e.Health(ctx)
}

func (e *Executor) admit(r *Run) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.slots != nil {
		select {
		case e.slots <- struct{}{}:
		default:
			return ErrBusy
		}
	}
	e.runs[r.id] = r
	e.wg.Add(1)
	return nil
}

func (e *Executor) release(r *Run) {
	e.mu.Lock()
	delete(e.runs, r.id)
	e.mu.Unlock()
	if e.slots != nil {
		<-e.slots
	}
	e.wg.Done()
}

func (e *Executor) runObserver(log *logger.Logger) filter.Observer {
	obs := []filter.Observer{filter.LogObserver(log)}
	if e.metrics != nil {
		obs = append(obs, filter.MetricsObserver(e.metrics))
	}
	if e.observer != nil {
		obs = append(obs, e.observer)
	}
	return filter.Observers(obs...)
}

// StatusOf labels a terminal result with one of the Status constants.
func StatusOf(r filter.Result) string {
	switch {
	case r.OK():
		return StatusOK
	case r.Err == nil:
		return StatusIncomplete
	}
	switch apperrors.CodeOf(r.Err) {
	case apperrors.ErrCodeTimeout:
		return StatusTimeout
	case apperrors.ErrCodeCancelled:
		return StatusCancelled
	case apperrors.ErrCodePartialFailure:
		return StatusPartial
	default:
		return StatusFailed
	}
}
