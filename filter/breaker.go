package filter

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/report"
)

// BreakerState is the state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets every call through.
	BreakerClosed BreakerState = iota
	// BreakerOpen fails every call with CIRCUIT_OPEN.
	BreakerOpen
	// BreakerHalfOpen lets a limited number of probe calls through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures WithCircuitBreaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int
	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenCalls is the number of probes allowed, and of probe successes
	// needed to close again.
	HalfOpenCalls int
	// OnStateChange is called with the breaker lock held; it must not block.
	OnStateChange func(filter string, from, to BreakerState)
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 5, OpenTimeout: 30 * time.Second, HalfOpenCalls: 1}
}

// Breaker is a filter guarded by a circuit breaker. Its state is shared by
// every run that goes through it.
type Breaker struct {
	inner Filter
	cfg   BreakerConfig
	now   func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	probes   int
	probeOK  int
	openedAt time.Time
}

// WithCircuitBreaker fails fast with CIRCUIT_OPEN once f has failed
// MaxFailures times in a row, until OpenTimeout has passed and probe calls
// succeed again. Calls whose context was cancelled are not counted.
func WithCircuitBreaker(f Filter, cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenCalls <= 0 {
		cfg.HalfOpenCalls = 1
	}
	return &Breaker{inner: f, cfg: cfg, now: time.Now}
}

func (b *Breaker) Name() string { return b.inner.Name() }

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

func (b *Breaker) FilterReports(ctx context.Context, reports report.Set, done *Token) {
	probe, ok := b.admit()
	if !ok {
		done.Fail(apperrors.CircuitOpen(b.Name()))
		return
	}
	Invoke(ctx, b.inner, reports, func(res Result) {
		if ctx.Err() == nil {
			b.record(res.Err)
		} else if probe {
			b.release()
		}
		done.Complete(res)
	})
}

// admit reports whether a call may run and whether it runs as a
// half-open probe.
func (b *Breaker) admit() (probe, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.current() {
	case BreakerClosed:
		return false, true
	case BreakerHalfOpen:
		if b.probes < b.cfg.HalfOpenCalls {
			b.probes++
			return true, true
		}
	}
	return false, false
}

// release returns the slot of a probe whose outcome was not recorded.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerHalfOpen && b.probes > 0 {
		b.probes--
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state := b.current()
	if err == nil {
		switch state {
		case BreakerClosed:
			b.failures = 0
		case BreakerHalfOpen:
			if b.probeOK++; b.probeOK >= b.cfg.HalfOpenCalls {
				b.transition(BreakerClosed)
			}
		}
		return
	}
	b.failures++
	if state == BreakerHalfOpen || (state == BreakerClosed && b.failures >= b.cfg.MaxFailures) {
		b.openedAt = b.now()
		b.transition(BreakerOpen)
	}
}

// current moves an expired open circuit to half-open. Callers hold mu.
func (b *Breaker) current() BreakerState {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.OpenTimeout {
		b.transition(BreakerHalfOpen)
	}
	return b.state
}

func (b *Breaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.probes, b.probeOK = 0, 0
	if to == BreakerClosed {
		b.failures = 0
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.Name(), from, to)
	}
}
