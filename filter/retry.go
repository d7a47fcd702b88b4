package filter

import (
	"context"
	"math"
	"math/rand"
	"time"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/report"
)

// RetryConfig configures filter-level retry.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int
	// InitialBackoff is the initial delay between retries.
	InitialBackoff time.Duration
	// MaxBackoff is the maximum delay between retries.
	MaxBackoff time.Duration
	// BackoffFactor is the multiplier for exponential backoff.
	BackoffFactor float64
	// Jitter adds randomness to backoff (0.0 to 1.0).
	Jitter float64
	// RetryIf determines if a failed result should be retried.
	RetryIf func(error) bool
	// OnRetry is called before each retry is scheduled.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryIf:        apperrors.IsRetryable,
	}
}

// WithRetry re-invokes f on the same input while its result carries a
// retryable error. Backoff waits are timers, never blocking sleeps. The
// wrapped filter completes once, with the first successful result or the
// last failure.
func WithRetry(f Filter, cfg RetryConfig) Filter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 2.0
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = apperrors.IsRetryable
	}
	return &retryFilter{inner: f, cfg: cfg}
}

type retryFilter struct {
	inner Filter
	cfg   RetryConfig
}

func (r *retryFilter) Name() string { return r.inner.Name() }

func (r *retryFilter) FilterReports(ctx context.Context, reports report.Set, done *Token) {
	r.attempt(ctx, reports, done, 1)
}

func (r *retryFilter) attempt(ctx context.Context, reports report.Set, done *Token, n int) {
	Invoke(ctx, r.inner, reports, func(res Result) {
		if res.Err == nil || n >= r.cfg.MaxAttempts || ctx.Err() != nil || !r.cfg.RetryIf(res.Err) {
			done.Complete(res)
			return
		}

		backoff := calculateBackoff(n, r.cfg)
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(n, res.Err, backoff)
		}
		time.AfterFunc(backoff, func() {
			if ctx.Err() != nil {
				done.Complete(res)
				return
			}
			r.attempt(ctx, reports, done, n+1)
		})
	})
}

// calculateBackoff calculates the backoff duration for an attempt.
func calculateBackoff(attempt int, cfg RetryConfig) time.Duration {
	// Exponential backoff: initial * factor^(attempt-1)
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffFactor, float64(attempt-1))

	if cfg.Jitter > 0 {
		jitterRange := backoff * cfg.Jitter
		backoff += (rand.Float64()*2 - 1) * jitterRange
	}
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	if backoff < 0 {
		backoff = float64(cfg.InitialBackoff)
	}
	return time.Duration(backoff)
}
