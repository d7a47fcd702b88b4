package filter

import (
	"context"
	"fmt"
	"sync/atomic"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/report"
)

// Token is the one-shot completion handle given to a filter invocation.
// Complete may be called from any goroutine; only the first call is honored.
type Token struct {
	stage    string
	fn       func(Result)
	observer Observer
	release  func()
	fired    atomic.Bool
	// fnPanicked is set when a panic unwinds through fn.
	fnPanicked atomic.Bool
}

// NewToken creates a token for stage that delivers its result to fn.
// A nil observer discards contract violations.
func NewToken(stage string, fn func(Result), observer Observer) *Token {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Token{stage: stage, fn: fn, observer: observer}
}

// Stage returns the name of the stage the token belongs to.
func (t *Token) Stage() string { return t.stage }

// Fired reports whether the token has been completed.
func (t *Token) Fired() bool { return t.fired.Load() }

// Complete delivers r. It returns false, and reports a duplicate completion
// violation, if the token already fired.
func (t *Token) Complete(r Result) bool {
	if !t.fired.CompareAndSwap(false, true) {
		t.observer.Violation(Violation{
			Kind:  ViolationDuplicateCompletion,
			Stage: t.stage,
			Err:   apperrors.ContractViolation(t.stage, "completion invoked more than once"),
		})
		return false
	}
	if t.release != nil {
		t.release()
	}
	if r.Err != nil {
		r.Completed = false
	}
	if t.fn != nil {
		defer func() {
			if p := recover(); p != nil {
				t.fnPanicked.Store(true)
				panic(p)
			}
		}()
		t.fn(r)
	}
	return true
}

// Succeed completes with reports as fully processed output.
func (t *Token) Succeed(reports report.Set) bool {
	return t.Complete(Succeeded(reports))
}

// Fail completes with err and no usable output.
func (t *Token) Fail(err error) bool {
	return t.Complete(Failed(err))
}

// Partial completes with err and the output produced before the failure.
func (t *Token) Partial(reports report.Set, err error) bool {
	return t.Complete(Result{Reports: reports, Err: err})
}

// Incomplete completes without error but flags the output as not fully processed.
func (t *Token) Incomplete(reports report.Set) bool {
	return t.Complete(Result{Reports: reports})
}

// Invoke runs f on reports with a fresh token that delivers to fn.
//
// A panic raised inside f.FilterReports is recovered: it is reported as a
// violation and, if the token has not fired yet, turned into a failure.
// A panic raised by fn, while f completes synchronously, belongs to the
// caller and is re-raised. The token is registered with the run's Tracker
// carried by ctx, if any.
func Invoke(ctx context.Context, f Filter, reports report.Set, fn func(Result)) {
	observer := ObserverFrom(ctx)
	tok := NewToken(f.Name(), fn, observer)
	if tracker := trackerFrom(ctx); tracker != nil {
		tok.release = tracker.Begin(f.Name())
	}

	defer func() {
		p := recover()
		if p == nil {
			return
		}
		if tok.fnPanicked.Load() {
			panic(p)
		}
		err := apperrors.FilterFailed(f.Name(), panicError(p))
		observer.Violation(Violation{Kind: ViolationPanic, Stage: f.Name(), Err: err})
		if !tok.Fired() {
			tok.Fail(err)
		}
	}()

	f.FilterReports(ctx, reports, tok)
}

// Tracker observes which tokens of a run are still pending.
type Tracker interface {
	// Begin registers a pending token for stage and returns its release func.
	Begin(stage string) (release func())
}

type trackerKey struct{}

// WithTracker attaches a Tracker to ctx for every Invoke below it.
func WithTracker(ctx context.Context, t Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

func trackerFrom(ctx context.Context) Tracker {
	t, _ := ctx.Value(trackerKey{}).(Tracker)
	return t
}

func panicError(p any) error {
	return fmt.Errorf("panic: %v", p)
}
