package filtertest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/report"
)

// Script describes how a scripted Filter behaves on every invocation.
type Script struct {
	// Delay completes from a timer goroutine after the delay. Zero completes
	// before FilterReports returns.
	Delay time.Duration
	// Transform computes the output. Nil passes the input through.
	Transform func(report.Set) (report.Set, error)
	// Err fails the invocation, keeping the transformed output as partial data.
	Err error
	// Incomplete completes without error but with Completed=false.
	Incomplete bool
	// Never leaves the token pending forever.
	Never bool
	// Twice completes the token a second time right after the first.
	Twice bool
	// Panic, if non-nil, is raised synchronously inside FilterReports.
	Panic any
	// Log records start and completion events in a shared order.
	Log *Log
}

// Call records one invocation of a scripted Filter.
type Call struct {
	Input report.Set
	Start time.Time
	End   time.Time
}

// Filter is a filter.Filter driven by a Script.
type Filter struct {
	name   string
	script Script

	mu     sync.Mutex
	calls  []Call
	active atomic.Int32
	peak   atomic.Int32
}

// New creates a scripted filter.
func New(name string, s Script) *Filter {
	return &Filter{name: name, script: s}
}

// Succeed completes synchronously with its input.
func Succeed(name string) *Filter { return New(name, Script{}) }

// Delayed completes with its input after d.
func Delayed(name string, d time.Duration) *Filter { return New(name, Script{Delay: d}) }

// Failing completes synchronously with err and no output.
func Failing(name string, err error) *Filter {
	return New(name, Script{Err: err, Transform: func(report.Set) (report.Set, error) {
		return report.EmptySet(), nil
	}})
}

// Never never completes.
func Never(name string) *Filter { return New(name, Script{Never: true}) }

// Twice completes twice.
func Twice(name string) *Filter { return New(name, Script{Twice: true}) }

// Panicking panics with v.
func Panicking(name string, v any) *Filter { return New(name, Script{Panic: v}) }

func (f *Filter) Name() string { return f.name }

func (f *Filter) FilterReports(_ context.Context, reports report.Set, done *filter.Token) {
	idx := f.begin(reports)
	if f.script.Panic != nil {
		f.end(idx)
		panic(f.script.Panic)
	}
	if f.script.Never {
		return
	}
	if f.script.Delay <= 0 {
		f.complete(idx, reports, done)
		return
	}
	time.AfterFunc(f.script.Delay, func() { f.complete(idx, reports, done) })
}

func (f *Filter) complete(idx int, reports report.Set, done *filter.Token) {
	out := reports
	var err error
	if f.script.Transform != nil {
		out, err = f.script.Transform(reports)
	}
	if err == nil {
		err = f.script.Err
	}
	res := filter.Result{Reports: out, Completed: !f.script.Incomplete, Err: err}

	f.end(idx)
	done.Complete(res)
	if f.script.Twice {
		done.Complete(res)
	}
}

func (f *Filter) begin(reports report.Set) int {
	n := f.active.Add(1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	f.script.Log.Add(f.name + ":start")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Input: reports, Start: time.Now()})
	return len(f.calls) - 1
}

func (f *Filter) end(idx int) {
	f.active.Add(-1)
	f.script.Log.Add(f.name + ":done")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[idx].End = time.Now()
}

// Calls returns a copy of the recorded invocations.
func (f *Filter) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns the number of invocations so far.
func (f *Filter) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// PeakConcurrency returns the largest number of invocations that were in
// flight at the same time.
func (f *Filter) PeakConcurrency() int { return int(f.peak.Load()) }

// Log is an ordered, concurrency-safe event log shared by scripted filters.
// A nil *Log discards events.
type Log struct {
	mu     sync.Mutex
	events []string
}

// Add appends an event.
func (l *Log) Add(event string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// Events returns a copy of the events in the order they were added.
func (l *Log) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}
