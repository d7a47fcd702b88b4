// Package filter defines the report filter contract and the composites that
// chain, branch and fan out filters.
//
// A Filter receives a report.Set and signals its outcome by completing a
// one-shot Token exactly once, either before FilterReports returns or later
// from any goroutine. Composites never block: every transition between
// stages happens inside the completion of the previous stage.
//
//	upload := filter.NewPipeline("upload",
//	    redact,
//	    filter.NewConditional("shrink", filter.LargerThan(64<<10), gzip, nil),
//	    filter.NewFanOut("deliver", redisSink, kafkaSink),
//	)
package filter

import (
	"context"

	"github.com/kbukum/reportflow/report"
)

// Filter transforms or drops reports and completes done exactly once.
//
// Implementations must treat reports as read-only and should be safe for
// concurrent use on disjoint invocations. ctx carries advisory cancellation.
type Filter interface {
	Name() string
	FilterReports(ctx context.Context, reports report.Set, done *Token)
}

// Result is the outcome of one filter invocation.
//
// When Err is set, Completed is false and Reports holds partial output that
// downstream stages must not treat as authoritative.
type Result struct {
	Reports   report.Set
	Completed bool
	Err       error
	// Branches holds per-branch outcomes when the result came from a fan-out.
	Branches []BranchResult
}

// OK reports whether the invocation fully completed without error.
func (r Result) OK() bool { return r.Completed && r.Err == nil }

// BranchResult is the outcome of one fan-out branch, tagged with its identity.
type BranchResult struct {
	Name      string
	Index     int
	Reports   report.Set
	Completed bool
	Err       error
}

// OK reports whether the branch fully completed without error.
func (b BranchResult) OK() bool { return b.Completed && b.Err == nil }

// Succeeded returns a successful result carrying reports.
func Succeeded(reports report.Set) Result {
	return Result{Reports: reports, Completed: true}
}

// Failed returns a failed result without usable output.
func Failed(err error) Result {
	return Result{Err: err}
}
