package filter

import (
	"context"
	"fmt"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/report"
)

// TransformFunc is a synchronous transformation of a whole set.
type TransformFunc func(ctx context.Context, reports report.Set) (report.Set, error)

// Func adapts fn into a Filter that completes before FilterReports returns.
// Uncoded errors from fn are wrapped as FILTER_FAILED.
func Func(name string, fn TransformFunc) Filter {
	return &funcFilter{name: name, fn: fn}
}

// Async adapts fn into a Filter that runs fn on its own goroutine, for
// transformations that block on I/O.
func Async(name string, fn TransformFunc) Filter {
	return &funcFilter{name: name, fn: fn, async: true}
}

type funcFilter struct {
	name  string
	fn    TransformFunc
	async bool
}

func (f *funcFilter) Name() string { return f.name }

func (f *funcFilter) FilterReports(ctx context.Context, reports report.Set, done *Token) {
	if !f.async {
		f.run(ctx, reports, done)
		return
	}
	go func() {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if done.fnPanicked.Load() {
				panic(p)
			}
			if !done.Fired() {
				done.Fail(apperrors.FilterFailed(f.name, panicError(p)))
			}
		}()
		f.run(ctx, reports, done)
	}()
}

func (f *funcFilter) run(ctx context.Context, reports report.Set, done *Token) {
	out, err := f.fn(ctx, reports)
	if err != nil {
		done.Partial(out, asFilterError(f.name, err))
		return
	}
	done.Succeed(out)
}

// Each applies fn to every report independently. A report whose
// transformation fails is left out; the result is then a partial failure
// carrying the reports that did transform.
func Each(name string, fn func(id string, doc report.Document) (report.Document, error)) Filter {
	return Func(name, func(_ context.Context, reports report.Set) (report.Set, error) {
		b := report.NewBuilder(reports.Len())
		var firstErr error
		reports.Range(func(id string, doc report.Document) bool {
			out, err := fn(id, doc)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("report %q: %w", id, err)
				}
				return true
			}
			_ = b.Add(id, out)
			return true
		})
		return b.Build(), firstErr
	})
}

// Drop removes every report for which drop returns true.
func Drop(name string, drop func(id string, doc report.Document) bool) Filter {
	return Func(name, func(_ context.Context, reports report.Set) (report.Set, error) {
		return reports.Filter(func(id string, doc report.Document) bool {
			return !drop(id, doc)
		}), nil
	})
}

// PassThrough completes immediately with its input.
func PassThrough(name string) Filter {
	return Func(name, func(_ context.Context, reports report.Set) (report.Set, error) {
		return reports, nil
	})
}

func asFilterError(name string, err error) error {
	if apperrors.CodeOf(err) != "" {
		return err
	}
	return apperrors.FilterFailed(name, err)
}
