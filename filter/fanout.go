package filter

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/report"
)

// MergeFunc combines branch outputs into one set. It receives the branches
// to merge in registration order, regardless of the order they finished.
type MergeFunc func(branches []BranchResult) (report.Set, error)

// FanOut runs every branch concurrently on the same input and merges their
// outputs once all of them completed.
//
// If every branch succeeds the merged set is the result. If any branch fails
// the result is a partial failure: Reports holds the merge of the branches
// that succeeded, Err is a *errors.PartialError naming the failed ones, and
// Branches carries every branch outcome.
type FanOut struct {
	name     string
	branches []Filter
	merge    MergeFunc
}

// NewFanOut creates a fan-out over branches using PriorityMerge.
func NewFanOut(name string, branches ...Filter) *FanOut {
	return &FanOut{
		name:     name,
		branches: append([]Filter(nil), branches...),
		merge:    PriorityMerge,
	}
}

// WithMerge returns a copy of f that merges with m.
func (f *FanOut) WithMerge(m MergeFunc) *FanOut {
	cp := *f
	cp.merge = m
	return &cp
}

func (f *FanOut) Name() string { return f.name }

func (f *FanOut) FilterReports(ctx context.Context, reports report.Set, done *Token) {
	if reports.IsEmpty() {
		done.Succeed(reports)
		return
	}
	if len(f.branches) == 0 {
		done.Succeed(report.EmptySet())
		return
	}

	fan := &fanIn{
		results:   make([]BranchResult, len(f.branches)),
		remaining: len(f.branches),
	}
	for i, branch := range f.branches {
		go Invoke(ctx, branch, reports, func(r Result) {
			br := BranchResult{
				Name:      branch.Name(),
				Index:     i,
				Reports:   r.Reports,
				Completed: r.Completed,
				Err:       r.Err,
			}
			if !br.OK() && br.Err == nil {
				br.Err = apperrors.Incomplete(branch.Name())
			}
			br.Err = apperrors.AtStage(branch.Name(), br.Err)
			if fan.report(br) {
				f.finish(fan.results, done)
			}
		})
	}
}

// fanIn is the bookkeeping of one FanOut invocation.
type fanIn struct {
	mu        sync.Mutex
	results   []BranchResult
	remaining int
}

// report records br and returns true for the last branch to report.
func (s *fanIn) report(br BranchResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[br.Index] = br
	s.remaining--
	return s.remaining == 0
}

func (f *FanOut) finish(results []BranchResult, done *Token) {
	var (
		succeeded []BranchResult
		failure   = &apperrors.PartialError{Stage: f.name}
	)
	for _, br := range results {
		if br.OK() {
			succeeded = append(succeeded, br)
			failure.Succeeded = append(failure.Succeeded, br.Name)
			continue
		}
		failure.Failures = append(failure.Failures, apperrors.BranchFailure{
			Branch: br.Name, Index: br.Index, Err: br.Err,
		})
	}

	merged, err := f.safeMerge(succeeded)
	if err != nil {
		done.Complete(Result{Err: apperrors.FilterFailed(f.name, err), Branches: results})
		return
	}

	if len(failure.Failures) > 0 {
		done.Complete(Result{Reports: merged, Err: failure, Branches: results})
		return
	}
	done.Complete(Result{Reports: merged, Completed: true, Branches: results})
}

func (f *FanOut) safeMerge(branches []BranchResult) (merged report.Set, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("merge panic: %v", p)
		}
	}()
	return f.merge(branches)
}

// PriorityMerge unions branch outputs. When several branches produce the same
// report identifier, the branch registered first wins.
func PriorityMerge(branches []BranchResult) (report.Set, error) {
	b := report.NewBuilder(0)
	for _, br := range branches {
		var addErr error
		br.Reports.Range(func(id string, doc report.Document) bool {
			if b.Has(id) {
				return true
			}
			addErr = b.Add(id, doc)
			return addErr == nil
		})
		if addErr != nil {
			return report.Set{}, addErr
		}
	}
	return b.Build(), nil
}

// KeyedMerge nests each branch's document under a per-branch key, so the
// merged report for id is {keys[0]: doc from branch 0, keys[1]: ...}.
// Branches without a key use their filter name.
func KeyedMerge(keys ...string) MergeFunc {
	return func(branches []BranchResult) (report.Set, error) {
		combined := make(map[string]report.Document)
		for _, br := range branches {
			key := br.Name
			if br.Index < len(keys) && keys[br.Index] != "" {
				key = keys[br.Index]
			}
			var withErr error
			br.Reports.Range(func(id string, doc report.Document) bool {
				combined[id], withErr = combined[id].With(key, doc)
				return withErr == nil
			})
			if withErr != nil {
				return report.Set{}, withErr
			}
		}
		return report.NewSet(combined)
	}
}
