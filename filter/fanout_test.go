package filter_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/filtertest"
	"github.com/kbukum/reportflow/report"
)

func TestFanOut_PriorityIndependentOfTiming(t *testing.T) {
	tests := []struct {
		name         string
		slowA, slowB time.Duration
	}{
		{"first registered finishes last", 30 * time.Millisecond, 0},
		{"first registered finishes first", 0, 30 * time.Millisecond},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := filtertest.New("a", filtertest.Script{Delay: tc.slowA, Transform: filtertest.Tag("winner", "a")})
			b := filtertest.New("b", filtertest.Script{Delay: tc.slowB, Transform: filtertest.Tag("winner", "b")})

			capture := filtertest.NewCapture()
			filter.Invoke(context.Background(), filter.NewFanOut("fan", a, b), filtertest.Reports(t, "r1"), capture.Done)
			res := capture.Wait(t, waitFor)

			if !res.OK() {
				t.Fatalf("unexpected result: %+v", res)
			}
			doc, _ := res.Reports.Get("r1")
			if got, _ := doc.Get("winner"); got != "a" {
				t.Errorf("expected branch a to win the id clash, got %v", got)
			}
		})
	}
}

func TestFanOut_UnionOfDisjointOutputs(t *testing.T) {
	in := filtertest.Reports(t, "r1", "r2", "r3")
	keep := func(ids ...string) func(report.Set) (report.Set, error) {
		return func(s report.Set) (report.Set, error) {
			return s.Filter(func(id string, _ report.Document) bool {
				for _, k := range ids {
					if k == id {
						return true
					}
				}
				return false
			}), nil
		}
	}
	a := filtertest.New("a", filtertest.Script{Delay: time.Millisecond, Transform: keep("r1")})
	b := filtertest.New("b", filtertest.Script{Transform: keep("r3")})

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), filter.NewFanOut("fan", a, b), in, capture.Done)
	res := capture.Wait(t, waitFor)

	if diff := cmp.Diff([]string{"r1", "r3"}, res.Reports.IDs()); diff != "" {
		t.Errorf("merged ids mismatch (-want +got):\n%s", diff)
	}
}

func TestFanOut_WaitsForEveryBranch(t *testing.T) {
	log := &filtertest.Log{}
	fast := filtertest.New("fast", filtertest.Script{Log: log})
	slow := filtertest.New("slow", filtertest.Script{Delay: 25 * time.Millisecond, Log: log})

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), filter.NewFanOut("fan", fast, slow), filtertest.Reports(t, "r1"), capture.Done)

	if capture.Fired() {
		t.Fatal("fan-in completed before the slow branch")
	}
	capture.Wait(t, waitFor)
	if slow.Calls()[0].End.IsZero() {
		t.Error("expected slow branch to have finished before fan-in")
	}
	if capture.Count() != 1 {
		t.Errorf("expected 1 completion, got %d", capture.Count())
	}
}

func TestFanOut_BranchesRunConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	rendezvous := func(name string) filter.Filter {
		return filter.Async(name, func(_ context.Context, in report.Set) (report.Set, error) {
			started.Done()
			started.Wait()
			return in, nil
		})
	}

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), filter.NewFanOut("fan", rendezvous("a"), rendezvous("b")), filtertest.Reports(t, "r1"), capture.Done)

	if !capture.Wait(t, waitFor).OK() {
		t.Error("expected success")
	}
}

func TestFanOut_PartialFailure(t *testing.T) {
	boom := errors.New("upload refused")
	ok := filtertest.New("ok", filtertest.Script{Transform: filtertest.Tag("ok", true)})
	bad := filtertest.New("bad", filtertest.Script{Delay: time.Millisecond, Err: boom})

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), filter.NewFanOut("fan", ok, bad), filtertest.Reports(t, "r1"), capture.Done)
	res := capture.Wait(t, waitFor)

	if res.Completed {
		t.Error("expected Completed=false")
	}
	if !apperrors.IsCode(res.Err, apperrors.ErrCodePartialFailure) {
		t.Fatalf("expected PARTIAL_FAILURE, got %v", res.Err)
	}
	if !errors.Is(res.Err, boom) {
		t.Error("expected branch error to be reachable with errors.Is")
	}

	var partial *apperrors.PartialError
	if !errors.As(res.Err, &partial) {
		t.Fatalf("expected *PartialError, got %T", res.Err)
	}
	if len(partial.Failures) != 1 || partial.Failures[0].Branch != "bad" || partial.Failures[0].Index != 1 {
		t.Errorf("unexpected failures: %+v", partial.Failures)
	}
	if diff := cmp.Diff([]string{"ok"}, partial.Succeeded); diff != "" {
		t.Errorf("succeeded mismatch (-want +got):\n%s", diff)
	}

	doc, found := res.Reports.Get("r1")
	if _, tagged := doc.Get("ok"); !found || !tagged {
		t.Error("expected output of the successful branch")
	}

	if len(res.Branches) != 2 {
		t.Fatalf("expected 2 branch results, got %d", len(res.Branches))
	}
	if res.Branches[0].Name != "ok" || !res.Branches[0].OK() {
		t.Errorf("unexpected branch 0: %+v", res.Branches[0])
	}
	if res.Branches[1].Name != "bad" || res.Branches[1].OK() {
		t.Errorf("unexpected branch 1: %+v", res.Branches[1])
	}
}

func TestFanOut_IncompleteBranchIsFailure(t *testing.T) {
	capture := filtertest.NewCapture()
	fan := filter.NewFanOut("fan", filtertest.Succeed("a"), filtertest.New("b", filtertest.Script{Incomplete: true}))
	filter.Invoke(context.Background(), fan, filtertest.Reports(t, "r1"), capture.Done)
	res := capture.Wait(t, waitFor)

	var partial *apperrors.PartialError
	if !errors.As(res.Err, &partial) {
		t.Fatalf("expected *PartialError, got %v", res.Err)
	}
	if !apperrors.IsCode(partial.Failures[0].Err, apperrors.ErrCodeIncomplete) {
		t.Errorf("expected INCOMPLETE branch error, got %v", partial.Failures[0].Err)
	}
}

func TestFanOut_PanickingBranch(t *testing.T) {
	ctx, v := observed(t)
	capture := filtertest.NewCapture()
	fan := filter.NewFanOut("fan", filtertest.Succeed("a"), filtertest.Panicking("b", "oops"))
	filter.Invoke(ctx, fan, filtertest.Reports(t, "r1"), capture.Done)
	res := capture.Wait(t, waitFor)

	if !apperrors.IsCode(res.Err, apperrors.ErrCodePartialFailure) {
		t.Errorf("expected PARTIAL_FAILURE, got %v", res.Err)
	}
	if v.Count(filter.ViolationPanic) != 1 {
		t.Errorf("expected 1 panic violation, got %+v", v.All())
	}
}

func TestFanOut_EmptyInput(t *testing.T) {
	a := filtertest.Succeed("a")
	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), filter.NewFanOut("fan", a), report.EmptySet(), capture.Done)

	if res := capture.Wait(t, waitFor); !res.OK() || !res.Reports.IsEmpty() {
		t.Errorf("expected empty success, got %+v", res)
	}
	if a.CallCount() != 0 {
		t.Error("expected no branch to run on empty input")
	}
}

func TestFanOut_NoBranches(t *testing.T) {
	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), filter.NewFanOut("fan"), filtertest.Reports(t, "r1"), capture.Done)

	if res := capture.Wait(t, waitFor); !res.OK() || !res.Reports.IsEmpty() {
		t.Errorf("expected empty success, got %+v", res)
	}
}

func TestFanOut_KeyedMerge(t *testing.T) {
	a := filtertest.New("symbolicate", filtertest.Script{Delay: 5 * time.Millisecond, Transform: filtertest.Tag("frames", 12)})
	b := filtertest.New("summarize", filtertest.Script{Transform: filtertest.Tag("lines", 3)})
	fan := filter.NewFanOut("fan", a, b).WithMerge(filter.KeyedMerge("symbols"))

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), fan, filtertest.Reports(t, "r1"), capture.Done)
	res := capture.Wait(t, waitFor)

	doc, _ := res.Reports.Get("r1")
	if diff := cmp.Diff([]string{"summarize", "symbols"}, doc.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if frames, _ := doc.Lookup("symbols", "frames"); frames != int64(12) {
		t.Errorf("expected frames 12 under symbols, got %v", frames)
	}
	if lines, _ := doc.Lookup("summarize", "lines"); lines != int64(3) {
		t.Errorf("expected lines 3 under summarize, got %v", lines)
	}
}

func TestFanOut_MergePanic(t *testing.T) {
	fan := filter.NewFanOut("fan", filtertest.Succeed("a")).WithMerge(func([]filter.BranchResult) (report.Set, error) {
		panic("merge bug")
	})
	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), fan, filtertest.Reports(t, "r1"), capture.Done)

	if res := capture.Wait(t, waitFor); !apperrors.IsCode(res.Err, apperrors.ErrCodeFilterFailed) {
		t.Errorf("expected FILTER_FAILED, got %v", res.Err)
	}
}
