package filter_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/filtertest"
	"github.com/kbukum/reportflow/report"
)

func constant(v bool) filter.Predicate {
	return func(context.Context, report.Set) (bool, error) { return v, nil }
}

func TestConditional_SelectsBranch(t *testing.T) {
	tests := []struct {
		name      string
		predicate bool
		wantThen  int
		wantElse  int
	}{
		{"then", true, 1, 0},
		{"otherwise", false, 0, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			then, otherwise := filtertest.Succeed("then"), filtertest.Succeed("else")
			c := filter.NewConditional("cond", constant(tc.predicate), then, otherwise)

			capture := filtertest.NewCapture()
			filter.Invoke(context.Background(), c, filtertest.Reports(t, "r1"), capture.Done)

			if !capture.Wait(t, waitFor).OK() {
				t.Fatal("expected success")
			}
			if then.CallCount() != tc.wantThen || otherwise.CallCount() != tc.wantElse {
				t.Errorf("then=%d else=%d, want then=%d else=%d",
					then.CallCount(), otherwise.CallCount(), tc.wantThen, tc.wantElse)
			}
		})
	}
}

func TestConditional_NilBranchPassesThrough(t *testing.T) {
	in := filtertest.Reports(t, "r1")
	c := filter.NewConditional("cond", constant(false), filtertest.Succeed("then"), nil)

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), c, in, capture.Done)

	if res := capture.Wait(t, waitFor); !res.OK() || !res.Reports.Equal(in) {
		t.Errorf("expected pass-through, got %+v", res)
	}
}

func TestConditional_PredicateFault(t *testing.T) {
	tests := []struct {
		name      string
		predicate filter.Predicate
	}{
		{"error", func(context.Context, report.Set) (bool, error) { return true, errors.New("unreadable") }},
		{"panic", func(context.Context, report.Set) (bool, error) { panic("predicate exploded") }},
		{"nil", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx, v := observed(t)
			then, otherwise := filtertest.Succeed("then"), filtertest.Succeed("else")
			c := filter.NewConditional("cond", tc.predicate, then, otherwise)

			capture := filtertest.NewCapture()
			filter.Invoke(ctx, c, filtertest.Reports(t, "r1"), capture.Done)
			res := capture.Wait(t, waitFor)

			if !apperrors.IsCode(res.Err, apperrors.ErrCodePredicateFault) {
				t.Errorf("expected PREDICATE_FAULT, got %v", res.Err)
			}
			if res.Completed {
				t.Error("expected Completed=false")
			}
			if then.CallCount()+otherwise.CallCount() != 0 {
				t.Error("expected no branch to run after a predicate fault")
			}
			if v.Count(filter.ViolationPredicateFault) != 1 {
				t.Errorf("expected 1 predicate fault violation, got %+v", v.All())
			}
		})
	}
}

func TestConditional_EmptyInputSkipsPredicate(t *testing.T) {
	var evaluated atomic.Int32
	pred := func(context.Context, report.Set) (bool, error) {
		evaluated.Add(1)
		return true, nil
	}
	c := filter.NewConditional("cond", pred, filtertest.Succeed("then"), nil)

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), c, report.EmptySet(), capture.Done)

	if !capture.Wait(t, waitFor).OK() {
		t.Error("expected success on empty input")
	}
	if evaluated.Load() != 0 {
		t.Error("expected predicate not to be evaluated on empty input")
	}
}

func TestConditional_PredicateEvaluatedOnce(t *testing.T) {
	var evaluated atomic.Int32
	pred := func(context.Context, report.Set) (bool, error) {
		evaluated.Add(1)
		return true, nil
	}
	then := filtertest.Delayed("then", 0)
	c := filter.NewConditional("cond", pred, then, nil)

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), c, filtertest.Reports(t, "r1", "r2"), capture.Done)
	capture.Wait(t, waitFor)

	if evaluated.Load() != 1 {
		t.Errorf("expected 1 evaluation, got %d", evaluated.Load())
	}
}

func TestConditional_BranchErrorCarriesStage(t *testing.T) {
	boom := errors.New("boom")
	c := filter.NewConditional("cond", constant(true), filtertest.Failing("shrink", boom), nil)

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), c, filtertest.Reports(t, "r1"), capture.Done)
	res := capture.Wait(t, waitFor)

	if !errors.Is(res.Err, boom) {
		t.Fatalf("expected boom, got %v", res.Err)
	}
	if path := apperrors.StagePath(res.Err); len(path) != 1 || path[0] != "shrink" {
		t.Errorf("expected stage path [shrink], got %v", path)
	}
}
