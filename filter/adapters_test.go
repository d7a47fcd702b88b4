package filter_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/filtertest"
	"github.com/kbukum/reportflow/report"
)

func TestFunc_CompletesSynchronously(t *testing.T) {
	capture := filtertest.NewCapture()
	f := filter.Func("id", func(_ context.Context, in report.Set) (report.Set, error) { return in, nil })

	f.FilterReports(context.Background(), filtertest.Reports(t, "r1"), capture.Token("id", nil))

	if !capture.Fired() {
		t.Fatal("expected completion before FilterReports returned")
	}
}

func TestFunc_WrapsUncodedErrors(t *testing.T) {
	boom := errors.New("boom")
	f := filter.Func("broken", func(context.Context, report.Set) (report.Set, error) { return report.EmptySet(), boom })

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), f, filtertest.Reports(t, "r1"), capture.Done)
	res := capture.Wait(t, waitFor)

	if !apperrors.IsCode(res.Err, apperrors.ErrCodeFilterFailed) || !errors.Is(res.Err, boom) {
		t.Errorf("expected FILTER_FAILED wrapping boom, got %v", res.Err)
	}
}

func TestFunc_KeepsCodedErrors(t *testing.T) {
	coded := apperrors.DeliveryFailed("bucket", errors.New("503"))
	f := filter.Func("upload", func(context.Context, report.Set) (report.Set, error) { return report.EmptySet(), coded })

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), f, filtertest.Reports(t, "r1"), capture.Done)

	if res := capture.Wait(t, waitFor); !apperrors.IsCode(res.Err, apperrors.ErrCodeDeliveryFailed) {
		t.Errorf("expected DELIVERY_FAILED, got %v", res.Err)
	}
}

func TestAsync_CompletesLater(t *testing.T) {
	release := make(chan struct{})
	f := filter.Async("slow", func(_ context.Context, in report.Set) (report.Set, error) {
		<-release
		return in, nil
	})

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), f, filtertest.Reports(t, "r1"), capture.Done)
	if capture.Fired() {
		t.Fatal("expected asynchronous completion")
	}
	close(release)

	if !capture.Wait(t, waitFor).OK() {
		t.Error("expected success")
	}
}

func TestAsync_RecoversPanic(t *testing.T) {
	f := filter.Async("bad", func(context.Context, report.Set) (report.Set, error) { panic("nil map") })

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), f, filtertest.Reports(t, "r1"), capture.Done)

	if res := capture.Wait(t, waitFor); !apperrors.IsCode(res.Err, apperrors.ErrCodeFilterFailed) {
		t.Errorf("expected FILTER_FAILED, got %v", res.Err)
	}
}

func TestEach_PartialOnPerReportFailure(t *testing.T) {
	f := filter.Each("upper", func(id string, doc report.Document) (report.Document, error) {
		if id == "r2" {
			return report.Document{}, errors.New("unreadable")
		}
		return doc.With("id", strings.ToUpper(id))
	})

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), f, filtertest.Reports(t, "r1", "r2", "r3"), capture.Done)
	res := capture.Wait(t, waitFor)

	if res.Completed || res.Err == nil {
		t.Fatalf("expected partial failure, got %+v", res)
	}
	if !strings.Contains(res.Err.Error(), `"r2"`) {
		t.Errorf("expected error to name report r2, got %v", res.Err)
	}
	if diff := cmp.Diff([]string{"r1", "r3"}, res.Reports.IDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	doc, _ := res.Reports.Get("r3")
	if v, _ := doc.Get("id"); v != "R3" {
		t.Errorf("expected transformed id, got %v", v)
	}
}

func TestDrop(t *testing.T) {
	f := filter.Drop("odd", func(id string, _ report.Document) bool { return id == "r1" || id == "r3" })

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), f, filtertest.Reports(t, "r1", "r2", "r3"), capture.Done)
	res := capture.Wait(t, waitFor)

	if diff := cmp.Diff([]string{"r2"}, res.Reports.IDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestDrop_AllIsSuccess(t *testing.T) {
	f := filter.Drop("all", func(string, report.Document) bool { return true })

	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), f, filtertest.Reports(t, "r1"), capture.Done)

	if res := capture.Wait(t, waitFor); !res.OK() || !res.Reports.IsEmpty() {
		t.Errorf("expected empty success, got %+v", res)
	}
}

func TestPassThrough(t *testing.T) {
	in := filtertest.Reports(t, "r1", "r2")
	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), filter.PassThrough("noop"), in, capture.Done)

	if res := capture.Wait(t, waitFor); !res.OK() || !res.Reports.Equal(in) {
		t.Errorf("expected input unchanged, got %+v", res)
	}
}
