package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeDeliveryFailed, "broker down")
	if !err.Retryable {
		t.Error("DELIVERY_FAILED should be retryable")
	}
	if New(ErrCodeFilterFailed, "bad").Retryable {
		t.Error("FILTER_FAILED should not be retryable")
	}
}

func TestAppError_ErrorString(t *testing.T) {
	cause := fmt.Errorf("unexpected EOF")
	err := FilterFailed("gzip", cause)
	if !strings.Contains(err.Error(), "FILTER_FAILED") {
		t.Errorf("expected code in message, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "unexpected EOF") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}

func TestAppError_WithDetail(t *testing.T) {
	err := New(ErrCodeInvalidInput, "bad").WithDetail("field", "id")
	if err.Details["field"] != "id" {
		t.Errorf("expected field=id, got %v", err.Details["field"])
	}
}

func TestTimeout_Details(t *testing.T) {
	err := Timeout("run-1", 2*time.Second)
	if err.Code != ErrCodeTimeout {
		t.Errorf("expected TIMEOUT, got %s", err.Code)
	}
	if err.Details["run_id"] != "run-1" {
		t.Errorf("expected run_id=run-1, got %v", err.Details["run_id"])
	}
	if !strings.Contains(err.Message, "2s") {
		t.Errorf("expected duration in message, got %q", err.Message)
	}
}

func TestAtStage_Nil(t *testing.T) {
	if AtStage("x", nil) != nil {
		t.Error("expected nil error to stay nil")
	}
}

func TestAtStage_PreservesKind(t *testing.T) {
	leaf := FilterFailed("redact", fmt.Errorf("boom"))
	err := AtStage("upload", AtStage("redact", leaf))

	if CodeOf(err) != ErrCodeFilterFailed {
		t.Errorf("expected FILTER_FAILED, got %q", CodeOf(err))
	}
	if !stderrors.Is(err, leaf) {
		t.Error("expected errors.Is to find the leaf error")
	}
	path := StagePath(err)
	if len(path) != 2 || path[0] != "upload" || path[1] != "redact" {
		t.Errorf("expected [upload redact], got %v", path)
	}
	if !strings.HasPrefix(err.Error(), "upload: redact: ") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestStagePath_ThroughFmtWrap(t *testing.T) {
	err := AtStage("outer", fmt.Errorf("context: %w", AtStage("inner", stderrors.New("x"))))
	path := StagePath(err)
	if len(path) != 2 || path[1] != "inner" {
		t.Errorf("expected [outer inner], got %v", path)
	}
}

func TestCodeOf_Uncoded(t *testing.T) {
	if code := CodeOf(stderrors.New("plain")); code != "" {
		t.Errorf("expected empty code, got %q", code)
	}
	if code := CodeOf(nil); code != "" {
		t.Errorf("expected empty code for nil, got %q", code)
	}
}

func TestPartialError(t *testing.T) {
	branchErr := DeliveryFailed("kafka", stderrors.New("leader not available"))
	err := &PartialError{
		Stage:     "deliver",
		Failures:  []BranchFailure{{Branch: "kafka", Index: 1, Err: branchErr}},
		Succeeded: []string{"redis"},
	}

	if CodeOf(AtStage("deliver", err)) != ErrCodePartialFailure {
		t.Errorf("expected PARTIAL_FAILURE, got %q", CodeOf(err))
	}
	if !stderrors.Is(err, branchErr) {
		t.Error("expected errors.Is to reach branch error")
	}
	var appErr *AppError
	if !stderrors.As(err, &appErr) || appErr.Code != ErrCodeDeliveryFailed {
		t.Error("expected errors.As to find the branch AppError")
	}
	if !strings.Contains(err.Error(), "1 of 2 branches failed") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(AtStage("s", DeliveryFailed("redis", nil))) {
		t.Error("expected delivery failure to be retryable")
	}
	if IsRetryable(stderrors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
	if IsRetryable(PredicateFault("cond", nil)) {
		t.Error("predicate faults are not retryable")
	}
}

func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("wrap: %w", DuplicateReport("r1"))
	appErr, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AsAppError to succeed")
	}
	if appErr.Code != ErrCodeDuplicateReport {
		t.Errorf("expected DUPLICATE_REPORT, got %s", appErr.Code)
	}
	if IsAppError(stderrors.New("plain")) {
		t.Error("expected plain error not to be an AppError")
	}
}

func TestErrorCode_Method(t *testing.T) {
	var coded interface{ ErrorCode() string }

	wrapped := fmt.Errorf("sink: %w", DeliveryFailed("redis", stderrors.New("down")))
	if !stderrors.As(wrapped, &coded) || coded.ErrorCode() != string(ErrCodeDeliveryFailed) {
		t.Errorf("AppError code = %v", coded)
	}

	partial := &PartialError{Stage: "fan", Failures: []BranchFailure{{Branch: "kafka", Index: 1, Err: stderrors.New("x")}}}
	if partial.ErrorCode() != string(ErrCodePartialFailure) {
		t.Errorf("PartialError code = %q", partial.ErrorCode())
	}
}
