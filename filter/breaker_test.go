package filter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/filtertest"
)

func invoke(t *testing.T, f filter.Filter) filter.Result {
	t.Helper()
	capture := filtertest.NewCapture()
	filter.Invoke(context.Background(), f, filtertest.Reports(t, "r1"), capture.Done)
	return capture.Wait(t, waitFor)
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner, attempts := flaky(100, apperrors.DeliveryFailed("redis", errors.New("down")))
	var transitions []string
	b := filter.WithCircuitBreaker(inner, filter.BreakerConfig{
		MaxFailures: 3,
		OpenTimeout: time.Hour,
		OnStateChange: func(name string, from, to filter.BreakerState) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})

	for i := 0; i < 3; i++ {
		if res := invoke(t, b); !apperrors.IsCode(res.Err, apperrors.ErrCodeDeliveryFailed) {
			t.Fatalf("call %d: err = %v", i, res.Err)
		}
	}
	if b.State() != filter.BreakerOpen {
		t.Fatalf("state = %s, want open", b.State())
	}

	res := invoke(t, b)
	if !apperrors.IsCode(res.Err, apperrors.ErrCodeCircuitOpen) {
		t.Fatalf("err = %v, want CIRCUIT_OPEN", res.Err)
	}
	if apperrors.IsRetryable(res.Err) {
		t.Error("open circuit must not be retryable")
	}
	if attempts.Load() != 3 {
		t.Errorf("inner called %d times, want 3", attempts.Load())
	}
	if len(transitions) != 1 || transitions[0] != "flaky:closed->open" {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	inner, _ := flaky(2, errors.New("blip"))
	b := filter.WithCircuitBreaker(inner, filter.BreakerConfig{MaxFailures: 3, OpenTimeout: time.Hour})

	invoke(t, b)
	invoke(t, b)
	if res := invoke(t, b); !res.OK() {
		t.Fatalf("third call: %v", res.Err)
	}
	if b.State() != filter.BreakerClosed {
		t.Fatalf("state = %s", b.State())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	inner, _ := flaky(2, errors.New("down"))
	b := filter.WithCircuitBreaker(inner, filter.BreakerConfig{MaxFailures: 2, OpenTimeout: 20 * time.Millisecond})

	invoke(t, b)
	invoke(t, b)
	if b.State() != filter.BreakerOpen {
		t.Fatalf("state = %s, want open", b.State())
	}

	time.Sleep(30 * time.Millisecond)
	if b.State() != filter.BreakerHalfOpen {
		t.Fatalf("state = %s, want half-open", b.State())
	}
	if res := invoke(t, b); !res.OK() {
		t.Fatalf("probe failed: %v", res.Err)
	}
	if b.State() != filter.BreakerClosed {
		t.Fatalf("state = %s, want closed after probe", b.State())
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	inner, _ := flaky(100, errors.New("down"))
	b := filter.WithCircuitBreaker(inner, filter.BreakerConfig{MaxFailures: 1, OpenTimeout: 20 * time.Millisecond})

	invoke(t, b)
	time.Sleep(30 * time.Millisecond)
	invoke(t, b)
	if b.State() != filter.BreakerOpen {
		t.Fatalf("state = %s, want open after failed probe", b.State())
	}
}

func TestCircuitBreaker_IgnoresCancelledCalls(t *testing.T) {
	inner, _ := flaky(100, errors.New("down"))
	b := filter.WithCircuitBreaker(inner, filter.BreakerConfig{MaxFailures: 1, OpenTimeout: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	capture := filtertest.NewCapture()
	filter.Invoke(ctx, b, filtertest.Reports(t, "r1"), capture.Done)
	capture.Wait(t, waitFor)

	if b.State() != filter.BreakerClosed {
		t.Fatalf("state = %s, cancelled call should not count", b.State())
	}
}

func TestCircuitBreaker_CancelledProbeFreesSlot(t *testing.T) {
	inner, attempts := flaky(1, errors.New("down"))
	b := filter.WithCircuitBreaker(inner, filter.BreakerConfig{MaxFailures: 1, OpenTimeout: 20 * time.Millisecond})

	invoke(t, b)
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	capture := filtertest.NewCapture()
	filter.Invoke(ctx, b, filtertest.Reports(t, "r1"), capture.Done)
	capture.Wait(t, waitFor)
	if b.State() != filter.BreakerHalfOpen {
		t.Fatalf("state = %s, want half-open after cancelled probe", b.State())
	}

	if res := invoke(t, b); !res.OK() {
		t.Fatalf("next probe: %v", res.Err)
	}
	if b.State() != filter.BreakerClosed {
		t.Fatalf("state = %s, want closed", b.State())
	}
	if attempts.Load() != 3 {
		t.Errorf("inner called %d times, want 3", attempts.Load())
	}
}
