package filter

import (
	"context"

	"github.com/kbukum/reportflow/logger"
	"github.com/kbukum/reportflow/observability"
)

// ViolationKind classifies a broken contract.
type ViolationKind string

const (
	ViolationDuplicateCompletion ViolationKind = "duplicate_completion"
	ViolationMissingCompletion   ViolationKind = "missing_completion"
	ViolationPredicateFault      ViolationKind = "predicate_fault"
	ViolationPanic               ViolationKind = "panic"
)

// Violation is a diagnostic event: a filter or predicate misbehaved.
// Violations are reported, never propagated as results.
type Violation struct {
	Kind  ViolationKind
	Stage string
	Err   error
}

// Observer receives violations. Implementations must be safe for concurrent use.
type Observer interface {
	Violation(v Violation)
}

// NopObserver discards violations.
type NopObserver struct{}

func (NopObserver) Violation(Violation) {}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Violation)

func (f ObserverFunc) Violation(v Violation) { f(v) }

// Observers fans a violation out to every non-nil observer.
func Observers(obs ...Observer) Observer {
	list := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return multiObserver(list)
}

type multiObserver []Observer

func (m multiObserver) Violation(v Violation) {
	for _, o := range m {
		o.Violation(v)
	}
}

// LogObserver logs violations at error level.
func LogObserver(log *logger.Logger) Observer {
	return ObserverFunc(func(v Violation) {
		fields := logger.Fields(logger.FieldKind, string(v.Kind), logger.FieldStage, v.Stage)
		if v.Err != nil {
			fields[logger.FieldError] = v.Err.Error()
		}
		log.Error("filter contract violation", fields)
	})
}

// MetricsObserver counts violations by kind and stage.
func MetricsObserver(m *observability.Metrics) Observer {
	return ObserverFunc(func(v Violation) {
		m.RecordViolation(context.Background(), string(v.Kind), v.Stage)
	})
}

type observerKey struct{}

// WithObserver attaches an Observer to ctx for every Invoke below it.
func WithObserver(ctx context.Context, o Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, o)
}

// ObserverFrom returns the Observer attached to ctx, or a NopObserver.
func ObserverFrom(ctx context.Context) Observer {
	if o, ok := ctx.Value(observerKey{}).(Observer); ok && o != nil {
		return o
	}
	return NopObserver{}
}
