package filter

import (
	"context"
	"fmt"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/report"
)

// Predicate decides which branch of a Conditional runs.
type Predicate func(ctx context.Context, reports report.Set) (bool, error)

// Conditional evaluates its predicate once, synchronously, then runs either
// the then branch or the otherwise branch. A nil branch passes input through.
// A predicate that errors or panics fails the conditional; no branch runs.
type Conditional struct {
	name      string
	predicate Predicate
	then      Filter
	otherwise Filter
}

// NewConditional creates a conditional composite.
func NewConditional(name string, predicate Predicate, then, otherwise Filter) *Conditional {
	return &Conditional{name: name, predicate: predicate, then: then, otherwise: otherwise}
}

func (c *Conditional) Name() string { return c.name }

func (c *Conditional) FilterReports(ctx context.Context, reports report.Set, done *Token) {
	if reports.IsEmpty() {
		done.Succeed(reports)
		return
	}

	matched, err := c.evaluate(ctx, reports)
	if err != nil {
		fault := apperrors.PredicateFault(c.name, err)
		ObserverFrom(ctx).Violation(Violation{Kind: ViolationPredicateFault, Stage: c.name, Err: fault})
		done.Fail(fault)
		return
	}

	branch := c.otherwise
	if matched {
		branch = c.then
	}
	if branch == nil {
		done.Succeed(reports)
		return
	}

	Invoke(ctx, branch, reports, func(r Result) {
		r.Err = apperrors.AtStage(branch.Name(), r.Err)
		done.Complete(r)
	})
}

func (c *Conditional) evaluate(ctx context.Context, reports report.Set) (matched bool, err error) {
	if c.predicate == nil {
		return false, fmt.Errorf("no predicate configured")
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("predicate panic: %v", p)
		}
	}()
	return c.predicate(ctx, reports)
}
