package filter

import (
	"context"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/report"
)

// Pipeline runs its stages in order, feeding each stage the output of the
// previous one. Stage i+1 starts only after stage i completed.
//
// The first stage that fails or reports an incomplete result ends the
// pipeline: later stages are not invoked and that stage's result, with its
// error wrapped in the stage name, becomes the pipeline's result. An empty
// input set succeeds without invoking any stage; an empty set produced by a
// stage is passed on to the next one.
type Pipeline struct {
	name   string
	stages []Filter
}

// NewPipeline creates a pipeline of stages. An empty pipeline passes input through.
func NewPipeline(name string, stages ...Filter) *Pipeline {
	return &Pipeline{name: name, stages: append([]Filter(nil), stages...)}
}

func (p *Pipeline) Name() string { return p.name }

// Stages returns a copy of the pipeline's stages.
func (p *Pipeline) Stages() []Filter { return append([]Filter(nil), p.stages...) }

func (p *Pipeline) FilterReports(ctx context.Context, reports report.Set, done *Token) {
	if reports.IsEmpty() {
		done.Succeed(reports)
		return
	}
	p.runStage(ctx, 0, reports, done)
}

func (p *Pipeline) runStage(ctx context.Context, i int, input report.Set, done *Token) {
	if i == len(p.stages) {
		done.Succeed(input)
		return
	}

	stage := p.stages[i]
	if err := ctx.Err(); err != nil {
		done.Partial(input, apperrors.AtStage(stage.Name(), apperrors.Cancelled(err)))
		return
	}

	Invoke(ctx, stage, input, func(r Result) {
		if !r.OK() {
			r.Err = apperrors.AtStage(stage.Name(), r.Err)
			done.Complete(r)
			return
		}
		if i+1 == len(p.stages) {
			done.Complete(r)
			return
		}
		p.runStage(ctx, i+1, r.Reports, done)
	})
}
