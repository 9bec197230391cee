package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/joescharf/forge/internal/agent"
	"github.com/joescharf/forge/internal/llm"
	"github.com/joescharf/forge/internal/models"
)

// lateResults holds the three late artifacts and their bookkeeping.
type lateResults struct {
	docs         string
	tests        string
	deploy       models.Deployment
	degradations []models.Degradation
	failures     []models.StageFailure
}

// slot is the private output of one late task.
type slot struct {
	stage models.Stage
	deg   *models.Degradation
	err   error
}

// lateStages produces documentation, tests and deployment from the final
// code. A failing task leaves its artifact empty and is recorded; only an
// auth error or cancellation of ctx aborts the run.
func (p *Pipeline) lateStages(ctx context.Context, code string, req models.StructuredRequirement) (lateResults, error) {
	var out lateResults
	slots := []*slot{
		{stage: models.StageDocumentation},
		{stage: models.StageTests},
		{stage: models.StageDeployment},
	}
	tasks := []func(context.Context) error{
		func(ctx context.Context) (err error) {
			out.docs, err = agent.Document(ctx, p.client, p.opts, code, req)
			return err
		},
		func(ctx context.Context) (err error) {
			out.tests, err = agent.Tests(ctx, p.client, p.opts, code, req)
			return err
		},
		func(ctx context.Context) (err error) {
			out.deploy, slots[2].deg, err = agent.Deploy(ctx, p.client, p.opts, code, req)
			return err
		},
	}

	run := func(ctx context.Context, i int) error {
		s := slots[i]
		ctx, span := tracer.Start(ctx, "pipeline."+string(s.stage))
		defer span.End()

		start := p.begin(s.stage, 0)
		if err := tasks[i](ctx); err != nil {
			span.RecordError(err)
			s.err = err
			se := p.fail(s.stage, 0, start, err)
			if llm.Fatal(err) {
				return se
			}
			return nil
		}
		p.finish(s.stage, 0, start, nil)
		return nil
	}

	if p.cfg.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i := range tasks {
			g.Go(func() error { return run(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return lateResults{}, err
		}
	} else {
		for i := range tasks {
			if err := run(ctx, i); err != nil {
				return lateResults{}, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return lateResults{}, err
	}

	for _, s := range slots {
		if s.deg != nil {
			out.degradations = append(out.degradations, *s.deg)
			p.degrade(*s.deg, 0)
		}
		if s.err != nil {
			out.failures = append(out.failures, models.StageFailure{Stage: s.stage, Error: s.err.Error()})
		}
	}
	if slots[2].err != nil {
		out.deploy = models.Deployment{Metadata: map[string]string{}}
	}
	return out, nil
}
