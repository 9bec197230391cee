package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joescharf/forge/internal/agent"
	"github.com/joescharf/forge/internal/models"
)

// LoopResult is the outcome of the review loop.
type LoopResult struct {
	Final        models.CodeArtifact
	Verdict      models.ReviewVerdict
	History      []models.ReviewVerdict
	Iterations   int
	Termination  models.Termination
	Degradations []models.Degradation
}

// ReviewLoop reviews code and regenerates it with the accumulated feedback
// until a review approves it or MaxIterations reviews have been made. The
// initial code counts as the first generation, so an unapproved run makes
// MaxIterations generator calls in total. Reaching the cap is not an error.
func (p *Pipeline) ReviewLoop(ctx context.Context, req models.StructuredRequirement, initial models.CodeArtifact) (LoopResult, error) {
	ctx, span := tracer.Start(ctx, "pipeline.ReviewLoop")
	defer span.End()

	var res LoopResult
	code := initial
	if code.Iteration == 0 {
		code.Iteration = 1
	}

	for iteration := code.Iteration; ; iteration++ {
		verdict, err := p.review(ctx, code.Source, req, iteration, &res.Degradations)
		if err != nil {
			return LoopResult{}, err
		}
		res.History = append(res.History, verdict)
		res.Verdict = verdict
		res.Iterations = iteration

		if verdict.Approved() || iteration >= p.cfg.MaxIterations {
			res.Termination = models.TerminationApproved
			if !verdict.Approved() {
				res.Termination = models.TerminationIterationCap
			}
			res.Final = code.WithVersion(models.CodeVersionFinal)
			span.SetAttributes(
				attribute.String("forge.termination", string(res.Termination)),
				attribute.Int("forge.iterations", iteration),
			)
			return res, nil
		}

		next, err := p.generate(ctx, agent.GenerateInput{
			Requirement:  req,
			Feedback:     agent.FormatFeedback(res.History),
			PreviousCode: code.Source,
		}, iteration+1)
		if err != nil {
			return LoopResult{}, err
		}
		code = models.CodeArtifact{Source: next, Version: models.CodeVersionRevision, Iteration: iteration + 1}
	}
}

func (p *Pipeline) review(ctx context.Context, code string, req models.StructuredRequirement, iteration int, degradations *[]models.Degradation) (models.ReviewVerdict, error) {
	ctx, span := tracer.Start(ctx, "pipeline.review", trace.WithAttributes(attribute.Int("forge.iteration", iteration)))
	defer span.End()

	start := p.begin(models.StageReview, iteration)
	verdict, deg, err := agent.Review(ctx, p.client, p.opts, code, req)
	if err != nil {
		span.RecordError(err)
		return models.ReviewVerdict{}, p.fail(models.StageReview, iteration, start, err)
	}
	if deg != nil {
		*degradations = append(*degradations, *deg)
		p.degrade(*deg, iteration)
	}
	span.SetAttributes(
		attribute.String("forge.review_status", string(verdict.Status)),
		attribute.Float64("forge.review_score", verdict.Score),
	)
	p.finish(models.StageReview, iteration, start, &verdict)
	return verdict, nil
}
