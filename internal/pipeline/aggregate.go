package pipeline

import (
	"time"

	"github.com/joescharf/forge/internal/models"
)

// Parts are the stage outputs of one run, in whatever state they ended up.
type Parts struct {
	Requirement   models.Requirement
	InitialCode   models.CodeArtifact
	Review        models.ReviewVerdict
	FinalCode     models.CodeArtifact
	Documentation string
	Tests         string
	Deployment    models.Deployment
	Iterations    int
	Termination   models.Termination
	Degradations  []models.Degradation
	Failures      []models.StageFailure
	Model         string
	StartedAt     time.Time
	CompletedAt   time.Time
}

// Aggregate assembles the result record. Missing collections become empty
// ones so every field of the result is present when serialized.
func Aggregate(p Parts) models.PipelineResult {
	req := p.Requirement
	req.Structured.Features = orEmpty(req.Structured.Features)
	req.Structured.Constraints = orEmpty(req.Structured.Constraints)
	req.Structured.EdgeCases = orEmpty(req.Structured.EdgeCases)

	review := p.Review
	if review.Findings == nil {
		review.Findings = []models.Finding{}
	}
	review.Suggestions = orEmpty(review.Suggestions)

	deploy := models.Deployment{Script: p.Deployment.Script, Metadata: make(map[string]string, len(p.Deployment.Metadata))}
	for k, v := range p.Deployment.Metadata {
		deploy.Metadata[k] = v
	}

	degradations := p.Degradations
	if degradations == nil {
		degradations = []models.Degradation{}
	}
	failures := p.Failures
	if failures == nil {
		failures = []models.StageFailure{}
	}

	return models.PipelineResult{
		Requirement:   req,
		InitialCode:   p.InitialCode,
		Review:        review,
		FinalCode:     p.FinalCode,
		Documentation: p.Documentation,
		Tests:         p.Tests,
		Deployment:    deploy,
		Iterations:    p.Iterations,
		Termination:   p.Termination,
		Degradations:  degradations,
		Failures:      failures,
		Model:         p.Model,
		StartedAt:     p.StartedAt,
		CompletedAt:   p.CompletedAt,
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
