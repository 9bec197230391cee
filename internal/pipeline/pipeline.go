// Package pipeline sequences the agents into one run: structure the
// requirement, generate and review code until approved or capped, then
// produce documentation, tests and a deployment script from the final code.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joescharf/forge/internal/agent"
	"github.com/joescharf/forge/internal/llm"
	"github.com/joescharf/forge/internal/models"
)

// Pipeline runs requirements through the agents using one model client.
// A Pipeline holds no per-run state and is safe for concurrent runs.
type Pipeline struct {
	client   llm.Client
	cfg      Config
	opts     agent.Options
	logger   *slog.Logger
	observer Observer
	obsMu    sync.Mutex
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithObserver registers a progress callback.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// New validates cfg and returns a pipeline bound to client.
func New(client llm.Client, cfg Config, options ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		client: client,
		cfg:    cfg,
		opts: agent.Options{
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
			Language:    agent.LookupLanguage(cfg.Language),
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range options {
		o(p)
	}
	return p, nil
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Language returns the resolved target language profile.
func (p *Pipeline) Language() agent.Language { return p.opts.Language }

// Run executes one full pipeline. It returns either a complete (possibly
// degraded) result or a *StageError naming the early stage that failed.
func (p *Pipeline) Run(ctx context.Context, raw string) (models.PipelineResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.PipelineResult{}, ErrEmptyRequirement
	}

	ctx, span := tracer.Start(ctx, "pipeline.Run",
		trace.WithAttributes(
			attribute.String("forge.model", p.client.Name()),
			attribute.String("forge.language", p.opts.Language.Name),
			attribute.Int("forge.max_iterations", p.cfg.MaxIterations),
		),
	)
	defer span.End()

	started := time.Now().UTC()
	p.logger.Info("pipeline started", "model", p.client.Name(), "language", p.opts.Language.Name)

	result, err := p.run(ctx, raw, started)
	if err != nil {
		runsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("pipeline failed", "error", err, "duration", time.Since(started))
		return models.PipelineResult{}, err
	}

	runsTotal.WithLabelValues(string(result.Termination)).Inc()
	reviewIterations.Observe(float64(result.Iterations))
	span.SetAttributes(
		attribute.String("forge.termination", string(result.Termination)),
		attribute.Int("forge.iterations", result.Iterations),
		attribute.Float64("forge.review_score", result.Review.Score),
	)
	p.logger.Info("pipeline finished",
		"termination", result.Termination,
		"iterations", result.Iterations,
		"score", result.Review.Score,
		"degradations", len(result.Degradations),
		"failures", len(result.Failures),
		"duration", time.Since(started),
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, raw string, started time.Time) (models.PipelineResult, error) {
	var degradations []models.Degradation

	structured, err := p.structure(ctx, raw, &degradations)
	if err != nil {
		return models.PipelineResult{}, err
	}
	req := models.Requirement{Raw: raw, Structured: structured}

	initial, err := p.generate(ctx, agent.GenerateInput{Requirement: structured}, 1)
	if err != nil {
		return models.PipelineResult{}, err
	}
	initialCode := models.CodeArtifact{Source: initial, Version: models.CodeVersionInitial, Iteration: 1}

	loop, err := p.ReviewLoop(ctx, structured, initialCode)
	if err != nil {
		return models.PipelineResult{}, err
	}
	degradations = append(degradations, loop.Degradations...)

	late, err := p.lateStages(ctx, loop.Final.Source, structured)
	if err != nil {
		return models.PipelineResult{}, err
	}
	degradations = append(degradations, late.degradations...)

	return Aggregate(Parts{
		Requirement:   req,
		InitialCode:   initialCode,
		Review:        loop.Verdict,
		FinalCode:     loop.Final,
		Documentation: late.docs,
		Tests:         late.tests,
		Deployment:    late.deploy,
		Iterations:    loop.Iterations,
		Termination:   loop.Termination,
		Degradations:  degradations,
		Failures:      late.failures,
		Model:         p.client.Name(),
		StartedAt:     started,
		CompletedAt:   time.Now().UTC(),
	}), nil
}

func (p *Pipeline) structure(ctx context.Context, raw string, degradations *[]models.Degradation) (models.StructuredRequirement, error) {
	ctx, span := tracer.Start(ctx, "pipeline.structure")
	defer span.End()

	start := p.begin(models.StageStructure, 0)
	req, deg, err := agent.Structure(ctx, p.client, p.opts, raw)
	if err != nil {
		span.RecordError(err)
		return models.StructuredRequirement{}, p.fail(models.StageStructure, 0, start, err)
	}
	if deg != nil {
		*degradations = append(*degradations, *deg)
		p.degrade(*deg, 0)
	}
	p.finish(models.StageStructure, 0, start, nil)
	return req, nil
}

func (p *Pipeline) generate(ctx context.Context, in agent.GenerateInput, iteration int) (string, error) {
	ctx, span := tracer.Start(ctx, "pipeline.generate", trace.WithAttributes(attribute.Int("forge.iteration", iteration)))
	defer span.End()

	start := p.begin(models.StageGenerate, iteration)
	code, err := agent.Generate(ctx, p.client, p.opts, in)
	if err != nil {
		span.RecordError(err)
		return "", p.fail(models.StageGenerate, iteration, start, err)
	}
	p.finish(models.StageGenerate, iteration, start, nil)
	return code, nil
}

// emit delivers ev to the observer, one event at a time.
func (p *Pipeline) emit(ev Event) {
	if p.observer == nil {
		return
	}
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	p.observer(ev)
}

func (p *Pipeline) begin(stage models.Stage, iteration int) time.Time {
	p.logger.Debug("stage started", "stage", stage, "iteration", iteration)
	p.emit(Event{Stage: stage, Kind: EventStarted, Iteration: iteration})
	return time.Now()
}

func (p *Pipeline) finish(stage models.Stage, iteration int, start time.Time, verdict *models.ReviewVerdict) {
	d := time.Since(start)
	p.logger.Debug("stage finished", "stage", stage, "iteration", iteration, "duration", d)
	p.emit(Event{Stage: stage, Kind: EventFinished, Iteration: iteration, Verdict: verdict, Duration: d})
}

func (p *Pipeline) degrade(deg models.Degradation, iteration int) {
	stageDegradations.WithLabelValues(string(deg.Stage)).Inc()
	p.logger.Warn("stage degraded", "stage", deg.Stage, "iteration", iteration, "reason", deg.Reason)
	p.emit(Event{Stage: deg.Stage, Kind: EventDegraded, Iteration: iteration, Reason: deg.Reason})
}

// fail reports a stage failure and wraps err as a *StageError.
func (p *Pipeline) fail(stage models.Stage, iteration int, start time.Time, err error) error {
	d := time.Since(start)
	p.logger.Warn("stage failed", "stage", stage, "iteration", iteration, "class", llm.Class(err), "error", err)
	p.emit(Event{Stage: stage, Kind: EventFailed, Iteration: iteration, Err: err, Duration: d})
	return stageError(stage, err)
}
