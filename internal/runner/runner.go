// Package runner executes pipeline runs on behalf of the CLI, HTTP and MCP
// surfaces and records every run, completed or failed, in the store.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joescharf/forge/internal/agent"
	"github.com/joescharf/forge/internal/artifact"
	"github.com/joescharf/forge/internal/llm"
	"github.com/joescharf/forge/internal/models"
	"github.com/joescharf/forge/internal/pipeline"
	"github.com/joescharf/forge/internal/store"
)

// Request is one requested run. Zero fields take the runner's defaults.
type Request struct {
	Requirement   string `json:"requirement"`
	Language      string `json:"language,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// Uploader ships a run's artifacts somewhere durable.
type Uploader interface {
	Upload(ctx context.Context, runID string, files []artifact.File) ([]string, error)
}

// Runner binds a model client, default pipeline settings and an optional
// store. A nil store disables persistence.
type Runner struct {
	client   llm.Client
	defaults pipeline.Config
	store    store.Store
	uploader Uploader
	logger   *slog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithStore records runs in s.
func WithStore(s store.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithUploader enables artifact upload.
func WithUploader(u Uploader) Option {
	return func(r *Runner) { r.uploader = u }
}

// WithLogger sets the logger handed to every pipeline.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a runner. defaults is validated up front.
func New(client llm.Client, defaults pipeline.Config, opts ...Option) (*Runner, error) {
	if client == nil {
		return nil, errors.New("runner requires a model client")
	}
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{client: client, defaults: defaults, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Config returns the pipeline configuration req would run with.
func (r *Runner) Config(req Request) pipeline.Config {
	cfg := r.defaults
	if l := strings.TrimSpace(req.Language); l != "" {
		cfg.Language = strings.ToLower(l)
	}
	if req.MaxIterations != 0 {
		cfg.MaxIterations = req.MaxIterations
	}
	return cfg
}

// Execute runs one pipeline and records the outcome. Invalid requests
// return an error without a run. When the pipeline fails, the failed run is
// recorded and returned together with the pipeline error.
func (r *Runner) Execute(ctx context.Context, req Request, opts ...pipeline.Option) (*models.Run, error) {
	cfg := r.Config(req)
	p, err := pipeline.New(r.client, cfg, append([]pipeline.Option{pipeline.WithLogger(r.logger)}, opts...)...)
	if err != nil {
		return nil, err
	}

	res, runErr := p.Run(ctx, req.Requirement)
	if errors.Is(runErr, pipeline.ErrEmptyRequirement) {
		return nil, runErr
	}

	var run *models.Run
	if runErr != nil {
		run = models.NewFailedRun(cfg.Language, r.client.Name(), strings.TrimSpace(req.Requirement), runErr)
	} else {
		run = models.NewCompletedRun(cfg.Language, res)
	}

	if r.store != nil {
		// A canceled request context must not lose the record.
		if err := r.store.CreateRun(context.WithoutCancel(ctx), run); err != nil {
			r.logger.Error("record run failed", "error", err)
			if runErr == nil {
				return run, fmt.Errorf("record run: %w", err)
			}
		}
	}
	return run, runErr
}

// Files renders a completed run's artifacts.
func Files(run *models.Run) ([]artifact.File, error) {
	if run.Result == nil {
		return nil, fmt.Errorf("run %s has no result (status %s)", run.ID, run.Status)
	}
	return artifact.Files(*run.Result, agent.LookupLanguage(run.Language))
}

// Upload ships a completed run's artifacts with the configured uploader.
func (r *Runner) Upload(ctx context.Context, run *models.Run) ([]string, error) {
	if r.uploader == nil {
		return nil, errors.New("artifact upload is not configured (set s3.endpoint and s3.bucket)")
	}
	files, err := Files(run)
	if err != nil {
		return nil, err
	}
	id := run.ID
	if id == "" {
		id = "unsaved"
	}
	keys, err := r.uploader.Upload(ctx, id, files)
	if err != nil {
		return keys, err
	}
	r.logger.Info("artifacts uploaded", "run", id, "objects", len(keys))
	return keys, nil
}

// Store returns the runner's store, which may be nil.
func (r *Runner) Store() store.Store { return r.store }
