package models

import (
	"errors"
	"time"
)

// RunStatus represents the outcome of a recorded pipeline run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is a persisted pipeline invocation.
type Run struct {
	ID           string          `json:"id"`
	Requirement  string          `json:"requirement"`
	Title        string          `json:"title"`
	Language     string          `json:"language"`
	Status       RunStatus       `json:"status"`
	ReviewStatus ReviewStatus    `json:"review_status,omitempty"`
	ReviewScore  float64         `json:"review_score"`
	Iterations   int             `json:"iterations"`
	Termination  Termination     `json:"termination,omitempty"`
	Model        string          `json:"model"`
	FailedStage  Stage           `json:"failed_stage,omitempty"`
	Error        string          `json:"error,omitempty"`
	Result       *PipelineResult `json:"result,omitempty"` // nil for failed runs
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// NewCompletedRun summarizes a finished pipeline result as a run record.
func NewCompletedRun(language string, res PipelineResult) *Run {
	completed := res.CompletedAt
	return &Run{
		Requirement:  res.Requirement.Raw,
		Title:        res.Requirement.Structured.Title,
		Language:     language,
		Status:       RunStatusCompleted,
		ReviewStatus: res.Review.Status,
		ReviewScore:  res.Review.Score,
		Iterations:   res.Iterations,
		Termination:  res.Termination,
		Model:        res.Model,
		Result:       &res,
		CompletedAt:  &completed,
	}
}

// NewFailedRun records a run that aborted with err. The failed stage is
// taken from err when it carries one.
func NewFailedRun(language, model, requirement string, err error) *Run {
	now := time.Now().UTC()
	r := &Run{
		Requirement: requirement,
		Language:    language,
		Status:      RunStatusFailed,
		Model:       model,
		Error:       err.Error(),
		CompletedAt: &now,
	}
	var staged interface{ FailedStage() Stage }
	if errors.As(err, &staged) {
		r.FailedStage = staged.FailedStage()
	}
	return r
}
