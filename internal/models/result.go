package models

import "time"

// Stage names one discrete step of the pipeline.
type Stage string

const (
	StageStructure     Stage = "structure"
	StageGenerate      Stage = "generate"
	StageReview        Stage = "review"
	StageDocumentation Stage = "documentation"
	StageTests         Stage = "tests"
	StageDeployment    Stage = "deployment"
)

// Termination records how the review loop ended.
type Termination string

const (
	TerminationApproved     Termination = "approved"
	TerminationIterationCap Termination = "iteration_cap"
)

// Degradation records a stage whose model response could not be parsed and
// was replaced by a fallback value.
type Degradation struct {
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// StageFailure records a late stage that failed without aborting the run.
type StageFailure struct {
	Stage Stage  `json:"stage"`
	Error string `json:"error"`
}

// PipelineResult is the aggregate record handed to the caller at the end of a run.
type PipelineResult struct {
	Requirement   Requirement    `json:"requirements"`
	InitialCode   CodeArtifact   `json:"code"`
	Review        ReviewVerdict  `json:"review"`
	FinalCode     CodeArtifact   `json:"final_code"`
	Documentation string         `json:"documentation"`
	Tests         string         `json:"tests"`
	Deployment    Deployment     `json:"deployment"`
	Iterations    int            `json:"iterations"`
	Termination   Termination    `json:"termination"`
	Degradations  []Degradation  `json:"degradations"`
	Failures      []StageFailure `json:"failures"`
	Model         string         `json:"model"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   time.Time      `json:"completed_at"`
}

// Degraded reports whether any stage fell back to a placeholder value.
func (r PipelineResult) Degraded() bool {
	return len(r.Degradations) > 0 || len(r.Failures) > 0
}
