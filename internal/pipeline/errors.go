package pipeline

import (
	"errors"
	"fmt"

	"github.com/joescharf/forge/internal/models"
)

var (
	// ErrStageFailed matches every *StageError via errors.Is.
	ErrStageFailed = errors.New("stage failed")

	// ErrEmptyRequirement is returned before any model call when the
	// requirement text is blank.
	ErrEmptyRequirement = errors.New("requirement text is empty")
)

// StageError is the single top-level error of an aborted run. It names the
// stage that failed and wraps the underlying model error.
type StageError struct {
	Stage models.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Is(target error) bool { return target == ErrStageFailed }

// FailedStage reports the stage that aborted the run.
func (e *StageError) FailedStage() models.Stage { return e.Stage }

func stageError(stage models.Stage, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}
