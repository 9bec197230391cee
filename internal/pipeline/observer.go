package pipeline

import (
	"time"

	"github.com/joescharf/forge/internal/models"
)

// EventKind is the type of a progress event.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventFinished EventKind = "finished"
	EventDegraded EventKind = "degraded"
	EventFailed   EventKind = "failed"
)

// Event reports progress of a run. Iteration is set for generate and review
// events; Verdict only on a finished review.
type Event struct {
	Stage     models.Stage
	Kind      EventKind
	Iteration int
	Verdict   *models.ReviewVerdict
	Reason    string
	Err       error
	Duration  time.Duration
}

// Observer receives progress events. Calls are serialized by the pipeline,
// so an observer needs no locking of its own.
type Observer func(Event)
