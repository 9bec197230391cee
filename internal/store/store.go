package store

import (
	"context"
	"errors"

	"github.com/joescharf/forge/internal/models"
)

// ErrNotFound is wrapped by lookups of ids that do not exist.
var ErrNotFound = errors.New("not found")

// RunListFilter specifies filters for listing runs.
type RunListFilter struct {
	Status models.RunStatus
	Limit  int
}

// Store defines the persistence interface for forge run history.
type Store interface {
	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, filter RunListFilter) ([]*models.Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
