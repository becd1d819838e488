package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/codeharness/pkg/models"
)

// RunStore handles run-related persistence operations.
type RunStore interface {
	CreateRun(r *Run) error
	FinishRun(id string, status RunStatus, finishedAt time.Time) error
	GetRun(id string) (*Run, error)
	FindRun(prefix string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
	PurgeOldRuns(olderThan time.Duration) (int64, error)
}

// ResultStore handles task result persistence operations.
type ResultStore interface {
	RecordTaskResult(ctx context.Context, runID string, res models.TaskResult) error
	ListTaskResults(runID string) ([]TaskRecord, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// HistoryStore defines the interface for run history persistence.
type HistoryStore interface {
	io.Closer
	Migrator
	RunStore
	ResultStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ HistoryStore = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
	_ RunStore     = (*DB)(nil)
	_ ResultStore  = (*DB)(nil)
)
