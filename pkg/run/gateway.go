package run

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smilemakc/toolflow/pkg/workflow"
)

// FileRow is one row of the file table: an artifact uuid belonging to a
// run's node, with an expiry rule (nil for output-node artifacts, which
// never expire; set for intermediates, per spec.md's retention rule) and
// the row count the artifact was written with.
type FileRow struct {
	RunID       uuid.UUID
	NodeID      string
	UUID        uuid.UUID
	RowsWritten int
	ExpiresAt   *time.Time
}

// Gateway is the persistence surface pkg/run needs. internal/storage
// implements it; pkg/run only depends on this interface, never on a
// concrete storage package, mirroring the repository pattern the engine
// layer uses upstream.
type Gateway interface {
	LoadWorkflow(ctx context.Context, id uuid.UUID) (*workflow.Workflow, error)

	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	CreateRun(ctx context.Context, r *Run) error
	UpdateRunStatus(ctx context.Context, r *Run) error

	ListFiles(ctx context.Context, runID uuid.UUID) ([]FileRow, error)
	InsertFile(ctx context.Context, f FileRow) error
	DeleteFile(ctx context.Context, runID uuid.UUID, nodeID string) error

	// RemoveArtifact deletes the on-disk artifact for uuid, best-effort;
	// callers log but do not fail the run on error.
	RemoveArtifact(id uuid.UUID) error
}
