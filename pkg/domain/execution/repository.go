package execution

import (
	"context"
	"errors"

	"github.com/dshills/autoflow/pkg/domain/types"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunHistory persists finished runs together with their execution logs.
// Workflow repositories implement it optionally.
type RunHistory interface {
	// AppendRun stores a finished run. Runs are never modified afterwards.
	AppendRun(ctx context.Context, run *Run) error

	// ListRuns returns runs of a workflow, most recent first. A limit of 0
	// returns all runs.
	ListRuns(ctx context.Context, workflowID types.WorkflowID, limit int) ([]*Run, error)

	// LoadRun returns one run including its log.
	LoadRun(ctx context.Context, id types.RunID) (*Run, error)
}
