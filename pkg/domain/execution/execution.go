package execution

import (
	"fmt"
	"time"

	"github.com/dshills/autoflow/pkg/domain/types"
)

// Run records a single execution of a workflow. It is the root entity of
// the Run aggregate.
type Run struct {
	ID          types.RunID      `json:"id"`
	WorkflowID  types.WorkflowID `json:"workflowId,omitempty"`
	Status      Status           `json:"status"`
	StartedAt   time.Time        `json:"startedAt"`
	CompletedAt time.Time        `json:"completedAt,omitempty"`
	EntryPoints []types.NodeID   `json:"entryPoints"`
	Succeeded   int              `json:"succeeded"`
	Failed      int              `json:"failed"`
	Skipped     int              `json:"skipped"`
	Error       string           `json:"error,omitempty"`
	Logs        []LogEntry       `json:"logs"`
}

// NewRun creates a pending run for a workflow. An unsaved workflow has an
// empty id.
func NewRun(workflowID types.WorkflowID) *Run {
	return &Run{
		ID:         types.NewRunID(),
		WorkflowID: workflowID,
		Status:     StatusPending,
		StartedAt:  time.Now().UTC(),
		Logs:       []LogEntry{},
	}
}

// Start transitions the run from Pending to Running.
func (r *Run) Start(entryPoints []types.NodeID) error {
	if r.Status != StatusPending {
		return fmt.Errorf("cannot start run: expected status pending, got %s", r.Status)
	}
	r.Status = StatusRunning
	r.StartedAt = time.Now().UTC()
	r.EntryPoints = append([]types.NodeID(nil), entryPoints...)
	return nil
}

// Complete marks the run finished with the given log.
func (r *Run) Complete(logs []LogEntry) error {
	return r.finish(StatusCompleted, logs, "")
}

// Cancel marks the run stopped by cancellation.
func (r *Run) Cancel(logs []LogEntry, reason error) error {
	msg := ""
	if reason != nil {
		msg = reason.Error()
	}
	return r.finish(StatusCancelled, logs, msg)
}

// Fail marks the run aborted by an engine error.
func (r *Run) Fail(logs []LogEntry, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return r.finish(StatusFailed, logs, msg)
}

func (r *Run) finish(status Status, logs []LogEntry, msg string) error {
	if r.Status != StatusRunning {
		return fmt.Errorf("cannot mark run %s: expected status running, got %s", status, r.Status)
	}
	r.Status = status
	r.CompletedAt = time.Now().UTC()
	r.Error = msg
	r.Logs = append([]LogEntry{}, logs...)
	return nil
}

// Duration returns the total run time, or 0 while running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
