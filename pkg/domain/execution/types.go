// Package execution defines the Run aggregate and the execution log of
// AutoFlow workflow runs.
package execution

// Status represents the current state of a workflow run.
type Status string

const (
	// StatusPending indicates the run is created but not yet started.
	StatusPending Status = "pending"
	// StatusRunning indicates the run is in progress.
	StatusRunning Status = "running"
	// StatusCompleted indicates every entry point was processed. Individual
	// nodes may still have failed.
	StatusCompleted Status = "completed"
	// StatusCancelled indicates the run was stopped by context cancellation.
	StatusCancelled Status = "cancelled"
	// StatusFailed indicates the run was aborted by an engine error.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if the status represents a finished run.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Phase is the kind of an execution log entry.
type Phase string

const (
	PhaseStart    Phase = "start"
	PhaseComplete Phase = "complete"
	PhaseError    Phase = "error"
)
