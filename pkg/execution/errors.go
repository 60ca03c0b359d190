package execution

import "errors"

var (
	// ErrEmptyWorkflow is returned by Run when the workflow has no nodes.
	ErrEmptyWorkflow = errors.New("workflow has no nodes")

	// ErrCycleDetected is recorded in the execution log when a branch reaches
	// a node that is already one of its ancestors.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrExecutionLimit aborts a run that executed more nodes than allowed.
	ErrExecutionLimit = errors.New("execution limit reached")

	// ErrRunInProgress is returned by Run while another run of the same engine
	// is active.
	ErrRunInProgress = errors.New("a run is already in progress")
)
