// Package types defines core domain identifiers and value types for AutoFlow.
package types

import "github.com/google/uuid"

// Identifier prefixes. Generated IDs take the form "<prefix>-<uuid>".
const (
	NodeIDPrefix       = "node"
	ConnectionIDPrefix = "conn"
	WorkflowIDPrefix   = "workflow"
	LogIDPrefix        = "log"
	RunIDPrefix        = "run"
)

// WorkflowID is a unique identifier for a saved workflow.
type WorkflowID string

// NodeID is a unique identifier for a node within a workflow.
type NodeID string

// ConnectionID is a unique identifier for a connection within a workflow.
type ConnectionID string

// LogID identifies a single execution log entry.
type LogID string

// RunID identifies one execution of a workflow.
type RunID string

func newPrefixed(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// NewWorkflowID generates a new unique WorkflowID.
func NewWorkflowID() WorkflowID {
	return WorkflowID(newPrefixed(WorkflowIDPrefix))
}

// NewNodeID generates a new unique NodeID.
func NewNodeID() NodeID {
	return NodeID(newPrefixed(NodeIDPrefix))
}

// NewConnectionID generates a new unique ConnectionID.
func NewConnectionID() ConnectionID {
	return ConnectionID(newPrefixed(ConnectionIDPrefix))
}

// NewLogID generates a new unique LogID.
func NewLogID() LogID {
	return LogID(newPrefixed(LogIDPrefix))
}

// NewRunID generates a new unique RunID.
func NewRunID() RunID {
	return RunID(newPrefixed(RunIDPrefix))
}

// String returns the string representation of a WorkflowID.
func (id WorkflowID) String() string { return string(id) }

// IsZero returns true if the WorkflowID is the zero value.
func (id WorkflowID) IsZero() bool { return id == "" }

// String returns the string representation of a NodeID.
func (id NodeID) String() string { return string(id) }

// String returns the string representation of a ConnectionID.
func (id ConnectionID) String() string { return string(id) }

// String returns the string representation of a LogID.
func (id LogID) String() string { return string(id) }

// String returns the string representation of a RunID.
func (id RunID) String() string { return string(id) }
