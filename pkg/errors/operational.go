// Package errors wraps failures of engine and storage operations with the
// workflow and node they concern.
package errors

import (
	"fmt"
	"time"

	"github.com/dshills/autoflow/pkg/domain/types"
)

// OperationalError records which operation failed, on which workflow and
// node, and when.
type OperationalError struct {
	Operation  string           // What operation was being performed
	WorkflowID types.WorkflowID // Which workflow (empty for unsaved graphs)
	NodeID     types.NodeID     // Which node (if applicable)
	Timestamp  time.Time
	Attributes map[string]any
	Cause      error
}

// New wraps cause. Returns nil if cause is nil.
//
// Example:
//
//	if err != nil {
//	    return errors.New("loading workflow", id, "", err)
//	}
func New(operation string, workflowID types.WorkflowID, nodeID types.NodeID, cause error) error {
	if cause == nil {
		return nil
	}
	return &OperationalError{
		Operation:  operation,
		WorkflowID: workflowID,
		NodeID:     nodeID,
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

// WithAttrs wraps cause with additional attributes. Returns nil if cause is nil.
func WithAttrs(operation string, workflowID types.WorkflowID, nodeID types.NodeID, cause error, attrs map[string]any) error {
	if cause == nil {
		return nil
	}
	return &OperationalError{
		Operation:  operation,
		WorkflowID: workflowID,
		NodeID:     nodeID,
		Timestamp:  time.Now(),
		Attributes: attrs,
		Cause:      cause,
	}
}

// Error implements the error interface.
//
// Format: "operation: workflow={id} node={id}: {cause}". Empty ids are omitted.
func (e *OperationalError) Error() string {
	if e == nil {
		return "<nil OperationalError>"
	}

	msg := e.Operation
	if e.WorkflowID != "" {
		msg += fmt.Sprintf(": workflow=%s", e.WorkflowID)
	}
	if e.NodeID != "" {
		if e.WorkflowID == "" {
			msg += ":"
		}
		msg += fmt.Sprintf(" node=%s", e.NodeID)
	}
	return fmt.Sprintf("%s: %v", msg, e.Cause)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
