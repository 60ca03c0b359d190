package workflow

import (
	"errors"
)

// Common workflow errors
var (
	// ErrWorkflowNotFound is returned when a saved workflow cannot be found
	ErrWorkflowNotFound = errors.New("workflow not found")
	// ErrNodeNotFound is returned when a node id does not exist in the graph
	ErrNodeNotFound = errors.New("node not found")
	// ErrConnectionNotFound is returned when a connection id does not exist in the graph
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrInvalidConnection is returned for connections with an unknown type
	ErrInvalidConnection = errors.New("invalid connection")
)

// Default geometry of a freshly added node.
const (
	DefaultNodeWidth  = 180
	DefaultNodeHeight = 80
)

// Status is the per-run state of a node.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is a node's rendered size.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}
