package workflow

import (
	"fmt"

	"github.com/dshills/autoflow/pkg/domain/types"
)

// ConnectionType controls when a connection is followed during a run.
type ConnectionType string

const (
	// ConnectionStandard is followed when the source succeeds.
	ConnectionStandard ConnectionType = "standard"
	// ConnectionConditional is followed when the source succeeds. No predicate
	// is attached to the connection itself.
	ConnectionConditional ConnectionType = "conditional"
	// ConnectionError is followed only when the source fails.
	ConnectionError ConnectionType = "error"
)

// Connection is a directed link between two nodes.
type Connection struct {
	ID           types.ConnectionID `json:"id" yaml:"id"`
	SourceID     types.NodeID       `json:"sourceId" yaml:"sourceId"`
	TargetID     types.NodeID       `json:"targetId" yaml:"targetId"`
	SourceHandle string             `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string             `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Type         ConnectionType     `json:"type,omitempty" yaml:"type,omitempty"`
}

// EffectiveType returns the connection type, treating an empty type as standard.
func (c Connection) EffectiveType() ConnectionType {
	if c.Type == "" {
		return ConnectionStandard
	}
	return c.Type
}

// FollowsOnSuccess reports whether the target runs after the source succeeds.
func (c Connection) FollowsOnSuccess() bool {
	t := c.EffectiveType()
	return t == ConnectionStandard || t == ConnectionConditional
}

// FollowsOnError reports whether the target runs after the source fails.
func (c Connection) FollowsOnError() bool {
	return c.EffectiveType() == ConnectionError
}

// Validate checks that the connection is structurally valid
func (c Connection) Validate() error {
	if c.SourceID == "" {
		return fmt.Errorf("%w: source node is required", ErrInvalidConnection)
	}
	if c.TargetID == "" {
		return fmt.Errorf("%w: target node is required", ErrInvalidConnection)
	}
	switch c.EffectiveType() {
	case ConnectionStandard, ConnectionConditional, ConnectionError:
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidConnection, c.Type)
	}
}
