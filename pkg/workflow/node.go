package workflow

import (
	"slices"

	"github.com/dshills/autoflow/pkg/catalog"
	"github.com/dshills/autoflow/pkg/domain/types"
)

// Node is one step of a workflow, instantiated from a catalog definition.
// The (Type, Category) pair always resolves to a definition.
type Node struct {
	ID            types.NodeID     `json:"id" yaml:"id"`
	Type          string           `json:"type" yaml:"type"`
	Category      catalog.Category `json:"category" yaml:"category"`
	Label         string           `json:"label" yaml:"label"`
	Position      Position         `json:"position" yaml:"position"`
	Size          Size             `json:"size" yaml:"size"`
	Enabled       bool             `json:"enabled" yaml:"enabled"`
	Configuration types.Config     `json:"configuration" yaml:"configuration"`
	Inputs        []string         `json:"inputs" yaml:"inputs"`
	Outputs       []string         `json:"outputs" yaml:"outputs"`
	Status        Status           `json:"status" yaml:"status"`
	TestResult    types.Payload    `json:"testResult,omitempty" yaml:"testResult,omitempty"`
}

// NewNode instantiates a node from a definition: fresh id, definition label,
// default size, enabled, idle, and configuration seeded from field defaults.
func NewNode(def catalog.NodeDefinition, pos Position) Node {
	inputs, outputs := def.Ports()
	return Node{
		ID:            types.NewNodeID(),
		Type:          def.Type,
		Category:      def.Category,
		Label:         def.Label,
		Position:      pos,
		Size:          Size{Width: DefaultNodeWidth, Height: DefaultNodeHeight},
		Enabled:       true,
		Configuration: def.Defaults(),
		Inputs:        inputs,
		Outputs:       outputs,
		Status:        StatusIdle,
	}
}

// IsTrigger reports whether the node belongs to the trigger category.
func (n Node) IsTrigger() bool {
	return n.Category == catalog.CategoryTrigger
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := n
	out.Configuration = n.Configuration.Clone()
	out.Inputs = slices.Clone(n.Inputs)
	out.Outputs = slices.Clone(n.Outputs)
	out.TestResult = n.TestResult.Clone()
	return out
}
