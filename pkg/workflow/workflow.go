package workflow

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dshills/autoflow/pkg/catalog"
	"github.com/dshills/autoflow/pkg/domain/types"
)

// Workflow is the aggregate of a graph of nodes and connections plus its
// library metadata.
type Workflow struct {
	ID          types.WorkflowID `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string         `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt   time.Time        `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	LastRun     *time.Time       `json:"lastRun,omitempty" yaml:"lastRun,omitempty"`
	RunCount    int              `json:"runCount" yaml:"runCount"`
	IsActive    bool             `json:"isActive" yaml:"isActive"`
	Nodes       []Node           `json:"nodes" yaml:"nodes"`
	Connections []Connection     `json:"connections" yaml:"connections"`
}

// SavedWorkflow is the index entry of a persisted workflow.
type SavedWorkflow struct {
	ID          types.WorkflowID `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string         `json:"tags" yaml:"tags"`
	CreatedAt   time.Time        `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt" yaml:"updatedAt"`
	LastRun     *time.Time       `json:"lastRun,omitempty" yaml:"lastRun,omitempty"`
	RunCount    int              `json:"runCount" yaml:"runCount"`
	IsActive    bool             `json:"isActive" yaml:"isActive"`
}

// New creates an empty, unsaved workflow.
func New(name, description string) *Workflow {
	now := time.Now().UTC()
	return &Workflow{
		Name:        name,
		Description: description,
		Tags:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
		Nodes:       []Node{},
		Connections: []Connection{},
	}
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := *w
	out.Tags = slices.Clone(w.Tags)
	if w.LastRun != nil {
		t := *w.LastRun
		out.LastRun = &t
	}
	out.Nodes = make([]Node, len(w.Nodes))
	for i, n := range w.Nodes {
		out.Nodes[i] = n.Clone()
	}
	out.Connections = append([]Connection(nil), w.Connections...)
	if out.Connections == nil {
		out.Connections = []Connection{}
	}
	return &out
}

// Summary returns the index entry describing w.
func (w *Workflow) Summary() SavedWorkflow {
	s := SavedWorkflow{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Tags:        append([]string{}, w.Tags...),
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
		RunCount:    w.RunCount,
		IsActive:    w.IsActive,
	}
	if w.LastRun != nil {
		t := *w.LastRun
		s.LastRun = &t
	}
	return s
}

// PrepareSave stamps save metadata: an id when absent, createdAt when unset,
// updatedAt = now and isActive = true.
func (w *Workflow) PrepareSave(now time.Time) {
	if w.ID.IsZero() {
		w.ID = types.NewWorkflowID()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	w.IsActive = true
	if w.Tags == nil {
		w.Tags = []string{}
	}
}

// RecordRun applies the bookkeeping of a finished run.
func (s *SavedWorkflow) RecordRun(at time.Time) {
	t := at
	s.LastRun = &t
	s.UpdatedAt = at
	s.RunCount++
}

// NodeIndex returns the position of a node in Nodes, or -1.
func (w *Workflow) NodeIndex(id types.NodeID) int {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// Node returns the node with the given id.
func (w *Workflow) Node(id types.NodeID) (Node, bool) {
	if i := w.NodeIndex(id); i >= 0 {
		return w.Nodes[i], true
	}
	return Node{}, false
}

// Outgoing returns the connections whose source is id, in list order.
func (w *Workflow) Outgoing(id types.NodeID) []Connection {
	var out []Connection
	for _, c := range w.Connections {
		if c.SourceID == id {
			out = append(out, c)
		}
	}
	return out
}

// EntryPoints returns every trigger node, or the first node when the graph
// has no triggers.
func (w *Workflow) EntryPoints() []Node {
	var entries []Node
	for _, n := range w.Nodes {
		if n.IsTrigger() {
			entries = append(entries, n)
		}
	}
	if len(entries) == 0 && len(w.Nodes) > 0 {
		entries = append(entries, w.Nodes[0])
	}
	return entries
}

// Validate checks structural invariants: unique ids, resolvable node
// definitions and connection endpoints that exist. All problems are reported.
func (w *Workflow) Validate(cat *catalog.Catalog) error {
	var validationErrors []string

	nodeIDs := make(map[types.NodeID]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		if n.ID == "" {
			validationErrors = append(validationErrors, "found node with empty node ID")
			continue
		}
		if nodeIDs[n.ID] {
			validationErrors = append(validationErrors, fmt.Sprintf("duplicate node ID found: %s", n.ID))
		}
		nodeIDs[n.ID] = true
		if cat != nil {
			if _, ok := cat.Lookup(n.Type, n.Category); !ok {
				validationErrors = append(validationErrors,
					fmt.Sprintf("node %s: %v: %s/%s", n.ID, catalog.ErrDefinitionNotFound, n.Category, n.Type))
			}
		}
	}

	connIDs := make(map[types.ConnectionID]bool, len(w.Connections))
	for _, c := range w.Connections {
		if connIDs[c.ID] {
			validationErrors = append(validationErrors, fmt.Sprintf("duplicate connection ID found: %s", c.ID))
		}
		connIDs[c.ID] = true
		if err := c.Validate(); err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("connection %s: %v", c.ID, err))
			continue
		}
		if !nodeIDs[c.SourceID] {
			validationErrors = append(validationErrors, fmt.Sprintf("connection %s references non-existent source node: %s", c.ID, c.SourceID))
		}
		if !nodeIDs[c.TargetID] {
			validationErrors = append(validationErrors, fmt.Sprintf("connection %s references non-existent target node: %s", c.ID, c.TargetID))
		}
	}

	if len(validationErrors) > 0 {
		return errors.New("workflow validation failed: " + strings.Join(validationErrors, "; "))
	}
	return nil
}

// FindCycle returns the node ids of one cycle reachable over any connection
// type, or nil when the graph is acyclic. Cycles are legal; callers use this
// for warnings.
func (w *Workflow) FindCycle() []types.NodeID {
	adj := make(map[types.NodeID][]types.NodeID, len(w.Nodes))
	for _, c := range w.Connections {
		adj[c.SourceID] = append(adj[c.SourceID], c.TargetID)
	}

	// 0=unvisited, 1=visiting, 2=visited
	state := make(map[types.NodeID]int, len(w.Nodes))
	var stack []types.NodeID
	var cycle []types.NodeID

	var visit func(id types.NodeID) bool
	visit = func(id types.NodeID) bool {
		switch state[id] {
		case 1:
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == id {
					cycle = append([]types.NodeID(nil), stack[i:]...)
					break
				}
			}
			return true
		case 2:
			return false
		}
		state[id] = 1
		stack = append(stack, id)
		for _, next := range adj[id] {
			if visit(next) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = 2
		return false
	}

	for _, n := range w.Nodes {
		if state[n.ID] == 0 && visit(n.ID) {
			return cycle
		}
	}
	return nil
}
