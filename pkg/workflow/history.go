package workflow

import (
	"errors"
	"time"
)

// DefaultHistoryCapacity is the number of graph states kept for undo.
const DefaultHistoryCapacity = 100

var (
	errNothingToUndo = errors.New("nothing to undo")
	errNothingToRedo = errors.New("nothing to redo")
)

// graphSnapshot is a point-in-time copy of the editable graph.
type graphSnapshot struct {
	Nodes       []Node
	Connections []Connection
	Timestamp   time.Time
}

// History keeps a bounded list of graph states with a cursor on the current
// one. Pushing after an undo discards the redo tail.
type History struct {
	snapshots []graphSnapshot
	cursor    int
	capacity  int
}

// NewHistory creates an empty history with the given capacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		snapshots: make([]graphSnapshot, 0, capacity),
		cursor:    -1,
		capacity:  capacity,
	}
}

// Push records wf's graph as the current state.
func (h *History) Push(wf *Workflow) {
	snap := takeSnapshot(wf)

	if h.cursor < len(h.snapshots)-1 {
		h.snapshots = h.snapshots[:h.cursor+1]
	}

	if len(h.snapshots) >= h.capacity {
		copy(h.snapshots, h.snapshots[1:])
		h.snapshots[len(h.snapshots)-1] = snap
	} else {
		h.snapshots = append(h.snapshots, snap)
	}
	h.cursor = len(h.snapshots) - 1
}

// Reset drops all states and records wf as the only one.
func (h *History) Reset(wf *Workflow) {
	h.snapshots = h.snapshots[:0]
	h.cursor = -1
	h.Push(wf)
}

// Undo steps back one state and returns it.
func (h *History) Undo() (graphSnapshot, error) {
	if !h.CanUndo() {
		return graphSnapshot{}, errNothingToUndo
	}
	h.cursor--
	return h.snapshots[h.cursor].clone(), nil
}

// Redo steps forward one state and returns it.
func (h *History) Redo() (graphSnapshot, error) {
	if !h.CanRedo() {
		return graphSnapshot{}, errNothingToRedo
	}
	h.cursor++
	return h.snapshots[h.cursor].clone(), nil
}

// CanUndo returns true if an earlier state exists.
func (h *History) CanUndo() bool {
	return h.cursor > 0
}

// CanRedo returns true if a later state exists.
func (h *History) CanRedo() bool {
	return h.cursor >= 0 && h.cursor < len(h.snapshots)-1
}

// Size returns the number of recorded states.
func (h *History) Size() int {
	return len(h.snapshots)
}

func takeSnapshot(wf *Workflow) graphSnapshot {
	c := wf.Clone()
	return graphSnapshot{
		Nodes:       c.Nodes,
		Connections: c.Connections,
		Timestamp:   time.Now(),
	}
}

func (s graphSnapshot) clone() graphSnapshot {
	nodes := make([]Node, len(s.Nodes))
	for i, n := range s.Nodes {
		nodes[i] = n.Clone()
	}
	return graphSnapshot{
		Nodes:       nodes,
		Connections: append([]Connection{}, s.Connections...),
		Timestamp:   s.Timestamp,
	}
}
