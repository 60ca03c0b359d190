package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/autoflow/pkg/catalog"
	"github.com/dshills/autoflow/pkg/domain/types"
)

// ChangeKind identifies the mutation reported to observers.
type ChangeKind string

const (
	ChangeNodeAdded         ChangeKind = "node.added"
	ChangeNodeUpdated       ChangeKind = "node.updated"
	ChangeNodeRemoved       ChangeKind = "node.removed"
	ChangeNodeStatus        ChangeKind = "node.status"
	ChangeConnectionAdded   ChangeKind = "connection.added"
	ChangeConnectionRemoved ChangeKind = "connection.removed"
	ChangeCleared           ChangeKind = "graph.cleared"
	ChangeLoaded            ChangeKind = "graph.loaded"
	ChangeMetadata          ChangeKind = "workflow.metadata"
)

// Change describes one applied mutation.
type Change struct {
	Kind         ChangeKind
	NodeID       types.NodeID
	ConnectionID types.ConnectionID
}

// Store owns the in-memory workflow being edited. All mutations are
// synchronous and replace whole node or connection records; readers always
// receive copies.
type Store struct {
	mu        sync.RWMutex
	catalog   *catalog.Catalog
	wf        *Workflow
	history   *History
	observers map[int]func(Change)
	nextObs   int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithWorkflow seeds the store with an existing workflow.
func WithWorkflow(wf *Workflow) StoreOption {
	return func(s *Store) {
		if wf != nil {
			s.wf = wf.Clone()
		}
	}
}

// WithHistoryCapacity sets the number of undo states kept.
func WithHistoryCapacity(n int) StoreOption {
	return func(s *Store) {
		s.history = NewHistory(n)
	}
}

// NewStore creates a store bound to a node catalog.
func NewStore(cat *catalog.Catalog, opts ...StoreOption) *Store {
	if cat == nil {
		cat = catalog.Default()
	}
	s := &Store{
		catalog:   cat,
		wf:        New("Untitled Workflow", ""),
		history:   NewHistory(DefaultHistoryCapacity),
		observers: make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.history.Reset(s.wf)
	return s
}

// Catalog returns the catalog nodes are instantiated from.
func (s *Store) Catalog() *catalog.Catalog {
	return s.catalog
}

// Subscribe registers fn to be called after every mutation. The returned
// function removes the observer.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// notify must be called without holding the lock.
func (s *Store) notify(changes ...Change) {
	s.mu.RLock()
	fns := make([]func(Change), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// touch marks the graph modified and records an undo state.
func (s *Store) touch() {
	s.wf.UpdatedAt = time.Now().UTC()
	s.history.Push(s.wf)
}

// AddNode instantiates a node from the catalog definition of (nodeType,
// category) and appends it. The graph is unchanged when no definition exists.
func (s *Store) AddNode(nodeType string, category catalog.Category, pos Position) (Node, error) {
	def, err := s.catalog.MustLookup(nodeType, category)
	if err != nil {
		return Node{}, err
	}
	n := NewNode(def, pos)

	s.mu.Lock()
	s.wf.Nodes = append(s.wf.Nodes, n)
	s.touch()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeNodeAdded, NodeID: n.ID})
	return n.Clone(), nil
}

// UpdateNode replaces the node with the same id. It is a no-op returning
// false when the id is unknown.
func (s *Store) UpdateNode(node Node) bool {
	s.mu.Lock()
	i := s.wf.NodeIndex(node.ID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.wf.Nodes[i] = node.Clone()
	s.touch()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeNodeUpdated, NodeID: node.ID})
	return true
}

// RemoveNode deletes a node and every connection touching it.
func (s *Store) RemoveNode(id types.NodeID) bool {
	s.mu.Lock()
	i := s.wf.NodeIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	nodes := make([]Node, 0, len(s.wf.Nodes)-1)
	nodes = append(nodes, s.wf.Nodes[:i]...)
	s.wf.Nodes = append(nodes, s.wf.Nodes[i+1:]...)

	changes := []Change{{Kind: ChangeNodeRemoved, NodeID: id}}
	kept := make([]Connection, 0, len(s.wf.Connections))
	for _, c := range s.wf.Connections {
		if c.SourceID == id || c.TargetID == id {
			changes = append(changes, Change{Kind: ChangeConnectionRemoved, ConnectionID: c.ID})
			continue
		}
		kept = append(kept, c)
	}
	s.wf.Connections = kept
	s.touch()
	s.mu.Unlock()

	s.notify(changes...)
	return true
}

// Connect appends a connection with a fresh id. Both endpoints must exist.
// Cycles, duplicate links and port compatibility are not checked.
func (s *Store) Connect(c Connection) (Connection, error) {
	if err := c.Validate(); err != nil {
		return Connection{}, err
	}

	s.mu.Lock()
	if s.wf.NodeIndex(c.SourceID) < 0 {
		s.mu.Unlock()
		return Connection{}, fmt.Errorf("%w: source %s", ErrNodeNotFound, c.SourceID)
	}
	if s.wf.NodeIndex(c.TargetID) < 0 {
		s.mu.Unlock()
		return Connection{}, fmt.Errorf("%w: target %s", ErrNodeNotFound, c.TargetID)
	}
	c.ID = types.NewConnectionID()
	s.wf.Connections = append(s.wf.Connections, c)
	s.touch()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeConnectionAdded, ConnectionID: c.ID, NodeID: c.SourceID})
	return c, nil
}

// Disconnect removes a connection by id.
func (s *Store) Disconnect(id types.ConnectionID) bool {
	s.mu.Lock()
	found := false
	kept := make([]Connection, 0, len(s.wf.Connections))
	for _, c := range s.wf.Connections {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		s.mu.Unlock()
		return false
	}
	s.wf.Connections = kept
	s.touch()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeConnectionRemoved, ConnectionID: id})
	return true
}

// Clear resets the store to an untitled, unsaved workflow with an empty
// graph. The previous id is dropped so a later Save creates a new entry
// instead of overwriting the one the graph was loaded from. Undo restores
// the graph only.
func (s *Store) Clear() {
	s.mu.Lock()
	s.wf = New("Untitled Workflow", "")
	s.touch()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeCleared})
}

// modifyNode applies fn to a copy of the node and stores the result.
func (s *Store) modifyNode(id types.NodeID, record bool, kind ChangeKind, fn func(*Node) error) error {
	s.mu.Lock()
	i := s.wf.NodeIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	n := s.wf.Nodes[i].Clone()
	if err := fn(&n); err != nil {
		s.mu.Unlock()
		return err
	}
	s.wf.Nodes[i] = n
	if record {
		s.touch()
	}
	s.mu.Unlock()

	s.notify(Change{Kind: kind, NodeID: id})
	return nil
}

// MoveNode sets a node's canvas position.
func (s *Store) MoveNode(id types.NodeID, pos Position) error {
	return s.modifyNode(id, true, ChangeNodeUpdated, func(n *Node) error {
		n.Position = pos
		return nil
	})
}

// SetLabel renames a node.
func (s *Store) SetLabel(id types.NodeID, label string) error {
	return s.modifyNode(id, true, ChangeNodeUpdated, func(n *Node) error {
		n.Label = label
		return nil
	})
}

// SetEnabled enables or disables a node. Disabled nodes are skipped by runs.
func (s *Store) SetEnabled(id types.NodeID, enabled bool) error {
	return s.modifyNode(id, true, ChangeNodeUpdated, func(n *Node) error {
		n.Enabled = enabled
		return nil
	})
}

// SetConfig validates a single field value against the node's definition and
// stores it.
func (s *Store) SetConfig(id types.NodeID, field string, v types.Value) error {
	return s.modifyNode(id, true, ChangeNodeUpdated, func(n *Node) error {
		def, err := s.catalog.MustLookup(n.Type, n.Category)
		if err != nil {
			return err
		}
		if err := catalog.ValidateField(def, field, v); err != nil {
			return err
		}
		if n.Configuration == nil {
			n.Configuration = types.Config{}
		}
		n.Configuration[field] = v
		return nil
	})
}

// UnsetConfig removes a field from a node's configuration.
func (s *Store) UnsetConfig(id types.NodeID, field string) error {
	return s.modifyNode(id, true, ChangeNodeUpdated, func(n *Node) error {
		delete(n.Configuration, field)
		return nil
	})
}

// SetStatus records a node's run status and result. Status writes are not
// recorded in undo history.
func (s *Store) SetStatus(id types.NodeID, status Status, result types.Payload) error {
	return s.modifyNode(id, false, ChangeNodeStatus, func(n *Node) error {
		n.Status = status
		if result != nil {
			n.TestResult = result.Clone()
		}
		return nil
	})
}

// ResetStatuses sets every node back to idle.
func (s *Store) ResetStatuses() {
	s.mu.Lock()
	changes := make([]Change, 0, len(s.wf.Nodes))
	for i := range s.wf.Nodes {
		if s.wf.Nodes[i].Status != StatusIdle {
			n := s.wf.Nodes[i].Clone()
			n.Status = StatusIdle
			s.wf.Nodes[i] = n
			changes = append(changes, Change{Kind: ChangeNodeStatus, NodeID: n.ID})
		}
	}
	s.mu.Unlock()

	s.notify(changes...)
}

// RecordRun stamps lastRun and updatedAt and increments the run counter.
func (s *Store) RecordRun(at time.Time) {
	s.mu.Lock()
	t := at
	s.wf.LastRun = &t
	s.wf.UpdatedAt = at
	s.wf.RunCount++
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeMetadata})
}

// SetMetadata updates the library metadata of the workflow.
func (s *Store) SetMetadata(name, description string, tags []string) {
	s.mu.Lock()
	s.wf.Name = name
	s.wf.Description = description
	s.wf.Tags = append([]string{}, tags...)
	s.wf.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeMetadata})
}

// Load replaces the whole workflow and resets undo history.
func (s *Store) Load(wf *Workflow) {
	if wf == nil {
		wf = New("Untitled Workflow", "")
	}
	s.mu.Lock()
	s.wf = wf.Clone()
	if s.wf.Nodes == nil {
		s.wf.Nodes = []Node{}
	}
	s.history.Reset(s.wf)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeLoaded})
}

// Snapshot returns a deep copy of the current workflow.
func (s *Store) Snapshot() *Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wf.Clone()
}

// ID returns the id of the current workflow; empty when unsaved.
func (s *Store) ID() types.WorkflowID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wf.ID
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id types.NodeID) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.wf.Node(id)
	if !ok {
		return Node{}, false
	}
	return n.Clone(), true
}

// Nodes returns copies of all nodes in list order.
func (s *Store) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, len(s.wf.Nodes))
	for i, n := range s.wf.Nodes {
		out[i] = n.Clone()
	}
	return out
}

// Connections returns all connections in list order.
func (s *Store) Connections() []Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Connection{}, s.wf.Connections...)
}

// Outgoing returns the connections leaving a node, in list order.
func (s *Store) Outgoing(id types.NodeID) []Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wf.Outgoing(id)
}

// Undo restores the previous graph state.
func (s *Store) Undo() error {
	return s.restore(s.history.Undo)
}

// Redo re-applies the next graph state.
func (s *Store) Redo() error {
	return s.restore(s.history.Redo)
}

// CanUndo reports whether Undo would succeed.
func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.CanUndo()
}

// CanRedo reports whether Redo would succeed.
func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.CanRedo()
}

func (s *Store) restore(step func() (graphSnapshot, error)) error {
	s.mu.Lock()
	snap, err := step()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.wf.Nodes = snap.Nodes
	s.wf.Connections = snap.Connections
	s.wf.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeLoaded})
	return nil
}

// Save persists the current workflow under the given metadata and adopts the
// saved id and timestamps.
func (s *Store) Save(ctx context.Context, repo Repository, name, description string, tags []string) (SavedWorkflow, error) {
	s.mu.RLock()
	wf := s.wf.Clone()
	s.mu.RUnlock()

	wf.Name = name
	wf.Description = description
	wf.Tags = append([]string{}, tags...)
	wf.PrepareSave(time.Now().UTC())

	saved, err := repo.SaveFull(ctx, wf)
	if err != nil {
		return SavedWorkflow{}, fmt.Errorf("failed to save workflow: %w", err)
	}

	s.mu.Lock()
	s.wf.ID = saved.ID
	s.wf.Name = saved.Name
	s.wf.Description = saved.Description
	s.wf.Tags = append([]string{}, saved.Tags...)
	s.wf.CreatedAt = saved.CreatedAt
	s.wf.UpdatedAt = saved.UpdatedAt
	s.wf.IsActive = saved.IsActive
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeMetadata})
	return saved, nil
}

// LoadFrom replaces the current workflow with a saved one. On failure the
// current graph is left untouched.
func (s *Store) LoadFrom(ctx context.Context, repo Repository, id types.WorkflowID) error {
	wf, err := repo.LoadFull(ctx, id)
	if err != nil {
		return err
	}
	s.Load(wf)
	return nil
}
