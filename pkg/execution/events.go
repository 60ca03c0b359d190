package execution

import (
	"slices"
	"sync"
	"time"

	"github.com/dshills/autoflow/pkg/domain/types"
)

// EventType categorizes events published while a workflow runs.
type EventType string

const (
	// EventRunStarted is emitted after the entry points are chosen.
	EventRunStarted EventType = "run.started"
	// EventRunCompleted is emitted when a run ends, whatever its status.
	EventRunCompleted EventType = "run.completed"

	// EventNodeStarted is emitted when a node is marked running.
	EventNodeStarted EventType = "node.started"
	// EventNodeCompleted is emitted when a node succeeds.
	EventNodeCompleted EventType = "node.completed"
	// EventNodeFailed is emitted when a node's executor fails.
	EventNodeFailed EventType = "node.failed"
	// EventNodeSkipped is emitted for missing, disabled or cyclic work items.
	EventNodeSkipped EventType = "node.skipped"
)

// subscriberBuffer is the channel capacity of each subscription. Events are
// dropped for subscribers that fall further behind.
const subscriberBuffer = 200

// ExecutionEvent is a real-time notification about a run.
type ExecutionEvent struct {
	Type       EventType
	Timestamp  time.Time
	RunID      types.RunID
	WorkflowID types.WorkflowID
	NodeID     types.NodeID
	// Status is the run status for run events and the node status for node
	// events.
	Status string
	Data   types.Payload
	Error  error
}

// EventFilter selects events. Empty fields match everything.
type EventFilter struct {
	EventTypes []EventType
	NodeIDs    []types.NodeID
}

// Matches reports whether event passes the filter. Events without a node id
// never match a node filter.
func (f *EventFilter) Matches(event ExecutionEvent) bool {
	if len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, event.Type) {
		return false
	}
	if len(f.NodeIDs) > 0 {
		if event.NodeID == "" {
			return false
		}
		return slices.Contains(f.NodeIDs, event.NodeID)
	}
	return true
}

type subscription struct {
	ch     chan ExecutionEvent
	filter *EventFilter
}

// monitor broadcasts events to subscribers without ever blocking the run.
type monitor struct {
	mu          sync.RWMutex
	subscribers []*subscription
	closed      bool
}

func newMonitor() *monitor {
	return &monitor{}
}

func (m *monitor) subscribe(filter *EventFilter) <-chan ExecutionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		ch := make(chan ExecutionEvent)
		close(ch)
		return ch
	}

	ch := make(chan ExecutionEvent, subscriberBuffer)
	m.subscribers = append(m.subscribers, &subscription{ch: ch, filter: filter})
	return ch
}

func (m *monitor) unsubscribe(ch <-chan ExecutionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub.ch == ch {
			close(sub.ch)
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			return
		}
	}
}

// emit returns the number of subscribers the event was dropped for.
func (m *monitor) emit(event ExecutionEvent) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	dropped := 0
	for _, sub := range m.subscribers {
		if sub.filter != nil && !sub.filter.Matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			dropped++
		}
	}
	return dropped
}

func (m *monitor) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	for _, sub := range m.subscribers {
		close(sub.ch)
	}
	m.subscribers = nil
}
