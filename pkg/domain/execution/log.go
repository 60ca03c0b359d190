package execution

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dshills/autoflow/pkg/domain/types"
)

// LogEntry is one record of the execution log.
type LogEntry struct {
	ID         types.LogID
	WorkflowID types.WorkflowID
	NodeID     types.NodeID
	Timestamp  time.Time
	Phase      Phase
	Data       types.Payload
	Error      string
	Duration   time.Duration
}

// NewLogEntry creates an entry with a fresh id stamped now.
func NewLogEntry(workflowID types.WorkflowID, nodeID types.NodeID, phase Phase) LogEntry {
	return LogEntry{
		ID:         types.NewLogID(),
		WorkflowID: workflowID,
		NodeID:     nodeID,
		Timestamp:  time.Now().UTC(),
		Phase:      phase,
	}
}

type logEntryJSON struct {
	ID         types.LogID      `json:"id"`
	WorkflowID types.WorkflowID `json:"workflowId"`
	NodeID     types.NodeID     `json:"nodeId"`
	Timestamp  time.Time        `json:"timestamp"`
	Type       Phase            `json:"type"`
	Data       types.Payload    `json:"data,omitempty"`
	Error      string           `json:"error,omitempty"`
	DurationMS *int64           `json:"duration,omitempty"`
}

// MarshalJSON encodes the entry with the duration in milliseconds.
func (e LogEntry) MarshalJSON() ([]byte, error) {
	out := logEntryJSON{
		ID:         e.ID,
		WorkflowID: e.WorkflowID,
		NodeID:     e.NodeID,
		Timestamp:  e.Timestamp,
		Type:       e.Phase,
		Data:       e.Data,
		Error:      e.Error,
	}
	if e.Phase != PhaseStart {
		ms := e.Duration.Milliseconds()
		out.DurationMS = &ms
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an entry written by MarshalJSON.
func (e *LogEntry) UnmarshalJSON(data []byte) error {
	var in logEntryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = LogEntry{
		ID:         in.ID,
		WorkflowID: in.WorkflowID,
		NodeID:     in.NodeID,
		Timestamp:  in.Timestamp,
		Phase:      in.Type,
		Data:       in.Data,
		Error:      in.Error,
	}
	if in.DurationMS != nil {
		e.Duration = time.Duration(*in.DurationMS) * time.Millisecond
	}
	return nil
}

// Log is an append-only, goroutine-safe execution log.
type Log struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// Append adds an entry to the end of the log.
func (l *Log) Append(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entries returns a copy of the log in append order.
func (l *Log) Entries() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]LogEntry(nil), l.entries...)
}

// ForNode returns the entries of one node in append order.
func (l *Log) ForNode(id types.NodeID) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []LogEntry
	for _, e := range l.entries {
		if e.NodeID == id {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear empties the log.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
