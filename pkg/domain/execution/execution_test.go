package execution

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Transitions(t *testing.T) {
	r := NewRun("workflow-1")
	assert.Equal(t, StatusPending, r.Status)

	assert.Error(t, r.Complete(nil), "cannot complete a pending run")

	require.NoError(t, r.Start([]types.NodeID{"node-a"}))
	assert.Equal(t, StatusRunning, r.Status)
	assert.Error(t, r.Start(nil))

	logs := []LogEntry{NewLogEntry("workflow-1", "node-a", PhaseStart)}
	require.NoError(t, r.Complete(logs))
	assert.Equal(t, StatusCompleted, r.Status)
	assert.True(t, r.Status.IsTerminal())
	assert.Len(t, r.Logs, 1)
	assert.GreaterOrEqual(t, r.Duration(), time.Duration(0))

	assert.Error(t, r.Cancel(nil, nil))
}

func TestRun_CancelAndFailRecordReason(t *testing.T) {
	r := NewRun("")
	require.NoError(t, r.Start(nil))
	require.NoError(t, r.Cancel(nil, errors.New("context canceled")))
	assert.Equal(t, "context canceled", r.Error)

	r = NewRun("")
	require.NoError(t, r.Start(nil))
	require.NoError(t, r.Fail(nil, errors.New("execution limit reached")))
	assert.Equal(t, StatusFailed, r.Status)
}

func TestLogEntry_JSONDurationInMilliseconds(t *testing.T) {
	e := NewLogEntry("workflow-1", "node-a", PhaseComplete)
	e.Duration = 1500 * time.Millisecond
	e.Data = types.Payload{"ok": true}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 1500.0, raw["duration"])
	assert.Equal(t, "complete", raw["type"])

	var back LogEntry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e.Duration, back.Duration)
	assert.Equal(t, e.ID, back.ID)

	start := NewLogEntry("workflow-1", "node-a", PhaseStart)
	data, err = json.Marshal(start)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "duration")
}

func TestLog_AppendOnly(t *testing.T) {
	var l Log
	l.Append(NewLogEntry("", "a", PhaseStart))
	l.Append(NewLogEntry("", "b", PhaseStart))
	l.Append(NewLogEntry("", "a", PhaseComplete))

	entries := l.Entries()
	require.Len(t, entries, 3)
	entries[0].NodeID = "mutated"
	assert.Equal(t, types.NodeID("a"), l.Entries()[0].NodeID)

	assert.Len(t, l.ForNode("a"), 2)
	l.Clear()
	assert.Equal(t, 0, l.Len())
}
