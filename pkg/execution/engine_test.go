package execution

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/autoflow/pkg/catalog"
	"github.com/dshills/autoflow/pkg/domain/execution"
	"github.com/dshills/autoflow/pkg/domain/types"
	operr "github.com/dshills/autoflow/pkg/errors"
	"github.com/dshills/autoflow/pkg/execution/executors"
	"github.com/dshills/autoflow/pkg/storage"
	"github.com/dshills/autoflow/pkg/workflow"
)

type graph struct {
	t     *testing.T
	store *workflow.Store
}

func newGraph(t *testing.T) *graph {
	t.Helper()
	return &graph{t: t, store: workflow.NewStore(catalog.Default())}
}

func (g *graph) add(nodeType string, category catalog.Category) workflow.Node {
	g.t.Helper()
	n, err := g.store.AddNode(nodeType, category, workflow.Position{})
	require.NoError(g.t, err)
	return n
}

func (g *graph) connect(from, to workflow.Node, ct workflow.ConnectionType) {
	g.t.Helper()
	_, err := g.store.Connect(workflow.Connection{SourceID: from.ID, TargetID: to.ID, Type: ct})
	require.NoError(g.t, err)
}

func (g *graph) status(n workflow.Node) workflow.Status {
	g.t.Helper()
	got, ok := g.store.Node(n.ID)
	require.True(g.t, ok)
	return got.Status
}

// recorder wraps the instant mock, records every call and fails the nodes
// listed in fail.
type recorder struct {
	mu     sync.Mutex
	mock   *executors.Mock
	fail   map[types.NodeID]string
	calls  []types.NodeID
	inputs map[types.NodeID][]types.Payload
}

func newRecorder() *recorder {
	m := executors.NewInstantMock()
	m.Rand = func() float64 { return 0.25 }
	return &recorder{mock: m, fail: map[types.NodeID]string{}, inputs: map[types.NodeID][]types.Payload{}}
}

func (r *recorder) Execute(ctx context.Context, node workflow.Node, input types.Payload) (types.Payload, error) {
	r.mu.Lock()
	r.calls = append(r.calls, node.ID)
	r.inputs[node.ID] = append(r.inputs[node.ID], input)
	msg, fail := r.fail[node.ID]
	r.mu.Unlock()

	if fail {
		return nil, errors.New(msg)
	}
	return r.mock.Execute(ctx, node, input)
}

func TestEngine_TriggerToAction(t *testing.T) {
	g := newGraph(t)
	trigger := g.add("schedule", catalog.CategoryTrigger)
	action := g.add("email", catalog.CategoryAction)
	g.connect(trigger, action, "")

	rec := newRecorder()
	e := NewEngine(g.store, WithExecutor(rec))

	run, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, run.Status)
	assert.Equal(t, []types.NodeID{trigger.ID}, run.EntryPoints)
	assert.Equal(t, 2, run.Succeeded)

	logs := e.Logs()
	require.Len(t, logs, 4)
	phases := []execution.Phase{execution.PhaseStart, execution.PhaseComplete, execution.PhaseStart, execution.PhaseComplete}
	nodes := []types.NodeID{trigger.ID, trigger.ID, action.ID, action.ID}
	for i, entry := range logs {
		assert.Equal(t, phases[i], entry.Phase, "entry %d", i)
		assert.Equal(t, nodes[i], entry.NodeID, "entry %d", i)
		assert.True(t, strings.HasPrefix(entry.ID.String(), "log-"))
	}
	assert.Equal(t, true, logs[1].Data["triggered"])
	assert.Equal(t, "email", logs[3].Data["actionPerformed"])

	assert.Equal(t, true, rec.inputs[action.ID][0]["triggered"], "action receives the trigger result")
	assert.Empty(t, rec.inputs[trigger.ID][0], "entry points receive an empty object")

	assert.Equal(t, workflow.StatusSuccess, g.status(trigger))
	assert.Equal(t, workflow.StatusSuccess, g.status(action))
	node, _ := g.store.Node(action.ID)
	assert.Equal(t, "email", node.TestResult["actionPerformed"])
	assert.Equal(t, run.Logs, logs)
}

func TestEngine_ErrorConnection(t *testing.T) {
	g := newGraph(t)
	x := g.add("email", catalog.CategoryAction)
	onError := g.add("notification", catalog.CategoryAction)
	onSuccess := g.add("export", catalog.CategoryAction)
	g.connect(x, onError, workflow.ConnectionError)
	g.connect(x, onSuccess, workflow.ConnectionStandard)

	rec := newRecorder()
	rec.fail[x.ID] = "boom"
	e := NewEngine(g.store, WithExecutor(rec))

	run, err := e.Run(context.Background())
	require.NoError(t, err, "node failures do not fail the run")
	assert.Equal(t, execution.StatusCompleted, run.Status)
	assert.Equal(t, 1, run.Failed)

	assert.Equal(t, workflow.StatusError, g.status(x))
	assert.Equal(t, workflow.StatusSuccess, g.status(onError))
	assert.Equal(t, workflow.StatusIdle, g.status(onSuccess))
	assert.Equal(t, []types.Payload{{"error": "boom"}}, rec.inputs[onError.ID])

	logs := e.Logs()
	require.Len(t, logs, 4)
	assert.Equal(t, execution.PhaseError, logs[1].Phase)
	assert.Equal(t, "boom", logs[1].Error)
}

func TestEngine_BranchIsolation(t *testing.T) {
	g := newGraph(t)
	trigger := g.add("file-upload", catalog.CategoryTrigger)
	bad := g.add("email", catalog.CategoryAction)
	good := g.add("export", catalog.CategoryAction)
	after := g.add("notification", catalog.CategoryAction)
	g.connect(trigger, bad, "")
	g.connect(trigger, good, workflow.ConnectionConditional)
	g.connect(good, after, "")

	rec := newRecorder()
	rec.fail[bad.ID] = "smtp down"
	e := NewEngine(g.store, WithExecutor(rec))

	_, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusError, g.status(bad))
	assert.Equal(t, workflow.StatusSuccess, g.status(good))
	assert.Equal(t, workflow.StatusSuccess, g.status(after))
	assert.Equal(t, []types.NodeID{trigger.ID, bad.ID, good.ID, after.ID}, rec.calls, "depth first in connection order")
}

func TestEngine_EntryPoints(t *testing.T) {
	t.Run("first node without triggers", func(t *testing.T) {
		g := newGraph(t)
		first := g.add("email", catalog.CategoryAction)
		second := g.add("export", catalog.CategoryAction)

		rec := newRecorder()
		run, err := NewEngine(g.store, WithExecutor(rec)).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []types.NodeID{first.ID}, run.EntryPoints)
		assert.Equal(t, workflow.StatusIdle, g.status(second))
	})

	t.Run("every trigger", func(t *testing.T) {
		g := newGraph(t)
		g.add("email", catalog.CategoryAction)
		t1 := g.add("schedule", catalog.CategoryTrigger)
		t2 := g.add("data-update", catalog.CategoryTrigger)

		rec := newRecorder()
		run, err := NewEngine(g.store, WithExecutor(rec)).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []types.NodeID{t1.ID, t2.ID}, run.EntryPoints)
		assert.Equal(t, []types.NodeID{t1.ID, t2.ID}, rec.calls)
	})

	t.Run("empty workflow", func(t *testing.T) {
		g := newGraph(t)
		_, err := NewEngine(g.store).Run(context.Background())
		assert.ErrorIs(t, err, ErrEmptyWorkflow)
	})
}

func TestEngine_DisabledNodeStopsBranch(t *testing.T) {
	g := newGraph(t)
	trigger := g.add("schedule", catalog.CategoryTrigger)
	disabled := g.add("email", catalog.CategoryAction)
	after := g.add("export", catalog.CategoryAction)
	g.connect(trigger, disabled, "")
	g.connect(disabled, after, "")
	require.NoError(t, g.store.SetEnabled(disabled.ID, false))

	rec := newRecorder()
	e := NewEngine(g.store, WithExecutor(rec))
	run, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []types.NodeID{trigger.ID}, rec.calls)
	assert.Equal(t, workflow.StatusIdle, g.status(disabled))
	assert.Equal(t, workflow.StatusIdle, g.status(after))
	assert.Equal(t, 1, run.Skipped)
	assert.Len(t, e.Logs(), 2, "skipped nodes are not logged")
}

func TestEngine_CycleGuard(t *testing.T) {
	g := newGraph(t)
	trigger := g.add("schedule", catalog.CategoryTrigger)
	a := g.add("email", catalog.CategoryAction)
	b := g.add("export", catalog.CategoryAction)
	g.connect(trigger, a, "")
	g.connect(a, b, "")
	g.connect(b, a, "")

	rec := newRecorder()
	e := NewEngine(g.store, WithExecutor(rec))
	run, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []types.NodeID{trigger.ID, a.ID, b.ID}, rec.calls)
	logs := e.Logs()
	require.Len(t, logs, 7)
	last := logs[6]
	assert.Equal(t, a.ID, last.NodeID)
	assert.Equal(t, execution.PhaseError, last.Phase)
	assert.Contains(t, last.Error, ErrCycleDetected.Error())
	assert.Equal(t, 1, run.Skipped)
}

func TestEngine_DiamondRunsSharedNodePerBranch(t *testing.T) {
	g := newGraph(t)
	trigger := g.add("schedule", catalog.CategoryTrigger)
	left := g.add("email", catalog.CategoryAction)
	right := g.add("export", catalog.CategoryAction)
	join := g.add("join", catalog.CategoryData)
	g.connect(trigger, left, "")
	g.connect(trigger, right, "")
	g.connect(left, join, "")
	g.connect(right, join, "")

	rec := newRecorder()
	_, err := NewEngine(g.store, WithExecutor(rec)).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, rec.inputs[join.ID], 2)
	assert.Equal(t, "email", rec.inputs[join.ID][0]["actionPerformed"])
	assert.Equal(t, "export", rec.inputs[join.ID][1]["actionPerformed"])
}

func TestEngine_ExecutionLimit(t *testing.T) {
	g := newGraph(t)
	trigger := g.add("schedule", catalog.CategoryTrigger)
	a := g.add("email", catalog.CategoryAction)
	b := g.add("export", catalog.CategoryAction)
	g.connect(trigger, a, "")
	g.connect(a, b, "")

	e := NewEngine(g.store, WithExecutor(newRecorder()), WithMaxNodeExecutions(2))
	run, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrExecutionLimit)
	require.NotNil(t, run)
	assert.Equal(t, execution.StatusFailed, run.Status)
	assert.Equal(t, workflow.StatusIdle, g.status(b))
	assert.False(t, e.IsRunning())
}

func TestEngine_Cancellation(t *testing.T) {
	g := newGraph(t)
	g.add("schedule", catalog.CategoryTrigger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine(g.store, WithExecutor(newRecorder()))
	run, err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, run)
	assert.Equal(t, execution.StatusCancelled, run.Status)
	assert.Empty(t, e.Logs())
	assert.Equal(t, 1, g.store.Snapshot().RunCount, "cancelled runs still count")
}

func TestEngine_NodeTimeout(t *testing.T) {
	g := newGraph(t)
	trigger := g.add("schedule", catalog.CategoryTrigger)

	slow := executors.ExecutorFunc(func(ctx context.Context, _ workflow.Node, _ types.Payload) (types.Payload, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	e := NewEngine(g.store, WithExecutor(slow), WithNodeTimeout(10*time.Millisecond))
	_, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusError, g.status(trigger))
	assert.Contains(t, e.Logs()[1].Error, "deadline exceeded")
}

func TestEngine_RunInProgress(t *testing.T) {
	g := newGraph(t)
	g.add("schedule", catalog.CategoryTrigger)

	started := make(chan struct{})
	release := make(chan struct{})
	blocking := executors.ExecutorFunc(func(context.Context, workflow.Node, types.Payload) (types.Payload, error) {
		close(started)
		<-release
		return types.Payload{}, nil
	})
	e := NewEngine(g.store, WithExecutor(blocking))

	done := make(chan error, 1)
	go func() {
		_, err := e.Run(context.Background())
		done <- err
	}()

	<-started
	assert.True(t, e.IsRunning())
	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, e.IsRunning())
}

func TestEngine_PanicIsNodeFailure(t *testing.T) {
	g := newGraph(t)
	trigger := g.add("schedule", catalog.CategoryTrigger)

	panicky := executors.ExecutorFunc(func(context.Context, workflow.Node, types.Payload) (types.Payload, error) {
		panic("kaboom")
	})
	run, err := NewEngine(g.store, WithExecutor(panicky)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, workflow.StatusError, g.status(trigger))
}

func TestEngine_RecordsRunOnSavedWorkflow(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()

	g := newGraph(t)
	trigger := g.add("schedule", catalog.CategoryTrigger)
	action := g.add("email", catalog.CategoryAction)
	g.connect(trigger, action, "")
	saved, err := g.store.Save(ctx, repo, "Nightly", "", nil)
	require.NoError(t, err)

	e := NewEngine(g.store, WithExecutor(newRecorder()), WithRepository(repo))
	run, err := e.Run(ctx)
	require.NoError(t, err)

	wf := g.store.Snapshot()
	assert.Equal(t, 1, wf.RunCount)
	require.NotNil(t, wf.LastRun)
	assert.Equal(t, run.CompletedAt, *wf.LastRun)

	entries, err := repo.ListSaved(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].RunCount)
	assert.Equal(t, run.CompletedAt, *entries[0].LastRun)
	assert.Equal(t, run.CompletedAt, entries[0].UpdatedAt)

	runs, err := repo.ListRuns(ctx, saved.ID, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Len(t, runs[0].Logs, 4)
}

type failingRecorder struct {
	*storage.MemoryRepository
}

func (failingRecorder) RecordRun(context.Context, types.WorkflowID, time.Time) error {
	return errors.New("index unavailable")
}

func TestEngine_PersistFailureCarriesRunAttributes(t *testing.T) {
	ctx := context.Background()
	repo := failingRecorder{storage.NewMemoryRepository()}

	g := newGraph(t)
	g.add("schedule", catalog.CategoryTrigger)
	saved, err := g.store.Save(ctx, repo, "Nightly", "", nil)
	require.NoError(t, err)

	run, err := NewEngine(g.store, WithExecutor(newRecorder()), WithRepository(repo)).Run(ctx)
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, execution.StatusCompleted, run.Status)

	var opErr *operr.OperationalError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "record run", opErr.Operation)
	assert.Equal(t, saved.ID, opErr.WorkflowID)
	assert.Equal(t, run.ID.String(), opErr.Attributes["run_id"])
	assert.Equal(t, string(execution.StatusCompleted), opErr.Attributes["status"])
	assert.Equal(t, run.Duration(), opErr.Attributes["duration"])

	runs, err := repo.ListRuns(ctx, saved.ID, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "run history is still appended")
}

func TestEngine_UnsavedWorkflowIsNotPersisted(t *testing.T) {
	repo := storage.NewMemoryRepository()
	g := newGraph(t)
	g.add("schedule", catalog.CategoryTrigger)

	run, err := NewEngine(g.store, WithExecutor(newRecorder()), WithRepository(repo)).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, run.WorkflowID.IsZero())
	assert.Equal(t, 1, g.store.Snapshot().RunCount)

	entries, err := repo.ListSaved(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEngine_GraphReplacementDropsLogs(t *testing.T) {
	tests := []struct {
		name    string
		replace func(s *workflow.Store)
	}{
		{"clear", func(s *workflow.Store) { s.Clear() }},
		{"load", func(s *workflow.Store) { s.Load(workflow.New("Other", "")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGraph(t)
			trigger := g.add("schedule", catalog.CategoryTrigger)
			action := g.add("email", catalog.CategoryAction)
			g.connect(trigger, action, "")

			e := NewEngine(g.store, WithExecutor(newRecorder()))
			_, err := e.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, e.Logs(), 4)

			tt.replace(g.store)
			assert.Empty(t, g.store.Nodes())
			assert.Empty(t, e.Logs())
		})
	}
}

func TestEngine_CloseDetachesFromStore(t *testing.T) {
	g := newGraph(t)
	g.add("schedule", catalog.CategoryTrigger)

	e := NewEngine(g.store, WithExecutor(newRecorder()))
	_, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Close())

	g.store.Clear()
	assert.Len(t, e.Logs(), 2, "a closed engine no longer follows the store")
}

func TestEngine_RunResetsPreviousState(t *testing.T) {
	g := newGraph(t)
	trigger := g.add("schedule", catalog.CategoryTrigger)
	action := g.add("email", catalog.CategoryAction)
	g.connect(trigger, action, "")

	rec := newRecorder()
	e := NewEngine(g.store, WithExecutor(rec))
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	rec.fail[trigger.ID] = "offline"
	_, err = e.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, e.Logs(), 2, "the log holds only the latest run")
	assert.Equal(t, workflow.StatusIdle, g.status(action), "statuses are reset before each run")
	assert.Equal(t, 2, g.store.Snapshot().RunCount)
}

func TestEngine_TestNode(t *testing.T) {
	g := newGraph(t)
	trigger := g.add("schedule", catalog.CategoryTrigger)
	action := g.add("email", catalog.CategoryAction)
	g.connect(trigger, action, "")
	require.NoError(t, g.store.SetEnabled(trigger.ID, false))

	rec := newRecorder()
	e := NewEngine(g.store, WithExecutor(rec))

	result, err := e.TestNode(context.Background(), trigger.ID, types.Payload{"file": "a.csv"})
	require.NoError(t, err)
	assert.Equal(t, true, result["triggered"])
	assert.Equal(t, workflow.StatusSuccess, g.status(trigger), "disabled nodes can be tested")
	assert.Equal(t, workflow.StatusIdle, g.status(action), "connections are not followed")
	assert.Empty(t, e.Logs())
	assert.Equal(t, types.Payload{"file": "a.csv"}, rec.inputs[trigger.ID][0])

	rec.fail[action.ID] = "bad address"
	_, err = e.TestNode(context.Background(), action.ID, nil)
	assert.EqualError(t, err, "bad address")
	node, _ := g.store.Node(action.ID)
	assert.Equal(t, workflow.StatusError, node.Status)
	assert.Equal(t, types.Payload{"error": "bad address"}, node.TestResult)

	_, err = e.TestNode(context.Background(), "node-missing", nil)
	assert.ErrorIs(t, err, workflow.ErrNodeNotFound)
}

func TestEngine_TestNodeJSON(t *testing.T) {
	g := newGraph(t)
	action := g.add("email", catalog.CategoryAction)

	core, observed := observer.New(zap.WarnLevel)
	rec := newRecorder()
	e := NewEngine(g.store, WithExecutor(rec), WithLogger(zap.New(core)))

	tests := []struct {
		name     string
		raw      string
		expected types.Payload
		warns    int
	}{
		{name: "object", raw: `{"to":"a@b.c"}`, expected: types.Payload{"to": "a@b.c"}},
		{name: "empty", raw: "  ", expected: types.Payload{}},
		{name: "malformed", raw: `{"to":`, expected: types.Payload{}, warns: 1},
		{name: "scalar", raw: `42`, expected: types.Payload{"value": 42.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := observed.Len()
			_, err := e.TestNodeJSON(context.Background(), action.ID, tt.raw)
			require.NoError(t, err)
			inputs := rec.inputs[action.ID]
			assert.Equal(t, tt.expected, inputs[len(inputs)-1])
			assert.Equal(t, tt.warns, observed.Len()-before)
		})
	}
}

func TestEngine_Events(t *testing.T) {
	g := newGraph(t)
	trigger := g.add("schedule", catalog.CategoryTrigger)
	action := g.add("email", catalog.CategoryAction)
	g.connect(trigger, action, "")

	e := NewEngine(g.store, WithExecutor(newRecorder()))
	all := e.Subscribe()
	onlyAction := e.SubscribeFiltered(EventFilter{NodeIDs: []types.NodeID{action.ID}})

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Close())

	var kinds []EventType
	for ev := range all {
		kinds = append(kinds, ev.Type)
		assert.False(t, ev.Timestamp.IsZero())
	}
	assert.Equal(t, []EventType{
		EventRunStarted,
		EventNodeStarted, EventNodeCompleted,
		EventNodeStarted, EventNodeCompleted,
		EventRunCompleted,
	}, kinds)

	var filtered []EventType
	for ev := range onlyAction {
		assert.Equal(t, action.ID, ev.NodeID)
		filtered = append(filtered, ev.Type)
	}
	assert.Equal(t, []EventType{EventNodeStarted, EventNodeCompleted}, filtered)

	closed := e.Subscribe()
	_, open := <-closed
	assert.False(t, open)
}

func TestEngine_MetricsAndSpans(t *testing.T) {
	g := newGraph(t)
	trigger := g.add("schedule", catalog.CategoryTrigger)
	action := g.add("email", catalog.CategoryAction)
	g.connect(trigger, action, "")

	rec := newRecorder()
	rec.fail[action.ID] = "nope"

	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	metrics := NewMetrics(prometheus.NewRegistry())

	e := NewEngine(g.store,
		WithExecutor(rec),
		WithMetrics(metrics),
		WithTracer(provider.Tracer(TracerName)),
	)
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NodeExecutionsTotal.WithLabelValues("trigger", "schedule", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NodeExecutionsTotal.WithLabelValues("action", "email", "error")))

	var names []string
	for _, s := range spans.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"autoflow.node", "autoflow.node", "autoflow.run"}, names)

	p := e.Progress()
	assert.Equal(t, 2, p.TotalNodes)
	assert.Equal(t, 1, p.CompletedNodes)
	assert.Equal(t, 1, p.FailedNodes)
	assert.Equal(t, 100.0, p.PercentComplete)
}
