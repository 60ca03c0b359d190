// Package execution runs workflows held by a workflow.Store.
//
// A run starts at every trigger node (or at the first node when there is no
// trigger) and walks the graph depth first. Successful nodes feed their
// result to the targets of their standard and conditional connections; failed
// nodes feed {"error": message} to the targets of their error connections.
// Node failures are recorded in node status and in the execution log and never
// abort the run.
package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dshills/autoflow/pkg/credential"
	"github.com/dshills/autoflow/pkg/domain/execution"
	"github.com/dshills/autoflow/pkg/domain/types"
	operr "github.com/dshills/autoflow/pkg/errors"
	"github.com/dshills/autoflow/pkg/execution/executors"
	"github.com/dshills/autoflow/pkg/workflow"
)

// DefaultMaxNodeExecutions caps the node executions of one run.
const DefaultMaxNodeExecutions = 10000

// Option configures an Engine.
type Option func(*Engine)

// WithExecutor sets the executor called for every node. Defaults to
// executors.NewMock().
func WithExecutor(ex executors.Executor) Option {
	return func(e *Engine) { e.executor = ex }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRepository records finished runs of saved workflows in repo. When repo
// also implements execution.RunHistory, run records are appended to it.
func WithRepository(repo workflow.Repository) Option {
	return func(e *Engine) {
		e.repo = repo
		if h, ok := repo.(execution.RunHistory); ok && e.history == nil {
			e.history = h
		}
	}
}

// WithRunHistory sets where finished run records are stored.
func WithRunHistory(h execution.RunHistory) Option {
	return func(e *Engine) { e.history = h }
}

// WithMetricsRegisterer registers the engine collectors on reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.metrics = NewMetrics(reg) }
}

// WithMetrics uses collectors created by NewMetrics, typically shared by
// several engines.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer sets the tracer. Defaults to the global tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithMaxNodeExecutions caps the number of node executions of a run. Values
// below 1 keep the default.
func WithMaxNodeExecutions(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxExecutions = n
		}
	}
}

// WithNodeTimeout bounds each executor call. Zero, the default, means no
// timeout.
func WithNodeTimeout(d time.Duration) Option {
	return func(e *Engine) { e.nodeTimeout = d }
}

// WithCredentials resolves secret:// configuration values through store
// before a node is executed.
func WithCredentials(store credential.Store) Option {
	return func(e *Engine) { e.credentials = store }
}

// Engine executes the workflow of a store. One run may be active at a time.
type Engine struct {
	store         *workflow.Store
	executor      executors.Executor
	repo          workflow.Repository
	history       execution.RunHistory
	logger        *zap.Logger
	metrics       *Metrics
	tracer        trace.Tracer
	maxExecutions int
	nodeTimeout   time.Duration
	credentials   credential.Store

	log         execution.Log
	monitor     *monitor
	running     atomic.Bool
	unsubscribe func()

	progressMu sync.RWMutex
	progress   *progressTracker
}

// NewEngine creates an engine for the workflow held by store.
func NewEngine(store *workflow.Store, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		executor:      executors.NewMock(),
		logger:        zap.NewNop(),
		tracer:        otel.Tracer(TracerName),
		maxExecutions: DefaultMaxNodeExecutions,
		monitor:       newMonitor(),
		progress:      newProgressTracker(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.credentials != nil {
		e.executor = executors.WithSecrets(e.credentials, e.executor)
	}
	e.unsubscribe = store.Subscribe(e.onChange)
	return e
}

// onChange drops the execution log when the store's graph is replaced, so
// entries never refer to nodes of a previous workflow.
func (e *Engine) onChange(c workflow.Change) {
	switch c.Kind {
	case workflow.ChangeCleared, workflow.ChangeLoaded:
		e.log.Clear()
	}
}

// Run executes the workflow and returns the finished run record.
//
// Every node is reset to idle and the execution log is cleared first. The
// returned error is non-nil when the run was cancelled through ctx, hit the
// execution limit, or could not be recorded in the repository; the run record
// is returned in all of these cases.
func (e *Engine) Run(ctx context.Context) (*execution.Run, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer e.running.Store(false)

	wf := e.store.Snapshot()
	if len(wf.Nodes) == 0 {
		return nil, ErrEmptyWorkflow
	}

	e.store.ResetStatuses()
	e.log.Clear()

	entries := wf.EntryPoints()
	ids := make([]types.NodeID, len(entries))
	for i, n := range entries {
		ids[i] = n.ID
	}

	run := execution.NewRun(wf.ID)
	if err := run.Start(ids); err != nil {
		return nil, err
	}

	tracker := newProgressTracker(len(wf.Nodes))
	e.progressMu.Lock()
	e.progress = tracker
	e.progressMu.Unlock()

	ctx, span := e.tracer.Start(ctx, "autoflow.run", trace.WithAttributes(
		attribute.String(WorkflowIDKey, wf.ID.String()),
		attribute.String(RunIDKey, run.ID.String()),
		attribute.Int("autoflow.workflow.nodes", len(wf.Nodes)),
	))
	defer span.End()

	logger := e.logger.With(
		zap.String("run_id", run.ID.String()),
		zap.String("workflow_id", wf.ID.String()),
	)
	logger.Info("Workflow run started",
		zap.String("workflow", wf.Name),
		zap.Int("nodes", len(wf.Nodes)),
		zap.Int("entry_points", len(ids)),
	)
	e.emit(ExecutionEvent{Type: EventRunStarted, RunID: run.ID, WorkflowID: wf.ID, Status: string(run.Status)})

	w := &walk{engine: e, run: run, logger: logger, progress: tracker}
	var runErr error
	for _, id := range ids {
		if runErr = w.traverse(ctx, id); runErr != nil {
			break
		}
	}

	p := tracker.snapshot()
	run.Succeeded, run.Failed, run.Skipped = p.CompletedNodes, p.FailedNodes, p.SkippedNodes

	logs := e.log.Entries()
	switch {
	case runErr == nil:
		_ = run.Complete(logs)
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		_ = run.Cancel(logs, runErr)
	default:
		_ = run.Fail(logs, runErr)
	}

	e.store.RecordRun(run.CompletedAt)
	if err := e.persist(ctx, run); err != nil {
		logger.Error("Failed to record run", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	e.metrics.observeRun(string(run.Status), run.Duration())
	span.SetAttributes(attribute.String(RunStatusKey, string(run.Status)))
	if runErr != nil {
		setSpanError(span, runErr)
	}
	e.emit(ExecutionEvent{
		Type:       EventRunCompleted,
		RunID:      run.ID,
		WorkflowID: wf.ID,
		Status:     string(run.Status),
		Error:      runErr,
	})
	logger.Info("Workflow run finished",
		zap.String("status", string(run.Status)),
		zap.Int("succeeded", run.Succeeded),
		zap.Int("failed", run.Failed),
		zap.Int("skipped", run.Skipped),
		zap.Duration("duration", run.Duration()),
	)

	return run, runErr
}

// persist records the run on the repository index and in run history. Runs
// of unsaved workflows are not persisted.
func (e *Engine) persist(ctx context.Context, run *execution.Run) error {
	if run.WorkflowID.IsZero() {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	attrs := map[string]any{
		"run_id":   run.ID.String(),
		"status":   string(run.Status),
		"duration": run.Duration(),
	}
	var errs []error
	if e.repo != nil {
		if err := e.repo.RecordRun(ctx, run.WorkflowID, run.CompletedAt); err != nil {
			errs = append(errs, operr.WithAttrs("record run", run.WorkflowID, "", err, attrs))
		}
	}
	if e.history != nil {
		if err := e.history.AppendRun(ctx, run); err != nil {
			errs = append(errs, operr.WithAttrs("append run history", run.WorkflowID, "", err, attrs))
		}
	}
	return errors.Join(errs...)
}

// TestNode executes a single node in isolation with input. The node status
// and test result are updated; nothing is logged and no connection is
// followed. Disabled nodes can be tested.
func (e *Engine) TestNode(ctx context.Context, id types.NodeID, input types.Payload) (types.Payload, error) {
	node, ok := e.store.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNodeNotFound, id)
	}
	if input == nil {
		input = types.Payload{}
	}

	_ = e.store.SetStatus(id, workflow.StatusRunning, nil)
	result, _, err := e.invoke(ctx, e.store.ID(), node, input)
	if err != nil {
		_ = e.store.SetStatus(id, workflow.StatusError, types.Payload{"error": err.Error()})
		return nil, err
	}
	_ = e.store.SetStatus(id, workflow.StatusSuccess, result)
	return result, nil
}

// TestNodeJSON is TestNode with the input given as JSON text. Empty or
// malformed input is replaced with an empty object; a non-object value is
// wrapped as {"value": v}.
func (e *Engine) TestNodeJSON(ctx context.Context, id types.NodeID, raw string) (types.Payload, error) {
	input := types.Payload{}
	if strings.TrimSpace(raw) != "" {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			e.logger.Warn("Invalid test input, using empty object",
				zap.String("node_id", id.String()),
				zap.Error(err),
			)
		} else {
			input = types.PayloadOf(v)
		}
	}
	return e.TestNode(ctx, id, input)
}

// Logs returns a copy of the execution log of the latest run.
func (e *Engine) Logs() []execution.LogEntry {
	return e.log.Entries()
}

// IsRunning reports whether a run is active.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// Progress returns the node counts of the active or latest run.
func (e *Engine) Progress() Progress {
	e.progressMu.RLock()
	defer e.progressMu.RUnlock()
	return e.progress.snapshot()
}

// Subscribe returns a channel receiving every execution event.
func (e *Engine) Subscribe() <-chan ExecutionEvent {
	return e.monitor.subscribe(nil)
}

// SubscribeFiltered returns a channel receiving the events matching filter.
func (e *Engine) SubscribeFiltered(filter EventFilter) <-chan ExecutionEvent {
	return e.monitor.subscribe(&filter)
}

// Unsubscribe closes and removes a subscription.
func (e *Engine) Unsubscribe(ch <-chan ExecutionEvent) {
	e.monitor.unsubscribe(ch)
}

// Close detaches the engine from its store and closes every event
// subscription. Later subscriptions receive a closed channel.
func (e *Engine) Close() error {
	e.unsubscribe()
	e.monitor.close()
	return nil
}

func (e *Engine) emit(event ExecutionEvent) {
	if dropped := e.monitor.emit(event); dropped > 0 {
		e.metrics.EventsDroppedTotal.Add(float64(dropped))
	}
}

// invoke calls the executor of node under a span, applying the node timeout.
// A panicking executor is reported as a node failure.
func (e *Engine) invoke(ctx context.Context, wfID types.WorkflowID, node workflow.Node, input types.Payload) (result types.Payload, d time.Duration, err error) {
	ctx, span := e.tracer.Start(ctx, "autoflow.node", trace.WithAttributes(
		attribute.String(WorkflowIDKey, wfID.String()),
		attribute.String(NodeIDKey, node.ID.String()),
		attribute.String(NodeTypeKey, node.Type),
		attribute.String(NodeCategoryKey, string(node.Category)),
	))
	defer span.End()

	if e.nodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.nodeTimeout)
		defer cancel()
	}

	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("Executor panicked",
					zap.String("node_id", node.ID.String()),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = fmt.Errorf("executor panicked: %v", r)
			}
		}()
		result, err = e.executor.Execute(ctx, node, input.Clone())
	}()
	d = time.Since(start)

	status := string(workflow.StatusSuccess)
	if err != nil {
		status = string(workflow.StatusError)
		setSpanError(span, err, attribute.String(NodeIDKey, node.ID.String()))
	} else {
		span.SetStatus(codes.Ok, "")
		if result == nil {
			result = types.Payload{}
		}
	}
	e.metrics.observeNode(string(node.Category), node.Type, status, d)
	return result, d, err
}

// workItem is a pending node visit together with the nodes already executed
// on its branch.
type workItem struct {
	nodeID    types.NodeID
	input     types.Payload
	ancestors []types.NodeID
}

// walk holds the state of one run shared by its traversals.
type walk struct {
	engine     *Engine
	run        *execution.Run
	logger     *zap.Logger
	progress   *progressTracker
	executions int
}

// traverse processes everything reachable from entry using a LIFO worklist,
// visiting targets in connection order.
func (w *walk) traverse(ctx context.Context, entry types.NodeID) error {
	e := w.engine
	stack := []workItem{{nodeID: entry, input: types.Payload{}}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node, ok := e.store.Node(item.nodeID)
		if !ok {
			w.skip(item.nodeID, "missing", nil)
			continue
		}
		if !node.Enabled {
			w.skip(node.ID, "disabled", nil)
			continue
		}
		if slices.Contains(item.ancestors, node.ID) {
			w.cycle(node.ID)
			continue
		}
		if w.executions >= e.maxExecutions {
			return fmt.Errorf("%w: %d node executions", ErrExecutionLimit, e.maxExecutions)
		}
		w.executions++

		result, err := w.execute(ctx, node, item.input)

		follow := workflow.Connection.FollowsOnSuccess
		next := result
		if err != nil {
			follow = workflow.Connection.FollowsOnError
			next = types.Payload{"error": err.Error()}
		}

		path := append(slices.Clone(item.ancestors), node.ID)
		outgoing := e.store.Outgoing(node.ID)
		for i := len(outgoing) - 1; i >= 0; i-- {
			if c := outgoing[i]; follow(c) {
				stack = append(stack, workItem{nodeID: c.TargetID, input: next.Clone(), ancestors: path})
			}
		}
	}
	return nil
}

func (w *walk) execute(ctx context.Context, node workflow.Node, input types.Payload) (types.Payload, error) {
	e := w.engine
	wfID := w.run.WorkflowID

	_ = e.store.SetStatus(node.ID, workflow.StatusRunning, nil)
	e.log.Append(execution.NewLogEntry(wfID, node.ID, execution.PhaseStart))
	w.progress.started(node.ID)
	e.emit(ExecutionEvent{Type: EventNodeStarted, RunID: w.run.ID, WorkflowID: wfID, NodeID: node.ID, Status: string(workflow.StatusRunning)})

	result, d, err := e.invoke(ctx, wfID, node, input)
	if err != nil {
		_ = e.store.SetStatus(node.ID, workflow.StatusError, nil)
		entry := execution.NewLogEntry(wfID, node.ID, execution.PhaseError)
		entry.Error = err.Error()
		entry.Duration = d
		e.log.Append(entry)
		w.progress.failed(node.ID)
		e.emit(ExecutionEvent{Type: EventNodeFailed, RunID: w.run.ID, WorkflowID: wfID, NodeID: node.ID, Status: string(workflow.StatusError), Error: err})
		w.logger.Warn("Node execution failed",
			zap.String("node_id", node.ID.String()),
			zap.String("node_type", node.Type),
			zap.Duration("duration", d),
			zap.Error(err),
		)
		return nil, err
	}

	_ = e.store.SetStatus(node.ID, workflow.StatusSuccess, result)
	entry := execution.NewLogEntry(wfID, node.ID, execution.PhaseComplete)
	entry.Data = result.Clone()
	entry.Duration = d
	e.log.Append(entry)
	w.progress.completed(node.ID)
	e.emit(ExecutionEvent{Type: EventNodeCompleted, RunID: w.run.ID, WorkflowID: wfID, NodeID: node.ID, Status: string(workflow.StatusSuccess), Data: result.Clone()})
	w.logger.Debug("Node executed",
		zap.String("node_id", node.ID.String()),
		zap.String("node_type", node.Type),
		zap.Duration("duration", d),
	)
	return result, nil
}

func (w *walk) skip(id types.NodeID, reason string, err error) {
	w.progress.skipped(id)
	w.engine.metrics.NodesSkippedTotal.WithLabelValues(reason).Inc()
	w.engine.emit(ExecutionEvent{
		Type:       EventNodeSkipped,
		RunID:      w.run.ID,
		WorkflowID: w.run.WorkflowID,
		NodeID:     id,
		Data:       types.Payload{"reason": reason},
		Error:      err,
	})
	w.logger.Debug("Node skipped", zap.String("node_id", id.String()), zap.String("reason", reason))
}

// cycle records a visit of a node that is already on the current branch. The
// node is not executed and the branch ends.
func (w *walk) cycle(id types.NodeID) {
	err := fmt.Errorf("%w: node %s is already on the current branch", ErrCycleDetected, id)

	entry := execution.NewLogEntry(w.run.WorkflowID, id, execution.PhaseError)
	entry.Error = err.Error()
	w.engine.log.Append(entry)

	w.logger.Warn("Cycle detected, branch stopped", zap.String("node_id", id.String()))
	w.skip(id, "cycle", err)
}
