package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/autoflow/pkg/domain/execution"
	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/dshills/autoflow/pkg/workflow"
)

// MemoryRepository keeps workflows and runs in process memory.
type MemoryRepository struct {
	mu        sync.RWMutex
	index     map[types.WorkflowID]workflow.SavedWorkflow
	snapshots map[types.WorkflowID]*workflow.Workflow
	runs      map[types.RunID]*execution.Run
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		index:     make(map[types.WorkflowID]workflow.SavedWorkflow),
		snapshots: make(map[types.WorkflowID]*workflow.Workflow),
		runs:      make(map[types.RunID]*execution.Run),
	}
}

// ListSaved returns the index, most recently updated first.
func (r *MemoryRepository) ListSaved(_ context.Context) ([]workflow.SavedWorkflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]workflow.SavedWorkflow, 0, len(r.index))
	for _, e := range r.index {
		out = append(out, e)
	}
	workflow.SortByUpdated(out)
	return out, nil
}

// LoadFull returns a copy of the snapshot of id.
func (r *MemoryRepository) LoadFull(_ context.Context, id types.WorkflowID) (*workflow.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wf, ok := r.snapshots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
	}
	return withIndex(wf.Clone(), r.index[id]), nil
}

// SaveFull upserts the index entry and snapshot of wf.
func (r *MemoryRepository) SaveFull(_ context.Context, wf *workflow.Workflow) (workflow.SavedWorkflow, error) {
	if wf == nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("cannot save nil workflow")
	}
	snap := wf.Clone()
	snap.PrepareSave(time.Now().UTC())
	entry := snap.Summary()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.index[snap.ID] = entry
	r.snapshots[snap.ID] = snap
	return entry, nil
}

// DeleteSaved removes the index entry, the snapshot and the runs of id.
func (r *MemoryRepository) DeleteSaved(_ context.Context, id types.WorkflowID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[id]; !ok {
		return fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
	}
	delete(r.index, id)
	delete(r.snapshots, id)
	for runID, run := range r.runs {
		if run.WorkflowID == id {
			delete(r.runs, runID)
		}
	}
	return nil
}

// RecordRun applies run bookkeeping to the index entry of id.
func (r *MemoryRepository) RecordRun(_ context.Context, id types.WorkflowID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
	}
	entry.RecordRun(at)
	r.index[id] = entry
	return nil
}

// AppendRun stores a copy of run.
func (r *MemoryRepository) AppendRun(_ context.Context, run *execution.Run) error {
	if run == nil {
		return fmt.Errorf("cannot append nil run")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = cloneRun(run)
	return nil
}

// ListRuns returns the runs of a workflow, most recent first.
func (r *MemoryRepository) ListRuns(_ context.Context, workflowID types.WorkflowID, limit int) ([]*execution.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*execution.Run
	for _, run := range r.runs {
		if run.WorkflowID == workflowID {
			out = append(out, cloneRun(run))
		}
	}
	return newestFirst(out, limit), nil
}

// LoadRun returns a copy of one run.
func (r *MemoryRepository) LoadRun(_ context.Context, id types.RunID) (*execution.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", execution.ErrRunNotFound, id)
	}
	return cloneRun(run), nil
}
