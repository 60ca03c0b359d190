package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/autoflow/pkg/domain/execution"
	"github.com/dshills/autoflow/pkg/domain/types"
	"github.com/dshills/autoflow/pkg/validation"
	"github.com/dshills/autoflow/pkg/workflow"
)

const (
	indexFile    = "index.yaml"
	workflowsDir = "workflows"
	runsDir      = "runs"
)

// FilesystemRepository stores workflows as YAML files below a base directory:
//
//	index.yaml               the library index
//	workflows/<id>.yaml      one snapshot per workflow
//	runs/<workflow>/<id>.json  finished runs
//
// Every file is written to a temporary file and renamed into place. A
// snapshot is written before its index entry and removed after it, so
// LoadFull never sees an index entry without its snapshot.
type FilesystemRepository struct {
	baseDir string
	mu      sync.Mutex
}

// DefaultDataDir returns ~/.autoflow.
func DefaultDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".autoflow"), nil
}

// NewFilesystemRepository creates a repository rooted at baseDir, creating
// the directories it needs.
func NewFilesystemRepository(baseDir string) (*FilesystemRepository, error) {
	for _, dir := range []string{baseDir, filepath.Join(baseDir, workflowsDir), filepath.Join(baseDir, runsDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &FilesystemRepository{baseDir: baseDir}, nil
}

// ListSaved returns the index, most recently updated first.
func (r *FilesystemRepository) ListSaved(_ context.Context) ([]workflow.SavedWorkflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.readIndex()
	if err != nil {
		return nil, err
	}
	workflow.SortByUpdated(entries)
	return entries, nil
}

// LoadFull reads the snapshot of id.
func (r *FilesystemRepository) LoadFull(_ context.Context, id types.WorkflowID) (*workflow.Workflow, error) {
	if err := validID(id.String()); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.readIndex()
	if err != nil {
		return nil, err
	}
	i := indexOf(entries, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
	}

	data, err := os.ReadFile(r.workflowPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var wf workflow.Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}
	return withIndex(&wf, entries[i]), nil
}

// SaveFull writes the snapshot of wf and upserts its index entry.
func (r *FilesystemRepository) SaveFull(_ context.Context, wf *workflow.Workflow) (workflow.SavedWorkflow, error) {
	if wf == nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("cannot save nil workflow")
	}
	snap := wf.Clone()
	snap.PrepareSave(time.Now().UTC())
	if err := validID(snap.ID.String()); err != nil {
		return workflow.SavedWorkflow{}, err
	}

	data, err := yaml.Marshal(snap)
	if err != nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("failed to marshal workflow to YAML: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.readIndex()
	if err != nil {
		return workflow.SavedWorkflow{}, err
	}
	if err := writeFileAtomic(r.workflowPath(snap.ID), data); err != nil {
		return workflow.SavedWorkflow{}, fmt.Errorf("failed to save workflow file: %w", err)
	}

	entry := snap.Summary()
	if i := indexOf(entries, snap.ID); i >= 0 {
		entries[i] = entry
	} else {
		entries = append(entries, entry)
	}
	if err := r.writeIndex(entries); err != nil {
		return workflow.SavedWorkflow{}, err
	}
	return entry, nil
}

// DeleteSaved removes the index entry, the snapshot and the runs of id.
func (r *FilesystemRepository) DeleteSaved(_ context.Context, id types.WorkflowID) error {
	if err := validID(id.String()); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.readIndex()
	if err != nil {
		return err
	}
	i := indexOf(entries, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
	}
	if err := r.writeIndex(append(entries[:i], entries[i+1:]...)); err != nil {
		return err
	}
	if err := os.Remove(r.workflowPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete workflow file: %w", err)
	}
	if err := os.RemoveAll(filepath.Join(r.baseDir, runsDir, id.String())); err != nil {
		return fmt.Errorf("failed to delete runs: %w", err)
	}
	return nil
}

// RecordRun applies run bookkeeping to the index entry of id.
func (r *FilesystemRepository) RecordRun(_ context.Context, id types.WorkflowID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.readIndex()
	if err != nil {
		return err
	}
	i := indexOf(entries, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, id)
	}
	entries[i].RecordRun(at)
	return r.writeIndex(entries)
}

// AppendRun writes run as JSON below the directory of its workflow.
func (r *FilesystemRepository) AppendRun(_ context.Context, run *execution.Run) error {
	if run == nil {
		return fmt.Errorf("cannot append nil run")
	}
	if err := validID(run.WorkflowID.String()); err != nil {
		return err
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Join(r.baseDir, runsDir, run.WorkflowID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, run.ID.String()+".json"), data); err != nil {
		return fmt.Errorf("failed to save run file: %w", err)
	}
	return nil
}

// ListRuns reads the runs of a workflow, most recent first.
func (r *FilesystemRepository) ListRuns(_ context.Context, workflowID types.WorkflowID, limit int) ([]*execution.Run, error) {
	if err := validID(workflowID.String()); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Join(r.baseDir, runsDir, workflowID.String())
	files, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []*execution.Run{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	runs := make([]*execution.Run, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		run, err := readRun(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return newestFirst(runs, limit), nil
}

// LoadRun finds a run by id in any workflow directory.
func (r *FilesystemRepository) LoadRun(_ context.Context, id types.RunID) (*execution.Run, error) {
	if err := validID(id.String()); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(r.baseDir, runsDir, "*", id.String()+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to search runs: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", execution.ErrRunNotFound, id)
	}
	return readRun(matches[0])
}

func (r *FilesystemRepository) workflowPath(id types.WorkflowID) string {
	return filepath.Join(r.baseDir, workflowsDir, id.String()+".yaml")
}

type indexDocument struct {
	Workflows []workflow.SavedWorkflow `yaml:"workflows"`
}

func (r *FilesystemRepository) readIndex() ([]workflow.SavedWorkflow, error) {
	data, err := os.ReadFile(filepath.Join(r.baseDir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return []workflow.SavedWorkflow{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var doc indexDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse index YAML: %w", err)
	}
	if doc.Workflows == nil {
		doc.Workflows = []workflow.SavedWorkflow{}
	}
	return doc.Workflows, nil
}

func (r *FilesystemRepository) writeIndex(entries []workflow.SavedWorkflow) error {
	data, err := yaml.Marshal(indexDocument{Workflows: entries})
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(r.baseDir, indexFile), data); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	return nil
}

func readRun(path string) (*execution.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}
	var run execution.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse run file %s: %w", filepath.Base(path), err)
	}
	return &run, nil
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return nil
}

func indexOf(entries []workflow.SavedWorkflow, id types.WorkflowID) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// validID rejects ids that cannot be used as a file name.
func validID(id string) error {
	return validation.Identifier("id", id)
}
