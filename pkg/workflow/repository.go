package workflow

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dshills/autoflow/pkg/domain/types"
)

// Repository persists named workflows as an index of summaries plus one full
// snapshot per workflow. Implementations keep both in step: a save writes the
// index entry and the snapshot together.
type Repository interface {
	// ListSaved returns every index entry.
	ListSaved(ctx context.Context) ([]SavedWorkflow, error)

	// LoadFull returns the snapshot of a saved workflow, or
	// ErrWorkflowNotFound.
	LoadFull(ctx context.Context, id types.WorkflowID) (*Workflow, error)

	// SaveFull upserts the index entry and snapshot of wf. The caller stamps
	// metadata with PrepareSave; implementations only call it when the id is
	// still empty.
	SaveFull(ctx context.Context, wf *Workflow) (SavedWorkflow, error)

	// DeleteSaved removes the index entry and the snapshot.
	DeleteSaved(ctx context.Context, id types.WorkflowID) error

	// RecordRun updates lastRun, updatedAt and runCount of the index entry.
	RecordRun(ctx context.Context, id types.WorkflowID, at time.Time) error
}

// Search filters index entries whose name, description or any tag contains
// text, ignoring case. An empty query returns all entries.
func Search(entries []SavedWorkflow, text string) []SavedWorkflow {
	q := strings.ToLower(strings.TrimSpace(text))
	if q == "" {
		return entries
	}
	var out []SavedWorkflow
	for _, e := range entries {
		if matches(e, q) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e SavedWorkflow, q string) bool {
	if strings.Contains(strings.ToLower(e.Name), q) || strings.Contains(strings.ToLower(e.Description), q) {
		return true
	}
	for _, tag := range e.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// SortByUpdated orders entries most recently updated first.
func SortByUpdated(entries []SavedWorkflow) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})
}
