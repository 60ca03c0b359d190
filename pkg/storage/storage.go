// Package storage implements workflow.Repository and execution.RunHistory
// on several backends: memory, a directory of YAML files, SQLite and Redis.
//
// Every backend keeps an index of workflow summaries next to one full
// snapshot per workflow and writes both in a single step.
package storage

import (
	"slices"

	"github.com/dshills/autoflow/pkg/domain/execution"
	"github.com/dshills/autoflow/pkg/workflow"
)

var (
	_ workflow.Repository  = (*MemoryRepository)(nil)
	_ workflow.Repository  = (*FilesystemRepository)(nil)
	_ workflow.Repository  = (*SQLiteRepository)(nil)
	_ workflow.Repository  = (*RedisRepository)(nil)
	_ execution.RunHistory = (*MemoryRepository)(nil)
	_ execution.RunHistory = (*FilesystemRepository)(nil)
	_ execution.RunHistory = (*SQLiteRepository)(nil)
	_ execution.RunHistory = (*RedisRepository)(nil)
)

// withIndex copies the library metadata of an index entry onto a snapshot.
// Run bookkeeping is only written to the index, so the entry is authoritative.
func withIndex(wf *workflow.Workflow, entry workflow.SavedWorkflow) *workflow.Workflow {
	wf.Name = entry.Name
	wf.Description = entry.Description
	wf.Tags = append([]string{}, entry.Tags...)
	wf.CreatedAt = entry.CreatedAt
	wf.UpdatedAt = entry.UpdatedAt
	wf.RunCount = entry.RunCount
	wf.IsActive = entry.IsActive
	wf.LastRun = nil
	if entry.LastRun != nil {
		t := *entry.LastRun
		wf.LastRun = &t
	}
	return wf
}

func cloneRun(r *execution.Run) *execution.Run {
	out := *r
	out.EntryPoints = slices.Clone(r.EntryPoints)
	out.Logs = make([]execution.LogEntry, len(r.Logs))
	for i, e := range r.Logs {
		e.Data = e.Data.Clone()
		out.Logs[i] = e
	}
	return &out
}

// newestFirst orders runs by start time, most recent first, and applies limit.
func newestFirst(runs []*execution.Run, limit int) []*execution.Run {
	slices.SortStableFunc(runs, func(a, b *execution.Run) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs
}
