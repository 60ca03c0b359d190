package execution

import (
	"sync"

	"github.com/dshills/autoflow/pkg/domain/types"
)

// Progress is a point-in-time view of a run.
type Progress struct {
	TotalNodes      int
	CompletedNodes  int
	FailedNodes     int
	SkippedNodes    int
	CurrentNode     types.NodeID
	PercentComplete float64
}

// progressTracker counts node outcomes of the current run. A node reached
// through several branches is counted once per execution, so the percentage
// is capped at 100 and never decreases.
type progressTracker struct {
	mu       sync.RWMutex
	progress Progress
}

func newProgressTracker(totalNodes int) *progressTracker {
	return &progressTracker{progress: Progress{TotalNodes: totalNodes}}
}

func (pt *progressTracker) started(id types.NodeID) {
	pt.mu.Lock()
	pt.progress.CurrentNode = id
	pt.mu.Unlock()
}

func (pt *progressTracker) completed(id types.NodeID) {
	pt.finish(id, func(p *Progress) { p.CompletedNodes++ })
}

func (pt *progressTracker) failed(id types.NodeID) {
	pt.finish(id, func(p *Progress) { p.FailedNodes++ })
}

func (pt *progressTracker) skipped(id types.NodeID) {
	pt.finish(id, func(p *Progress) { p.SkippedNodes++ })
}

func (pt *progressTracker) finish(id types.NodeID, count func(*Progress)) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	count(&pt.progress)
	if pt.progress.CurrentNode == id {
		pt.progress.CurrentNode = ""
	}
	if pt.progress.TotalNodes == 0 {
		return
	}
	done := pt.progress.CompletedNodes + pt.progress.FailedNodes + pt.progress.SkippedNodes
	percent := min(float64(done)/float64(pt.progress.TotalNodes)*100, 100)
	if percent > pt.progress.PercentComplete {
		pt.progress.PercentComplete = percent
	}
}

func (pt *progressTracker) snapshot() Progress {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.progress
}
