package gitpool

import (
	"sort"
	"sync"
)

// ResolutionProgress tracks merge-conflict resolution state for one Context.
// Each Context owns its tracker exclusively; the reconciliation engine only
// hands out a reference to the tracker of the active context.
type ResolutionProgress struct {
	mu         sync.Mutex
	unresolved map[string]bool
}

// NewResolutionProgress returns an empty tracker.
func NewResolutionProgress() *ResolutionProgress {
	return &ResolutionProgress{unresolved: make(map[string]bool)}
}

// Begin records the conflicted paths of a fresh merge, replacing any
// previous tracking.
func (p *ResolutionProgress) Begin(paths []string) {
	p.mu.Lock()
	p.unresolved = make(map[string]bool, len(paths))
	for _, path := range paths {
		p.unresolved[path] = true
	}
	p.mu.Unlock()
}

// MarkResolved records that the conflict in path has been resolved.
func (p *ResolutionProgress) MarkResolved(path string) {
	p.mu.Lock()
	delete(p.unresolved, path)
	p.mu.Unlock()
}

// MarkUnresolved re-flags path as conflicted, e.g. after an undo.
func (p *ResolutionProgress) MarkUnresolved(path string) {
	p.mu.Lock()
	p.unresolved[path] = true
	p.mu.Unlock()
}

// Remaining returns the number of still-conflicted paths.
func (p *ResolutionProgress) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.unresolved)
}

// Paths returns the still-conflicted paths in sorted order.
func (p *ResolutionProgress) Paths() []string {
	p.mu.Lock()
	paths := make([]string, 0, len(p.unresolved))
	for path := range p.unresolved {
		paths = append(paths, path)
	}
	p.mu.Unlock()
	sort.Strings(paths)
	return paths
}
