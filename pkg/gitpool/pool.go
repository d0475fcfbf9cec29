package gitpool

import (
	"context"
	"sort"
	"sync"

	"focal/pkg/eventbus"
)

// SavedState carries session state restored from a previous run. The
// reconciliation engine prefers the saved repository path when choosing the
// next active context, and the Pool loads that directory's context first.
type SavedState struct {
	ActiveRepositoryPath string `yaml:"active_repository_path,omitempty"`
}

// Pool owns the mapping from working-directory identity to Context. All
// membership mutation happens inside a serialized reconciliation task, so a
// single mutex suffices. Events for one context are emitted in the order
// its state changed.
type Pool struct {
	mu       sync.Mutex
	contexts map[string]*Context

	runner Runner
	bus    *eventbus.Bus
	wg     sync.WaitGroup
}

// NewPool returns an empty Pool. Repository loads shell out through runner;
// state transitions are announced on bus.
func NewPool(runner Runner, bus *eventbus.Bus) *Pool {
	return &Pool{
		contexts: make(map[string]*Context),
		runner:   runner,
		bus:      bus,
	}
}

// Set reconciles pool membership to exactly dirs. Contexts for directories
// still present are left untouched, so in-flight repository loading is not
// restarted; contexts for removed directories are destroyed and announced.
// The saved state's directory, when among the additions, starts loading
// first.
func (p *Pool) Set(ctx context.Context, dirs []string, saved SavedState) {
	want := make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		want[dir] = true
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for dir, c := range p.contexts {
		if !want[dir] {
			delete(p.contexts, dir)
			p.destroyLocked(c)
		}
	}

	var added []string
	for _, dir := range dirs {
		if _, ok := p.contexts[dir]; !ok {
			added = append(added, dir)
		}
	}
	sort.Strings(added)
	if saved.ActiveRepositoryPath != "" {
		for i, dir := range added {
			if dir == saved.ActiveRepositoryPath {
				added[0], added[i] = added[i], added[0]
				break
			}
		}
	}
	for _, dir := range added {
		p.addLocked(ctx, dir)
	}
}

// destroyLocked destroys c and emits its destroy event. Caller must hold
// p.mu: destruction and the emit must be atomic against the load-completion
// check in addLocked, or a subscriber could see repository_updated after
// repository_destroyed for the same context.
func (p *Pool) destroyLocked(c *Context) {
	c.Destroy()
	p.bus.Emit(eventbus.KindRepositoryDestroyed, c.Workdir())
}

// Add ensures a Context exists for dir and returns it.
func (p *Pool) Add(ctx context.Context, dir string) *Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.contexts[dir]; ok {
		return c
	}
	return p.addLocked(ctx, dir)
}

// addLocked inserts a fresh Context for dir and starts its repository load.
// Caller must hold p.mu.
func (p *Pool) addLocked(ctx context.Context, dir string) *Context {
	c := newContext(dir, NewRepository(dir, p.runner))
	p.contexts[dir] = c

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = c.Repository().Load(ctx)
		// Check and emit under p.mu so a Set or Clear that destroys this
		// context cannot interleave between the two.
		p.mu.Lock()
		if !c.Destroyed() {
			p.bus.Emit(eventbus.KindRepositoryUpdated, dir)
		}
		p.mu.Unlock()
	}()
	return c
}

// GetContext returns the pooled Context for dir, or a transient context in
// the absent presence state when dir is unknown. It never returns nil.
func (p *Pool) GetContext(dir string) *Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.contexts[dir]; ok {
		return c
	}
	return NewAbsentContext()
}

// Contains reports whether dir has a pooled Context.
func (p *Pool) Contains(dir string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.contexts[dir]
	return ok
}

// ReplaceRepository swaps in a fresh Context for dir built around repo,
// destroying the superseded context only after the new one is in place.
// Used after a clone into a directory that already had a pool entry, so
// there is no window with no valid repository reference.
func (p *Pool) ReplaceRepository(dir string, repo *Repository) *Context {
	next := newContext(dir, repo)

	p.mu.Lock()
	stale := p.contexts[dir]
	p.contexts[dir] = next
	if stale != nil {
		stale.Destroy()
	}
	p.bus.Emit(eventbus.KindRepositoryUpdated, dir)
	p.mu.Unlock()
	return next
}

// Workdirs returns the pooled working directories in sorted order.
func (p *Pool) Workdirs() []string {
	p.mu.Lock()
	dirs := make([]string, 0, len(p.contexts))
	for dir := range p.contexts {
		dirs = append(dirs, dir)
	}
	p.mu.Unlock()
	sort.Strings(dirs)
	return dirs
}

// Size returns the number of pooled contexts.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.contexts)
}

// Clear destroys every pooled Context. Used at teardown.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for dir, c := range p.contexts {
		delete(p.contexts, dir)
		p.destroyLocked(c)
	}
}

// Wait blocks until all in-flight repository loads have finished. Tests use
// it to make load completion deterministic.
func (p *Pool) Wait() {
	p.wg.Wait()
}
