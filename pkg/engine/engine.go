// Package engine implements the active-context reconciliation engine: the
// single race-free path through which every project-path change, explicit
// init/clone, and external repository mutation updates the session's active
// git context. Updates are serialized onto a task queue so exactly one
// reconciliation runs at a time; the engine owns the active-context
// reference and is the only code that swaps it.
package engine

import (
	"context"
	"sync"

	"focal/pkg/eventbus"
	"focal/pkg/gitpool"
	"focal/pkg/taskqueue"
	"focal/pkg/workdir"
)

// ProjectProvider supplies the session's currently open project paths and a
// change signal. Path order matters: the first open project is the
// deterministic tie-break when no saved preference applies.
type ProjectProvider interface {
	Paths() []string
	OnDidChangePaths(func())
}

// StaticProjects is a fixed-path ProjectProvider for CLI use, where the
// project set is given up front and never changes.
type StaticProjects []string

// Paths returns the configured paths.
func (s StaticProjects) Paths() []string { return s }

// OnDidChangePaths never fires for a static set.
func (s StaticProjects) OnDidChangePaths(func()) {}

// Config assembles an Engine. Projects is required; everything else
// defaults.
type Config struct {
	Projects ProjectProvider
	Runner   gitpool.Runner       // defaults to ExecRunner
	Bus      *eventbus.Bus        // defaults to a fresh bus
	Cache    *workdir.Cache       // defaults to a DiscoverRoot-backed cache
	// RenderHook runs after each active-context swap, before the
	// render_finished event, so observers see render-before-update-complete
	// ordering.
	RenderHook func(*gitpool.Context)
}

// Engine drives reconciliation. The pool membership map and the active
// context reference are the only shared mutable state; membership changes
// happen inside serialized tasks, and the active reference is guarded by mu.
type Engine struct {
	projects   ProjectProvider
	runner     gitpool.Runner
	bus        *eventbus.Bus
	cache      *workdir.Cache
	pool       *gitpool.Pool
	queue      *taskqueue.Queue
	renderHook func(*gitpool.Context)

	mu       sync.Mutex
	active   *gitpool.Context
	tornDown bool
}

// New builds an Engine. The initial active context is the transient guessed
// context: before any project information arrives, the session's repository
// association is an unresolved guess, not an established absence.
func New(cfg Config) *Engine {
	runner := cfg.Runner
	if runner == nil {
		runner = &gitpool.ExecRunner{}
	}
	bus := cfg.Bus
	if bus == nil {
		bus = eventbus.New()
	}
	cache := cfg.Cache
	if cache == nil {
		cache = workdir.NewCache()
	}
	return &Engine{
		projects:   cfg.Projects,
		runner:     runner,
		bus:        bus,
		cache:      cache,
		pool:       gitpool.NewPool(runner, bus),
		queue:      taskqueue.New(),
		renderHook: cfg.RenderHook,
		active:     gitpool.NewGuessedContext(runner),
	}
}

// Start wires the project-change signal to the reconciliation path and runs
// the first update with the restored saved state.
func (e *Engine) Start(ctx context.Context, saved gitpool.SavedState) error {
	e.projects.OnDidChangePaths(func() {
		_ = e.ScheduleActiveContextUpdate(context.Background(), gitpool.SavedState{})
	})
	return e.ScheduleActiveContextUpdate(ctx, saved)
}

// ScheduleActiveContextUpdate announces the update and enqueues the
// reconciliation task. It blocks until that task has run and returns its
// error; concurrent callers queue behind one another in submission order.
func (e *Engine) ScheduleActiveContextUpdate(ctx context.Context, saved gitpool.SavedState) error {
	e.bus.Emit(eventbus.KindUpdateScheduled, "")
	return e.queue.Push(ctx, func(taskCtx context.Context) error {
		return e.updateActiveContext(taskCtx, saved)
	})
}

// updateActiveContext is the body of one reconciliation task.
func (e *Engine) updateActiveContext(ctx context.Context, saved gitpool.SavedState) error {
	e.mu.Lock()
	tornDown := e.tornDown
	e.mu.Unlock()
	if tornDown {
		// Session already gone; skip silently.
		return nil
	}

	e.bus.Emit(eventbus.KindUpdateBegun, "")
	next := e.getNextContext(ctx, saved)
	e.setActiveContext(next)
	return nil
}

// getNextContext reconciles pool membership against the open projects, then
// picks the next active context by priority:
//
//  1. the saved repository path, when the pool holds a present context for it
//  2. the context resolved from the first open project path
//  3. a fresh absent context, when no projects are open and the current
//     repository is no longer an unresolved guess
//  4. the current context unchanged, while the guess is still pending
func (e *Engine) getNextContext(ctx context.Context, saved gitpool.SavedState) *gitpool.Context {
	paths := e.projects.Paths()

	seen := make(map[string]bool, len(paths))
	dirs := make([]string, 0, len(paths))
	for _, p := range paths {
		dir := e.cache.Find(p)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	e.pool.Set(ctx, dirs, saved)

	if saved.ActiveRepositoryPath != "" {
		if c := e.pool.GetContext(saved.ActiveRepositoryPath); c.IsPresent() {
			return c
		}
	}

	if len(paths) > 0 {
		return e.pool.GetContext(e.cache.Find(paths[0]))
	}

	current := e.ActiveContext()
	if !current.Repository().IsUndetermined() {
		return gitpool.NewAbsentContext()
	}
	// Zero projects but the guess is still pending: keep it. Swapping to
	// absent here would break first-run behavior before any project opens.
	return current
}

// setActiveContext swaps the active context to next. A superseded guessed
// context is destroyed only after the swap, so the destroyed context is
// never the active one.
//
// The torn-down flag is re-checked here under mu: a task that passed the
// top-of-task check before Teardown ran must not reassign the parked active
// context or leave its pool repopulation behind.
func (e *Engine) setActiveContext(next *gitpool.Context) {
	e.mu.Lock()
	if e.tornDown {
		parked := e.active
		e.mu.Unlock()
		if next != parked {
			next.Destroy()
		}
		e.pool.Clear()
		return
	}
	current := e.active
	if next == current {
		e.mu.Unlock()
		e.bus.Emit(eventbus.KindUpdateFinished, current.Workdir())
		return
	}
	e.active = next
	e.mu.Unlock()

	if current.IsGuessed() {
		current.Destroy()
	}
	if e.renderHook != nil {
		e.renderHook(next)
	}
	e.bus.Emit(eventbus.KindRenderFinished, next.Workdir())
	e.bus.Emit(eventbus.KindUpdateFinished, next.Workdir())
}

// InitRepository creates a repository in dir, invalidates resolution (the
// directory now resolves differently), and reconciles.
func (e *Engine) InitRepository(ctx context.Context, dir string) error {
	c := e.pool.Add(ctx, dir)
	if err := c.Repository().Init(ctx); err != nil {
		return err
	}
	e.cache.Invalidate()
	return e.ScheduleActiveContextUpdate(ctx, gitpool.SavedState{})
}

// CloneRepository clones remoteURL into dir under remoteName ("origin" when
// empty). If dir already had a pool entry, its stale repository is destroyed
// only after the clone completes. The cloned directory becomes the preferred
// selection for the follow-up reconciliation.
func (e *Engine) CloneRepository(ctx context.Context, remoteURL, dir, remoteName string) error {
	repo := gitpool.NewRepository(dir, e.runner)
	if err := repo.Clone(ctx, remoteURL, remoteName); err != nil {
		return err
	}
	e.pool.ReplaceRepository(dir, repo)
	e.cache.Invalidate()
	return e.ScheduleActiveContextUpdate(ctx, gitpool.SavedState{ActiveRepositoryPath: dir})
}

// Teardown marks the session gone, parks the active context on a fresh
// absent context, and destroys the pool. Queued reconciliations become
// silent no-ops.
func (e *Engine) Teardown() {
	e.mu.Lock()
	if e.tornDown {
		e.mu.Unlock()
		return
	}
	e.tornDown = true
	current := e.active
	e.active = gitpool.NewAbsentContext()
	e.mu.Unlock()

	if current.IsGuessed() {
		current.Destroy()
	}
	e.pool.Clear()
}

// ActiveContext returns the current active context. Never nil.
func (e *Engine) ActiveContext() *gitpool.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// ActiveWorkdir returns the active context's working directory, or "" when
// the active context is guessed or absent.
func (e *Engine) ActiveWorkdir() string {
	return e.ActiveContext().Workdir()
}

// ActiveRepository returns the active context's repository handle.
func (e *Engine) ActiveRepository() *gitpool.Repository {
	return e.ActiveContext().Repository()
}

// ActiveResolutionProgress returns the active context's conflict-resolution
// tracker.
func (e *Engine) ActiveResolutionProgress() *gitpool.ResolutionProgress {
	return e.ActiveContext().ResolutionProgress()
}

// Pool returns the context pool.
func (e *Engine) Pool() *gitpool.Pool {
	return e.pool
}

// Bus returns the event bus.
func (e *Engine) Bus() *eventbus.Bus {
	return e.bus
}

// Cache returns the workdir resolution cache.
func (e *Engine) Cache() *workdir.Cache {
	return e.cache
}
