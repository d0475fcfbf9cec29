package gitpool

import "sync/atomic"

// Context bundles one resident git association: a working-directory
// identity, its repository handle, and the merge-conflict resolution
// tracker. Contexts are created by the Pool on first reference to a
// directory, or synthesized transiently (guessed, absent) by the
// reconciliation engine.
type Context struct {
	workdir   string
	repo      *Repository
	progress  *ResolutionProgress
	guessed   bool
	destroyed atomic.Bool
}

// newContext builds a pooled Context for workdir.
func newContext(workdirPath string, repo *Repository) *Context {
	return &Context{
		workdir:  workdirPath,
		repo:     repo,
		progress: NewResolutionProgress(),
	}
}

// NewAbsentContext returns a transient Context with no working directory.
// The reconciliation engine swaps to one when the session has zero open
// projects.
func NewAbsentContext() *Context {
	return &Context{
		repo:     NewAbsentRepository(),
		progress: NewResolutionProgress(),
	}
}

// NewGuessedContext returns the provisional placeholder Context used as the
// active context before any project path is known. Its repository stays
// Undetermined until a real context supersedes it.
func NewGuessedContext(runner Runner) *Context {
	return &Context{
		repo:     NewUndeterminedRepository(runner),
		progress: NewResolutionProgress(),
		guessed:  true,
	}
}

// Workdir returns the working-directory path, or "" for absent and guessed
// contexts.
func (c *Context) Workdir() string {
	return c.workdir
}

// Repository returns the context's repository handle. Never nil.
func (c *Context) Repository() *Repository {
	return c.repo
}

// ResolutionProgress returns the context's conflict-resolution tracker.
func (c *Context) ResolutionProgress() *ResolutionProgress {
	return c.progress
}

// IsPresent reports whether the context refers to an actual working
// directory.
func (c *Context) IsPresent() bool {
	return c.workdir != ""
}

// IsGuessed reports whether this is the transient placeholder context.
func (c *Context) IsGuessed() bool {
	return c.guessed
}

// Destroy releases the context and its repository. Idempotent. A Context
// being destroyed must not be the currently active one; the engine swaps
// first, then destroys.
func (c *Context) Destroy() {
	if c.destroyed.Swap(true) {
		return
	}
	c.repo.Destroy()
}

// Destroyed reports whether Destroy has been called.
func (c *Context) Destroyed() bool {
	return c.destroyed.Load()
}
