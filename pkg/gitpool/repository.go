// Package gitpool owns the pool of live git contexts for a multi-project
// session: one Context per working directory, each wrapping a Repository in
// one of four states and a merge-conflict ResolutionProgress tracker. All
// pool membership changes flow through Set/Add/Clear; state transitions are
// announced on the event bus.
package gitpool

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// RepoState is the tagged state of a Repository.
type RepoState int

// Repository states. Undetermined marks a not-yet-resolved guess made before
// any project path is known; Absent marks a directory with no repository
// (or no directory at all).
const (
	StateLoading RepoState = iota
	StatePresent
	StateUndetermined
	StateAbsent
)

// String returns the lowercase state name.
func (s RepoState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePresent:
		return "present"
	case StateUndetermined:
		return "undetermined"
	case StateAbsent:
		return "absent"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// StateError reports an operation attempted in a repository state that
// cannot support it. It enables typed error discrimination via errors.As.
type StateError struct {
	Op      string
	Workdir string
	State   RepoState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s repository at %q in state %s", e.Op, e.Workdir, e.State)
}

// Repository wraps the git repository association for one working directory.
// Operations shell out through the Runner; git semantics stay opaque here.
// Exactly one live Repository exists per working directory at a time.
type Repository struct {
	mu        sync.Mutex
	workdir   string
	state     RepoState
	runner    Runner
	destroyed bool
}

// NewRepository returns a Repository in the Loading state for workdir.
// Load resolves it to Present or Absent.
func NewRepository(workdirPath string, runner Runner) *Repository {
	return &Repository{workdir: workdirPath, state: StateLoading, runner: runner}
}

// NewUndeterminedRepository returns the provisional repository used by a
// guessed context, before any project path is known.
func NewUndeterminedRepository(runner Runner) *Repository {
	return &Repository{state: StateUndetermined, runner: runner}
}

// NewAbsentRepository returns the repository of a context with no working
// directory.
func NewAbsentRepository() *Repository {
	return &Repository{state: StateAbsent}
}

// Workdir returns the working directory this repository belongs to, or ""
// for undetermined/absent repositories.
func (r *Repository) Workdir() string {
	return r.workdir
}

// State returns the current repository state.
func (r *Repository) State() RepoState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// IsUndetermined reports whether the repository is still an unresolved
// guess. Implemented as a switch over the state tag.
func (r *Repository) IsUndetermined() bool {
	switch r.State() {
	case StateUndetermined:
		return true
	case StateLoading, StatePresent, StateAbsent:
		return false
	default:
		return false
	}
}

// Destroyed reports whether Destroy has been called.
func (r *Repository) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

// Load resolves a Loading repository to Present or Absent by asking git for
// the directory's git-dir. Loading a destroyed repository is a no-op.
func (r *Repository) Load(ctx context.Context) error {
	r.mu.Lock()
	if r.destroyed || r.state != StateLoading {
		r.mu.Unlock()
		return nil
	}
	runner, dir := r.runner, r.workdir
	r.mu.Unlock()

	_, err := runner.Run(ctx, "git", "-C", dir, "rev-parse", "--git-dir")

	r.mu.Lock()
	defer r.mu.Unlock()
	// An Init or Clone may have resolved the state while the probe ran;
	// its answer wins.
	if r.destroyed || r.state != StateLoading {
		return nil
	}
	if err != nil {
		r.state = StateAbsent
		return nil
	}
	r.state = StatePresent
	return nil
}

// Init runs `git init` in the working directory and marks the repository
// Present on success.
func (r *Repository) Init(ctx context.Context) error {
	r.mu.Lock()
	if r.destroyed || r.workdir == "" {
		stateErr := &StateError{Op: "init", Workdir: r.workdir, State: r.state}
		r.mu.Unlock()
		return stateErr
	}
	runner, dir := r.runner, r.workdir
	r.mu.Unlock()

	if _, err := runner.Run(ctx, "git", "init", dir); err != nil {
		return fmt.Errorf("init %s: %w", dir, err)
	}

	r.mu.Lock()
	r.state = StatePresent
	r.mu.Unlock()
	return nil
}

// Clone clones remoteURL into the working directory under the given remote
// name ("origin" when empty) and marks the repository Present on success.
func (r *Repository) Clone(ctx context.Context, remoteURL, remoteName string) error {
	r.mu.Lock()
	if r.destroyed || r.workdir == "" {
		stateErr := &StateError{Op: "clone", Workdir: r.workdir, State: r.state}
		r.mu.Unlock()
		return stateErr
	}
	runner, dir := r.runner, r.workdir
	r.mu.Unlock()

	args := []string{"clone"}
	if remoteName != "" {
		args = append(args, "--origin", remoteName)
	}
	args = append(args, remoteURL, dir)
	if _, err := runner.Run(ctx, "git", args...); err != nil {
		return fmt.Errorf("clone %s into %s: %w", remoteURL, dir, err)
	}

	r.mu.Lock()
	r.state = StatePresent
	r.mu.Unlock()
	return nil
}

// RefreshStatus re-reads porcelain status and returns the changed paths.
// Only Present repositories have status to refresh.
func (r *Repository) RefreshStatus(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	if r.destroyed || r.state != StatePresent {
		stateErr := &StateError{Op: "refresh", Workdir: r.workdir, State: r.state}
		r.mu.Unlock()
		return nil, stateErr
	}
	runner, dir := r.runner, r.workdir
	r.mu.Unlock()

	out, err := runner.Run(ctx, "git", "-C", dir, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("refresh status %s: %w", dir, err)
	}

	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		if len(line) > 3 {
			paths = append(paths, line[3:])
		}
	}
	return paths, nil
}

// Destroy releases the repository. It is idempotent and safe to call on an
// object no longer referenced by the pool; subsequent operations fail with
// a StateError.
func (r *Repository) Destroy() {
	r.mu.Lock()
	r.destroyed = true
	r.state = StateAbsent
	r.mu.Unlock()
}
