package gitpool

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"focal/pkg/eventbus"
)

// HeadWatcher detects external repository mutations (commits, checkouts,
// branch switches) by watching each tracked workdir's .git metadata with
// fsnotify. Hits are debounced per workdir, announced on the event bus as
// workdir_or_head_changed, and forwarded to the onChange hook so the engine
// can schedule a reconciliation.
type HeadWatcher struct {
	fsw      *fsnotify.Watcher
	bus      *eventbus.Bus
	onChange func(workdir string)
	debounce time.Duration

	mu      sync.Mutex
	tracked map[string]string // watched path -> workdir
	timers  map[string]*time.Timer
	closed  bool

	done chan struct{}
}

// NewHeadWatcher starts a watcher. onChange may be nil; debounce <= 0
// disables debouncing.
func NewHeadWatcher(bus *eventbus.Bus, debounce time.Duration, onChange func(workdir string)) (*HeadWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &HeadWatcher{
		fsw:      fsw,
		bus:      bus,
		onChange: onChange,
		debounce: debounce,
		tracked:  make(map[string]string),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// watchTarget picks the path to watch for a workdir: the .git directory when
// it is one, otherwise the workdir itself (linked worktrees have a .git
// file, and fsnotify watches directories).
func watchTarget(workdirPath string) string {
	gitPath := filepath.Join(workdirPath, ".git")
	if info, err := os.Stat(gitPath); err == nil && info.IsDir() {
		return gitPath
	}
	return workdirPath
}

// Track adds workdir to the watch set. Tracking an already-tracked workdir
// is a no-op.
func (w *HeadWatcher) Track(workdirPath string) error {
	target := watchTarget(workdirPath)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if _, ok := w.tracked[target]; ok {
		return nil
	}
	if err := w.fsw.Add(target); err != nil {
		return fmt.Errorf("watch %s: %w", target, err)
	}
	w.tracked[target] = workdirPath
	return nil
}

// Forget removes workdir from the watch set.
func (w *HeadWatcher) Forget(workdirPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for target, dir := range w.tracked {
		if dir == workdirPath {
			_ = w.fsw.Remove(target)
			delete(w.tracked, target)
		}
	}
}

// Sync reconciles the watch set to exactly workdirs. The engine calls it
// after each reconciliation so the watch set follows pool membership.
func (w *HeadWatcher) Sync(workdirs []string) {
	want := make(map[string]bool, len(workdirs))
	for _, dir := range workdirs {
		want[dir] = true
	}

	w.mu.Lock()
	var stale []string
	seen := make(map[string]bool)
	for _, dir := range w.tracked {
		if !want[dir] {
			stale = append(stale, dir)
		}
		seen[dir] = true
	}
	w.mu.Unlock()

	for _, dir := range stale {
		w.Forget(dir)
	}
	for _, dir := range workdirs {
		if !seen[dir] {
			_ = w.Track(dir)
		}
	}
}

// run drains fsnotify events until Close.
func (w *HeadWatcher) run() {
	for {
		select {
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(evt)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Watch errors are not actionable here; the next
			// reconciliation re-syncs the watch set.
		case <-w.done:
			return
		}
	}
}

// handle maps an fsnotify event back to its workdir and fires, debounced.
func (w *HeadWatcher) handle(evt fsnotify.Event) {
	dir := filepath.Dir(evt.Name)

	w.mu.Lock()
	workdirPath, ok := w.tracked[dir]
	if !ok {
		// The event may be on the watched path itself.
		workdirPath, ok = w.tracked[evt.Name]
	}
	if !ok {
		w.mu.Unlock()
		return
	}

	if w.debounce <= 0 {
		w.mu.Unlock()
		w.fire(workdirPath)
		return
	}
	if timer, exists := w.timers[workdirPath]; exists {
		timer.Reset(w.debounce)
		w.mu.Unlock()
		return
	}
	w.timers[workdirPath] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, workdirPath)
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			w.fire(workdirPath)
		}
	})
	w.mu.Unlock()
}

func (w *HeadWatcher) fire(workdirPath string) {
	w.bus.Emit(eventbus.KindWorkdirOrHeadChanged, workdirPath)
	if w.onChange != nil {
		w.onChange(workdirPath)
	}
}

// Close stops the watcher. Safe to call twice.
func (w *HeadWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, timer := range w.timers {
		timer.Stop()
	}
	close(w.done)
	w.mu.Unlock()
	return w.fsw.Close()
}
