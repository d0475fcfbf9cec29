package gitpool //nolint:testpackage // white-box tests for the context pool

import (
	"context"
	"fmt"
	"sync"

	"focal/pkg/eventbus"
)

// runnerCall records one command execution.
type runnerCall struct {
	Name string
	Args []string
}

// fakeRunner implements Runner, recording calls. Subcommands listed in
// failOn return an error; the "status" subcommand returns canned porcelain
// output.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []runnerCall
	failOn map[string]bool
}

func newFakeRunner(failOn ...string) *fakeRunner {
	fail := make(map[string]bool, len(failOn))
	for _, sub := range failOn {
		fail[sub] = true
	}
	return &fakeRunner{failOn: fail}
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, runnerCall{Name: name, Args: append([]string(nil), args...)})
	r.mu.Unlock()

	for _, arg := range args {
		if r.failOn[arg] {
			return nil, fmt.Errorf("%s %v: scripted failure", name, args)
		}
		if arg == "status" {
			return []byte(" M main.go\n?? notes.txt\n"), nil
		}
	}
	return nil, nil
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRunner) lastCall() runnerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return runnerCall{}
	}
	return r.calls[len(r.calls)-1]
}

// drainKinds empties a subscriber channel's buffer into per-kind counts.
// Callers must first quiesce the pool (Pool.Wait) so every emit has landed.
func drainKinds(ch <-chan eventbus.Event) map[eventbus.Kind]int {
	counts := make(map[eventbus.Kind]int)
	for {
		select {
		case evt := <-ch:
			counts[evt.Kind]++
		default:
			return counts
		}
	}
}
