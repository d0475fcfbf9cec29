package gitpool

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner abstracts git command execution for testability. The production
// implementation uses os/exec; tests provide a recording fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner implements Runner using os/exec.
type ExecRunner struct{}

// Run executes a command and returns its stdout as bytes.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if ok := errors.As(err, &exitErr); ok {
			return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}
