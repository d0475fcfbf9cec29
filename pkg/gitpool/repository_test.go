package gitpool //nolint:testpackage // white-box tests for repository states

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRepository_LoadResolvesToPresent(t *testing.T) {
	runner := newFakeRunner()
	repo := NewRepository("/work/a", runner)

	if got := repo.State(); got != StateLoading {
		t.Fatalf("initial state: got %s, want %s", got, StateLoading)
	}
	if err := repo.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.State(); got != StatePresent {
		t.Fatalf("state: got %s, want %s", got, StatePresent)
	}

	call := runner.lastCall()
	want := []string{"-C", "/work/a", "rev-parse", "--git-dir"}
	if call.Name != "git" || strings.Join(call.Args, " ") != strings.Join(want, " ") {
		t.Fatalf("call: got %s %v, want git %v", call.Name, call.Args, want)
	}
}

func TestRepository_LoadFailureResolvesToAbsent(t *testing.T) {
	runner := newFakeRunner("rev-parse")
	repo := NewRepository("/work/a", runner)

	if err := repo.Load(context.Background()); err != nil {
		t.Fatalf("load should swallow probe failure, got: %v", err)
	}
	if got := repo.State(); got != StateAbsent {
		t.Fatalf("state: got %s, want %s", got, StateAbsent)
	}
}

func TestRepository_IsUndetermined(t *testing.T) {
	runner := newFakeRunner()
	if !NewUndeterminedRepository(runner).IsUndetermined() {
		t.Fatal("undetermined repository should report undetermined")
	}
	if NewAbsentRepository().IsUndetermined() {
		t.Fatal("absent repository should not report undetermined")
	}
	if NewRepository("/w", runner).IsUndetermined() {
		t.Fatal("loading repository should not report undetermined")
	}
}

func TestRepository_InitMarksPresent(t *testing.T) {
	runner := newFakeRunner()
	repo := NewRepository("/work/fresh", runner)

	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.State(); got != StatePresent {
		t.Fatalf("state: got %s, want %s", got, StatePresent)
	}

	call := runner.lastCall()
	if strings.Join(call.Args, " ") != "init /work/fresh" {
		t.Fatalf("args: got %v, want [init /work/fresh]", call.Args)
	}
}

func TestRepository_CloneUsesRemoteName(t *testing.T) {
	runner := newFakeRunner()
	repo := NewRepository("/work/clone", runner)

	if err := repo.Clone(context.Background(), "https://example.com/r.git", "upstream"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call := runner.lastCall()
	want := "clone --origin upstream https://example.com/r.git /work/clone"
	if got := strings.Join(call.Args, " "); got != want {
		t.Fatalf("args: got %q, want %q", got, want)
	}
	if got := repo.State(); got != StatePresent {
		t.Fatalf("state: got %s, want %s", got, StatePresent)
	}
}

func TestRepository_CloneFailureKeepsStateAndWraps(t *testing.T) {
	runner := newFakeRunner("clone")
	repo := NewRepository("/work/clone", runner)

	err := repo.Clone(context.Background(), "https://example.com/r.git", "")
	if err == nil {
		t.Fatal("expected clone error")
	}
	if got := repo.State(); got != StateLoading {
		t.Fatalf("state after failed clone: got %s, want %s", got, StateLoading)
	}
}

func TestRepository_RefreshStatusParsesPorcelain(t *testing.T) {
	runner := newFakeRunner()
	repo := NewRepository("/work/a", runner)
	if err := repo.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	paths, err := repo.RefreshStatus(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 2 || paths[0] != "main.go" || paths[1] != "notes.txt" {
		t.Fatalf("paths: got %v, want [main.go notes.txt]", paths)
	}
}

func TestRepository_OpsAfterDestroyReturnStateError(t *testing.T) {
	runner := newFakeRunner()
	repo := NewRepository("/work/a", runner)
	repo.Destroy()
	repo.Destroy() // idempotent

	if !repo.Destroyed() {
		t.Fatal("repository should report destroyed")
	}

	var stateErr *StateError
	if err := repo.Init(context.Background()); !errors.As(err, &stateErr) {
		t.Fatalf("init: got %v, want StateError", err)
	}
	if _, err := repo.RefreshStatus(context.Background()); !errors.As(err, &stateErr) {
		t.Fatalf("refresh: got %v, want StateError", err)
	}
	if stateErr.Workdir != "/work/a" {
		t.Fatalf("StateError workdir: got %q, want %q", stateErr.Workdir, "/work/a")
	}
}
