package workdir //nolint:testpackage // white-box tests for the resolution cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestDiscoverRoot_FindsGitDir(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	nested := filepath.Join(root, "pkg", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}

	if got := DiscoverRoot(nested); got != root {
		t.Fatalf("root: got %q, want %q", got, root)
	}
	if got := DiscoverRoot(root); got != root {
		t.Fatalf("root from root: got %q, want %q", got, root)
	}
}

func TestDiscoverRoot_GitFileCountsAsRoot(t *testing.T) {
	// Linked worktrees have a .git file, not a directory.
	root := t.TempDir()
	gitFile := filepath.Join(root, ".git")
	if err := os.WriteFile(gitFile, []byte("gitdir: /elsewhere/.git/worktrees/x\n"), 0o644); err != nil {
		t.Fatalf("write .git file: %v", err)
	}

	if got := DiscoverRoot(root); got != root {
		t.Fatalf("got %q, want %q", got, root)
	}
}

func TestDiscoverRoot_NoRootReturnsInputUnchanged(t *testing.T) {
	dir := t.TempDir()
	if got := DiscoverRoot(dir); got != dir {
		t.Fatalf("got %q, want input %q", got, dir)
	}
}

func TestCache_FindProbesOnce(t *testing.T) {
	probes := 0
	cache := NewCacheWithProbe(func(path string) string {
		probes++
		return "/resolved" + path
	})

	first := cache.Find("/project")
	second := cache.Find("/project")

	if first != second {
		t.Fatalf("results differ: %q vs %q", first, second)
	}
	if first != "/resolved/project" {
		t.Fatalf("got %q, want %q", first, "/resolved/project")
	}
	if probes != 1 {
		t.Fatalf("probes: got %d, want 1", probes)
	}
}

func TestCache_InvalidateForcesReprobe(t *testing.T) {
	probes := 0
	cache := NewCacheWithProbe(func(path string) string {
		probes++
		return path
	})

	cache.Find("/a")
	cache.Invalidate()
	if cache.Size() != 0 {
		t.Fatalf("size after invalidate: got %d, want 0", cache.Size())
	}
	cache.Find("/a")

	if probes != 2 {
		t.Fatalf("probes: got %d, want 2", probes)
	}
}

func TestCache_ConcurrentFindIsSafe(t *testing.T) {
	cache := NewCacheWithProbe(func(path string) string {
		return path + "/root"
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if got := cache.Find("/shared"); got != "/shared/root" {
					t.Errorf("got %q, want %q", got, "/shared/root")
					return
				}
			}
		}()
	}
	wg.Wait()

	if cache.Size() != 1 {
		t.Fatalf("size: got %d, want 1", cache.Size())
	}
}
