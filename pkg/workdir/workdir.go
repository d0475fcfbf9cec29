// Package workdir resolves project paths to git working-directory roots and
// memoizes the answers. Resolution walks filesystem ancestry looking for a
// .git entry; a path with no discoverable root resolves to itself, and
// callers treat the bare path as its own pseudo-workdir.
package workdir

import (
	"os"
	"path/filepath"
	"sync"
)

// ProbeFunc discovers the git working-directory root for a path. It returns
// the input path unchanged when no root is discoverable.
type ProbeFunc func(path string) string

// DiscoverRoot is the production probe. It walks from path up to the
// filesystem root looking for a .git entry. Both directories (normal
// repositories) and files (linked worktrees, submodules) count.
func DiscoverRoot(path string) string {
	dir := filepath.Clean(path)
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return path
		}
		dir = parent
	}
}

// Cache memoizes path → workdir root lookups. Entries persist until
// Invalidate is called. Concurrent Find calls for the same path may race to
// populate the entry; last write wins, which is safe because the probe is
// deterministic for a fixed path.
type Cache struct {
	mu    sync.Mutex
	roots map[string]string
	probe ProbeFunc
}

// NewCache returns a Cache backed by DiscoverRoot.
func NewCache() *Cache {
	return NewCacheWithProbe(DiscoverRoot)
}

// NewCacheWithProbe returns a Cache backed by a custom probe. Tests use this
// to count filesystem probes.
func NewCacheWithProbe(probe ProbeFunc) *Cache {
	return &Cache{
		roots: make(map[string]string),
		probe: probe,
	}
}

// Find returns the cached workdir root for path, probing and caching on a
// miss. The probe runs outside the lock so a slow filesystem walk does not
// block unrelated lookups.
func (c *Cache) Find(path string) string {
	c.mu.Lock()
	if root, ok := c.roots[path]; ok {
		c.mu.Unlock()
		return root
	}
	c.mu.Unlock()

	root := c.probe(path)

	c.mu.Lock()
	c.roots[path] = root
	c.mu.Unlock()
	return root
}

// Invalidate clears every cached entry. Callers must invalidate after any
// operation that changes what a path resolves to (repository init, clone).
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.roots = make(map[string]string)
	c.mu.Unlock()
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.roots)
}
