package query

import (
	"slices"
	"sync"

	"github.com/o0olele/quadnav/graph"
	"github.com/o0olele/quadnav/math32"
)

// DefaultCacheCapacity is the number of routes a PathCache keeps.
const DefaultCacheCapacity = 10

type cacheKey struct {
	start, end graph.Node
}

// PathCache keeps the node sequences of recent searches keyed by the
// identity of their start and end nodes. Eviction is first-in first-out:
// reading an entry does not keep it alive. Safe for concurrent use.
//
// Entries are never invalidated by graph changes; call Clear after
// mutating node states if stale routes matter. Every Clear starts a new
// generation, and PutIfCurrent refuses routes searched in an older one.
type PathCache struct {
	mu         sync.Mutex
	generation uint64
	entries    *math32.FIFOCache[cacheKey, []graph.Node]
}

// NewPathCache creates a cache holding up to capacity routes. capacity <= 0
// selects DefaultCacheCapacity.
func NewPathCache(capacity int) *PathCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &PathCache{
		entries: math32.NewFIFOCache[cacheKey, []graph.Node](capacity),
	}
}

// Get returns a copy of the route cached for (start, end).
func (c *PathCache) Get(start, end graph.Node) ([]graph.Node, bool) {
	nodes, ok := c.entries.Get(cacheKey{start, end})
	if !ok {
		return nil, false
	}
	return slices.Clone(nodes), true
}

// Put caches a route and reports whether the oldest entry was evicted.
func (c *PathCache) Put(start, end graph.Node, nodes []graph.Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Put(cacheKey{start, end}, slices.Clone(nodes))
}

// Generation returns the number of Clear calls so far.
func (c *PathCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// PutIfCurrent caches a route only if the cache has not been cleared since
// generation was read. stored is false for a route from an older generation.
func (c *PathCache) PutIfCurrent(generation uint64, start, end graph.Node, nodes []graph.Node) (stored, evicted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false, false
	}
	return true, c.entries.Put(cacheKey{start, end}, slices.Clone(nodes))
}

// Contains reports whether (start, end) is cached.
func (c *PathCache) Contains(start, end graph.Node) bool {
	return c.entries.Contains(cacheKey{start, end})
}

func (c *PathCache) Len() int {
	return c.entries.Len()
}

func (c *PathCache) Capacity() int {
	return c.entries.Capacity()
}

// Clear drops every cached route and starts a new generation.
func (c *PathCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries.Clear()
}

// Stats returns hit, miss and eviction counters.
func (c *PathCache) Stats() math32.CacheStats {
	return c.entries.GetStats()
}
