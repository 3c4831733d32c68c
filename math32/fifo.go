package math32

import (
	"container/list"
	"sync"
)

// FIFOCache is a bounded cache that evicts in insertion order.
// Get does not promote entries; the oldest insert is always evicted first.
type FIFOCache[K comparable, V any] struct {
	capacity  int
	ll        *list.List          // front = newest, back = oldest
	cache     map[K]*list.Element // key -> list element
	mu        sync.Mutex
	hits      int64
	misses    int64
	evictions int64
}

type fifoEntry[K comparable, V any] struct {
	key   K
	value V
}

// NewFIFOCache creates a new FIFO cache, capacity must be greater than 0.
func NewFIFOCache[K comparable, V any](capacity int) *FIFOCache[K, V] {
	if capacity <= 0 {
		panic("fifo: capacity must be greater than 0")
	}
	return &FIFOCache[K, V]{
		capacity: capacity,
		ll:       list.New(),
		cache:    make(map[K]*list.Element, capacity),
	}
}

// Get returns the value for key. The entry keeps its position.
func (c *FIFOCache[K, V]) Get(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.cache[key]
	if !ok {
		c.misses++
		return
	}
	c.hits++
	return el.Value.(*fifoEntry[K, V]).value, true
}

// Put stores value under key. Re-putting an existing key replaces the value
// without changing its age. Returns true if an entry was evicted.
func (c *FIFOCache[K, V]) Put(key K, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.cache[key]; ok {
		el.Value.(*fifoEntry[K, V]).value = value
		return false
	}

	evicted := false
	if c.ll.Len() >= c.capacity {
		c.removeOldest()
		evicted = true
	}

	c.cache[key] = c.ll.PushFront(&fifoEntry[K, V]{key, value})
	return evicted
}

func (c *FIFOCache[K, V]) removeOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.ll.Remove(el)
	delete(c.cache, el.Value.(*fifoEntry[K, V]).key)
	c.evictions++
}

// Contains reports whether key is cached without touching hit statistics.
func (c *FIFOCache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cache[key]
	return ok
}

// Keys returns the cached keys from oldest to newest.
func (c *FIFOCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.ll.Len())
	for el := c.ll.Back(); el != nil; el = el.Prev() {
		keys = append(keys, el.Value.(*fifoEntry[K, V]).key)
	}
	return keys
}

// Len returns the number of elements in the cache.
func (c *FIFOCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Capacity returns the capacity of the cache.
func (c *FIFOCache[K, V]) Capacity() int {
	return c.capacity
}

// Clear drops every entry and resets the statistics.
func (c *FIFOCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	clear(c.cache)
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
	Capacity  int     `json:"capacity"`
	Size      int     `json:"size"`
}

// GetStats returns the cache statistics.
func (c *FIFOCache[K, V]) GetStats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate := 0.0
	if total := c.hits + c.misses; total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRate:   rate,
		Capacity:  c.capacity,
		Size:      c.ll.Len(),
	}
}
