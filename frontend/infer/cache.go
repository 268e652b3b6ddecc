package infer

import (
	"sync"
	"sync/atomic"

	"github.com/cottand/tyinfer/frontend/expr"
)

// Key identifies a cached top-level call
type Key struct {
	Call expr.NodeID
}

// Cache stores the results of top-level calls. An entry is only valid for
// the generation it was stored at.
type Cache interface {
	Get(key Key, generation uint64) (*Result, bool)
	Put(key Key, generation uint64, res *Result)
}

type cacheEntry struct {
	generation uint64
	res        *Result
}

// MemoryCache is a Cache kept in a map. It is safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key]cacheEntry
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[Key]cacheEntry)}
}

func (c *MemoryCache) Get(key Key, generation uint64) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.generation != generation {
		return nil, false
	}
	return e.res, true
}

// Put stores res unless a result of a later generation is already stored
func (c *MemoryCache) Put(key Key, generation uint64, res *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.generation > generation {
		return
	}
	c.entries[key] = cacheEntry{generation: generation, res: res}
}

// Len is the number of stored entries, stale ones included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Evict drops the entries stored before generation
func (c *MemoryCache) Evict(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.generation < generation {
			delete(c.entries, k)
		}
	}
}

// Tracker is the generation counter a host bumps whenever the code inference
// looked at may have changed
type Tracker struct {
	generation atomic.Uint64
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) Generation() uint64 { return t.generation.Load() }

// Bump invalidates every cached result and returns the new generation
func (t *Tracker) Bump() uint64 { return t.generation.Add(1) }
