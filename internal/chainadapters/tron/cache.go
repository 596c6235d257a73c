package tron

import (
	"sync"
	"time"
)

// debounceCache is a map that clears itself entirely 10 seconds after its
// last write, rather than expiring individual entries. This trades exact
// per-entry TTL semantics for a cheap, single-timer eviction strategy —
// every write re-arms the same timer instead of scheduling a new one.
type debounceCache struct {
	mu     sync.Mutex
	data   map[string]any
	timer  *time.Timer
	window time.Duration
}

func newDebounceCache(window time.Duration) *debounceCache {
	return &debounceCache{data: make(map[string]any), window: window}
}

func (c *debounceCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *debounceCache) set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = value

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.window, c.clear)
}

func (c *debounceCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]any)
	c.timer = nil
}
