package cache

import (
	"sync"
	"time"
)

// Clock returns the current time. Injected so tests can control expiry.
type Clock func() time.Time

type entry struct {
	value     any
	expiresAt time.Time
}

// TTLCache is a process-local cache with per-entry expiry. It is advisory:
// every value stored here is re-derivable from its source, so losing the
// cache only costs latency.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     Clock
}

// New creates a TTLCache. A nil clock falls back to time.Now.
func New(now Clock) *TTLCache {
	if now == nil {
		now = time.Now
	}
	return &TTLCache{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Get returns the value for key if present and not expired. Expired entries
// are removed lazily on access.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have raced us.
		if cur, ok := c.entries[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
}

// Delete removes key.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops all entries.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Size returns the number of entries, including not-yet-collected expired ones.
func (c *TTLCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
