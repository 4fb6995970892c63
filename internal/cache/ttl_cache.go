package cache

import (
	"sync"
	"time"
)

type ttlEntry struct {
	value     interface{}
	expiresAt time.Time
}

// TTLCache is a small expiring memoization map. A miss or an expired entry
// always falls through to the caller's fetch path; the cache never serves
// stale data past its TTL.
type TTLCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]ttlEntry
	now     func() time.Time
}

// NewTTLCache creates a cache whose entries expire after ttl.
func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{
		ttl:     ttl,
		entries: make(map[string]ttlEntry),
		now:     time.Now,
	}
}

// Get returns the cached value for key if present and unexpired. An
// expired entry is deleted on the spot so dead keys do not linger.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry wholesale.
// Expired entries are swept on every write, bounding the map to live keys
// plus whatever expired since the last write.
func (c *TTLCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = ttlEntry{value: value, expiresAt: now.Add(c.ttl)}
}

// Delete removes key from the cache.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len returns the number of entries, including any expired since the
// last Get or Set touched them.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// SetClock overrides the cache's clock. Test hook.
func (c *TTLCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

// NameCache is a process-lifetime symbol to display-name map. Display
// names are tiny and the symbol universe is bounded, so it never expires
// or evicts.
type NameCache struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewNameCache creates an empty name cache.
func NewNameCache() *NameCache {
	return &NameCache{names: make(map[string]string)}
}

// Get returns the cached display name for a symbol.
func (c *NameCache) Get(symbol string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	name, ok := c.names[symbol]
	return name, ok
}

// Set stores a display name for a symbol.
func (c *NameCache) Set(symbol, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.names[symbol] = name
}
