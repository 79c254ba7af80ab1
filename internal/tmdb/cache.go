package tmdb

import (
	"net/url"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a cached response is served before it is refetched.
const DefaultCacheTTL = 300 * time.Second

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

type cacheEntry struct {
	value    []byte
	storedAt time.Time
}

// Cache is a process-local read-through cache of raw API responses. Expired
// entries are dropped when they are next read; there is no size bound and no
// background sweep.
type Cache struct {
	ttl time.Duration
	now Clock

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCache returns a cache that serves entries for ttl.
func NewCache(ttl time.Duration, now Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:   ttl,
		now:   now,
		items: make(map[string]cacheEntry),
	}
}

// CacheKey derives the cache key for a request. url.Values.Encode sorts by
// key, so parameter order never changes the key.
func CacheKey(path string, params url.Values) string {
	return path + "|" + params.Encode()
}

// Get returns the cached value for key. The returned slice must not be modified.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().Sub(entry.storedAt) < c.ttl {
		return entry.value, true
	}

	c.mu.Lock()
	if current, ok := c.items[key]; ok && current.storedAt.Equal(entry.storedAt) {
		delete(c.items, key)
	}
	c.mu.Unlock()
	return nil, false
}

// Set stores a copy of value under key.
func (c *Cache) Set(key string, value []byte) {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	c.items[key] = cacheEntry{value: stored, storedAt: c.now()}
	c.mu.Unlock()
}

// Len reports how many entries are held, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
