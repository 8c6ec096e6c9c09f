package ml

import (
	"sync"
	"time"
)

type cacheEntry struct {
	pred      Prediction
	expiresAt time.Time
}

// Cache is a bounded TTL store for predictions keyed by feature vector.
// When full it evicts the single oldest-inserted entry, not the least
// recently read one. Construct one per engine; there is no package-level
// instance.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// Cache defaults.
const (
	DefaultCacheSize = 1000
	DefaultCacheTTL  = 30 * time.Second
)

// NewCache returns an empty cache. Non-positive arguments fall back to the
// defaults.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries: make(map[string]cacheEntry, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached prediction for key, expiring lazily on read.
func (c *Cache) Get(key string) (Prediction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Prediction{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.remove(key)
		return Prediction{}, false
	}
	return entry.pred, true
}

// Set stores pred under key. Re-setting an existing key refreshes its value
// and TTL but keeps its insertion position. Inserting a new key at capacity
// evicts exactly one entry, the oldest-inserted.
func (c *Cache) Set(key string, pred Prediction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := cacheEntry{pred: pred, expiresAt: c.now().Add(c.ttl)}
	if _, ok := c.entries[key]; ok {
		c.entries[key] = entry
		return
	}
	if len(c.entries) >= c.maxSize && len(c.order) > 0 {
		c.remove(c.order[0])
	}
	c.entries[key] = entry
	c.order = append(c.order, key)
}

// Len reports the number of live entries, expired ones included until read.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// remove deletes key from both the map and the insertion order. Callers
// hold c.mu.
func (c *Cache) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
