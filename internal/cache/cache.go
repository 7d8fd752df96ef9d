package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	val    V
	stored time.Time
}

// Cache is a small in-memory cache whose entries expire after a fixed TTL
type Cache[V any] struct {
	data map[string]entry[V]
	ttl  time.Duration
	now  func() time.Time
	mu   sync.RWMutex
}

// NewCache creates a new cache with the specified TTL
func NewCache[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		data: make(map[string]entry[V]),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get retrieves a value from the cache
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.data[key]
	if !exists || c.now().Sub(e.stored) > c.ttl {
		var zero V
		return zero, false
	}
	return e.val, true
}

// Set stores a value in the cache
func (c *Cache[V]) Set(key string, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = entry[V]{val: val, stored: c.now()}
	c.evictLocked()
}

// Delete removes a value from the cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Len returns the number of entries, including expired ones not yet evicted
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// evictLocked drops expired entries. Caller must hold c.mu.
func (c *Cache[V]) evictLocked() {
	now := c.now()
	for k, e := range c.data {
		if now.Sub(e.stored) > c.ttl {
			delete(c.data, k)
		}
	}
}
