package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a process-local read-through cache keyed by a string fingerprint.
// Concurrent callers refreshing the same expired key share one in-flight
// producer call; a failed producer is never stored, so the next caller
// retries.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group

	now func() time.Time
}

type entry struct {
	value   any
	expires time.Time
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// GetOrRefresh returns the live cached value for key, or runs producer to
// refresh it. At most one producer runs per key at any instant.
func (c *Cache) GetOrRefresh(ctx context.Context, key string, ttl time.Duration, producer func(ctx context.Context) (any, error)) (any, error) {
	if value, ok := c.lookup(key); ok {
		return value, nil
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		// a racing caller may have refreshed while we waited on the flight
		if value, ok := c.lookup(key); ok {
			return value, nil
		}

		value, err := producer(ctx)
		if err != nil {
			return nil, err
		}

		c.store(key, value, ttl)
		return value, nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expires) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		value:   value,
		expires: c.now().Add(ttl),
	}
}
