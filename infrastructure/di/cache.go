package di

import (
	"context"
	"sync"
	"time"
)

// InMemoryCache provides a simple in-memory cache implementation. It backs
// the diagram view and listing caches of one process.
//
// Every key carries an invalidation generation. Delete bumps the key's
// generation and Clear bumps all of them, so a read-through fill that
// started before an invalidation can be dropped with SetIfGeneration.
type InMemoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	gens  map[string]uint64
	epoch uint64
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type cacheItem struct {
	value     interface{}
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache that sweeps expired items
// every interval until Close is called
func NewInMemoryCache(interval time.Duration) *InMemoryCache {
	cache := &InMemoryCache{
		items: make(map[string]cacheItem),
		gens:  make(map[string]uint64),
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	if interval > 0 {
		go cache.cleanupExpired(interval)
	}

	return cache
}

// Get retrieves a value from cache
func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists {
		return nil, false
	}

	if !item.expiresAt.IsZero() && c.now().After(item.expiresAt) {
		return nil, false
	}

	return item.value, true
}

// Set stores a value in cache with TTL in seconds. A TTL of zero or less
// keeps the value until it is deleted.
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store(key, value, ttl)
	return nil
}

// Generation returns the key's current invalidation generation
func (c *InMemoryCache) Generation(key string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch + c.gens[key]
}

// SetIfGeneration stores value only if key has not been invalidated since
// gen was read. It reports whether the value was stored.
func (c *InMemoryCache) SetIfGeneration(ctx context.Context, key string, value interface{}, ttl int, gen uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch+c.gens[key] != gen {
		return false, nil
	}
	c.store(key, value, ttl)
	return true, nil
}

func (c *InMemoryCache) store(key string, value interface{}, ttl int) {
	item := cacheItem{value: value}
	if ttl > 0 {
		item.expiresAt = c.now().Add(time.Duration(ttl) * time.Second)
	}
	c.items[key] = item
}

// Delete removes a value from cache
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	c.gens[key]++
	return nil
}

// Clear removes all values from cache
func (c *InMemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]cacheItem)
	c.epoch++
	return nil
}

// Len returns the number of stored items, expired ones included
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the sweeper
func (c *InMemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanupExpired periodically removes expired items
func (c *InMemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *InMemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, item := range c.items {
		if !item.expiresAt.IsZero() && now.After(item.expiresAt) {
			delete(c.items, key)
		}
	}
}
