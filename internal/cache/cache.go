// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cache provides byte caches for encoded store chunks: an in-memory
// LRU with TTL, and shared Redis and on-disk Badger backends.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/ManuGH/meamovie/internal/metrics"
)

// Cache stores raw chunk payloads by key. Implementations are safe for
// concurrent use; failures degrade to misses.
type Cache interface {
	// Get retrieves a value. Returns false if missing or expired.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores a value with the specified TTL (0 = no expiry).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes a value.
	Delete(ctx context.Context, key string)
	// Stats returns cache statistics.
	Stats() CacheStats
	// Close releases background resources.
	Close() error
}

// CacheStats holds cache performance metrics.
type CacheStats struct {
	Hits        int64 // Number of successful Get operations
	Misses      int64 // Number of failed Get operations (not found or expired)
	Sets        int64 // Number of Set operations
	Evictions   int64 // Entries removed because of expiry or capacity
	CurrentSize int   // Current number of cached entries
	Bytes       int64 // Current payload bytes (memory backend only)
}

// entry represents a cached value with expiration time.
type entry struct {
	key        string
	value      []byte
	expiration time.Time
}

func (e *entry) isExpired(now time.Time) bool {
	return !e.expiration.IsZero() && now.After(e.expiration)
}

// memoryCache is an in-memory LRU bounded by total payload bytes.
type memoryCache struct {
	mu       sync.Mutex
	maxBytes int64
	bytes    int64
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
	stats    CacheStats
	janitor  *janitor
	now      func() time.Time
}

// NewMemoryCache creates an in-memory cache holding at most maxBytes of
// payload (0 = unbounded). The cleanupInterval determines how often expired
// entries are removed in the background (0 disables the janitor).
func NewMemoryCache(maxBytes int64, cleanupInterval time.Duration) Cache {
	c := &memoryCache{
		maxBytes: maxBytes,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}

	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
			done:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}

	return c
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, found := c.entries[key]
	if !found {
		c.stats.Misses++
		metrics.IncChunkCache("memory", "miss")
		return nil, false
	}
	e := el.Value.(*entry)
	if e.isExpired(c.now()) {
		c.removeElement(el)
		c.stats.Evictions++
		c.stats.Misses++
		metrics.IncChunkCache("memory", "miss")
		return nil, false
	}

	c.order.MoveToFront(el)
	c.stats.Hits++
	metrics.IncChunkCache("memory", "hit")
	return e.value, true
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	size := int64(len(value))
	if c.maxBytes > 0 && size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
	el := c.order.PushFront(&entry{key: key, value: value, expiration: exp})
	c.entries[key] = el
	c.bytes += size
	c.stats.Sets++

	for c.maxBytes > 0 && c.bytes > c.maxBytes {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.stats.Evictions++
	}
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
}

func (c *memoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.CurrentSize = len(c.entries)
	stats.Bytes = c.bytes
	return stats
}

// Close stops the background cleanup goroutine.
func (c *memoryCache) Close() error {
	if c.janitor != nil {
		c.janitor.shutdown()
	}
	return nil
}

func (c *memoryCache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.entries, e.key)
	c.bytes -= int64(len(e.value))
}

// deleteExpired removes all expired entries and returns how many were dropped.
func (c *memoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*entry).isExpired(now) {
			c.removeElement(el)
			count++
		}
		el = prev
	}

	c.stats.Evictions += int64(count)
	return count
}

// janitor performs periodic cleanup of expired entries.
type janitor struct {
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// run starts the cleanup loop.
func (j *janitor) run(c *memoryCache) {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

func (j *janitor) shutdown() {
	j.once.Do(func() {
		close(j.stop)
		<-j.done
	})
}

// noOpCache is a cache that does nothing (useful for disabling caching).
type noOpCache struct{}

// NewNoOpCache creates a cache that doesn't cache anything.
func NewNoOpCache() Cache {
	return noOpCache{}
}

func (noOpCache) Get(context.Context, string) ([]byte, bool)             { return nil, false }
func (noOpCache) Set(context.Context, string, []byte, time.Duration)     {}
func (noOpCache) Delete(context.Context, string)                         {}
func (noOpCache) Stats() CacheStats                                      { return CacheStats{} }
func (noOpCache) Close() error                                           { return nil }
