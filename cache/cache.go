// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package cache implements a time-bounded keyed cache used to avoid
// re-fetching samples from remote endpoints on every pipeline run. Each
// endpoint gets its own cache; entries carry their own TTL.
package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultSweepInterval is how often expired entries are removed in the
// background. Expired entries are also dropped lazily on read, so the sweep
// only matters for keys that stop being read.
const DefaultSweepInterval = 5 * time.Minute

// Cacheable is anything that can derive its own cache key.
type Cacheable interface {
	CacheKey() string
}

type entry[T Cacheable] struct {
	value     T
	expiresAt time.Time
}

// Cache is a concurrency-safe keyed cache with per-entry expiration. Last
// write wins on identical keys. There is no size cap; the key space per
// endpoint is bounded by the configured extracts.
type Cache[T Cacheable] struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	entries map[string]entry[T]

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a cache and starts its background sweep.
func New[T Cacheable](clock clockwork.Clock, sweepInterval time.Duration) *Cache[T] {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	c := &Cache[T]{
		clock:   clock,
		entries: make(map[string]entry[T]),
		stopCh:  make(chan struct{}),
	}
	go c.sweep(sweepInterval)
	return c
}

// Put stores the value under its own cache key, expiring after ttlMillis.
// A non-positive ttl is a no-op.
func (c *Cache[T]) Put(value T, ttlMillis int64) {
	if ttlMillis <= 0 {
		return
	}
	expires := c.clock.Now().Add(time.Duration(ttlMillis) * time.Millisecond)

	c.mu.Lock()
	c.entries[value.CacheKey()] = entry[T]{value: value, expiresAt: expires}
	c.mu.Unlock()
}

// Get returns the cached value for key, or false if absent or expired.
// Expired entries are evicted on access.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero T
	if !ok {
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		c.mu.Lock()
		// re-check under the write lock; a fresher entry may have landed
		if cur, ok := c.entries[key]; ok && !c.clock.Now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Len reports the number of entries, including any not yet swept.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweep.
func (c *Cache[T]) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Cache[T]) sweep(interval time.Duration) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.Chan():
			now := c.clock.Now()
			c.mu.Lock()
			for k, e := range c.entries {
				if !now.Before(e.expiresAt) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
