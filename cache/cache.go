// Package cache provides the TTL-backed, cooperative-lock cache the inbound
// resolver uses so that concurrent wire messages hashing to the same
// (sender, recipient) verkey pair invoke the connection lookup exactly
// once: a mutex-protected map swept by a background ticker, plus
// golang.org/x/sync/singleflight to collapse concurrent misses into a
// single resolve call.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache stores arbitrary resolved values under a string key for a bounded
// time, and ensures concurrent misses on the same key only run resolve
// once.
type Cache interface {
	// GetOrResolve returns the cached value for key if it is present and
	// unexpired. Otherwise it calls resolve exactly once even if multiple
	// goroutines race on the same key, stores the result under ttl, and
	// returns it to every waiter.
	GetOrResolve(ctx context.Context, key string, ttl time.Duration, resolve func(ctx context.Context) (any, error)) (any, error)
}

type entry struct {
	value     any
	expiresAt time.Time
}

// TTLCache is the default Cache implementation.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group

	sweepTicker *time.Ticker
	stopSweep   chan struct{}
}

// NewTTLCache builds a TTLCache that sweeps expired entries every
// sweepInterval. Passing a zero sweepInterval disables background
// sweeping; entries are still treated as expired on read, just never
// proactively evicted.
func NewTTLCache(sweepInterval time.Duration) *TTLCache {
	c := &TTLCache{
		entries:   make(map[string]entry),
		stopSweep: make(chan struct{}),
	}

	if sweepInterval > 0 {
		c.sweepTicker = time.NewTicker(sweepInterval)
		go c.runSweep()
	}
	return c
}

func (c *TTLCache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *TTLCache) store(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

// GetOrResolve implements Cache. The singleflight group, keyed identically
// to the map, means that by the time a waiter's Do call returns, either it
// ran resolve itself or another goroutine already populated the cache entry
// it reads through GetOrResolve's own cache check inside the group
// function — either way resolve itself runs at most once per outstanding
// miss.
func (c *TTLCache) GetOrResolve(ctx context.Context, key string, ttl time.Duration, resolve func(ctx context.Context) (any, error)) (any, error) {
	if value, ok := c.lookup(key); ok {
		return value, nil
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		if value, ok := c.lookup(key); ok {
			return value, nil
		}
		resolved, err := resolve(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, resolved, ttl)
		return resolved, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (c *TTLCache) runSweep() {
	for {
		select {
		case <-c.sweepTicker.C:
			c.sweepExpired()
		case <-c.stopSweep:
			return
		}
	}
}

func (c *TTLCache) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Close stops the background sweep goroutine. Safe to call on a cache
// built with sweepInterval of 0.
func (c *TTLCache) Close() {
	close(c.stopSweep)
	if c.sweepTicker != nil {
		c.sweepTicker.Stop()
	}
}
