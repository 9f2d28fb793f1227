// Package cache provides a small bounded cache with per-entry
// expiration and single-flight construction, used for model and agent
// bindings keyed by persona.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache memoizes values built by a caller-supplied function. Entries
// expire a fixed interval after construction regardless of access, and
// the cache never holds more than maxSize ready entries. Construction
// for a given key runs at most once at a time; concurrent callers wait
// for the in-flight build instead of racing it.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type entry[V any] struct {
	ready     chan struct{}
	value     V
	err       error
	createdAt time.Time
	expiresAt time.Time
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithClock overrides the time source, for tests.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.now = now
	}
}

// New creates a cache holding at most maxSize entries, each expiring
// ttl after construction started. maxSize must be positive; a zero ttl
// means entries never expire.
func New[K comparable, V any](maxSize int, ttl time.Duration, opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		entries: make(map[K]*entry[V]),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrBuild returns the cached value for key, building it with build
// on a miss. Failed builds are not cached; every waiter of a failed
// build receives the same error.
func (c *Cache[K, V]) GetOrBuild(ctx context.Context, key K, build func(context.Context) (V, error)) (V, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !c.expired(e) {
		c.mu.Unlock()
		return c.wait(ctx, e)
	}

	e := &entry[V]{
		ready:     make(chan struct{}),
		createdAt: c.now(),
	}
	if c.ttl > 0 {
		e.expiresAt = e.createdAt.Add(c.ttl)
	}
	c.entries[key] = e
	c.evictLocked(key)
	c.mu.Unlock()

	e.value, e.err = build(ctx)
	close(e.ready)

	if e.err != nil {
		c.mu.Lock()
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
	return e.value, e.err
}

// Len reports the number of entries currently held, including expired
// ones not yet swept.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Invalidate drops the entry for key, if any.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache[K, V]) wait(ctx context.Context, e *entry[V]) (V, error) {
	select {
	case <-e.ready:
		return e.value, e.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (c *Cache[K, V]) expired(e *entry[V]) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}

// evictLocked drops expired entries, then the oldest ready entries
// until the cache fits maxSize. In-flight builds (keyed by keep) are
// never evicted.
func (c *Cache[K, V]) evictLocked(keep K) {
	for k, e := range c.entries {
		if k != keep && c.expired(e) {
			delete(c.entries, k)
		}
	}

	for len(c.entries) > c.maxSize {
		var oldestKey K
		var oldest *entry[V]
		for k, e := range c.entries {
			if k == keep {
				continue
			}
			if oldest == nil || e.createdAt.Before(oldest.createdAt) {
				oldestKey, oldest = k, e
			}
		}
		if oldest == nil {
			return
		}
		delete(c.entries, oldestKey)
	}
}
