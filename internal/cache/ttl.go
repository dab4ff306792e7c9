// Package cache provides the in-process TTL stores shared by all requests:
// the assembled heatmap payloads and the per-coordinate weather forecasts.
package cache

import (
	"sort"
	"sync"
	"time"
)

// Clock abstracts time for expiry checks
type Clock interface {
	Now() time.Time
}

// RealClock uses the system time
type RealClock struct{}

// Now returns the current time
func (RealClock) Now() time.Time { return time.Now() }

// Stats are cumulative counters plus the current key count
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Keys   int   `json:"keys"`
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a key/value store whose entries expire after a fixed lifetime.
// Expired entries are dropped lazily on read and eagerly by Sweep.
type TTL[V any] struct {
	mu     sync.RWMutex
	items  map[string]entry[V]
	ttl    time.Duration
	clock  Clock
	hits   int64
	misses int64
}

// Option configures a TTL cache
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock overrides the clock used for expiry
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// New creates a cache whose entries live for ttl
func New[V any](ttl time.Duration, opts ...Option) *TTL[V] {
	o := options{clock: RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTL[V]{
		items: make(map[string]entry[V]),
		ttl:   ttl,
		clock: o.clock,
	}
}

// TTL returns the default entry lifetime
func (c *TTL[V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the live value for key
func (c *TTL[V]) Get(key string) (V, bool) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if ok && !now.Before(e.expiresAt) {
		delete(c.items, key)
		ok = false
	}
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Set stores value under key with the default lifetime
func (c *TTL[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key with a custom lifetime
func (c *TTL[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	expiresAt := c.clock.Now().Add(ttl)

	c.mu.Lock()
	c.items[key] = entry[V]{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Delete removes key and reports whether it was present
func (c *TTL[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	delete(c.items, key)
	return ok
}

// Sweep purges every expired entry and returns how many were removed
func (c *TTL[V]) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Keys lists stored keys in sorted order, including not-yet-swept expired ones
func (c *TTL[V]) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}
	c.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Stats returns hit/miss counters and the key count
func (c *TTL[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Hits:   c.hits,
		Misses: c.misses,
		Keys:   len(c.items),
	}
}
