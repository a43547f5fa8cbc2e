// Package reqcache provides a cache scoped to a single comparison.
//
// A Cache is created at the start of a comparison, handed to the fetch
// pipeline and cleared at the end with its statistics reported. It is never
// shared across comparisons, so commit and tag data cannot go stale between
// requests.
package reqcache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Stats summarises cache usage for one comparison.
type Stats struct {
	Size        int           `json:"cache_size"`
	Hits        int           `json:"hits"`
	Misses      int           `json:"misses"`
	Shared      int           `json:"shared"` // concurrent callers that joined an in-flight load
	CallsSaved  int           `json:"api_calls_saved"`
	HitRate     float64       `json:"hit_rate"` // percent of lookups served without a load
	Duration    time.Duration `json:"duration_ns"`
	TotalLookup int           `json:"total_requests"`
}

// Cache is a mutex-guarded map with hit/miss accounting. The zero value is
// not usable; call New.
type Cache struct {
	mu      sync.Mutex
	entries map[string]any
	hits    int
	misses  int
	shared  int
	started time.Time
	flight  singleflight.Group
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]any),
		started: time.Now(),
	}
}

// Key builds a deterministic key from an operation name and its arguments.
func Key(op string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, op)
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, ":")
}

// Get returns the value stored under key.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// peek looks key up without counting a hit or miss.
func (c *Cache) peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the current statistics without clearing.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *Cache) statsLocked() Stats {
	total := c.hits + c.misses
	var rate float64
	if total > 0 {
		rate = float64(c.hits+c.shared) / float64(total) * 100
	}
	return Stats{
		Size:        len(c.entries),
		Hits:        c.hits,
		Misses:      c.misses,
		Shared:      c.shared,
		CallsSaved:  c.hits + c.shared,
		HitRate:     rate,
		Duration:    time.Since(c.started),
		TotalLookup: total,
	}
}

// Clear drops every entry, resets the counters and returns the statistics
// accumulated since the cache was created or last cleared.
func (c *Cache) Clear() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.statsLocked()
	c.entries = make(map[string]any)
	c.hits, c.misses, c.shared = 0, 0, 0
	c.started = time.Now()
	return stats
}

// Do returns the value cached under key, or calls load once for all
// concurrent callers asking for the same key. The loaded value is stored only
// when load reports it cacheable.
func Do[T any](c *Cache, key string, load func() (T, bool, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	leader, stored := false, false
	v, err, shared := c.flight.Do(key, func() (any, error) {
		leader = true
		// Another load may have finished between Get and Do.
		if v, ok := c.peek(key); ok {
			stored = true
			return v, nil
		}
		val, cacheable, err := load()
		if err != nil {
			return val, err
		}
		if cacheable {
			c.Set(key, val)
		}
		return val, nil
	})
	switch {
	case stored:
		c.mu.Lock()
		c.misses--
		c.hits++
		c.mu.Unlock()
	case shared && !leader:
		c.mu.Lock()
		c.shared++
		c.mu.Unlock()
	}

	typed, _ := v.(T)
	return typed, err
}
