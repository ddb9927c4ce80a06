package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/trailwx/segment-weather/internal/weather"
)

// SegmentCache is a concurrency-safe TTL cache of fetched segment weather
// data. An entry older than its TTL is treated as absent and dropped on the
// next lookup. It implements weather.SegmentCache.
type SegmentCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	clock   clockwork.Clock
}

type entry struct {
	data      weather.SegmentWeatherData
	fetchedAt time.Time
	ttl       time.Duration
}

// New creates a SegmentCache. The clock is injected so TTL expiry is
// deterministic under test.
func New(ttl time.Duration, clock clockwork.Clock) *SegmentCache {
	return &SegmentCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached data for key when the entry is still fresh.
func (c *SegmentCache) Get(key string) (weather.SegmentWeatherData, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return weather.SegmentWeatherData{}, false
	}
	if c.expired(e) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have
		// refreshed the entry.
		if current, ok := c.entries[key]; ok && c.expired(current) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return weather.SegmentWeatherData{}, false
	}
	return e.data, true
}

// Put stores data under key with the cache's TTL. Callers only cache
// successful fetches; a failed fetch must stay uncached so the next call
// retries.
func (c *SegmentCache) Put(key string, data weather.SegmentWeatherData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		data:      data,
		fetchedAt: c.clock.Now(),
		ttl:       c.ttl,
	}
}

// Len reports the number of live entries, expired ones included until their
// next lookup.
func (c *SegmentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *SegmentCache) expired(e entry) bool {
	return c.clock.Now().After(e.fetchedAt.Add(e.ttl))
}
