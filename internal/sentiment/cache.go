package sentiment

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/tickerpulse/internal/domain"
	"github.com/pscheid92/tickerpulse/internal/metrics"
)

// ResultCache keeps computed aggregates in memory with TTL-based expiration.
// It sits in front of the Redis snapshot store and absorbs the read traffic
// of dashboards polling the same handful of symbols.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

type cacheEntry struct {
	result    domain.AggregateResult
	expiresAt time.Time
}

// NewResultCache creates a cache with the given TTL. The clock is injected
// so expiry is testable without sleeping.
func NewResultCache(ttl time.Duration, clock clockwork.Clock) *ResultCache {
	return &ResultCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached aggregate for a symbol if present and not expired.
// Expired entries count as misses; they are removed by the eviction pass,
// not here, since Get only holds the read lock.
func (c *ResultCache) Get(symbol string) (*domain.AggregateResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[symbol]
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(entry.expiresAt) {
		return nil, false
	}

	result := entry.result
	return &result, true
}

// Set stores an aggregate under its symbol with a fresh TTL.
func (c *ResultCache) Set(symbol string, result domain.AggregateResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[symbol] = &cacheEntry{
		result:    result,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Invalidate removes a symbol from the cache. Called after a refresh stored
// new submissions so the next read recomputes.
func (c *ResultCache) Invalidate(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, symbol)
}

// Clear removes all entries.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Size returns the number of entries, expired ones included.
func (c *ResultCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// EvictExpired removes all expired entries and returns how many went. Keeps
// the cache from growing with symbols nobody asks for anymore.
func (c *ResultCache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for symbol, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, symbol)
			evicted++
		}
	}
	return evicted
}

// StartEvictionTimer runs EvictExpired on the given interval in a background
// goroutine. The returned stop function ends the goroutine.
func (c *ResultCache) StartEvictionTimer(interval time.Duration) func() {
	ticker := c.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				evicted := c.EvictExpired()
				if evicted > 0 {
					slog.Debug("Evicted expired aggregate cache entries",
						"count", evicted,
						"remaining", c.Size(),
					)
					metrics.CacheEvictionsTotal.Add(float64(evicted))
				}
				metrics.CacheSize.Set(float64(c.Size()))

			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}
