package cache

import (
	"path"
	"sync"
	"time"

	"github.com/arbihedron/arbihedron-go/internal/models"
)

// Clock returns the current time; tests substitute a fake one.
type Clock func() time.Time

// TickerCacheStats tracks cache performance counters.
type TickerCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

type tickerEntry struct {
	pair     models.TradingPair
	storedAt time.Time
}

// TickerCache is a short-TTL in-process store of ticker snapshots keyed by
// (venue, symbol). It absorbs repeated reads within one scan cycle; writes are
// last-write-wins. A stale entry is reported as absent, never refetched here.
type TickerCache struct {
	mu      sync.RWMutex
	entries map[string]tickerEntry
	ttl     time.Duration
	now     Clock
	stats   TickerCacheStats
}

// NewTickerCache creates a ticker cache with the given TTL. A nil clock
// defaults to time.Now.
func NewTickerCache(ttl time.Duration, now Clock) *TickerCache {
	if now == nil {
		now = time.Now
	}
	return &TickerCache{
		entries: make(map[string]tickerEntry),
		ttl:     ttl,
		now:     now,
	}
}

// Key builds the cache key for a venue-scoped symbol.
func Key(venue, symbol string) string {
	return venue + ":" + symbol
}

// Get returns the cached snapshot if its age is below the TTL. Expired
// entries are dropped lazily.
func (c *TickerCache) Get(venue, symbol string) (models.TradingPair, bool) {
	key := Key(venue, symbol)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.storedAt) < c.ttl {
		c.mu.Lock()
		c.stats.Hits++
		c.mu.Unlock()
		return entry.pair, true
	}

	c.mu.Lock()
	if ok {
		// Re-check under the write lock: a concurrent Put may have refreshed it.
		if entry, ok = c.entries[key]; ok && c.now().Sub(entry.storedAt) < c.ttl {
			c.stats.Hits++
			c.mu.Unlock()
			return entry.pair, true
		}
		delete(c.entries, key)
	}
	c.stats.Misses++
	c.mu.Unlock()
	return models.TradingPair{}, false
}

// Put stores or overwrites the snapshot for a venue-scoped symbol.
func (c *TickerCache) Put(venue, symbol string, pair models.TradingPair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(venue, symbol)] = tickerEntry{pair: pair, storedAt: c.now()}
	c.stats.Sets++
}

// Invalidate removes every entry whose key matches the glob pattern, e.g.
// "kraken:*" after a reconnect. It returns the number of removed entries.
func (c *TickerCache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (c *TickerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a copy of the hit/miss counters.
func (c *TickerCache) Stats() TickerCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
