package market

import (
	"sort"
	"sync"
	"time"
)

const (
	// staleHorizon bounds how long an expired entry may still be served.
	staleHorizon    = 24 * time.Hour
	maxCacheEntries = 2048
)

type cacheEntry struct {
	storedAt time.Time
	body     []byte
}

// responseCache keeps raw response bodies. Expired entries stay around for
// staleHorizon so they can be served when CoinGecko is unavailable.
type responseCache struct {
	ttl        time.Duration
	maxEntries int
	mu         sync.Mutex
	entries    map[string]cacheEntry
	lastSweep  time.Time
	now        func() time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{ttl: ttl, maxEntries: maxCacheEntries, entries: map[string]cacheEntry{}, now: time.Now}
}

func (c *responseCache) fresh(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		return nil, false
	}
	return e.body, true
}

func (c *responseCache) stale(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.storedAt) >= staleHorizon {
		return nil, false
	}
	return e.body, true
}

func (c *responseCache) set(key string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.entries[key] = cacheEntry{storedAt: now, body: body}
	if len(c.entries) > c.maxEntries || now.Sub(c.lastSweep) >= c.ttl {
		c.sweep(now)
	}
}

// sweep drops entries past the stale horizon, then the oldest ones while
// the cache is over capacity. Callers hold mu.
func (c *responseCache) sweep(now time.Time) {
	c.lastSweep = now
	for k, e := range c.entries {
		if now.Sub(e.storedAt) >= staleHorizon {
			delete(c.entries, k)
		}
	}
	if len(c.entries) <= c.maxEntries {
		return
	}
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return c.entries[keys[i]].storedAt.Before(c.entries[keys[j]].storedAt) })
	for _, k := range keys[:len(keys)-c.maxEntries] {
		delete(c.entries, k)
	}
}
