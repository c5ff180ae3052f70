package delta

import (
	"sync"
	"time"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
)

// CacheStats is a point-in-time view of the delta cache used by the
// inspection surface. Expired entries are purged before counting.
type CacheStats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

type cacheEntry struct {
	result    model.DeltaResult
	expiresAt time.Time
}

// ttlCache memoizes delta results per (org, source, filter) key with lazy
// expiry: entries are dropped on access once past their deadline, no
// background sweeper runs. A snapshot read racing an expiry may serve a
// result up to one TTL old, which is acceptable for preview data.
type ttlCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// get returns the cached result for key, or false when absent or expired.
func (c *ttlCache) get(key string) (model.DeltaResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return model.DeltaResult{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent put may have refreshed it.
		if cur, still := c.entries[key]; still && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return model.DeltaResult{}, false
	}
	return entry.result, true
}

// put stores the result under key with a fresh TTL deadline.
func (c *ttlCache) put(key string, result model.DeltaResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		result:    result,
		expiresAt: c.now().Add(c.ttl),
	}
}

// invalidate removes one entry. Removing an absent key is a no-op.
func (c *ttlCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// clear removes every entry.
func (c *ttlCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// stats purges expired entries and returns the live size and keys.
func (c *ttlCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	keys := make([]string, 0, len(c.entries))
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			continue
		}
		keys = append(keys, key)
	}
	return CacheStats{Size: len(keys), Keys: keys}
}
