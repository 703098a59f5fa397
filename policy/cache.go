package policy

import (
	"context"
	"sync"
	"time"
)

// cacheEntry holds a cached policy listing with its expiration time.
type cacheEntry struct {
	policies []*Policy
	expiry   time.Time
}

// CachedStore wraps a Store with in-memory TTL-based caching of per-server
// policy listings. It reduces store round trips for repeated session
// requests within short time windows. Policy evaluation needs no locking
// beyond this: a cached listing is the snapshot the evaluator works from,
// and mutations take effect once the entry expires.
//
// It is safe for concurrent use.
type CachedStore struct {
	store Store
	mu    sync.RWMutex
	cache map[string]*cacheEntry
	ttl   time.Duration
}

// NewCachedStore creates a CachedStore that wraps the given store and caches
// listings for the specified TTL duration.
func NewCachedStore(store Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		store: store,
		cache: make(map[string]*cacheEntry),
		ttl:   ttl,
	}
}

// ListForServer fetches the policy listing for serverID, using cached values
// when available. Cache misses and expired entries trigger a fresh read from
// the underlying store. Errors are not cached.
func (c *CachedStore) ListForServer(ctx context.Context, serverID string) ([]*Policy, error) {
	// Try read lock first for cache hit
	c.mu.RLock()
	if entry, ok := c.cache[serverID]; ok && time.Now().Before(entry.expiry) {
		c.mu.RUnlock()
		return entry.policies, nil
	}
	c.mu.RUnlock()

	// Cache miss or expired, acquire write lock
	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have populated)
	if entry, ok := c.cache[serverID]; ok && time.Now().Before(entry.expiry) {
		return entry.policies, nil
	}

	policies, err := c.store.ListForServer(ctx, serverID)
	if err != nil {
		return nil, err
	}

	c.cache[serverID] = &cacheEntry{
		policies: policies,
		expiry:   time.Now().Add(c.ttl),
	}
	return policies, nil
}

// Invalidate drops the cached listing for serverID, forcing the next read
// through to the underlying store.
func (c *CachedStore) Invalidate(serverID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, serverID)
}

// InvalidateAll drops every cached listing.
func (c *CachedStore) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*cacheEntry)
}
