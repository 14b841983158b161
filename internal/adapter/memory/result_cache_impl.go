package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type cacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

// ResultCacheImpl is an in-process ResultCache. Values are stored JSON-encoded so
// callers get the same copy semantics as with the Redis cache.
type ResultCacheImpl struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewResultCache creates an empty cache.
func NewResultCache() *ResultCacheImpl {
	return &ResultCacheImpl{entries: make(map[string]cacheEntry), now: time.Now}
}

// Get decodes the live entry for key into dst.
func (c *ResultCacheImpl) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(e.payload, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Put stores value under key for ttl.
func (c *ResultCacheImpl) Put(_ context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{payload: payload, expiresAt: c.now().Add(ttl)}
	return nil
}
