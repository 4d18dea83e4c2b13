package cache

import (
	"context"
	"sync"
	"time"

	"screener/internal/screening/models"
)

type cachedVerdict struct {
	data      []byte
	expiresAt time.Time
}

// InMemoryCache is a process-local verdict cache for development and tests.
// Entries are stored serialized so decoding behaves like the Redis cache.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[models.IdentityKey]cachedVerdict
	now     func() time.Time
}

// NewInMemoryCache creates an empty cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[models.IdentityKey]cachedVerdict),
		now:     time.Now,
	}
}

// Get returns the cached verdict, or ErrMiss if absent or expired.
func (c *InMemoryCache) Get(_ context.Context, key models.IdentityKey) (models.Verdict, error) {
	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(cached.expiresAt) {
		return models.Verdict{}, ErrMiss
	}
	return decode(key, cached.data)
}

// Set stores v under key until ttl elapses.
func (c *InMemoryCache) Set(_ context.Context, key models.IdentityKey, v models.Verdict, ttl time.Duration) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedVerdict{data: data, expiresAt: c.now().Add(effectiveTTL(ttl))}
	return nil
}

// Clear removes key's entry.
func (c *InMemoryCache) Clear(_ context.Context, key models.IdentityKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Health always succeeds.
func (c *InMemoryCache) Health(context.Context) error {
	return nil
}
