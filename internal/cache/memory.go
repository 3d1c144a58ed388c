package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memEntry struct {
	fingerprint string
	expiresAt   time.Time
}

// MemoryCache is a bounded in-process cache. Expired entries are dropped
// lazily when read; the LRU bound evicts the rest.
type MemoryCache struct {
	data *lru.Cache[string, memEntry]
	now  func() time.Time
}

var _ FingerprintCache = (*MemoryCache)(nil)

// NewMemoryCache creates a memory cache holding at most capacity entries.
func NewMemoryCache(capacity int) (*MemoryCache, error) {
	if capacity <= 0 {
		capacity = 10_000
	}
	data, err := lru.New[string, memEntry](capacity)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{data: data, now: time.Now}, nil
}

func (c *MemoryCache) Get(ctx context.Context, contentID string) (string, bool, error) {
	e, ok := c.data.Get(contentID)
	if !ok {
		return "", false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.data.Remove(contentID)
		return "", false, nil
	}
	return e.fingerprint, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, contentID, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.data.Add(contentID, memEntry{fingerprint: fingerprint, expiresAt: c.now().Add(ttl)})
	return nil
}

// Len returns the number of entries currently held, expired or not.
func (c *MemoryCache) Len() int {
	return c.data.Len()
}
