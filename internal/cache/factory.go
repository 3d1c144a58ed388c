package cache

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/timmy/imageguard/internal/config"
)

// localTierTTL bounds how long the redis backend's in-process tier may
// serve an entry without consulting redis.
const localTierTTL = time.Minute

// New builds the backend named by cfg.Backend. db is only used by the
// database backend. The returned func releases backend resources.
func New(ctx context.Context, cfg *config.CacheConfig, db *gorm.DB) (FingerprintCache, func() error, error) {
	noop := func() error { return nil }

	if err := ValidateBackend(cfg.Backend); err != nil {
		return nil, nil, err
	}

	switch cfg.Backend {
	case BackendRedis:
		c, err := NewRedisCache(ctx, cfg.RedisURL, cfg.LocalSize, localTierTTL)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case BackendDatabase:
		return NewDatabaseCache(db), noop, nil
	default:
		c, err := NewMemoryCache(cfg.Capacity)
		if err != nil {
			return nil, nil, err
		}
		return c, noop, nil
	}
}
