package cache

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisCache stores fingerprints in redis, fronted by a small local TinyLFU.
// The local tier is capped at localTTL so a process never serves an entry
// for longer than redis would.
type RedisCache struct {
	rdb  *redis.Client
	data *cache.Cache
}

var _ FingerprintCache = (*RedisCache)(nil)

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(ctx context.Context, redisURL string, localSize int, localTTL time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	opts := &cache.Options{Redis: rdb}
	if localSize > 0 && localTTL > 0 {
		opts.LocalCache = cache.NewTinyLFU(localSize, localTTL)
	}
	return &RedisCache{rdb: rdb, data: cache.New(opts)}, nil
}

func redisCacheKey(contentID string) string {
	return "imageguard/fingerprint/" + contentID
}

func (s *RedisCache) Get(ctx context.Context, contentID string) (string, bool, error) {
	var val string
	err := s.data.Get(ctx, redisCacheKey(contentID), &val)
	if err == cache.ErrCacheMiss {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisCache) Set(ctx context.Context, contentID, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCacheKey(contentID),
		Value: fingerprint,
		TTL:   ttl,
	})
}

// Close releases the redis connection pool.
func (s *RedisCache) Close() error {
	return s.rdb.Close()
}
