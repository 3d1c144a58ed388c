package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/imageguard/internal/config"
	"github.com/timmy/imageguard/internal/repository"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// exerciseTTL checks the expiry contract shared by every backend.
func exerciseTTL(t *testing.T, c FingerprintCache, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", "abc123", time.Hour))
	fp, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc123", fp)

	clock.advance(59 * time.Minute)
	_, ok, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok, "still fresh before the ttl")

	clock.advance(time.Minute)
	_, ok, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "expired exactly at the ttl")

	require.NoError(t, c.Set(ctx, "b", "first", time.Hour))
	require.NoError(t, c.Set(ctx, "b", "second", time.Hour))
	fp, _, err = c.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "second", fp, "last writer wins")

	require.NoError(t, c.Set(ctx, "c", "never", 0))
	_, ok, err = c.Get(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok, "non-positive ttl disables writes")
}

func TestMemoryCache(t *testing.T) {
	c, err := NewMemoryCache(10)
	require.NoError(t, err)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clock.now

	exerciseTTL(t, c, clock)
}

func TestMemoryCacheNoSlidingExpiry(t *testing.T) {
	c, err := NewMemoryCache(10)
	require.NoError(t, err)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clock.now
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "fp", 10*time.Minute))
	for i := 0; i < 3; i++ {
		clock.advance(3 * time.Minute)
		_, ok, _ := c.Get(ctx, "a")
		assert.True(t, ok)
	}
	clock.advance(time.Minute)
	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok, "reads do not extend expiry")
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCacheBounded(t *testing.T) {
	c, err := NewMemoryCache(2)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), "fp", time.Hour))
	}
	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, "k4")
	assert.True(t, ok)
	_, ok, _ = c.Get(ctx, "k0")
	assert.False(t, ok)
}

func newTestDatabaseCache(t *testing.T) *DatabaseCache {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "cache.db"),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewDatabaseCache(db)
}

func TestDatabaseCache(t *testing.T) {
	c := newTestDatabaseCache(t)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clock.now

	exerciseTTL(t, c, clock)
}

func TestDatabaseCacheSweep(t *testing.T) {
	c := newTestDatabaseCache(t)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clock.now
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "fp", time.Minute))
	require.NoError(t, c.Set(ctx, "long", "fp", time.Hour))
	clock.advance(2 * time.Minute)

	removed, err := c.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, ok, err := c.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunSweeperStops(t *testing.T) {
	c := newTestDatabaseCache(t)
	ctx, cancel := context.WithCancel(context.Background())

	sweeps := make(chan error, 10)
	done := make(chan struct{})
	go func() {
		c.RunSweeper(ctx, 10*time.Millisecond, func(_ int64, err error) {
			select {
			case sweeps <- err:
			default:
			}
		})
		close(done)
	}()

	select {
	case err := <-sweeps:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	c, closeFn, err := New(ctx, &config.CacheConfig{Backend: BackendMemory, Capacity: 5}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)
	assert.NoError(t, closeFn())

	_, _, err = New(ctx, &config.CacheConfig{Backend: "memcached"}, nil)
	assert.Error(t, err)
}

func TestRedisCache(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("live test, need redis running locally")
	}
	ctx := context.Background()

	c, err := NewRedisCache(ctx, redisURL, 0, 0)
	require.NoError(t, err)
	defer c.Close()

	key := fmt.Sprintf("test-%d", time.Now().UnixNano())
	require.NoError(t, c.Set(ctx, key, "abc123", time.Second))
	fp, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc123", fp)

	time.Sleep(1500 * time.Millisecond)
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
