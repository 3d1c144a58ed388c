package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/timmy/imageguard/internal/cache"
	"github.com/timmy/imageguard/internal/config"
	"github.com/timmy/imageguard/internal/domain"
	"github.com/timmy/imageguard/internal/hasher"
	"github.com/timmy/imageguard/internal/repository"
	"github.com/timmy/imageguard/internal/storage"
)

// fakeFetcher serves registered bodies and counts calls per URL.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: map[string][]byte{}, calls: map[string]int{}}
}

func (f *fakeFetcher) serve(url string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[url] = body
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	body, ok := f.bodies[url]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: status 404", domain.ErrFetch)
	}
	return body, nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

type testEnv struct {
	db       *gorm.DB
	repo     *repository.RuleRepository
	cache    *cache.MemoryCache
	fetcher  *fakeFetcher
	storage  storage.ObjectStorage
	fps      *FingerprintService
	engine   *MatchEngine
	registry *RegistryService
}

func newTestEnv(t *testing.T, similarity int) *testEnv {
	t.Helper()
	return newTestEnvWithPool(t, similarity, 1)
}

func newTestEnvWithPool(t *testing.T, similarity, maxOpenConns int) *testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(dir, "rules.db"),
		MaxOpenConns: maxOpenConns,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	h, err := hasher.New(hasher.DefaultBits)
	require.NoError(t, err)
	memCache, err := cache.NewMemoryCache(100)
	require.NoError(t, err)
	store, err := storage.NewLocalStorage(filepath.Join(dir, "images"))
	require.NoError(t, err)

	env := &testEnv{
		db:      db,
		repo:    repository.NewRuleRepository(db),
		cache:   memCache,
		fetcher: newFakeFetcher(),
		storage: store,
	}
	env.fps = NewFingerprintService(h, memCache, env.fetcher, &FingerprintConfig{
		CacheTTL:     time.Hour,
		FetchTimeout: time.Second,
	})
	env.engine = NewMatchEngine(env.repo, env.fps, &MatchConfig{
		Similarity:           similarity,
		MaxConcurrentFetches: 4,
	})
	env.registry = NewRegistryService(env.repo, env.fps, store, &RegistryConfig{PageSize: 5})
	return env
}

// seed stores a reference with a literal fingerprint and registers it in scope.
func (e *testEnv) seed(t *testing.T, scopeID, contentID, fp string) *domain.ReferenceImage {
	t.Helper()
	ctx := context.Background()
	ref, _, err := e.repo.AddReference(ctx, contentID, fp)
	require.NoError(t, err)
	require.NoError(t, e.repo.RegisterInScope(ctx, scopeID, contentID))
	return ref
}

// breakStore closes the database so every rule store call fails.
func (e *testEnv) breakStore(t *testing.T) {
	t.Helper()
	sqlDB, err := e.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}
