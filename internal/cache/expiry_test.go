package cache_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/imageguard/internal/cache"
	"github.com/timmy/imageguard/internal/config"
	"github.com/timmy/imageguard/internal/domain"
	"github.com/timmy/imageguard/internal/hasher"
	"github.com/timmy/imageguard/internal/hasher/hashertest"
	"github.com/timmy/imageguard/internal/repository"
	"github.com/timmy/imageguard/internal/service"
)

type countingFetcher struct {
	mu    sync.Mutex
	body  []byte
	calls int
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.body == nil {
		return nil, fmt.Errorf("%w: status 404", domain.ErrFetch)
	}
	return f.body, nil
}

func (f *countingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestEngineRecomputesAfterCacheExpiry(t *testing.T) {
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "rules.db"),
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	ctx := context.Background()
	repo := repository.NewRuleRepository(db)
	_, _, err = repo.AddReference(ctx, "ref-1", hashertest.PatternHash)
	require.NoError(t, err)
	require.NoError(t, repo.RegisterInScope(ctx, "S", "ref-1"))

	h, err := hasher.New(hasher.DefaultBits)
	require.NoError(t, err)
	memCache, err := cache.NewMemoryCache(100)
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	memCache.SetClock(func() time.Time { return now })

	fetcher := &countingFetcher{body: hashertest.PNG(hashertest.Pattern, 8)}
	fps := service.NewFingerprintService(h, memCache, fetcher, &service.FingerprintConfig{
		CacheTTL:     time.Hour,
		FetchTimeout: time.Second,
	})
	engine := service.NewMatchEngine(repo, fps, &service.MatchConfig{Similarity: 0, MaxConcurrentFetches: 2})
	candidate := []domain.Candidate{{ContentID: "repost", URL: "https://cdn.example/repost.png"}}

	tests := []struct {
		name      string
		advance   time.Duration
		wantCalls int
	}{
		{"first sight fetches", 0, 1},
		{"cached within ttl", 30 * time.Minute, 1},
		{"just before expiry", 29*time.Minute + 59*time.Second, 1},
		{"expired entry is recomputed", time.Second, 2},
		{"fresh entry is cached again", 10 * time.Minute, 2},
	}
	for _, tt := range tests {
		now = now.Add(tt.advance)

		res, err := engine.Evaluate(ctx, "S", candidate)
		require.NoError(t, err, tt.name)
		assert.Equal(t, domain.VerdictSimilarMatch, res.Verdict, tt.name)
		assert.Equal(t, tt.wantCalls, fetcher.count(), tt.name)
	}
}
