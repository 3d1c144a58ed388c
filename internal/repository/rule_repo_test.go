package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/timmy/imageguard/internal/config"
	"github.com/timmy/imageguard/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return newTestDBWithPool(t, 1)
}

func newTestDBWithPool(t *testing.T, maxOpenConns int) *gorm.DB {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "rules.db"),
		MaxOpenConns: maxOpenConns,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestAddReference(t *testing.T) {
	repo := NewRuleRepository(newTestDB(t))
	ctx := context.Background()

	first, created, err := repo.AddReference(ctx, "c1", "aaaa")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, first.Seq)

	again, created, err := repo.AddReference(ctx, "c1", "bbbb")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Seq, again.Seq)
	assert.Equal(t, "aaaa", again.Fingerprint, "existing fingerprint is kept")

	second, created, err := repo.AddReference(ctx, "c2", "cccc")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Greater(t, second.Seq, first.Seq)
}

func TestAddReferenceConcurrentSequences(t *testing.T) {
	repo := NewRuleRepository(newTestDB(t))
	ctx := context.Background()

	const n = 16
	seqs := make([]uint, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, _, err := repo.AddReference(ctx, fmt.Sprintf("c%d", i), "ffff")
			if assert.NoError(t, err) {
				seqs[i] = ref.Seq
			}
		}()
	}
	wg.Wait()

	seen := make(map[uint]bool, n)
	for _, s := range seqs {
		assert.False(t, seen[s], "duplicate seq %d", s)
		seen[s] = true
	}
}

func TestConcurrentRegistrationsWithDefaultPool(t *testing.T) {
	// Same pool size as the shipped config.
	repo := NewRuleRepository(newTestDBWithPool(t, 10))
	ctx := context.Background()

	const n = 32
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			contentID := fmt.Sprintf("c%d", i%4)
			if _, _, err := repo.AddReference(ctx, contentID, "ffff"); err != nil {
				errs[i] = err
				return
			}
			errs[i] = repo.RegisterInScope(ctx, fmt.Sprintf("g%d", i), contentID)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "registration %d", i)
	}
	for i := 0; i < 4; i++ {
		var regs int64
		require.NoError(t, repo.db.Model(&domain.ScopeRegistration{}).
			Where("content_id = ?", fmt.Sprintf("c%d", i)).Count(&regs).Error)
		assert.Equal(t, int64(n/4), regs)
	}
}

func TestConcurrentDuplicateRegistration(t *testing.T) {
	repo := NewRuleRepository(newTestDBWithPool(t, 10))
	ctx := context.Background()
	_, _, err := repo.AddReference(ctx, "c1", "ffff")
	require.NoError(t, err)

	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = repo.RegisterInScope(ctx, "g1", "c1")
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)
	}
	assert.Equal(t, 1, ok)
}

func TestRegisterInScope(t *testing.T) {
	repo := NewRuleRepository(newTestDB(t))
	ctx := context.Background()

	_, _, err := repo.AddReference(ctx, "c1", "aaaa")
	require.NoError(t, err)

	require.NoError(t, repo.RegisterInScope(ctx, "g1", "c1"))
	require.NoError(t, repo.RegisterInScope(ctx, "g2", "c1"))

	tests := []struct {
		name      string
		scope     string
		contentID string
		wantErr   error
	}{
		{"duplicate", "g1", "c1", domain.ErrAlreadyRegistered},
		{"unknown reference", "g1", "nope", domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.RegisterInScope(ctx, tt.scope, tt.contentID)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	ok, err := repo.IsRegistered(ctx, "g2", "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.IsRegistered(ctx, "g3", "c1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnregisterInScope(t *testing.T) {
	repo := NewRuleRepository(newTestDB(t))
	ctx := context.Background()

	_, _, err := repo.AddReference(ctx, "c1", "aaaa")
	require.NoError(t, err)
	require.NoError(t, repo.RegisterInScope(ctx, "g1", "c1"))
	require.NoError(t, repo.RegisterInScope(ctx, "g2", "c1"))

	_, err = repo.UnregisterInScope(ctx, "g3", "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	orphaned, err := repo.UnregisterInScope(ctx, "g1", "c1")
	require.NoError(t, err)
	assert.False(t, orphaned, "still registered in g2")

	_, err = repo.UnregisterInScope(ctx, "g1", "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	orphaned, err = repo.UnregisterInScope(ctx, "g2", "c1")
	require.NoError(t, err)
	assert.True(t, orphaned)

	_, err = repo.GetReference(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteReferenceIfUnregistered(t *testing.T) {
	repo := NewRuleRepository(newTestDB(t))
	ctx := context.Background()

	_, _, err := repo.AddReference(ctx, "kept", "aaaa")
	require.NoError(t, err)
	require.NoError(t, repo.RegisterInScope(ctx, "g1", "kept"))
	_, _, err = repo.AddReference(ctx, "loose", "bbbb")
	require.NoError(t, err)

	deleted, err := repo.DeleteReferenceIfUnregistered(ctx, "kept")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = repo.DeleteReferenceIfUnregistered(ctx, "loose")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = repo.GetReference(ctx, "loose")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err = repo.DeleteReferenceIfUnregistered(ctx, "never")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestScopeQueries(t *testing.T) {
	repo := NewRuleRepository(newTestDB(t))
	ctx := context.Background()

	// Registration order differs from insertion order on purpose.
	for _, id := range []string{"a", "b", "c"} {
		_, _, err := repo.AddReference(ctx, id, "fp-"+id)
		require.NoError(t, err)
	}
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, repo.RegisterInScope(ctx, "g1", id))
	}
	require.NoError(t, repo.RegisterInScope(ctx, "g2", "a"))

	page, err := repo.ListByScope(ctx, "g1", 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ContentID)
	assert.Equal(t, "a", page[1].ContentID)

	page, err = repo.ListByScope(ctx, "g1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ContentID)

	count, err := repo.CountByScope(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	ids, err := repo.ScopeContentIDs(ctx, "g2")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	ref, err := repo.GetReference(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, ref.Seq, ids["a"])

	fps, err := repo.FingerprintsForScope(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, fps, 3)
	assert.Equal(t, "fp-c", fps[0].Fingerprint)
	assert.Equal(t, "fp-b", fps[2].Fingerprint)

	empty, err := repo.FingerprintsForScope(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLookupBySequence(t *testing.T) {
	repo := NewRuleRepository(newTestDB(t))
	ctx := context.Background()

	ref, _, err := repo.AddReference(ctx, "c1", "aaaa")
	require.NoError(t, err)

	got, err := repo.LookupBySequence(ctx, ref.Seq)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ContentID)

	_, err = repo.LookupBySequence(ctx, ref.Seq+100)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreUnavailable(t *testing.T) {
	db := newTestDB(t)
	repo := NewRuleRepository(db)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = repo.FingerprintsForScope(context.Background(), "g1")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, _, err = repo.AddReference(context.Background(), "c1", "aaaa")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestCanceledContextIsNotStoreFailure(t *testing.T) {
	repo := NewRuleRepository(newTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.FingerprintsForScope(ctx, "g1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
}
