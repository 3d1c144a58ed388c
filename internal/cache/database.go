package cache

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/imageguard/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DatabaseCache keeps fingerprints in the fingerprint_cache table of the
// rule store's database. Expired rows are ignored on read and removed by
// Sweep.
type DatabaseCache struct {
	db  *gorm.DB
	now func() time.Time
}

var _ FingerprintCache = (*DatabaseCache)(nil)

// NewDatabaseCache creates a database-backed cache. The table is created by
// repository.InitDB when auto-migration is enabled.
func NewDatabaseCache(db *gorm.DB) *DatabaseCache {
	return &DatabaseCache{db: db, now: time.Now}
}

func (c *DatabaseCache) Get(ctx context.Context, contentID string) (string, bool, error) {
	var entry domain.FingerprintCacheEntry
	err := c.db.WithContext(ctx).
		Where("content_id = ? AND expires_at > ?", contentID, c.now()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Fingerprint, true, nil
}

func (c *DatabaseCache) Set(ctx context.Context, contentID, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := c.now()
	entry := &domain.FingerprintCacheEntry{
		ContentID:   contentID,
		Fingerprint: fingerprint,
		ExpiresAt:   now.Add(ttl),
		UpdatedAt:   now,
	}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"fingerprint", "expires_at", "updated_at"}),
	}).Create(entry).Error
}

// Sweep deletes expired rows and returns how many were removed.
func (c *DatabaseCache) Sweep(ctx context.Context) (int64, error) {
	res := c.db.WithContext(ctx).
		Where("expires_at <= ?", c.now()).
		Delete(&domain.FingerprintCacheEntry{})
	return res.RowsAffected, res.Error
}

// RunSweeper calls Sweep every interval until ctx is done.
func (c *DatabaseCache) RunSweeper(ctx context.Context, interval time.Duration, onSweep func(removed int64, err error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Sweep(ctx)
			if onSweep != nil {
				onSweep(n, err)
			}
		}
	}
}
