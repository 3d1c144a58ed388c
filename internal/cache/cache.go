package cache

import (
	"context"
	"fmt"
	"time"
)

// FingerprintCache stores content_id -> fingerprint with per-entry expiry.
// Expiry is fixed at Set time; Get never extends it. Concurrent writers of
// the same key are allowed and the last write wins.
type FingerprintCache interface {
	Get(ctx context.Context, contentID string) (string, bool, error)
	Set(ctx context.Context, contentID, fingerprint string, ttl time.Duration) error
}

// Backend names accepted by the cache.backend setting.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDatabase = "database"
)

// ValidateBackend reports whether name is a known backend.
func ValidateBackend(name string) error {
	switch name {
	case BackendMemory, BackendRedis, BackendDatabase:
		return nil
	default:
		return fmt.Errorf("unknown cache backend %q", name)
	}
}
