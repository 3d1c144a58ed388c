package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/imageguard/internal/config"
)

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - ctx: bounds the bucket check for S3 backends.
//   - cfg: storage configuration; type "local" keeps files under LocalDir,
//     anything else goes to an S3-compatible bucket.
//
// Returns:
//   - ObjectStorage: initialized storage implementation.
//   - error: non-nil if the storage cannot be created.
func NewStorage(ctx context.Context, cfg *config.StorageConfig) (ObjectStorage, error) {
	storeType := StorageType(strings.ToLower(cfg.Type))

	switch storeType {
	case "", StorageTypeLocal:
		return NewLocalStorage(cfg.LocalDir)
	case StorageTypeR2, StorageTypeS3, StorageTypeS3Compatible, "auto":
		if storeType == "auto" {
			storeType = detectStorageType(cfg.Endpoint)
		}
		s3Store, err := NewS3Storage(ctx, &S3Config{
			Type:      storeType,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Prefix:    cfg.Prefix,
		})
		if err != nil {
			return nil, err
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s3Store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
