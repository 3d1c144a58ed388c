package storage

import (
	"context"
	"io"
)

// ObjectStorage keeps the normalized PNG copies of reference images.
// Download returns an error wrapping domain.ErrNotFound for a missing key.
type ObjectStorage interface {
	// Upload stores an object under key, replacing any previous content
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens an object for reading
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}
