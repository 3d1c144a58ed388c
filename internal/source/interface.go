package source

import "context"

// ImageItem is one image offered for bulk registration.
type ImageItem struct {
	ContentID string // platform content id; empty derives one from the bytes
	URL       string // remote location, used when LocalPath is empty
	LocalPath string // local file path (if available)
}

// Source lists images to register in bulk.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// FetchBatch fetches a batch of items starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of items to fetch.
	// Returns:
	//   - items: batch of image items.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []ImageItem, nextCursor string, err error)
}
