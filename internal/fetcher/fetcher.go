// Package fetcher downloads candidate images referenced by URL.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/imageguard/internal/config"
	"github.com/timmy/imageguard/internal/domain"
)

const defaultMaxBytes = 20 << 20

// HTTPFetcher fetches image bytes over HTTP(S).
type HTTPFetcher struct {
	client   *resty.Client
	maxBytes int64
}

// New creates a fetcher from the fetch configuration.
// Deadlines come from the caller's context.
func New(cfg *config.FetchConfig) *HTTPFetcher {
	client := resty.New()
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetRetryCount(cfg.RetryCount)
	client.SetRetryWaitTime(200 * time.Millisecond)
	client.SetRetryMaxWaitTime(time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return r != nil && r.StatusCode() >= http.StatusInternalServerError
	})

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	return &HTTPFetcher{
		client:   client,
		maxBytes: maxBytes,
	}
}

// Fetch downloads url and returns the body.
// Every failure, including a context deadline, wraps domain.ErrFetch.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty url", domain.ErrFetch)
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}

	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrFetch, resp.StatusCode())
	}

	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", domain.ErrFetch, ctx.Err())
		}
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrFetch, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrFetch, f.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", domain.ErrFetch)
	}
	return data, nil
}
