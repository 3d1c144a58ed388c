package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/imageguard/internal/cache"
	"github.com/timmy/imageguard/internal/domain"
	"github.com/timmy/imageguard/internal/hasher"
	"github.com/timmy/imageguard/internal/logger"
	"github.com/timmy/imageguard/internal/metrics"
)

// Fetcher retrieves image bytes by URL. Failures wrap domain.ErrFetch.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FingerprintService turns candidate images into fingerprints, going through
// the fingerprint cache before fetching and hashing.
type FingerprintService struct {
	hasher       *hasher.Hasher
	cache        cache.FingerprintCache
	fetcher      Fetcher
	cacheTTL     time.Duration
	fetchTimeout time.Duration
}

// FingerprintConfig holds configuration for the fingerprint service
type FingerprintConfig struct {
	CacheTTL     time.Duration
	FetchTimeout time.Duration
}

// NewFingerprintService creates a new fingerprint service
func NewFingerprintService(h *hasher.Hasher, c cache.FingerprintCache, f Fetcher, cfg *FingerprintConfig) *FingerprintService {
	return &FingerprintService{
		hasher:       h,
		cache:        c,
		fetcher:      f,
		cacheTTL:     cfg.CacheTTL,
		fetchTimeout: cfg.FetchTimeout,
	}
}

// Hasher returns the hasher used for new fingerprints.
func (s *FingerprintService) Hasher() *hasher.Hasher {
	return s.hasher
}

// Cached looks up a fingerprint by content id. Cache failures are logged and
// reported as a miss so they can only cost a recomputation.
func (s *FingerprintService) Cached(ctx context.Context, contentID string) (string, bool) {
	if contentID == "" {
		return "", false
	}
	fp, ok, err := s.cache.Get(ctx, contentID)
	switch {
	case err != nil:
		metrics.FingerprintCacheLookups.WithLabelValues("error").Inc()
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldContentID, contentID).
			Warn("Fingerprint cache read failed, treating as miss")
		return "", false
	case ok:
		metrics.FingerprintCacheLookups.WithLabelValues("hit").Inc()
		return fp, true
	default:
		metrics.FingerprintCacheLookups.WithLabelValues("miss").Inc()
		return "", false
	}
}

// Load returns the candidate's bytes, fetching them under the configured
// timeout when only a URL is known.
func (s *FingerprintService) Load(ctx context.Context, c domain.Candidate) ([]byte, error) {
	if len(c.Data) > 0 {
		return c.Data, nil
	}
	if c.URL == "" {
		return nil, fmt.Errorf("%w: candidate has neither data nor url", domain.ErrInvalidInput)
	}
	if s.fetcher == nil {
		return nil, fmt.Errorf("%w: no fetcher configured", domain.ErrFetch)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	data, err := s.fetcher.Fetch(fetchCtx, c.URL)
	if err != nil {
		metrics.FetchFailures.Inc()
		if !errors.Is(err, domain.ErrFetch) {
			err = fmt.Errorf("%w: %w", domain.ErrFetch, err)
		}
		return nil, err
	}
	return data, nil
}

// Compute hashes data and stores the result under contentID.
func (s *FingerprintService) Compute(ctx context.Context, contentID string, data []byte) (string, error) {
	start := time.Now()
	fp, err := s.hasher.Hash(data)
	metrics.HashDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	s.Remember(ctx, contentID, fp)
	return fp, nil
}

// Remember writes a fingerprint to the cache; failures are only logged.
func (s *FingerprintService) Remember(ctx context.Context, contentID, fp string) {
	if contentID == "" || s.cacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, contentID, fp, s.cacheTTL); err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldContentID, contentID).
			Warn("Fingerprint cache write failed")
	}
}
