package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/imageguard/internal/domain"
	"github.com/timmy/imageguard/internal/logger"
	"github.com/timmy/imageguard/internal/source"
)

// ImportService registers images from a source in bulk.
type ImportService struct {
	registry  *RegistryService
	workers   int
	batchSize int
}

// ImportConfig holds configuration for the import service
type ImportConfig struct {
	Workers   int
	BatchSize int
}

// NewImportService creates a new import service
func NewImportService(registry *RegistryService, cfg *ImportConfig) *ImportService {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ImportService{
		registry:  registry,
		workers:   workers,
		batchSize: batchSize,
	}
}

// ImportStats holds statistics for an import run
type ImportStats struct {
	TotalItems     int64
	ProcessedItems int64
	AddedItems     int64
	SkippedItems   int64
	FailedItems    int64
	StartTime      time.Time
	EndTime        time.Time
}

type importResult struct {
	item    source.ImageItem
	skipped bool
	err     error
}

// ImportFromSource registers up to limit images from src into scopeID.
// Images already registered in the scope are counted as skipped; other
// per-item failures are logged and counted, never returned.
func (s *ImportService) ImportFromSource(ctx context.Context, scopeID string, src source.Source, limit int) (*ImportStats, error) {
	if scopeID == "" {
		return nil, fmt.Errorf("%w: scope is required", domain.ErrInvalidInput)
	}

	ctx = logger.SetComponent(ctx, "import")
	stats := &ImportStats{StartTime: time.Now()}
	log := logger.FromContext(ctx).WithFields(logger.Fields{
		"source":            src.GetSourceID(),
		logger.FieldScopeID: scopeID,
		"limit":             limit,
	})
	log.Info("Starting import")

	itemsChan := make(chan source.ImageItem, s.workers*2)
	resultsChan := make(chan *importResult, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, scopeID, itemsChan, resultsChan)
		}()
	}

	done := make(chan struct{})
	go func() {
		for result := range resultsChan {
			atomic.AddInt64(&stats.ProcessedItems, 1)
			switch {
			case result.skipped:
				atomic.AddInt64(&stats.SkippedItems, 1)
			case result.err != nil:
				atomic.AddInt64(&stats.FailedItems, 1)
				log.WithError(result.err).WithFields(logger.Fields{
					logger.FieldContentID: result.item.ContentID,
					"path":                result.item.LocalPath,
					"url":                 result.item.URL,
				}).Error("Failed to import item")
			default:
				atomic.AddInt64(&stats.AddedItems, 1)
			}
		}
		close(done)
	}()

	var fetchErr error
	cursor := ""
	totalFetched := 0
feed:
	for ctx.Err() == nil {
		remaining := limit - totalFetched
		if remaining <= 0 {
			break
		}
		batchLimit := min(s.batchSize, remaining)

		items, nextCursor, err := src.FetchBatch(ctx, cursor, batchLimit)
		if err != nil {
			fetchErr = fmt.Errorf("fetch batch: %w", err)
			break
		}
		if len(items) == 0 {
			break
		}

		atomic.AddInt64(&stats.TotalItems, int64(len(items)))
		totalFetched += len(items)

		for _, item := range items {
			select {
			case itemsChan <- item:
			case <-ctx.Done():
				break feed
			}
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	close(itemsChan)
	wg.Wait()
	close(resultsChan)
	<-done

	stats.EndTime = time.Now()

	log.WithFields(logger.Fields{
		"total":    stats.TotalItems,
		"added":    stats.AddedItems,
		"skipped":  stats.SkippedItems,
		"failed":   stats.FailedItems,
		"duration": stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Import completed")

	return stats, fetchErr
}

func (s *ImportService) worker(ctx context.Context, scopeID string, items <-chan source.ImageItem, results chan<- *importResult) {
	for item := range items {
		if ctx.Err() != nil {
			results <- &importResult{item: item, err: ctx.Err()}
			continue
		}

		result := &importResult{item: item}
		candidate, err := toCandidate(item)
		if err == nil {
			_, err = s.registry.Add(ctx, scopeID, candidate)
		}
		if errors.Is(err, domain.ErrAlreadyRegistered) {
			result.skipped = true
		} else {
			result.err = err
		}
		results <- result
	}
}

func toCandidate(item source.ImageItem) (domain.Candidate, error) {
	c := domain.Candidate{ContentID: item.ContentID, URL: item.URL}
	if item.LocalPath != "" {
		data, err := os.ReadFile(item.LocalPath)
		if err != nil {
			return c, fmt.Errorf("failed to read image: %w", err)
		}
		c.Data = data
	}
	return c, nil
}
