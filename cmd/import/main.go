package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/imageguard/internal/cache"
	"github.com/timmy/imageguard/internal/config"
	"github.com/timmy/imageguard/internal/fetcher"
	"github.com/timmy/imageguard/internal/hasher"
	"github.com/timmy/imageguard/internal/logger"
	"github.com/timmy/imageguard/internal/repository"
	"github.com/timmy/imageguard/internal/service"
	"github.com/timmy/imageguard/internal/source/localdir"
	"github.com/timmy/imageguard/internal/storage"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "imageguard-import",
	})
	logger.SetDefaultLogger(appLogger)

	scope := flag.String("scope", "", "Scope (group) to register the images in")
	dir := flag.String("dir", "", "Directory of images, optionally with a manifest.jsonl")
	limit := flag.Int("limit", 1000, "Maximum number of images to import")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *scope == "" || *dir == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger.WithFields(logger.Fields{
		logger.FieldScopeID: *scope,
		"dir":               *dir,
		"limit":             *limit,
	}).Info("Starting import")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	fpCache, closeCache, err := cache.New(ctx, &cfg.Cache, db)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize fingerprint cache")
	}
	defer closeCache()

	objectStorage, err := storage.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	h, err := hasher.New(cfg.Blocker.HashBits)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize hasher")
	}

	fingerprints := service.NewFingerprintService(h, fpCache, fetcher.New(&cfg.Fetch), &service.FingerprintConfig{
		CacheTTL:     cfg.Blocker.CacheTTL(),
		FetchTimeout: cfg.Blocker.FetchTimeout,
	})
	registry := service.NewRegistryService(repository.NewRuleRepository(db), fingerprints, objectStorage, &service.RegistryConfig{
		PageSize: cfg.Blocker.PageSize,
	})
	importService := service.NewImportService(registry, &service.ImportConfig{
		Workers:   cfg.Import.Workers,
		BatchSize: cfg.Import.BatchSize,
	})

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	stats, err := importService.ImportFromSource(ctx, *scope, localdir.NewAdapter(*dir), *limit)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to import images")
	}
	appLogger.WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"processed": stats.ProcessedItems,
		"added":     stats.AddedItems,
		"skipped":   stats.SkippedItems,
		"failed":    stats.FailedItems,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Import completed")
}
