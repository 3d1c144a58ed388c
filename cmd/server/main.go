package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/imageguard/internal/api"
	"github.com/timmy/imageguard/internal/cache"
	"github.com/timmy/imageguard/internal/config"
	"github.com/timmy/imageguard/internal/fetcher"
	"github.com/timmy/imageguard/internal/hasher"
	"github.com/timmy/imageguard/internal/i18n"
	"github.com/timmy/imageguard/internal/logger"
	"github.com/timmy/imageguard/internal/moderation"
	"github.com/timmy/imageguard/internal/repository"
	"github.com/timmy/imageguard/internal/service"
	"github.com/timmy/imageguard/internal/storage"
)

func main() {
	// Initialize logger first so config errors are structured too
	appLogger := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to get database handle")
	}
	defer sqlDB.Close()

	ruleRepo := repository.NewRuleRepository(db)

	// Initialize fingerprint cache
	fpCache, closeCache, err := cache.New(ctx, &cfg.Cache, db)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize fingerprint cache")
	}
	defer closeCache()

	if dbCache, ok := fpCache.(*cache.DatabaseCache); ok && cfg.Cache.SweepInterval > 0 {
		sweepLog := appLogger.WithField(logger.FieldComponent, "cache_sweeper")
		go dbCache.RunSweeper(ctx, cfg.Cache.SweepInterval, func(removed int64, err error) {
			if err != nil {
				sweepLog.WithError(err).Warn("Fingerprint cache sweep failed")
				return
			}
			if removed > 0 {
				sweepLog.WithField(logger.FieldCount, removed).Info("Swept expired fingerprints")
			}
		})
	}

	// Initialize storage (local, R2, S3)
	objectStorage, err := storage.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	h, err := hasher.New(cfg.Blocker.HashBits)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize hasher")
	}

	dispatcher, err := moderation.NewDispatcher(&cfg.Moderation)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize moderation dispatcher")
	}

	// Initialize services
	fingerprints := service.NewFingerprintService(h, fpCache, fetcher.New(&cfg.Fetch), &service.FingerprintConfig{
		CacheTTL:     cfg.Blocker.CacheTTL(),
		FetchTimeout: cfg.Blocker.FetchTimeout,
	})

	engine := service.NewMatchEngine(ruleRepo, fingerprints, &service.MatchConfig{
		Similarity:           cfg.Blocker.Similarity,
		MaxConcurrentFetches: cfg.Blocker.MaxConcurrentFetches,
	})

	guard := service.NewGuardService(engine, dispatcher, &service.GuardConfig{
		RecallFlag:   cfg.Blocker.RecallFlag,
		MuteFlag:     cfg.Blocker.MuteFlag,
		MuteDuration: cfg.Blocker.MuteDuration(),
		FailClosed:   cfg.Blocker.FailClosed,
	})

	registry := service.NewRegistryService(ruleRepo, fingerprints, objectStorage, &service.RegistryConfig{
		PageSize: cfg.Blocker.PageSize,
	})

	importService := service.NewImportService(registry, &service.ImportConfig{
		Workers:   cfg.Import.Workers,
		BatchSize: cfg.Import.BatchSize,
	})

	appLogger.WithFields(logger.Fields{
		"similarity":  cfg.Blocker.Similarity,
		"hash_bits":   cfg.Blocker.HashBits,
		"cache":       cfg.Cache.Backend,
		"storage":     cfg.Storage.Type,
		"moderation":  cfg.Moderation.Driver,
		"fail_closed": cfg.Blocker.FailClosed,
	}).Info("Image blocker configured")

	// Setup router
	router := api.SetupRouter(&api.Dependencies{
		Registry:   registry,
		Guard:      guard,
		Import:     importService,
		Localizer:  i18n.New(cfg.Server.DefaultLocale),
		Logger:     appLogger,
		Ping:       sqlDB.PingContext,
		MaxUpload:  cfg.Fetch.MaxBytes,
		AdminToken: cfg.Server.AdminToken,
		ImportRoot: cfg.Import.Dir,
	}, cfg.Server.Mode)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
