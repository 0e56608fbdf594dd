package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"DocRelay/internal/api"
	"DocRelay/internal/blob"
	"DocRelay/internal/config"
	"DocRelay/internal/db"
	"DocRelay/internal/delivery"
	"DocRelay/internal/drive"
	"DocRelay/internal/email"
	"DocRelay/internal/idempotency"
	"DocRelay/internal/metrics"
	"DocRelay/internal/models"
	"DocRelay/internal/pipeline"
	"DocRelay/internal/worker"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Database
	// ------------------------------------------------
	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("database migration failed", zap.Error(err))
		}
	}

	store, err := db.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer store.Close()

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Idempotency Guard
	// ------------------------------------------------
	var guard idempotency.Guard
	if cfg.Idempotency.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Idempotency.RedisURL)
		if err != nil {
			logger.Fatal("invalid redis url", zap.Error(err))
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()

		guard = idempotency.NewRedisGuard(rdb, cfg.Idempotency.RunTTL, cfg.Idempotency.DoneTTL)
		logger.Info("idempotency guard backed by redis")
	} else {
		guard = idempotency.NewMemoryGuard(cfg.Idempotency.RunTTL, cfg.Idempotency.DoneTTL)
		logger.Info("idempotency guard in memory")
	}

	// ------------------------------------------------
	// Collaborators
	// ------------------------------------------------
	sender := email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)

	renderer, err := email.NewRenderer()
	if err != nil {
		logger.Fatal("email templates failed to load", zap.Error(err))
	}

	driveClient, err := drive.New(ctx, cfg.Drive, logger)
	if err != nil {
		logger.Fatal("google drive client failed", zap.Error(err))
	}

	orchestrator := delivery.New(delivery.Deps{
		Store:           store,
		Blobs:           blob.NewFetcher(cfg.FetchTimeout),
		Cloud:           driveClient,
		Mail:            sender,
		Render:          renderer,
		Status:          pipeline.NewSynchronizer(store, logger),
		Guard:           guard,
		Log:             logger,
		BulkConcurrency: cfg.BulkConcurrency,
	})

	// ------------------------------------------------
	// Job Channel (shared by API + workers)
	// ------------------------------------------------
	jobs := make(chan models.DeliveryJob, cfg.QueueSize)

	// ------------------------------------------------
	// Rate Limiter
	// ------------------------------------------------
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)

	// ------------------------------------------------
	// Worker Pool
	// ------------------------------------------------
	var wg sync.WaitGroup

	worker.StartPool(
		ctx,
		&wg,
		cfg.WorkerCount,
		jobs,
		orchestrator,
		limiter,
		logger,
		cfg.RetryAttempts,
	)

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Store: store,
		Jobs:  jobs,
		Log:   logger,
	}

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /forward", apiHandler.ForwardSingle)
	apiMux.HandleFunc("POST /forward/bulk", apiHandler.ForwardBulk)
	apiMux.HandleFunc("GET /candidates/{candidateId}/projects/{projectId}/progress", apiHandler.Progress)

	// Requests share the root context so a handler blocked on a full queue
	// gives up on shutdown.
	apiServer := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     apiMux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Stop accepting new jobs before closing the channel
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	apiHandler.Close()

	// Workers drain what is still queued, then exit
	wg.Wait()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}
