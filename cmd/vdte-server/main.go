// cmd/vdte-server/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vdte/internal/asset"
	"vdte/internal/common/config"
	"vdte/internal/common/database"
	"vdte/internal/common/logger"
	"vdte/internal/common/observability"
	"vdte/internal/compositor"
	"vdte/internal/engine"
	"vdte/internal/orchestrator"
	"vdte/internal/repository"
	"vdte/internal/storage"
	"vdte/internal/template"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting render engine...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("vdte-server")
	defer obs.Shutdown()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init blob storage ---
	blobs, err := storage.NewFilesystemStore(cfg.Storage.Root, log)
	if err != nil {
		zapLog.Fatal("blob store init failed", zap.Error(err))
	}

	// --- Wire repositories and core components ---
	templateRepo := repository.NewPostgresTemplates(pg.DB)
	jobRepo := repository.NewPostgresJobs(pg.DB)
	assetRepo := repository.NewPostgresAssets(pg.DB)

	templates := template.NewStore(templateRepo, redis.Client, log,
		config.GetDuration(cfg.Render.TemplateCacheMS))
	comp := compositor.New(cfg.Storage.MaxImageBytes)
	assets := asset.NewManager(assetRepo, blobs, log)

	orch := orchestrator.New(orchestrator.Config{
		Workers:        cfg.Render.Workers,
		QueueDepth:     cfg.Render.QueueDepth,
		ComposeTimeout: config.GetDuration(cfg.Render.ComposeTimeout),
		StoreRetries:   cfg.Render.StoreRetries,
		StoreBackoff:   config.GetDuration(cfg.Render.StoreBackoff),
		BatchRetention: config.GetDuration(cfg.Render.BatchRetention),
	}, templates, comp, assets, jobRepo, log)
	orch.Start(ctx)

	sweeper := asset.NewSweeper(assets, assetRepo, blobs, log,
		config.GetDuration(cfg.GC.SweepInterval), cfg.GC.BatchSize)
	go sweeper.Run(ctx)

	eng := engine.New(templates, orch, assets, log)
	_ = eng // handed to the routing layer

	zapLog.Info("Render engine ready",
		zap.Int("workers", cfg.Render.Workers),
		zap.Int("queueDepth", cfg.Render.QueueDepth),
	)

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := http.ListenAndServe(cfg.Server.Address, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining render pipeline...")
	stop()
	orch.Shutdown()

	zapLog.Info("Render engine stopped gracefully")
}
