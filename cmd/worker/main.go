// Package main is the entrypoint for a batch queue worker process. Workers
// claim items from the queue, run them through the inference bridge, and
// report outcomes; any number may run concurrently.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/graphcap/batchqueue/internal/cache"
	"github.com/graphcap/batchqueue/internal/config"
	"github.com/graphcap/batchqueue/internal/inference"
	"github.com/graphcap/batchqueue/internal/queue"
	"github.com/graphcap/batchqueue/internal/store"
	"github.com/graphcap/batchqueue/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	bridge := inference.NewHTTPClient(cfg.Inference.BaseURL, cfg.Inference.Timeout)
	if err := bridge.Ready(ctx); err != nil {
		slog.Warn("inference bridge not ready at startup", "error", err)
	}

	pgStore := store.NewPostgresStore(pool)
	svc := queue.NewService(pgStore, redisCache)

	workerID := hostWorkerID()
	runner := worker.NewRunner(workerID, svc, bridge, cfg.Worker)
	return runner.Run(ctx)
}

func hostWorkerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
