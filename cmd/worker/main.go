package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/judgeflow.net/internal/app"
	"gitlab.com/judgeflow.net/internal/config"
	logger2 "gitlab.com/judgeflow.net/internal/global/logger"
)

func main() {
	app.InitReader()
	sysCfg := config.NewSystemConfig()
	logger := logger2.Init(sysCfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !sysCfg.RedisConfig.Enabled() {
		logger.Error("REDIS_ADDR is required to run a standalone worker")
		os.Exit(1)
	}
	if !sysCfg.PostgresConfig.Enabled() {
		logger.Warn("DATABASE_URL not set, results will not be visible to the API")
	}

	deps, err := app.Build(ctx, sysCfg, logger)
	if err != nil {
		logger.Error("Failed to set up dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = deps.Jobs.Ping(pingCtx)
	cancel()
	if err != nil {
		logger.Error("Job store is unreachable", "error", err)
		deps.Close()
		os.Exit(1)
	}

	metricsSrv := &http.Server{
		Addr:              sysCfg.WorkerPoolCfg.MetricsAddr,
		Handler:           deps.Metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Metrics listening", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", "error", err)
		}
	}()

	logger2.Info("Starting worker pool", "concurrency", sysCfg.WorkerPoolCfg.Concurrency)
	pool := deps.NewPool(logger.Named("worker"))
	if err := pool.Run(ctx); err != nil {
		logger.Error("Worker pool stopped with error", "error", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("Worker drained, exiting")
}
