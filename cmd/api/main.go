package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/judgeflow.net/internal/app"
	"gitlab.com/judgeflow.net/internal/config"
	logger2 "gitlab.com/judgeflow.net/internal/global/logger"
	http2 "gitlab.com/judgeflow.net/internal/http"
)

func main() {
	app.InitReader()
	sysCfg := config.NewSystemConfig()
	logger := logger2.Init(sysCfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger2.Info("Starting submission API")

	deps, err := app.Build(ctx, sysCfg, logger)
	if err != nil {
		logger.Error("Failed to set up dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	serviceProvider := http2.NewServiceProvider(deps.SubmissionService, deps.WorkerService, deps.Jobs, deps.Metrics)
	httpServer := http2.NewServer("judge-api", *serviceProvider, sysCfg.HTTPConfig, sysCfg.JwtConfig, logger.Named("http"))
	if err := httpServer.Init(); err != nil {
		logger.Error("Failed to init http server", "error", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	httpServer.Start(ctx, serverErr)

	// single node mode: nothing else consumes the in-process queue
	poolDone := make(chan error, 1)
	if !deps.HasSharedQueue() || sysCfg.WorkerPoolCfg.Embedded {
		pool := deps.NewPool(logger.Named("worker"))
		go func() { poolDone <- pool.Run(ctx) }()
	} else {
		close(poolDone)
	}

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("Http server failed", "error", err)
		exitCode = 1
		stop()
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if err := <-poolDone; err != nil {
		logger.Error("Worker pool stopped with error", "error", err)
	}

	logger.Info("successfully shutdown server")
	if exitCode != 0 {
		deps.Close()
		os.Exit(exitCode)
	}
}
