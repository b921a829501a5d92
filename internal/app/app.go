// Package app wires adapters and services for the entry points.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gitlab.com/judgeflow.net/internal/adapter/memory"
	"gitlab.com/judgeflow.net/internal/adapter/metrics"
	"gitlab.com/judgeflow.net/internal/adapter/postgres/problemrepository"
	"gitlab.com/judgeflow.net/internal/adapter/postgres/submissionrepository"
	"gitlab.com/judgeflow.net/internal/adapter/redis/jobstore"
	"gitlab.com/judgeflow.net/internal/adapter/redis/notifier"
	"gitlab.com/judgeflow.net/internal/adapter/redis/ratelimit"
	"gitlab.com/judgeflow.net/internal/adapter/redis/resultcache"
	"gitlab.com/judgeflow.net/internal/adapter/redis/workerport"
	"gitlab.com/judgeflow.net/internal/adapter/sandbox"
	"gitlab.com/judgeflow.net/internal/config"
	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	hub "gitlab.com/judgeflow.net/internal/core/services/notifier"
	"gitlab.com/judgeflow.net/internal/core/services/processor"
	"gitlab.com/judgeflow.net/internal/core/services/submission"
	"gitlab.com/judgeflow.net/internal/core/services/worker"
)

// Dependencies holds everything the entry points start
type Dependencies struct {
	Config  *config.AppConfig
	Metrics *metrics.Metrics

	Jobs        secondary.JobStore
	Submissions secondary.SubmissionRepository
	Problems    secondary.ProblemRepository

	SubmissionService submission.ISubmissionService
	Processor         processor.IProcessorService
	WorkerService     worker.IWorkerRegistrationService

	db          *sqlx.DB
	redisClient *redis.Client
}

// InitReader loads <env>.env when an environment name is passed as the first
// argument, otherwise an optional .env in the working directory.
func InitReader() {
	if len(os.Args) >= 2 {
		environment := os.Args[1]
		if err := godotenv.Load(environment + ".env"); err != nil {
			log.Fatalf("Error loading %s.env file", environment)
		}
		return
	}
	_ = godotenv.Load()
}

// Build connects the configured backends. Redis and Postgres are optional:
// without them jobs, events and submissions stay in process.
func Build(ctx context.Context, cfg *config.AppConfig, logger primary.Logger) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Metrics: metrics.New()}

	var (
		limiter    secondary.RateLimiter
		results    secondary.ResultCache
		events     secondary.Notifier
		workerRepo secondary.WorkerRepository
	)
	if cfg.RedisConfig.Enabled() {
		d.redisClient = setupRedis(cfg.RedisConfig)
		if err := d.redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis is unreachable, queueing will degrade until it recovers", "addr", cfg.RedisConfig.Url, "error", err)
		}
		d.Jobs = jobstore.NewJobStore(d.redisClient, cfg.RedisConfig.JobTTL, logger)
		limiter = ratelimit.NewRateLimiter(d.redisClient, logger)
		results = resultcache.NewResultCache(d.redisClient, cfg.RedisConfig.ResultTTL, logger)
		events = notifier.NewNotifier(d.redisClient, cfg.RedisConfig.ResultTTL, logger)
		workerRepo = workerport.NewWorkerRepository(d.redisClient, logger)
	} else {
		logger.Info("REDIS_ADDR not set, using in-process job store and event hub")
		d.Jobs = memory.NewJobStore()
		limiter = memory.NewRateLimiter()
		results = memory.NewResultCache(cfg.RedisConfig.ResultTTL)
		events = hub.NewHub(logger, hub.WithRetention(cfg.RedisConfig.ResultTTL))
		workerRepo = memory.NewWorkerRepository()
	}

	if !cfg.HTTPConfig.StreamingEnabled {
		logger.Info("Progress events disabled, streams fall back to polling")
		events = memory.DisabledNotifier{}
	}

	if err := d.setupRepositories(ctx, cfg.PostgresConfig, logger); err != nil {
		d.Close()
		return nil, err
	}

	executor := sandbox.NewPistonClient(cfg.SandboxConfig, logger)
	d.SubmissionService = submission.NewSubmissionService(d.Submissions, d.Problems, d.Jobs, limiter, results, events,
		cfg.RateLimitConfig, cfg.HTTPConfig, d.Metrics, logger)
	d.Processor = processor.NewProcessorService(d.Submissions, executor, results, events, d.Jobs, d.Metrics, logger)
	d.WorkerService = worker.NewWorkerRegistrationService(workerRepo, logger)
	return d, nil
}

func (d *Dependencies) setupRepositories(ctx context.Context, cfg *config.PostgresConfig, logger primary.Logger) error {
	if !cfg.Enabled() {
		logger.Info("DATABASE_URL not set, keeping submissions in memory", "problemsFile", cfg.ProblemsFile)
		d.Submissions = memory.NewSubmissionRepository()
		problems, err := memory.LoadProblemRepository(cfg.ProblemsFile)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Problems file not found, no problem can be submitted to", "path", cfg.ProblemsFile)
			problems, err = memory.NewProblemRepository(), nil
		}
		if err != nil {
			return err
		}
		d.Problems = problems
		return nil
	}

	db, err := setupDatabase(ctx, cfg.Url)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	d.db = db

	submissions := submissionrepository.New(db, logger, cfg.Schema)
	if err := submissions.EnsureTableExists(ctx); err != nil {
		return err
	}
	problems := problemrepository.New(db, logger, cfg.Schema)
	if err := problems.EnsureTableExists(ctx); err != nil {
		return err
	}
	d.Submissions = submissions
	d.Problems = problems
	return nil
}

// HasSharedQueue reports whether jobs go through Redis and can be consumed by
// separate worker processes
func (d *Dependencies) HasSharedQueue() bool {
	return d.redisClient != nil
}

// NewPool builds a worker pool consuming this process's job store
func (d *Dependencies) NewPool(logger primary.Logger) *worker.Pool {
	return worker.NewPool(d.Config.WorkerPoolCfg, d.Jobs, d.Processor, d.WorkerService, logger)
}

func (d *Dependencies) Close() {
	if d.db != nil {
		_ = d.db.Close()
	}
	if d.redisClient != nil {
		_ = d.redisClient.Close()
	}
}

// setupDatabase sets up the PostgreSQL connection
func setupDatabase(ctx context.Context, connStr string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// setupRedis sets up the Redis connection
func setupRedis(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Url,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
