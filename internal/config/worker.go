package config

import (
	"time"
)

type WorkerPoolCfg struct {
	Concurrency       int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	// VisibilityTimeout is how long a claimed job may stay in flight before
	// Recover hands it to another worker
	VisibilityTimeout time.Duration
	// RecoverInterval is how often stale in-flight jobs are looked for
	RecoverInterval time.Duration
	// Embedded runs the pool inside the API process
	Embedded    bool
	MetricsAddr string
	Version     string
}

func NewWorkerPoolCfg() *WorkerPoolCfg {
	concurrency := getIntEnv("WORKER_CONCURRENCY", 3)
	if concurrency <= 0 {
		concurrency = 3
	}
	pollInterval := getDurationEnv("WORKER_POLL_INTERVAL_MS", time.Second, time.Millisecond)
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &WorkerPoolCfg{
		Concurrency:       concurrency,
		PollInterval:      pollInterval,
		HeartbeatInterval: getDurationEnv("WORKER_HEARTBEAT_SEC", 30*time.Second, time.Second),
		VisibilityTimeout: getDurationEnv("WORKER_VISIBILITY_TIMEOUT_SEC", 10*time.Minute, time.Second),
		RecoverInterval:   getDurationEnv("WORKER_RECOVER_INTERVAL_SEC", time.Minute, time.Second),
		Embedded:          getBoolEnv("WORKER_EMBEDDED", false),
		MetricsAddr:       getEnv("WORKER_METRICS_ADDR", ":9102"),
		Version:           getEnv("APP_VERSION", "dev"),
	}
}
