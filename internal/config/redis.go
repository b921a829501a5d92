package config

import "time"

type RedisConfig struct {
	DB       int
	Url      string
	Password string
	// ResultTTL bounds how long cached result blobs and event logs are kept
	ResultTTL time.Duration
	// JobTTL bounds how long an unclaimed job payload is kept
	JobTTL time.Duration
}

func NewRedisConfig() *RedisConfig {
	return &RedisConfig{
		DB:        getIntEnv("REDIS_DB", 0),
		Url:       getEnv("REDIS_ADDR", ""),
		Password:  getEnv("REDIS_PASSWORD", ""),
		ResultTTL: getDurationEnv("RESULT_TTL_SEC", 10*time.Minute, time.Second),
		JobTTL:    getDurationEnv("JOB_TTL_SEC", 24*time.Hour, time.Second),
	}
}

// Enabled reports whether a Redis address is configured
func (c *RedisConfig) Enabled() bool {
	return c != nil && c.Url != ""
}
