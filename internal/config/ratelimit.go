package config

import "time"

type RateLimitConfig struct {
	// Max <= 0 disables rate limiting
	Max    int
	Window time.Duration
}

func NewRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Max:    getIntEnv("RATE_LIMIT_MAX", 10),
		Window: getDurationEnv("RATE_LIMIT_WINDOW_SEC", 60*time.Second, time.Second),
	}
}
