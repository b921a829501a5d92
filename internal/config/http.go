package config

import "time"

type HTTPConfig struct {
	Port int
	// MaxCodeBytes bounds the size of submitted source code
	MaxCodeBytes int
	// StreamTimeout is the default inactivity timeout of a status stream
	StreamTimeout time.Duration
	// StreamPollInterval is used when push delivery is unavailable
	StreamPollInterval time.Duration
	// StreamingEnabled turns progress event delivery on; streams poll otherwise
	StreamingEnabled bool
}

func NewHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		Port:               getIntEnv("HTTP_PORT", 8082),
		MaxCodeBytes:       getIntEnv("MAX_CODE_BYTES", 64*1024),
		StreamTimeout:      getDurationEnv("STREAM_TIMEOUT_SEC", 5*time.Minute, time.Second),
		StreamPollInterval: getDurationEnv("STREAM_POLL_INTERVAL_MS", time.Second, time.Millisecond),
		StreamingEnabled:   getBoolEnv("STREAMING_ENABLED", true),
	}
}
