package config

import "time"

type SandboxConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	CompileTimeout time.Duration
	MaxRetries     int
}

func NewSandboxConfig() *SandboxConfig {
	return &SandboxConfig{
		BaseURL:        getEnv("SANDBOX_URL", "https://emkc.org/api/v2/piston"),
		RequestTimeout: getDurationEnv("SANDBOX_REQUEST_TIMEOUT_SEC", 30*time.Second, time.Second),
		CompileTimeout: getDurationEnv("SANDBOX_COMPILE_TIMEOUT_MS", 10*time.Second, time.Millisecond),
		MaxRetries:     getIntEnv("SANDBOX_MAX_RETRIES", 2),
	}
}
