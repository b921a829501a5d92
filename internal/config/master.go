package config

type AppConfig struct {
	DebugMode       bool
	LogLevel        string
	HTTPConfig      *HTTPConfig
	WorkerPoolCfg   *WorkerPoolCfg
	RedisConfig     *RedisConfig
	PostgresConfig  *PostgresConfig
	SandboxConfig   *SandboxConfig
	RateLimitConfig *RateLimitConfig
	JwtConfig       *JwtConfig
}

func NewSystemConfig() *AppConfig {
	return &AppConfig{
		DebugMode:       getBoolEnv("DEBUG_MODE", false),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		HTTPConfig:      NewHTTPConfig(),
		WorkerPoolCfg:   NewWorkerPoolCfg(),
		RedisConfig:     NewRedisConfig(),
		PostgresConfig:  NewPostgresConfig(),
		SandboxConfig:   NewSandboxConfig(),
		RateLimitConfig: NewRateLimitConfig(),
		JwtConfig:       NewJwtConfig(),
	}
}
