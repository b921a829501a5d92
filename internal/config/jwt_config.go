package config

type JwtConfig struct {
	// Secret enables bearer token identity when set
	Secret string
	// UserHeader carries the user id when Secret is empty
	UserHeader string
}

func NewJwtConfig() *JwtConfig {
	return &JwtConfig{
		Secret:     getEnv("JWT_SECRET", ""),
		UserHeader: getEnv("USER_ID_HEADER", "X-User-ID"),
	}
}
