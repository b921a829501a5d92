package config

type PostgresConfig struct {
	// Url is empty when submissions are kept in memory
	Url    string
	Schema string
	// ProblemsFile seeds the in-memory problem repository when Url is empty
	ProblemsFile string
}

func NewPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Url:          getEnv("DATABASE_URL", ""),
		Schema:       getEnv("DB_SCHEMA", "public"),
		ProblemsFile: getEnv("PROBLEMS_FILE", "problems.yaml"),
	}
}

func (c *PostgresConfig) Enabled() bool {
	return c != nil && c.Url != ""
}
