package config

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds the settings of one named connection under matchday.database.
type DatabaseConfig struct {
	Type     string            `yaml:"type"`     // "sqlite", "postgres" or "mysql".
	Host     string            `yaml:"host"`     // Ignored for sqlite.
	Port     int               `yaml:"port"`     // Ignored for sqlite.
	Database string            `yaml:"database"` // Database name, or the file path for sqlite.
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Sslmode  string            `yaml:"sslmode"`
	Params   map[string]string `yaml:"params,omitempty"` // Extra DSN parameters.
	Pool     PoolConfig        `yaml:"pool"`
}
