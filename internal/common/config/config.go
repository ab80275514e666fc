// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Render   RenderConfig   `mapstructure:"render"`
	GC       GCConfig       `mapstructure:"gc"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds settings for the health/metrics endpoint.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig holds settings for the content-addressed blob store.
type StorageConfig struct {
	Root          string `mapstructure:"root"`
	MaxImageBytes int64  `mapstructure:"max_image_bytes"`
}

// RenderConfig holds settings for the render pipeline and its worker pool.
type RenderConfig struct {
	Workers         int `mapstructure:"workers"`
	QueueDepth      int `mapstructure:"queue_depth"`
	ComposeTimeout  int `mapstructure:"compose_timeout"`  // milliseconds
	StoreRetries    int `mapstructure:"store_retries"`    // attempts for persisting stage
	StoreBackoff    int `mapstructure:"store_backoff"`    // milliseconds, initial, doubles per attempt
	TemplateCacheMS int `mapstructure:"template_cache_ttl"` // milliseconds
	BatchRetention  int `mapstructure:"batch_retention"`  // milliseconds a terminal batch report stays queryable
}

// GCConfig holds settings for the background asset sweeper.
type GCConfig struct {
	SweepInterval int `mapstructure:"sweep_interval"` // milliseconds
	BatchSize     int `mapstructure:"batch_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
