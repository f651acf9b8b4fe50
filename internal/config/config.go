package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the batch queue server and worker.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Inference InferenceConfig
	Worker    WorkerConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MigrationsDir   string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// InferenceConfig points the worker at the external perspective bridge that
// actually runs captioning models.
type InferenceConfig struct {
	BaseURL string
	Timeout time.Duration
}

type WorkerConfig struct {
	// PollInterval is how long a worker sleeps after finding no claimable item.
	PollInterval time.Duration
	// ReportRetries bounds the attempts to record an item outcome before the
	// worker gives up and logs the item as unresolved.
	ReportRetries int
	ReportBackoff time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("BATCHQUEUE_PORT", 8080),
			Env:  envString("BATCHQUEUE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Inference: InferenceConfig{
			BaseURL: envString("INFERENCE_BASE_URL", "http://localhost:32100"),
			Timeout: envDuration("INFERENCE_TIMEOUT", 120*time.Second),
		},
		Worker: WorkerConfig{
			PollInterval:  envDuration("WORKER_POLL_INTERVAL", 2*time.Second),
			ReportRetries: envInt("WORKER_REPORT_RETRIES", 5),
			ReportBackoff: envDuration("WORKER_REPORT_BACKOFF", time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !strings.HasPrefix(c.Inference.BaseURL, "http://") && !strings.HasPrefix(c.Inference.BaseURL, "https://") {
		return fmt.Errorf("INFERENCE_BASE_URL must start with http:// or https://, got %q", c.Inference.BaseURL)
	}

	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL must be positive")
	}
	if c.Worker.ReportRetries < 1 {
		return fmt.Errorf("WORKER_REPORT_RETRIES must be at least 1")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
