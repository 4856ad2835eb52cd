package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Upstream  UpstreamConfig
	Reconcile ReconcileConfig
	Debug     bool
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port         string
	AllowedCORS  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string
}

// UpstreamConfig holds credentials and options for the remote logistics
// service that owns the authoritative copy of weighings and trips. An empty
// BaseURL disables the upstream entirely and the engine runs standalone.
type UpstreamConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// ReconcileConfig holds the divergence-sweep scheduler settings.
type ReconcileConfig struct {
	CronSchedule string
	Enabled      bool
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from
		// the environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getenvWithDefault("APP_PORT", "8080"),
			AllowedCORS:  []string{getenvWithDefault("CORS_ORIGIN", "*")},
			ReadTimeout:  getenvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getenvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Path: getenvWithDefault("DB_PATH", "weighbridge.db"),
		},
		Upstream: UpstreamConfig{
			BaseURL: os.Getenv("UPSTREAM_BASE_URL"),
			Token:   os.Getenv("UPSTREAM_TOKEN"),
			Timeout: getenvDuration("UPSTREAM_TIMEOUT", 20*time.Second),
		},
		Reconcile: ReconcileConfig{
			CronSchedule: getenvWithDefault("RECONCILE_CRON_SCHEDULE", "0 */1 * * *"),
			Enabled:      getenvBool("RECONCILE_ENABLED", true),
		},
		Debug: getenvBool("DEBUG", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Database.Path == "" {
		return errors.New("DB_PATH must be provided")
	}

	if c.Upstream.BaseURL != "" && c.Upstream.Token == "" {
		return errors.New("UPSTREAM_TOKEN must be provided when UPSTREAM_BASE_URL is set")
	}

	if c.Reconcile.Enabled && c.Reconcile.CronSchedule == "" {
		return errors.New("RECONCILE_CRON_SCHEDULE must be provided")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}
