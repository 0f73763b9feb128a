package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Catalog backends.
const (
	CatalogMemory   = "memory"
	CatalogPostgres = "postgres"
	CatalogDocker   = "docker"
)

// Config holds the broker's runtime settings.
type Config struct {
	ListenAddr         string
	CatalogType        string
	DatabaseURL        string
	Scheduler          string
	LogLevel           string
	PollInterval       time.Duration
	DefaultTimeout     time.Duration
	HeartbeatTimeout   time.Duration
	ExpirationInterval time.Duration
	ShutdownTimeout    time.Duration
}

// Load reads a .env file if one exists and then builds the configuration
// from environment variables, falling back to defaults.
func Load() (Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		ListenAddr:  stringOr(getenv("RESERVABLE_LISTEN_ADDR"), ":8080"),
		CatalogType: stringOr(getenv("CATALOG_TYPE"), CatalogMemory),
		DatabaseURL: getenv("DATABASE_URL"),
		Scheduler:   stringOr(getenv("RESERVABLE_SCHEDULER"), "random"),
		LogLevel:    stringOr(getenv("RESERVABLE_LOG_LEVEL"), "info"),
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"RESERVABLE_POLL_INTERVAL", time.Second, &cfg.PollInterval},
		{"RESERVABLE_DEFAULT_TIMEOUT", 180 * time.Minute, &cfg.DefaultTimeout},
		{"RESERVABLE_HEARTBEAT_TIMEOUT", 90 * time.Second, &cfg.HeartbeatTimeout},
		{"RESERVABLE_EXPIRY_INTERVAL", 30 * time.Second, &cfg.ExpirationInterval},
		{"RESERVABLE_SHUTDOWN_TIMEOUT", 10 * time.Second, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		v, err := durationOr(getenv(d.key), d.def)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dest = v
	}

	switch cfg.CatalogType {
	case CatalogMemory, CatalogDocker:
	case CatalogPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL environment variable is required when CATALOG_TYPE=postgres")
		}
	default:
		return Config{}, fmt.Errorf("unknown CATALOG_TYPE: %s (valid options: memory, postgres, docker)", cfg.CatalogType)
	}

	return cfg, nil
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOr(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", v)
	}
	return d, nil
}
