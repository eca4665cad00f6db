package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fitsnap/pipewatch/pkg/observability"
)

// Retention horizons and job cadences. These are deployment constants, not
// tenant-tunable knobs; the environment overrides exist for test rigs.
const (
	DefaultWindowSize         = 5 * time.Minute
	DefaultRawRetention       = 30 * 24 * time.Hour
	DefaultRollupRetention    = 90 * 24 * time.Hour
	DefaultAggregationTimeout = 60 * time.Second
	DefaultRetentionTimeout   = 300 * time.Second

	DefaultAggregationSchedule = "*/5 * * * *"
	DefaultRetentionSchedule   = "15 4 * * *"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Store         StoreConfig
	Cache         CacheConfig
	Jobs          JobsConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// StoreConfig holds document store configuration
type StoreConfig struct {
	Driver string // "postgres" or "sqlite3"
	DSN    string
}

// CacheConfig holds the optional Redis summary cache configuration
type CacheConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// JobsConfig holds scheduled job configuration
type JobsConfig struct {
	WindowSize          time.Duration
	AggregationSchedule string
	RetentionSchedule   string
	RawRetention        time.Duration
	RollupRetention     time.Duration
	AggregationTimeout  time.Duration
	RetentionTimeout    time.Duration
	RulesFile           string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("PIPEWATCH_HOST", "0.0.0.0"),
			Port:            getEnv("PIPEWATCH_PORT", "8080"),
			ReadTimeout:     getEnvDuration("PIPEWATCH_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("PIPEWATCH_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("PIPEWATCH_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("PIPEWATCH_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Driver: getEnv("PIPEWATCH_STORE_DRIVER", "sqlite3"),
			DSN:    getEnv("PIPEWATCH_STORE_DSN", "file:pipewatch.db?_busy_timeout=5000"),
		},
		Cache: CacheConfig{
			Enabled:  getEnvBool("PIPEWATCH_CACHE_ENABLED", false),
			Addr:     getEnv("PIPEWATCH_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("PIPEWATCH_REDIS_PASSWORD", ""),
			DB:       getEnvInt("PIPEWATCH_REDIS_DB", 0),
			TTL:      getEnvDuration("PIPEWATCH_CACHE_TTL", time.Minute),
		},
		Jobs: JobsConfig{
			WindowSize:          getEnvDuration("PIPEWATCH_WINDOW_SIZE", DefaultWindowSize),
			AggregationSchedule: getEnv("PIPEWATCH_AGGREGATION_SCHEDULE", DefaultAggregationSchedule),
			RetentionSchedule:   getEnv("PIPEWATCH_RETENTION_SCHEDULE", DefaultRetentionSchedule),
			RawRetention:        getEnvDuration("PIPEWATCH_RAW_RETENTION", DefaultRawRetention),
			RollupRetention:     getEnvDuration("PIPEWATCH_ROLLUP_RETENTION", DefaultRollupRetention),
			AggregationTimeout:  getEnvDuration("PIPEWATCH_AGGREGATION_TIMEOUT", DefaultAggregationTimeout),
			RetentionTimeout:    getEnvDuration("PIPEWATCH_RETENTION_TIMEOUT", DefaultRetentionTimeout),
			RulesFile:           getEnv("PIPEWATCH_RULES_FILE", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel: parseLogLevel(getEnv("PIPEWATCH_LOG_LEVEL", "info")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Store.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid store driver: %s (must be postgres or sqlite3)", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store DSN is required")
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("redis address is required when the cache is enabled")
	}

	if c.Jobs.WindowSize <= 0 {
		return fmt.Errorf("window size must be positive")
	}
	if c.Jobs.RawRetention <= 0 || c.Jobs.RollupRetention <= 0 {
		return fmt.Errorf("retention horizons must be positive")
	}
	if c.Jobs.RawRetention > c.Jobs.RollupRetention {
		return fmt.Errorf("raw retention must not exceed rollup retention")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
