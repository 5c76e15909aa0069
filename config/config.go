package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/prompt-review/utils"
)

// Config represents the complete application configuration
type Config struct {
	Environment   string `validate:"required"`
	Stores        StoresConfig
	Review        ReviewConfig
	History       HistoryConfig
	Observability ObservabilityConfig
}

// StoresConfig holds the locations shared with the safety gateway.
// PendingLogPath may be a local path or any afs URL (file://, mem://, s3://...).
type StoresConfig struct {
	PendingLogPath string `validate:"required"`
	AllowListPath  string `validate:"required"`
	AtomicTruncate bool
}

// ReviewConfig holds operator settings
type ReviewConfig struct {
	Reviewer string `validate:"required"`
}

// HistoryConfig holds the optional review-history ledger configuration.
// An empty Driver disables the ledger.
type HistoryConfig struct {
	Driver          string `validate:"omitempty,oneof=sqlite3 postgres"`
	DSN             string
	MaxOpenConns    int `validate:"gte=0"`
	MaxIdleConns    int `validate:"gte=0"`
	ConnMaxLifetime time.Duration
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string `validate:"required,oneof=debug info warn error"`
	LogFormat string `validate:"required,oneof=json console"` // json or console
}

const (
	// DefaultPendingLogPath is where the gateway appends prompts awaiting review.
	DefaultPendingLogPath = "user_prompts.csv"
	// DefaultAllowListPath is the allow-list the gateway loads on startup.
	DefaultAllowListPath = "safe_prompts.csv"
	// DefaultSQLiteHistoryPath is used when HISTORY_DRIVER=sqlite3 and no DSN is set.
	DefaultSQLiteHistoryPath = ".review/history.db"
)

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Stores: StoresConfig{
			PendingLogPath: getEnv("PENDING_LOG_PATH", DefaultPendingLogPath),
			AllowListPath:  getEnv("ALLOWLIST_PATH", DefaultAllowListPath),
			AtomicTruncate: getEnvAsBool("ATOMIC_TRUNCATE", false),
		},
		Review: ReviewConfig{
			Reviewer: getReviewer(),
		},
		History: loadHistoryConfig(),
		Observability: ObservabilityConfig{
			LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "warn")),
			LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "console")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		if fields := utils.GetValidationFields(err); len(fields) > 0 {
			return fmt.Errorf("%s: %v", err.Error(), fields)
		}
		return err
	}

	if c.History.Driver == "postgres" && c.History.DSN == "" {
		return fmt.Errorf("history DSN is required for postgres: set HISTORY_DSN or DATABASE_URL")
	}

	return nil
}

// HistoryEnabled reports whether decisions should be written to the ledger
func (c *Config) HistoryEnabled() bool {
	return c.History.Driver != ""
}

// LogString returns a safe string for logging (no password).
func (c *HistoryConfig) LogString() string {
	if c.Driver != "postgres" {
		return fmt.Sprintf("driver=%s path=%s", c.Driver, c.DSN)
	}
	u, err := url.Parse(c.DSN)
	if err != nil || u.Host == "" {
		return "driver=postgres host=<from DSN>"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("driver=postgres host=%s port=%s database=%s",
		u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
}

// loadHistoryConfig loads ledger config from HISTORY_* vars, falling back to
// DATABASE_URL for postgres.
func loadHistoryConfig() HistoryConfig {
	driver := strings.ToLower(getEnv("HISTORY_DRIVER", ""))
	if driver == "sqlite" {
		driver = "sqlite3"
	}
	cfg := HistoryConfig{
		Driver:          driver,
		DSN:             getEnv("HISTORY_DSN", ""),
		MaxOpenConns:    getEnvAsInt("HISTORY_MAX_OPEN_CONNS", 2),
		MaxIdleConns:    getEnvAsInt("HISTORY_MAX_IDLE_CONNS", 1),
		ConnMaxLifetime: getEnvAsDuration("HISTORY_CONN_MAX_LIFETIME", 5*time.Minute),
	}
	switch driver {
	case "postgres":
		if cfg.DSN == "" {
			cfg.DSN = getEnv("DATABASE_URL", "")
		}
	case "sqlite3":
		if cfg.DSN == "" {
			cfg.DSN = DefaultSQLiteHistoryPath
		}
	}
	return cfg
}

// Helper functions

// getReviewer returns REVIEWER, then USER, then "admin"
func getReviewer() string {
	if value := os.Getenv("REVIEWER"); value != "" {
		return value
	}
	return getEnv("USER", "admin")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
