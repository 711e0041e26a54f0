// Package config provides unified configuration for the tablekit core.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment selects runtime behavior that differs between deployments.
// Non-production environments annotate routed queries with diagnostic comments.
type Environment string

const (
	EnvProduction  Environment = "production"
	EnvDevelopment Environment = "development"
	EnvTest        Environment = "test"
)

// Config holds the unified configuration for the schema evolution core.
type Config struct {
	// Environment controls diagnostic behavior: production, development, test
	Environment Environment `json:"environment" yaml:"environment"`

	// Database holds connection settings for the primary and replica
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Pool holds connection pool sizing
	Pool PoolConfig `json:"pool" yaml:"pool"`

	// Router holds replica routing thresholds
	Router RouterConfig `json:"router" yaml:"router"`

	// Evolution holds schema evolution and data migration settings
	Evolution EvolutionConfig `json:"evolution" yaml:"evolution"`
}

// DatabaseConfig holds connection settings.
type DatabaseConfig struct {
	// Dialect is the database dialect: sqlite, postgres, mysql
	Dialect string `json:"dialect" yaml:"dialect"`

	// PrimaryDSN is the data source name for the primary (read/write) database
	PrimaryDSN string `json:"primary_dsn" yaml:"primary_dsn"`

	// ReplicaDSN is the data source name for the read replica.
	// Falls back to PrimaryDSN when empty (single-database deployments).
	ReplicaDSN string `json:"replica_dsn" yaml:"replica_dsn"`
}

// PoolConfig holds connection pool sizing.
type PoolConfig struct {
	// MinIdle is the number of connections pre-warmed per pool
	MinIdle int `json:"min_idle" yaml:"min_idle"`

	// MaxIdle is the maximum idle connections retained per pool.
	// Borrowing beyond this allocates fresh connections (the pool is a cache
	// hint, not a concurrency cap).
	MaxIdle int `json:"max_idle" yaml:"max_idle"`

	// MaxLifetime is the maximum age of a pooled connection before it is
	// discarded on borrow
	MaxLifetime time.Duration `json:"max_lifetime" yaml:"max_lifetime"`
}

// RouterConfig holds replica routing thresholds.
type RouterConfig struct {
	// FindManyTakeThreshold routes reads requesting more rows than this to the replica
	FindManyTakeThreshold int `json:"find_many_take_threshold" yaml:"find_many_take_threshold"`

	// CreateManyRowThreshold routes bulk inserts larger than this to the replica
	CreateManyRowThreshold int `json:"create_many_row_threshold" yaml:"create_many_row_threshold"`
}

// EvolutionConfig holds schema evolution settings.
type EvolutionConfig struct {
	// MigrationBatchSize is the number of rows backfilled per batch
	MigrationBatchSize int `json:"migration_batch_size" yaml:"migration_batch_size"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Database: DatabaseConfig{
			Dialect:    "sqlite",
			PrimaryDSN: "./data/tablekit.db",
		},
		Pool: PoolConfig{
			MinIdle:     2,
			MaxIdle:     10,
			MaxLifetime: 5 * time.Minute,
		},
		Router: RouterConfig{
			FindManyTakeThreshold:  1000,
			CreateManyRowThreshold: 100,
		},
		Evolution: EvolutionConfig{
			MigrationBatchSize: 50,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvProduction, EnvDevelopment, EnvTest:
		// Valid environments
	default:
		return fmt.Errorf("invalid environment: %s (must be production, development, or test)", c.Environment)
	}

	switch c.Database.Dialect {
	case "sqlite", "postgres", "mysql":
		// Valid dialects
	default:
		return fmt.Errorf("invalid dialect: %s (must be sqlite, postgres, or mysql)", c.Database.Dialect)
	}

	if c.Database.PrimaryDSN == "" {
		return fmt.Errorf("database.primary_dsn is required")
	}

	if c.Pool.MinIdle < 0 || c.Pool.MaxIdle <= 0 {
		return fmt.Errorf("pool sizes must be positive (min_idle=%d, max_idle=%d)", c.Pool.MinIdle, c.Pool.MaxIdle)
	}
	if c.Pool.MinIdle > c.Pool.MaxIdle {
		return fmt.Errorf("pool.min_idle (%d) must not exceed pool.max_idle (%d)", c.Pool.MinIdle, c.Pool.MaxIdle)
	}

	if c.Router.FindManyTakeThreshold <= 0 || c.Router.CreateManyRowThreshold <= 0 {
		return fmt.Errorf("router thresholds must be positive")
	}

	if c.Evolution.MigrationBatchSize <= 0 {
		return fmt.Errorf("evolution.migration_batch_size must be positive, got %d", c.Evolution.MigrationBatchSize)
	}

	return nil
}

// ReplicaDSN returns the replica DSN, falling back to the primary.
func (c *Config) ReplicaDSN() string {
	if c.Database.ReplicaDSN != "" {
		return c.Database.ReplicaDSN
	}
	return c.Database.PrimaryDSN
}

// IsProduction reports whether the core runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables. A .env file in
// the working directory is applied first if present (missing files are fine).
// Environment variables use the TABLEKIT_ prefix.
func LoadFromEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("TABLEKIT_ENVIRONMENT"); v != "" {
		cfg.Environment = Environment(v)
	}
	if v := os.Getenv("TABLEKIT_DB_DIALECT"); v != "" {
		cfg.Database.Dialect = v
	}
	if v := os.Getenv("TABLEKIT_DB_PRIMARY_DSN"); v != "" {
		cfg.Database.PrimaryDSN = v
	}
	if v := os.Getenv("TABLEKIT_DB_REPLICA_DSN"); v != "" {
		cfg.Database.ReplicaDSN = v
	}

	// Pool configuration
	if v := os.Getenv("TABLEKIT_POOL_MIN_IDLE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Pool.MinIdle)
	}
	if v := os.Getenv("TABLEKIT_POOL_MAX_IDLE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Pool.MaxIdle)
	}
	if v := os.Getenv("TABLEKIT_POOL_MAX_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pool.MaxLifetime = d
		}
	}

	// Router configuration
	if v := os.Getenv("TABLEKIT_ROUTER_FIND_MANY_TAKE_THRESHOLD"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Router.FindManyTakeThreshold)
	}
	if v := os.Getenv("TABLEKIT_ROUTER_CREATE_MANY_ROW_THRESHOLD"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Router.CreateManyRowThreshold)
	}

	// Evolution configuration
	if v := os.Getenv("TABLEKIT_EVOLUTION_MIGRATION_BATCH_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Evolution.MigrationBatchSize)
	}
}
