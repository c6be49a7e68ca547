package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sevigo/codewarden/internal/hash"
	"github.com/sevigo/codewarden/internal/logger"
	"github.com/spf13/viper"
)

// Config represents the top-level configuration structure.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Database  DBConfig        `mapstructure:"database"`
	Logging   logger.Config   `mapstructure:"logging"`
}

// ServerConfig configures the JSON HTTP API exposed to the CLI/HTTP
// external collaborator.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// CacheConfig holds the cache.* options. They are loaded and defaulted but
// no component reads them: CacheStore always uses the single configured
// database, and pruning only runs through an explicit PruneCache call with
// its own target size.
type CacheConfig struct {
	// Location is "centralized" (default) or "per_repo"; only the
	// centralized single-database layout exists.
	Location       string `mapstructure:"location"`
	MaxSizeMB      int    `mapstructure:"max_size_mb"`
	PruneAtPercent int    `mapstructure:"prune_at_percent"`
	PruneToPercent int    `mapstructure:"prune_to_percent"`
}

// ModelPrice is the per-model price table entry consulted by BudgetLedger.
type ModelPrice struct {
	InputPerMTok  float64 `mapstructure:"input_per_mtok"`
	OutputPerMTok float64 `mapstructure:"output_per_mtok"`
}

// BudgetConfig configures the monthly cost ceiling enforced by BudgetLedger.
type BudgetConfig struct {
	MonthlyUSD float64               `mapstructure:"monthly_usd"`
	Timezone   string                `mapstructure:"timezone"`
	Price      map[string]ModelPrice `mapstructure:"price"`
}

// ScannerConfig controls the background Scanner/Scheduler pair.
type ScannerConfig struct {
	Enabled                bool     `mapstructure:"enabled"`
	DefaultIntervalMinutes int      `mapstructure:"default_interval_minutes"`
	MaxConcurrent          int      `mapstructure:"max_concurrent"`
	FileExtensions         []string `mapstructure:"file_extensions"`
	// CacheTypeOrder is the configured per-file analysis order (typically:
	// todos, refactor, docs).
	CacheTypeOrder []string `mapstructure:"cache_type_order"`
}

// RateLimitConfig configures the process-wide token-bucket RateLimiter.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// LLMConfig configures LLMCaller's single upstream endpoint.
type LLMConfig struct {
	Provider       string `mapstructure:"provider"`
	Model          string `mapstructure:"model"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DBConfig configures the Postgres connection backing CacheStore.
type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// LoadConfig loads the configuration using Viper with the hierarchy:
// Flags (handled by caller) > Env Vars > Config File > Defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.codewarden")

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded configuration", "file", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", "8080")

	// Cache
	v.SetDefault("cache.location", "centralized")
	v.SetDefault("cache.max_size_mb", 2048)
	v.SetDefault("cache.prune_at_percent", 90)
	v.SetDefault("cache.prune_to_percent", 75)

	// Budget
	v.SetDefault("budget.monthly_usd", 20.0)
	v.SetDefault("budget.timezone", "UTC")

	// Scanner
	v.SetDefault("scanner.enabled", true)
	v.SetDefault("scanner.default_interval_minutes", 60)
	v.SetDefault("scanner.max_concurrent", 2)
	v.SetDefault("scanner.file_extensions", []string{
		".go", ".js", ".ts", ".tsx", ".jsx", ".py", ".java", ".c", ".cpp",
		".h", ".hpp", ".rs", ".rb", ".php", ".cs", ".swift", ".kt", ".scala",
	})
	v.SetDefault("scanner.cache_type_order", []string{"todos", "refactor", "docs", "analysis"})

	// Rate limit
	v.SetDefault("ratelimit.requests_per_minute", 60)
	v.SetDefault("ratelimit.burst", 10)

	// LLM
	v.SetDefault("llm.provider", "openai-compatible")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout_seconds", 120)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	// Database
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "codewarden")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "5m")
}

// ValidateForServer checks the fields required to run cmd/warden-server.
func (c *Config) ValidateForServer() error {
	if c.Database.Database == "" {
		return errors.New("database.database is required")
	}
	if c.LLM.Provider == "" || c.LLM.Model == "" {
		return errors.New("llm.provider and llm.model are required")
	}
	if c.Scanner.MaxConcurrent <= 0 {
		return errors.New("scanner.max_concurrent must be positive")
	}
	if c.Budget.MonthlyUSD <= 0 {
		return errors.New("budget.monthly_usd must be positive")
	}
	return nil
}

// ValidateForCLI checks the subset of fields required for one-shot CLI use.
func (c *Config) ValidateForCLI() error {
	if c.LLM.Provider == "" || c.LLM.Model == "" {
		return errors.New("llm.provider and llm.model are required")
	}
	return nil
}

// ConfigHash folds every configuration field that can change AnalysisService's
// output for a fixed (file, model, prompt, schema) into a single digest — the
// cache key's fifth factor. Re-keying on a config change is intentional:
// spec.md §3 treats config_hash as independent from the other four factors.
func (c *Config) ConfigHash() (string, error) {
	// Only the fields that actually influence prompt rendering or decoding
	// are folded in; unrelated settings (server port, database credentials)
	// must not cause needless cache invalidation.
	relevant := struct {
		LLM LLMConfig
	}{LLM: c.LLM}

	encoded, err := json.Marshal(relevant)
	if err != nil {
		return "", fmt.Errorf("failed to encode configuration for hashing: %w", err)
	}
	return hash.NewContentHasher().HashString(string(encoded)), nil
}

// GetDSN builds the libpq connection string for sqlx.Connect.
func (db *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host,
		db.Port,
		db.Username,
		db.Password,
		db.Database,
		db.SSLMode,
	)
}
