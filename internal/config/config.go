package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/darkodi/linkify/internal/codegen"
	"github.com/darkodi/linkify/internal/logger"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Cache     CacheConfig
	Codegen   CodegenConfig
	Clicks    ClicksConfig
	RateLimit RateLimitConfig
	App       AppConfig
	Log       logger.Config
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects and configures the mapping store
type DatabaseConfig struct {
	Driver    string        // "sqlite", "postgres", "redis", "nats"
	Path      string        // sqlite file path
	DSN       string        // postgres connection string
	OpTimeout time.Duration // per-call bound on every store operation
}

// RedisConfig holds Redis connection settings (store and cache)
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Prefix   string
}

// NATSConfig holds JetStream KV settings
type NATSConfig struct {
	URL    string
	Bucket string
}

// CacheConfig configures the optional lookup cache
type CacheConfig struct {
	Driver      string // "none", "memory", "redis"
	TTL         time.Duration
	MaxCost     int64 // ristretto: max number of entries (cost 1 each)
	NumCounters int64
}

// CodegenConfig controls generated short codes
type CodegenConfig struct {
	Length      int
	Alphabet    string
	MaxAttempts int
}

// ClicksConfig sizes the fire-and-forget click recorder
type ClicksConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// RateLimitConfig holds per-IP limits for creation and redirects
type RateLimitConfig struct {
	Enabled          bool
	CreateRate       int
	CreateInterval   time.Duration
	CreateBurst      int
	RedirectRate     int
	RedirectInterval time.Duration
	RedirectBurst    int
	Cleanup          time.Duration
}

// AppConfig holds application-specific settings
type AppConfig struct {
	BaseURL          string
	Environment      string // "development", "production", "testing"
	FrontendURL      string
	BlockPrivateURLs bool
	MaxURLLength     int
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:    getEnv("DB_DRIVER", "sqlite"),
			Path:      getEnv("DB_PATH", "./data/urls.db"),
			DSN:       getEnv("DATABASE_URL", ""),
			OpTimeout: getDurationEnv("DB_OP_TIMEOUT", 3*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			PoolSize: getIntEnv("REDIS_POOL_SIZE", 10),
			Prefix:   getEnv("REDIS_PREFIX", "linkify:"),
		},
		NATS: NATSConfig{
			URL:    getEnv("NATS_URL", "nats://localhost:4222"),
			Bucket: getEnv("NATS_BUCKET", "urls"),
		},
		Cache: CacheConfig{
			Driver:      getEnv("CACHE_DRIVER", "none"),
			TTL:         getDurationEnv("CACHE_TTL", 30*time.Second),
			MaxCost:     int64(getIntEnv("CACHE_MAX_ENTRIES", 100000)),
			NumCounters: int64(getIntEnv("CACHE_COUNTERS", 1000000)),
		},
		Codegen: CodegenConfig{
			Length:      getIntEnv("CODE_LENGTH", 7),
			Alphabet:    getEnv("CODE_ALPHABET", codegen.Base62),
			MaxAttempts: getIntEnv("CODE_MAX_ATTEMPTS", 10),
		},
		Clicks: ClicksConfig{
			Workers:   getIntEnv("CLICK_WORKERS", 4),
			QueueSize: getIntEnv("CLICK_QUEUE_SIZE", 1024),
			Timeout:   getDurationEnv("CLICK_TIMEOUT", 2*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:          getBoolEnv("RATE_LIMIT_ENABLED", true),
			CreateRate:       getIntEnv("RATE_LIMIT_MAX_REQUESTS", 100),
			CreateInterval:   getDurationEnv("RATE_LIMIT_WINDOW", 15*time.Minute),
			CreateBurst:      getIntEnv("RATE_LIMIT_BURST", 100),
			RedirectRate:     getIntEnv("REDIRECT_RATE_LIMIT_MAX_REQUESTS", 50),
			RedirectInterval: getDurationEnv("REDIRECT_RATE_LIMIT_WINDOW", time.Minute),
			RedirectBurst:    getIntEnv("REDIRECT_RATE_LIMIT_BURST", 50),
			Cleanup:          getDurationEnv("RATE_LIMIT_CLEANUP", 5*time.Minute),
		},
		App: AppConfig{
			BaseURL:          getEnv("BASE_URL", ""),
			Environment:      getEnv("ENVIRONMENT", "development"),
			FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
			BlockPrivateURLs: getBoolEnv("BLOCK_PRIVATE_URLS", false),
			MaxURLLength:     getIntEnv("MAX_URL_LENGTH", 2048),
		},
		Log: logger.Config{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
	cfg.Log.Environment = cfg.App.Environment

	// Set default BaseURL if not provided
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = fmt.Sprintf("http://localhost:%s/api", cfg.Server.Port)
	}
	cfg.App.BaseURL = strings.TrimRight(cfg.App.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %s (must be 1-65535)", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database path cannot be empty")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	case "redis", "nats":
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite, postgres, redis, or nats)", c.Database.Driver)
	}
	if c.Database.OpTimeout <= 0 {
		return errors.New("database operation timeout must be positive")
	}

	switch c.Cache.Driver {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("invalid cache driver: %s (must be none, memory, or redis)", c.Cache.Driver)
	}

	if c.Codegen.Length < 4 || c.Codegen.Length > 20 {
		return fmt.Errorf("invalid code length: %d (must be 4-20)", c.Codegen.Length)
	}
	if len(c.Codegen.Alphabet) < 2 {
		return errors.New("code alphabet needs at least 2 characters")
	}
	for _, ch := range c.Codegen.Alphabet {
		if !codegen.IsAlphanumeric(ch) {
			return fmt.Errorf("code alphabet must be alphanumeric, got %q", ch)
		}
	}
	if c.Codegen.MaxAttempts < 1 {
		return fmt.Errorf("invalid max attempts: %d", c.Codegen.MaxAttempts)
	}

	if c.Clicks.Workers < 1 || c.Clicks.QueueSize < 1 {
		return errors.New("click recorder needs at least one worker and a positive queue size")
	}
	if c.Clicks.Timeout <= 0 {
		return errors.New("click timeout must be positive")
	}
	if c.App.MaxURLLength < 1 {
		return fmt.Errorf("invalid max URL length: %d", c.App.MaxURLLength)
	}

	validEnvs := map[string]bool{
		"development": true,
		"production":  true,
		"testing":     true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, production, or testing)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// ============================================================
// HELPER FUNCTIONS
// ============================================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
