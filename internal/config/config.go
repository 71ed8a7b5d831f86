// Package config provides configuration management for emojidb.
// It loads settings from an optional YAML file and from environment variables,
// with sensible defaults, and validates them before a run starts.
//
// Precedence, lowest first: defaults, the YAML file, environment variables.
// Command line flags are applied by the caller on top of the loaded Config.
//
// Environment Variables:
//
// Sources:
//   - EMOJIDB_REGISTRY_URL: emoji-test.txt location (default: unicode.org latest)
//   - EMOJIDB_REGISTRY_PATH: local registry file, takes precedence over the URL
//   - EMOJIDB_SITE_URL: detail site base URL (default: https://emojipedia.org)
//
// Output:
//   - EMOJIDB_OUTPUT: JSON output path, "-" for stdout (default: emoji-2db.json)
//   - EMOJIDB_LIMIT: maximum records to process, 0 for all
//   - EMOJIDB_OFFSET: records to skip from the start of the registry
//
// Resolution:
//   - EMOJIDB_RECORD_DELAY: minimum spacing between records (default: 1s)
//   - EMOJIDB_RETRY_ATTEMPTS: detail page attempts per record (default: 5)
//   - EMOJIDB_RETRY_DELAY: delay between attempts (default: 3s)
//   - EMOJIDB_RETRY_BACKOFF: fixed, linear or exponential (default: fixed)
//   - EMOJIDB_REQUEST_TIMEOUT: per request timeout, 0 for none (default: 60s)
//   - EMOJIDB_USER_AGENT: User-Agent sent upstream
//   - EMOJIDB_DETAIL_URL_MODE: slug or glyph (default: slug)
//   - EMOJIDB_SCRAPE_SHORTCODES: scrape shortcodes from page HTML (default: true)
//
// Cache:
//   - EMOJIDB_CACHE_ENABLED: cache detail data by slug (default: true)
//   - EMOJIDB_CACHE_TTL: cache entry lifetime (default: 24h)
//   - EMOJIDB_CACHE_SIZE: in-process cache capacity (default: 5000)
//   - REDIS_ADDRESS: Redis address; empty keeps the cache in process
//   - REDIS_PASSWORD, REDIS_DB (0-15), REDIS_POOL_SIZE
//   - EMOJIDB_RUN_LOCK: hold a Redis lock for the whole run (default: true)
//   - EMOJIDB_RUN_LOCK_TTL: lock expiry, renewed per record (default: 10m)
//
// Database mirror:
//   - DATABASE_TYPE: none, sqlite or postgres (default: none)
//   - DATABASE_PATH: SQLite database file
//   - DATABASE_URL: PostgreSQL connection URL
//
// Observability:
//   - PUSHGATEWAY_URL: Prometheus Pushgateway to push run metrics to
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_FILE: append logs to this file instead of stderr
//
// Example usage:
//
//	cfg, err := config.LoadFile(os.Getenv("EMOJIDB_CONFIG"))
//	if err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"emojidb/internal/common/logging"
)

// DefaultRegistryURL is the latest published emoji-test.txt
const DefaultRegistryURL = "https://unicode.org/Public/emoji/latest/emoji-test.txt"

// StdoutOutput selects standard output as the JSON destination
const StdoutOutput = "-"

// Config holds all configuration values for a pipeline run.
type Config struct {
	// Sources
	RegistryURL  string `yaml:"registry_url"`
	RegistryPath string `yaml:"registry_path"`
	SiteURL      string `yaml:"site_url"`

	// Output
	OutputPath string `yaml:"output"`
	Limit      int    `yaml:"limit"`
	Offset     int    `yaml:"offset"`

	// Resolution
	RecordDelay      time.Duration `yaml:"record_delay"`
	RetryAttempts    int           `yaml:"retry_attempts"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	RetryBackoff     string        `yaml:"retry_backoff"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	UserAgent        string        `yaml:"user_agent"`
	DetailURLMode    string        `yaml:"detail_url_mode"`
	ScrapeShortcodes bool          `yaml:"scrape_shortcodes"`

	// Detail cache
	CacheEnabled  bool          `yaml:"cache_enabled"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	CacheSize     int           `yaml:"cache_size"`
	RedisAddress  string        `yaml:"redis_address"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPoolSize int           `yaml:"redis_pool_size"`
	RunLock       bool          `yaml:"run_lock"`
	RunLockTTL    time.Duration `yaml:"run_lock_ttl"`

	// Database mirror
	DatabaseType string `yaml:"database_type"`
	DatabasePath string `yaml:"database_path"`
	DatabaseURL  string `yaml:"database_url"`

	// Observability
	PushgatewayURL string `yaml:"pushgateway_url"`
	LogLevel       string `yaml:"log_level"`
	LogFile        string `yaml:"log_file"`
}

// Default returns the configuration of a plain run
func Default() *Config {
	return &Config{
		RegistryURL: DefaultRegistryURL,
		SiteURL:     "https://emojipedia.org",
		OutputPath:  "emoji-2db.json",

		RecordDelay:      time.Second,
		RetryAttempts:    5,
		RetryDelay:       3 * time.Second,
		RetryBackoff:     "fixed",
		RequestTimeout:   60 * time.Second,
		DetailURLMode:    "slug",
		ScrapeShortcodes: true,

		CacheEnabled:  true,
		CacheTTL:      24 * time.Hour,
		CacheSize:     5000,
		RedisPoolSize: 10,
		RunLock:       true,
		RunLockTTL:    10 * time.Minute,

		DatabaseType: "none",
		LogLevel:     "info",
	}
}

// Load creates a Config from defaults overridden by environment variables.
//
// This function does not validate the configuration; call Validate() on the
// returned Config.
func Load() *Config {
	config := Default()
	config.applyEnv()
	return config
}

// applyEnv overrides fields whose environment variable is set. The current
// field value acts as the default.
func (c *Config) applyEnv() {
	c.RegistryURL = getEnv("EMOJIDB_REGISTRY_URL", c.RegistryURL)
	c.RegistryPath = getEnv("EMOJIDB_REGISTRY_PATH", c.RegistryPath)
	c.SiteURL = getEnv("EMOJIDB_SITE_URL", c.SiteURL)

	c.OutputPath = getEnv("EMOJIDB_OUTPUT", c.OutputPath)
	c.Limit = getIntEnv("EMOJIDB_LIMIT", c.Limit)
	c.Offset = getIntEnv("EMOJIDB_OFFSET", c.Offset)

	c.RecordDelay = getDurationEnv("EMOJIDB_RECORD_DELAY", c.RecordDelay)
	c.RetryAttempts = getIntEnv("EMOJIDB_RETRY_ATTEMPTS", c.RetryAttempts)
	c.RetryDelay = getDurationEnv("EMOJIDB_RETRY_DELAY", c.RetryDelay)
	c.RetryBackoff = getEnv("EMOJIDB_RETRY_BACKOFF", c.RetryBackoff)
	c.RequestTimeout = getDurationEnv("EMOJIDB_REQUEST_TIMEOUT", c.RequestTimeout)
	c.UserAgent = getEnv("EMOJIDB_USER_AGENT", c.UserAgent)
	c.DetailURLMode = getEnv("EMOJIDB_DETAIL_URL_MODE", c.DetailURLMode)
	c.ScrapeShortcodes = getBoolEnv("EMOJIDB_SCRAPE_SHORTCODES", c.ScrapeShortcodes)

	c.CacheEnabled = getBoolEnv("EMOJIDB_CACHE_ENABLED", c.CacheEnabled)
	c.CacheTTL = getDurationEnv("EMOJIDB_CACHE_TTL", c.CacheTTL)
	c.CacheSize = getIntEnv("EMOJIDB_CACHE_SIZE", c.CacheSize)
	c.RedisAddress = getEnv("REDIS_ADDRESS", c.RedisAddress)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getIntEnv("REDIS_DB", c.RedisDB)
	c.RedisPoolSize = getIntEnv("REDIS_POOL_SIZE", c.RedisPoolSize)
	c.RunLock = getBoolEnv("EMOJIDB_RUN_LOCK", c.RunLock)
	c.RunLockTTL = getDurationEnv("EMOJIDB_RUN_LOCK_TTL", c.RunLockTTL)

	c.DatabaseType = getEnv("DATABASE_TYPE", c.DatabaseType)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)

	c.PushgatewayURL = getEnv("PUSHGATEWAY_URL", c.PushgatewayURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts the strconv.ParseBool forms; anything else yields defaultValue.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv parses Go durations ("1s", "250ms"). A bare integer is
// read as seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// Validate checks that the configuration can drive a run.
//
// This method checks:
//   - a registry source and an absolute site URL are present
//   - enum fields hold a known value
//   - counts and durations are not negative
//   - the selected database and Redis settings are complete
func (c *Config) Validate() error {
	if c.RegistryURL == "" && c.RegistryPath == "" {
		return fmt.Errorf("EMOJIDB_REGISTRY_URL or EMOJIDB_REGISTRY_PATH is required")
	}

	if u, err := url.Parse(c.SiteURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("EMOJIDB_SITE_URL must be an absolute URL, got %q", c.SiteURL)
	}

	if c.OutputPath == "" {
		return fmt.Errorf("EMOJIDB_OUTPUT is required")
	}

	if _, ok := logging.LookupLevel(c.LogLevel); !ok {
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}

	if c.Limit < 0 || c.Offset < 0 {
		return fmt.Errorf("EMOJIDB_LIMIT and EMOJIDB_OFFSET must not be negative")
	}

	if c.RetryAttempts < 1 {
		return fmt.Errorf("EMOJIDB_RETRY_ATTEMPTS must be at least 1")
	}

	if c.RecordDelay < 0 || c.RetryDelay < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("EMOJIDB_RECORD_DELAY, EMOJIDB_RETRY_DELAY and EMOJIDB_REQUEST_TIMEOUT must not be negative")
	}

	switch c.RetryBackoff {
	case "fixed", "linear", "exponential":
	default:
		return fmt.Errorf("EMOJIDB_RETRY_BACKOFF must be 'fixed', 'linear' or 'exponential'")
	}

	switch c.DetailURLMode {
	case "slug", "glyph":
	default:
		return fmt.Errorf("EMOJIDB_DETAIL_URL_MODE must be 'slug' or 'glyph'")
	}

	if c.CacheEnabled && c.CacheTTL <= 0 {
		return fmt.Errorf("EMOJIDB_CACHE_TTL must be positive when the cache is enabled")
	}

	if c.RedisAddress != "" {
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if c.RedisPoolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
		if c.RunLock && c.RunLockTTL <= 0 {
			return fmt.Errorf("EMOJIDB_RUN_LOCK_TTL must be positive when the run lock is enabled")
		}
	}

	switch c.DatabaseType {
	case "", "none":
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required when using SQLite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when using PostgreSQL")
		}
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'none', 'sqlite' or 'postgres'")
	}

	return nil
}

// WritesToStdout reports whether the JSON output goes to standard output
func (c *Config) WritesToStdout() bool {
	return c.OutputPath == StdoutOutput
}
