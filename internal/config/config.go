package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kode4food/cadence/pkg/api"
)

type (
	// Config holds configuration settings for the workflow engine
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Stores & Archiving
		Store   StoreConfig
		Archive ArchiveConfig

		// Capabilities
		CapabilityFile    string
		CapabilityTimeout time.Duration

		// Approvals
		ApprovalTimeout time.Duration

		// Retry
		Retry api.RetryConfig

		ShutdownTimeout time.Duration
	}

	// StoreConfig configures the Redis catalog of definitions and results
	StoreConfig struct {
		Addr       string
		Password   string
		DB         int
		Prefix     string
		RunTTL     time.Duration
		RunHistory int
	}

	// ArchiveConfig configures the blob bucket that receives exported run
	// records. An empty URL disables archiving
	ArchiveConfig struct {
		URL    string
		Prefix string
	}
)

const (
	DefaultCapabilityTimeout = 30 * time.Second
	DefaultApprovalTimeout   = 10 * time.Minute
	DefaultShutdownTimeout   = 10 * time.Second

	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535
	DefaultRedisDB = 0

	DefaultRedisEndpoint = "localhost:6379"
	DefaultRedisPrefix   = "cadence"
	DefaultRunTTL        = 7 * 24 * time.Hour
	DefaultRunHistory    = 100
	DefaultArchivePrefix = "runs"

	DefaultRetryInitBackoff = 0
	DefaultMaxRetryBackoff  = 0
	DefaultRetryBackoffType = api.BackoffTypeNone

	MaxRedisDB          = 15
	MaxRunHistory       = 100_000
	MaxRetryInitBackoff = 24 * 60 * 60 * 1000 // 1 day in ms
	MaxRetryMaxBackoff  = MaxRetryInitBackoff
)

var (
	ErrInvalidAPIPort           = errors.New("invalid API port")
	ErrInvalidCapabilityTimeout = errors.New(
		"capability timeout must be positive",
	)
	ErrInvalidApprovalTimeout = errors.New(
		"approval timeout cannot be negative",
	)
	ErrInvalidRunTTL     = errors.New("run TTL cannot be negative")
	ErrInvalidRunHistory = errors.New("run history must be positive")
	ErrInvalidRetry      = errors.New("invalid retry configuration")
	ErrInvalidDuration   = errors.New("invalid duration")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// engine, the store, and retry behavior
func NewDefaultConfig() *Config {
	return &Config{
		APIPort: DefaultAPIPort,
		APIHost: DefaultAPIHost,
		Store: StoreConfig{
			Addr:       DefaultRedisEndpoint,
			DB:         DefaultRedisDB,
			Prefix:     DefaultRedisPrefix,
			RunTTL:     DefaultRunTTL,
			RunHistory: DefaultRunHistory,
		},
		Archive: ArchiveConfig{
			Prefix: DefaultArchivePrefix,
		},
		CapabilityTimeout: DefaultCapabilityTimeout,
		ApprovalTimeout:   DefaultApprovalTimeout,
		Retry: api.RetryConfig{
			BackoffType: DefaultRetryBackoffType,
			InitBackoff: DefaultRetryInitBackoff,
			MaxBackoff:  DefaultMaxRetryBackoff,
		},
		ShutdownTimeout: DefaultShutdownTimeout,
		LogLevel:        "info",
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	LoadStoreConfigFromEnv(&c.Store)

	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if url := os.Getenv("ARCHIVE_URL"); url != "" {
		c.Archive.URL = url
	}
	if prefix := os.Getenv("ARCHIVE_PREFIX"); prefix != "" {
		c.Archive.Prefix = prefix
	}
	if file := os.Getenv("CAPABILITY_FILE"); file != "" {
		c.CapabilityFile = file
	}
	if backoffType := os.Getenv("RETRY_BACKOFF_TYPE"); backoffType != "" {
		c.Retry.BackoffType = backoffType
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"REDIS_DB", &c.Store.DB, -1, MaxRedisDB,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RUN_HISTORY", &c.Store.RunHistory, 0, MaxRunHistory,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RETRY_INITIAL_BACKOFF", &c.Retry.InitBackoff, -1, MaxRetryInitBackoff,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RETRY_MAX_BACKOFF", &c.Retry.MaxBackoff, -1, MaxRetryMaxBackoff,
	); err != nil {
		return err
	}

	if err := loadEnvDuration("RUN_TTL", &c.Store.RunTTL); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"CAPABILITY_TIMEOUT", &c.CapabilityTimeout,
	); err != nil {
		return err
	}
	return loadEnvDuration("APPROVAL_TIMEOUT", &c.ApprovalTimeout)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if c.CapabilityTimeout <= 0 {
		return ErrInvalidCapabilityTimeout
	}

	if c.ApprovalTimeout < 0 {
		return ErrInvalidApprovalTimeout
	}

	if c.Store.RunTTL < 0 {
		return ErrInvalidRunTTL
	}

	if c.Store.RunHistory <= 0 {
		return ErrInvalidRunHistory
	}

	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRetry, err)
	}

	return nil
}

// LoadStoreConfigFromEnv loads Redis store configuration from environment
// variables
func LoadStoreConfigFromEnv(s *StoreConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		s.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		s.Password = password
	}
	if envPrefix := os.Getenv("REDIS_PREFIX"); envPrefix != "" {
		s.Prefix = envPrefix
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

// loadEnvDuration reads key from the environment and parses it as a Go
// duration string such as "30s" or "24h"
func loadEnvDuration(key string, dst *time.Duration) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %s: %q", ErrInvalidDuration, key, s)
	}
	*dst = d
	return nil
}
