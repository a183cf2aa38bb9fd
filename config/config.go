package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

type (
	// Config holds the settings shared by the flowagent binaries
	Config struct {
		// API Server
		APIHost  string `json:"api_host"`
		APIPort  int    `json:"api_port"`
		LogLevel string `json:"log_level"`

		// Flow Registry
		RegistryURL string `json:"registry_url"`
		BucketURL   string `json:"bucket_url"`

		// Conversation State
		StateStore string      `json:"state_store"`
		Redis      RedisConfig `json:"redis"`

		// Language Model
		APIKey  string `json:"api_key"`
		BaseURL string `json:"base_url"`
		Model   string `json:"model"`

		HTTPTimeout     time.Duration `json:"-"`
		ShutdownTimeout time.Duration `json:"-"`
	}

	RedisConfig struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
		Prefix   string `json:"prefix"`
	}
)

const (
	StateStoreMemory = "memory"
	StateStoreRedis  = "redis"
)

const (
	DefaultAPIPort         = 8080
	DefaultAPIHost         = "0.0.0.0"
	MaxTCPPort             = 65535
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	MaxTimeoutSeconds      = 3600

	DefaultRegistryURL   = "http://localhost:3000"
	DefaultRedisEndpoint = "localhost:6379"
	DefaultRedisPrefix   = "flowagent:conversation"
	DefaultBaseURL       = "https://api.openai.com/v1"
	DefaultModel         = "gpt-4o"
)

var (
	ErrInvalidAPIPort     = errors.New("invalid API port")
	ErrInvalidStateStore  = errors.New("invalid state store")
	ErrMissingRegistry    = errors.New("a registry URL or bucket URL is required")
	ErrMissingRedisAddr   = errors.New("redis address is required for the redis state store")
	ErrInvalidHTTPTimeout = errors.New("http timeout must be positive")
)

// NewDefaultConfig creates a configuration backed by an in-memory state
// store and a registry on localhost
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:     DefaultAPIHost,
		APIPort:     DefaultAPIPort,
		LogLevel:    "info",
		RegistryURL: DefaultRegistryURL,
		StateStore:  StateStoreMemory,
		Redis: RedisConfig{
			Addr:   DefaultRedisEndpoint,
			Prefix: DefaultRedisPrefix,
		},
		BaseURL:         DefaultBaseURL,
		Model:           DefaultModel,
		HTTPTimeout:     DefaultHTTPTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Load reads a JSON config file over the defaults
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := sonic.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	loadEnvString("API_HOST", &c.APIHost)
	loadEnvString("LOG_LEVEL", &c.LogLevel)
	loadEnvString("FLOW_REGISTRY_URL", &c.RegistryURL)
	loadEnvString("FLOW_BUCKET_URL", &c.BucketURL)
	loadEnvString("STATE_STORE", &c.StateStore)
	loadEnvString("REDIS_ADDR", &c.Redis.Addr)
	loadEnvString("REDIS_PASSWORD", &c.Redis.Password)
	loadEnvString("REDIS_PREFIX", &c.Redis.Prefix)
	loadEnvString("OPENAI_API_KEY", &c.APIKey)
	loadEnvString("OPENAI_BASE_URL", &c.BaseURL)
	loadEnvString("OPENAI_MODEL", &c.Model)

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt("REDIS_DB", &c.Redis.DB, -1, 15); err != nil {
		return err
	}
	if err := loadEnvSeconds("HTTP_TIMEOUT", &c.HTTPTimeout); err != nil {
		return err
	}
	if err := loadEnvSeconds("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if c.HTTPTimeout <= 0 {
		return ErrInvalidHTTPTimeout
	}
	if c.RegistryURL == "" && c.BucketURL == "" {
		return ErrMissingRegistry
	}
	switch c.StateStore {
	case StateStoreMemory:
	case StateStoreRedis:
		if c.Redis.Addr == "" {
			return ErrMissingRedisAddr
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStateStore, c.StateStore)
	}
	return nil
}

// Addr is the host:port the API server listens on
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

func loadEnvString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]
func loadEnvInt(key string, dst *int, min, max int) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	if v <= min || v > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]", key, v, min+1, max)
	}
	*dst = v
	return nil
}

func loadEnvSeconds(key string, dst *time.Duration) error {
	secs := 0
	if err := loadEnvInt(key, &secs, 0, MaxTimeoutSeconds); err != nil {
		return err
	}
	if secs > 0 {
		*dst = time.Duration(secs) * time.Second
	}
	return nil
}
