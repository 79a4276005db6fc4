// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	Broker      BrokerConfig      `yaml:"broker"`
	Feed        FeedConfig        `yaml:"feed"`
	Tracker     TrackerConfig     `yaml:"tracker"`
	Server      ServerConfig      `yaml:"server"`
	System      SystemConfig      `yaml:"system"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// BrokerConfig contains trading data source settings
type BrokerConfig struct {
	BaseURL   string  `yaml:"base_url"`
	APIKey    string  `yaml:"api_key"`
	APISecret string  `yaml:"api_secret"`
	TimeoutS  int     `yaml:"timeout_seconds"`
	RateLimit float64 `yaml:"rate_limit"` // REST requests per second
	UseMock   bool    `yaml:"use_mock"`
}

// FeedConfig contains streaming endpoint settings
type FeedConfig struct {
	URL     string   `yaml:"url"`
	Symbols []string `yaml:"symbols"`
}

// TrackerConfig contains reconciliation tuning
type TrackerConfig struct {
	RefreshIntervalS int `yaml:"refresh_interval_seconds"`
	IOTimeoutS       int `yaml:"io_timeout_seconds"`
	QueueSize        int `yaml:"queue_size"`
}

// ServerConfig contains live server settings
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections"`
	Production     bool     `yaml:"production"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
}

// ConcurrencyConfig contains worker pool settings
type ConcurrencyConfig struct {
	BroadcastPoolSize   int `yaml:"broadcast_pool_size"`
	BroadcastPoolBuffer int `yaml:"broadcast_pool_buffer"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateBrokerConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateFeedConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateTrackerConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateServerConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateSystemConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateBrokerConfig() error {
	if c.Broker.UseMock {
		return nil
	}

	if c.Broker.BaseURL == "" {
		return ValidationError{
			Field:   "broker.base_url",
			Message: "base URL is required",
		}
	}
	if c.Broker.APIKey == "" {
		return ValidationError{
			Field:   "broker.api_key",
			Message: "API key is required",
		}
	}
	if c.Broker.APISecret == "" {
		return ValidationError{
			Field:   "broker.api_secret",
			Message: "API secret is required",
		}
	}
	if c.Broker.RateLimit < 0 {
		return ValidationError{
			Field:   "broker.rate_limit",
			Value:   c.Broker.RateLimit,
			Message: "rate limit must not be negative",
		}
	}
	return nil
}

func (c *Config) validateFeedConfig() error {
	if c.Broker.UseMock {
		return nil
	}

	if c.Feed.URL == "" {
		return ValidationError{
			Field:   "feed.url",
			Message: "stream URL is required",
		}
	}
	return nil
}

func (c *Config) validateTrackerConfig() error {
	if c.Tracker.RefreshIntervalS < 0 {
		return ValidationError{
			Field:   "tracker.refresh_interval_seconds",
			Value:   c.Tracker.RefreshIntervalS,
			Message: "refresh interval must not be negative",
		}
	}
	if c.Tracker.IOTimeoutS < 0 {
		return ValidationError{
			Field:   "tracker.io_timeout_seconds",
			Value:   c.Tracker.IOTimeoutS,
			Message: "I/O timeout must not be negative",
		}
	}
	return nil
}

func (c *Config) validateServerConfig() error {
	if c.Server.Addr == "" {
		return ValidationError{
			Field:   "server.addr",
			Message: "listen address is required",
		}
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return ValidationError{
			Field:   "server.allowed_origins",
			Message: "at least one allowed origin is required",
		}
	}
	if c.Server.Production {
		for _, origin := range c.Server.AllowedOrigins {
			if origin == "*" {
				return ValidationError{
					Field:   "server.allowed_origins",
					Value:   origin,
					Message: "wildcard origin is not allowed in production mode",
				}
			}
		}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

// String returns a printable form of the config with credentials masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{broker_url: %s, api_key: %s, feed_url: %s, symbols: %v, refresh_interval: %ds, server: %s, log_level: %s}",
		c.Broker.BaseURL,
		maskString(c.Broker.APIKey),
		c.Feed.URL,
		c.Feed.Symbols,
		c.Tracker.RefreshIntervalS,
		c.Server.Addr,
		c.System.LogLevel,
	)
}

// expandEnvVars expands ${VAR} references in the raw YAML content
func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func maskString(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			BaseURL:   "https://paper-api.alpaca.markets",
			APIKey:    "test_api_key",
			APISecret: "test_api_secret",
			TimeoutS:  30,
			RateLimit: 3,
		},
		Feed: FeedConfig{
			URL:     "wss://stream.data.alpaca.markets/v2/iex",
			Symbols: []string{"AAPL", "MSFT"},
		},
		Tracker: TrackerConfig{
			RefreshIntervalS: 60,
			IOTimeoutS:       30,
			QueueSize:        1024,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:8080"},
			MaxConnections: 1000,
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
		Concurrency: ConcurrencyConfig{
			BroadcastPoolSize:   8,
			BroadcastPoolBuffer: 256,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
		},
	}
}
