package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration. Everything here is
// fixed at process start; requests can only pick a timeout within the
// configured maximum and a tier from the closed enumeration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the serving-surface configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SandboxConfig holds the execution-engine limits
type SandboxConfig struct {
	MaxTimeoutSec     int    `mapstructure:"max_timeout_sec"`
	DefaultTimeoutSec int    `mapstructure:"default_timeout_sec"`
	GracePeriodMS     int    `mapstructure:"grace_period_ms"`
	OutputCapacityKB  int    `mapstructure:"output_capacity_kb"`
	MaxConcurrent     int    `mapstructure:"max_concurrent"`
	MaxSteps          uint64 `mapstructure:"max_steps"`
	DefaultTier       string `mapstructure:"default_tier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.transport", "stdio")
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("sandbox.max_timeout_sec", 30)
	viper.SetDefault("sandbox.default_timeout_sec", 10)
	viper.SetDefault("sandbox.grace_period_ms", 500)
	viper.SetDefault("sandbox.output_capacity_kb", 1024)
	viper.SetDefault("sandbox.max_concurrent", 8)
	viper.SetDefault("sandbox.max_steps", 50_000_000)
	viper.SetDefault("sandbox.default_tier", "minimal")
	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Sandbox.MaxTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.max_timeout_sec must be positive, got: %d", c.Sandbox.MaxTimeoutSec)
	}

	if c.Sandbox.DefaultTimeoutSec <= 0 || c.Sandbox.DefaultTimeoutSec > c.Sandbox.MaxTimeoutSec {
		return fmt.Errorf("sandbox.default_timeout_sec must be in (0, %d], got: %d",
			c.Sandbox.MaxTimeoutSec, c.Sandbox.DefaultTimeoutSec)
	}

	if c.Sandbox.GracePeriodMS <= 0 {
		return fmt.Errorf("sandbox.grace_period_ms must be positive, got: %d", c.Sandbox.GracePeriodMS)
	}

	if c.Sandbox.OutputCapacityKB <= 0 {
		return fmt.Errorf("sandbox.output_capacity_kb must be positive, got: %d", c.Sandbox.OutputCapacityKB)
	}

	if c.Sandbox.MaxConcurrent <= 0 {
		return fmt.Errorf("sandbox.max_concurrent must be positive, got: %d", c.Sandbox.MaxConcurrent)
	}

	supportedTiers := map[string]bool{
		"minimal":  true,
		"analysis": true,
	}
	if !supportedTiers[c.Sandbox.DefaultTier] {
		return fmt.Errorf("unsupported sandbox.default_tier: %s", c.Sandbox.DefaultTier)
	}

	return nil
}

// MaxTimeout returns the platform timeout ceiling as a duration
func (c *Config) MaxTimeout() time.Duration {
	return time.Duration(c.Sandbox.MaxTimeoutSec) * time.Second
}

// DefaultTimeout returns the timeout applied when a request omits one
func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.Sandbox.DefaultTimeoutSec) * time.Second
}

// GracePeriod returns the forced-termination grace period as a duration
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Sandbox.GracePeriodMS) * time.Millisecond
}

// OutputCapacity returns the per-channel capture limit in bytes
func (c *Config) OutputCapacity() int {
	return c.Sandbox.OutputCapacityKB * 1024
}
