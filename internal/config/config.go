// Package config provides configuration management for the cycle bet engine.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Wallet     WalletConfig     `mapstructure:"wallet" validate:"required"`
	Commission CommissionConfig `mapstructure:"commission" validate:"required"`
	Engine     EngineConfig     `mapstructure:"engine" validate:"required"`
	Metrics    MetricsConfig    `mapstructure:"metrics" validate:"required"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host" validate:"required"`
	Port           int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name           string `mapstructure:"name" validate:"required"`
	User           string `mapstructure:"user" validate:"required"`
	Password       string `mapstructure:"password" validate:"required"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"required,gt=0"`
}

// WalletConfig represents the wallet collaborator API configuration
type WalletConfig struct {
	BaseURL        string  `mapstructure:"base_url" validate:"required,url"`
	APIKey         string  `mapstructure:"api_key" validate:"required"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	MaxRetries     int     `mapstructure:"max_retries" validate:"gte=0"`
	RateLimit      float64 `mapstructure:"rate_limit" validate:"required,gt=0"`
}

// CommissionConfig represents platform commission configuration. The rate is
// strictly configuration; it differs between environments.
type CommissionConfig struct {
	Rate float64 `mapstructure:"rate" validate:"required,gt=0,lte=0.1"`
}

// EngineConfig represents scheduler loop and sweep configuration
type EngineConfig struct {
	TickIntervalSeconds  int `mapstructure:"tick_interval_seconds" validate:"required,gt=0"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" validate:"required,gt=0"`
	MatchTimeoutSeconds  int `mapstructure:"match_timeout_seconds" validate:"required,gt=0"`
	DefaultPauseSeconds  int `mapstructure:"default_pause_seconds" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// MatchTimeout returns the deadline applied to a matched wager
func (c *Config) MatchTimeout() time.Duration {
	return time.Duration(c.Engine.MatchTimeoutSeconds) * time.Second
}

// DefaultCyclePause returns the inter-cycle pause used when a bot profile
// does not carry its own
func (c *Config) DefaultCyclePause() time.Duration {
	return time.Duration(c.Engine.DefaultPauseSeconds) * time.Second
}
