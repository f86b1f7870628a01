// Package config loads the application configuration from a YAML
// file via Viper, with sensible defaults for every key.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `mapstructure:"addr" yaml:"addr"`

	// MaxBodyBytes caps request body size.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	// Path is the SQLite database file location.
	Path string `mapstructure:"path" yaml:"path"`
}

// JobsConfig holds the background job cadences.
type JobsConfig struct {
	RoutinaryIntervalSec int `mapstructure:"routinary_interval_sec" yaml:"routinary_interval_sec"`
	OverdueIntervalSec   int `mapstructure:"overdue_interval_sec" yaml:"overdue_interval_sec"`
}

// RateLimitConfig holds the password-reset quota.
type RateLimitConfig struct {
	PasswordResetMax       int `mapstructure:"password_reset_max" yaml:"password_reset_max"`
	PasswordResetWindowSec int `mapstructure:"password_reset_window_sec" yaml:"password_reset_window_sec"`
}

// SMTPConfig holds outbound mail settings. An empty Host disables
// mail delivery.
type SMTPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	From     string `mapstructure:"from" yaml:"from"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// SessionConfig holds login session settings.
type SessionConfig struct {
	TTLHours int `mapstructure:"ttl_hours" yaml:"ttl_hours"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Jobs      JobsConfig      `mapstructure:"jobs" yaml:"jobs"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	SMTP      SMTPConfig      `mapstructure:"smtp" yaml:"smtp"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
}

// RoutinaryInterval returns the recurring-task job cadence.
func (c *AppConfig) RoutinaryInterval() time.Duration {
	return time.Duration(c.Jobs.RoutinaryIntervalSec) * time.Second
}

// OverdueInterval returns the overdue sweep cadence.
func (c *AppConfig) OverdueInterval() time.Duration {
	return time.Duration(c.Jobs.OverdueIntervalSec) * time.Second
}

// PasswordResetWindow returns the rate-limit window for reset requests.
func (c *AppConfig) PasswordResetWindow() time.Duration {
	return time.Duration(c.RateLimit.PasswordResetWindowSec) * time.Second
}

// SessionTTL returns the login session lifetime.
func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}

// DefaultConfigPath returns the default path for the configuration
// file, located at ~/.config/workboard/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "workboard", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server:   ServerConfig{Addr: ":8080", MaxBodyBytes: 1 << 20},
		Database: DatabaseConfig{Path: "workboard.db"},
		Jobs: JobsConfig{
			RoutinaryIntervalSec: 3600,
			OverdueIntervalSec:   3600,
		},
		RateLimit: RateLimitConfig{
			PasswordResetMax:       1,
			PasswordResetWindowSec: 24 * 3600,
		},
		SMTP:    SMTPConfig{Port: 587},
		Session: SessionConfig{TTLHours: 24 * 7},
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. If the file does not exist, it returns a default
// configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("database.path", "workboard.db")
	v.SetDefault("jobs.routinary_interval_sec", 3600)
	v.SetDefault("jobs.overdue_interval_sec", 3600)
	v.SetDefault("rate_limit.password_reset_max", 1)
	v.SetDefault("rate_limit.password_reset_window_sec", 24*3600)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("session.ttl_hours", 24*7)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
