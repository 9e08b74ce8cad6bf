// Package config provides configuration loading for the taskboard server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/baiirun/taskboard/internal/db"
)

// Config represents the complete taskboard configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	// Addr is the listen address (default ":5000")
	Addr string `yaml:"addr"`
	// CORSOrigins lists allowed origins; empty allows any
	CORSOrigins []string `yaml:"cors_origins"`
	// MaxBodyBytes caps request bodies (default 1 MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
	// ShutdownTimeout bounds the graceful drain on SIGINT/SIGTERM
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the store
type DatabaseConfig struct {
	// Driver is "sqlite" or "mysql"
	Driver string `yaml:"driver"`
	// DSN is a file path for sqlite or a go-sql-driver DSN for mysql.
	// Empty sqlite DSN means ~/.taskboard/taskboard.db
	DSN string `yaml:"dsn"`
}

// AuthConfig configures session tokens and passwords
type AuthConfig struct {
	// Secret signs session tokens; at least 16 bytes
	Secret string `yaml:"secret"`
	// TokenTTL is the token lifetime; 0 issues tokens that never expire
	TokenTTL time.Duration `yaml:"token_ttl"`
	// CookieName carries the session token (default "token")
	CookieName string `yaml:"cookie_name"`
	// SecureCookie sets the Secure attribute on the session cookie
	SecureCookie bool `yaml:"secure_cookie"`
	// BcryptCost for new password hashes (0 = bcrypt default)
	BcryptCost int `yaml:"bcrypt_cost"`
}

// LogConfig configures slog output
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

const minSecretLen = 16

// DefaultConfig returns a Config with sensible defaults. Auth.Secret has no
// default and must be supplied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":5000",
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: db.DriverSQLite,
		},
		Auth: AuthConfig{
			TokenTTL:   72 * time.Hour,
			CookieName: "token",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv in
// production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if port, ok := lookup("PORT"); ok && port != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	if v, ok := lookup("TASKBOARD_SECRET"); ok && v != "" {
		c.Auth.Secret = v
	}
	if v, ok := lookup("TASKBOARD_DB_DRIVER"); ok && v != "" {
		c.Database.Driver = v
	}
	if v, ok := lookup("TASKBOARD_DB_DSN"); ok && v != "" {
		c.Database.DSN = v
	}
	if v, ok := lookup("TASKBOARD_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate checks that the configuration is usable for serving
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if len(c.Auth.Secret) < minSecretLen {
		return fmt.Errorf("auth.secret must be at least %d bytes (set TASKBOARD_SECRET)", minSecretLen)
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth.token_ttl must not be negative")
	}
	if c.Auth.CookieName == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ValidateDatabase checks only the database section, for commands that never
// sign tokens.
func (c *Config) ValidateDatabase() error {
	switch c.Database.Driver {
	case db.DriverSQLite:
	case db.DriverMySQL:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for mysql")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", db.DriverSQLite, db.DriverMySQL, c.Database.Driver)
	}
	return nil
}

// DatabaseDSN resolves the DSN, filling in the default sqlite path.
func (c *Config) DatabaseDSN() (string, error) {
	if c.Database.DSN != "" || c.Database.Driver != db.DriverSQLite {
		return c.Database.DSN, nil
	}
	return db.DefaultPath()
}
