package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// UserIDEnv names the environment variable that overrides [IdentityConfig.UserID].
const UserIDEnv = "FINPORT_USER_ID"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Identity IdentityConfig `toml:"identity"`
	Import   ImportConfig   `toml:"import"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IdentityConfig names the user that owns imported records when running locally.
type IdentityConfig struct {
	UserID string `toml:"user_id"`
}

// ImportConfig controls batch import behavior.
type ImportConfig struct {
	BatchSize        int     `toml:"batch_size"`
	Currency         string  `toml:"currency"`
	SourceLabel      string  `toml:"source_label"`
	BatchesPerSecond float64 `toml:"batches_per_second"`
	StaleAfter       string  `toml:"stale_after"`
}

// StaleAfterDuration parses [ImportConfig.StaleAfter], falling back to one hour when unset.
func (c ImportConfig) StaleAfterDuration() (time.Duration, error) {
	if strings.TrimSpace(c.StaleAfter) == "" {
		return time.Hour, nil
	}
	d, err := time.ParseDuration(c.StaleAfter)
	if err != nil {
		return 0, fmt.Errorf("%w: stale_after %q: %v", ErrInvalidConfig, c.StaleAfter, err)
	}
	return d, nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks values that would otherwise surface as confusing runtime failures.
func (c *Config) Validate() error {
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("%w: import.batch_size must be positive, got %d", ErrInvalidConfig, c.Import.BatchSize)
	}
	if c.Import.BatchesPerSecond < 0 {
		return fmt.Errorf("%w: import.batches_per_second must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Import.StaleAfterDuration(); err != nil {
		return err
	}
	return nil
}

// ResolveUserID returns the user id from the environment override or the config file.
func (c *Config) ResolveUserID() string {
	if v := strings.TrimSpace(os.Getenv(UserIDEnv)); v != "" {
		return v
	}
	return strings.TrimSpace(c.Identity.UserID)
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
