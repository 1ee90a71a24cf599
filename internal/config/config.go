package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvDBPath      = "STRICTFOCUS_DB_PATH"
	EnvLegacyPath  = "STRICTFOCUS_LEGACY_PATH"
	EnvLogLevel    = "STRICTFOCUS_LOG_LEVEL"
	EnvLogEncoding = "STRICTFOCUS_LOG_ENCODING"
	EnvLogPath     = "STRICTFOCUS_LOG_PATH"
	EnvTimezone    = "STRICTFOCUS_TIMEZONE"
)

// Config holds the application configuration
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Legacy   LegacyConfig   `toml:"legacy"`
	Log      LogConfig      `toml:"log"`
	Streaks  StreaksConfig  `toml:"streaks"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LegacyConfig points at the key-value file used before the SQLite store.
// An empty path disables the import.
type LegacyConfig struct {
	Path string `toml:"path"`
}

type LogConfig struct {
	Level    string `toml:"level"`
	Encoding string `toml:"encoding"`
	Path     string `toml:"path"`
}

type StreaksConfig struct {
	// Timezone is an IANA name whose midnights separate streak days.
	// Empty means the system local zone.
	Timezone string `toml:"timezone"`
}

func baseDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "strictfocus")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "strictfocus")
}

// Default returns the default configuration
func Default() *Config {
	dir := baseDir()
	return &Config{
		Database: DatabaseConfig{Path: filepath.Join(dir, "strictfocus.db")},
		Legacy:   LegacyConfig{Path: filepath.Join(dir, "legacy.db")},
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
			Path:     filepath.Join(dir, "strictfocus.log"),
		},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	return filepath.Join(baseDir(), "config.toml")
}

// Load loads configuration from the standard location
func Load() (*Config, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom layers defaults, the TOML file at configPath (if present) and
// environment overrides, in that order. A .env file in the working directory
// is read into the environment first.
func LoadFrom(configPath string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	_ = godotenv.Load(".env")
	cfg.applyEnv()

	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Legacy.Path = expandPath(cfg.Legacy.Path)
	cfg.Log.Path = expandPath(cfg.Log.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.Path = getString(EnvDBPath, c.Database.Path)
	c.Legacy.Path = getString(EnvLegacyPath, c.Legacy.Path)
	c.Log.Level = getString(EnvLogLevel, c.Log.Level)
	c.Log.Encoding = getString(EnvLogEncoding, c.Log.Encoding)
	c.Log.Path = getString(EnvLogPath, c.Log.Path)
	c.Streaks.Timezone = getString(EnvTimezone, c.Streaks.Timezone)
}

// Validate checks the values that cannot be repaired with a default.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.encoding must be json or console, got %q", c.Log.Encoding)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the streak timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Streaks.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Streaks.Timezone)
	if err != nil {
		return nil, fmt.Errorf("streaks.timezone: %w", err)
	}
	return loc, nil
}

// Save saves the configuration to the standard location
func (c *Config) Save() error {
	return c.SaveTo(DefaultPath())
}

// SaveTo saves the configuration to a specific path
func (c *Config) SaveTo(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
