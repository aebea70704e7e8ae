package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/keepup/internal/constants"
	"github.com/julianstephens/keepup/internal/keyring"
	"github.com/julianstephens/keepup/internal/storage/postgres"
	"github.com/julianstephens/keepup/internal/utils"
)

// Source records where the database connection came from
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceKeyring Source = "keyring"
)

// Config is the typed application configuration. It is loaded once at
// startup and passed explicitly to everything that needs it.
type Config struct {
	Storage  StorageConfig `yaml:"storage"`
	Timezone string        `yaml:"timezone"`
	Log      LogConfig     `yaml:"log"`
	Session  SessionConfig `yaml:"session"`

	// path is the file the config was loaded from
	path string
	// source is where Storage.Connection was resolved from
	source Source
}

// StorageConfig selects and locates the storage backend
type StorageConfig struct {
	Backend string `yaml:"backend"`
	// Path is the SQLite database file
	Path string `yaml:"path,omitempty"`
	// Connection is the PostgreSQL connection string. Passwords belong in the keyring.
	Connection string `yaml:"connection,omitempty"`
}

// LogConfig configures the rotating file logger
type LogConfig struct {
	Debug bool   `yaml:"debug"`
	Level string `yaml:"level,omitempty"`
	JSON  bool   `yaml:"json,omitempty"`
	Dir   string `yaml:"dir,omitempty"`
}

// SessionConfig configures session lifetime
type SessionConfig struct {
	TTL string `yaml:"ttl,omitempty"`
}

// DefaultPath returns the config file location under the XDG config home
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, constants.AppName, constants.DefaultConfigName)
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: constants.BackendSQLite,
			Path:    filepath.Join(xdg.DataHome, constants.AppName, constants.DefaultDBName),
		},
		Log: LogConfig{
			Dir: filepath.Join(xdg.StateHome, constants.AppName, "logs"),
		},
		Session: SessionConfig{
			TTL: constants.DefaultSessionTTL.String(),
		},
		source: SourceDefault,
	}
}

// Load reads the YAML config at path, falling back to defaults when the
// file does not exist, then applies env and keyring overrides.
// An empty path resolves to KEEPUP_CONFIG or DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(constants.EnvConfigPath)
	}
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if cfg.Storage.Connection != "" {
			cfg.source = SourceFile
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.applyKeyring(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if conn := os.Getenv(constants.EnvDBConnection); conn != "" {
		c.Storage.Connection = conn
		c.Storage.Backend = constants.BackendPostgres
		c.source = SourceEnv
	}
	if tz := os.Getenv(constants.EnvTimezone); tz != "" {
		c.Timezone = tz
	}
}

// applyKeyring fills in the PostgreSQL connection string from the OS
// keyring when neither the file nor the env provided one.
func (c *Config) applyKeyring() error {
	if c.Storage.Backend != constants.BackendPostgres || c.Storage.Connection != "" {
		return nil
	}
	conn, err := keyring.GetConnectionString()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to read connection string from keyring: %w", err)
	}
	c.Storage.Connection = conn
	c.source = SourceKeyring
	return nil
}

// Validate checks the configuration and fails fast on anything unusable
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case constants.BackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite backend")
		}
	case constants.BackendPostgres:
		if c.Storage.Connection == "" {
			return fmt.Errorf("no PostgreSQL connection configured (set %s, storage.connection, or run 'keepup init --connection')", constants.EnvDBConnection)
		}
		// Only keyring-held connection strings may carry a password
		if c.source != SourceKeyring {
			if _, err := postgres.ValidateConnString(c.Storage.Connection); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("invalid storage backend: %q (valid: %s, %s)", c.Storage.Backend, constants.BackendSQLite, constants.BackendPostgres)
	}

	if _, err := utils.LoadLocation(c.Timezone); err != nil {
		return err
	}

	if _, err := c.parseTTL(); err != nil {
		return err
	}

	return nil
}

// Save writes the configuration to its path as YAML
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *c
	// Keyring and env values are never written back to disk
	if c.source == SourceKeyring || c.source == SourceEnv {
		out.Storage.Connection = ""
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the file the config was loaded from
func (c *Config) Path() string {
	return c.path
}

// Source returns where the database connection was resolved from
func (c *Config) Source() Source {
	return c.source
}

// Location returns the configured timezone, or the system local zone
func (c *Config) Location() *time.Location {
	loc, err := utils.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SessionTTL returns the session lifetime
func (c *Config) SessionTTL() time.Duration {
	d, err := c.parseTTL()
	if err != nil {
		return constants.DefaultSessionTTL
	}
	return d
}

func (c *Config) parseTTL() (time.Duration, error) {
	if c.Session.TTL == "" {
		return constants.DefaultSessionTTL, nil
	}
	d, err := time.ParseDuration(c.Session.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid session.ttl %q: %w", c.Session.TTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("session.ttl must be positive, got %s", c.Session.TTL)
	}
	return d, nil
}
