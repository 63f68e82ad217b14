// Package config loads todosync settings from a TOML file and TODOSYNC_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TODOSYNC_REMOTE_URL.
const EnvPrefix = "TODOSYNC"

// FileName is the config file inside the home directory.
const FileName = "config.toml"

// Config is the full todosync configuration.
type Config struct {
	// DataDir holds the local database (default: the home directory)
	DataDir string `toml:"data_dir" mapstructure:"data_dir"`

	Remote    RemoteConfig    `toml:"remote" mapstructure:"remote"`
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
	Dashboard DashboardConfig `toml:"dashboard" mapstructure:"dashboard"`
	Watch     WatchConfig     `toml:"watch" mapstructure:"watch"`
	Log       LogConfig       `toml:"log" mapstructure:"log"`
}

// RemoteConfig configures the remote document store client.
type RemoteConfig struct {
	// URL is the endpoint prefix, e.g. https://example.net/api/
	URL      string        `toml:"url" mapstructure:"url"`
	Debounce time.Duration `toml:"debounce" mapstructure:"debounce"`
}

// ServerConfig configures `todosync serve`.
type ServerConfig struct {
	Addr         string `toml:"addr" mapstructure:"addr"`
	Database     string `toml:"database" mapstructure:"database"`
	MagicKey     string `toml:"magic_key" mapstructure:"magic_key"`
	MagicKeyHash string `toml:"magic_key_hash" mapstructure:"magic_key_hash"`
}

// DashboardConfig configures the status dashboard.
type DashboardConfig struct {
	Port int `toml:"port" mapstructure:"port"`
}

// WatchConfig configures the import directory watcher.
type WatchConfig struct {
	// ImportDir is watched by `todosync run`; empty disables the watcher
	ImportDir string `toml:"import_dir" mapstructure:"import_dir"`
}

// LogConfig configures log output.
type LogConfig struct {
	// File enables rotating file output; empty logs to stderr
	File      string `toml:"file" mapstructure:"file"`
	MaxSizeMB int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
}

// Home returns $TODOSYNC_HOME, or ~/.todosync.
func Home() string {
	if h := os.Getenv(EnvPrefix + "_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".todosync"
	}
	return filepath.Join(home, ".todosync")
}

// DefaultPath returns the config file path inside Home.
func DefaultPath() string {
	return filepath.Join(Home(), FileName)
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		DataDir: Home(),
		Remote: RemoteConfig{
			Debounce: 500 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr:     ":3000",
			Database: filepath.Join(Home(), "server.db"),
		},
		Dashboard: DashboardConfig{
			Port: 8080,
		},
		Log: LogConfig{
			MaxSizeMB: 10,
		},
	}
}

// DatabasePath is the local store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "todosync.db")
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir cannot be empty")
	}
	if c.Remote.Debounce < 0 {
		return fmt.Errorf("remote.debounce cannot be negative (got %s)", c.Remote.Debounce)
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port out of range (got %d)", c.Dashboard.Port)
	}
	return nil
}

// Load reads path over the defaults and applies environment overrides. An
// empty path means DefaultPath; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	v := viper.New()
	setDefaults(v, cfg)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if explicit || !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides apply to keys
// absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("remote.url", cfg.Remote.URL)
	v.SetDefault("remote.debounce", cfg.Remote.Debounce)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.database", cfg.Server.Database)
	v.SetDefault("server.magic_key", cfg.Server.MagicKey)
	v.SetDefault("server.magic_key_hash", cfg.Server.MagicKeyHash)
	v.SetDefault("dashboard.port", cfg.Dashboard.Port)
	v.SetDefault("watch.import_dir", cfg.Watch.ImportDir)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.max_size_mb", cfg.Log.MaxSizeMB)
}

// fileConfig mirrors Config with durations as text, the form written to disk.
type fileConfig struct {
	DataDir string `toml:"data_dir"`
	Remote  struct {
		URL      string `toml:"url"`
		Debounce string `toml:"debounce"`
	} `toml:"remote"`
	Server    ServerConfig    `toml:"server"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Watch     WatchConfig     `toml:"watch"`
	Log       LogConfig       `toml:"log"`
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := DefaultConfig()
	var out fileConfig
	out.DataDir = cfg.DataDir
	out.Remote.URL = cfg.Remote.URL
	out.Remote.Debounce = cfg.Remote.Debounce.String()
	out.Server = cfg.Server
	out.Dashboard = cfg.Dashboard
	out.Watch = cfg.Watch
	out.Log = cfg.Log

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(out); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
