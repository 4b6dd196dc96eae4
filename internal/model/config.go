package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Session storage backends.
const (
	SessionBackendKeyring = "keyring"
	SessionBackendSQLite  = "sqlite"
)

// APIConfig holds settings for reaching the mail backend.
type APIConfig struct {
	// BaseURL is the backend root; the client appends /api/v1.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// StorageConfig holds settings for durable client state.
type StorageConfig struct {
	// Path is the SQLite file holding persisted client state.
	Path string `mapstructure:"path" yaml:"path"`

	// SessionBackend selects where the session (and its token) lives:
	// "keyring" or "sqlite".
	SessionBackend string `mapstructure:"session_backend" yaml:"session_backend"`
}

// SyncConfig holds settings for background mail sync.
type SyncConfig struct {
	// IntervalSec is how often the selected account is synced.
	// Zero disables automatic sync.
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
}

// DisplayConfig holds UI preferences.
type DisplayConfig struct {
	Theme    string `mapstructure:"theme" yaml:"theme"`
	PageSize int    `mapstructure:"page_size" yaml:"page_size"`

	// ExportDir is where exported .eml files are written.
	ExportDir string `mapstructure:"export_dir" yaml:"export_dir"`
}

// LogConfig holds logging settings. The TUI owns stdout, so logs go to a file.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// configDir returns ~/.config/mailclient, or the working directory when the
// home directory is unknown.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailclient")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailclient/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
		},
		Storage: StorageConfig{
			Path:           filepath.Join(dir, "state.db"),
			SessionBackend: SessionBackendKeyring,
		},
		Sync: SyncConfig{
			IntervalSec: 300,
		},
		Display: DisplayConfig{
			Theme:     "default",
			PageSize:  50,
			ExportDir: ".",
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "mailclient.log"),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration. The
// MAILCLIENT_API_URL environment variable overrides api.base_url.
func LoadConfig(path string) (*AppConfig, error) {
	defaults := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("api.base_url", defaults.API.BaseURL)
	v.SetDefault("storage.path", defaults.Storage.Path)
	v.SetDefault("storage.session_backend", defaults.Storage.SessionBackend)
	v.SetDefault("sync.interval_sec", defaults.Sync.IntervalSec)
	v.SetDefault("display.theme", defaults.Display.Theme)
	v.SetDefault("display.page_size", defaults.Display.PageSize)
	v.SetDefault("display.export_dir", defaults.Display.ExportDir)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.file", defaults.Log.File)

	if err := v.BindEnv("api.base_url", "MAILCLIENT_API_URL"); err != nil {
		return nil, fmt.Errorf("binding MAILCLIENT_API_URL: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Display.PageSize <= 0 {
		cfg.Display.PageSize = defaults.Display.PageSize
	}
	if cfg.Display.PageSize > 100 {
		// The backend caps list pages at 100.
		cfg.Display.PageSize = 100
	}
	switch cfg.Storage.SessionBackend {
	case SessionBackendKeyring, SessionBackendSQLite:
	default:
		return nil, fmt.Errorf(
			"invalid storage.session_backend %q: want %q or %q",
			cfg.Storage.SessionBackend,
			SessionBackendKeyring, SessionBackendSQLite,
		)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("storage", cfg.Storage)
	v.Set("sync", cfg.Sync)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
