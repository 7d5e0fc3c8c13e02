package model

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultBaseURL is used when neither the config file nor the environment
// names the service host.
const DefaultBaseURL = "http://localhost:8000"

// APIConfig locates the Analysis and Dispatch services.
type APIConfig struct {
	// BaseURL is the root URL both service endpoints hang off.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// TransportDefaults seeds the transport settings at startup. The sender
// password never lives here; it is kept in the system keyring.
type TransportDefaults struct {
	Mode              string `mapstructure:"mode" yaml:"mode"`
	Host              string `mapstructure:"host" yaml:"host"`
	Port              int    `mapstructure:"port" yaml:"port"`
	SenderUser        string `mapstructure:"sender_user" yaml:"sender_user"`
	SenderDisplayName string `mapstructure:"sender_display_name" yaml:"sender_display_name"`

	// RememberPassword stores the sender password in the keyring when the
	// settings form is submitted.
	RememberPassword bool `mapstructure:"remember_password" yaml:"remember_password"`
}

// JournalConfig controls where dispatched batches are recorded.
type JournalConfig struct {
	// Path is a SQLite file path, or ":memory:" to keep history for the
	// current session only.
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls the structured log file.
type LogConfig struct {
	// Path is the log file, or "-" to discard logs.
	Path  string `mapstructure:"path" yaml:"path"`
	Level string `mapstructure:"level" yaml:"level"`
}

// ExportConfig controls where reports and message previews are written.
type ExportConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API       APIConfig         `mapstructure:"api" yaml:"api"`
	Transport TransportDefaults `mapstructure:"transport" yaml:"transport"`
	Journal   JournalConfig     `mapstructure:"journal" yaml:"journal"`
	Log       LogConfig         `mapstructure:"log" yaml:"log"`
	Export    ExportConfig      `mapstructure:"export" yaml:"export"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/subnotify/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "subnotify", "config.yaml")
}

// DefaultLogPath returns ~/.cache/subnotify/subnotify.log, falling back to
// the working directory when no cache directory is available.
func DefaultLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "subnotify.log"
	}
	return filepath.Join(dir, "subnotify", "subnotify.log")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("transport.mode", "mock")
	v.SetDefault("transport.host", "mock")
	v.SetDefault("transport.port", 587)
	v.SetDefault("transport.sender_user", "")
	v.SetDefault("transport.sender_display_name", "Academic Affairs Office")
	v.SetDefault("transport.remember_password", false)
	v.SetDefault("journal.path", ":memory:")
	v.SetDefault("log.path", DefaultLogPath())
	v.SetDefault("log.level", "info")
	v.SetDefault("export.dir", ".")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error. The base URL can be overridden with
// SUBNOTIFY_API_URL or API_URL, and every other key with SUBNOTIFY_<KEY>
// (dots replaced by underscores).
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("subnotify")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api.base_url", "SUBNOTIFY_API_URL", "API_URL"); err != nil {
		return nil, fmt.Errorf("binding api.base_url: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	cfg.Transport.Mode = strings.ToLower(strings.TrimSpace(cfg.Transport.Mode))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the values a session cannot start without.
func (c *AppConfig) Validate() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url must include scheme and host (e.g., http://localhost:8000)")
	}

	switch c.Transport.Mode {
	case "mock", "gmail", "custom":
	default:
		return fmt.Errorf("transport.mode %q must be one of mock, gmail, custom", c.Transport.Mode)
	}

	if c.Transport.Port < 0 {
		return fmt.Errorf("transport.port must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}

	return nil
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
	v.Set("transport", cfg.Transport)
	v.Set("journal", cfg.Journal)
	v.Set("log", cfg.Log)
	v.Set("export", cfg.Export)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
