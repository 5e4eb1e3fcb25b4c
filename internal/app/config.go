package app

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"groupseal/internal/store"
)

// EnvPrefix prefixes the environment variables read by LoadConfig.
const EnvPrefix = "GROUPSEAL"

// Config holds runtime wiring options for building the app.
type Config struct {
	Home         string        `mapstructure:"home"`          // state directory, e.g. $HOME/.groupseal
	UserID       string        `mapstructure:"user"`          // local user id
	DirectoryURL string        `mapstructure:"directory_url"` // empty selects the in-process directory
	Passphrase   string        `mapstructure:"passphrase"`    // unlocks the sealed key store
	LogLevel     string        `mapstructure:"log_level"`
	LogFormat    string        `mapstructure:"log_format"`
	BatchWindow  time.Duration `mapstructure:"batch_window"` // public key lookup coalescing window
	CacheSize    int           `mapstructure:"cache_size"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`

	HTTP         *http.Client           `mapstructure:"-"` // optional; built from HTTPTimeout when nil
	KeyStoreOpts []store.KeyStoreOption `mapstructure:"-"`
}

// SetDefaults installs the default value of every key.
func SetDefaults(v *viper.Viper, home string) {
	v.SetDefault("home", home)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("batch_window", "10ms")
	v.SetDefault("cache_size", 5000)
	v.SetDefault("http_timeout", "10s")
}

// LoadConfig reads groupseal.yaml from the home directory if present, then
// environment variables, on top of v's defaults and bound flags.
func LoadConfig(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("groupseal")
	v.SetConfigType("yaml")
	if home := v.GetString("home"); home != "" {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the fields every command needs.
func (c Config) Validate() error {
	if c.Home == "" {
		return errors.New("home is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("user is required (use --user or %s_USER)", EnvPrefix)
	}
	if c.UserID != filepath.Base(c.UserID) || strings.HasPrefix(c.UserID, ".") {
		return fmt.Errorf("invalid user id %q", c.UserID)
	}
	if c.BatchWindow < 0 {
		return errors.New("batch_window must not be negative")
	}
	return nil
}

// StatePath returns the per-user key/value state file.
func (c Config) StatePath() string { return filepath.Join(c.Home, c.UserID, "state.json") }

// LocalDirectoryPath returns the registry file used without a directory URL.
func (c Config) LocalDirectoryPath() string { return filepath.Join(c.Home, "directory.json") }
