// Package config loads the server configuration using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gabrielmiguelok/applyform/pkg/core"
	"github.com/gabrielmiguelok/applyform/pkg/logging"
)

// DefaultPath is the project-local config file looked up when none is given.
const DefaultPath = "applyform.yml"

// EnvPrefix prefixes every environment override, e.g. APPLYFORM_ADDRESS.
const EnvPrefix = "APPLYFORM"

var (
	ErrInvalid = errors.New("invalid configuration")
	ErrExists  = errors.New("config file already exists")
)

// Config holds all configuration values of the server.
type Config struct {
	Address  string `mapstructure:"address" yaml:"address"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" yaml:"log_json"`

	// PhoneRegion is the region assumed for numbers without a country code.
	PhoneRegion string `mapstructure:"phone_region" yaml:"phone_region"`
	// TimeZone pre-fills the time zone field. Empty uses the server's zone.
	TimeZone string `mapstructure:"time_zone" yaml:"time_zone"`

	// WebhookURL receives submitted applications. Empty only logs them.
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`

	LookupsEnabled bool          `mapstructure:"lookups_enabled" yaml:"lookups_enabled"`
	LookupTimeout  time.Duration `mapstructure:"lookup_timeout" yaml:"lookup_timeout"`

	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	UploadRate     int   `mapstructure:"upload_rate" yaml:"upload_rate"`

	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	Codec          string   `mapstructure:"codec" yaml:"codec"`
	MaxSessions    int      `mapstructure:"max_sessions" yaml:"max_sessions"`
	// MaxConnsPerClient caps the live connections one client IP may hold.
	MaxConnsPerClient int `mapstructure:"max_conns_per_client" yaml:"max_conns_per_client"`

	SessionIdle     time.Duration `mapstructure:"session_idle" yaml:"session_idle"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	t := core.DefaultTimeoutConfig()
	return Config{
		Address:           ":8080",
		LogLevel:          "info",
		PhoneRegion:       "NG",
		LookupsEnabled:    true,
		LookupTimeout:     3 * time.Second,
		MaxUploadBytes:    25 << 20,
		UploadRate:        2,
		AllowedOrigins:    []string{},
		Codec:             "json",
		MaxSessions:       10000,
		MaxConnsPerClient: 20,
		SessionIdle:       t.SessionIdle,
		ShutdownTimeout:   t.GracefulShutdown,
	}
}

// Load resolves the configuration with precedence
// flags > env > config file > defaults.
// An empty path uses DefaultPath when that file exists. Flags are matched by
// name with dashes, e.g. --log-level for log_level.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	def := Default()
	for key, value := range settings(def) {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path == "" && fileExists(DefaultPath) {
		path = DefaultPath
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if flags != nil {
		for key := range settings(def) {
			if f := flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", f.Name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// settings flattens c into viper keys through its yaml form, so the key set
// always matches the struct tags.
func settings(c Config) map[string]any {
	data, err := yaml.Marshal(c)
	if err != nil {
		panic(err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: address is empty", ErrInvalid)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	switch c.Codec {
	case "json", "msgpack":
	default:
		return fmt.Errorf("%w: codec must be json or msgpack, got %q", ErrInvalid, c.Codec)
	}
	if c.TimeZone != "" {
		if _, err := time.LoadLocation(c.TimeZone); err != nil {
			return fmt.Errorf("%w: time_zone: %v", ErrInvalid, err)
		}
	}
	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: webhook_url must be an http(s) URL", ErrInvalid)
		}
	}
	if c.LookupTimeout <= 0 || c.SessionIdle <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: durations must be positive", ErrInvalid)
	}
	if c.MaxUploadBytes <= 0 || c.MaxSessions <= 0 || c.UploadRate <= 0 || c.MaxConnsPerClient <= 0 {
		return fmt.Errorf("%w: limits must be positive", ErrInvalid)
	}
	return nil
}

// Timeouts returns the live session timeouts with this config applied.
func (c Config) Timeouts() core.TimeoutConfig {
	t := core.DefaultTimeoutConfig()
	t.SessionIdle = c.SessionIdle
	t.GracefulShutdown = c.ShutdownTimeout
	return t
}

// Zone returns the configured time zone, or the server's local zone name.
func (c Config) Zone() string {
	if c.TimeZone != "" {
		return c.TimeZone
	}
	if name := time.Local.String(); name != "Local" {
		return name
	}
	return "UTC"
}

// Write stores cfg as YAML at path. It refuses to replace an existing file
// unless force is set.
func Write(path string, cfg Config, force bool) error {
	if !force && fileExists(path) {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
