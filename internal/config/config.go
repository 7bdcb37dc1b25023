package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/alvmarrod/follow-weaver/internal/fetcher"
	"github.com/alvmarrod/follow-weaver/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// AppName names the config and data directories
const AppName = "follow-weaver"

// EnvPrefix prefixes environment overrides, e.g. WEAVER_API_TOKEN
const EnvPrefix = "WEAVER"

// Config holds all runtime configuration parameters
type Config struct {
	Seeds             []string          `json:"seeds" mapstructure:"seeds"`
	Aliases           map[string]string `json:"aliases" mapstructure:"aliases"`
	MaxDepth          int               `json:"max_depth" mapstructure:"max_depth"`
	CheckpointEvery   int               `json:"checkpoint_every" mapstructure:"checkpoint_every"`
	MaxFollowing      int               `json:"max_following" mapstructure:"max_following"`
	APIBaseURL        string            `json:"api_base_url" mapstructure:"api_base_url"`
	APIToken          string            `json:"api_token" mapstructure:"api_token"`
	UserAgent         string            `json:"user_agent" mapstructure:"user_agent"`
	RequestTimeoutMs  int               `json:"request_timeout_ms" mapstructure:"request_timeout_ms"`
	RequestsPerWindow int               `json:"requests_per_window" mapstructure:"requests_per_window"`
	WindowSeconds     int               `json:"window_seconds" mapstructure:"window_seconds"`
	BackoffPolicy     string            `json:"backoff_policy" mapstructure:"backoff_policy"`
	BackoffBaseMs     int               `json:"backoff_base_ms" mapstructure:"backoff_base_ms"`
	BackoffMaxMs      int               `json:"backoff_max_ms" mapstructure:"backoff_max_ms"`
	StorageBackend    string            `json:"storage_backend" mapstructure:"storage_backend"`
	DataDir           string            `json:"data_dir" mapstructure:"data_dir"`
	DBPath            string            `json:"db_path" mapstructure:"db_path"`
	MetricsPath       string            `json:"metrics_path" mapstructure:"metrics_path"`
	MetricsAddr       string            `json:"metrics_addr" mapstructure:"metrics_addr"`
	SummaryPath       string            `json:"summary_path" mapstructure:"summary_path"`
	LogLevel          string            `json:"log_level" mapstructure:"log_level"`
}

// LoadConfig reads configuration from a JSON file with WEAVER_* environment
// overrides. An empty path searches ./config.json and the XDG config
// directory; finding nothing there yields the defaults. An explicit path must
// exist.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logrus.Debug("No config file found, using defaults")
	} else {
		logrus.Debugf("Using config file %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Aliases == nil {
		cfg.Aliases = map[string]string{}
	}

	return &cfg, nil
}

// setDefaults registers a default for every key so env overrides reach Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("seeds", []string{})
	v.SetDefault("aliases", map[string]string{})
	v.SetDefault("max_depth", 2)
	v.SetDefault("checkpoint_every", 15)
	v.SetDefault("max_following", 0)
	v.SetDefault("api_base_url", "")
	v.SetDefault("api_token", "")
	v.SetDefault("user_agent", AppName)
	v.SetDefault("request_timeout_ms", 10000)
	v.SetDefault("requests_per_window", 15)
	v.SetDefault("window_seconds", 900)
	v.SetDefault("backoff_policy", fetcher.PolicyExponential)
	v.SetDefault("backoff_base_ms", 60000)
	v.SetDefault("backoff_max_ms", 900000)
	v.SetDefault("storage_backend", storage.KindSQLite)
	v.SetDefault("data_dir", filepath.Join(xdg.DataHome, AppName))
	v.SetDefault("db_path", "")
	v.SetDefault("metrics_path", "metrics.log")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("summary_path", "")
	v.SetDefault("log_level", "info")
}

// Validate checks the values every command depends on
func (c *Config) Validate() error {
	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}
	if c.CheckpointEvery < 1 {
		return ErrInvalidCheckpointEvery
	}
	if c.MaxFollowing < 0 {
		return ErrInvalidMaxFollowing
	}
	if c.StorageBackend != storage.KindSQLite && c.StorageBackend != storage.KindBadger {
		return fmt.Errorf("%w: got %q", ErrUnknownBackend, c.StorageBackend)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return nil
}

// ValidateCrawl additionally checks what talking to the API needs
func (c *Config) ValidateCrawl() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIBaseURL == "" {
		return ErrMissingAPIURL
	}
	if c.APIToken == "" {
		return ErrMissingToken
	}
	if c.RequestTimeoutMs < 1000 {
		return ErrInvalidTimeout
	}
	if c.RequestsPerWindow < 0 || (c.RequestsPerWindow > 0 && c.WindowSeconds <= 0) {
		return ErrInvalidBudget
	}
	if c.BackoffBaseMs <= 0 || c.BackoffMaxMs < c.BackoffBaseMs {
		return ErrInvalidBackoff
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// StoragePath returns where the checkpoint backend lives
func (c *Config) StoragePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	if c.StorageBackend == storage.KindBadger {
		return filepath.Join(c.DataDir, "checkpoint.badger")
	}
	return filepath.Join(c.DataDir, "crawl.db")
}

// RequestTimeout returns the per-request timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// Budget returns the fetcher request budget
func (c *Config) Budget() fetcher.Config {
	return fetcher.Config{
		RequestsPerWindow: c.RequestsPerWindow,
		Window:            time.Duration(c.WindowSeconds) * time.Second,
	}
}

// Policy builds the configured backoff policy
func (c *Config) Policy() (fetcher.Policy, error) {
	return fetcher.NewPolicy(c.BackoffPolicy,
		time.Duration(c.BackoffBaseMs)*time.Millisecond,
		time.Duration(c.BackoffMaxMs)*time.Millisecond)
}
