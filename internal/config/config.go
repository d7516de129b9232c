// Package config resolves client settings from defaults, the home config file
// and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	DefaultBaseURL  = "http://localhost:5000"
	DefaultTokenKey = "okr_auth_token"
	FileName        = "config.yml"
)

// Config holds client settings.
type Config struct {
	Env            string        `yaml:"env"`
	APIBaseURL     string        `yaml:"api_base_url"`
	EnableFallback bool          `yaml:"enable_fallback"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	SubmitTimeout  time.Duration `yaml:"submit_timeout"`
	RetryBudget    int           `yaml:"retry_budget"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	TokenKey       string        `yaml:"token_key"`
	LogLevel       string        `yaml:"log_level"`
	Notifications  bool          `yaml:"notifications"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Env:            EnvDevelopment,
		EnableFallback: true,
		PollInterval:   30 * time.Second,
		SubmitTimeout:  30 * time.Second,
		RetryBudget:    2,
		RetryDelay:     time.Second,
		TokenKey:       DefaultTokenKey,
		LogLevel:       "warn",
	}
}

// Load reads <home>/config.yml when present and applies environment overrides.
func Load(home string) (Config, error) {
	cfg := Default()
	if home != "" {
		if err := cfg.loadFile(filepath.Join(home, FileName)); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if cfg.RetryBudget < 0 {
		return Config{}, fmt.Errorf("retry_budget must not be negative")
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("OKRDRAFT_ENV"); ok && v != "" {
		c.Env = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup("OKRDRAFT_API_BASE_URL"); ok && v != "" {
		c.APIBaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup("OKRDRAFT_ENABLE_FALLBACK"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse OKRDRAFT_ENABLE_FALLBACK: %w", err)
		}
		c.EnableFallback = b
	}
	if v, ok := lookup("OKRDRAFT_POLL_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse OKRDRAFT_POLL_INTERVAL: %w", err)
		}
		c.PollInterval = d
	}
	if v, ok := lookup("OKRDRAFT_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	return nil
}

// BaseURL is the service URL. Only production honours a configured URL.
func (c Config) BaseURL() string {
	if c.Env == EnvProduction && c.APIBaseURL != "" {
		return strings.TrimRight(c.APIBaseURL, "/")
	}
	return DefaultBaseURL
}

// Level maps LogLevel to a slog level, defaulting to warn.
func (c Config) Level() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// NewLogger returns a text logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.Level()}))
}

// ResolveHome picks the home directory from the flag value, OKRDRAFT_HOME, or
// ~/.okrdraft.
func ResolveHome(flagValue string) (string, error) {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue, nil
	}
	if v := strings.TrimSpace(os.Getenv("OKRDRAFT_HOME")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".okrdraft"), nil
}
