// Package config loads daemon configuration from <dataDir>/config.yaml,
// <dataDir>/.env and AUTOFOCUS_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/autofocus/internal/daemon"
	"github.com/eliteGoblin/focusd/autofocus/internal/infra"
)

// Environment variables read after the config file.
const (
	EnvLogLevel     = "AUTOFOCUS_LOG_LEVEL"
	EnvPollInterval = "AUTOFOCUS_POLL_INTERVAL"
)

// Config is the daemon configuration.
type Config struct {
	PollInterval        time.Duration        `yaml:"poll_interval"`
	MaxTickGap          time.Duration        `yaml:"max_tick_gap"`
	NotificationTimeout time.Duration        `yaml:"notification_timeout"`
	LogLevel            string               `yaml:"log_level"`
	Shortcuts           infra.ShortcutConfig `yaml:"shortcuts"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	orch := daemon.DefaultOrchestratorConfig()
	return Config{
		PollInterval:        orch.PollInterval,
		MaxTickGap:          orch.MaxTickGap,
		NotificationTimeout: orch.NotificationTimeout,
		LogLevel:            "info",
		Shortcuts:           infra.DefaultShortcutConfig(),
	}
}

// Load reads the configuration for paths. Missing files are not an error.
func Load(paths infra.Paths) (Config, error) {
	cfg := Defaults()

	if err := loadFile(paths.ConfigPath, &cfg); err != nil {
		return Config{}, err
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(paths.EnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", paths.EnvPath, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Shortcuts.Toggle == "" {
		cfg.Shortcuts.Toggle = infra.DefaultToggleShortcut
	}
	return cfg, cfg.Validate()
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollInterval, err)
		}
		cfg.PollInterval = d
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.MaxTickGap < c.PollInterval {
		return fmt.Errorf("max_tick_gap (%s) must be at least poll_interval (%s)", c.MaxTickGap, c.PollInterval)
	}
	if c.NotificationTimeout <= 0 {
		return fmt.Errorf("notification_timeout must be positive, got %s", c.NotificationTimeout)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if (c.Shortcuts.Enable == "") != (c.Shortcuts.Disable == "") {
		return errors.New("shortcuts.enable and shortcuts.disable must be set together")
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Orchestrator returns the orchestrator timing configuration.
func (c Config) Orchestrator() daemon.OrchestratorConfig {
	return daemon.OrchestratorConfig{
		PollInterval:        c.PollInterval,
		MaxTickGap:          c.MaxTickGap,
		NotificationTimeout: c.NotificationTimeout,
	}
}
