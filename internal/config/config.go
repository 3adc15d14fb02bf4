package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/scienceol/caffeine/internal/power"
)

const envPrefix = "CAFFEINE_"

type Config struct {
	StateFile      string `yaml:"state_file" env:"STATE_FILE"`
	Backend        string `yaml:"backend" env:"BACKEND"`
	What           string `yaml:"what" env:"WHAT"`
	Who            string `yaml:"who" env:"WHO"`
	Why            string `yaml:"why" env:"WHY"`
	InhibitCommand string `yaml:"inhibit_command" env:"INHIBIT_COMMAND"`
	LogFile        string `yaml:"log_file" env:"LOG_FILE"`
	Verbose        bool   `yaml:"verbose" env:"VERBOSE"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		StateFile: filepath.Join(os.TempDir(), "caffeine-session.json"),
		What:      "idle",
		Who:       "caffeine",
		Why:       "Caffeine session active",
		LogFile:   filepath.Join(os.TempDir(), "caffeine.log"),
	}
}

// Load resolves configuration from flags > env > config file > defaults.
// Empty fields in flags are treated as unset. configPath overrides the
// default file location; an explicitly named file must exist.
func Load(configPath string, flags Config) (*Config, error) {
	cfg := Default()

	// 1. Config file as base
	explicit := configPath != ""
	if !explicit {
		configPath = os.Getenv(envPrefix + "CONFIG")
		explicit = configPath != ""
	}
	if !explicit {
		configPath = defaultConfigPath()
	}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", configPath, err)
			}
		case explicit || !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// 2. Environment variables override config file
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// 3. CLI flags override everything
	override(&cfg.StateFile, flags.StateFile)
	override(&cfg.Backend, flags.Backend)
	override(&cfg.What, flags.What)
	override(&cfg.Who, flags.Who)
	override(&cfg.Why, flags.Why)
	override(&cfg.InhibitCommand, flags.InhibitCommand)
	override(&cfg.LogFile, flags.LogFile)
	if flags.Verbose {
		cfg.Verbose = true
	}

	switch cfg.Backend {
	case "", power.SystemdInhibit, power.Caffeinate, power.ScreenSaver:
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s, %s or %s)",
			cfg.Backend, power.SystemdInhibit, power.Caffeinate, power.ScreenSaver)
	}
	if cfg.StateFile == "" {
		return nil, errors.New("state file path is required")
	}

	// Detached helpers run with a different working directory.
	abs, err := filepath.Abs(cfg.StateFile)
	if err != nil {
		return nil, fmt.Errorf("invalid state file: %w", err)
	}
	cfg.StateFile = abs
	if cfg.LogFile != "" {
		if cfg.LogFile, err = filepath.Abs(cfg.LogFile); err != nil {
			return nil, fmt.Errorf("invalid log file: %w", err)
		}
	}

	return cfg, nil
}

// PowerOptions returns the backend configuration, including the flags
// handed to detached helper processes.
func (c *Config) PowerOptions() power.Options {
	return power.Options{
		Backend:    c.Backend,
		What:       c.What,
		Who:        c.Who,
		Why:        c.Why,
		Command:    c.InhibitCommand,
		HelperArgs: c.HelperArgs(),
	}
}

// HelperArgs renders the resolved configuration as flags, so detached
// helpers see the same store and backend regardless of their environment.
func (c *Config) HelperArgs() []string {
	var args []string
	add := func(flag, value string) {
		if value != "" {
			args = append(args, "--"+flag, value)
		}
	}
	add("state-file", c.StateFile)
	add("backend", c.Backend)
	add("what", c.What)
	add("who", c.Who)
	add("why", c.Why)
	add("inhibit-command", c.InhibitCommand)
	add("log-file", c.LogFile)
	if c.Verbose {
		args = append(args, "--verbose")
	}
	return args
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".caffeine", "config.yaml")
}
