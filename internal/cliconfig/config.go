package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendFS     = "fs"
)

// Output formats.
const (
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// Config holds CLI configuration for slicesync.
type Config struct {
	Backend string
	Path    string
	Origin  string

	PollInterval time.Duration
	Debounce     time.Duration

	Output      string
	MetricsAddr string
	LogLevel    string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendMemory,
		PollInterval: 250 * time.Millisecond,
		Debounce:     20 * time.Millisecond,
		Output:       OutputJSON,
		LogLevel:     "info",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	c.Backend = strings.ToLower(c.Backend)
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Path == "" {
			c.Path = filepath.Join(DefaultDataDir(), "slicesync.db")
		}
	case BackendFS:
		if c.Path == "" {
			c.Path = filepath.Join(DefaultDataDir(), "docs")
		}
	default:
		return fmt.Errorf("unknown backend %q (want memory, sqlite or fs)", c.Backend)
	}

	c.Output = strings.ToLower(c.Output)
	if c.Output != OutputJSON && c.Output != OutputYAML {
		return fmt.Errorf("unknown output %q (want json or yaml)", c.Output)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive")
	}

	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse log level: %w", err)
	}
	return lvl, nil
}

// DefaultDataDir returns ~/.slicesync, or the working directory if the
// home directory is unknown.
func DefaultDataDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".slicesync")
	}
	return "."
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}
