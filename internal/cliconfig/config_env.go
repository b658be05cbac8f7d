package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "SLICESYNC_"

// ApplyEnvConfig applies configuration from environment variables (SLICESYNC_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("backend", os.Getenv(EnvPrefix+"BACKEND"), &cfg.Backend)
	s.setString("path", os.Getenv(EnvPrefix+"PATH"), &cfg.Path)
	s.setString("origin", os.Getenv(EnvPrefix+"ORIGIN"), &cfg.Origin)
	s.setString("output", os.Getenv(EnvPrefix+"OUTPUT"), &cfg.Output)
	s.setString("metrics-addr", os.Getenv(EnvPrefix+"METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv(EnvPrefix+"LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("poll", os.Getenv(EnvPrefix+"POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("debounce", os.Getenv(EnvPrefix+"DEBOUNCE"), &cfg.Debounce); err != nil {
		return err
	}
	return nil
}
