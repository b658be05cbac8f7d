package cliconfig

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"SLICESYNC_BACKEND":       "sqlite",
				"SLICESYNC_PATH":          "/env/docs.db",
				"SLICESYNC_ORIGIN":        "env-origin",
				"SLICESYNC_POLL_INTERVAL": "1s",
				"SLICESYNC_DEBOUNCE":      "50ms",
				"SLICESYNC_OUTPUT":        "yaml",
				"SLICESYNC_METRICS_ADDR":  ":9100",
				"SLICESYNC_LOG_LEVEL":     "debug",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Backend:      "sqlite",
				Path:         "/env/docs.db",
				Origin:       "env-origin",
				PollInterval: time.Second,
				Debounce:     50 * time.Millisecond,
				Output:       "yaml",
				MetricsAddr:  ":9100",
				LogLevel:     "debug",
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"SLICESYNC_BACKEND": "fs",
				"SLICESYNC_ORIGIN":  "env-origin",
			},
			changed: map[string]bool{"backend": true},
			initial: Config{Backend: "sqlite"},
			expected: Config{
				Backend: "sqlite",
				Origin:  "env-origin",
			},
		},
		{
			name: "returns error for invalid duration",
			envVars: map[string]string{
				"SLICESYNC_POLL_INTERVAL": "not-a-duration",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:     "leaves config alone without env",
			changed:  map[string]bool{},
			initial:  DefaultConfig(),
			expected: DefaultConfig(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.expected, cfg); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Integration test: precedence order (CLI > Env > File)
func TestConfigPrecedence(t *testing.T) {
	fileConf := FileConfig{
		Backend:  "fs",
		Path:     "/file/docs",
		Output:   "yaml",
		LogLevel: "warn",
	}

	t.Setenv("SLICESYNC_PATH", "/env/docs")
	t.Setenv("SLICESYNC_LOG_LEVEL", "debug")
	t.Setenv("SLICESYNC_BACKEND", "sqlite")

	// Simulate CLI flags
	changed := map[string]bool{
		"backend": true,
	}
	cfg := Config{
		Backend: "memory", // CLI wins
	}

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.Backend != "memory" {
		t.Errorf("Backend = %v, want memory (CLI should win)", cfg.Backend)
	}
	if cfg.Path != "/env/docs" {
		t.Errorf("Path = %v, want /env/docs (env should override file)", cfg.Path)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug (env should override file)", cfg.LogLevel)
	}
	if cfg.Output != "yaml" {
		t.Errorf("Output = %v, want yaml (file should set)", cfg.Output)
	}
}
