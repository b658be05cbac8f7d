package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestApplyFileConfig(t *testing.T) {
	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Backend:      "fs",
				Path:         "/data/docs",
				Origin:       "laptop",
				PollInterval: "2s",
				Debounce:     "10ms",
				Output:       "yaml",
				MetricsAddr:  "127.0.0.1:9100",
				LogLevel:     "warn",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Backend:      "fs",
				Path:         "/data/docs",
				Origin:       "laptop",
				PollInterval: 2 * time.Second,
				Debounce:     10 * time.Millisecond,
				Output:       "yaml",
				MetricsAddr:  "127.0.0.1:9100",
				LogLevel:     "warn",
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Backend: "fs",
				Path:    "/config/docs",
			},
			changed: map[string]bool{"path": true},
			initial: Config{
				Backend: "memory",
				Path:    "/flag/docs",
			},
			expected: Config{
				Backend: "fs",
				Path:    "/flag/docs", // unchanged because flag was set
			},
		},
		{
			name: "empty values keep defaults",
			fileConfig: FileConfig{
				Origin: "only-origin",
			},
			changed: map[string]bool{},
			initial: DefaultConfig(),
			expected: func() Config {
				c := DefaultConfig()
				c.Origin = "only-origin"
				return c
			}(),
		},
		{
			name: "returns error for invalid poll interval",
			fileConfig: FileConfig{
				PollInterval: "soon",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "returns error for invalid debounce",
			fileConfig: FileConfig{
				Debounce: "10 parsecs",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.expected, cfg); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.toml")

	tomlContent := `
backend = "sqlite"
path = "/tmp/slicesync.db"
poll_interval = "500ms"
output = "yaml"
log_level = "debug"
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	want := FileConfig{
		Backend:      "sqlite",
		Path:         "/tmp/slicesync.db",
		PollInterval: "500ms",
		Output:       "yaml",
		LogLevel:     "debug",
	}
	if diff := cmp.Diff(want, fc); diff != "" {
		t.Errorf("LoadFileConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
backend = "fs"
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.Contains(path, ".slicesync") {
		t.Errorf("DefaultConfigPath() = %v, should contain .slicesync", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
