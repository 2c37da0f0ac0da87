package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "# empty\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Connections.File != "./db_config.yaml" {
		t.Errorf("Connections.File = %q, want default %q", cfg.Connections.File, "./db_config.yaml")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
	if cfg.Metrics.Interval != 10 {
		t.Errorf("Metrics.Interval = %d, want 10", cfg.Metrics.Interval)
	}
	if cfg.InfluxDB.Enabled {
		t.Error("InfluxDB.Enabled = true, want disabled by default")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
connections:
  file: /etc/smartdb/connections.yaml
logging:
  level: debug
  format: text
metrics:
  interval: 30
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Connections.File != "/etc/smartdb/connections.yaml" {
		t.Errorf("Connections.File = %q", cfg.Connections.File)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Metrics.Interval != 30 {
		t.Errorf("Metrics.Interval = %d, want 30", cfg.Metrics.Interval)
	}
	if got, want := cfg.MetricsInterval(), 30*time.Second; got != want {
		t.Errorf("MetricsInterval() = %v, want %v", got, want)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
connections:
  file: /from/file.yaml
logging:
  level: warn
`)

	t.Setenv("SMARTDB_CONNECTIONS_FILE", "/from/env.yaml")
	t.Setenv("SMARTDB_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Connections.File != "/from/env.yaml" {
		t.Errorf("Connections.File = %q, want the env override", cfg.Connections.File)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want the env override", cfg.Logging.Level)
	}
}

func TestLoad_InfluxDBTokenFromEnv(t *testing.T) {
	path := writeConfig(t, `
influxdb:
  enabled: true
  url: http://localhost:8086
  org: smartdb
  bucket: metrics
`)

	t.Setenv("SMARTDB_INFLUXDB_TOKEN", "secret-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want the env value", cfg.InfluxDB.Token)
	}
}

func TestLoad_Failures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if err == nil {
			t.Fatal("Load() should fail for a missing file")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "logging: [")
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "parsing config file") {
			t.Errorf("Load() error = %v, want a parse failure", err)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing connections file",
			mutate:  func(c *Config) { c.Connections.File = "" },
			wantErr: "connections.file is required",
		},
		{
			name:    "zero metrics interval",
			mutate:  func(c *Config) { c.Metrics.Interval = 0 },
			wantErr: "metrics.interval must be at least 1 second",
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Token = "tok"
			},
			wantErr: "influxdb.url is required",
		},
		{
			name: "influxdb enabled without token",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
			},
			wantErr: "influxdb.token is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() error = nil, want failure")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
