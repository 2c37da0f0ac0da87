package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smartdb-io/smartdb-core/influxdb"
	"github.com/smartdb-io/smartdb-core/logging"
)

// Config is the root configuration structure for smartdb-core.
type Config struct {
	Connections ConnectionsConfig `yaml:"connections"`
	Logging     logging.Config    `yaml:"logging"`
	InfluxDB    influxdb.Config   `yaml:"influxdb"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ConnectionsConfig locates the named connection configurations.
type ConnectionsConfig struct {
	// File is the path to the connections YAML document consumed by
	// sdb.Manager.LoadConfig.
	File string `yaml:"file"`
}

// MetricsConfig contains pool-metrics export settings.
type MetricsConfig struct {
	// Interval is the export period in seconds.
	Interval int `yaml:"interval"`
}

// Load reads the configuration file at path and returns the validated
// result. Values resolve in increasing precedence:
//
//  1. Built-in defaults
//  2. The YAML file
//  3. SMARTDB_* environment variables
//
// An error is returned when the file cannot be read or parsed, or when
// Validate rejects the merged result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Connections: ConnectionsConfig{
			File: "./db_config.yaml",
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Interval: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables follow the pattern
// SMARTDB_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SMARTDB_CONNECTIONS_FILE"); v != "" {
		cfg.Connections.File = v
	}
	if v := os.Getenv("SMARTDB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SMARTDB_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("SMARTDB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Connections.File == "" {
		errs = append(errs, "connections.file is required")
	}
	if c.Metrics.Interval < 1 {
		errs = append(errs, "metrics.interval must be at least 1 second")
	}
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set SMARTDB_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// MetricsInterval returns the export period as a Duration.
func (c *Config) MetricsInterval() time.Duration {
	return time.Duration(c.Metrics.Interval) * time.Second
}
