// Package config loads application configuration for smartdb-core.
//
// Configuration is read from a YAML file with hardcoded defaults and
// environment variable overrides:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern SMARTDB_SECTION_KEY, for
// example SMARTDB_CONNECTIONS_FILE and SMARTDB_INFLUXDB_TOKEN.
//
// The connections file itself (named connection configurations for
// the sdb.Manager) is a separate document loaded through
// Manager.LoadConfig; this package only locates it.
package config
