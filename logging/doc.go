// Package logging provides structured logging for smartdb-core.
//
// This package wraps log/slog with:
//   - Level-based filtering (debug, info, warn, error)
//   - JSON output for production, text for development
//   - Default fields (service name, version)
//   - Child loggers with additional default attributes
//
// Usage:
//
//	log := logging.New(logging.Config{Level: "info", Format: "json"}, version)
//	log.Info("pool created", "pool", "my_sqlite", "max_size", 4)
//
//	poolLog := log.With("component", "pool")
//	poolLog.Warn("borrow validation failed") // Includes component=pool
//
// Structured database events (trace_id, operation, error kind) are
// emitted through this package by the sdb package; see sdb.SetEventLogger.
package logging
