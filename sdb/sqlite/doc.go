// Package sqlite implements the sdb driver capability over the
// embedded SQLite engine (mattn/go-sqlite3).
//
// Connections are held at the database/sql/driver level so the sdb
// pool owns them directly, without database/sql's own pooling in
// between.
//
// Configuration keys:
//   - path: database file path, or ":memory:" for an in-memory
//     database (required)
//   - busy_timeout_ms: SQLite busy handler timeout in milliseconds
//     (optional)
//
// Register with a Manager:
//
//	m.RegisterDriver(ctx, sqlite.NewDriver())
package sqlite
