package sdb

import "context"

// Config carries a connection's settings as loosely typed key/value
// pairs, as parsed from YAML or assembled by hand. The key "driver"
// selects the backend; every other key is driver-specific and unknown
// keys are ignored.
type Config map[string]any

// GetString returns the string stored under key, or def when the key
// is absent or not a string.
func (c Config) GetString(key, def string) string {
	if v, ok := c[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// GetInt returns the integer stored under key, or def when the key is
// absent or not numeric. YAML decodes integers as int and JSON as
// float64; both are accepted.
func (c Config) GetInt(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// GetBool returns the boolean stored under key, or def when the key is
// absent or not a boolean.
func (c Config) GetBool(key string, def bool) bool {
	if v, ok := c[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Driver is the capability contract a database backend implements to
// plug into the Manager.
//
// Implementations must be safe for concurrent use; CreateConnection
// may be called from many goroutines at once.
type Driver interface {
	// Name returns the driver's registry key, e.g. "sqlite" or
	// "mysql".
	Name() string

	// CreateConnection builds a connection from cfg without touching
	// the backend. All I/O is deferred to the connection's Open.
	CreateConnection(cfg Config) (Connection, error)
}

// Connection is a single database connection. Connections are NOT
// safe for concurrent use; the Pool hands each one to a single
// borrower at a time.
type Connection interface {
	// Open establishes the backend session. Idempotent: opening an
	// open connection is a no-op. On failure the connection stays
	// unopened and may be re-opened later.
	Open(ctx context.Context) error

	// Close releases the connection. Idempotent in every state.
	Close() error

	// IsOpen reports whether the connection believes itself usable,
	// without touching the backend.
	IsOpen() bool

	// Execute runs a statement that returns no rows and reports the
	// backend's affected-row count. An unknown count is reported as 0,
	// never -1.
	Execute(ctx context.Context, query string, params ...Value) (int64, error)

	// Query runs a statement expected to return rows. A statement
	// returning no rows yields an empty ResultSet, not an error.
	Query(ctx context.Context, query string, params ...Value) (ResultSet, error)

	// Begin, Commit and Rollback issue bare transaction demarcation
	// statements. Semantics are the backend's; no savepoint stack is
	// layered on top. Most callers want the Tx guard from the
	// package-level Begin instead of calling these directly.
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ResultSet is a forward-only cursor over query results.
//
// Reads are tolerant: an out-of-range index, an unknown column name,
// or a read after the final Next all yield NULL rather than an error,
// so call sites survive schema drift. Typed misuse surfaces when the
// caller destructures the Value.
//
// Usage:
//
//	rs, err := conn.Query(ctx, "SELECT id, name FROM demo")
//	if err != nil { ... }
//	defer rs.Close()
//	for rs.Next() {
//	    id := rs.Get(0)
//	    ...
//	}
//	if err := rs.Err(); err != nil { ... }
type ResultSet interface {
	// Next advances to the next row. It returns false at the end of
	// the set and on every later call; afterwards every Get yields NULL.
	Next() bool

	// Err returns the error that terminated iteration early, if any.
	Err() error

	// Get returns the value of column i in the current row.
	Get(i int) Value

	// GetByName returns the value of the named column in the current
	// row.
	GetByName(name string) Value

	// ColumnNames returns the column names in result order.
	ColumnNames() []string

	// Close releases the cursor. Idempotent.
	Close() error
}
