// Package sdb provides a uniform, driver-agnostic access layer for
// relational databases.
//
// Client code writes against one abstract surface; concrete drivers
// (SQLite via the embedded engine, MySQL via its native client
// protocol) plug in dynamically through a Manager.
//
// The package manages:
//   - A unified value model (Value) covering every database scalar
//   - A driver capability contract (Driver, Connection, ResultSet)
//   - Scoped transactions that roll back unless committed (Tx)
//   - A bounded, thread-safe connection pool with borrow-time
//     validation, blocking acquisition and metrics (Pool)
//   - A process-scoped registry of drivers, configurations and
//     memoised pools (Manager)
//   - Operation-context propagation for structured event emission
//
// Usage:
//
//	m := sdb.NewManager()
//	m.RegisterDriver(ctx, sqlite.NewDriver())
//	m.LoadConfig(ctx, "db_config.yaml")
//
//	pool, err := m.CreatePool(ctx, "my_sqlite", sdb.DefaultPoolOptions())
//	if err != nil {
//	    return err
//	}
//	defer pool.Shutdown()
//
//	h, err := pool.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//
//	affected, err := h.Conn().Execute(ctx,
//	    "INSERT INTO demo (id, name) VALUES (?, ?)",
//	    sdb.Int64(7), sdb.Text("smartdb"))
//
// Statement text is forwarded to the backend verbatim; the package
// performs no SQL dialect translation. Placeholders are the backend's
// native form (? for both supported drivers) and parameters are
// positional.
package sdb
