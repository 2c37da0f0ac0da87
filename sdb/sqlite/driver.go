package sqlite

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/smartdb-io/smartdb-core/sdb"
)

// DriverName is the registry key for this driver.
const DriverName = "sqlite"

// Driver builds SQLite connections for the sdb Manager.
type Driver struct{}

// NewDriver returns the SQLite driver.
func NewDriver() *Driver {
	return &Driver{}
}

// Name returns "sqlite".
func (d *Driver) Name() string {
	return DriverName
}

// CreateConnection builds an unopened connection from cfg. No I/O is
// performed; the database is opened by Connection.Open.
func (d *Driver) CreateConnection(cfg sdb.Config) (sdb.Connection, error) {
	path := cfg.GetString("path", "")
	if path == "" {
		return nil, sdb.Errorf(sdb.KindConfiguration, "sqlite configuration requires a path")
	}
	return &Conn{
		path:        path,
		busyTimeout: cfg.GetInt("busy_timeout_ms", 0),
	}, nil
}

// Conn is a single SQLite connection. Not safe for concurrent use.
type Conn struct {
	path        string
	busyTimeout int

	conn *sqlite3.SQLiteConn
}

// dsn renders the connection string, folding the busy-timeout knob
// into the DSN so the engine's busy handler bounds lock waits.
func (c *Conn) dsn() string {
	if c.busyTimeout <= 0 {
		return c.path
	}
	sep := "?"
	if strings.Contains(c.path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d", c.path, sep, c.busyTimeout)
}

// Open opens the database file, or the in-memory database for the
// ":memory:" path. Idempotent.
func (c *Conn) Open(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	drv := &sqlite3.SQLiteDriver{}
	raw, err := drv.Open(c.dsn())
	if err != nil {
		return wrapSQLiteError(sdb.KindConnection, err,
			fmt.Sprintf("open sqlite database %s", c.path))
	}
	c.conn = raw.(*sqlite3.SQLiteConn)
	return nil
}

// Close releases the connection. Idempotent in every state.
func (c *Conn) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return wrapSQLiteError(sdb.KindConnection, err, "close sqlite connection")
	}
	return nil
}

// IsOpen reports whether the connection is open, without touching the
// engine.
func (c *Conn) IsOpen() bool {
	return c.conn != nil
}

// Execute runs a statement that returns no rows.
//
// Without parameters the statement text may hold several statements;
// the affected count is the engine's changes-since-last-statement.
// With parameters the statement is prepared, bound and stepped once.
func (c *Conn) Execute(ctx context.Context, query string, params ...sdb.Value) (int64, error) {
	if c.conn == nil {
		return 0, sdb.Errorf(sdb.KindConnection, "sqlite connection is not open")
	}

	var res driver.Result
	if len(params) == 0 {
		var err error
		res, err = c.conn.ExecContext(ctx, query, nil)
		if err != nil {
			return 0, wrapSQLiteError(sdb.KindExecution, err, "execute statement")
		}
	} else {
		stmt, err := c.conn.PrepareContext(ctx, query)
		if err != nil {
			return 0, wrapSQLiteError(sdb.KindExecution, err, "prepare statement")
		}
		defer stmt.Close() //nolint:errcheck
		args, err := bindArgs(stmt, params)
		if err != nil {
			return 0, err
		}
		res, err = stmt.(driver.StmtExecContext).ExecContext(ctx, args)
		if err != nil {
			return 0, wrapSQLiteError(sdb.KindExecution, err, "execute statement")
		}
	}

	affected, err := res.RowsAffected()
	if err != nil || affected < 0 {
		return 0, nil
	}
	return affected, nil
}

// Query runs a statement expected to return rows.
func (c *Conn) Query(ctx context.Context, query string, params ...sdb.Value) (sdb.ResultSet, error) {
	if c.conn == nil {
		return nil, sdb.Errorf(sdb.KindConnection, "sqlite connection is not open")
	}

	if len(params) == 0 {
		rows, err := c.conn.QueryContext(ctx, query, nil)
		if err != nil {
			return nil, wrapSQLiteError(sdb.KindQuery, err, "query statement")
		}
		return newResultSet(rows.(*sqlite3.SQLiteRows), nil), nil
	}

	stmt, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, wrapSQLiteError(sdb.KindQuery, err, "prepare statement")
	}
	args, err := bindArgs(stmt, params)
	if err != nil {
		stmt.Close() //nolint:errcheck
		return nil, err
	}
	rows, err := stmt.(driver.StmtQueryContext).QueryContext(ctx, args)
	if err != nil {
		stmt.Close() //nolint:errcheck
		return nil, wrapSQLiteError(sdb.KindQuery, err, "query statement")
	}
	return newResultSet(rows.(*sqlite3.SQLiteRows), stmt), nil
}

// Begin starts a transaction.
func (c *Conn) Begin(ctx context.Context) error {
	return c.demarcate(ctx, "BEGIN")
}

// Commit commits the current transaction.
func (c *Conn) Commit(ctx context.Context) error {
	return c.demarcate(ctx, "COMMIT")
}

// Rollback rolls back the current transaction.
func (c *Conn) Rollback(ctx context.Context) error {
	return c.demarcate(ctx, "ROLLBACK")
}

func (c *Conn) demarcate(ctx context.Context, stmt string) error {
	if c.conn == nil {
		return sdb.Errorf(sdb.KindConnection, "sqlite connection is not open")
	}
	if _, err := c.conn.ExecContext(ctx, stmt, nil); err != nil {
		return wrapSQLiteError(sdb.KindTransaction, err, strings.ToLower(stmt))
	}
	return nil
}

// bindArgs validates the parameter count against the statement's
// placeholder count and marshals values to driver arguments.
func bindArgs(stmt driver.Stmt, params []sdb.Value) ([]driver.NamedValue, error) {
	want := stmt.NumInput()
	if want >= 0 && want != len(params) {
		return nil, sdb.Errorf(sdb.KindInvalidArgument,
			"parameter count mismatch: statement expects %d, got %d", want, len(params))
	}
	args := make([]driver.NamedValue, len(params))
	for i, p := range params {
		args[i] = driver.NamedValue{Ordinal: i + 1, Value: marshalValue(p)}
	}
	return args, nil
}

// marshalValue converts an sdb.Value to the engine's bind form.
// Booleans bind as 0/1 integers, matching SQLite's lack of a native
// boolean type.
func marshalValue(v sdb.Value) driver.Value {
	switch v.Type() {
	case sdb.TypeNull:
		return nil
	case sdb.TypeInt32:
		n, _ := v.Int32()
		return int64(n)
	case sdb.TypeInt64:
		n, _ := v.Int64()
		return n
	case sdb.TypeFloat64:
		f, _ := v.Float64()
		return f
	case sdb.TypeBool:
		b, _ := v.Bool()
		if b {
			return int64(1)
		}
		return int64(0)
	case sdb.TypeText:
		s, _ := v.Text()
		return s
	case sdb.TypeBytes:
		b, _ := v.Bytes()
		return b
	default:
		return nil
	}
}

// wrapSQLiteError normalises an engine error, preserving the SQLite
// result code when present.
func wrapSQLiteError(kind sdb.ErrorKind, err error, action string) *sdb.Error {
	code := 0
	var se sqlite3.Error
	if errors.As(err, &se) {
		code = int(se.Code)
	}
	return sdb.WrapError(kind, code, fmt.Sprintf("%s: %v", action, err), false, err)
}

// resultSet is a forward-only cursor over SQLite rows.
type resultSet struct {
	rows    *sqlite3.SQLiteRows
	stmt    driver.Stmt
	columns []string
	blobish []bool

	current []sdb.Value
	err     error
	done    bool
	closed  bool
}

func newResultSet(rows *sqlite3.SQLiteRows, stmt driver.Stmt) *resultSet {
	columns := rows.Columns()
	blobish := make([]bool, len(columns))
	for i, decl := range rows.DeclTypes() {
		if i < len(blobish) && strings.Contains(strings.ToUpper(decl), "BLOB") {
			blobish[i] = true
		}
	}
	return &resultSet{rows: rows, stmt: stmt, columns: columns, blobish: blobish}
}

// Next advances to the next row, reporting false at the end of the
// set and on every later call.
func (r *resultSet) Next() bool {
	if r.done || r.closed {
		return false
	}
	dest := make([]driver.Value, len(r.columns))
	if err := r.rows.Next(dest); err != nil {
		r.done = true
		r.current = nil
		if !errors.Is(err, io.EOF) {
			r.err = wrapSQLiteError(sdb.KindQuery, err, "step row")
		}
		return false
	}
	row := make([]sdb.Value, len(dest))
	for i, d := range dest {
		row[i] = r.decode(i, d)
	}
	r.current = row
	return true
}

// decode maps an engine value to the unified model. The engine hands
// both TEXT and BLOB columns back as bytes; the declared column type
// disambiguates.
func (r *resultSet) decode(i int, d driver.Value) sdb.Value {
	switch v := d.(type) {
	case nil:
		return sdb.Null()
	case int64:
		return sdb.Int64(v)
	case float64:
		return sdb.Float64(v)
	case bool:
		return sdb.Bool(v)
	case string:
		if i < len(r.blobish) && r.blobish[i] {
			return sdb.Bytes([]byte(v))
		}
		return sdb.Text(v)
	case []byte:
		if i < len(r.blobish) && r.blobish[i] {
			return sdb.Bytes(append([]byte(nil), v...))
		}
		return sdb.Text(string(v))
	case time.Time:
		return sdb.Text(v.Format(time.RFC3339Nano))
	default:
		return sdb.Text(fmt.Sprint(v))
	}
}

// Err returns the error that terminated iteration early, if any.
func (r *resultSet) Err() error {
	return r.err
}

// Get returns the value of column i in the current row, NULL when out
// of range or past the end of the set.
func (r *resultSet) Get(i int) sdb.Value {
	if r.current == nil || i < 0 || i >= len(r.current) {
		return sdb.Null()
	}
	return r.current[i]
}

// GetByName returns the value of the named column, NULL when unknown.
func (r *resultSet) GetByName(name string) sdb.Value {
	for i, col := range r.columns {
		if col == name {
			return r.Get(i)
		}
	}
	return sdb.Null()
}

// ColumnNames returns the column names in result order.
func (r *resultSet) ColumnNames() []string {
	return append([]string(nil), r.columns...)
}

// Close releases the cursor and its statement. Idempotent.
func (r *resultSet) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.current = nil
	err := r.rows.Close()
	if r.stmt != nil {
		r.stmt.Close() //nolint:errcheck
	}
	if err != nil {
		return wrapSQLiteError(sdb.KindQuery, err, "close result set")
	}
	return nil
}
