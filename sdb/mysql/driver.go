package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/smartdb-io/smartdb-core/sdb"
)

// DriverName is the registry key for this driver.
const DriverName = "mysql"

// connectTimeout bounds the TCP connect plus handshake.
const connectTimeout = 10 * time.Second

// Driver builds MySQL connections for the sdb Manager.
type Driver struct{}

// NewDriver returns the MySQL driver.
func NewDriver() *Driver {
	return &Driver{}
}

// Name returns "mysql".
func (d *Driver) Name() string {
	return DriverName
}

// CreateConnection builds an unopened connection from cfg. No I/O is
// performed; the handshake happens in Connection.Open.
func (d *Driver) CreateConnection(cfg sdb.Config) (sdb.Connection, error) {
	mc := gomysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d",
		cfg.GetString("host", "127.0.0.1"), cfg.GetInt("port", 3306))
	mc.User = cfg.GetString("user", "root")
	mc.Passwd = cfg.GetString("password", "")
	mc.DBName = cfg.GetString("database", "")
	mc.Timeout = connectTimeout
	mc.Params = map[string]string{
		"charset": cfg.GetString("charset", "utf8mb4"),
	}

	connector, err := gomysql.NewConnector(mc)
	if err != nil {
		return nil, sdb.WrapError(sdb.KindConfiguration, 0,
			fmt.Sprintf("invalid mysql configuration: %v", err), false, err)
	}
	return &Conn{connector: connector, addr: mc.Addr}, nil
}

// Conn is a single MySQL connection. Not safe for concurrent use.
type Conn struct {
	connector driver.Connector
	addr      string

	conn driver.Conn
}

// Open performs the handshake with the configured credentials.
// Idempotent.
func (c *Conn) Open(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	raw, err := c.connector.Connect(ctx)
	if err != nil {
		return wrapMySQLError(openErrorKind(err), err,
			fmt.Sprintf("connect to mysql at %s", c.addr))
	}
	c.conn = raw
	return nil
}

// openErrorKind classifies a handshake failure by the server's error
// number when one is present.
func openErrorKind(err error) sdb.ErrorKind {
	var me *gomysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1044, 1045, 1698: // access denied family
			return sdb.KindAuthentication
		case 1049: // unknown database
			return sdb.KindConfiguration
		}
	}
	return sdb.KindConnection
}

// Close releases the connection. Idempotent in every state.
func (c *Conn) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return wrapMySQLError(sdb.KindConnection, err, "close mysql connection")
	}
	return nil
}

// IsOpen reports whether the connection is open, without touching the
// server.
func (c *Conn) IsOpen() bool {
	return c.conn != nil
}

// Execute runs a statement that returns no rows.
//
// Without parameters the text protocol is used; with parameters the
// statement is prepared and executed over the binary protocol, and
// the affected count comes from the statement, not the connection.
func (c *Conn) Execute(ctx context.Context, query string, params ...sdb.Value) (int64, error) {
	if c.conn == nil {
		return 0, sdb.Errorf(sdb.KindConnection, "mysql connection is not open")
	}

	var res driver.Result
	if len(params) == 0 {
		execer, ok := c.conn.(driver.ExecerContext)
		if !ok {
			return 0, sdb.Errorf(sdb.KindInternal, "mysql connection does not support direct execution")
		}
		var err error
		res, err = execer.ExecContext(ctx, query, nil)
		if err != nil {
			return 0, wrapMySQLError(sdb.KindExecution, err, "execute statement")
		}
	} else {
		stmt, args, err := c.prepareBound(ctx, query, params, sdb.KindExecution)
		if err != nil {
			return 0, err
		}
		defer stmt.Close() //nolint:errcheck
		res, err = stmt.(driver.StmtExecContext).ExecContext(ctx, args)
		if err != nil {
			return 0, wrapMySQLError(sdb.KindExecution, err, "execute statement")
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
		return nil, sdb.Errorf(sdb.KindConnection, "mysql connection is not open")
	}

	if len(params) == 0 {
		queryer, ok := c.conn.(driver.QueryerContext)
		if !ok {
			return nil, sdb.Errorf(sdb.KindInternal, "mysql connection does not support direct queries")
		}
		rows, err := queryer.QueryContext(ctx, query, nil)
		if err != nil {
			return nil, wrapMySQLError(sdb.KindQuery, err, "query statement")
		}
		return newResultSet(rows, nil), nil
	}

	stmt, args, err := c.prepareBound(ctx, query, params, sdb.KindQuery)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.(driver.StmtQueryContext).QueryContext(ctx, args)
	if err != nil {
		stmt.Close() //nolint:errcheck
		return nil, wrapMySQLError(sdb.KindQuery, err, "query statement")
	}
	return newResultSet(rows, stmt), nil
}

// prepareBound prepares query, validates the placeholder count and
// marshals params to driver arguments.
func (c *Conn) prepareBound(ctx context.Context, query string, params []sdb.Value, kind sdb.ErrorKind) (driver.Stmt, []driver.NamedValue, error) {
	var stmt driver.Stmt
	var err error
	if pc, ok := c.conn.(driver.ConnPrepareContext); ok {
		stmt, err = pc.PrepareContext(ctx, query)
	} else {
		stmt, err = c.conn.Prepare(query)
	}
	if err != nil {
		return nil, nil, wrapMySQLError(kind, err, "prepare statement")
	}
	if want := stmt.NumInput(); want >= 0 && want != len(params) {
		stmt.Close() //nolint:errcheck
		return nil, nil, sdb.Errorf(sdb.KindInvalidArgument,
			"parameter count mismatch: statement expects %d, got %d", want, len(params))
	}
	args := make([]driver.NamedValue, len(params))
	for i, p := range params {
		args[i] = driver.NamedValue{Ordinal: i + 1, Value: marshalValue(p)}
	}
	return stmt, args, nil
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
		return sdb.Errorf(sdb.KindConnection, "mysql connection is not open")
	}
	execer, ok := c.conn.(driver.ExecerContext)
	if !ok {
		return sdb.Errorf(sdb.KindInternal, "mysql connection does not support direct execution")
	}
	if _, err := execer.ExecContext(ctx, stmt, nil); err != nil {
		return wrapMySQLError(sdb.KindTransaction, err, strings.ToLower(stmt))
	}
	return nil
}

// marshalValue converts an sdb.Value to the wire bind form.
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
		return b
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

// wrapMySQLError normalises a client error, preserving the server
// error number when present.
func wrapMySQLError(kind sdb.ErrorKind, err error, action string) *sdb.Error {
	code := 0
	var me *gomysql.MySQLError
	if errors.As(err, &me) {
		code = int(me.Number)
	}
	retryable := kind == sdb.KindConnection || kind == sdb.KindTimeout
	return sdb.WrapError(kind, code, fmt.Sprintf("%s: %v", action, err), retryable, err)
}

// resultSet is a forward-only cursor over MySQL rows.
type resultSet struct {
	rows    driver.Rows
	stmt    driver.Stmt
	columns []string
	types   []string

	current []sdb.Value
	err     error
	done    bool
	closed  bool
}

func newResultSet(rows driver.Rows, stmt driver.Stmt) *resultSet {
	columns := rows.Columns()
	types := make([]string, len(columns))
	if tn, ok := rows.(driver.RowsColumnTypeDatabaseTypeName); ok {
		for i := range types {
			types[i] = strings.TrimPrefix(tn.ColumnTypeDatabaseTypeName(i), "UNSIGNED ")
		}
	}
	return &resultSet{rows: rows, stmt: stmt, columns: columns, types: types}
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
			r.err = wrapMySQLError(sdb.KindQuery, err, "fetch row")
		}
		return false
	}
	row := make([]sdb.Value, len(dest))
	for i, d := range dest {
		row[i] = decodeColumn(r.types[i], d)
	}
	r.current = row
	return true
}

// decodeColumn maps a wire value to the unified model using the
// column's reported database type.
//
// The text protocol hands every value back as bytes; the binary
// protocol hands back typed values. Both shapes funnel through the
// same per-type rules, with a numeric parse failure degrading to the
// raw text rather than an error.
func decodeColumn(dbType string, d driver.Value) sdb.Value {
	if d == nil {
		return sdb.Null()
	}

	switch dbType {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT":
		n, ok := toInt64(d)
		if !ok {
			return rawText(d)
		}
		if n >= -2147483648 && n <= 2147483647 {
			return sdb.Int32(int32(n))
		}
		return sdb.Int64(n)
	case "BIGINT":
		n, ok := toInt64(d)
		if !ok {
			return rawText(d)
		}
		return sdb.Int64(n)
	case "FLOAT", "DOUBLE", "DECIMAL":
		f, ok := toFloat64(d)
		if !ok {
			return rawText(d)
		}
		return sdb.Float64(f)
	case "BIT":
		b := toBytes(d)
		if len(b) == 1 {
			return sdb.Bool(b[0] != 0)
		}
		return sdb.Bool(string(b) == "1")
	case "TINYBLOB", "BLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "GEOMETRY":
		return sdb.Bytes(append([]byte(nil), toBytes(d)...))
	default:
		return rawText(d)
	}
}

func toInt64(d driver.Value) (int64, bool) {
	switch v := d.(type) {
	case int64:
		return v, true
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func toFloat64(d driver.Value) (float64, bool) {
	switch v := d.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toBytes(d driver.Value) []byte {
	switch v := d.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return []byte(fmt.Sprint(v))
	}
}

func rawText(d driver.Value) sdb.Value {
	switch v := d.(type) {
	case string:
		return sdb.Text(v)
	case []byte:
		return sdb.Text(string(v))
	case time.Time:
		return sdb.Text(v.Format(time.DateTime))
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
		return wrapMySQLError(sdb.KindQuery, err, "close result set")
	}
	return nil
}
