package sdb

import (
	"context"
	"sync"
)

// fakeConn is an in-memory Connection for exercising the pool, the
// transaction guard and the row helpers without a backend.
type fakeConn struct {
	mu sync.Mutex

	open    bool
	openErr error
	closes  int

	affected int64
	execErr  error
	execLog  []string

	cols     []string
	rows     [][]Value
	queryErr error

	beginErr    error
	commitErr   error
	rollbackErr error
}

func (c *fakeConn) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return nil
	}
	if c.openErr != nil {
		return c.openErr
	}
	c.open = true
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.closes++
	return nil
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) Execute(ctx context.Context, query string, params ...Value) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execLog = append(c.execLog, query)
	if c.execErr != nil {
		return 0, c.execErr
	}
	return c.affected, nil
}

func (c *fakeConn) Query(ctx context.Context, query string, params ...Value) (ResultSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	return &fakeResultSet{cols: c.cols, rows: c.rows}, nil
}

func (c *fakeConn) Begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execLog = append(c.execLog, "BEGIN")
	return c.beginErr
}

func (c *fakeConn) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execLog = append(c.execLog, "COMMIT")
	return c.commitErr
}

func (c *fakeConn) Rollback(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execLog = append(c.execLog, "ROLLBACK")
	return c.rollbackErr
}

func (c *fakeConn) log() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.execLog...)
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// fakeResultSet is a cursor over a fixed row slice.
type fakeResultSet struct {
	cols    []string
	rows    [][]Value
	pos     int
	current []Value
	closed  bool
}

func (r *fakeResultSet) Next() bool {
	if r.pos >= len(r.rows) {
		r.current = nil
		return false
	}
	r.current = r.rows[r.pos]
	r.pos++
	return true
}

func (r *fakeResultSet) Err() error { return nil }

func (r *fakeResultSet) Get(i int) Value {
	if r.current == nil || i < 0 || i >= len(r.current) {
		return Null()
	}
	return r.current[i]
}

func (r *fakeResultSet) GetByName(name string) Value {
	for i, col := range r.cols {
		if col == name {
			return r.Get(i)
		}
	}
	return Null()
}

func (r *fakeResultSet) ColumnNames() []string {
	return append([]string(nil), r.cols...)
}

func (r *fakeResultSet) Close() error {
	r.closed = true
	return nil
}

// fakeDriver builds fakeConns for manager tests.
type fakeDriver struct {
	name      string
	createErr error
	built     int
}

func (d *fakeDriver) Name() string { return d.name }

func (d *fakeDriver) CreateConnection(cfg Config) (Connection, error) {
	if d.createErr != nil {
		return nil, d.createErr
	}
	d.built++
	return &fakeConn{}, nil
}

// openFactory returns a ConnectionFactory producing open fakeConns,
// recording every connection it builds.
func openFactory(conns *[]*fakeConn, mu *sync.Mutex) ConnectionFactory {
	return func(ctx context.Context) (Connection, error) {
		c := &fakeConn{open: true}
		mu.Lock()
		*conns = append(*conns, c)
		mu.Unlock()
		return c, nil
	}
}
