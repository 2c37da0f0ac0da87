package sdb

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ConnectionFactory produces a new connection for the pool. The pool
// opens factory-built connections itself when borrow-time validation
// is enabled; factories built by the Manager return connections that
// are already open.
type ConnectionFactory func(ctx context.Context) (Connection, error)

// PoolOptions tunes pool behaviour.
type PoolOptions struct {
	// MinSize is the number of connections created and opened up
	// front. Clamped to MaxSize.
	MinSize int

	// MaxSize bounds the total number of connections, idle and lent
	// together. Must be positive.
	MaxSize int

	// WaitTimeout bounds how long Acquire blocks when the pool is at
	// capacity with nothing idle. Zero means fail fast instead of
	// waiting.
	WaitTimeout time.Duration

	// TestOnBorrow validates a connection before handing it out;
	// connections that fail validation are discarded. Acquire then
	// tries again while its wait deadline has not passed, and fails
	// when WaitTimeout is zero or the deadline is over.
	TestOnBorrow bool

	// TestOnReturn validates a connection when it comes back;
	// connections that fail validation are discarded.
	TestOnReturn bool
}

// DefaultPoolOptions returns the options used when callers pass none:
// no pre-warming, sixteen connections, five second wait, borrow-time
// validation on, return-time validation off.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MinSize:      0,
		MaxSize:      16,
		WaitTimeout:  5 * time.Second,
		TestOnBorrow: true,
		TestOnReturn: false,
	}
}

func (o *PoolOptions) normalise() {
	if o.MinSize < 0 {
		o.MinSize = 0
	}
	if o.MinSize > o.MaxSize {
		o.MinSize = o.MaxSize
	}
	if o.WaitTimeout < 0 {
		o.WaitTimeout = 0
	}
}

// PoolMetrics is a point-in-time snapshot of pool activity.
//
// Counters are cumulative since creation or the last ResetMetrics;
// Total, Idle, InUse and PeakInUse are gauges.
type PoolMetrics struct {
	Total     int
	Idle      int
	InUse     int
	PeakInUse int

	AcquireAttempts  uint64
	AcquireSuccesses uint64
	AcquireFailures  uint64
	AcquireTimeouts  uint64
	WaitEvents       uint64
	FactoryFailures  uint64

	TotalAcquireWaitMicros uint64

	// AverageAcquireWaitMicros is TotalAcquireWaitMicros divided by
	// completed acquires (successes + failures), 0 when none.
	AverageAcquireWaitMicros uint64
}

// Pool is a bounded, thread-safe connection pool.
//
// Acquire serves idle connections first (most recently returned
// first, for cache warmth), creates new ones while below capacity,
// and otherwise blocks until a connection is returned or the wait
// timeout elapses. Connections are validated on borrow and optionally
// on return; failed connections are discarded so the pool self-heals
// after backend restarts.
//
// Invariants: 0 <= idle <= total <= MaxSize, and every connection
// handed out either returns exactly once or is definitively dropped.
// The internal mutex is never held across connection I/O, factory
// calls or blocking waits.
//
// All methods are safe for concurrent use.
type Pool struct {
	factory ConnectionFactory
	opts    PoolOptions

	mu      sync.Mutex
	idle    []Connection
	total   int
	closed  bool
	waiters []chan struct{}

	attempts     uint64
	successes    uint64
	failures     uint64
	timeouts     uint64
	waitEvents   uint64
	factoryFails uint64
	waitMicros   uint64
	peakInUse    int
}

// NewPool builds a pool over factory.
//
// A nil factory and a non-positive MaxSize are rejected with
// InvalidArgument; MinSize is clamped into [0, MaxSize]. MinSize
// connections are created and opened eagerly; pre-warm failures are
// discarded silently and the pool continues with whatever subset
// succeeded.
func NewPool(ctx context.Context, factory ConnectionFactory, opts PoolOptions) (*Pool, error) {
	if factory == nil {
		return nil, Errorf(KindInvalidArgument, "connection factory must not be nil")
	}
	if opts.MaxSize <= 0 {
		return nil, Errorf(KindInvalidArgument, "pool max size must be positive, got %d", opts.MaxSize)
	}
	opts.normalise()

	p := &Pool{
		factory: factory,
		opts:    opts,
		idle:    make([]Connection, 0, opts.MaxSize),
	}

	for i := 0; i < opts.MinSize; i++ {
		conn, err := factory(ctx)
		if err != nil {
			continue
		}
		if err := conn.Open(ctx); err != nil {
			conn.Close() //nolint:errcheck
			continue
		}
		p.mu.Lock()
		p.idle = append(p.idle, conn)
		p.total++
		p.mu.Unlock()
	}
	return p, nil
}

// Handle is a lent connection. Closing the handle returns the
// connection to its pool; the handle must not be used afterwards.
type Handle struct {
	pool *Pool
	conn Connection
	done bool
}

// Conn exposes the lent connection.
func (h *Handle) Conn() Connection {
	return h.conn
}

// Close returns the connection to the pool. Idempotent, so it is safe
// to defer immediately after a successful Acquire.
func (h *Handle) Close() error {
	if h.done {
		return nil
	}
	h.done = true
	h.pool.release(h.conn)
	return nil
}

// Acquire lends a connection out of the pool.
//
// Order of preference: an idle connection, then a fresh one while
// below capacity, then blocking until a connection is returned. With
// a zero WaitTimeout an at-capacity pool fails immediately with
// "Connection pool exhausted"; a blocked call that outlives the
// timeout fails with "Connection pool acquire timed out".
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	start := time.Now()

	p.mu.Lock()
	p.attempts++
	deadline := start.Add(p.opts.WaitTimeout)

	for {
		if p.closed {
			err := NewError(KindConnection, 0, "Connection pool is closed", true)
			p.failLocked(start)
			p.mu.Unlock()
			emitError(ctx, "pool.acquire", err)
			return nil, err
		}

		if n := len(p.idle); n > 0 {
			conn := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.mu.Unlock()
			if !p.opts.TestOnBorrow || p.revalidate(ctx, conn) {
				return p.lendOut(ctx, conn, start), nil
			}
			conn.Close() //nolint:errcheck
			p.mu.Lock()
			p.total--
			p.notifyOneLocked()
			if p.opts.WaitTimeout <= 0 || !time.Now().Before(deadline) {
				err := NewError(KindConnection, 0, "connection failed validation during acquire", true)
				p.failLocked(start)
				p.mu.Unlock()
				emitError(ctx, "pool.acquire", err)
				return nil, err
			}
			continue
		}

		if p.total < p.opts.MaxSize {
			p.total++
			p.mu.Unlock()
			conn, err := p.factory(ctx)
			if err == nil && p.opts.TestOnBorrow && !p.revalidate(ctx, conn) {
				conn.Close() //nolint:errcheck
				p.mu.Lock()
				p.total--
				p.notifyOneLocked()
				if p.opts.WaitTimeout <= 0 || !time.Now().Before(deadline) {
					e := NewError(KindConnection, 0, "connection failed validation during acquire", true)
					p.failLocked(start)
					p.mu.Unlock()
					emitError(ctx, "pool.acquire", e)
					return nil, e
				}
				continue
			}
			if err != nil {
				p.mu.Lock()
				p.total--
				p.factoryFails++
				p.notifyOneLocked()
				e := AsError(err)
				if e.Kind == KindUnknown {
					e = WrapError(KindInternal, e.Code, e.Message, true, err)
				} else {
					e = e.WithRetryable(true)
				}
				p.failLocked(start)
				p.mu.Unlock()
				emitError(ctx, "pool.create", e)
				return nil, e
			}
			return p.lendOut(ctx, conn, start), nil
		}

		if p.opts.WaitTimeout <= 0 {
			err := NewError(KindConnection, 0, "Connection pool exhausted", true)
			p.failLocked(start)
			p.mu.Unlock()
			emitError(ctx, "pool.acquire", err)
			return nil, err
		}
		p.waitEvents++
		if !p.waitLocked(ctx, deadline) {
			err := NewError(KindTimeout, 0, "Connection pool acquire timed out", true)
			if ctx.Err() != nil {
				err = WrapError(KindTimeout, 0, "Connection pool acquire timed out", true, ctx.Err())
			}
			p.timeouts++
			p.failLocked(start)
			p.mu.Unlock()
			emitError(ctx, "pool.acquire", err)
			return nil, err
		}
	}
}

// revalidate checks a connection before lending it out, re-opening a
// connection the backend has dropped. Called without the lock held.
func (p *Pool) revalidate(ctx context.Context, conn Connection) bool {
	if conn.IsOpen() {
		return true
	}
	if err := conn.Open(ctx); err != nil {
		emitEvent(ctx, slog.LevelWarn, "pool.validate",
			"discarding connection after failed validation", "error", err.Error())
		return false
	}
	return true
}

// lendOut records a successful acquisition. Called without the lock
// held.
func (p *Pool) lendOut(ctx context.Context, conn Connection, start time.Time) *Handle {
	waited := uint64(time.Since(start).Microseconds())
	p.mu.Lock()
	p.successes++
	p.waitMicros += waited
	if inUse := p.total - len(p.idle); inUse > p.peakInUse {
		p.peakInUse = inUse
	}
	p.mu.Unlock()
	emitEvent(ctx, slog.LevelDebug, "pool.acquire", "connection acquired",
		"wait_micros", waited)
	return &Handle{pool: p, conn: conn}
}

// failLocked records a failed acquisition. Called with the lock held.
func (p *Pool) failLocked(start time.Time) {
	p.failures++
	p.waitMicros += uint64(time.Since(start).Microseconds())
}

// waitLocked blocks until a connection is returned, the deadline
// passes, or ctx is cancelled. Called with the lock held; returns
// with the lock held. Reports false when the caller should give up.
func (p *Pool) waitLocked(ctx context.Context, deadline time.Time) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}

	ch := make(chan struct{})
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	woken := false
	select {
	case <-ch:
		woken = true
	case <-timer.C:
	case <-ctx.Done():
	}

	p.mu.Lock()
	for i, w := range p.waiters {
		if w == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			break
		}
	}
	if !woken {
		// A notification may have raced the timeout; pass it on so
		// the wakeup is not lost.
		select {
		case <-ch:
			p.notifyOneLocked()
		default:
		}
		return ctx.Err() == nil && time.Now().Before(deadline)
	}
	return true
}

// notifyOneLocked wakes the longest-waiting goroutine, if any. Called
// with the lock held.
func (p *Pool) notifyOneLocked() {
	if len(p.waiters) == 0 {
		return
	}
	close(p.waiters[0])
	p.waiters = p.waiters[1:]
}

// release returns a lent connection to the pool, dropping it when the
// pool is closed or return-time validation fails.
func (p *Pool) release(conn Connection) {
	p.mu.Lock()
	drop := p.closed || (p.opts.TestOnReturn && !conn.IsOpen())
	if !drop {
		p.idle = append(p.idle, conn)
		p.notifyOneLocked()
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	conn.Close() //nolint:errcheck

	p.mu.Lock()
	p.total--
	p.notifyOneLocked()
	p.mu.Unlock()
}

// Metrics returns a snapshot of pool activity.
func (p *Pool) Metrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := PoolMetrics{
		Total:                  p.total,
		Idle:                   len(p.idle),
		InUse:                  p.total - len(p.idle),
		PeakInUse:              p.peakInUse,
		AcquireAttempts:        p.attempts,
		AcquireSuccesses:       p.successes,
		AcquireFailures:        p.failures,
		AcquireTimeouts:        p.timeouts,
		WaitEvents:             p.waitEvents,
		FactoryFailures:        p.factoryFails,
		TotalAcquireWaitMicros: p.waitMicros,
	}
	if done := p.successes + p.failures; done > 0 {
		m.AverageAcquireWaitMicros = p.waitMicros / done
	}
	return m
}

// ResetMetrics zeroes the cumulative counters and reseats the peak
// in-use gauge to the current in-use count.
func (p *Pool) ResetMetrics() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts = 0
	p.successes = 0
	p.failures = 0
	p.timeouts = 0
	p.waitEvents = 0
	p.factoryFails = 0
	p.waitMicros = 0
	p.peakInUse = p.total - len(p.idle)
}

// Closed reports whether Shutdown has been called.
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Shutdown closes the pool.
//
// Idle connections are closed immediately; lent connections are
// closed as their handles are released. Blocked Acquire calls fail
// with a closed-pool error. Idempotent.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.total -= len(idle)
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	for _, conn := range idle {
		conn.Close() //nolint:errcheck
	}
}
