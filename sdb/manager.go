package sdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Manager is the process-scoped registry of drivers, named
// connection configurations and memoised pools.
//
// Pools are cached by a stable key derived from the configuration and
// the pool options, so repeated CreatePool calls with the same inputs
// share one pool. A cached pool that has been shut down is evicted
// and rebuilt on the next request.
//
// All methods are safe for concurrent use. The manager's lock is not
// held while a driver builds a connection or while a pool is built,
// acquired from or shut down; it is held while reading a driver's Name
// and a cached pool's Closed flag.
type Manager struct {
	mu        sync.Mutex
	drivers   map[string]Driver
	configs   map[string]Config
	poolCache map[string]*Pool

	lastError     string
	errorCounters map[ErrorKind]uint64
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{
		drivers:       make(map[string]Driver),
		configs:       make(map[string]Config),
		poolCache:     make(map[string]*Pool),
		errorCounters: make(map[ErrorKind]uint64),
	}
}

var (
	defaultManager     *Manager
	defaultManagerOnce sync.Once
)

// Default returns the lazily initialised process-wide manager.
func Default() *Manager {
	defaultManagerOnce.Do(func() {
		defaultManager = NewManager()
	})
	return defaultManager
}

// recordError notes a failure for diagnostics and returns it
// unchanged, so failure paths read as `return m.recordError(ctx, op, err)`.
func (m *Manager) recordError(ctx context.Context, event string, err *Error) *Error {
	m.mu.Lock()
	m.lastError = err.Message
	m.errorCounters[err.Kind]++
	m.mu.Unlock()
	emitError(ctx, event, err)
	return err
}

// LastError returns the message of the most recent failure observed
// by the manager, "" when none.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// ErrorCounters returns a copy of the per-kind failure counters.
func (m *Manager) ErrorCounters() map[ErrorKind]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[ErrorKind]uint64, len(m.errorCounters))
	for k, v := range m.errorCounters {
		out[k] = v
	}
	return out
}

// ResetErrorCounters zeroes the per-kind failure counters and clears
// the last-error message.
func (m *Manager) ResetErrorCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastError = ""
	m.errorCounters = make(map[ErrorKind]uint64)
}

// RegisterDriver adds d to the registry. A nil driver is rejected;
// registering a second driver under the same name replaces the first.
func (m *Manager) RegisterDriver(ctx context.Context, d Driver) error {
	if d == nil {
		return m.recordError(ctx, "manager.register_driver",
			Errorf(KindInvalidArgument, "driver must not be nil"))
	}
	m.mu.Lock()
	m.drivers[d.Name()] = d
	m.mu.Unlock()
	emitEvent(ctx, slog.LevelInfo, "manager.register_driver",
		"driver registered", "driver", d.Name())
	return nil
}

// configFile is the YAML shape of a connections file.
type configFile struct {
	Connections map[string]Config `yaml:"connections"`
}

// LoadConfig reads a YAML connections file and replaces the manager's
// configurations atomically. JSON sources are accepted as a YAML
// subset.
//
// The file must carry a top-level `connections` mapping from
// connection name to configuration object; a source without one is a
// Configuration error and leaves the previous configurations intact.
func (m *Manager) LoadConfig(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return m.recordError(ctx, "manager.load_config",
			WrapError(KindConfiguration, 0,
				fmt.Sprintf("read config %s: %v", path, err), false, err))
	}
	return m.LoadConfigData(ctx, data, path)
}

// LoadConfigData ingests a YAML connections document from memory;
// source names the origin for diagnostics.
func (m *Manager) LoadConfigData(ctx context.Context, data []byte, source string) error {
	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return m.recordError(ctx, "manager.load_config",
			WrapError(KindConfiguration, 0,
				fmt.Sprintf("parse config %s: %v", source, err), false, err))
	}
	if cf.Connections == nil {
		return m.recordError(ctx, "manager.load_config",
			Errorf(KindConfiguration, "config %s has no top-level connections mapping", source))
	}
	m.mu.Lock()
	m.configs = cf.Connections
	m.mu.Unlock()
	emitEvent(ctx, slog.LevelInfo, "manager.load_config",
		"configurations loaded", "source", source, "count", len(cf.Connections))
	return nil
}

// Configs returns the names of the loaded configurations, sorted.
func (m *Manager) Configs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookupConfig fetches a named configuration.
func (m *Manager) lookupConfig(name string) (Config, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[name]
	return cfg, ok
}

// lookupDriver fetches a registered driver.
func (m *Manager) lookupDriver(name string) (Driver, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[name]
	return d, ok
}

// CreateConnection builds an unopened connection from the named
// configuration. Callers open it themselves; pool factories built by
// CreatePool open it for them.
func (m *Manager) CreateConnection(ctx context.Context, name string) (Connection, error) {
	cfg, ok := m.lookupConfig(name)
	if !ok {
		return nil, m.recordError(ctx, "manager.create_connection",
			Errorf(KindNotFound, "unknown connection configuration %q", name))
	}
	return m.CreateConnectionRaw(ctx, cfg.GetString("driver", ""), cfg)
}

// CreateConnectionRaw builds an unopened connection from an explicit
// driver name and configuration, bypassing the named table.
func (m *Manager) CreateConnectionRaw(ctx context.Context, driverName string, cfg Config) (Connection, error) {
	if driverName == "" {
		return nil, m.recordError(ctx, "manager.create_connection",
			Errorf(KindConfiguration, "configuration has no driver field"))
	}
	d, ok := m.lookupDriver(driverName)
	if !ok {
		return nil, m.recordError(ctx, "manager.create_connection",
			Errorf(KindNotFound, "unknown driver %q", driverName))
	}
	conn, err := d.CreateConnection(cfg)
	if err != nil {
		return nil, m.recordError(ctx, "manager.create_connection", AsError(err))
	}
	if conn == nil {
		return nil, m.recordError(ctx, "manager.create_connection",
			NewError(KindInternal, 0,
				fmt.Sprintf("driver %q returned no connection", driverName), true))
	}
	return conn, nil
}

// CreatePool returns the memoised pool for the named configuration
// and options, building it on first use.
func (m *Manager) CreatePool(ctx context.Context, name string, opts PoolOptions) (*Pool, error) {
	if err := m.checkPoolOptions(ctx, &opts); err != nil {
		return nil, err
	}
	if _, ok := m.lookupConfig(name); !ok {
		return nil, m.recordError(ctx, "manager.create_pool",
			Errorf(KindNotFound, "unknown connection configuration %q", name))
	}
	key := "name:" + name + "|" + optionsKey(opts)
	factory := func(ctx context.Context) (Connection, error) {
		return m.openConnection(ctx, func(ctx context.Context) (Connection, error) {
			return m.CreateConnection(ctx, name)
		})
	}
	return m.cachedPool(ctx, key, factory, opts)
}

// CreatePoolRaw is CreatePool for an explicit driver name and
// configuration. The cache key folds in a canonical rendering of the
// configuration, so logically equal configurations share a pool.
func (m *Manager) CreatePoolRaw(ctx context.Context, driverName string, cfg Config, opts PoolOptions) (*Pool, error) {
	if err := m.checkPoolOptions(ctx, &opts); err != nil {
		return nil, err
	}
	key := "raw:" + driverName + "|" + canonicalJSON(cfg) + "|" + optionsKey(opts)
	factory := func(ctx context.Context) (Connection, error) {
		return m.openConnection(ctx, func(ctx context.Context) (Connection, error) {
			return m.CreateConnectionRaw(ctx, driverName, cfg)
		})
	}
	return m.cachedPool(ctx, key, factory, opts)
}

// openConnection wraps a create step with the open step pool
// factories need.
func (m *Manager) openConnection(ctx context.Context, create ConnectionFactory) (Connection, error) {
	conn, err := create(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.Open(ctx); err != nil {
		conn.Close() //nolint:errcheck
		return nil, m.recordError(ctx, "manager.open_connection", AsError(err))
	}
	return conn, nil
}

// checkPoolOptions validates and normalises options in place, before
// they feed the cache key.
func (m *Manager) checkPoolOptions(ctx context.Context, opts *PoolOptions) error {
	if opts.MaxSize <= 0 {
		return m.recordError(ctx, "manager.create_pool",
			Errorf(KindInvalidArgument, "pool max size must be positive, got %d", opts.MaxSize))
	}
	opts.normalise()
	return nil
}

// cachedPool serves key from the pool cache, building and publishing
// a new pool on miss. Publication is double-checked: a racing builder
// that loses discards its pool and adopts the winner's.
func (m *Manager) cachedPool(ctx context.Context, key string, factory ConnectionFactory, opts PoolOptions) (*Pool, error) {
	m.mu.Lock()
	if pool, ok := m.poolCache[key]; ok && !pool.Closed() {
		m.mu.Unlock()
		return pool, nil
	}
	m.mu.Unlock()

	pool, err := NewPool(ctx, factory, opts)
	if err != nil {
		return nil, m.recordError(ctx, "manager.create_pool", AsError(err))
	}

	m.mu.Lock()
	if winner, ok := m.poolCache[key]; ok && !winner.Closed() {
		m.mu.Unlock()
		pool.Shutdown()
		return winner, nil
	}
	m.poolCache[key] = pool
	m.mu.Unlock()

	emitEvent(ctx, slog.LevelInfo, "manager.create_pool", "pool created",
		"key", key, "min_size", opts.MinSize, "max_size", opts.MaxSize)
	return pool, nil
}

// Shutdown closes every cached pool and empties the cache.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	pools := make([]*Pool, 0, len(m.poolCache))
	for _, p := range m.poolCache {
		pools = append(pools, p)
	}
	m.poolCache = make(map[string]*Pool)
	m.mu.Unlock()

	for _, p := range pools {
		p.Shutdown()
	}
}

// optionsKey renders pool options in the stable textual form used in
// cache keys.
func optionsKey(opts PoolOptions) string {
	b2i := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	return fmt.Sprintf("min=%d;max=%d;wait=%d;borrow=%d;return=%d",
		opts.MinSize, opts.MaxSize, opts.WaitTimeout.Milliseconds(),
		b2i(opts.TestOnBorrow), b2i(opts.TestOnReturn))
}

// canonicalJSON renders a configuration with sorted keys so that
// logically equal configurations produce identical bytes.
func canonicalJSON(cfg Config) string {
	data, err := json.Marshal(map[string]any(cfg))
	if err != nil {
		// Non-marshallable values cannot come from YAML; fall back to
		// a sorted key list so the key is still deterministic.
		keys := make([]string, 0, len(cfg))
		for k := range cfg {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "{" + strings.Join(keys, ",") + "}"
	}
	return string(data)
}
