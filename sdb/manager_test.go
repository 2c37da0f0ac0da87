package sdb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

const testConnectionsYAML = `
connections:
  primary:
    driver: fake
    host: db1.internal
    port: 5432
  secondary:
    driver: fake
    host: db2.internal
  broken:
    host: nowhere
`

func newTestManager(t *testing.T) (*Manager, *fakeDriver) {
	t.Helper()
	m := NewManager()
	t.Cleanup(m.Shutdown)
	d := &fakeDriver{name: "fake"}
	if err := m.RegisterDriver(context.Background(), d); err != nil {
		t.Fatalf("RegisterDriver() error = %v", err)
	}
	if err := m.LoadConfigData(context.Background(), []byte(testConnectionsYAML), "test"); err != nil {
		t.Fatalf("LoadConfigData() error = %v", err)
	}
	return m, d
}

func TestDefault_SharedInstance(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() should return the same manager every time")
	}
}

func TestManager_RegisterDriver(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	err := m.RegisterDriver(ctx, nil)
	if KindOf(err) != KindInvalidArgument {
		t.Errorf("KindOf() = %v, want KindInvalidArgument for a nil driver", KindOf(err))
	}

	first := &fakeDriver{name: "fake"}
	second := &fakeDriver{name: "fake"}
	if err := m.RegisterDriver(ctx, first); err != nil {
		t.Fatalf("RegisterDriver() error = %v", err)
	}
	if err := m.RegisterDriver(ctx, second); err != nil {
		t.Fatalf("re-register error = %v", err)
	}

	d, ok := m.lookupDriver("fake")
	if !ok {
		t.Fatal("driver not found after registration")
	}
	if d != Driver(second) {
		t.Error("re-registering a driver name should replace the earlier driver")
	}
}

func TestManager_LoadConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "connections.yaml")
		if err := os.WriteFile(path, []byte(testConnectionsYAML), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}

		m := NewManager()
		if err := m.LoadConfig(ctx, path); err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		want := []string{"broken", "primary", "secondary"}
		if got := m.Configs(); !reflect.DeepEqual(got, want) {
			t.Errorf("Configs() = %v, want %v", got, want)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		m := NewManager()
		err := m.LoadConfig(ctx, filepath.Join(t.TempDir(), "absent.yaml"))
		if KindOf(err) != KindConfiguration {
			t.Errorf("KindOf() = %v, want KindConfiguration", KindOf(err))
		}
	})

	t.Run("no connections mapping", func(t *testing.T) {
		m := NewManager()
		err := m.LoadConfigData(ctx, []byte("databases: {}\n"), "test")
		if KindOf(err) != KindConfiguration {
			t.Errorf("KindOf() = %v, want KindConfiguration", KindOf(err))
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		m := NewManager()
		err := m.LoadConfigData(ctx, []byte("connections: ["), "test")
		if KindOf(err) != KindConfiguration {
			t.Errorf("KindOf() = %v, want KindConfiguration", KindOf(err))
		}
	})

	t.Run("reload replaces", func(t *testing.T) {
		m, _ := newTestManager(t)
		if err := m.LoadConfigData(ctx, []byte("connections:\n  only:\n    driver: fake\n"), "test"); err != nil {
			t.Fatalf("LoadConfigData() error = %v", err)
		}
		if got, want := m.Configs(), []string{"only"}; !reflect.DeepEqual(got, want) {
			t.Errorf("Configs() = %v, want %v", got, want)
		}
	})
}

func TestManager_CreateConnection(t *testing.T) {
	m, d := newTestManager(t)
	ctx := context.Background()

	conn, err := m.CreateConnection(ctx, "primary")
	if err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}
	if conn == nil {
		t.Fatal("CreateConnection() returned a nil connection")
	}
	if conn.IsOpen() {
		t.Error("manager-built connections must come back unopened")
	}
	if d.built != 1 {
		t.Errorf("driver builds = %d, want 1", d.built)
	}

	t.Run("unknown name", func(t *testing.T) {
		_, err := m.CreateConnection(ctx, "tertiary")
		if KindOf(err) != KindNotFound {
			t.Errorf("KindOf() = %v, want KindNotFound", KindOf(err))
		}
	})

	t.Run("config without driver", func(t *testing.T) {
		_, err := m.CreateConnection(ctx, "broken")
		if KindOf(err) != KindConfiguration {
			t.Errorf("KindOf() = %v, want KindConfiguration", KindOf(err))
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := m.CreateConnectionRaw(ctx, "oracle", Config{})
		if KindOf(err) != KindNotFound {
			t.Errorf("KindOf() = %v, want KindNotFound", KindOf(err))
		}
	})

	t.Run("driver failure", func(t *testing.T) {
		boom := NewError(KindConfiguration, 0, "missing path", false)
		failing := &fakeDriver{name: "failing", createErr: boom}
		if err := m.RegisterDriver(ctx, failing); err != nil {
			t.Fatalf("RegisterDriver() error = %v", err)
		}
		_, err := m.CreateConnectionRaw(ctx, "failing", Config{})
		if !errors.Is(err, boom) {
			t.Errorf("driver error not passed through, got %v", err)
		}
	})
}

func TestManager_CreatePoolMemoises(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	opts := PoolOptions{MaxSize: 4, WaitTimeout: time.Second, TestOnBorrow: true}

	p1, err := m.CreatePool(ctx, "primary", opts)
	if err != nil {
		t.Fatalf("CreatePool() error = %v", err)
	}
	p2, err := m.CreatePool(ctx, "primary", opts)
	if err != nil {
		t.Fatalf("second CreatePool() error = %v", err)
	}
	if p1 != p2 {
		t.Error("identical name and options should share one pool")
	}

	other, err := m.CreatePool(ctx, "secondary", opts)
	if err != nil {
		t.Fatalf("CreatePool(secondary) error = %v", err)
	}
	if other == p1 {
		t.Error("different configurations must not share a pool")
	}

	bigger := opts
	bigger.MaxSize = 8
	p3, err := m.CreatePool(ctx, "primary", bigger)
	if err != nil {
		t.Fatalf("CreatePool(bigger) error = %v", err)
	}
	if p3 == p1 {
		t.Error("different options must not share a pool")
	}
}

func TestManager_CreatePoolNormalisesOptionsBeforeKeying(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	// MinSize above MaxSize clamps to MaxSize, so these two option sets
	// are logically identical and must share a pool.
	a, err := m.CreatePool(ctx, "primary", PoolOptions{MinSize: 10, MaxSize: 2, WaitTimeout: time.Second})
	if err != nil {
		t.Fatalf("CreatePool() error = %v", err)
	}
	b, err := m.CreatePool(ctx, "primary", PoolOptions{MinSize: 2, MaxSize: 2, WaitTimeout: time.Second})
	if err != nil {
		t.Fatalf("CreatePool() error = %v", err)
	}
	if a != b {
		t.Error("options equal after clamping should share a pool")
	}
}

func TestManager_CreatePoolRawMemoises(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	opts := PoolOptions{MaxSize: 2, WaitTimeout: time.Second}

	// Same keys and values in different declaration order.
	p1, err := m.CreatePoolRaw(ctx, "fake", Config{"host": "x", "port": 1}, opts)
	if err != nil {
		t.Fatalf("CreatePoolRaw() error = %v", err)
	}
	p2, err := m.CreatePoolRaw(ctx, "fake", Config{"port": 1, "host": "x"}, opts)
	if err != nil {
		t.Fatalf("CreatePoolRaw() error = %v", err)
	}
	if p1 != p2 {
		t.Error("logically equal raw configurations should share a pool")
	}

	p3, err := m.CreatePoolRaw(ctx, "fake", Config{"host": "y", "port": 1}, opts)
	if err != nil {
		t.Fatalf("CreatePoolRaw() error = %v", err)
	}
	if p3 == p1 {
		t.Error("differing raw configurations must not share a pool")
	}
}

func TestManager_ClosedPoolIsRebuilt(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	opts := PoolOptions{MaxSize: 2, WaitTimeout: time.Second}

	p1, err := m.CreatePool(ctx, "primary", opts)
	if err != nil {
		t.Fatalf("CreatePool() error = %v", err)
	}
	p1.Shutdown()

	p2, err := m.CreatePool(ctx, "primary", opts)
	if err != nil {
		t.Fatalf("CreatePool() after shutdown error = %v", err)
	}
	if p2 == p1 {
		t.Error("a shut-down cached pool must be replaced, not returned")
	}
	if p2.Closed() {
		t.Error("replacement pool should be live")
	}
}

func TestManager_CreatePoolValidation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	t.Run("bad options", func(t *testing.T) {
		_, err := m.CreatePool(ctx, "primary", PoolOptions{MaxSize: 0})
		if KindOf(err) != KindInvalidArgument {
			t.Errorf("KindOf() = %v, want KindInvalidArgument", KindOf(err))
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := m.CreatePool(ctx, "tertiary", DefaultPoolOptions())
		if KindOf(err) != KindNotFound {
			t.Errorf("KindOf() = %v, want KindNotFound", KindOf(err))
		}
	})
}

func TestManager_PoolFactoryOpensConnections(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	pool, err := m.CreatePool(ctx, "primary", PoolOptions{MaxSize: 1, WaitTimeout: time.Second, TestOnBorrow: true})
	if err != nil {
		t.Fatalf("CreatePool() error = %v", err)
	}
	h, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer h.Close() //nolint:errcheck

	if !h.Conn().IsOpen() {
		t.Error("pooled connections must arrive open")
	}
}

func TestManager_ErrorBookkeeping(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if m.LastError() != "" {
		t.Errorf("LastError() = %q on a fresh manager, want empty", m.LastError())
	}

	m.CreateConnection(ctx, "tertiary") //nolint:errcheck
	m.CreateConnection(ctx, "broken")   //nolint:errcheck

	if m.LastError() == "" {
		t.Error("LastError() empty after failures")
	}
	counters := m.ErrorCounters()
	if counters[KindNotFound] != 1 {
		t.Errorf("ErrorCounters()[KindNotFound] = %d, want 1", counters[KindNotFound])
	}
	if counters[KindConfiguration] != 1 {
		t.Errorf("ErrorCounters()[KindConfiguration] = %d, want 1", counters[KindConfiguration])
	}

	m.ResetErrorCounters()
	if m.LastError() != "" {
		t.Error("LastError() should be cleared by ResetErrorCounters")
	}
	if len(m.ErrorCounters()) != 0 {
		t.Error("ErrorCounters() should be empty after reset")
	}
}

func TestManager_Shutdown(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	p1, err := m.CreatePool(ctx, "primary", PoolOptions{MaxSize: 2, WaitTimeout: time.Second})
	if err != nil {
		t.Fatalf("CreatePool() error = %v", err)
	}
	p2, err := m.CreatePool(ctx, "secondary", PoolOptions{MaxSize: 2, WaitTimeout: time.Second})
	if err != nil {
		t.Fatalf("CreatePool() error = %v", err)
	}

	m.Shutdown()

	if !p1.Closed() || !p2.Closed() {
		t.Error("Shutdown must close every cached pool")
	}

	// The cache was emptied, so the next request builds fresh.
	p3, err := m.CreatePool(ctx, "primary", PoolOptions{MaxSize: 2, WaitTimeout: time.Second})
	if err != nil {
		t.Fatalf("CreatePool() after Shutdown error = %v", err)
	}
	if p3 == p1 || p3.Closed() {
		t.Error("manager should serve a fresh pool after Shutdown")
	}
}
