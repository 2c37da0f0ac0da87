package influxdb

import (
	"context"
	"errors"
	"testing"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(Config{Enabled: false, URL: "http://localhost:8086", Token: "tok"})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(Config{
		Enabled: true,
		URL:     "http://127.0.0.1:1",
		Token:   "tok",
		Org:     "smartdb",
		Bucket:  "metrics",
	})
	if err == nil {
		t.Fatal("Connect() should fail when no server is listening")
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want it to wrap ErrConnectionFailed", err)
	}
}

func TestClient_Disconnected(t *testing.T) {
	c := &Client{}

	if c.IsConnected() {
		t.Error("IsConnected() = true on a zero client")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil on a zero client", err)
	}

	// Writes and flushes on a disconnected client are silent no-ops.
	c.WritePoint("pool_metrics", map[string]string{"pool": "x"}, map[string]interface{}{"total": 1})
	c.Flush()
}

func TestClient_SetOnError(t *testing.T) {
	c := &Client{}

	called := false
	c.SetOnError(func(err error) { called = true })

	ch := make(chan error, 1)
	ch <- errors.New("write failed")
	close(ch)
	c.handleWriteErrors(ch)

	if !called {
		t.Error("error callback not invoked for an async write error")
	}
}
