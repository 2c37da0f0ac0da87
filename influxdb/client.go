package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushSeconds  = 10
	millisecondsInSecond = 1000
)

// Config contains InfluxDB export settings.
type Config struct {
	// Enabled toggles metrics export. When false, Connect returns
	// ErrDisabled and no exporter should be started.
	Enabled bool `yaml:"enabled"`

	// URL is the InfluxDB server address, e.g. "http://localhost:8086".
	URL string `yaml:"url"`

	// Token authenticates against the v2 API.
	Token string `yaml:"token"`

	// Org and Bucket select the write destination.
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`

	// BatchSize is the number of points buffered per write (default 100).
	BatchSize int `yaml:"batch_size"`

	// FlushInterval is the buffer flush period in seconds (default 10).
	FlushInterval int `yaml:"flush_interval"`
}

// Client writes pool-metrics points to InfluxDB.
//
// Writes are non-blocking and batched by the underlying v2 client;
// async write failures surface through the SetOnError callback. A
// zero-value Client is disconnected: writes and flushes are no-ops.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      Config

	mu        sync.RWMutex
	connected bool
	onError   func(err error)
}

// Connect builds a client from cfg, verifies the server with a ping
// and starts draining the async write-error channel.
//
// Returns ErrDisabled when export is disabled in cfg, or an error
// wrapping ErrConnectionFailed when the server is unreachable or
// reports itself unhealthy.
func Connect(cfg Config) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	raw := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))
	if err := ping(raw); err != nil {
		raw.Close()
		return nil, err
	}

	c := &Client{
		client:    raw,
		writeAPI:  raw.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:       cfg,
		connected: true,
	}
	go c.handleWriteErrors(c.writeAPI.Errors())
	return c, nil
}

// writeOptions translates cfg into v2 client options, applying the
// batching defaults for unset fields.
func writeOptions(cfg Config) *influxdb2.Options {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = defaultFlushSeconds
	}
	// #nosec G115 -- both values forced positive above
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(flush) * millisecondsInSecond)
}

// ping verifies the server answers and reports healthy.
func ping(client influxdb2.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		return fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}
	return nil
}

// handleWriteErrors forwards async write errors to the registered
// callback until the channel closes.
func (c *Client) handleWriteErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()
		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError registers a callback for asynchronous write failures.
// Writes never block, so this is the only place they are reported.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// WritePoint queues a point for the next batch write. No-op when
// disconnected.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

// Flush blocks until the write buffer drains. No-op when disconnected.
func (c *Client) Flush() {
	if c.writeAPI == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// HealthCheck pings the server. Returns ErrNotConnected when the
// client was never connected or has been closed.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// IsConnected reports the last known connection state. It does not
// probe the server; use HealthCheck for an active check.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Close flushes pending writes and shuts the underlying client down.
// Safe on a zero-value Client and safe to call more than once.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
