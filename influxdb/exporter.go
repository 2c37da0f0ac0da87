package influxdb

import (
	"context"
	"sync"
	"time"

	"github.com/smartdb-io/smartdb-core/logging"
	"github.com/smartdb-io/smartdb-core/sdb"
)

// poolMeasurement is the measurement name for pool snapshots.
const poolMeasurement = "pool_metrics"

// Exporter periodically snapshots registered connection pools and
// writes one point per pool.
//
// Thread Safety:
//   - Register and Unregister may be called while Run is active.
type Exporter struct {
	client   *Client
	log      *logging.Logger
	interval time.Duration

	mu    sync.Mutex
	pools map[string]*sdb.Pool
}

// NewExporter builds an exporter over an established client.
// Intervals below one second are raised to one second.
func NewExporter(client *Client, log *logging.Logger, interval time.Duration) *Exporter {
	if interval < time.Second {
		interval = time.Second
	}
	return &Exporter{
		client:   client,
		log:      log.With("component", "influxdb_exporter"),
		interval: interval,
		pools:    make(map[string]*sdb.Pool),
	}
}

// Register adds a pool under the given name. Registering the same
// name again replaces the previous pool.
func (e *Exporter) Register(name string, pool *sdb.Pool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pools[name] = pool
}

// Unregister removes a pool from export.
func (e *Exporter) Unregister(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pools, name)
}

// Run exports snapshots on the configured interval until ctx is
// cancelled, then flushes the write buffer. Blocking; run it on its
// own goroutine.
func (e *Exporter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.Info("exporter started", "interval", e.interval.String())
	for {
		select {
		case <-ctx.Done():
			e.export()
			e.client.Flush()
			e.log.Info("exporter stopped")
			return
		case <-ticker.C:
			e.export()
		}
	}
}

// export writes one point per registered pool. Pools that have shut
// down are dropped from the registry.
func (e *Exporter) export() {
	e.mu.Lock()
	snapshot := make(map[string]*sdb.Pool, len(e.pools))
	for name, pool := range e.pools {
		if pool.Closed() {
			delete(e.pools, name)
			continue
		}
		snapshot[name] = pool
	}
	e.mu.Unlock()

	for name, pool := range snapshot {
		m := pool.Metrics()
		e.client.WritePoint(poolMeasurement,
			map[string]string{"pool": name},
			map[string]interface{}{
				"total":                       m.Total,
				"idle":                        m.Idle,
				"in_use":                      m.InUse,
				"peak_in_use":                 m.PeakInUse,
				"acquire_attempts":            int64(m.AcquireAttempts),
				"acquire_successes":           int64(m.AcquireSuccesses),
				"acquire_failures":            int64(m.AcquireFailures),
				"acquire_timeouts":            int64(m.AcquireTimeouts),
				"wait_events":                 int64(m.WaitEvents),
				"factory_failures":            int64(m.FactoryFailures),
				"total_acquire_wait_micros":   int64(m.TotalAcquireWaitMicros),
				"average_acquire_wait_micros": int64(m.AverageAcquireWaitMicros),
			})
	}
}
