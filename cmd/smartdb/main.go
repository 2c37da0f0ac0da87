// smartdb demo harness.
//
// Registers the SQLite and MySQL drivers, loads the connection
// configurations, then runs a short round trip against SQLite:
// schema setup, inserts inside a transaction and a parameterised
// query, all on a pooled connection. With InfluxDB enabled in the
// config, pool metrics are exported while the demo runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/smartdb-io/smartdb-core/config"
	"github.com/smartdb-io/smartdb-core/influxdb"
	"github.com/smartdb-io/smartdb-core/logging"
	"github.com/smartdb-io/smartdb-core/sdb"
	"github.com/smartdb-io/smartdb-core/sdb/mysql"
	"github.com/smartdb-io/smartdb-core/sdb/sqlite"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main so exit
// codes are handled in one place.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting smartdb demo", "version", version, "commit", commit)

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	sdb.SetEventLogger(log.With("component", "sdb"))

	m := sdb.NewManager()
	if err := m.RegisterDriver(ctx, sqlite.NewDriver()); err != nil {
		return fmt.Errorf("registering sqlite driver: %w", err)
	}
	if err := m.RegisterDriver(ctx, mysql.NewDriver()); err != nil {
		return fmt.Errorf("registering mysql driver: %w", err)
	}
	if err := m.LoadConfig(ctx, cfg.Connections.File); err != nil {
		return fmt.Errorf("loading connections: %w", err)
	}
	defer m.Shutdown()
	log.Info("connections loaded", "names", m.Configs())

	pool, err := m.CreatePool(ctx, "demo_sqlite", sdb.DefaultPoolOptions())
	if err != nil {
		return fmt.Errorf("creating pool: %w", err)
	}

	if client, cerr := influxdb.Connect(cfg.InfluxDB); cerr == nil {
		defer client.Close()
		client.SetOnError(func(err error) {
			log.Warn("influxdb write failed", "error", err)
		})
		exp := influxdb.NewExporter(client, log, cfg.MetricsInterval())
		exp.Register("demo_sqlite", pool)
		go exp.Run(ctx)
		log.Info("pool metrics export enabled", "url", cfg.InfluxDB.URL)
	} else if !errors.Is(cerr, influxdb.ErrDisabled) {
		log.Warn("influxdb unavailable, metrics export disabled", "error", cerr)
	}

	if err := demo(ctx, log, pool); err != nil {
		return err
	}

	metrics := pool.Metrics()
	log.Info("demo complete",
		"acquires", metrics.AcquireSuccesses,
		"peak_in_use", metrics.PeakInUse,
		"avg_wait_micros", metrics.AverageAcquireWaitMicros,
	)
	return nil
}

// demo runs the SQLite round trip.
func demo(ctx context.Context, log *logging.Logger, pool *sdb.Pool) error {
	ctx = sdb.WithOperation(ctx, "demo")

	h, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer h.Close()
	conn := h.Conn()

	if _, err := conn.Execute(ctx,
		"CREATE TABLE IF NOT EXISTS demo (id INTEGER PRIMARY KEY, name TEXT, score REAL)"); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := sdb.Begin(ctx, conn)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Close()

	for i, name := range []string{"alpha", "beta", "gamma"} {
		if _, err := conn.Execute(ctx,
			"INSERT OR REPLACE INTO demo (id, name, score) VALUES (?, ?, ?)",
			sdb.Int64(int64(i+1)), sdb.Text(name), sdb.Float64(float64(i)*1.5)); err != nil {
			return fmt.Errorf("inserting row: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	rows, err := sdb.QueryAll(ctx, conn,
		"SELECT id, name, score FROM demo WHERE score >= ?", sdb.Float64(0))
	if err != nil {
		return fmt.Errorf("querying: %w", err)
	}
	for _, row := range rows {
		log.Info("row",
			"id", row[0].String(), "name", row[1].String(), "score", row[2].String())
	}
	return nil
}

// getConfigPath returns the config file path from argv or the default.
func getConfigPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	return defaultConfigPath
}
