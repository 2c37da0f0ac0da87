// Package influxdb exports connection-pool metrics to InfluxDB.
//
// A Client wraps the InfluxDB v2 client with non-blocking batched
// writes; an Exporter snapshots registered pools on an interval and
// writes one point per pool.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil { ... }
//	defer client.Close()
//
//	exp := influxdb.NewExporter(client, log, 10*time.Second)
//	exp.Register("my_sqlite", pool)
//	go exp.Run(ctx)
package influxdb
