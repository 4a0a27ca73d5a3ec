// Package influxdb mirrors sensor readings and command outcomes into an
// InfluxDB v2 bucket for long-term dashboards.
//
// The SQLite store remains the source of truth; InfluxDB is a best-effort
// copy. Writes are batched (batch_size, flush_interval in config.yaml) and
// never block ingestion.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading("greenhouse-1", "°C", 21.5, time.Now())
package influxdb
