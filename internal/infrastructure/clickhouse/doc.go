// Package clickhouse archives sensor readings into ClickHouse for
// analytical queries over long time ranges.
//
// Like the InfluxDB mirror, the archive is best-effort: the SQLite store is
// authoritative and a failed archive write never rejects a reading.
package clickhouse
