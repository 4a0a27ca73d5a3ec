// Package reading stores sensor readings and answers queries over them.
//
// The Store is append-only and time-ordered per sensor. Every append is
// persisted through a Repository (SQLite in production) and then published
// as a new immutable Snapshot, so readers never block and never see a
// half-applied write.
//
// The QueryEngine serves four read paths over a snapshot:
//
//	Latest  most recent reading per sensor
//	Chart   fixed-width time buckets with an aggregate (mean by default)
//	Sort    all readings by timestamp, value, id or sensor, stable
//	Search  case-insensitive text match plus optional value and time ranges
//
// Readings within a sensor are ordered by timestamp, with ties broken by
// arrival order (the store-assigned ID).
package reading
