// Package database provides SQLite connectivity for the IoT core service.
//
// This package manages:
//   - Database connection with WAL mode and foreign keys enabled
//   - Embedded schema migrations, one transaction per migration
//   - Connection lifecycle (Open at startup, Close at shutdown)
//
// SQLite has a single writer, so the pool is capped at one connection.
// Readings and command history are append-only; the schema enforces this
// with triggers that abort UPDATE and DELETE.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
