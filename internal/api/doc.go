// Package api implements the HTTP REST API and WebSocket server for the IoT core.
//
// This package provides:
//   - Reading endpoints: latest, chart, sort, search and append-only CRUD
//   - Device control with the recorded outcome in the response
//   - Command history listing, filtering and search
//   - WebSocket hub broadcasting new readings and command outcomes
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// Handlers parse parameters into typed queries and hand them to the reading
// and history query engines, which work on immutable snapshots. Writes go
// through the ingestor (readings) or the device controller (commands), so
// a reading posted over HTTP is mirrored and broadcast exactly like one that
// arrived over MQTT.
//
// Query endpoints accept parameters in the URL, a JSON body, or a form body.
// Trailing slashes are optional throughout.
//
// # Append-only
//
// Readings and history entries cannot be changed once stored. PUT, PATCH and
// DELETE on a record return 405 with code "append_only".
package api
