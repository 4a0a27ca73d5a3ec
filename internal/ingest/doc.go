// Package ingest accepts sensor readings from MQTT and the HTTP API and
// feeds them into the reading store.
//
// Sensors publish to <prefix>/sensors/<sensorId>. A payload is either a
// single reading ({"value":21.5,"unit":"°C"}), a bare number, or a
// multi-measure object ({"temperature":25,"humidity":40,"light":99}) that
// is expanded to one reading per field under <sensorId>/<field>.
//
// Accepted readings are mirrored to optional sinks (InfluxDB, ClickHouse)
// and announced to listeners such as the WebSocket hub.
package ingest
