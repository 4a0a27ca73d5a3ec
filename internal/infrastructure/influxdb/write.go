package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// ReadingMeasurement is the measurement sensor readings are written to.
const ReadingMeasurement = "sensor_reading"

// WriteReading queues one sensor reading. Tags are sensor_id and, when
// set, unit; the single field is value.
//
//	client.WriteReading("greenhouse-1", "°C", 21.5, ts)
func (c *Client) WriteReading(sensorID, unit string, value float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{"sensor_id": sensorID}
	if unit != "" {
		tags["unit"] = unit
	}

	c.writeAPI.WritePoint(write.NewPoint(
		ReadingMeasurement,
		tags,
		map[string]any{"value": value},
		ts,
	))
}

// WriteCommandOutcome queues the outcome of a device command so dashboards
// can plot command activity next to the readings it affects.
func (c *Client) WriteCommandOutcome(deviceID, action, result string, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"device_command",
		map[string]string{
			"device_id": deviceID,
			"action":    action,
			"result":    result,
		},
		map[string]any{"count": 1},
		ts,
	))
}
