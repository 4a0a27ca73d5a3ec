package reading

import (
	"time"
)

// TimeLayout is the human form of a timestamp used by search and by
// operators typing times into the dashboard.
const TimeLayout = "2006-01-02 15:04:05"

// SensorReading is one measurement reported by a sensor.
//
// Readings are immutable once stored. ID is assigned by the store in arrival
// order and breaks ties between equal timestamps.
type SensorReading struct {
	ID        int64     `json:"id"`
	SensorID  string    `json:"sensor_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
}

// compareStoreOrder orders readings by timestamp, then by arrival (ID).
func compareStoreOrder(a, b SensorReading) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
