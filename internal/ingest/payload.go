package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/iot-core/internal/reading"
)

// ParsePayload turns one sensor message into readings.
//
// Accepted forms:
//
//	21.5                                           bare value
//	{"value":21.5,"unit":"°C","timestamp":"..."}   single reading
//	{"temperature":25,"humidity":40,"light":99}    multi-measure
//
// A multi-measure object yields one reading per numeric field, with sensor
// ID <sensorID>/<field> and the unit configured for the field. Non-numeric
// fields other than timestamp are ignored. A missing timestamp is left zero
// so the store stamps arrival time.
func ParsePayload(sensorID string, payload []byte, units map[string]string) ([]reading.SensorReading, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidPayload)
	}

	if payload[0] != '{' {
		v, err := parseNumber(payload)
		if err != nil {
			return nil, err
		}
		return []reading.SensorReading{{SensorID: sensorID, Value: v}}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	var ts time.Time
	if raw, ok := fields["timestamp"]; ok {
		t, err := parseTimestamp(raw)
		if err != nil {
			return nil, err
		}
		ts = t
	}

	if raw, ok := fields["value"]; ok {
		v, err := parseNumber(raw)
		if err != nil {
			return nil, err
		}
		var unit string
		if rawUnit, ok := fields["unit"]; ok {
			if err := json.Unmarshal(rawUnit, &unit); err != nil {
				return nil, fmt.Errorf("%w: unit must be a string", ErrInvalidPayload)
			}
		}
		return []reading.SensorReading{{SensorID: sensorID, Timestamp: ts, Value: v, Unit: unit}}, nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if name != "timestamp" {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var out []reading.SensorReading
	for _, name := range names {
		v, err := parseNumber(fields[name])
		if err != nil {
			continue
		}
		out = append(out, reading.SensorReading{
			SensorID:  sensorID + "/" + name,
			Timestamp: ts,
			Value:     v,
			Unit:      units[name],
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no numeric fields", ErrInvalidPayload)
	}
	return out, nil
}

func parseNumber(raw []byte) (float64, error) {
	v, err := strconv.ParseFloat(string(bytes.TrimSpace(raw)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidPayload, raw)
	}
	return v, nil
}

// parseTimestamp accepts RFC 3339, "2006-01-02 15:04:05" (UTC) or unix seconds.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		secs, err := parseNumber(raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timestamp must be a string or unix seconds", ErrInvalidPayload)
		}
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
	}

	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(reading.TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised timestamp %q", ErrInvalidPayload, s)
}
