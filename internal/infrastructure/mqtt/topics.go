package mqtt

import (
	"fmt"
	"strings"
)

// Topics builds the service's MQTT topic names under a configurable prefix.
//
//	topics := mqtt.NewTopics("iot")
//	topics.DeviceCommand("device1") // iot/command/device1
type Topics struct {
	Prefix string
}

// NewTopics returns a topic builder rooted at prefix.
func NewTopics(prefix string) Topics {
	return Topics{Prefix: strings.TrimSuffix(prefix, "/")}
}

// Sensor returns the topic a sensor publishes readings to.
//
// Example: iot/sensors/greenhouse-1
func (t Topics) Sensor(sensorID string) string {
	return fmt.Sprintf("%s/sensors/%s", t.Prefix, sensorID)
}

// AllSensors matches every sensor topic, including nested sensor IDs.
func (t Topics) AllSensors() string {
	return t.Prefix + "/sensors/#"
}

// SensorID extracts the sensor ID from a sensor topic.
func (t Topics) SensorID(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, t.Prefix+"/sensors/")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// DeviceCommand returns the topic commands for a device are published to.
//
// Example: iot/command/device1
func (t Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", t.Prefix, deviceID)
}

// DeviceAck returns the topic a device acknowledges commands on.
//
// Example: iot/ack/device1
func (t Topics) DeviceAck(deviceID string) string {
	return fmt.Sprintf("%s/ack/%s", t.Prefix, deviceID)
}

// AllDeviceAcks matches every device acknowledgement topic.
func (t Topics) AllDeviceAcks() string {
	return t.Prefix + "/ack/+"
}

// SystemStatus carries the service's retained online/offline status.
func (t Topics) SystemStatus() string {
	return t.Prefix + "/system/status"
}
