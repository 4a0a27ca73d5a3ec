package control

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nerrad567/iot-core/internal/infrastructure/config"
)

// Device is one controllable device and the actions it accepts.
type Device struct {
	ID      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	Actions []string `json:"actions"`
}

// Catalog is the fixed set of devices commands may target.
type Catalog struct {
	devices []Device
	byID    map[string]int
}

// NewCatalog builds a catalog from configuration. Actions are normalised
// to lower case.
func NewCatalog(devices []config.DeviceConfig) *Catalog {
	c := &Catalog{byID: make(map[string]int, len(devices))}
	for _, d := range devices {
		dev := Device{ID: d.ID, Name: d.Name}
		for _, a := range d.Actions {
			dev.Actions = append(dev.Actions, normaliseAction(a))
		}
		c.byID[d.ID] = len(c.devices)
		c.devices = append(c.devices, dev)
	}
	return c
}

func normaliseAction(a string) string {
	return strings.ToLower(strings.TrimSpace(a))
}

// Devices returns the catalog in configuration order.
func (c *Catalog) Devices() []Device {
	return slices.Clone(c.devices)
}

// Lookup returns the device with the given ID.
func (c *Catalog) Lookup(deviceID string) (Device, bool) {
	i, ok := c.byID[deviceID]
	if !ok {
		return Device{}, false
	}
	return c.devices[i], true
}

// Validate checks that the device exists and supports action, returning
// the normalised action.
func (c *Catalog) Validate(deviceID, action string) (string, error) {
	dev, ok := c.Lookup(strings.TrimSpace(deviceID))
	if !ok {
		return "", fmt.Errorf("%w: unknown device %q", ErrInvalidCommand, deviceID)
	}
	a := normaliseAction(action)
	if !slices.Contains(dev.Actions, a) {
		return "", fmt.Errorf("%w: device %q does not support action %q", ErrInvalidCommand, dev.ID, action)
	}
	return a, nil
}
