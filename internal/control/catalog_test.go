package control

import (
	"errors"
	"testing"

	"github.com/nerrad567/iot-core/internal/infrastructure/config"
)

func testCatalog() *Catalog {
	return NewCatalog([]config.DeviceConfig{
		{ID: "device1", Name: "Air conditioner", Actions: []string{"on", "off"}},
		{ID: "device2", Name: "Light", Actions: []string{"ON", " Off "}},
	})
}

func TestCatalog_Validate(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		name       string
		deviceID   string
		action     string
		wantAction string
		wantErr    error
	}{
		{"valid", "device1", "on", "on", nil},
		{"action case folded", "device1", "OFF", "off", nil},
		{"configured upper case", "device2", "on", "on", nil},
		{"configured with spaces", "device2", "off", "off", nil},
		{"device id trimmed", " device1 ", "on", "on", nil},
		{"unknown device", "device9", "on", "", ErrInvalidCommand},
		{"unsupported action", "device1", "dim", "", ErrInvalidCommand},
		{"empty device", "", "on", "", ErrInvalidCommand},
		{"empty action", "device1", "", "", ErrInvalidCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Validate(tt.deviceID, tt.action)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.wantAction {
				t.Errorf("Validate() = %q, want %q", got, tt.wantAction)
			}
		})
	}
}

func TestCatalog_Devices(t *testing.T) {
	c := testCatalog()

	devs := c.Devices()
	if len(devs) != 2 || devs[0].ID != "device1" || devs[1].ID != "device2" {
		t.Fatalf("Devices() = %+v, want device1, device2 in order", devs)
	}
	devs[0].ID = "mutated"
	if d, ok := c.Lookup("device1"); !ok || d.Name != "Air conditioner" {
		t.Errorf("Lookup(device1) = %+v, %v after mutating Devices() result", d, ok)
	}
	if _, ok := c.Lookup("mutated"); ok {
		t.Error("Devices() exposed internal state")
	}
}
