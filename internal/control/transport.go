package control

import (
	"context"

	"github.com/nerrad567/iot-core/internal/history"
)

// Transport delivers a command to its device.
//
// Send returns nil once the device has confirmed the command. It must
// honour ctx: when the deadline passes without an outcome it returns an
// error wrapping ErrAckTimeout or the context's error. Any other error is
// treated as a delivery failure.
type Transport interface {
	Send(ctx context.Context, cmd history.DeviceCommand) error
}

// LoopbackTransport confirms every command immediately. It stands in for
// real devices in development and tests.
type LoopbackTransport struct{}

// Send implements Transport.
func (LoopbackTransport) Send(ctx context.Context, _ history.DeviceCommand) error {
	return ctx.Err()
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, cmd history.DeviceCommand) error

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, cmd history.DeviceCommand) error {
	return f(ctx, cmd)
}
