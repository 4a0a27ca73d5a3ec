package control

import "errors"

// Domain errors for device control. Use errors.Is() to check for these.
var (
	// ErrInvalidCommand is returned for an unknown device or an action the
	// device does not support.
	ErrInvalidCommand = errors.New("control: invalid command")

	// ErrDeviceTransportFailure is returned when the transport reports that
	// the command could not be delivered or was rejected by the device.
	ErrDeviceTransportFailure = errors.New("control: device transport failure")

	// ErrAckTimeout is returned by a transport when no acknowledgement
	// arrived before the dispatch deadline. The outcome is pending.
	ErrAckTimeout = errors.New("control: acknowledgement timeout")
)
