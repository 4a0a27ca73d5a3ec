// Package control dispatches commands to devices.
//
// A command is validated against the configured device catalog, appended to
// the command log, sent through a Transport under a deadline, and its
// outcome (success, failure or pending) is recorded in the log. Every
// accepted command therefore ends up in the history, even when the device
// never answers.
//
// Two transports are provided: MQTTTransport, which publishes to
// <prefix>/command/<deviceId> and waits for <prefix>/ack/<deviceId>, and
// LoopbackTransport for development without devices.
package control
