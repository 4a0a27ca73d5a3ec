// Package history keeps the audit trail of device commands.
//
// Every command sent to a device is appended to the Log together with, once
// known, a HistoryAction describing the outcome (success, failure or
// pending). The log is append-only: an outcome can be attached to a command
// exactly once, and neither commands nor outcomes are ever modified.
//
// The QueryEngine filters the log by time range, device, action and result,
// and searches it by free text. Both return entries in ascending issued_at
// order.
package history
