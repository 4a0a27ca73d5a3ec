package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/iot-core/internal/control"
	"github.com/nerrad567/iot-core/internal/history"
	"github.com/nerrad567/iot-core/internal/reading"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeConflict        = "conflict"
	ErrCodeInternal        = "internal_error"
	ErrCodeValidation      = "validation_error"
	ErrCodeMethodNotAllow  = "method_not_allowed"
	ErrCodeAppendOnly      = "append_only"
	ErrCodeDeviceTransport = "device_transport_failure"
	ErrCodePayloadTooLarge = "payload_too_large"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps a domain error to its HTTP status. Validation
// messages are passed through; anything unrecognised becomes a 500 with
// the generic message so storage details do not leak.
func writeDomainError(w http.ResponseWriter, err error, internalMsg string) {
	switch {
	case errors.Is(err, reading.ErrNotFound), errors.Is(err, history.ErrNotFound):
		writeNotFound(w, err.Error())

	case errors.Is(err, reading.ErrInvalidReading),
		errors.Is(err, reading.ErrInvalidSortKey),
		errors.Is(err, reading.ErrInvalidBucketing),
		errors.Is(err, reading.ErrInvalidSearch),
		errors.Is(err, history.ErrInvalidCommand),
		errors.Is(err, history.ErrInvalidHistory),
		errors.Is(err, history.ErrOrphanHistory),
		errors.Is(err, history.ErrInvalidFilter),
		errors.Is(err, control.ErrInvalidCommand):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())

	case errors.Is(err, reading.ErrOutOfOrderReading),
		errors.Is(err, history.ErrCommandExists),
		errors.Is(err, history.ErrHistoryExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())

	case errors.Is(err, control.ErrDeviceTransportFailure):
		writeError(w, http.StatusBadGateway, ErrCodeDeviceTransport, err.Error())

	default:
		writeInternalError(w, internalMsg)
	}
}

// handleAppendOnly rejects attempts to modify or delete stored records.
func handleAppendOnly(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", "GET, POST")
	writeError(w, http.StatusMethodNotAllowed, ErrCodeAppendOnly, "records are append-only and cannot be modified or deleted")
}

func handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeNotFound(w, "no such endpoint")
}
