package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/iot-core/internal/control"
	"github.com/nerrad567/iot-core/internal/history"
)

// controlResponse is the body returned by POST /api/device.
type controlResponse struct {
	DeviceID string `json:"device_id"`
	Action   string `json:"action"`
	history.HistoryAction
}

// handleListDevices returns the device catalog.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.controller.Catalog().Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleControlDevice dispatches a command and reports its recorded outcome:
// 200 on success, 202 while unacknowledged, 502 when the transport failed.
func (s *Server) handleControlDevice(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		writeDecodeError(w, err)
		return
	}
	req, err := parseControlRequest(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	outcome, err := s.controller.Dispatch(r.Context(), req)
	if err != nil && !errors.Is(err, control.ErrDeviceTransportFailure) {
		writeDomainError(w, err, "failed to dispatch command")
		return
	}

	status := http.StatusOK
	switch outcome.Result {
	case history.ResultPending:
		status = http.StatusAccepted
	case history.ResultFailure:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, controlResponse{
		DeviceID:      strings.TrimSpace(req.DeviceID),
		Action:        strings.ToLower(strings.TrimSpace(req.Action)),
		HistoryAction: outcome,
	})
}

// parseControlRequest accepts {"device_id":"device1","action":"on"} or the
// dashboard's older single-pair form {"device1":"on"}.
func parseControlRequest(raw map[string]json.RawMessage) (control.Request, error) {
	var req control.Request
	if _, typed := raw["device_id"]; typed {
		for key, dst := range map[string]*string{
			"device_id": &req.DeviceID,
			"action":    &req.Action,
			"issued_by": &req.IssuedBy,
		} {
			v, ok := raw[key]
			if !ok {
				continue
			}
			if err := json.Unmarshal(v, dst); err != nil {
				return req, errors.New(key + " must be a string")
			}
		}
		return req, nil
	}

	if len(raw) != 1 {
		return req, errors.New(`body must be {"device_id":..., "action":...} or {"<device>":"<action>"}`)
	}
	for deviceID, v := range raw {
		req.DeviceID = deviceID
		if err := json.Unmarshal(v, &req.Action); err != nil {
			return req, errors.New("action for " + deviceID + " must be a string")
		}
	}
	return req, nil
}
