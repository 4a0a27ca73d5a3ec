package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/iot-core/internal/history"
)

// createHistoryRequest is the body of POST /api/historyaction. Missing IDs
// and times are filled in; everything else must be supplied.
type createHistoryRequest struct {
	Command struct {
		ID       string     `json:"command_id"`
		DeviceID string     `json:"device_id"`
		Action   string     `json:"action"`
		IssuedAt *time.Time `json:"issued_at"`
		IssuedBy string     `json:"issued_by"`
	} `json:"command"`
	History *struct {
		Result      string     `json:"result"`
		CompletedAt *time.Time `json:"completed_at"`
		Detail      string     `json:"detail"`
	} `json:"history"`
}

func (req createHistoryRequest) toEntry(now time.Time) (history.DeviceCommand, *history.HistoryAction, error) {
	cmd := history.DeviceCommand{
		ID:       strings.TrimSpace(req.Command.ID),
		DeviceID: strings.TrimSpace(req.Command.DeviceID),
		Action:   strings.ToLower(strings.TrimSpace(req.Command.Action)),
		IssuedAt: now,
		IssuedBy: req.Command.IssuedBy,
	}
	if cmd.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return cmd, nil, err
		}
		cmd.ID = id.String()
	}
	if req.Command.IssuedAt != nil {
		cmd.IssuedAt = *req.Command.IssuedAt
	}

	if req.History == nil {
		return cmd, nil, nil
	}
	action := &history.HistoryAction{
		CommandID:   cmd.ID,
		Result:      history.Result(strings.ToLower(strings.TrimSpace(req.History.Result))),
		CompletedAt: now,
		Detail:      req.History.Detail,
	}
	if req.History.CompletedAt != nil {
		action.CompletedAt = *req.History.CompletedAt
	}
	return cmd, action, nil
}

type entriesResponse struct {
	Entries []history.Entry `json:"entries"`
	Count   int             `json:"count"`
}

func newEntriesResponse(es []history.Entry) entriesResponse {
	if es == nil {
		es = []history.Entry{}
	}
	return entriesResponse{Entries: es, Count: len(es)}
}

// handleListHistory returns the whole command log in issue order.
func (s *Server) handleListHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newEntriesResponse(s.history.ReadAll()))
}

// handleCreateHistory appends a command, with or without its outcome,
// directly to the log. Nothing is sent to the device.
func (s *Server) handleCreateHistory(w http.ResponseWriter, r *http.Request) {
	var req createHistoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	cmd, action, err := req.toEntry(time.Now().UTC())
	if err != nil {
		writeInternalError(w, "failed to generate command id")
		return
	}

	entry, err := s.history.Append(r.Context(), cmd, action)
	if err != nil {
		writeDomainError(w, err, "failed to append history entry")
		return
	}
	if entry.History != nil {
		s.hub.Broadcast(ChannelHistoryRecorded, entry)
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entry, err := s.history.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "failed to get history entry")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleFilterHistory filters by time range, device, result and action.
func (s *Server) handleFilterHistory(w http.ResponseWriter, r *http.Request) {
	params, err := requestParams(r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	var f history.Filter
	f.DeviceID = first(params, "device_id", "device")
	f.Action = first(params, "action")
	if raw := first(params, "result"); raw != "" {
		if f.Result, err = history.ParseResult(raw); err != nil {
			writeDomainError(w, err, "failed to filter history")
			return
		}
	}
	if f.From, err = parseTimeParam("from", first(params, "from"), false); err != nil {
		writeDomainError(w, errorfWrap(history.ErrInvalidFilter, "%v", err), "failed to filter history")
		return
	}
	if f.To, err = parseTimeParam("to", first(params, "to"), true); err != nil {
		writeDomainError(w, errorfWrap(history.ErrInvalidFilter, "%v", err), "failed to filter history")
		return
	}

	entries, err := s.historyQuery.Filter(f)
	if err != nil {
		writeDomainError(w, err, "failed to filter history")
		return
	}
	writeJSON(w, http.StatusOK, newEntriesResponse(entries))
}

// handleSearchHistory matches free text against action, device, detail and
// the formatted issue time. "time" is accepted as an alias for "query".
func (s *Server) handleSearchHistory(w http.ResponseWriter, r *http.Request) {
	params, err := requestParams(r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEntriesResponse(s.historyQuery.Search(first(params, "query", "time"))))
}
