package api

import (
	"errors"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/iot-core/internal/reading"
)

// createReadingRequest is the body of POST /api/datasensor.
type createReadingRequest struct {
	SensorID  string   `json:"sensor_id"`
	Value     *float64 `json:"value"`
	Unit      string   `json:"unit"`
	Timestamp string   `json:"timestamp"`
}

func (req createReadingRequest) toReading() (reading.SensorReading, error) {
	r := reading.SensorReading{
		SensorID: strings.TrimSpace(req.SensorID),
		Unit:     strings.TrimSpace(req.Unit),
	}
	if r.SensorID == "" {
		return r, errors.New("sensor_id is required")
	}
	if req.Value == nil {
		return r, errors.New("value is required")
	}
	r.Value = *req.Value
	ts, err := parseTimeParam("timestamp", strings.TrimSpace(req.Timestamp), false)
	if err != nil {
		return r, err
	}
	if ts != nil {
		r.Timestamp = *ts
	}
	return r, nil
}

type readingsResponse struct {
	Readings []reading.SensorReading `json:"readings"`
	Count    int                     `json:"count"`
}

func newReadingsResponse(rs []reading.SensorReading) readingsResponse {
	if rs == nil {
		rs = []reading.SensorReading{}
	}
	return readingsResponse{Readings: rs, Count: len(rs)}
}

type chartResponse struct {
	SensorID  string            `json:"sensor_id"`
	Aggregate reading.Aggregate `json:"aggregate"`
	Width     string            `json:"bucket"`
	Buckets   []reading.Bucket  `json:"buckets"`
}

// handleListReadings returns every reading, or one sensor's with ?sensor_id=.
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	sensorID := strings.TrimSpace(r.URL.Query().Get("sensor_id"))
	writeJSON(w, http.StatusOK, newReadingsResponse(s.readings.ReadAll(sensorID)))
}

// handleCreateReading appends a reading through the ingestor so it is
// mirrored and broadcast like one received over MQTT.
func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	var req createReadingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	rd, err := req.toReading()
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	stored, err := s.ingestor.Ingest(r.Context(), rd)
	if err != nil {
		s.logger.Debug("reading rejected", "sensor_id", rd.SensorID, "error", err)
		writeDomainError(w, err, "failed to store reading")
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "reading id must be an integer")
		return
	}
	rd, err := s.readings.Get(id)
	if err != nil {
		writeDomainError(w, err, "failed to get reading")
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

// handleLatest returns the latest reading of one sensor, or of every sensor.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	sensorID := strings.TrimSpace(r.URL.Query().Get("sensor_id"))
	rs, err := s.readingQuery.Latest(sensorID)
	if err != nil {
		writeDomainError(w, err, "failed to get latest readings")
		return
	}
	writeJSON(w, http.StatusOK, newReadingsResponse(rs))
}

// handleChart buckets one sensor's readings for plotting.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sensorID := strings.TrimSpace(q.Get("sensor_id"))
	if sensorID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "sensor_id is required")
		return
	}

	b, err := parseBucketing(q.Get("bucket"), q.Get("aggregate"), q.Get("limit"), q.Get("from"), q.Get("to"))
	if err != nil {
		writeDomainError(w, err, "failed to build chart")
		return
	}

	seq, err := s.readingQuery.Chart(sensorID, b)
	if err != nil {
		writeDomainError(w, err, "failed to build chart")
		return
	}

	buckets := slices.Collect(seq)
	if buckets == nil {
		buckets = []reading.Bucket{}
	}
	width := b.Width
	if width == 0 {
		width = reading.DefaultBucketWidth
	}
	writeJSON(w, http.StatusOK, chartResponse{
		SensorID:  sensorID,
		Aggregate: b.Aggregate,
		Width:     width.String(),
		Buckets:   buckets,
	})
}

// parseBucketing accepts a bucket width as a Go duration ("5m") or whole
// seconds ("300").
func parseBucketing(bucket, agg, limit, from, to string) (reading.Bucketing, error) {
	var b reading.Bucketing
	var err error

	if bucket = strings.TrimSpace(bucket); bucket != "" {
		if secs, convErr := strconv.ParseInt(bucket, 10, 64); convErr == nil {
			if secs > math.MaxInt64/int64(time.Second) {
				return b, errorfWrap(reading.ErrInvalidBucketing, "bucket: width %q out of range", bucket)
			}
			b.Width = time.Duration(secs) * time.Second
		} else if b.Width, err = time.ParseDuration(bucket); err != nil {
			return b, errorfWrap(reading.ErrInvalidBucketing, "bucket: invalid width %q", bucket)
		}
		if b.Width <= 0 {
			return b, errorfWrap(reading.ErrInvalidBucketing, "bucket: width must be positive")
		}
	}
	if b.Aggregate, err = reading.ParseAggregate(agg); err != nil {
		return b, err
	}
	if b.Limit, err = parseIntParam("limit", strings.TrimSpace(limit)); err != nil {
		return b, errorfWrap(reading.ErrInvalidBucketing, "%v", err)
	}
	if b.From, err = parseTimeParam("from", strings.TrimSpace(from), false); err != nil {
		return b, errorfWrap(reading.ErrInvalidBucketing, "%v", err)
	}
	if b.To, err = parseTimeParam("to", strings.TrimSpace(to), true); err != nil {
		return b, errorfWrap(reading.ErrInvalidBucketing, "%v", err)
	}
	return b, nil
}

// handleSortReadings orders every reading by field/attribute and
// direction/type.
func (s *Server) handleSortReadings(w http.ResponseWriter, r *http.Request) {
	params, err := requestParams(r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	field, err := reading.ParseSortField(first(params, "field", "attribute"))
	if err != nil {
		writeDomainError(w, err, "failed to sort readings")
		return
	}
	dir, err := reading.ParseSortDirection(first(params, "direction", "type"))
	if err != nil {
		writeDomainError(w, err, "failed to sort readings")
		return
	}

	rs, err := s.readingQuery.Sort(reading.SortCriteria{Field: field, Direction: dir})
	if err != nil {
		writeDomainError(w, err, "failed to sort readings")
		return
	}
	writeJSON(w, http.StatusOK, newReadingsResponse(rs))
}

// handleSearchReadings runs a free-text and range search over readings.
func (s *Server) handleSearchReadings(w http.ResponseWriter, r *http.Request) {
	params, err := requestParams(r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	q, err := parseSearchQuery(params)
	if err != nil {
		writeDomainError(w, err, "failed to search readings")
		return
	}

	rs, err := s.readingQuery.Search(q)
	if err != nil {
		writeDomainError(w, err, "failed to search readings")
		return
	}
	writeJSON(w, http.StatusOK, newReadingsResponse(rs))
}

func parseSearchQuery(vals url.Values) (reading.SearchQuery, error) {
	var q reading.SearchQuery
	var err error

	q.Text = first(vals, "search", "q")

	// The dashboard names a single field as "type".
	names := list(vals, "fields")
	if len(names) == 0 {
		names = list(vals, "type")
	}
	for _, f := range names {
		field, err := reading.ParseSearchField(f)
		if err != nil {
			return q, err
		}
		q.Fields = append(q.Fields, field)
	}
	if q.Exact, err = parseBoolParam("exact", first(vals, "exact")); err != nil {
		return q, errorfWrap(reading.ErrInvalidSearch, "%v", err)
	}
	if q.MinValue, err = parseFloatParam("min_value", first(vals, "min_value")); err != nil {
		return q, errorfWrap(reading.ErrInvalidSearch, "%v", err)
	}
	if q.MaxValue, err = parseFloatParam("max_value", first(vals, "max_value")); err != nil {
		return q, errorfWrap(reading.ErrInvalidSearch, "%v", err)
	}
	if q.From, err = parseTimeParam("from", first(vals, "from"), false); err != nil {
		return q, errorfWrap(reading.ErrInvalidSearch, "%v", err)
	}
	if q.To, err = parseTimeParam("to", first(vals, "to"), true); err != nil {
		return q, errorfWrap(reading.ErrInvalidSearch, "%v", err)
	}
	return q, nil
}
