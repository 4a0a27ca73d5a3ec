package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// errBodyTooLarge is returned by decoders when MaxBytesReader trips.
var errBodyTooLarge = errors.New("request body too large")

// Accepted forms for time parameters. Date-only values are whole days.
const (
	paramTimeLayout = "2006-01-02 15:04:05"
	paramDateLayout = "2006-01-02"
)

// requestParams merges URL query parameters with a POST body so query
// endpoints accept both styles. JSON bodies are flattened one level:
// arrays become repeated values, scalars their text form. Body values win
// over query values of the same name.
func requestParams(r *http.Request) (url.Values, error) {
	params := url.Values{}
	for k, v := range r.URL.Query() {
		params[k] = v
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return params, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")) //nolint:errcheck // empty or malformed falls through to JSON
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return nil, decodeError(err)
		}
		for k, v := range r.PostForm {
			params[k] = v
		}
		return params, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, decodeError(err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return params, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
		case []any:
			params.Del(k)
			for _, item := range val {
				params.Add(k, scalarText(item))
			}
		default:
			params.Set(k, scalarText(val))
		}
	}
	return params, nil
}

func scalarText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, _ := json.Marshal(val) //nolint:errcheck // values came from json.Unmarshal
		return string(b)
	}
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return decodeError(err)
	}
	return nil
}

func decodeError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errBodyTooLarge
	}
	return fmt.Errorf("invalid request body: %w", err)
}

// writeDecodeError reports a request body that could not be read.
func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, err.Error())
		return
	}
	writeBadRequest(w, err.Error())
}

// errorfWrap wraps sentinel with a formatted message so errors.Is still
// matches while the client sees the detail.
func errorfWrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
}

// first returns the first non-empty value among the given parameter names.
func first(params url.Values, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(params.Get(n)); v != "" {
			return v
		}
	}
	return ""
}

// list returns values for name, splitting comma-separated entries.
func list(params url.Values, name string) []string {
	var out []string
	for _, v := range params[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseTimeParam parses RFC3339, "2006-01-02 15:04:05" (UTC) or a bare
// date. A bare date used as an upper bound means the end of that day.
func parseTimeParam(name, raw string, upper bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(paramTimeLayout, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(paramDateLayout, raw); err == nil {
		if upper {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return &t, nil
	}
	return nil, fmt.Errorf("%s: invalid time %q (use RFC3339, %q or %q)", name, raw, paramTimeLayout, paramDateLayout)
}

func parseFloatParam(name, raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid number %q", name, raw)
	}
	return &f, nil
}

func parseBoolParam(name, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", name, raw)
	}
	return b, nil
}

func parseIntParam(name, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: must be a non-negative integer, got %q", name, raw)
	}
	return n, nil
}
