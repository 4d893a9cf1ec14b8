package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/avstrong/hotel/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

var errBadBody = errors.New("malformed request body")

type errorResponse struct {
	Error     string              `json:"error"`
	Fields    map[string][]string `json:"fields,omitempty"`
	Conflicts []int64             `json:"conflicts,omitempty"`
}

func statusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrConflict:
		return http.StatusConflict
	case domain.ErrInvalidState:
		return http.StatusUnprocessableEntity
	case domain.ErrInvalidInput:
		return http.StatusBadRequest
	case domain.ErrPrematureAction:
		return http.StatusTooEarly
	}

	if errors.Is(err, errBadBody) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.LogErrorf("Could not encode response: %v", err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)

	if status == http.StatusInternalServerError {
		s.l.LogErrorf("Request %s %s failed: %v", r.Method, r.URL.Path, err.Error())
		s.writeJSON(w, status, errorResponse{Error: http.StatusText(status)}) //nolint:exhaustruct

		return
	}

	resp := errorResponse{Error: err.Error()} //nolint:exhaustruct

	if inputErr := domain.IsInputError(err); inputErr != nil {
		resp.Fields = inputErr.Fields()
	}

	if availabilityErr := domain.IsAvailabilityError(err); availabilityErr != nil {
		resp.Conflicts = availabilityErr.Conflicts
	}

	s.writeJSON(w, status, resp)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadBody, err)
	}

	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.InvalidInputf("", "id must be a positive integer, got %q", r.PathValue("id"))
	}

	return id, nil
}

// day parses YYYY-MM-DD, or RFC 3339 for clients that send full timestamps. Either way it
// holds UTC midnight of the calendar day written by the client.
type day struct {
	time.Time
}

func (d *day) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}

	t, err := parseDay(s)
	if err != nil {
		return err
	}

	d.Time = t

	return nil
}

func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, domain.InvalidInputf("", "date %q must be YYYY-MM-DD", s)
	}

	// The calendar day is the one at the sender's offset, not the UTC one.
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func queryDay(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}

	return parseDay(v)
}

// queryID reads an optional positive id from the query string; absent means 0.
func queryID(r *http.Request, key string) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}

	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.InvalidInputf("", "%s must be a positive integer, got %q", key, v)
	}

	return id, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, domain.InvalidInputf("", "%s must be true or false, got %q", key, v)
	}

	return b, nil
}

func queryRequired(r *http.Request, key string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return "", domain.InvalidInputf("", "provide %s", key)
	}

	return v, nil
}
