package webservice

import (
	"encoding/json"
	"net/http"

	"github.com/marmos91/hostkit/internal/logger"
)

const (
	// ApplicationJSONUTF8 is the content type of every JSON response.
	ApplicationJSONUTF8 = "application/json; charset=utf-8"

	// ApplicationProblemJSON is the RFC 7807 problem content type.
	ApplicationProblemJSON = "application/problem+json"
)

// Problem is an RFC 7807 problem detail.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteJSON writes v as JSON with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", ApplicationJSONUTF8)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to encode JSON response", logger.KeyError, err)
	}
}

// WriteProblem writes an RFC 7807 problem for status.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	p := Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
	if r != nil {
		p.Instance = r.URL.Path
	}

	w.Header().Set("Content-Type", ApplicationProblemJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		logger.Debug("Failed to encode problem response", logger.KeyError, err)
	}
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
// On failure it writes a 400 problem and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
