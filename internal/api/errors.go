package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lumenfleet/lumen-core/internal/fleetapi"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeInternal    = "internal_error"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeUpstream    = "upstream_error"
	ErrCodeUnavailable = "upstream_unavailable"
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

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeDispatchError maps a fleet service failure onto an HTTP status.
//
// The caller's request was well-formed; the upstream write is what
// failed, so everything maps into the 4xx/5xx upstream range:
// throttling propagates as 429, an unreachable service as 503, and
// anything else (including a rejected engine credential) as 502.
func writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fleetapi.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "fleet service throttled the request")
	case errors.Is(err, fleetapi.ErrUnreachable):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "fleet service unreachable")
	case errors.Is(err, fleetapi.ErrUnauthorized):
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, "fleet service rejected the engine credential")
	default:
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, "fleet service write failed")
	}
}
