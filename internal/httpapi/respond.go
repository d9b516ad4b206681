package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"davbridge/internal/bridge"
	"davbridge/internal/dav"
	"davbridge/internal/httpapi/middleware"
	"davbridge/internal/models"
	"davbridge/internal/webhook"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// handleError maps domain errors to HTTP responses. Anything unknown is an
// upstream failure.
func handleError(log *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, bridge.ErrInvalidUID):
		writeError(w, http.StatusBadRequest, "invalid identifier")
	case errors.Is(err, bridge.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, bridge.ErrNotFound), errors.Is(err, webhook.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, dav.ErrNoCollection):
		writeError(w, http.StatusServiceUnavailable, "collection not configured")
	case errors.Is(err, context.DeadlineExceeded):
		log.WarnContext(r.Context(), "upstream timeout",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromCtx(r.Context())),
		)
		writeError(w, http.StatusGatewayTimeout, "upstream timeout")
	default:
		log.ErrorContext(r.Context(), "upstream failure",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromCtx(r.Context())),
		)
		writeError(w, http.StatusBadGateway, "upstream failure")
	}
}

// decodeBody reads a JSON body into v, writing the error response itself.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// timeWindow parses the start and end query parameters as RFC 3339.
func timeWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be an RFC 3339 timestamp")
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be an RFC 3339 timestamp")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
