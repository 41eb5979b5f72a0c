package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"bankops/internal/analysis"
	"bankops/internal/loader"
	applog "bankops/internal/log"
	"bankops/internal/services"
	"bankops/internal/storage"
)

var (
	errRateLimited    = errors.New("rate limit exceeded")
	errUploadTooLarge = errors.New("upload too large")
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("Failed to encode JSON response", applog.FieldError, err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string, details any) {
	respondJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// describeError maps an error to a status code, a user-facing message and
// optional details.
func describeError(err error) (int, string, any) {
	var (
		schemaErr *services.SchemaError
		parseErr  *loader.ParseError
		paramErr  *paramError
		sizeErr   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &schemaErr):
		return http.StatusUnprocessableEntity, "The file does not match the expected bank export format", schemaErr.Message
	case errors.Is(err, services.ErrNoValidDates):
		return http.StatusUnprocessableEntity, "No operation has a valid date", nil
	case errors.Is(err, loader.ErrNotFound):
		return http.StatusNotFound, "Operations file not found", nil
	case errors.Is(err, storage.ErrUploadNotFound):
		return http.StatusNotFound, "Upload not found", nil
	case errors.Is(err, storage.ErrExportNotFound):
		return http.StatusNotFound, "Export not found", nil
	case errors.Is(err, loader.ErrEmptyData):
		return http.StatusBadRequest, "The operations file is empty", nil
	case errors.As(err, &parseErr), errors.Is(err, loader.ErrEncoding):
		return http.StatusBadRequest, "The operations file could not be parsed", err.Error()
	case errors.Is(err, analysis.ErrInvalidThreshold):
		return http.StatusBadRequest, "Threshold must be between 0 and 100 percent", nil
	case errors.Is(err, analysis.ErrInvalidDateRange):
		return http.StatusBadRequest, "Start date is after end date", nil
	case errors.Is(err, services.ErrInvalidOperand), errors.Is(err, services.ErrEmptyName):
		return http.StatusBadRequest, err.Error(), nil
	case errors.As(err, &paramErr):
		return http.StatusBadRequest, paramErr.Error(), nil
	case errors.As(err, &sizeErr), errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge, "The file is too large", nil
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil
	case errors.Is(err, services.ErrExportsDisabled):
		return http.StatusServiceUnavailable, "Report exports are not configured", nil
	}
	return http.StatusInternalServerError, "Internal error", nil
}

// wantsJSON reports whether the caller is an API client rather than the
// dashboard.
func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// fail writes err as JSON for API callers, or renders the dashboard with
// the message for browser requests.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message, details := describeError(err)
	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.ErrorContext(r.Context(), "Request failed", applog.FieldPath, r.URL.Path, applog.FieldError, err)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", applog.FieldPath, r.URL.Path, applog.FieldError, err)
	}

	if wantsJSON(r) {
		respondError(w, status, message, details)
		return
	}
	view := s.newView(r)
	view.Error = message
	if d, ok := details.(string); ok {
		view.ErrorDetail = d
	}
	s.render(w, r, status, view)
}
