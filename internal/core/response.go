package core

import (
	"encoding/json"
	"errors"
	"net/http"

	"fieldmap/internal/types"
)

// Content types written by the API.
const (
	contentTypeJSON    = "application/json"
	contentTypeGeoJSON = "application/geo+json"
)

// Routing failures never reach a handler, so they carry their own codes
// outside the domain taxonomy.
const (
	errCodeRouteNotFound    types.ErrorCode = "route_not_found"
	errCodeMethodNotAllowed types.ErrorCode = "route_method_not_allowed"
	kindRouting             types.ErrorKind = "routing"
)

// APIErrorResponse is the standard envelope for all error API responses.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned to clients.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON writes a JSON response with the given status code and data.
// If marshalling fails, it falls back to a 500 error response.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusInternalServerError)
		_ = writeJSON(w, APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(types.ErrCodeInternalUnexpected),
				Kind:      string(types.KindInternal),
				Message:   "failed to marshal response",
				RequestID: types.GetRequestID(r.Context()),
			},
		})
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// GeoJSON writes an already-encoded GeoJSON document.
func GeoJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", contentTypeGeoJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes an error response to the client. It inspects the error chain:
//   - If the error is (or wraps) a *types.AppError, its Code determines the
//     HTTP status and kind.
//   - Any other error is a 500 with code "internal_unexpected_error" and a
//     safe message; the original text is never exposed.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		writeError(w, r, appErr.HTTPStatus(), appErr.Code, appErr.Kind(), appErr.Message, appErr.Details)
		return
	}

	writeError(w, r, http.StatusInternalServerError,
		types.ErrCodeInternalUnexpected, types.KindInternal, "an unexpected error occurred", nil)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code types.ErrorCode, kind types.ErrorKind, message string, details map[string]any) {
	JSON(w, r, status, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Kind:      string(kind),
			Message:   message,
			Details:   details,
			RequestID: types.GetRequestID(r.Context()),
		},
	})
}
