package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fieldmap/internal/types"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()
	var resp APIErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestJSON_Success(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	JSON(rec, req, http.StatusOK, map[string]string{"status": "ok"})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if rec.Body.String() != `{"status":"ok"}` {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestJSON_MarshalFailure(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	JSON(rec, req, http.StatusOK, map[string]any{"bad": make(chan int)})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("code = %q", resp.Error.Code)
	}
}

func TestGeoJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	GeoJSON(rec, http.StatusOK, []byte(`{"type":"FeatureCollection","features":[]}`))

	if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Content-Type = %q, want application/geo+json", ct)
	}
	if rec.Body.String() != `{"type":"FeatureCollection","features":[]}` {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestError_AppErrorKinds(t *testing.T) {
	tests := []struct {
		code   types.ErrorCode
		status int
		kind   types.ErrorKind
	}{
		{types.ErrCodeValidationInvalidDate, http.StatusBadRequest, types.KindValidation},
		{types.ErrCodeValidationInvalidParameter, http.StatusBadRequest, types.KindValidation},
		{types.ErrCodeDataUnavailableWindow, http.StatusNotFound, types.KindDataUnavailable},
		{types.ErrCodeDataUnavailableSource, http.StatusNotFound, types.KindDataUnavailable},
		{types.ErrCodeComputationNoStations, http.StatusInternalServerError, types.KindComputation},
		{types.ErrCodeNotImplementedParameter, http.StatusNotImplemented, types.KindNotImplemented},
		{types.ErrCodeRateLimit, http.StatusTooManyRequests, types.KindRateLimited},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			ctx := types.WithRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "req-1")
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
			rec := httptest.NewRecorder()

			Error(rec, req, types.NewAppError(tt.code, "message", nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			resp := decodeError(t, rec)
			if resp.Error.Code != string(tt.code) {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.code)
			}
			if resp.Error.Kind != string(tt.kind) {
				t.Errorf("kind = %q, want %q", resp.Error.Kind, tt.kind)
			}
			if resp.Error.RequestID != "req-1" {
				t.Errorf("request_id = %q, want %q", resp.Error.RequestID, "req-1")
			}
		})
	}
}

func TestError_WithDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	err := types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidParameter, "bad param", nil,
		map[string]any{"param": "humidity"})
	Error(rec, req, err)

	resp := decodeError(t, rec)
	if resp.Error.Details["param"] != "humidity" {
		t.Errorf("details = %v", resp.Error.Details)
	}
}

func TestError_WrappedAppError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	wrapped := fmt.Errorf("handler: %w", types.NewAppError(types.ErrCodeNotImplementedParameter, "rainfall", nil))
	Error(rec, req, wrapped)

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestError_GenericErrorDoesNotLeak(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	Error(rec, req, errors.New("pq: password authentication failed for user reader"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Error.Message != "an unexpected error occurred" {
		t.Errorf("message = %q leaks internals", resp.Error.Message)
	}
	if resp.Error.Kind != string(types.KindInternal) {
		t.Errorf("kind = %q", resp.Error.Kind)
	}
}
