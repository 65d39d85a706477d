package core

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"fieldmap/internal/types"
)

func newTestServerForMiddleware(t *testing.T) *Server {
	t.Helper()
	return &Server{Logger: discardLogger()}
}

// --- Recoverer Tests ---

func TestRecoverer_NoPanic(t *testing.T) {
	srv := newTestServerForMiddleware(t)

	handler := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestRecoverer_Panic_ReturnsJSON500(t *testing.T) {
	srv := newTestServerForMiddleware(t)

	handler := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("something went wrong")
	}))

	ctx := types.WithRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "req-panic")
	req := httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	resp := decodeError(t, rec)
	if resp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("expected error code %q, got %q", types.ErrCodeInternalUnexpected, resp.Error.Code)
	}
	if resp.Error.Kind != string(types.KindInternal) {
		t.Errorf("expected kind %q, got %q", types.KindInternal, resp.Error.Kind)
	}
	if resp.Error.RequestID != "req-panic" {
		t.Errorf("expected request_id %q, got %q", "req-panic", resp.Error.RequestID)
	}
}

// --- Security headers / CORS ---

func TestSecurityHeadersMiddleware_SetsHeaders(t *testing.T) {
	srv := newTestServerForMiddleware(t)
	handler := srv.SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		wantOrigin string
		wantVary   bool
	}{
		{"wildcard", []string{"*"}, "https://maps.example.com", "*", false},
		{"listed origin", []string{"https://maps.example.com"}, "https://maps.example.com", "https://maps.example.com", true},
		{"unlisted origin", []string{"https://maps.example.com"}, "https://evil.example.com", "", false},
		{"no origin header", []string{"https://maps.example.com"}, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCORSMiddleware(tt.allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/v1/map", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Vary") == "Origin"; got != tt.wantVary {
				t.Errorf("Vary: Origin present = %v, want %v", got, tt.wantVary)
			}
		})
	}
}

func TestCORSMiddleware_PreflightReturns204(t *testing.T) {
	called := false
	handler := NewCORSMiddleware([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/map", nil)
	req.Header.Set("Origin", "https://maps.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if called {
		t.Error("preflight should not reach the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
}

// --- Metrics ---

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	srv := newTestServerForMiddleware(t)
	mc := &mockMetricsCollector{}
	srv.Metrics = mc

	r := chi.NewRouter()
	r.Use(srv.MetricsMiddleware)
	r.Get("/v1/fields/{label}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/fields/temp", nil))

	if len(mc.calls) != 1 {
		t.Fatalf("expected 1 metrics call, got %d", len(mc.calls))
	}
	call := mc.calls[0]
	if call.method != http.MethodGet {
		t.Errorf("method = %q", call.method)
	}
	if call.endpoint != "/v1/fields/{label}" {
		t.Errorf("endpoint = %q, want route pattern", call.endpoint)
	}
	if call.status != "418" {
		t.Errorf("status = %q, want 418", call.status)
	}
}

func TestMetricsMiddleware_NilCollector_PassesThrough(t *testing.T) {
	srv := newTestServerForMiddleware(t)
	handler := srv.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rec.Code)
	}
}

// --- Request logger ---

func TestRequestLogger_LogsAndRedacts(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var inner *slog.Logger
	handler := RequestLogger(logger, []string{"Authorization"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = types.LoggerFromContext(r.Context(), nil)
		w.WriteHeader(http.StatusNotFound)
	}))

	ctx := types.WithRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "req-42")
	req := httptest.NewRequest(http.MethodGet, "/v1/map?param=temp", nil).WithContext(ctx)
	req.Header.Set("authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	out := buf.String()
	if strings.Contains(out, "secret-token") {
		t.Errorf("log leaks redacted header: %s", out)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("invalid log line: %v", err)
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN for 404", entry["level"])
	}
	if entry["request_id"] != "req-42" {
		t.Errorf("request_id = %v", entry["request_id"])
	}
	if entry["query"] != "param=temp" {
		t.Errorf("query = %v", entry["query"])
	}
	if inner == nil {
		t.Error("handler should receive a request-scoped logger")
	}
}

// --- Response capture / JSON helpers ---

func TestResponseCapture_WriteHeaderOnlyOnce(t *testing.T) {
	rc := &responseCapture{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	rc.WriteHeader(http.StatusBadRequest)
	rc.WriteHeader(http.StatusInternalServerError)

	if rc.statusCode != http.StatusBadRequest {
		t.Errorf("statusCode = %d, want 400", rc.statusCode)
	}
}

func TestWriteJSON_ProducesValidJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := writeJSON(rec, APIErrorResponse{Error: ErrorDetail{
		Code:      "internal_unexpected_error",
		Kind:      "internal",
		Message:   "line\nwith \"quotes\" and \\ slash",
		RequestID: "r\t1",
	}})
	if err != nil {
		t.Fatalf("writeJSON error: %v", err)
	}

	resp := decodeError(t, rec)
	if resp.Error.Message != "line\nwith \"quotes\" and \\ slash" {
		t.Errorf("message round trip = %q", resp.Error.Message)
	}
	if resp.Error.RequestID != "r\t1" {
		t.Errorf("request_id round trip = %q", resp.Error.RequestID)
	}
}
