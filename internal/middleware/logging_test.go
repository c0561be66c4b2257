package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

// newLoggedRouter mounts Logger the way the API does: at the root, ahead of
// route matching.
func newLoggedRouter(buf *bytes.Buffer, status int) http.Handler {
	logger := slog.New(slog.NewJSONHandler(buf, nil))

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Route("/api", func(r chi.Router) {
		r.Get("/user/{key}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		r.Post("/user/{key}/gemini-call", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
	})
	return r
}

// TestLogging_KeyRedaction ensures account keys in the path are never logged.
func TestLogging_KeyRedaction(t *testing.T) {
	t.Parallel()

	const key = "TEST9F8E7D6C5B4A39281706F5E4D3C2B1A0"

	var buf bytes.Buffer
	router := newLoggedRouter(&buf, http.StatusOK)

	for _, path := range []string{"/api/user/" + key, "/api/user/" + key + "/gemini-call"} {
		method := http.MethodGet
		if strings.HasSuffix(path, "gemini-call") {
			method = http.MethodPost
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	}

	logOutput := buf.String()
	if strings.Contains(logOutput, key) {
		t.Errorf("log output contains the full account key:\n%s", logOutput)
	}
	if !strings.Contains(logOutput, `"path":"/api/user/{key}"`) {
		t.Errorf("expected route pattern in log output:\n%s", logOutput)
	}
	if !strings.Contains(logOutput, `"key_hint":"`) {
		t.Errorf("expected key_hint in log output:\n%s", logOutput)
	}
}

// TestLogging_BasicFields verifies that expected non-sensitive fields are logged.
func TestLogging_BasicFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	router := newLoggedRouter(&buf, http.StatusCreated)

	req := httptest.NewRequest(http.MethodPost, "/api/user/TESTA/gemini-call", nil)
	req.Header.Set("User-Agent", "TestBrowser/2.0")
	req.Header.Set(RequestIDHeader, "req-123")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	logOutput := buf.String()

	expectedFields := []string{
		`"method":"POST"`,
		`"path":"/api/user/{key}/gemini-call"`,
		`"status_code":201`,
		`"user_agent":"TestBrowser/2.0"`,
		`"request_id":"req-123"`,
	}

	for _, field := range expectedFields {
		if !strings.Contains(logOutput, field) {
			t.Errorf("Expected log field %s not found in output", field)
		}
	}
}

// TestLogging_Unmatched verifies unknown paths are not echoed into logs.
func TestLogging_Unmatched(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	router := newLoggedRouter(&buf, http.StatusOK)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nothing/TESTSECRET", nil))

	if strings.Contains(buf.String(), "TESTSECRET") {
		t.Errorf("unmatched path leaked into logs: %s", buf.String())
	}
}

// TestLogging_ErrorStatusLevel verifies error statuses are logged at error level.
func TestLogging_ErrorStatusLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		wantLevel  string
	}{
		{"success", http.StatusOK, "INFO"},
		{"created", http.StatusCreated, "INFO"},
		{"bad request", http.StatusBadRequest, "WARN"},
		{"unauthorized", http.StatusUnauthorized, "WARN"},
		{"not found", http.StatusNotFound, "WARN"},
		{"internal error", http.StatusInternalServerError, "ERROR"},
		{"bad gateway", http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			loggingMiddleware := Logger(logger)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			wrapped := loggingMiddleware(handler)

			req := httptest.NewRequest("GET", "/test", nil)
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			logOutput := buf.String()

			// Check log level
			if !strings.Contains(logOutput, `"level":"`+tt.wantLevel+`"`) {
				t.Errorf("Expected log level %s for status %d, got output: %s", tt.wantLevel, tt.statusCode, logOutput)
			}
		})
	}
}

// TestResponseWriter_CapturesStatus verifies the response writer correctly captures status codes.
func TestResponseWriter_CapturesStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
	}{
		{"ok", http.StatusOK},
		{"created", http.StatusCreated},
		{"no content", http.StatusNoContent},
		{"bad request", http.StatusBadRequest},
		{"internal error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			wrapped := wrapResponseWriter(rec)

			wrapped.WriteHeader(tt.statusCode)

			if wrapped.status != tt.statusCode {
				t.Errorf("status = %d, want %d", wrapped.status, tt.statusCode)
			}
		})
	}
}

// TestResponseWriter_DefaultStatus verifies default status is 200 OK.
func TestResponseWriter_DefaultStatus(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	wrapped := wrapResponseWriter(rec)

	// Write without explicit WriteHeader
	wrapped.Write([]byte("hello"))

	if wrapped.status != http.StatusOK {
		t.Errorf("default status = %d, want %d", wrapped.status, http.StatusOK)
	}
}

// TestResponseWriter_DoubleWriteHeader ensures only first WriteHeader takes effect.
func TestResponseWriter_DoubleWriteHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	wrapped := wrapResponseWriter(rec)

	wrapped.WriteHeader(http.StatusCreated)
	wrapped.WriteHeader(http.StatusInternalServerError) // Should be ignored

	if wrapped.status != http.StatusCreated {
		t.Errorf("status after double write = %d, want %d", wrapped.status, http.StatusCreated)
	}
}
