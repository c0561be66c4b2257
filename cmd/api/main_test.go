package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/promptgate/promptgate/internal/auth"
	"github.com/promptgate/promptgate/internal/cache"
	"github.com/promptgate/promptgate/internal/config"
	"github.com/promptgate/promptgate/internal/handler"
	"github.com/promptgate/promptgate/internal/metrics"
	"github.com/promptgate/promptgate/internal/model"
)

type okPinger struct{}

func (okPinger) Ping(ctx context.Context) error { return nil }

type allowLimiter struct{}

func (allowLimiter) CheckIPRateLimit(ctx context.Context, ip string, rps, burst int) (*cache.RateLimitResult, error) {
	return &cache.RateLimitResult{Allowed: true, Limit: rps, Remaining: int64(burst), ResetAt: time.Now()}, nil
}

func (allowLimiter) CheckKeyRateLimit(ctx context.Context, key string, rpm, burst int) (*cache.RateLimitResult, error) {
	return &cache.RateLimitResult{Allowed: true, Limit: rpm, Remaining: int64(burst), ResetAt: time.Now()}, nil
}

type routeGateway struct{}

func (routeGateway) ValidKey(key string) bool { return strings.HasPrefix(key, "TEST") }

func (routeGateway) HandleGeneration(ctx context.Context, req model.GenerationRequest) (*model.GenerationOutcome, error) {
	return &model.GenerationOutcome{Result: "ok", CallsMade: 1, CallsRemaining: 29}, nil
}

func (routeGateway) GetAccount(ctx context.Context, key string) (*model.AccountResponse, error) {
	return &model.AccountResponse{UserKey: key, MaxCalls: 30, CallsRemaining: 30, CanMakeCall: true}, nil
}

func (routeGateway) CheckKey(ctx context.Context, key string) (bool, error) { return true, nil }

func (routeGateway) ResetCalls(ctx context.Context, key, adminSecret string) error { return nil }

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := metrics.NewPrometheus()
	return setupRouter(routerDeps{
		gateway:  routeGateway{},
		health:   handler.NewHealthHandler(okPinger{}, okPinger{}, "test", logger),
		metrics:  handler.NewMetricsHandler(rec.Handler()),
		limiter:  allowLimiter{},
		recorder: rec,
		keys:     auth.NewKeyFormat("TEST"),
	}, cfg, logger)
}

func baseConfig() *config.Config {
	return &config.Config{
		AppEnv:             "development",
		KeyPrefix:          "TEST",
		CORSAllowedOrigins: "*",
		RateLimitEnabled:   true,
		RateLimitIPRPS:     10,
		RateLimitIPBurst:   20,
		RateLimitKeyRPM:    30,
		RateLimitKeyBurst:  5,
		MaxRequestBodySize: 1 << 20,
		MaxUploadSize:      1 << 20,
	}
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t, baseConfig())

	tests := []struct {
		method, path, body string
		wantStatus         int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/user/TESTA", "", http.StatusOK},
		{http.MethodPost, "/api/user/check-key", `{"userKey":"TESTA"}`, http.StatusOK},
		{http.MethodPost, "/api/admin/user/TESTA/reset", `{"adminKey":"x"}`, http.StatusOK},
		{http.MethodGet, "/user/TESTA", "", http.StatusNotFound},
		{http.MethodDelete, "/api/user/TESTA", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, body))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestRouter_NotFoundBody(t *testing.T) {
	router := newTestRouter(t, baseConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "Route not found" {
		t.Errorf("body = %v", body)
	}
}

func TestRouter_DomainRestriction(t *testing.T) {
	cfg := baseConfig()
	cfg.AllowedDomain = "https://app.example.com"
	router := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/user/TESTA", nil)
	req.Header.Set("Referer", "https://evil.example.net/")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}

	// Health stays reachable for probes.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}

func TestRouter_BodyLimit(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxRequestBodySize = 16
	router := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/user/check-key", strings.NewReader(`{"userKey":"`+strings.Repeat("A", 64)+`"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge && rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 413 or 400", rec.Code)
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("postgres://user:hunter2@db:5432/app")
	if strings.Contains(got, "hunter2") || !strings.Contains(got, "user@db") {
		t.Errorf("redactURL = %s", got)
	}
	if redactURL("") != "" {
		t.Error("empty input should stay empty")
	}
}

func TestSanitizeError(t *testing.T) {
	dsn := "postgres://user:hunter2@db:5432/app"
	err := errors.New("dial " + dsn + " failed; password=hunter2")

	got := sanitizeError(err, dsn)
	if strings.Contains(got, "hunter2") {
		t.Errorf("secret leaked: %s", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	if parseLogLevel("DEBUG") != slog.LevelDebug || parseLogLevel("bogus") != slog.LevelInfo {
		t.Error("unexpected level mapping")
	}
}

func TestNewUploadStore_RecordsFileLifecycle(t *testing.T) {
	cfg := &config.Config{UploadDir: "uploads", MaxUploadSize: 1 << 10}
	rec := metrics.NewInMemory()

	store, err := newUploadStore(afero.NewMemMapFs(), cfg, rec)
	if err != nil {
		t.Fatalf("newUploadStore: %v", err)
	}

	h, err := store.Store(strings.NewReader("img"), "a.png")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	temp := rec.Snapshot().TempFiles
	if temp["created"] != 1 || temp["released"] != 1 {
		t.Errorf("temp file metrics = %v", temp)
	}
}

func TestNewUploadStore_UnusableDirectory(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	cfg := &config.Config{UploadDir: "uploads", MaxUploadSize: 1 << 10}

	if _, err := newUploadStore(fs, cfg, metrics.NewNoop()); err == nil {
		t.Fatal("expected an error for a read-only filesystem")
	}
}
