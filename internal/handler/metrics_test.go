package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/promptgate/promptgate/internal/metrics"
)

func TestMetricsHandler(t *testing.T) {
	rec := metrics.NewPrometheus()
	rec.IncGeneration("success")

	h := NewMetricsHandler(rec.Handler())
	w := httptest.NewRecorder()
	h.Metrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `promptgate_gateway_generations_total{outcome="success"} 1`) {
		t.Errorf("missing counter in:\n%s", w.Body.String())
	}
}

func TestMetricsHandler_NotConfigured(t *testing.T) {
	w := httptest.NewRecorder()
	NewMetricsHandler(nil).Metrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
