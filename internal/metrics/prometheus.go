package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "promptgate"

// durationBuckets cover fast rejections up to slow multimodal generations.
var durationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60}

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	generations  *prometheus.CounterVec
	backendCalls *prometheus.HistogramVec
	breakerState *prometheus.GaugeVec
	ledgerWrites *prometheus.CounterVec
	tempFiles    *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
}

// NewPrometheus creates a recorder with its own registry, including the Go
// runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		generations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "generations_total",
			Help:      "Generation requests by outcome",
		}, []string{"outcome"}),
		backendCalls: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "call_duration_seconds",
			Help:      "Inference backend call duration by operation and result",
			Buckets:   durationBuckets,
		}, []string{"op", "result"}),
		breakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"breaker"}),
		ledgerWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "writes_total",
			Help:      "Usage counter write-backs by result",
		}, []string{"result"}),
		tempFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "uploads",
			Name:      "temp_files_total",
			Help:      "Temporary upload file lifecycle events",
		}, []string{"event"}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by rate limiting",
		}, []string{"scope"}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// IncGeneration increments the generation outcome counter.
func (p *PrometheusRecorder) IncGeneration(outcome string) {
	p.generations.WithLabelValues(outcome).Inc()
}

// ObserveBackendCall records a backend call duration.
func (p *PrometheusRecorder) ObserveBackendCall(op, result string, duration time.Duration) {
	p.backendCalls.WithLabelValues(op, result).Observe(duration.Seconds())
}

// SetBreakerState sets the breaker state gauge.
func (p *PrometheusRecorder) SetBreakerState(name string, state int) {
	p.breakerState.WithLabelValues(name).Set(float64(state))
}

// IncLedgerWrite increments the ledger write counter.
func (p *PrometheusRecorder) IncLedgerWrite(result string) {
	p.ledgerWrites.WithLabelValues(result).Inc()
}

// IncTempFile increments the temp file lifecycle counter.
func (p *PrometheusRecorder) IncTempFile(event string) {
	p.tempFiles.WithLabelValues(event).Inc()
}

// IncRateLimited increments the rate limit rejection counter.
func (p *PrometheusRecorder) IncRateLimited(scope string) {
	p.rateLimited.WithLabelValues(scope).Inc()
}
