package inference

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/promptgate/promptgate/internal/metrics"
)

// BreakerConfig holds configuration for the backend circuit breaker.
type BreakerConfig struct {
	MaxRequests uint32        // max requests allowed in half-open state
	Interval    time.Duration // cyclic period of the closed state to clear counts
	Timeout     time.Duration // period of the open state before half-open
}

// DefaultBreakerConfig mirrors the config package defaults.
var DefaultBreakerConfig = BreakerConfig{
	MaxRequests: 5,
	Interval:    time.Minute,
	Timeout:     30 * time.Second,
}

// BreakerName labels the breaker in logs and metrics.
const BreakerName = "gemini"

// newBreaker builds the shared breaker. Only transport-class failures count:
// a rejected credential or an exhausted per-user quota says nothing about
// backend health and must not lock out other accounts.
func newBreaker(cfg BreakerConfig, logger *slog.Logger, rec metrics.Recorder) *gobreaker.CircuitBreaker[any] {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = DefaultBreakerConfig.MaxRequests
	}

	settings := gobreaker.Settings{
		Name:        BreakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		IsSuccessful: breakerSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			rec.SetBreakerState(name, stateToInt(to))
		},
	}

	return gobreaker.NewCircuitBreaker[any](settings)
}

func breakerSuccessful(err error) bool {
	if err == nil {
		return true
	}
	// Caller went away; not the backend's fault.
	if errors.Is(err, context.Canceled) {
		return true
	}
	return classify(OpGenerate, err).Kind != KindTransport
}

// stateToInt converts a breaker state for metrics.
// 0=closed, 1=half-open, 2=open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
