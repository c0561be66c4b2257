package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/promptgate/promptgate/internal/auth"
	"github.com/promptgate/promptgate/internal/cache"
	"github.com/promptgate/promptgate/internal/metrics"
)

// RateLimiter is implemented by *cache.Cache.
type RateLimiter interface {
	CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*cache.RateLimitResult, error)
	CheckKeyRateLimit(ctx context.Context, key string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter RateLimiter
	Metrics metrics.Recorder
	Enabled bool

	// Per client IP, on every /api route.
	IPRPS   int
	IPBurst int

	// Per account key, on routes with a {key} parameter.
	KeyRPM   int
	KeyBurst int
}

// RateLimitIP returns middleware that rate limits requests per client IP.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled || cfg.Limiter == nil || cfg.IPRPS <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			result, err := cfg.Limiter.CheckIPRateLimit(r.Context(), ip, cfg.IPRPS, cfg.IPBurst)
			if err != nil {
				// Fail open.
				cfg.Logger.Error("IP rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
			}
			if result == nil || result.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			cfg.Logger.Warn("rate limit exceeded",
				slog.String("type", "ip"),
				slog.String("ip", ip),
				slog.String("endpoint", r.Method+" "+routePattern(r)),
				slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			cfg.recordLimited("ip")
			writeRateLimitError(w, result.RetryAfter)
		})
	}
}

// RateLimitKey returns middleware that rate limits requests per account key,
// taken from the {key} URL parameter. Malformed keys pass through so the
// handler can reject them without touching Redis.
func RateLimitKey(cfg RateLimitConfig, keys auth.KeyFormat) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled || cfg.Limiter == nil || cfg.KeyRPM <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := chi.URLParam(r, "key")
			if !keys.Valid(key) {
				next.ServeHTTP(w, r)
				return
			}

			result, err := cfg.Limiter.CheckKeyRateLimit(r.Context(), key, cfg.KeyRPM, cfg.KeyBurst)
			if err != nil {
				cfg.Logger.Error("key rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("key_hint", auth.KeyHint(key)),
				)
			}
			if result == nil {
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, result.Limit, result.Remaining, result.ResetAt)

			if !result.Allowed {
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("type", "key"),
					slog.String("key_hint", auth.KeyHint(key)),
					slog.String("endpoint", r.Method+" "+routePattern(r)),
					slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				cfg.recordLimited("key")
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (cfg RateLimitConfig) recordLimited(scope string) {
	if cfg.Metrics != nil {
		cfg.Metrics.IncRateLimited(scope)
	}
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

// writeRateLimitError writes a 429 with Retry-After.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, "Rate limit exceeded",
		fmt.Sprintf("Retry after %d seconds.", secs))
}
