// Package main is the entrypoint for the promptgate API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/promptgate/promptgate/internal/auth"
	"github.com/promptgate/promptgate/internal/cache"
	"github.com/promptgate/promptgate/internal/config"
	"github.com/promptgate/promptgate/internal/gateway"
	"github.com/promptgate/promptgate/internal/handler"
	"github.com/promptgate/promptgate/internal/inference"
	"github.com/promptgate/promptgate/internal/metrics"
	"github.com/promptgate/promptgate/internal/middleware"
	"github.com/promptgate/promptgate/internal/repository"
	"github.com/promptgate/promptgate/internal/server"
	"github.com/promptgate/promptgate/internal/upload"
)

func main() {
	ctx := context.Background()

	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	recorder := metrics.NewPrometheus()

	// Prepared before any connection is opened so a failure leaves nothing to close.
	uploads, err := newUploadStore(afero.NewOsFs(), cfg, recorder)
	if err != nil {
		logger.Error("failed to prepare upload directory", "error", err, "dir", cfg.UploadDir)
		os.Exit(1)
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, cfg.UsersTable)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database", "table", cfg.UsersTable)

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	backend := inference.New(inference.Options{
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.BackendTimeout,
		Breaker: inference.BreakerConfig{
			MaxRequests: cfg.BreakerMaxRequests,
			Interval:    cfg.BreakerInterval,
			Timeout:     cfg.BreakerTimeout,
		},
		Metrics: recorder,
		Logger:  logger,
	})

	admin := auth.NewAdminVerifier(cfg.AdminKey, cfg.AdminKeyHash)
	if !admin.Configured() {
		logger.Warn("admin secret not configured, reset endpoint will reject every request")
	}

	gw := gateway.New(repo, uploads, backend, admin, gateway.Options{
		KeyPrefix:       cfg.KeyPrefix,
		DefaultMaxCalls: cfg.MaxAPICalls,
		LedgerTimeout:   cfg.LedgerTimeout,
	}, logger, recorder)

	r := setupRouter(routerDeps{
		gateway:  gw,
		health:   handler.NewHealthHandler(repo, cacheClient, cfg.AppVersion, logger),
		metrics:  handler.NewMetricsHandler(recorder.Handler()),
		limiter:  cacheClient,
		recorder: recorder,
		keys:     auth.NewKeyFormat(cfg.KeyPrefix),
	}, cfg, logger)

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Stopped in reverse order: Redis first, then Postgres.
	srv.OnShutdown("database", func(ctx context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("cache", func(ctx context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"model", cfg.GeminiModel,
		"key_prefix", cfg.KeyPrefix,
		"max_calls", cfg.MaxAPICalls,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newUploadStore creates the temporary upload store and feeds its file
// lifecycle into the metrics recorder.
func newUploadStore(fs afero.Fs, cfg *config.Config, recorder metrics.Recorder) (*upload.Store, error) {
	uploads, err := upload.NewStore(fs, cfg.UploadDir, cfg.MaxUploadSize)
	if err != nil {
		return nil, err
	}
	uploads.OnCreate = func() { recorder.IncTempFile("created") }
	uploads.OnRelease = func(err error) {
		if err != nil {
			recorder.IncTempFile("release_failed")
			return
		}
		recorder.IncTempFile("released")
	}
	return uploads, nil
}

func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "promptgate")
	slog.SetDefault(logger)

	return logger
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	gateway  handler.Gateway
	health   *handler.HealthHandler
	metrics  *handler.MetricsHandler
	limiter  middleware.RateLimiter
	recorder metrics.Recorder
	keys     auth.KeyFormat
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	h := handler.New()
	users := handler.NewUserHandler(deps.gateway, logger)
	admin := handler.NewAdminHandler(deps.gateway, logger)

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	r.Get("/health", deps.health.Health)
	r.Get("/healthz", deps.health.Healthz)
	r.Get("/readyz", deps.health.Readyz)
	r.Get("/metrics", deps.metrics.Metrics)

	accessCfg := middleware.AccessConfig{
		Logger:        logger,
		AllowedDomain: cfg.AllowedDomain,
		AllowedIPs:    cfg.GetAllowedIPs(),
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:   logger,
		Limiter:  deps.limiter,
		Metrics:  deps.recorder,
		Enabled:  cfg.RateLimitEnabled,
		IPRPS:    cfg.RateLimitIPRPS,
		IPBurst:  cfg.RateLimitIPBurst,
		KeyRPM:   cfg.RateLimitKeyRPM,
		KeyBurst: cfg.RateLimitKeyBurst,
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireDomain(accessCfg))
		r.Use(middleware.RequireIP(accessCfg))
		r.Use(middleware.RateLimitIP(rateLimitCfg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

			r.Post("/user/check-key", users.CheckKey)
			r.Get("/user/{key}", users.Get)
			r.Post("/admin/user/{key}/reset", admin.ResetCalls)
		})

		r.With(
			middleware.MaxBodySize(cfg.MaxUploadSize+multipartOverhead),
			middleware.RateLimitKey(rateLimitCfg, deps.keys),
		).Post("/user/{key}/gemini-call", users.Generate)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

// multipartOverhead leaves room for form fields and part headers on top of
// the attachment itself.
const multipartOverhead = 64 << 10

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
