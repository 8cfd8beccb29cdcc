package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"example.com/stackapp/backend/internal/advice"
	"example.com/stackapp/backend/internal/auth"
	"example.com/stackapp/backend/internal/config"
	"example.com/stackapp/backend/internal/handlers"
	"example.com/stackapp/backend/internal/metrics"
	"example.com/stackapp/backend/internal/notifications"
	"example.com/stackapp/backend/internal/repository"
)

// Маршруты, открытые без X-API-Key.
var publicPaths = []string{"/", "/health", "/metrics"}

// Deps содержит собранные в main зависимости сервера.
type Deps struct {
	Synth   *advice.Synthesizer
	Metrics *metrics.Metrics
	Hub     *notifications.Hub
	Audit   repository.InvocationStore
}

// New собирает HTTP-сервер Echo с роутами и зависимостями.
func New(cfg config.Config, logger *slog.Logger, deps Deps) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Hub == nil {
		deps.Hub = notifications.NewHub()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(deps.Metrics.Middleware())

	verifier := auth.NewVerifier(cfg.Security)
	e.Use(auth.APIKeyMiddleware(verifier, publicPaths...))

	adviceHandler := handlers.NewAdviceHandler(deps.Synth)
	notificationHandler := handlers.NewNotificationHandler(deps.Hub)

	var adminHandler *handlers.AdminHandler
	if verifier.Enabled() {
		adminHandler = handlers.NewAdminHandler(deps.Audit)
	}

	registerRoutes(
		e,
		handlers.Info(cfg.AI.Mode),
		deps.Metrics.Handler(),
		adviceHandler,
		notificationHandler,
		adminHandler,
		aiRateLimiter(cfg.AI),
	)

	return e
}

// NewHTTPServer создает net/http сервер с заданными таймаутами.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("request_id", v.RequestID),
				slog.Duration("latency", v.Latency),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			msg := "request completed"
			if v.Status >= http.StatusInternalServerError {
				logger.LogAttrs(c.Request().Context(), slog.LevelError, msg, attrs...)
				return nil
			}

			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, msg, attrs...)
			return nil
		},
	})
}

func aiRateLimiter(cfg config.AIConfig) echo.MiddlewareFunc {
	limit := rate.Limit(float64(cfg.RateLimitPerMinute) / 60.0)
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      limit,
		Burst:     cfg.RateLimitBurst,
		ExpiresIn: time.Minute,
	})

	return middleware.RateLimiter(store)
}
