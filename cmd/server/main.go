package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"example.com/stackapp/backend/internal/advice"
	"example.com/stackapp/backend/internal/config"
	"example.com/stackapp/backend/internal/database"
	"example.com/stackapp/backend/internal/metrics"
	"example.com/stackapp/backend/internal/notifications"
	"example.com/stackapp/backend/internal/repository"
	"example.com/stackapp/backend/internal/server"
)

func main() {
	ensureEnvFile()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.Level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openAuditStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	appMetrics := metrics.New()
	hub := notifications.NewHub()

	observers := []advice.Observer{appMetrics, notifications.NewAdviceNotifier(hub)}
	var audit *repository.AuditObserver
	if store != nil {
		audit = repository.NewAuditObserver(store, logger, cfg.Audit.Buffer)
		observers = append(observers, audit)
	}

	synth, err := server.BuildPipeline(ctx, cfg, logger, observers...)
	if err != nil {
		return err
	}
	appMetrics.SetBackends(synth.Registry().Descriptors())

	e := server.New(cfg, logger, server.Deps{
		Synth:   synth,
		Metrics: appMetrics,
		Hub:     hub,
		Audit:   store,
	})
	httpServer := server.NewHTTPServer(cfg.Server, e)

	// Очередь аудита останавливается после HTTP-сервера, чтобы дописать
	// записи запросов, завершившихся во время shutdown.
	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()

	group, groupCtx := errgroup.WithContext(ctx)
	if audit != nil {
		group.Go(func() error {
			return audit.Run(auditCtx)
		})
	}
	group.Go(func() error {
		logger.Info("http server started", slog.String("addr", httpServer.Addr))
		if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		defer stopAudit()

		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	})

	return group.Wait()
}

// openAuditStore открывает хранилище аудита по AUDIT_DRIVER. Для none
// возвращает nil без ошибки.
func openAuditStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.InvocationStore, func(), error) {
	switch cfg.Audit.Driver {
	case "postgres":
		pool, err := database.Open(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		store := repository.NewPostgresInvocationStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	case "sqlite":
		db, err := database.OpenSQLite(ctx, cfg.Audit.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewSQLiteInvocationStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil
	case "", "none":
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", repository.ErrUnsupported, cfg.Audit.Driver)
	}
}

func ensureEnvFile() {
	if os.Getenv("ENV_FILE") != "" {
		return
	}

	if _, err := os.Stat(".env"); err == nil {
		_ = os.Setenv("ENV_FILE", ".env")
		return
	}

	if _, err := os.Stat("../.env"); err == nil {
		_ = os.Setenv("ENV_FILE", "../.env")
	}
}
