package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/stackapp/backend/internal/config"
)

const (
	connectAttempts = 5
	applicationName = "stackapp-audit"
)

// Open открывает пул PostgreSQL для журнала аудита. Подключение повторяется
// с удвоением паузы, пока не кончатся попытки или ctx.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err := connect(ctx, pc)
		if err == nil {
			logger.Info("audit database connected",
				slog.String("host", cfg.Host),
				slog.String("database", cfg.Name),
			)
			return pool, nil
		}
		lastErr = err

		logger.Warn("database connect attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("attempts", connectAttempts),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("connect to database after %d attempts: %w", connectAttempts, lastErr)
}

func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pc.MaxConns = int32(cfg.MaxOpenConns)
	// У pgxpool нет лимита простаивающих соединений, ближайший аналог MinConns.
	pc.MinConns = int32(cfg.MaxIdleConns)
	pc.MaxConnIdleTime = cfg.ConnMaxIdleTime
	pc.MaxConnLifetime = cfg.ConnMaxLifetime
	pc.ConnConfig.RuntimeParams["application_name"] = applicationName

	return pc, nil
}

func connect(ctx context.Context, pc *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
