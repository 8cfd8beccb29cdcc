package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/stackapp/backend/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS advice_invocations (
	id UUID PRIMARY KEY,
	request_id TEXT NOT NULL,
	role TEXT NOT NULL,
	tier TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT '',
	provider TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	failure_reason TEXT,
	latency_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_advice_invocations_created ON advice_invocations (created_at DESC);
`

type PostgresInvocationStore struct {
	db *pgxpool.Pool
}

// NewPostgresInvocationStore создает хранилище аудита в PostgreSQL.
func NewPostgresInvocationStore(db *pgxpool.Pool) *PostgresInvocationStore {
	return &PostgresInvocationStore{db: db}
}

// EnsureSchema создает таблицу аудита, если ее нет.
func (r *PostgresInvocationStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// Insert сохраняет запись аудита.
func (r *PostgresInvocationStore) Insert(ctx context.Context, record models.InvocationRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO advice_invocations
		 (id, request_id, role, tier, kind, provider, model, category, source, success, failure_reason, latency_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		record.ID,
		record.RequestID,
		record.Role,
		record.Tier,
		record.Kind,
		record.Provider,
		record.Model,
		record.Category,
		string(record.Source),
		record.Success,
		record.FailureReason,
		record.LatencyMS,
		record.CreatedAt,
	)
	return err
}

// List возвращает записи аудита с фильтрацией, новые первыми.
func (r *PostgresInvocationStore) List(ctx context.Context, filter InvocationFilter, limit, offset int) ([]models.InvocationRecord, error) {
	where, args := filter.where(pgPlaceholder)

	query := fmt.Sprintf(
		`SELECT id, request_id, role, tier, kind, provider, model, category, source, success, failure_reason, latency_ms, created_at
		 FROM advice_invocations%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.InvocationRecord, 0)
	for rows.Next() {
		var record models.InvocationRecord
		var source string
		if err := rows.Scan(
			&record.ID,
			&record.RequestID,
			&record.Role,
			&record.Tier,
			&record.Kind,
			&record.Provider,
			&record.Model,
			&record.Category,
			&source,
			&record.Success,
			&record.FailureReason,
			&record.LatencyMS,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		record.Source = models.InvocationSource(source)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Count возвращает количество записей по фильтру.
func (r *PostgresInvocationStore) Count(ctx context.Context, filter InvocationFilter) (int, error) {
	where, args := filter.where(pgPlaceholder)

	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM advice_invocations"+where, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Usage возвращает агрегированную статистику за N дней.
func (r *PostgresInvocationStore) Usage(ctx context.Context, days int) (models.UsageStats, error) {
	stats := models.UsageStats{}
	if days <= 0 {
		return stats, ErrInvalid
	}

	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE source = 'live'),
		        COUNT(*) FILTER (WHERE source = 'fallback'),
		        COUNT(*) FILTER (WHERE source = 'rejected')
		 FROM advice_invocations`,
	).Scan(&stats.Total, &stats.Live, &stats.Fallback, &stats.Rejected); err != nil {
		return stats, err
	}

	roleRows, err := r.db.Query(ctx,
		`SELECT role,
		        COUNT(*) FILTER (WHERE source = 'live'),
		        COUNT(*) FILTER (WHERE source = 'fallback'),
		        COUNT(*) FILTER (WHERE source = 'rejected')
		 FROM advice_invocations
		 GROUP BY role
		 ORDER BY role`,
	)
	if err != nil {
		return stats, err
	}
	defer roleRows.Close()

	stats.ByRole = make([]models.RoleUsage, 0)
	for roleRows.Next() {
		var row models.RoleUsage
		if err := roleRows.Scan(&row.Role, &row.Live, &row.Fallback, &row.Rejected); err != nil {
			return stats, err
		}
		stats.ByRole = append(stats.ByRole, row)
	}
	if err := roleRows.Err(); err != nil {
		return stats, err
	}

	start := time.Now().UTC().AddDate(0, 0, -days+1)
	dayRows, err := r.db.Query(ctx,
		`SELECT date_trunc('day', created_at)::date AS day,
		        COUNT(*)
		 FROM advice_invocations
		 WHERE created_at >= $1
		 GROUP BY day
		 ORDER BY day DESC`,
		start,
	)
	if err != nil {
		return stats, err
	}
	defer dayRows.Close()

	stats.ByDay = make([]models.DailyCount, 0)
	for dayRows.Next() {
		var row models.DailyCount
		if err := dayRows.Scan(&row.Day, &row.Count); err != nil {
			return stats, err
		}
		stats.ByDay = append(stats.ByDay, row)
	}

	if err := dayRows.Err(); err != nil {
		return stats, err
	}

	return stats, nil
}

func pgPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
