package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/stackapp/backend/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS advice_invocations (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	role TEXT NOT NULL,
	tier TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT '',
	provider TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	success INTEGER NOT NULL,
	failure_reason TEXT,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_advice_invocations_created ON advice_invocations(created_at);
`

type SQLiteInvocationStore struct {
	db *sql.DB
}

// NewSQLiteInvocationStore создает хранилище аудита в SQLite.
func NewSQLiteInvocationStore(db *sql.DB) *SQLiteInvocationStore {
	return &SQLiteInvocationStore{db: db}
}

// EnsureSchema создает таблицу аудита, если ее нет.
func (s *SQLiteInvocationStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// Insert сохраняет запись аудита.
func (s *SQLiteInvocationStore) Insert(ctx context.Context, record models.InvocationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO advice_invocations
		 (id, request_id, role, tier, kind, provider, model, category, source, success, failure_reason, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID.String(),
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
		record.CreatedAt.UTC().UnixMilli(),
	)
	return err
}

// List возвращает записи аудита с фильтрацией, новые первыми.
func (s *SQLiteInvocationStore) List(ctx context.Context, filter InvocationFilter, limit, offset int) ([]models.InvocationRecord, error) {
	where, args := filter.where(sqlitePlaceholder)

	query := `SELECT id, request_id, role, tier, kind, provider, model, category, source, success, failure_reason, latency_ms, created_at
		FROM advice_invocations` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.InvocationRecord, 0)
	for rows.Next() {
		var (
			record    models.InvocationRecord
			id        string
			source    string
			reason    sql.NullString
			createdAt int64
		)
		if err := rows.Scan(
			&id,
			&record.RequestID,
			&record.Role,
			&record.Tier,
			&record.Kind,
			&record.Provider,
			&record.Model,
			&record.Category,
			&source,
			&record.Success,
			&reason,
			&record.LatencyMS,
			&createdAt,
		); err != nil {
			return nil, err
		}

		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse audit id %q: %w", id, err)
		}
		record.ID = parsed
		record.Source = models.InvocationSource(source)
		record.CreatedAt = time.UnixMilli(createdAt).UTC()
		if reason.Valid {
			value := reason.String
			record.FailureReason = &value
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Count возвращает количество записей по фильтру.
func (s *SQLiteInvocationStore) Count(ctx context.Context, filter InvocationFilter) (int, error) {
	where, args := filter.where(sqlitePlaceholder)

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM advice_invocations"+where, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Usage возвращает агрегированную статистику за N дней.
func (s *SQLiteInvocationStore) Usage(ctx context.Context, days int) (models.UsageStats, error) {
	stats := models.UsageStats{}
	if days <= 0 {
		return stats, ErrInvalid
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(source = 'live'), 0),
		        COALESCE(SUM(source = 'fallback'), 0),
		        COALESCE(SUM(source = 'rejected'), 0)
		 FROM advice_invocations`,
	).Scan(&stats.Total, &stats.Live, &stats.Fallback, &stats.Rejected); err != nil {
		return stats, err
	}

	roleRows, err := s.db.QueryContext(ctx,
		`SELECT role, SUM(source = 'live'), SUM(source = 'fallback'), SUM(source = 'rejected')
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

	start := time.Now().UTC().AddDate(0, 0, -days+1).Truncate(24 * time.Hour)
	dayRows, err := s.db.QueryContext(ctx,
		`SELECT date(created_at / 1000, 'unixepoch') AS day, COUNT(*)
		 FROM advice_invocations
		 WHERE created_at >= ?
		 GROUP BY day
		 ORDER BY day DESC`,
		start.UnixMilli(),
	)
	if err != nil {
		return stats, err
	}
	defer dayRows.Close()

	stats.ByDay = make([]models.DailyCount, 0)
	for dayRows.Next() {
		var day string
		var row models.DailyCount
		if err := dayRows.Scan(&day, &row.Count); err != nil {
			return stats, err
		}
		parsed, err := time.Parse("2006-01-02", day)
		if err != nil {
			return stats, fmt.Errorf("parse audit day %q: %w", day, err)
		}
		row.Day = parsed
		stats.ByDay = append(stats.ByDay, row)
	}

	if err := dayRows.Err(); err != nil {
		return stats, err
	}

	return stats, nil
}

func sqlitePlaceholder(int) string {
	return "?"
}
