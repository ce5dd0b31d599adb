package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rbac-service/internal/common"
	"rbac-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// LogRepository is append-only apart from retention cleanup.
type LogRepository interface {
	InsertLog(ctx context.Context, entry *models.LogEntry) error
	GetLogByID(ctx context.Context, id int64) (*models.LogEntry, error)
	ListLogs(ctx context.Context, filter models.LogFilter, limit, offset int) ([]*models.LogEntry, int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	GetLogStats(ctx context.Context) (*models.LogStats, error)
}

type logRepository struct {
	db *sqlx.DB
}

func NewLogRepository(db *sqlx.DB) LogRepository {
	return &logRepository{db: db}
}

func (r *logRepository) InsertLog(ctx context.Context, entry *models.LogEntry) error {
	query := `
		INSERT INTO logs (user_id, content, action, resource, resource_id,
		                  ip_address, user_agent, source, level, metadata, created_at)
		VALUES (:user_id, :content, :action, :resource, :resource_id,
		        :ip_address, :user_agent, :source, :level, :metadata, :created_at)
	`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

func (r *logRepository) GetLogByID(ctx context.Context, id int64) (*models.LogEntry, error) {
	var entry models.LogEntry
	query := `SELECT * FROM logs WHERE id = $1`

	err := r.db.GetContext(ctx, &entry, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("log %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get log by ID: %w", err)
	}

	return &entry, nil
}

func (r *logRepository) ListLogs(ctx context.Context, filter models.LogFilter, limit, offset int) ([]*models.LogEntry, int64, error) {
	conds := []string{"1=1"}
	args := []any{}
	n := 1

	if filter.UserID != 0 {
		conds = append(conds, fmt.Sprintf("user_id = $%d", n))
		args = append(args, filter.UserID)
		n++
	}
	if filter.Source != "" {
		conds = append(conds, fmt.Sprintf("source = $%d", n))
		args = append(args, filter.Source)
		n++
	}
	if filter.Level != "" {
		conds = append(conds, fmt.Sprintf("level = $%d", n))
		args = append(args, filter.Level)
		n++
	}
	if filter.Action != "" {
		conds = append(conds, fmt.Sprintf("action = $%d", n))
		args = append(args, filter.Action)
		n++
	}
	if filter.Resource != "" {
		conds = append(conds, fmt.Sprintf("resource = $%d", n))
		args = append(args, filter.Resource)
		n++
	}
	if filter.From != nil {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", n))
		args = append(args, *filter.From)
		n++
	}
	if filter.To != nil {
		conds = append(conds, fmt.Sprintf("created_at <= $%d", n))
		args = append(args, *filter.To)
		n++
	}

	where := strings.Join(conds, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM logs WHERE ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count logs: %w", err)
	}

	query := fmt.Sprintf(`SELECT * FROM logs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, n, n+1)
	args = append(args, limit, offset)

	var entries []*models.LogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list logs: %w", err)
	}

	return entries, total, nil
}

// DeleteOlderThan removes entries strictly older than the cutoff and
// reports how many went away. This is the only delete path for logs.
func (r *logRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM logs WHERE created_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old logs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return deleted, nil
}

func (r *logRepository) GetLogStats(ctx context.Context) (*models.LogStats, error) {
	stats := &models.LogStats{
		ByLevel:  map[string]int64{},
		BySource: map[string]int64{},
	}

	if err := r.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM logs`); err != nil {
		return nil, fmt.Errorf("failed to count logs: %w", err)
	}

	levelRows := []struct {
		Level string `db:"level"`
		Count int64  `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &levelRows, `SELECT level, COUNT(*) AS count FROM logs GROUP BY level`); err != nil {
		return nil, fmt.Errorf("failed to count logs by level: %w", err)
	}
	for _, row := range levelRows {
		stats.ByLevel[row.Level] = row.Count
	}

	sourceRows := []struct {
		Source string `db:"source"`
		Count  int64  `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &sourceRows, `SELECT source, COUNT(*) AS count FROM logs GROUP BY source`); err != nil {
		return nil, fmt.Errorf("failed to count logs by source: %w", err)
	}
	for _, row := range sourceRows {
		stats.BySource[row.Source] = row.Count
	}

	if err := r.db.GetContext(ctx, &stats.Last24h, `SELECT COUNT(*) FROM logs WHERE created_at >= NOW() - INTERVAL '24 hours'`); err != nil {
		return nil, fmt.Errorf("failed to count recent logs: %w", err)
	}

	return stats, nil
}
