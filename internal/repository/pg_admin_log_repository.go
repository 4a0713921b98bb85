package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"go.uber.org/zap"

	"story-server/internal/interfaces"
	"story-server/internal/models"
)

var _ interfaces.AdminLogRepository = (*pgAdminLogRepository)(nil)

// Пустой kind ($1 = '') означает "все действия".
const (
	appendAdminLogQuery = `
		INSERT INTO admin_action_logs (id, kind, actor_id, target_id, reason, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	listAdminLogsQuery = `
		SELECT id, kind, actor_id, target_id, reason, details, created_at
		FROM admin_action_logs
		WHERE ($1 = '' OR kind = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	countAdminLogsQuery = `SELECT COUNT(*) FROM admin_action_logs WHERE ($1 = '' OR kind = $1)`

	countAdminLogsSinceQuery = `SELECT COUNT(*) FROM admin_action_logs WHERE created_at >= $1`
)

type pgAdminLogRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgAdminLogRepository creates a PostgreSQL admin log repository.
// Only insert and list are exposed; the table trigger rejects updates and deletes.
func NewPgAdminLogRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.AdminLogRepository {
	return &pgAdminLogRepository{
		db:     db,
		logger: logger.Named("PgAdminLogRepo"),
	}
}

func (r *pgAdminLogRepository) Append(ctx context.Context, entry *models.AdminActionLog) error {
	var details any
	if len(entry.Details) > 0 {
		details = []byte(entry.Details)
	}
	_, err := r.db.Exec(ctx, appendAdminLogQuery,
		entry.ID, entry.Kind, entry.ActorID, entry.TargetID, entry.Reason, details, entry.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to append admin log",
			zap.String("kind", string(entry.Kind)),
			zap.String("actor_id", entry.ActorID),
			zap.Error(err))
		return fmt.Errorf("append admin log: %w", err)
	}
	return nil
}

func (r *pgAdminLogRepository) List(ctx context.Context, kind models.AdminActionKind, limit, offset int) ([]models.AdminActionLog, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, countAdminLogsQuery, string(kind)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count admin logs: %w", err)
	}
	logs := make([]models.AdminActionLog, 0, limit)
	if err := pgxscan.Select(ctx, r.db, &logs, listAdminLogsQuery, string(kind), limit, offset); err != nil {
		r.logger.Error("Failed to list admin logs", zap.String("kind", string(kind)), zap.Error(err))
		return nil, 0, fmt.Errorf("list admin logs: %w", err)
	}
	return logs, total, nil
}

func (r *pgAdminLogRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, countAdminLogsSinceQuery, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count admin logs since %s: %w", since.Format(time.RFC3339), err)
	}
	return n, nil
}
