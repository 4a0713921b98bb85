package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"story-server/internal/interfaces"
	"story-server/internal/models"
)

var _ interfaces.UserRepository = (*pgUserRepository)(nil)

const pgUniqueViolation = "23505"

const (
	createUserQuery = `
		INSERT INTO users (id, name, email, is_admin, disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getUserQuery = `
		SELECT id, name, email, is_admin, disabled, created_at, updated_at
		FROM users WHERE id = $1`

	listUsersQuery = `
		SELECT u.id, u.name, u.email, u.is_admin, u.disabled, u.created_at, u.updated_at,
		       COUNT(s.id) AS stories_count
		FROM users u
		LEFT JOIN stories s ON s.user_id = u.id
		GROUP BY u.id
		ORDER BY u.created_at DESC, u.id
		LIMIT $1 OFFSET $2`

	setUserDisabledQuery = `UPDATE users SET disabled = $2, updated_at = NOW() WHERE id = $1`
	setUserAdminQuery    = `UPDATE users SET is_admin = $2, updated_at = NOW() WHERE id = $1`
	deleteUserQuery      = `DELETE FROM users WHERE id = $1`
	countUsersQuery      = `SELECT COUNT(*), COUNT(*) FILTER (WHERE disabled) FROM users`
)

type pgUserRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgUserRepository creates a PostgreSQL user repository.
func NewPgUserRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.UserRepository {
	return &pgUserRepository{
		db:     db,
		logger: logger.Named("PgUserRepo"),
	}
}

func (r *pgUserRepository) Create(ctx context.Context, user *models.User) error {
	_, err := r.db.Exec(ctx, createUserQuery,
		user.ID, user.Name, user.Email, user.IsAdmin, user.Disabled, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", models.ErrUserAlreadyExists, user.ID)
		}
		r.logger.Error("Failed to insert user", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("insert user %s: %w", user.ID, err)
	}
	return nil
}

func (r *pgUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := pgxscan.Get(ctx, r.db, &user, getUserQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrUserNotFound, id)
		}
		r.logger.Error("Failed to get user", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &user, nil
}

func (r *pgUserRepository) List(ctx context.Context, limit, offset int) ([]models.UserSummary, int, error) {
	total, _, err := r.Counts(ctx)
	if err != nil {
		return nil, 0, err
	}
	users := make([]models.UserSummary, 0, limit)
	if err := pgxscan.Select(ctx, r.db, &users, listUsersQuery, limit, offset); err != nil {
		r.logger.Error("Failed to list users", zap.Int("limit", limit), zap.Int("offset", offset), zap.Error(err))
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func (r *pgUserRepository) SetDisabled(ctx context.Context, id string, disabled bool) error {
	return r.execOne(ctx, setUserDisabledQuery, id, disabled)
}

func (r *pgUserRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	return r.execOne(ctx, setUserAdminQuery, id, isAdmin)
}

func (r *pgUserRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, deleteUserQuery, id)
}

func (r *pgUserRepository) Counts(ctx context.Context) (int, int, error) {
	var total, disabled int
	if err := r.db.QueryRow(ctx, countUsersQuery).Scan(&total, &disabled); err != nil {
		return 0, 0, fmt.Errorf("count users: %w", err)
	}
	return total, disabled, nil
}

// execOne expects exactly one affected row keyed by the user id in args[0].
func (r *pgUserRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("User update failed", zap.Any("user_id", args[0]), zap.Error(err))
		return fmt.Errorf("update user %v: %w", args[0], err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %v", models.ErrUserNotFound, args[0])
	}
	return nil
}
