package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"story-server/internal/interfaces"
	"story-server/internal/models"
)

var _ interfaces.ReviewRepository = (*pgReviewRepository)(nil)

const (
	createReviewQuery = `
		INSERT INTO story_reviews (id, story_id, user_id, rating, feedback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	countReviewsQuery = `SELECT COUNT(*) FROM story_reviews`
)

type pgReviewRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgReviewRepository creates a PostgreSQL review repository.
func NewPgReviewRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.ReviewRepository {
	return &pgReviewRepository{
		db:     db,
		logger: logger.Named("PgReviewRepo"),
	}
}

func (r *pgReviewRepository) Create(ctx context.Context, review *models.Review) error {
	_, err := r.db.Exec(ctx, createReviewQuery,
		review.ID, review.StoryID, review.UserID, review.Rating, review.Feedback, review.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: story %s", models.ErrAlreadyReviewed, review.StoryID)
		}
		r.logger.Error("Failed to insert review",
			zap.String("story_id", review.StoryID),
			zap.String("user_id", review.UserID),
			zap.Error(err))
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (r *pgReviewRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, countReviewsQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return n, nil
}
