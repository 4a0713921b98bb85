package interfaces

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"story-server/internal/models"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// StoryRepository persists story records and their artifact references.
// Pipeline writes are only accepted while the story is processing.
type StoryRepository interface {
	Create(ctx context.Context, story *models.Story) error
	GetByID(ctx context.Context, id string) (*models.Story, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Story, int, error)
	ListAllByUser(ctx context.Context, userID string) ([]*models.Story, error)
	HasProcessing(ctx context.Context, userID string) (bool, error)

	// UpdateTitle fails with ErrStoryProcessing while the job owns the record.
	UpdateTitle(ctx context.Context, id, title string) error

	SaveImages(ctx context.Context, id string, images []models.ArtifactRef) error
	SaveAudio(ctx context.Context, id string, audio models.ArtifactRef) error
	MarkCompleted(ctx context.Context, id string, video models.ArtifactRef) error
	MarkFailed(ctx context.Context, id, reason string) error
	// FailAllProcessing fails every processing story and returns how many there were.
	FailAllProcessing(ctx context.Context, reason string) (int, error)

	// Delete fails with ErrStoryProcessing for a running job.
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[models.StoryStatus]int, error)
}

// UserRepository persists registered users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.UserSummary, int, error)
	SetDisabled(ctx context.Context, id string, disabled bool) error
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context) (total int, disabled int, err error)
}

// ReviewRepository persists story reviews.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	Count(ctx context.Context) (int, error)
}

// AdminLogRepository is append-only.
type AdminLogRepository interface {
	Append(ctx context.Context, entry *models.AdminActionLog) error
	List(ctx context.Context, kind models.AdminActionKind, limit, offset int) ([]models.AdminActionLog, int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}
