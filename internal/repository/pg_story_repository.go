package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"story-server/internal/interfaces"
	"story-server/internal/models"
)

var _ interfaces.StoryRepository = (*pgStoryRepository)(nil)

const (
	storyColumns = `id, user_id, title, text_prompt, status, scene_count, error_message, created_at, updated_at`

	createStoryQuery = `
		INSERT INTO stories (id, user_id, title, text_prompt, status, scene_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getStoryQuery = `SELECT ` + storyColumns + ` FROM stories WHERE id = $1`

	listStoriesByUserQuery = `
		SELECT ` + storyColumns + ` FROM stories
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	countStoriesByUserQuery = `SELECT COUNT(*) FROM stories WHERE user_id = $1`

	listAllStoriesByUserQuery = `SELECT ` + storyColumns + ` FROM stories WHERE user_id = $1 ORDER BY created_at`

	hasProcessingQuery = `SELECT EXISTS (SELECT 1 FROM stories WHERE user_id = $1 AND status = 'processing')`

	artifactsByStoriesQuery = `
		SELECT story_id, kind, position, storage_id, url
		FROM story_artifacts
		WHERE story_id = ANY($1::text[])
		ORDER BY story_id, kind, position`

	insertArtifactQuery = `
		INSERT INTO story_artifacts (story_id, kind, position, storage_id, url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (story_id, kind, position) DO UPDATE SET storage_id = EXCLUDED.storage_id, url = EXCLUDED.url`

	touchProcessingQuery = `UPDATE stories SET updated_at = NOW() WHERE id = $1 AND status = 'processing'`

	finishStoryQuery = `
		UPDATE stories SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`

	failAllProcessingQuery = `
		UPDATE stories SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE status = 'processing'`

	updateTitleQuery = `UPDATE stories SET title = $2, updated_at = NOW() WHERE id = $1 AND status <> 'processing'`

	deleteStoryQuery = `DELETE FROM stories WHERE id = $1 AND status <> 'processing'`

	storyStatusQuery = `SELECT status FROM stories WHERE id = $1`

	countByStatusQuery = `SELECT status, COUNT(*) FROM stories GROUP BY status`
)

type pgStoryRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgStoryRepository creates a PostgreSQL story repository.
func NewPgStoryRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.StoryRepository {
	return &pgStoryRepository{
		db:     db,
		logger: logger.Named("PgStoryRepo"),
	}
}

func (r *pgStoryRepository) Create(ctx context.Context, story *models.Story) error {
	_, err := r.db.Exec(ctx, createStoryQuery,
		story.ID, story.UserID, story.Title, story.TextPrompt, story.Status, story.SceneCount,
		story.CreatedAt, story.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert story", zap.String("story_id", story.ID), zap.Error(err))
		return fmt.Errorf("insert story %s: %w", story.ID, err)
	}
	return nil
}

func (r *pgStoryRepository) GetByID(ctx context.Context, id string) (*models.Story, error) {
	var story models.Story
	if err := pgxscan.Get(ctx, r.db, &story, getStoryQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrStoryNotFound, id)
		}
		r.logger.Error("Failed to get story", zap.String("story_id", id), zap.Error(err))
		return nil, fmt.Errorf("get story %s: %w", id, err)
	}
	stories := []*models.Story{&story}
	if err := r.attachArtifacts(ctx, stories); err != nil {
		return nil, err
	}
	return &story, nil
}

func (r *pgStoryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Story, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, countStoriesByUserQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stories of %s: %w", userID, err)
	}

	var stories []*models.Story
	if err := pgxscan.Select(ctx, r.db, &stories, listStoriesByUserQuery, userID, limit, offset); err != nil {
		r.logger.Error("Failed to list stories", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, fmt.Errorf("list stories of %s: %w", userID, err)
	}
	if err := r.attachArtifacts(ctx, stories); err != nil {
		return nil, 0, err
	}
	return stories, total, nil
}

func (r *pgStoryRepository) ListAllByUser(ctx context.Context, userID string) ([]*models.Story, error) {
	var stories []*models.Story
	if err := pgxscan.Select(ctx, r.db, &stories, listAllStoriesByUserQuery, userID); err != nil {
		return nil, fmt.Errorf("list all stories of %s: %w", userID, err)
	}
	if err := r.attachArtifacts(ctx, stories); err != nil {
		return nil, err
	}
	return stories, nil
}

func (r *pgStoryRepository) HasProcessing(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, hasProcessingQuery, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check processing stories of %s: %w", userID, err)
	}
	return exists, nil
}

type artifactRow struct {
	StoryID   string              `db:"story_id"`
	Kind      models.ArtifactKind `db:"kind"`
	Position  int                 `db:"position"`
	StorageID string              `db:"storage_id"`
	URL       string              `db:"url"`
}

// attachArtifacts loads artifact references for all stories with one query.
func (r *pgStoryRepository) attachArtifacts(ctx context.Context, stories []*models.Story) error {
	if len(stories) == 0 {
		return nil
	}
	ids := make([]string, len(stories))
	byID := make(map[string]*models.Story, len(stories))
	for i, s := range stories {
		ids[i] = s.ID
		byID[s.ID] = s
		s.Images = []models.ArtifactRef{}
	}

	var rows []artifactRow
	if err := pgxscan.Select(ctx, r.db, &rows, artifactsByStoriesQuery, pq.Array(ids)); err != nil {
		r.logger.Error("Failed to load artifacts", zap.Int("story_count", len(ids)), zap.Error(err))
		return fmt.Errorf("load artifacts: %w", err)
	}

	for _, row := range rows {
		s, ok := byID[row.StoryID]
		if !ok {
			continue
		}
		ref := models.ArtifactRef{Kind: row.Kind, StorageID: row.StorageID, URL: row.URL}
		switch row.Kind {
		case models.ArtifactImage:
			s.Images = append(s.Images, ref)
		case models.ArtifactAudio:
			s.Audio = &ref
		case models.ArtifactVideo:
			s.Video = &ref
		}
	}
	return nil
}

func (r *pgStoryRepository) SaveImages(ctx context.Context, id string, images []models.ArtifactRef) error {
	return r.inProcessingTx(ctx, id, func(tx pgx.Tx) error {
		for i, img := range images {
			if _, err := tx.Exec(ctx, insertArtifactQuery, id, models.ArtifactImage, i, img.StorageID, img.URL); err != nil {
				return fmt.Errorf("insert image %d: %w", i, err)
			}
		}
		return nil
	})
}

func (r *pgStoryRepository) SaveAudio(ctx context.Context, id string, audio models.ArtifactRef) error {
	return r.inProcessingTx(ctx, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertArtifactQuery, id, models.ArtifactAudio, 0, audio.StorageID, audio.URL)
		return err
	})
}

func (r *pgStoryRepository) MarkCompleted(ctx context.Context, id string, video models.ArtifactRef) error {
	return r.inProcessingTx(ctx, id, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertArtifactQuery, id, models.ArtifactVideo, 0, video.StorageID, video.URL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, finishStoryQuery, id, models.StatusCompleted, nil)
		return err
	})
}

func (r *pgStoryRepository) MarkFailed(ctx context.Context, id, reason string) error {
	tag, err := r.db.Exec(ctx, finishStoryQuery, id, models.StatusFailed, reason)
	if err != nil {
		return fmt.Errorf("mark story %s failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return r.stateError(ctx, r.db, id, models.ErrInvalidTransition)
	}
	return nil
}

func (r *pgStoryRepository) FailAllProcessing(ctx context.Context, reason string) (int, error) {
	tag, err := r.db.Exec(ctx, failAllProcessingQuery, reason)
	if err != nil {
		return 0, fmt.Errorf("fail processing stories: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// inProcessingTx locks the row only while the story is still processing.
func (r *pgStoryRepository) inProcessingTx(ctx context.Context, id string, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, touchProcessingQuery, id)
	if err != nil {
		return fmt.Errorf("lock story %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return r.stateError(ctx, tx, id, models.ErrInvalidTransition)
	}
	if err := fn(tx); err != nil {
		r.logger.Error("Story update failed", zap.String("story_id", id), zap.Error(err))
		return fmt.Errorf("update story %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit story %s: %w", id, err)
	}
	return nil
}

// stateError explains why a guarded update touched no rows.
func (r *pgStoryRepository) stateError(ctx context.Context, q interfaces.DBTX, id string, stateErr error) error {
	var status models.StoryStatus
	if err := q.QueryRow(ctx, storyStatusQuery, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", models.ErrStoryNotFound, id)
		}
		return fmt.Errorf("read status of story %s: %w", id, err)
	}
	return fmt.Errorf("%w: story %s is %s", stateErr, id, status)
}

func (r *pgStoryRepository) UpdateTitle(ctx context.Context, id, title string) error {
	tag, err := r.db.Exec(ctx, updateTitleQuery, id, title)
	if err != nil {
		return fmt.Errorf("update title of story %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return r.stateError(ctx, r.db, id, models.ErrStoryProcessing)
	}
	return nil
}

func (r *pgStoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteStoryQuery, id)
	if err != nil {
		r.logger.Error("Failed to delete story", zap.String("story_id", id), zap.Error(err))
		return fmt.Errorf("delete story %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return r.stateError(ctx, r.db, id, models.ErrStoryProcessing)
	}
	return nil
}

func (r *pgStoryRepository) CountByStatus(ctx context.Context) (map[models.StoryStatus]int, error) {
	rows, err := r.db.Query(ctx, countByStatusQuery)
	if err != nil {
		return nil, fmt.Errorf("count stories by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.StoryStatus]int)
	for rows.Next() {
		var (
			status models.StoryStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
