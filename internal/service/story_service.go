package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"story-server/internal/interfaces"
	"story-server/internal/media"
	"story-server/internal/models"
)

// StoryGenerator запускает генерацию истории.
type StoryGenerator interface {
	Generate(ctx context.Context, ownerID, title, prompt string) (*models.Story, error)
}

// UpdateStoryInput содержит изменяемые поля истории. Nil означает "не менять".
type UpdateStoryInput struct {
	Title      *string
	TextPrompt *string
}

// StoryService определяет операции пользователя над историями.
type StoryService interface {
	Generate(ctx context.Context, caller models.Identity, title, prompt string) (*models.Story, error)
	Get(ctx context.Context, caller models.Identity, storyID string) (*models.Story, error)
	List(ctx context.Context, caller models.Identity, limit, offset int) ([]*models.Story, int, error)
	Update(ctx context.Context, caller models.Identity, storyID string, in UpdateStoryInput) (*models.Story, error)
	Delete(ctx context.Context, caller models.Identity, storyID string) error
	Review(ctx context.Context, caller models.Identity, storyID string, rating int, feedback *string) (*models.Review, error)
}

type storyServiceImpl struct {
	stories   interfaces.StoryRepository
	reviews   interfaces.ReviewRepository
	adminLogs interfaces.AdminLogRepository
	store     media.ArtifactStore
	generator StoryGenerator
	logger    *zap.Logger
}

// NewStoryService создает новый экземпляр StoryService.
func NewStoryService(
	stories interfaces.StoryRepository,
	reviews interfaces.ReviewRepository,
	adminLogs interfaces.AdminLogRepository,
	store media.ArtifactStore,
	generator StoryGenerator,
	logger *zap.Logger,
) StoryService {
	return &storyServiceImpl{
		stories:   stories,
		reviews:   reviews,
		adminLogs: adminLogs,
		store:     store,
		generator: generator,
		logger:    logger.Named("StoryService"),
	}
}

func (s *storyServiceImpl) Generate(ctx context.Context, caller models.Identity, title, prompt string) (*models.Story, error) {
	return s.generator.Generate(ctx, caller.UID, title, prompt)
}

func (s *storyServiceImpl) Get(ctx context.Context, caller models.Identity, storyID string) (*models.Story, error) {
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.UserID != caller.UID && !caller.IsAdmin {
		s.logger.Warn("Story access denied",
			zap.String("story_id", storyID), zap.String("caller", caller.UID))
		return nil, models.ErrForbidden
	}
	return story, nil
}

func (s *storyServiceImpl) List(ctx context.Context, caller models.Identity, limit, offset int) ([]*models.Story, int, error) {
	limit, err := checkLimit(limit, HistoryDefaultLimit, HistoryMaxLimit)
	if err != nil {
		return nil, 0, err
	}
	if offset < 0 {
		return nil, 0, models.NewValidationError("offset", "must not be negative")
	}
	return s.stories.ListByUser(ctx, caller.UID, limit, offset)
}

// getOwned загружает историю и проверяет, что вызывающий ее владелец.
func (s *storyServiceImpl) getOwned(ctx context.Context, caller models.Identity, storyID string) (*models.Story, error) {
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.UserID != caller.UID {
		return nil, models.ErrForbidden
	}
	return story, nil
}

func (s *storyServiceImpl) Update(ctx context.Context, caller models.Identity, storyID string, in UpdateStoryInput) (*models.Story, error) {
	story, err := s.getOwned(ctx, caller, storyID)
	if err != nil {
		return nil, err
	}
	if story.Status == models.StatusProcessing {
		return nil, models.ErrStoryProcessing
	}
	// Готовые истории не перегенерируются, поэтому промпт менять нельзя.
	if in.TextPrompt != nil && strings.TrimSpace(*in.TextPrompt) != story.TextPrompt {
		return nil, models.ErrPromptImmutable
	}
	if in.Title == nil {
		return story, nil
	}
	title, err := models.ValidateTitle(*in.Title)
	if err != nil {
		return nil, err
	}
	if title == story.Title {
		return story, nil
	}
	if err := s.stories.UpdateTitle(ctx, storyID, title); err != nil {
		return nil, err
	}
	s.logger.Info("Story title updated", zap.String("story_id", storyID))
	return s.stories.GetByID(ctx, storyID)
}

func (s *storyServiceImpl) Delete(ctx context.Context, caller models.Identity, storyID string) error {
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return err
	}
	isOwner := story.UserID == caller.UID
	if !isOwner && !caller.IsAdmin {
		return models.ErrForbidden
	}
	if err := s.deleteStory(ctx, story); err != nil {
		return err
	}

	if !isOwner {
		target := story.ID
		entry := &models.AdminActionLog{
			Kind:     models.ActionDeleteStory,
			ActorID:  caller.UID,
			TargetID: &target,
			Details:  mustJSON(map[string]string{"owner_id": story.UserID, "title": story.Title}),
		}
		if err := appendLog(ctx, s.adminLogs, entry); err != nil {
			s.logger.Error("Failed to record admin story deletion", zap.String("story_id", story.ID), zap.Error(err))
		}
	}
	return nil
}

// deleteStory освобождает артефакты и удаляет запись. Отзывы удаляются каскадно.
func (s *storyServiceImpl) deleteStory(ctx context.Context, story *models.Story) error {
	log := s.logger.With(zap.String("story_id", story.ID))
	if story.Status == models.StatusProcessing {
		return models.ErrStoryProcessing
	}
	if err := releaseArtifacts(ctx, s.store, story); err != nil {
		log.Error("Failed to release story artifacts", zap.Error(err))
		return err
	}
	if err := s.stories.Delete(ctx, story.ID); err != nil {
		log.Error("Failed to delete story record", zap.Error(err))
		return err
	}
	log.Info("Story deleted", zap.Int("artifacts", len(story.Artifacts())))
	return nil
}

func (s *storyServiceImpl) Review(ctx context.Context, caller models.Identity, storyID string, rating int, feedback *string) (*models.Review, error) {
	fb, err := models.ValidateReview(rating, feedback)
	if err != nil {
		return nil, err
	}
	if _, err := s.getOwned(ctx, caller, storyID); err != nil {
		return nil, err
	}
	review := &models.Review{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		UserID:    caller.UID,
		Rating:    rating,
		Feedback:  fb,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// releaseArtifacts удаляет все объекты истории из хранилища, включая папку истории.
func releaseArtifacts(ctx context.Context, store media.ArtifactStore, story *models.Story) error {
	for _, ref := range story.Artifacts() {
		if ref.StorageID == "" {
			continue
		}
		if err := store.Delete(ctx, ref.StorageID); err != nil {
			return fmt.Errorf("delete artifact %s: %w", ref.StorageID, err)
		}
	}
	if err := store.DeletePrefix(ctx, media.StoryPrefix(story.ID)); err != nil {
		return fmt.Errorf("delete story folder: %w", err)
	}
	return nil
}
