package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"story-server/internal/auth"
	"story-server/internal/interfaces"
	"story-server/internal/media"
	"story-server/internal/models"
)

const statsWindow = 30 * 24 * time.Hour

// AdminService определяет административные операции. Каждое изменение пишется в журнал.
type AdminService interface {
	Login(ctx context.Context, admin models.Identity) error
	ListUsers(ctx context.Context, page, limit int) (*models.PaginatedResponse, error)
	BlockUser(ctx context.Context, admin models.Identity, userID, reason string) error
	UnblockUser(ctx context.Context, admin models.Identity, userID, reason string) error
	DeleteUser(ctx context.Context, admin models.Identity, userID, reason string) error
	Logs(ctx context.Context, page, limit int, kind string) (*models.PaginatedResponse, error)
	Stats(ctx context.Context) (*models.PlatformStats, error)
}

type adminServiceImpl struct {
	users     interfaces.UserRepository
	stories   interfaces.StoryRepository
	reviews   interfaces.ReviewRepository
	adminLogs interfaces.AdminLogRepository
	directory auth.IdentityDirectory
	store     media.ArtifactStore
	now       func() time.Time
	logger    *zap.Logger
}

// NewAdminService создает новый экземпляр AdminService.
func NewAdminService(
	users interfaces.UserRepository,
	stories interfaces.StoryRepository,
	reviews interfaces.ReviewRepository,
	adminLogs interfaces.AdminLogRepository,
	directory auth.IdentityDirectory,
	store media.ArtifactStore,
	logger *zap.Logger,
) AdminService {
	return &adminServiceImpl{
		users:     users,
		stories:   stories,
		reviews:   reviews,
		adminLogs: adminLogs,
		directory: directory,
		store:     store,
		now:       time.Now,
		logger:    logger.Named("AdminService"),
	}
}

func (s *adminServiceImpl) Login(ctx context.Context, admin models.Identity) error {
	entry := &models.AdminActionLog{
		Kind:    models.ActionAdminLogin,
		ActorID: admin.UID,
		Details: mustJSON(map[string]string{"email": admin.Email, "provider": admin.Provider}),
	}
	if err := appendLog(ctx, s.adminLogs, entry); err != nil {
		return err
	}
	s.logger.Info("Admin logged in", zap.String("admin_id", admin.UID))
	return nil
}

func (s *adminServiceImpl) ListUsers(ctx context.Context, page, limit int) (*models.PaginatedResponse, error) {
	limit, err := checkLimit(limit, UsersDefaultLimit, UsersMaxLimit)
	if err != nil {
		return nil, err
	}
	offset, err := pageOffset(page, limit)
	if err != nil {
		return nil, err
	}
	users, total, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.UserSummary{}
	}
	return newPage(users, total, page, limit), nil
}

// checkTarget проверяет причину и цель действия до любых изменений.
func (s *adminServiceImpl) checkTarget(ctx context.Context, admin models.Identity, userID, reason string) (*models.User, string, error) {
	reason, err := models.ValidateReason(reason)
	if err != nil {
		return nil, "", err
	}
	if userID == admin.UID {
		return nil, "", models.ErrSelfTarget
	}
	target, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if target.IsAdmin {
		return nil, "", models.ErrTargetIsAdmin
	}
	// Права администратора может выдать и провайдер (claim), без флага в БД.
	claimed, err := s.directory.IsAdmin(ctx, target.ID)
	if err != nil {
		return nil, "", err
	}
	if claimed {
		return nil, "", models.ErrTargetIsAdmin
	}
	return target, reason, nil
}

func (s *adminServiceImpl) BlockUser(ctx context.Context, admin models.Identity, userID, reason string) error {
	return s.setDisabled(ctx, admin, userID, reason, true)
}

func (s *adminServiceImpl) UnblockUser(ctx context.Context, admin models.Identity, userID, reason string) error {
	return s.setDisabled(ctx, admin, userID, reason, false)
}

func (s *adminServiceImpl) setDisabled(ctx context.Context, admin models.Identity, userID, reason string, disabled bool) error {
	log := s.logger.With(zap.String("admin_id", admin.UID), zap.String("user_id", userID), zap.Bool("disabled", disabled))
	target, reason, err := s.checkTarget(ctx, admin, userID, reason)
	if err != nil {
		log.Warn("Admin action rejected", zap.Error(err))
		return err
	}

	if err := s.disable(ctx, target.ID, disabled); err != nil {
		log.Error("Failed to change disabled state", zap.Error(err))
		return err
	}

	kind := models.ActionBlockUser
	if !disabled {
		kind = models.ActionUnblockUser
	}
	if err := appendLog(ctx, s.adminLogs, &models.AdminActionLog{
		Kind:     kind,
		ActorID:  admin.UID,
		TargetID: &target.ID,
		Reason:   &reason,
		Details:  mustJSON(map[string]string{"email": target.Email}),
	}); err != nil {
		return err
	}
	log.Info("User disabled state changed")
	return nil
}

// disable меняет флаг сначала у провайдера: при его ошибке в БД ничего не меняется.
func (s *adminServiceImpl) disable(ctx context.Context, userID string, disabled bool) error {
	if err := s.directory.SetDisabled(ctx, userID, disabled); err != nil {
		return fmt.Errorf("identity provider: %w", err)
	}
	if err := s.users.SetDisabled(ctx, userID, disabled); err != nil {
		return fmt.Errorf("user row: %w", err)
	}
	return nil
}

func (s *adminServiceImpl) DeleteUser(ctx context.Context, admin models.Identity, userID, reason string) error {
	log := s.logger.With(zap.String("admin_id", admin.UID), zap.String("user_id", userID))
	target, reason, err := s.checkTarget(ctx, admin, userID, reason)
	if err != nil {
		log.Warn("Admin action rejected", zap.Error(err))
		return err
	}
	busy, err := s.stories.HasProcessing(ctx, target.ID)
	if err != nil {
		return err
	}
	if busy {
		return models.ErrUserHasActiveJobs
	}

	// Блокируем до каскада, чтобы пользователь не запустил новую генерацию,
	// и проверяем истории уже после блокировки.
	if !target.Disabled {
		if err := s.disable(ctx, target.ID, true); err != nil {
			log.Error("Failed to block user before delete", zap.Error(err))
			return err
		}
	}
	stories, err := s.stories.ListAllByUser(ctx, target.ID)
	if err == nil {
		for _, story := range stories {
			if story.Status == models.StatusProcessing {
				err = models.ErrUserHasActiveJobs
				break
			}
		}
	}
	if err != nil {
		if !target.Disabled {
			if restoreErr := s.disable(ctx, target.ID, false); restoreErr != nil {
				log.Error("Failed to restore user after aborted delete", zap.Error(restoreErr))
			}
		}
		return err
	}

	for _, story := range stories {
		if err := releaseArtifacts(ctx, s.store, story); err != nil {
			log.Error("Failed to release story artifacts", zap.String("story_id", story.ID), zap.Error(err))
			return err
		}
		if err := s.stories.Delete(ctx, story.ID); err != nil {
			log.Error("Failed to delete story", zap.String("story_id", story.ID), zap.Error(err))
			return err
		}
	}
	if err := s.users.Delete(ctx, target.ID); err != nil {
		return err
	}
	if err := s.directory.Delete(ctx, target.ID); err != nil {
		log.Error("Failed to delete identity", zap.Error(err))
		return err
	}

	if err := appendLog(ctx, s.adminLogs, &models.AdminActionLog{
		Kind:     models.ActionDeleteUser,
		ActorID:  admin.UID,
		TargetID: &target.ID,
		Reason:   &reason,
		Details: mustJSON(map[string]any{
			"email":           target.Email,
			"stories_deleted": len(stories),
		}),
	}); err != nil {
		return err
	}
	log.Info("User deleted", zap.Int("stories_deleted", len(stories)))
	return nil
}

func (s *adminServiceImpl) Logs(ctx context.Context, page, limit int, kind string) (*models.PaginatedResponse, error) {
	limit, err := checkLimit(limit, LogsDefaultLimit, LogsMaxLimit)
	if err != nil {
		return nil, err
	}
	offset, err := pageOffset(page, limit)
	if err != nil {
		return nil, err
	}
	k := models.AdminActionKind(kind)
	if kind != "" && !k.IsValid() {
		return nil, models.NewValidationError("action_type", "unknown action type")
	}
	logs, total, err := s.adminLogs.List(ctx, k, limit, offset)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []models.AdminActionLog{}
	}
	return newPage(logs, total, page, limit), nil
}

func (s *adminServiceImpl) Stats(ctx context.Context) (*models.PlatformStats, error) {
	now := s.now().UTC()
	stats := &models.PlatformStats{GeneratedAt: now}

	total, disabled, err := s.users.Counts(ctx)
	if err != nil {
		return nil, err
	}
	stats.Users.Total = total
	stats.Users.Disabled = disabled
	stats.Users.Active = total - disabled

	byStatus, err := s.stories.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	stats.Stories.Processing = byStatus[models.StatusProcessing]
	stats.Stories.Completed = byStatus[models.StatusCompleted]
	stats.Stories.Failed = byStatus[models.StatusFailed]
	stats.Stories.Total = stats.Stories.Processing + stats.Stories.Completed + stats.Stories.Failed

	if stats.Reviews.Total, err = s.reviews.Count(ctx); err != nil {
		return nil, err
	}
	if stats.AdminActionsLast30Days, err = s.adminLogs.CountSince(ctx, now.Add(-statsWindow)); err != nil {
		return nil, err
	}
	return stats, nil
}

func appendLog(ctx context.Context, repo interfaces.AdminLogRepository, entry *models.AdminActionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return repo.Append(ctx, entry)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
