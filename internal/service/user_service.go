package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"story-server/internal/interfaces"
	"story-server/internal/models"
)

// UserService определяет операции с профилем текущего пользователя.
type UserService interface {
	Register(ctx context.Context, caller models.Identity, name, email string) (*models.User, error)
	Me(ctx context.Context, caller models.Identity) (*models.User, error)
	// Authorize дополняет личность данными из БД и отклоняет заблокированных.
	Authorize(ctx context.Context, caller models.Identity) (models.Identity, error)
}

type userServiceImpl struct {
	users  interfaces.UserRepository
	logger *zap.Logger
}

// NewUserService создает новый экземпляр UserService.
func NewUserService(users interfaces.UserRepository, logger *zap.Logger) UserService {
	return &userServiceImpl{
		users:  users,
		logger: logger.Named("UserService"),
	}
}

func (s *userServiceImpl) Register(ctx context.Context, caller models.Identity, name, email string) (*models.User, error) {
	name, err := models.ValidateName(name)
	if err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		email = caller.Email
	}
	if email == "" {
		return nil, models.NewValidationError("email", "must not be blank")
	}
	if caller.Email != "" && !strings.EqualFold(email, caller.Email) {
		return nil, models.NewValidationError("email", "does not match the authenticated account")
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:        caller.UID,
		Name:      name,
		Email:     email,
		IsAdmin:   caller.IsAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, models.ErrUserAlreadyExists) {
			s.logger.Error("Failed to register user", zap.String("user_id", caller.UID), zap.Error(err))
		}
		return nil, err
	}
	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return user, nil
}

func (s *userServiceImpl) Me(ctx context.Context, caller models.Identity) (*models.User, error) {
	user, err := s.users.GetByID(ctx, caller.UID)
	if err != nil {
		return nil, err
	}
	user.IsAdmin = user.IsAdmin || caller.IsAdmin
	return user, nil
}

func (s *userServiceImpl) Authorize(ctx context.Context, caller models.Identity) (models.Identity, error) {
	user, err := s.users.GetByID(ctx, caller.UID)
	if errors.Is(err, models.ErrUserNotFound) {
		// Незарегистрированный пользователь еще может вызвать /auth/register.
		return caller, nil
	}
	if err != nil {
		return caller, err
	}
	if user.Disabled {
		return caller, models.ErrUserBlocked
	}
	caller.IsAdmin = caller.IsAdmin || user.IsAdmin
	if caller.Email == "" {
		caller.Email = user.Email
	}
	return caller, nil
}
