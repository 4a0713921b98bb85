package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"story-server/internal/interfaces"
	"story-server/internal/models"
)

// MockUserRepository is a mock type for the UserRepository type
type MockUserRepository struct {
	mock.Mock
}

func (_m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	return _m.Called(ctx, user).Error(0)
}

func (_m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	ret := _m.Called(ctx, id)
	var r0 *models.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.User)
	}
	return r0, ret.Error(1)
}

func (_m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]models.UserSummary, int, error) {
	ret := _m.Called(ctx, limit, offset)
	var r0 []models.UserSummary
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.UserSummary)
	}
	return r0, ret.Int(1), ret.Error(2)
}

func (_m *MockUserRepository) SetDisabled(ctx context.Context, id string, disabled bool) error {
	return _m.Called(ctx, id, disabled).Error(0)
}

func (_m *MockUserRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	return _m.Called(ctx, id, isAdmin).Error(0)
}

func (_m *MockUserRepository) Delete(ctx context.Context, id string) error {
	return _m.Called(ctx, id).Error(0)
}

func (_m *MockUserRepository) Counts(ctx context.Context) (int, int, error) {
	ret := _m.Called(ctx)
	return ret.Int(0), ret.Int(1), ret.Error(2)
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository(t interface {
	mock.TestingT
	Helper()
}) *MockUserRepository {
	m := &MockUserRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ interfaces.UserRepository = (*MockUserRepository)(nil)

// MockReviewRepository is a mock type for the ReviewRepository type
type MockReviewRepository struct {
	mock.Mock
}

func (_m *MockReviewRepository) Create(ctx context.Context, review *models.Review) error {
	return _m.Called(ctx, review).Error(0)
}

func (_m *MockReviewRepository) Count(ctx context.Context) (int, error) {
	ret := _m.Called(ctx)
	return ret.Int(0), ret.Error(1)
}

// NewMockReviewRepository creates a new instance of MockReviewRepository.
func NewMockReviewRepository(t interface {
	mock.TestingT
	Helper()
}) *MockReviewRepository {
	m := &MockReviewRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ interfaces.ReviewRepository = (*MockReviewRepository)(nil)

// MockAdminLogRepository is a mock type for the AdminLogRepository type
type MockAdminLogRepository struct {
	mock.Mock
}

func (_m *MockAdminLogRepository) Append(ctx context.Context, entry *models.AdminActionLog) error {
	return _m.Called(ctx, entry).Error(0)
}

func (_m *MockAdminLogRepository) List(ctx context.Context, kind models.AdminActionKind, limit, offset int) ([]models.AdminActionLog, int, error) {
	ret := _m.Called(ctx, kind, limit, offset)
	var r0 []models.AdminActionLog
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.AdminActionLog)
	}
	return r0, ret.Int(1), ret.Error(2)
}

func (_m *MockAdminLogRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	ret := _m.Called(ctx, since)
	return ret.Int(0), ret.Error(1)
}

// NewMockAdminLogRepository creates a new instance of MockAdminLogRepository.
func NewMockAdminLogRepository(t interface {
	mock.TestingT
	Helper()
}) *MockAdminLogRepository {
	m := &MockAdminLogRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ interfaces.AdminLogRepository = (*MockAdminLogRepository)(nil)
