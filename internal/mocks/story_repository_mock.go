package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"story-server/internal/interfaces"
	"story-server/internal/models"
)

// MockStoryRepository is a mock type for the StoryRepository type
type MockStoryRepository struct {
	mock.Mock
}

func (_m *MockStoryRepository) Create(ctx context.Context, story *models.Story) error {
	return _m.Called(ctx, story).Error(0)
}

func (_m *MockStoryRepository) GetByID(ctx context.Context, id string) (*models.Story, error) {
	ret := _m.Called(ctx, id)
	if rf, ok := ret.Get(0).(func(context.Context, string) (*models.Story, error)); ok {
		return rf(ctx, id)
	}
	var r0 *models.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Story)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Story, int, error) {
	ret := _m.Called(ctx, userID, limit, offset)
	var r0 []*models.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.Story)
	}
	return r0, ret.Int(1), ret.Error(2)
}

func (_m *MockStoryRepository) ListAllByUser(ctx context.Context, userID string) ([]*models.Story, error) {
	ret := _m.Called(ctx, userID)
	var r0 []*models.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.Story)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryRepository) HasProcessing(ctx context.Context, userID string) (bool, error) {
	ret := _m.Called(ctx, userID)
	return ret.Bool(0), ret.Error(1)
}

func (_m *MockStoryRepository) UpdateTitle(ctx context.Context, id, title string) error {
	return _m.Called(ctx, id, title).Error(0)
}

func (_m *MockStoryRepository) SaveImages(ctx context.Context, id string, images []models.ArtifactRef) error {
	return _m.Called(ctx, id, images).Error(0)
}

func (_m *MockStoryRepository) SaveAudio(ctx context.Context, id string, audio models.ArtifactRef) error {
	return _m.Called(ctx, id, audio).Error(0)
}

func (_m *MockStoryRepository) MarkCompleted(ctx context.Context, id string, video models.ArtifactRef) error {
	return _m.Called(ctx, id, video).Error(0)
}

func (_m *MockStoryRepository) MarkFailed(ctx context.Context, id, reason string) error {
	return _m.Called(ctx, id, reason).Error(0)
}

func (_m *MockStoryRepository) FailAllProcessing(ctx context.Context, reason string) (int, error) {
	ret := _m.Called(ctx, reason)
	return ret.Int(0), ret.Error(1)
}

func (_m *MockStoryRepository) Delete(ctx context.Context, id string) error {
	return _m.Called(ctx, id).Error(0)
}

func (_m *MockStoryRepository) CountByStatus(ctx context.Context) (map[models.StoryStatus]int, error) {
	ret := _m.Called(ctx)
	var r0 map[models.StoryStatus]int
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(map[models.StoryStatus]int)
	}
	return r0, ret.Error(1)
}

// NewMockStoryRepository creates a new instance of MockStoryRepository.
func NewMockStoryRepository(t interface {
	mock.TestingT
	Helper()
}) *MockStoryRepository {
	m := &MockStoryRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ interfaces.StoryRepository = (*MockStoryRepository)(nil)
