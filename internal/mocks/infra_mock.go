package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"story-server/internal/auth"
	"story-server/internal/media"
	"story-server/internal/messaging"
	"story-server/internal/models"
)

// MockTokenVerifier is a mock type for the TokenVerifier type
type MockTokenVerifier struct {
	mock.Mock
}

func (_m *MockTokenVerifier) VerifyToken(ctx context.Context, token string) (*models.Identity, error) {
	ret := _m.Called(ctx, token)
	var r0 *models.Identity
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Identity)
	}
	return r0, ret.Error(1)
}

// NewMockTokenVerifier creates a new instance of MockTokenVerifier.
func NewMockTokenVerifier(t interface {
	mock.TestingT
	Helper()
}) *MockTokenVerifier {
	m := &MockTokenVerifier{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ auth.TokenVerifier = (*MockTokenVerifier)(nil)

// MockIdentityDirectory is a mock type for the IdentityDirectory type
type MockIdentityDirectory struct {
	mock.Mock
}

func (_m *MockIdentityDirectory) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	return _m.Called(ctx, uid, disabled).Error(0)
}

func (_m *MockIdentityDirectory) SetAdmin(ctx context.Context, uid string, admin bool) error {
	return _m.Called(ctx, uid, admin).Error(0)
}

func (_m *MockIdentityDirectory) IsAdmin(ctx context.Context, uid string) (bool, error) {
	ret := _m.Called(ctx, uid)
	return ret.Bool(0), ret.Error(1)
}

func (_m *MockIdentityDirectory) Delete(ctx context.Context, uid string) error {
	return _m.Called(ctx, uid).Error(0)
}

// NewMockIdentityDirectory creates a new instance of MockIdentityDirectory.
func NewMockIdentityDirectory(t interface {
	mock.TestingT
	Helper()
}) *MockIdentityDirectory {
	m := &MockIdentityDirectory{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ auth.IdentityDirectory = (*MockIdentityDirectory)(nil)

// MockArtifactStore is a mock type for the ArtifactStore type
type MockArtifactStore struct {
	mock.Mock
}

func (_m *MockArtifactStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	ret := _m.Called(ctx, key, contentType, body)
	return ret.String(0), ret.Error(1)
}

func (_m *MockArtifactStore) Delete(ctx context.Context, key string) error {
	return _m.Called(ctx, key).Error(0)
}

func (_m *MockArtifactStore) DeletePrefix(ctx context.Context, prefix string) error {
	return _m.Called(ctx, prefix).Error(0)
}

// NewMockArtifactStore creates a new instance of MockArtifactStore.
func NewMockArtifactStore(t interface {
	mock.TestingT
	Helper()
}) *MockArtifactStore {
	m := &MockArtifactStore{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ media.ArtifactStore = (*MockArtifactStore)(nil)

// MockEventPublisher is a mock type for the EventPublisher type
type MockEventPublisher struct {
	mock.Mock
}

func (_m *MockEventPublisher) PublishStoryEvent(ctx context.Context, event models.StoryEvent) error {
	return _m.Called(ctx, event).Error(0)
}

func (_m *MockEventPublisher) Close() error {
	return _m.Called().Error(0)
}

// NewMockEventPublisher creates a new instance of MockEventPublisher.
func NewMockEventPublisher(t interface {
	mock.TestingT
	Helper()
}) *MockEventPublisher {
	m := &MockEventPublisher{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ messaging.EventPublisher = (*MockEventPublisher)(nil)

// MockNotifier is a mock type for the websocket notifier
type MockNotifier struct {
	mock.Mock
}

func (_m *MockNotifier) SendToUser(userID, messageType, topic string, payload interface{}) {
	_m.Called(userID, messageType, topic, payload)
}

// NewMockNotifier creates a new instance of MockNotifier.
func NewMockNotifier(t interface {
	mock.TestingT
	Helper()
}) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Helper()
	return m
}
