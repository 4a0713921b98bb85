package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"story-server/internal/mocks"
	"story-server/internal/models"
	"story-server/internal/service"
)

type stubGenerator struct {
	calls int
	err   error
}

func (g *stubGenerator) Generate(_ context.Context, ownerID, title, prompt string) (*models.Story, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	if _, err := models.ValidatePrompt(prompt); err != nil {
		return nil, err
	}
	return &models.Story{ID: "story-42", UserID: ownerID, Title: title, Status: models.StatusProcessing}, nil
}

type apiFixture struct {
	verifier  *mocks.MockTokenVerifier
	users     *mocks.MockUserRepository
	stories   *mocks.MockStoryRepository
	reviews   *mocks.MockReviewRepository
	adminLogs *mocks.MockAdminLogRepository
	directory *mocks.MockIdentityDirectory
	store     *mocks.MockArtifactStore
	generator *stubGenerator
	router    *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	gin.SetMode(gin.TestMode)
	f := &apiFixture{
		verifier:  mocks.NewMockTokenVerifier(t),
		users:     mocks.NewMockUserRepository(t),
		stories:   mocks.NewMockStoryRepository(t),
		reviews:   mocks.NewMockReviewRepository(t),
		adminLogs: mocks.NewMockAdminLogRepository(t),
		directory: mocks.NewMockIdentityDirectory(t),
		store:     mocks.NewMockArtifactStore(t),
		generator: &stubGenerator{},
	}
	log := zap.NewNop()

	f.verifier.On("VerifyToken", mock.Anything, "owner-token").
		Return(&models.Identity{UID: "owner-1", Email: "owner@example.com", Provider: "jwt"}, nil).Maybe()
	f.verifier.On("VerifyToken", mock.Anything, "admin-token").
		Return(&models.Identity{UID: "admin-1", Email: "admin@example.com", IsAdmin: true, Provider: "jwt"}, nil).Maybe()
	f.verifier.On("VerifyToken", mock.Anything, "blocked-token").
		Return(&models.Identity{UID: "blocked-1"}, nil).Maybe()
	f.verifier.On("VerifyToken", mock.Anything, "expired-token").
		Return(nil, fmt.Errorf("%w: exp in the past", models.ErrTokenExpired)).Maybe()
	f.verifier.On("VerifyToken", mock.Anything, mock.Anything).
		Return(nil, models.ErrTokenInvalid).Maybe()

	f.users.On("GetByID", mock.Anything, "owner-1").
		Return(&models.User{ID: "owner-1", Name: "Owner", Email: "owner@example.com"}, nil).Maybe()
	f.users.On("GetByID", mock.Anything, "admin-1").Return(nil, models.ErrUserNotFound).Maybe()
	f.users.On("GetByID", mock.Anything, "blocked-1").
		Return(&models.User{ID: "blocked-1", Disabled: true}, nil).Maybe()

	stories := service.NewStoryService(f.stories, f.reviews, f.adminLogs, f.store, f.generator, log)
	users := service.NewUserService(f.users, log)
	admin := service.NewAdminService(f.users, f.stories, f.reviews, f.adminLogs, f.directory, f.store, log)
	h := NewHandler(stories, users, admin, f.verifier, log)

	f.router = gin.New()
	h.RegisterRoutes(f.router, nil, nil)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func storyOwnedBy(uid string, status models.StoryStatus) *models.Story {
	video := models.ArtifactRef{Kind: models.ArtifactVideo, StorageID: "stories/s1/video/story_video.mp4", URL: "https://cdn/v.mp4"}
	reason := "image stage failed (retryable): timeout"
	s := &models.Story{
		ID:         "s1",
		UserID:     uid,
		Title:      "The Lighthouse",
		TextPrompt: "a keeper tends the light through five long storms",
		Status:     status,
		Images:     []models.ArtifactRef{{Kind: models.ArtifactImage, StorageID: "stories/s1/images/scene_0.png", URL: "https://cdn/0.png"}},
		Video:      &video,
	}
	if status == models.StatusFailed {
		s.ErrorMessage = &reason
	}
	return s
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAuthBoundary(t *testing.T) {
	f := newAPIFixture(t)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   string
	}{
		{"missing token", http.MethodGet, "/story/history", "", http.StatusUnauthorized, models.ErrCodeUnauthorized},
		{"invalid token", http.MethodGet, "/story/history", "garbage", http.StatusUnauthorized, models.ErrCodeTokenInvalid},
		{"expired token", http.MethodGet, "/auth/me", "expired-token", http.StatusUnauthorized, models.ErrCodeTokenExpired},
		{"blocked user", http.MethodGet, "/story/history", "blocked-token", http.StatusForbidden, models.ErrCodeUserBlocked},
		{"non-admin on admin surface", http.MethodGet, "/admin/stats", "owner-token", http.StatusForbidden, models.ErrCodeForbidden},
		{"admin without token", http.MethodPost, "/admin/login", "", http.StatusUnauthorized, models.ErrCodeUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, tc.method, tc.path, tc.token, nil)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, decodeError(t, w).Code)
		})
	}
	f.stories.AssertNotCalled(t, "ListByUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateStory(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodPost, "/story/generate", "owner-token", gin.H{
		"title":       "The Lighthouse",
		"text_prompt": "A keeper tends the light. Storms roll in from the sea every night.",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp generateStoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "story-42", resp.Data.StoryID)
	assert.Equal(t, models.StatusProcessing, resp.Data.Status)
	assert.Equal(t, "2-5 minutes", resp.Data.EstimatedTime)
	assert.NotEmpty(t, resp.Message)
}

func TestGenerateStoryValidation(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/story/generate", "owner-token", gin.H{
		"title":       "Short",
		"text_prompt": "only four words here",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, models.ErrCodeValidation, resp.Code)
	assert.Equal(t, "text_prompt", resp.Field)

	w = f.do(t, http.MethodPost, "/story/generate", "owner-token", gin.H{
		"title":       "   ",
		"text_prompt": "one two three four five six",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "title", decodeError(t, w).Field)
	assert.Zero(t, f.generator.calls, "invalid input never reaches the generator")
}

func TestGenerateStoryQueueFull(t *testing.T) {
	f := newAPIFixture(t)
	f.generator.err = fmt.Errorf("%w: too many active tasks", models.ErrQueueFull)

	w := f.do(t, http.MethodPost, "/story/generate", "owner-token", gin.H{
		"title":       "The Lighthouse",
		"text_prompt": "one two three four five six",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, models.ErrCodeUnavailable, decodeError(t, w).Code)
}

func TestGetStory(t *testing.T) {
	f := newAPIFixture(t)
	f.stories.On("GetByID", mock.Anything, "s1").Return(storyOwnedBy("owner-1", models.StatusCompleted), nil)
	f.stories.On("GetByID", mock.Anything, "theirs").Return(storyOwnedBy("someone-else", models.StatusCompleted), nil)
	f.stories.On("GetByID", mock.Anything, "gone").Return(nil, models.ErrStoryNotFound)

	w := f.do(t, http.MethodGet, "/story/s1", "owner-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.StoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"https://cdn/0.png"}, resp.ImageURLs)
	require.NotNil(t, resp.VideoURL)

	w = f.do(t, http.MethodGet, "/story/theirs", "owner-token", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/story/theirs", "admin-token", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/story/gone", "owner-token", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFailedStoryHidesArtifacts(t *testing.T) {
	f := newAPIFixture(t)
	f.stories.On("GetByID", mock.Anything, "s1").Return(storyOwnedBy("owner-1", models.StatusFailed), nil)

	w := f.do(t, http.MethodGet, "/story/s1", "owner-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.StoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.ImageURLs)
	assert.Nil(t, resp.VideoURL)
	require.NotNil(t, resp.ErrorMessage)
}

func TestStoryConflicts(t *testing.T) {
	f := newAPIFixture(t)
	f.stories.On("GetByID", mock.Anything, "s1").Return(storyOwnedBy("owner-1", models.StatusCompleted), nil)
	f.stories.On("GetByID", mock.Anything, "busy").Return(storyOwnedBy("owner-1", models.StatusProcessing), nil)

	w := f.do(t, http.MethodPut, "/story/s1", "owner-token", gin.H{"text_prompt": "something else entirely new here"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodDelete, "/story/busy", "owner-token", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, models.ErrCodeConflict, decodeError(t, w).Code)
	f.store.AssertNotCalled(t, "DeletePrefix", mock.Anything, mock.Anything)
}

func TestStoryHistory(t *testing.T) {
	f := newAPIFixture(t)
	f.stories.On("ListByUser", mock.Anything, "owner-1", 10, 0).
		Return([]*models.Story{storyOwnedBy("owner-1", models.StatusCompleted)}, 1, nil).Once()

	w := f.do(t, http.MethodGet, "/story/history", "owner-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp storyListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 10, resp.Limit)
	assert.Len(t, resp.Stories, 1)

	for _, q := range []string{"limit=51", "limit=abc", "offset=-3"} {
		w := f.do(t, http.MethodGet, "/story/history?"+q, "owner-token", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestReviewStory(t *testing.T) {
	f := newAPIFixture(t)
	f.stories.On("GetByID", mock.Anything, "s1").Return(storyOwnedBy("owner-1", models.StatusCompleted), nil)
	f.reviews.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	w := f.do(t, http.MethodPost, "/story/s1/review", "owner-token", gin.H{"rating": 5, "feedback": "Wonderful and calm narration"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/story/s1/review", "owner-token", gin.H{"rating": 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "rating", decodeError(t, w).Field)
}

func TestRegisterAndVerify(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/auth/register", "owner-token", gin.H{"name": "Owner", "email": "mallory@example.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email", decodeError(t, w).Field)

	f.users.On("Create", mock.Anything, mock.Anything).Return(models.ErrUserAlreadyExists).Once()
	w = f.do(t, http.MethodPost, "/auth/register", "owner-token", gin.H{"name": "Owner"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, "/auth/verify", "admin-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":true,"uid":"admin-1","email":"admin@example.com","is_admin":true}`, w.Body.String())

	w = f.do(t, http.MethodGet, "/auth/me", "admin-token", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "admin claim without a profile row")
}

func TestAdminTargetsSelf(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/admin/users/admin-1/block", "admin-token", gin.H{"reason": "testing the self target rule"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/admin/users/owner-1/block", "admin-token", gin.H{"reason": "bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "reason", decodeError(t, w).Field)

	f.directory.AssertNotCalled(t, "SetDisabled", mock.Anything, mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "SetDisabled", mock.Anything, mock.Anything, mock.Anything)
	f.adminLogs.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestAdminLogsAndUsers(t *testing.T) {
	f := newAPIFixture(t)
	f.adminLogs.On("List", mock.Anything, models.ActionAdminLogin, 50, 0).
		Return([]models.AdminActionLog{{ID: "l1", Kind: models.ActionAdminLogin, ActorID: "admin-1"}}, 1, nil).Once()
	f.users.On("List", mock.Anything, 20, 20).Return([]models.UserSummary{}, 25, nil).Once()

	w := f.do(t, http.MethodGet, "/admin/logs?action_type=admin_login", "admin-token", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page models.PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	assert.False(t, page.HasNextPage)

	w = f.do(t, http.MethodGet, "/admin/users?page=2", "admin-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Page)

	w = f.do(t, http.MethodGet, "/admin/logs?limit=500", "admin-token", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/admin/users?page=9223372036854775807", "admin-token", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "page", decodeError(t, w).Field)
}
