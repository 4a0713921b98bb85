package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"story-server/internal/mocks"
	"story-server/internal/models"
)

type fakeGenerator struct {
	err error
}

func (g *fakeGenerator) Generate(_ context.Context, ownerID, title, prompt string) (*models.Story, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &models.Story{ID: "s-new", UserID: ownerID, Title: title, TextPrompt: prompt, Status: models.StatusProcessing}, nil
}

type storyFixture struct {
	stories   *mocks.MockStoryRepository
	reviews   *mocks.MockReviewRepository
	adminLogs *mocks.MockAdminLogRepository
	store     *mocks.MockArtifactStore
	svc       StoryService
}

func newStoryFixture(t *testing.T) *storyFixture {
	f := &storyFixture{
		stories:   mocks.NewMockStoryRepository(t),
		reviews:   mocks.NewMockReviewRepository(t),
		adminLogs: mocks.NewMockAdminLogRepository(t),
		store:     mocks.NewMockArtifactStore(t),
	}
	f.svc = NewStoryService(f.stories, f.reviews, f.adminLogs, f.store, &fakeGenerator{}, zap.NewNop())
	t.Cleanup(func() {
		f.stories.AssertExpectations(t)
		f.reviews.AssertExpectations(t)
		f.adminLogs.AssertExpectations(t)
		f.store.AssertExpectations(t)
	})
	return f
}

var (
	owner    = models.Identity{UID: "owner-1", Email: "owner@example.com"}
	stranger = models.Identity{UID: "other-1"}
	admin    = models.Identity{UID: "admin-1", IsAdmin: true}
)

func completedStory() *models.Story {
	audio := models.ArtifactRef{Kind: models.ArtifactAudio, StorageID: "stories/s1/audio/narration.mp3"}
	video := models.ArtifactRef{Kind: models.ArtifactVideo, StorageID: "stories/s1/video/story_video.mp4"}
	return &models.Story{
		ID:         "s1",
		UserID:     owner.UID,
		Title:      "The Lighthouse",
		TextPrompt: "a keeper tends the light through five long storms",
		Status:     models.StatusCompleted,
		Images: []models.ArtifactRef{
			{Kind: models.ArtifactImage, StorageID: "stories/s1/images/scene_0.png"},
			{Kind: models.ArtifactImage, StorageID: "stories/s1/images/scene_1.png"},
		},
		Audio: &audio,
		Video: &video,
	}
}

func TestStoryService_Get(t *testing.T) {
	f := newStoryFixture(t)
	story := completedStory()
	f.stories.On("GetByID", mock.Anything, "s1").Return(story, nil)
	f.stories.On("GetByID", mock.Anything, "missing").Return(nil, models.ErrStoryNotFound)

	got, err := f.svc.Get(context.Background(), owner, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	_, err = f.svc.Get(context.Background(), admin, "s1")
	require.NoError(t, err, "admin reads any story")

	_, err = f.svc.Get(context.Background(), stranger, "s1")
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.svc.Get(context.Background(), owner, "missing")
	assert.ErrorIs(t, err, models.ErrStoryNotFound)
}

func TestStoryService_ListBounds(t *testing.T) {
	f := newStoryFixture(t)
	f.stories.On("ListByUser", mock.Anything, owner.UID, HistoryDefaultLimit, 0).Return([]*models.Story{}, 0, nil).Once()
	f.stories.On("ListByUser", mock.Anything, owner.UID, 50, 20).Return([]*models.Story{completedStory()}, 21, nil).Once()

	_, _, err := f.svc.List(context.Background(), owner, 0, 0)
	require.NoError(t, err)

	list, total, err := f.svc.List(context.Background(), owner, 50, 20)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 21, total)

	for _, tc := range []struct{ limit, offset int }{{51, 0}, {-1, 0}, {10, -1}} {
		_, _, err := f.svc.List(context.Background(), owner, tc.limit, tc.offset)
		assert.ErrorIs(t, err, models.ErrValidation, "limit=%d offset=%d", tc.limit, tc.offset)
	}
}

func TestStoryService_Update(t *testing.T) {
	t.Run("title", func(t *testing.T) {
		f := newStoryFixture(t)
		story := completedStory()
		updated := completedStory()
		updated.Title = "A New Dawn"
		f.stories.On("GetByID", mock.Anything, "s1").Return(story, nil).Once()
		f.stories.On("UpdateTitle", mock.Anything, "s1", "A New Dawn").Return(nil).Once()
		f.stories.On("GetByID", mock.Anything, "s1").Return(updated, nil).Once()

		title := "  A New Dawn "
		got, err := f.svc.Update(context.Background(), owner, "s1", UpdateStoryInput{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "A New Dawn", got.Title)
	})

	t.Run("prompt is immutable", func(t *testing.T) {
		f := newStoryFixture(t)
		f.stories.On("GetByID", mock.Anything, "s1").Return(completedStory(), nil)
		prompt := "a completely different story about five dragons"
		_, err := f.svc.Update(context.Background(), owner, "s1", UpdateStoryInput{TextPrompt: &prompt})
		assert.ErrorIs(t, err, models.ErrPromptImmutable)
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("processing story is owned by the job", func(t *testing.T) {
		f := newStoryFixture(t)
		story := completedStory()
		story.Status = models.StatusProcessing
		f.stories.On("GetByID", mock.Anything, "s1").Return(story, nil)
		title := "A New Dawn"
		_, err := f.svc.Update(context.Background(), owner, "s1", UpdateStoryInput{Title: &title})
		assert.ErrorIs(t, err, models.ErrStoryProcessing)
	})

	t.Run("not the owner", func(t *testing.T) {
		f := newStoryFixture(t)
		f.stories.On("GetByID", mock.Anything, "s1").Return(completedStory(), nil)
		title := "A New Dawn"
		_, err := f.svc.Update(context.Background(), admin, "s1", UpdateStoryInput{Title: &title})
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("invalid title", func(t *testing.T) {
		f := newStoryFixture(t)
		f.stories.On("GetByID", mock.Anything, "s1").Return(completedStory(), nil)
		title := "  "
		_, err := f.svc.Update(context.Background(), owner, "s1", UpdateStoryInput{Title: &title})
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestStoryService_DeleteReleasesEveryArtifact(t *testing.T) {
	f := newStoryFixture(t)
	story := completedStory()
	f.stories.On("GetByID", mock.Anything, "s1").Return(story, nil).Once()
	for _, ref := range story.Artifacts() {
		f.store.On("Delete", mock.Anything, ref.StorageID).Return(nil).Once()
	}
	f.store.On("DeletePrefix", mock.Anything, "stories/s1/").Return(nil).Once()
	f.stories.On("Delete", mock.Anything, "s1").Return(nil).Once()

	require.NoError(t, f.svc.Delete(context.Background(), owner, "s1"))

	f.stories.On("GetByID", mock.Anything, "s1").Return(nil, models.ErrStoryNotFound).Once()
	_, err := f.svc.Get(context.Background(), owner, "s1")
	assert.ErrorIs(t, err, models.ErrStoryNotFound)
	f.adminLogs.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestStoryService_AdminDeleteIsLogged(t *testing.T) {
	f := newStoryFixture(t)
	story := completedStory()
	story.Audio, story.Video, story.Images = nil, nil, nil
	f.stories.On("GetByID", mock.Anything, "s1").Return(story, nil)
	f.store.On("DeletePrefix", mock.Anything, "stories/s1/").Return(nil)
	f.stories.On("Delete", mock.Anything, "s1").Return(nil)
	f.adminLogs.On("Append", mock.Anything, mock.MatchedBy(func(e *models.AdminActionLog) bool {
		return e.Kind == models.ActionDeleteStory && e.ActorID == admin.UID && *e.TargetID == "s1" && e.ID != ""
	})).Return(nil).Once()

	require.NoError(t, f.svc.Delete(context.Background(), admin, "s1"))
}

func TestStoryService_DeleteRejected(t *testing.T) {
	f := newStoryFixture(t)
	processing := completedStory()
	processing.ID = "s2"
	processing.Status = models.StatusProcessing
	f.stories.On("GetByID", mock.Anything, "s1").Return(completedStory(), nil)
	f.stories.On("GetByID", mock.Anything, "s2").Return(processing, nil)

	assert.ErrorIs(t, f.svc.Delete(context.Background(), stranger, "s1"), models.ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), owner, "s2"), models.ErrStoryProcessing)
	f.store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	f.stories.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestStoryService_DeleteKeepsRecordWhenStorageFails(t *testing.T) {
	f := newStoryFixture(t)
	story := completedStory()
	f.stories.On("GetByID", mock.Anything, "s1").Return(story, nil)
	f.store.On("Delete", mock.Anything, story.Images[0].StorageID).Return(errors.New("bucket offline"))

	err := f.svc.Delete(context.Background(), owner, "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket offline")
	f.stories.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestStoryService_Review(t *testing.T) {
	f := newStoryFixture(t)
	f.stories.On("GetByID", mock.Anything, "s1").Return(completedStory(), nil)
	f.reviews.On("Create", mock.Anything, mock.MatchedBy(func(r *models.Review) bool {
		return r.StoryID == "s1" && r.UserID == owner.UID && r.Rating == 5 && r.Feedback != nil
	})).Return(nil).Once()
	f.reviews.On("Create", mock.Anything, mock.Anything).Return(models.ErrAlreadyReviewed).Once()

	feedback := "Beautiful pictures and calm narration"
	review, err := f.svc.Review(context.Background(), owner, "s1", 5, &feedback)
	require.NoError(t, err)
	assert.NotEmpty(t, review.ID)

	_, err = f.svc.Review(context.Background(), owner, "s1", 4, nil)
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = f.svc.Review(context.Background(), stranger, "s1", 4, nil)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.svc.Review(context.Background(), owner, "s1", 9, nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestStoryService_GenerateUsesCaller(t *testing.T) {
	f := newStoryFixture(t)
	story, err := f.svc.Generate(context.Background(), owner, "Title", "one two three four five")
	require.NoError(t, err)
	assert.Equal(t, owner.UID, story.UserID)
}
