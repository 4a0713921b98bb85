package media

import (
	"context"
	"fmt"
	"io"
)

// ArtifactStore is durable storage for generated media.
type ArtifactStore interface {
	// Put stores body under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	// Delete removes a single object. A missing object is not an error.
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object under prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// StoryPrefix is the storage folder of a story.
func StoryPrefix(storyID string) string {
	return fmt.Sprintf("stories/%s/", storyID)
}

// ImageKey is the storage key of the index-th scene image.
func ImageKey(storyID string, index int) string {
	return fmt.Sprintf("%simages/scene_%d.png", StoryPrefix(storyID), index)
}

// AudioKey is the storage key of the narration.
func AudioKey(storyID string) string {
	return StoryPrefix(storyID) + "audio/narration.mp3"
}

// VideoKey is the storage key of the compiled video.
func VideoKey(storyID string) string {
	return StoryPrefix(storyID) + "video/story_video.mp4"
}
