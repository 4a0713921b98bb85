package models

import "time"

// StoryStatus is the lifecycle state of a generation job.
type StoryStatus string

const (
	StatusProcessing StoryStatus = "processing"
	StatusCompleted  StoryStatus = "completed"
	StatusFailed     StoryStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s StoryStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo allows only processing -> completed and processing -> failed.
func (s StoryStatus) CanTransitionTo(next StoryStatus) bool {
	return s == StatusProcessing && next.IsTerminal()
}

// IsValid reports whether s is one of the known statuses.
func (s StoryStatus) IsValid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// ArtifactKind identifies the stage that produced an artifact.
type ArtifactKind string

const (
	ArtifactImage ArtifactKind = "image"
	ArtifactAudio ArtifactKind = "audio"
	ArtifactVideo ArtifactKind = "video"
)

// ArtifactRef points to a stored media object. Never mutated after creation.
type ArtifactRef struct {
	Kind      ArtifactKind `json:"kind" db:"kind"`
	StorageID string       `json:"storage_id" db:"storage_id"`
	URL       string       `json:"url" db:"url"`
}

// Story is the persistent record of one generation job and its outputs.
type Story struct {
	ID           string        `json:"id" db:"id"`
	UserID       string        `json:"user_id" db:"user_id"`
	Title        string        `json:"title" db:"title"`
	TextPrompt   string        `json:"text_prompt" db:"text_prompt"`
	Status       StoryStatus   `json:"status" db:"status"`
	SceneCount   int           `json:"scene_count" db:"scene_count"`
	ErrorMessage *string       `json:"error_message,omitempty" db:"error_message"`
	Images       []ArtifactRef `json:"images" db:"-"`
	Audio        *ArtifactRef  `json:"audio,omitempty" db:"-"`
	Video        *ArtifactRef  `json:"video,omitempty" db:"-"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// Artifacts returns every artifact reference held by the story.
func (s *Story) Artifacts() []ArtifactRef {
	refs := make([]ArtifactRef, 0, len(s.Images)+2)
	refs = append(refs, s.Images...)
	if s.Audio != nil {
		refs = append(refs, *s.Audio)
	}
	if s.Video != nil {
		refs = append(refs, *s.Video)
	}
	return refs
}

// StoryResponse is the public view of a story.
// Artifacts of a failed story are kept for diagnostics and not exposed here.
type StoryResponse struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	Title        string      `json:"title"`
	TextPrompt   string      `json:"text_prompt"`
	Status       StoryStatus `json:"status"`
	ImageURLs    []string    `json:"image_urls"`
	AudioURL     *string     `json:"audio_url"`
	VideoURL     *string     `json:"video_url"`
	ErrorMessage *string     `json:"error_message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// NewStoryResponse builds the public view of s.
func NewStoryResponse(s *Story) StoryResponse {
	resp := StoryResponse{
		ID:           s.ID,
		UserID:       s.UserID,
		Title:        s.Title,
		TextPrompt:   s.TextPrompt,
		Status:       s.Status,
		ImageURLs:    []string{},
		ErrorMessage: s.ErrorMessage,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if s.Status == StatusFailed {
		return resp
	}
	for _, img := range s.Images {
		resp.ImageURLs = append(resp.ImageURLs, img.URL)
	}
	if s.Audio != nil {
		u := s.Audio.URL
		resp.AudioURL = &u
	}
	if s.Video != nil {
		u := s.Video.URL
		resp.VideoURL = &u
	}
	return resp
}

// StoryEvent is published when a story changes stage or reaches a terminal status.
type StoryEvent struct {
	StoryID    string      `json:"story_id"`
	UserID     string      `json:"user_id"`
	Status     StoryStatus `json:"status"`
	Stage      string      `json:"stage,omitempty"`
	Error      string      `json:"error,omitempty"`
	VideoURL   string      `json:"video_url,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}
