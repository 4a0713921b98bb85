package http

import "story-server/internal/models"

// --- Request Structs ---

type generateStoryRequest struct {
	Title      string `json:"title" binding:"required,notblank,max=200"`
	TextPrompt string `json:"text_prompt" binding:"required,notblank,max=1000,minwords=5"`
}

type updateStoryRequest struct {
	Title      *string `json:"title" binding:"omitempty,notblank,max=200"`
	TextPrompt *string `json:"text_prompt"`
}

type reviewRequest struct {
	Rating   int     `json:"rating" binding:"required,min=1,max=5"`
	Feedback *string `json:"feedback" binding:"omitempty,max=1000"`
}

type registerRequest struct {
	Name  string `json:"name" binding:"required,notblank,max=100"`
	Email string `json:"email" binding:"omitempty,email"`
}

type adminReasonRequest struct {
	Reason string `json:"reason" binding:"required,notblank,max=500,minwords=3"`
}

// --- Response Structs ---

type generateStoryData struct {
	StoryID       string             `json:"story_id"`
	Status        models.StoryStatus `json:"status"`
	EstimatedTime string             `json:"estimated_time"`
}

type generateStoryResponse struct {
	Message string            `json:"message"`
	Data    generateStoryData `json:"data"`
}

type storyListResponse struct {
	Stories []models.StoryResponse `json:"stories"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

type verifyResponse struct {
	Valid   bool   `json:"valid"`
	UID     string `json:"uid"`
	Email   string `json:"email,omitempty"`
	IsAdmin bool   `json:"is_admin"`
}

type messageResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
	StoryID string `json:"story_id,omitempty"`
}
