package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"story-server/internal/models"
	"story-server/internal/pipeline"
	"story-server/internal/service"
)

// @Summary Запуск генерации истории
// @Description Создает запись истории и запускает фоновую генерацию сцен, озвучки и видео
// @Tags story
// @Accept json
// @Produce json
// @Param request body generateStoryRequest true "Название и текст истории"
// @Success 201 {object} generateStoryResponse
// @Failure 400 {object} models.ErrorResponse "Неверные данные запроса"
// @Failure 429 {object} models.ErrorResponse "Превышен лимит запросов"
// @Failure 503 {object} models.ErrorResponse "Очередь генерации заполнена"
// @Router /story/generate [post]
func (h *Handler) generateStory(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	var req generateStoryRequest
	if err := bindJSON(c, &req); err != nil {
		handleServiceError(c, err)
		return
	}

	story, err := h.stories.Generate(c.Request.Context(), identity, req.Title, req.TextPrompt)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, generateStoryResponse{
		Message: "Story generation started",
		Data: generateStoryData{
			StoryID:       story.ID,
			Status:        story.Status,
			EstimatedTime: pipeline.EstimatedTime,
		},
	})
}

func (h *Handler) storyHistory(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		handleServiceError(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		handleServiceError(c, err)
		return
	}

	stories, total, err := h.stories.List(c.Request.Context(), identity, limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if limit == 0 {
		limit = service.HistoryDefaultLimit
	}

	resp := storyListResponse{
		Stories: make([]models.StoryResponse, 0, len(stories)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}
	for _, s := range stories {
		resp.Stories = append(resp.Stories, models.NewStoryResponse(s))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getStory(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	story, err := h.stories.Get(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewStoryResponse(story))
}

// @Summary Обновление истории
// @Description Меняет название. Текст истории после создания не меняется
// @Tags story
// @Router /story/{id} [put]
func (h *Handler) updateStory(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	var req updateStoryRequest
	if err := bindJSON(c, &req); err != nil {
		handleServiceError(c, err)
		return
	}

	story, err := h.stories.Update(c.Request.Context(), identity, c.Param("id"), service.UpdateStoryInput{
		Title:      req.Title,
		TextPrompt: req.TextPrompt,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewStoryResponse(story))
}

func (h *Handler) deleteStory(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	storyID := c.Param("id")
	if err := h.stories.Delete(c.Request.Context(), identity, storyID); err != nil {
		handleServiceError(c, err)
		return
	}
	h.logger.Info("Story deleted via API", zap.String("story_id", storyID), zap.String("user_id", identity.UID))
	c.JSON(http.StatusOK, messageResponse{Message: "Story deleted successfully", StoryID: storyID})
}

func (h *Handler) reviewStory(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := bindJSON(c, &req); err != nil {
		handleServiceError(c, err)
		return
	}
	review, err := h.stories.Review(c.Request.Context(), identity, c.Param("id"), req.Rating, req.Feedback)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}
