package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"story-server/internal/auth"
	"story-server/internal/delivery/http/middleware"
	"story-server/internal/models"
	"story-server/internal/service"
)

// Handler обслуживает HTTP API историй, профиля и админки.
type Handler struct {
	stories  service.StoryService
	users    service.UserService
	admin    service.AdminService
	verifier auth.TokenVerifier
	logger   *zap.Logger
}

// NewHandler создает новый экземпляр обработчика.
func NewHandler(
	stories service.StoryService,
	users service.UserService,
	admin service.AdminService,
	verifier auth.TokenVerifier,
	logger *zap.Logger,
) *Handler {
	RegisterValidators()
	return &Handler{
		stories:  stories,
		users:    users,
		admin:    admin,
		verifier: verifier,
		logger:   logger.Named("HTTPHandler"),
	}
}

// RegisterRoutes регистрирует маршруты API. generateLimiter и wsHandler могут быть nil.
func (h *Handler) RegisterRoutes(router gin.IRouter, generateLimiter, wsHandler gin.HandlerFunc) {
	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	authed := router.Group("")
	authed.Use(middleware.Auth(h.verifier, h.users, h.logger))

	authGroup := authed.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.GET("/me", h.me)
		authGroup.GET("/verify", h.verify)
	}

	storyGroup := authed.Group("/story")
	{
		generate := []gin.HandlerFunc{}
		if generateLimiter != nil {
			generate = append(generate, generateLimiter)
		}
		storyGroup.POST("/generate", append(generate, h.generateStory)...)
		storyGroup.GET("/history", h.storyHistory)
		storyGroup.GET("/:id", h.getStory)
		storyGroup.PUT("/:id", h.updateStory)
		storyGroup.DELETE("/:id", h.deleteStory)
		storyGroup.POST("/:id/review", h.reviewStory)
	}

	if wsHandler != nil {
		authed.GET("/ws", wsHandler)
	}

	adminGroup := authed.Group("/admin")
	adminGroup.Use(middleware.RequireAdmin())
	{
		adminGroup.POST("/login", h.adminLogin)
		adminGroup.GET("/users", h.listUsers)
		adminGroup.POST("/users/:id/block", h.blockUser)
		adminGroup.POST("/users/:id/unblock", h.unblockUser)
		adminGroup.DELETE("/users/:id", h.deleteUser)
		adminGroup.GET("/logs", h.adminLogs)
		adminGroup.GET("/stats", h.stats)
	}
}

// caller достает личность, установленную middleware.Auth.
func caller(c *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		handleServiceError(c, models.ErrTokenMissing)
		return models.Identity{}, false
	}
	return identity, true
}
