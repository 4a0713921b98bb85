package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"story-server/internal/models"
)

func (h *Handler) adminLogin(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	if err := h.admin.Login(c.Request.Context(), identity); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Admin login recorded",
		"admin":   verifyResponse{Valid: true, UID: identity.UID, Email: identity.Email, IsAdmin: true},
	})
}

func (h *Handler) listUsers(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		handleServiceError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp, err := h.admin.ListUsers(c.Request.Context(), page, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type userAction func(ctx context.Context, admin models.Identity, userID, reason string) error

// runUserAction общий код block/unblock/delete: тело {reason}, цель из пути.
func (h *Handler) runUserAction(c *gin.Context, action userAction, message string) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	var req adminReasonRequest
	if err := bindJSON(c, &req); err != nil {
		handleServiceError(c, err)
		return
	}
	userID := c.Param("id")
	if err := action(c.Request.Context(), identity, userID, req.Reason); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: message, UserID: userID})
}

// @Summary Блокировка пользователя
// @Tags admin
// @Param request body adminReasonRequest true "Причина"
// @Failure 409 {object} models.ErrorResponse "Нельзя блокировать себя или другого администратора"
// @Router /admin/users/{id}/block [post]
func (h *Handler) blockUser(c *gin.Context) {
	h.runUserAction(c, h.admin.BlockUser, "User blocked successfully")
}

func (h *Handler) unblockUser(c *gin.Context) {
	h.runUserAction(c, h.admin.UnblockUser, "User unblocked successfully")
}

func (h *Handler) deleteUser(c *gin.Context) {
	h.runUserAction(c, h.admin.DeleteUser, "User deleted successfully")
}

func (h *Handler) adminLogs(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		handleServiceError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp, err := h.admin.Logs(c.Request.Context(), page, limit, c.Query("action_type"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
