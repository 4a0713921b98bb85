package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary Регистрация пользователя
// @Description Создает профиль для уже проверенного токена
// @Tags auth
// @Accept json
// @Produce json
// @Param request body registerRequest true "Имя и email"
// @Success 201 {object} models.User
// @Failure 400 {object} models.ErrorResponse "Неверные данные запроса"
// @Failure 409 {object} models.ErrorResponse "Пользователь уже существует"
// @Router /auth/register [post]
func (h *Handler) register(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		handleServiceError(c, err)
		return
	}
	user, err := h.users.Register(c.Request.Context(), identity, req.Name, req.Email)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) me(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	user, err := h.users.Me(c.Request.Context(), identity)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) verify(c *gin.Context) {
	identity, ok := caller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, verifyResponse{
		Valid:   true,
		UID:     identity.UID,
		Email:   identity.Email,
		IsAdmin: identity.IsAdmin,
	})
}
