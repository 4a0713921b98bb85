package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"story-server/internal/auth"
	"story-server/internal/models"
)

// Authorizer дополняет личность данными учетной записи и отклоняет заблокированных.
type Authorizer interface {
	Authorize(ctx context.Context, caller models.Identity) (models.Identity, error)
}

// Auth проверяет bearer-токен до любой бизнес-логики и кладет личность в контекст.
// Для WebSocket-рукопожатия токен можно передать в параметре ?token=.
func Auth(verifier auth.TokenVerifier, users Authorizer, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("AuthMiddleware")
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			log.Debug("Bearer token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			abortWithAuthError(c, err)
			return
		}

		identity, err := verifier.VerifyToken(c.Request.Context(), token)
		if err != nil {
			log.Warn("Token verification failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
			abortWithAuthError(c, err)
			return
		}

		resolved, err := users.Authorize(c.Request.Context(), *identity)
		if err != nil {
			if errors.Is(err, models.ErrUserBlocked) {
				log.Warn("Blocked user rejected", zap.String("user_id", identity.UID))
			} else {
				log.Error("Failed to resolve caller", zap.String("user_id", identity.UID), zap.Error(err))
			}
			abortWithAuthError(c, err)
			return
		}

		setIdentity(c, resolved)
		c.Next()
	}
}

// RequireAdmin пропускает только администраторов. Должен идти после Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			abortWithAuthError(c, models.ErrTokenMissing)
			return
		}
		if !identity.IsAdmin {
			zap.L().Warn("Non-admin on admin surface", zap.String("user_id", identity.UID), zap.String("path", c.Request.URL.Path))
			abortWithAuthError(c, models.ErrForbidden)
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if c.IsWebsocket() {
			if token := c.Query("token"); token != "" {
				return token, nil
			}
		}
		return "", models.ErrTokenMissing
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", models.ErrTokenInvalid
	}
	return parts[1], nil
}

func abortWithAuthError(c *gin.Context, err error) {
	var status int
	var resp models.ErrorResponse
	switch {
	case errors.Is(err, models.ErrTokenMissing):
		status = http.StatusUnauthorized
		resp = models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "Authorization token is missing"}
	case errors.Is(err, models.ErrTokenExpired):
		status = http.StatusUnauthorized
		resp = models.ErrorResponse{Code: models.ErrCodeTokenExpired, Message: "Token has expired"}
	case errors.Is(err, models.ErrTokenInvalid):
		status = http.StatusUnauthorized
		resp = models.ErrorResponse{Code: models.ErrCodeTokenInvalid, Message: "Token is invalid"}
	case errors.Is(err, models.ErrUserBlocked):
		status = http.StatusForbidden
		resp = models.ErrorResponse{Code: models.ErrCodeUserBlocked, Message: "User is blocked"}
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
		resp = models.ErrorResponse{Code: models.ErrCodeForbidden, Message: "Admin privileges required"}
	default:
		status = http.StatusInternalServerError
		resp = models.ErrorResponse{Code: models.ErrCodeInternal, Message: "An unexpected internal error occurred"}
	}
	c.AbortWithStatusJSON(status, resp)
}
