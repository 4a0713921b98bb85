package middleware

import (
	"github.com/gin-gonic/gin"

	"story-server/internal/models"
)

// GetIdentity извлекает проверенную личность, установленную Auth.
func GetIdentity(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(models.CtxKeyIdentity)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

func setIdentity(c *gin.Context, identity models.Identity) {
	c.Set(models.CtxKeyIdentity, identity)
	c.Set(models.CtxKeyUserID, identity.UID)
}
