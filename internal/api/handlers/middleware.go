package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-dispatch/internal/auth"
	"github.com/gocomet/ride-dispatch/internal/domain/identity"
	"github.com/gocomet/ride-dispatch/pkg/errors"
)

const identityKey = "identity"

// Authenticate verifies the bearer token and stores the identity on the
// gin context. REST and WebSocket share the same tokens.
func (h *Handlers) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.TokenFromRequest(c.Request)
		if err != nil {
			appErr := errors.GetAppError(err)
			c.AbortWithStatusJSON(appErr.Status, appErr)
			return
		}
		id, err := h.Auth.Verify(token)
		if err != nil {
			appErr := errors.GetAppError(err)
			c.AbortWithStatusJSON(appErr.Status, appErr)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// identityFrom returns the authenticated identity set by Authenticate.
func identityFrom(c *gin.Context) identity.Identity {
	id, _ := c.MustGet(identityKey).(identity.Identity)
	return id
}
