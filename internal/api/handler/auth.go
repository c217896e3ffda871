package handler

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/identity"
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// TokenResolver turns a bearer token into the acting identity.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (identity.Identity, error)
}

// RequireIdentity resolves the caller from the Authorization header. Browsers
// cannot set headers on WebSocket upgrades, so the access_token query
// parameter is accepted as well.
func (h *Handler) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := identity.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			token = c.Query("access_token")
		}
		if token == "" {
			h.fail(c, fmt.Errorf("authorization token missing: %w", apperr.ErrUnauthenticated))
			return
		}

		id, err := h.Auth.Resolve(c.Request.Context(), token)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func actor(c *gin.Context) identity.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(identity.Identity)
	return id
}

// Me returns the caller's resolved identity.
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, actor(c))
}
