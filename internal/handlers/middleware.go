package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middlewares.
const (
	ctxUserID = "userId"
)

// bearerToken extracts the credential from an "Authorization: Bearer x" header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// userIdMiddleware authenticates dashboard requests with a user JWT.
func (h *Handler) userIdMiddleware(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing or malformed Authorization header",
		})
		return
	}

	userId, err := h.services.ParseToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	c.Set(ctxUserID, userId)
	c.Next()
}

// apiKeyMiddleware authenticates agent requests with an API key. The key is
// the same "Authorization: Bearer cal_..." shape agents already use for JWTs,
// distinguished by the key prefix on the service side.
func (h *Handler) apiKeyMiddleware(c *gin.Context) {
	rawKey, ok := bearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing or malformed Authorization header",
		})
		return
	}

	userId, err := h.services.APIKeys.Validate(c.Request.Context(), rawKey)
	if err != nil {
		if h.log != nil {
			h.log.Infow("api_key_rejected", "err", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or revoked API key",
		})
		return
	}

	c.Set(ctxUserID, userId)
	c.Next()
}

// currentUserID reads the authenticated user id placed by either middleware.
func currentUserID(c *gin.Context) (int, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}
