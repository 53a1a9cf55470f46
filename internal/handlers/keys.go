package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"calagent/internal/service"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

type createKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

// @Summary      Issue a new API key
// @Description  The raw key is returned exactly once; only its hash is stored.
// @Tags         keys
// @Accept       json
// @Produce      json
// @Param        body  body  createKeyRequest  true  "Key name"
// @Success      200   {object}  service.IssuedKey
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/keys [post]
// @Security     BearerAuth
func (h *Handler) createKey(c *gin.Context) {
	userId, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req createKeyRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}

	issued, err := h.services.APIKeys.Issue(c.Request.Context(), userId, req.Name)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to issue key", "key_issue_failed", err, "user_id", userId)
		return
	}

	c.JSON(http.StatusOK, issued)
}

// @Summary      List API keys
// @Tags         keys
// @Produce      json
// @Success      200  {array}   models.APIKey
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/keys [get]
// @Security     BearerAuth
func (h *Handler) listKeys(c *gin.Context) {
	userId, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	keys, err := h.services.APIKeys.List(c.Request.Context(), userId)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to list keys", "key_list_failed", err, "user_id", userId)
		return
	}

	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// @Summary      Revoke an API key
// @Tags         keys
// @Produce      json
// @Param        id   path      string  true  "Key id"
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/keys/{id} [delete]
// @Security     BearerAuth
func (h *Handler) revokeKey(c *gin.Context) {
	userId, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	err := h.services.APIKeys.Revoke(c.Request.Context(), userId, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to revoke key", "key_revoke_failed", err, "user_id", userId)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}
