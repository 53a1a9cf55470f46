package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"calagent/internal/service"
)

// @Summary      Push a subscription with events
// @Description  Creates the subscription if the key is new, refreshes its
// @Description  metadata otherwise, and upserts the event batch.
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        body  body  service.PushInput  true  "Subscription and events"
// @Success      200   {object}  service.PushResult
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/subscriptions [post]
// @Security     BearerAuth
func (h *Handler) pushSubscription(c *gin.Context) {
	userId, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var input service.PushInput
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	result, err := h.services.Subscriptions.Push(c.Request.Context(), userId, input)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEvent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to push subscription", "subscription_push_failed", err,
			"user_id", userId, "subscription_key", input.SubscriptionKey)
		return
	}

	c.JSON(http.StatusOK, result)
}

// @Summary      List subscriptions
// @Tags         subscriptions
// @Produce      json
// @Success      200  {array}   models.Subscription
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/subscriptions [get]
// @Security     BearerAuth
func (h *Handler) listSubscriptions(c *gin.Context) {
	userId, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	subs, err := h.services.Subscriptions.List(c.Request.Context(), userId)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to list subscriptions", "subscription_list_failed", err, "user_id", userId)
		return
	}

	// Attach feed URLs so agents can report them back to the user.
	type subWithURL struct {
		ID          string `json:"id"`
		Key         string `json:"subscription_key"`
		DisplayName string `json:"display_name"`
		Domain      string `json:"domain"`
		Timezone    string `json:"timezone"`
		FeedURL     string `json:"feed_url"`
	}
	out := make([]subWithURL, 0, len(subs))
	for _, s := range subs {
		out = append(out, subWithURL{
			ID:          s.ID,
			Key:         s.SubscriptionKey,
			DisplayName: s.DisplayName,
			Domain:      s.Domain,
			Timezone:    s.Timezone,
			FeedURL:     h.services.Subscriptions.FeedURL(s.FeedToken),
		})
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": out})
}

// @Summary      Get a subscription with its events
// @Tags         subscriptions
// @Produce      json
// @Param        id   path      string  true  "Subscription id"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/subscriptions/{id} [get]
// @Security     BearerAuth
func (h *Handler) getSubscription(c *gin.Context) {
	userId, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	sub, events, err := h.services.Subscriptions.Get(c.Request.Context(), userId, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load subscription", "subscription_get_failed", err, "user_id", userId)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscription": sub,
		"feed_url":     h.services.Subscriptions.FeedURL(sub.FeedToken),
		"events":       events,
	})
}

// @Summary      Delete a subscription
// @Tags         subscriptions
// @Produce      json
// @Param        id   path      string  true  "Subscription id"
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/subscriptions/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteSubscription(c *gin.Context) {
	userId, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	err := h.services.Subscriptions.Delete(c.Request.Context(), userId, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to delete subscription", "subscription_delete_failed", err, "user_id", userId)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type appendEventsRequest struct {
	Events []service.EventInput `json:"events" binding:"required"`
}

// @Summary      Append events to a subscription
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        id    path  string               true  "Subscription id"
// @Param        body  body  appendEventsRequest  true  "Event batch"
// @Success      200   {object}  map[string]int
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/subscriptions/{id}/events [post]
// @Security     BearerAuth
func (h *Handler) appendEvents(c *gin.Context) {
	userId, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req appendEventsRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}

	count, err := h.services.Subscriptions.AppendEvents(c.Request.Context(), userId, c.Param("id"), req.Events)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		case errors.Is(err, service.ErrInvalidEvent):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logAndJSONError(c, http.StatusInternalServerError, "failed to append events", "event_append_failed", err, "user_id", userId)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"event_count": count})
}

// @Summary      List recent sync runs for a subscription
// @Tags         subscriptions
// @Produce      json
// @Param        id     path   string  true   "Subscription id"
// @Param        limit  query  int     false  "Max rows (default 20)"
// @Success      200  {array}   models.SyncRun
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/subscriptions/{id}/syncs [get]
// @Security     BearerAuth
func (h *Handler) listSyncRuns(c *gin.Context) {
	userId, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	runs, err := h.services.SyncLog.Recent(c.Request.Context(), userId, c.Param("id"), limit)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load sync runs", "sync_runs_failed", err, "user_id", userId)
		return
	}

	c.JSON(http.StatusOK, gin.H{"syncs": runs})
}
