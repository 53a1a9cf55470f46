package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"calagent/internal/service"
)

const (
	calendarContentType  = "text/calendar; charset=utf-8"
	calendarCacheControl = "public, max-age=300, s-maxage=300"
)

// writeCalendar sends a rendered feed with the headers calendar clients and
// CDNs expect.
func writeCalendar(c *gin.Context, feed service.Feed) {
	c.Header("Cache-Control", calendarCacheControl)
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", feed.Filename))
	c.Data(http.StatusOK, calendarContentType, []byte(feed.Body))
}

// stripICSSuffix accepts tokens with or without a trailing ".ics"; calendar
// apps are given URLs with the extension, but the token is the credential.
func stripICSSuffix(token string) string {
	if strings.HasSuffix(strings.ToLower(token), ".ics") {
		return token[:len(token)-len(".ics")]
	}
	return token
}

// @Summary      Fetch a subscription feed
// @Description  Public iCalendar endpoint; the token is the only credential.
// @Tags         feeds
// @Produce      plain
// @Param        token  path  string  true  "Feed token, optionally with .ics suffix"
// @Success      200  {string}  string  "iCalendar document"
// @Failure      404  {string}  string
// @Router       /cal/{token} [get]
func (h *Handler) serveFeed(c *gin.Context) {
	token := stripICSSuffix(c.Param("token"))

	feed, err := h.services.Feeds.Render(c.Request.Context(), token)
	if err != nil {
		h.feedError(c, err)
		return
	}

	h.analytics.FeedFetched(token, time.Now())
	writeCalendar(c, feed)
}

// @Summary      Fetch the merged feed
// @Description  Every subscription of the token's owner in one calendar.
// @Tags         feeds
// @Produce      plain
// @Param        token  path  string  true  "Master feed token, optionally with .ics suffix"
// @Success      200  {string}  string  "iCalendar document"
// @Failure      404  {string}  string
// @Router       /cal/all/{token} [get]
func (h *Handler) serveMergedFeed(c *gin.Context) {
	token := stripICSSuffix(c.Param("token"))

	feed, err := h.services.Feeds.RenderMerged(c.Request.Context(), token)
	if err != nil {
		h.feedError(c, err)
		return
	}

	h.analytics.FeedFetched(token, time.Now())
	writeCalendar(c, feed)
}

// feedError responds in plain text: calendar clients show the body verbatim,
// and an unknown token must not leak whether it ever existed.
func (h *Handler) feedError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) {
		c.String(http.StatusNotFound, "Feed not found")
		return
	}
	if h.log != nil {
		h.log.Errorw("feed_render_failed", "err", err)
	}
	c.String(http.StatusInternalServerError, "Internal error")
}

// @Summary      Get the merged feed URL
// @Description  Mints the master token on first call.
// @Tags         feeds
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/feeds/master [get]
// @Security     BearerAuth
func (h *Handler) masterFeed(c *gin.Context) {
	userId, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	token, err := h.services.Feeds.MasterToken(c.Request.Context(), userId)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to provision master feed", "master_feed_failed", err, "user_id", userId)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"feed_url": h.services.Feeds.MasterFeedURL(token),
	})
}
