package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "calagent/docs"
	"calagent/internal/analytics"
	"calagent/internal/logger"
	"calagent/internal/service"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services  *service.Service
	log       *logger.Logger
	analytics analytics.Sink
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, sink analytics.Sink) *Handler {
	if sink == nil {
		sink = analytics.NopSink{}
	}
	return &Handler{services: services, log: log, analytics: sink}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health endpoint
	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerDashboardRoutes(router)
	h.registerAgentRoutes(router)
	h.registerFeedRoutes(router)

	// Live sync-run stream (HTTP upgrade) — same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

// Dashboard endpoints authenticate with a user JWT.
func (h *Handler) registerDashboardRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		keys := api.Group("/keys")
		{
			keys.POST("", h.createKey)
			keys.GET("", h.listKeys)
			keys.DELETE("/:id", h.revokeKey)
		}
		api.GET("/feeds/master", h.masterFeed)
		api.GET("/subscriptions/:id/syncs", h.listSyncRuns)
		api.GET("/skill", h.downloadSkill)
	}
}

// Agent endpoints authenticate with a bearer API key.
func (h *Handler) registerAgentRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.apiKeyMiddleware)
	{
		subs := api.Group("/subscriptions")
		{
			subs.POST("", h.pushSubscription)
			subs.GET("", h.listSubscriptions)
			subs.GET("/:id", h.getSubscription)
			subs.DELETE("/:id", h.deleteSubscription)
			subs.POST("/:id/events", h.appendEvents)
		}
	}
}

// Feed endpoints are public; the capability token is the credential.
func (h *Handler) registerFeedRoutes(r *gin.Engine) {
	cal := r.Group("/cal")
	{
		cal.GET("/all/:token", h.serveMergedFeed)
		cal.GET("/:token", h.serveFeed)
	}
}

// @Summary      Health check
// @Tags         meta
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
