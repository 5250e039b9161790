package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pumpdash/dashboard/internal/apiclient"
	"pumpdash/dashboard/internal/app"
	"pumpdash/dashboard/internal/config"
	"pumpdash/dashboard/internal/metrics"
	"pumpdash/dashboard/internal/middleware"
	"pumpdash/dashboard/internal/router"
)

// Prober checks that the upstream API answers.
type Prober interface {
	Get(ctx context.Context, path string, opts *apiclient.Options) (json.RawMessage, error)
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	contexts *app.Manager
	table    *router.Table
	metrics  *metrics.Metrics
	upstream Prober
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, contexts *app.Manager, table *router.Table, m *metrics.Metrics, upstream Prober) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		contexts: contexts,
		table:    table,
		metrics:  m,
		upstream: upstream,
	}
}

func (h HandlerSet) Register(engine *gin.Engine) {
	engine.GET("/healthz", h.Health)
	engine.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	pages := engine.Group("", middleware.PageContext(h.cfg.Contexts, h.contexts, h.log))
	for _, route := range h.table.Routes() {
		pages.GET(route.Path, middleware.Guard(route), h.View)
	}

	ui := pages.Group("/ui")
	{
		ui.GET("/session", h.Session)

		auth := ui.Group("/auth")
		auth.POST("/login", middleware.LoginThrottle(), h.Login)
		auth.POST("/logout", h.Logout)

		notes := ui.Group("/notifications")
		notes.GET("", h.ListNotifications)
		notes.GET("/stream", h.StreamNotifications)
		notes.POST("/:id/hold", h.HoldNotification)
		notes.POST("/:id/resume", h.ResumeNotification)
		notes.DELETE("/:id", h.RemoveNotification)

		api := ui.Group("/api", middleware.RequireSession())
		api.Any("/*path", h.Proxy)
	}
}

func mustContext(c *gin.Context) (*app.Context, bool) {
	pc, ok := middleware.CurrentContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "context_missing"})
	}
	return pc, ok
}
