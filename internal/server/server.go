package server

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pumpdash/dashboard/internal/config"
	"pumpdash/dashboard/internal/handlers"
	"pumpdash/dashboard/internal/middleware"
)

type HTTPServer struct {
	server *http.Server
	tls    config.TLSConfig
	log    zerolog.Logger
}

// NewEngine builds the gin engine with the gateway's middleware chain and
// every dashboard, ui and upstream route registered.
func NewEngine(cfg *config.AppConfig, log zerolog.Logger, handlerSet handlers.HandlerSet) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.RedirectTrailingSlash = true
	engine.RedirectFixedPath = true
	engine.HandleMethodNotAllowed = true

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.CORS(middleware.OriginPolicyFor(cfg)),
	)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method_not_allowed"})
	})

	handlerSet.Register(engine)
	return engine
}

func NewHTTPServer(cfg *config.AppConfig, log zerolog.Logger, handlerSet handlers.HandlerSet) *HTTPServer {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      NewEngine(cfg, log, handlerSet),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ErrorLog:     stdlog.New(log.With().Str("source", "net/http").Logger(), "", 0),
	}

	return &HTTPServer{
		server: srv,
		tls:    cfg.TLS,
		log:    log,
	}
}

func (s *HTTPServer) Start() error {
	s.log.Info().
		Str("addr", s.server.Addr).
		Bool("tls", s.tls.Enabled).
		Msg("dashboard gateway listening")

	var err error
	if s.tls.Enabled {
		err = s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
	} else {
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// expires. Notification streams end when their contexts are closed.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("dashboard gateway shutting down")
	return s.server.Shutdown(ctx)
}
