package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pumpdash/dashboard/internal/apiclient"
	"pumpdash/dashboard/internal/app"
	"pumpdash/dashboard/internal/config"
	"pumpdash/dashboard/internal/handlers"
	"pumpdash/dashboard/internal/jobs"
	"pumpdash/dashboard/internal/log"
	"pumpdash/dashboard/internal/metrics"
	"pumpdash/dashboard/internal/router"
	"pumpdash/dashboard/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)
	m := metrics.New()
	table := router.DefaultTable()

	healthClient, err := apiclient.New(cfg.Upstream, log.Component(logger, "health"), m)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid upstream configuration")
	}

	contexts := app.NewManager(cfg, table, log.Component(logger, "contexts"), m)

	handlerSet := handlers.NewHandlerSet(logger, cfg, contexts, table, m, healthClient)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(contexts, cfg.Contexts.SweepSpec, log.Component(logger, "jobs"))
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, contexts)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, contexts *app.Manager) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	scheduler.Stop(shutdownCtx)
	contexts.CloseAll()

	logger.Info().Msg("server exited cleanly")
}
