package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/connectome-service/backend/api"
	"github.com/gilchrisn/connectome-service/backend/config"
	"github.com/gilchrisn/connectome-service/backend/metrics"
	"github.com/gilchrisn/connectome-service/backend/service"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Info().
		Str("address", cfg.Server.Address).
		Int("max_sessions", cfg.Sessions.MaxSessions).
		Int("max_nodes", cfg.Sessions.MaxNodes).
		Msg("Configuration loaded")

	reg := metrics.NewRegistry()
	sessionService := service.NewSessionService(cfg.Sessions.MaxSessions, cfg.Sessions.MaxNodes, reg)
	handlers := api.NewHandlers(sessionService)

	router := mux.NewRouter()
	api.SetupRoutes(router, handlers, reg)
	router.Use(api.LoggingMiddleware(reg))
	router.Use(api.RecoveryMiddleware)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.CORSMiddleware(cfg.CORS.AllowedOrigins)(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server shutdown complete")
}
