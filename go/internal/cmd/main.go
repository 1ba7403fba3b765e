package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/tradeblock/go/internal/config"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(getEnv("TRADE_CONFIG", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	store, err := setupStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up storage")
	}
	defer store.Close()

	services, err := setupServices(ctx, cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}

	if getEnvAsInt("REAPER_ENABLED", 1) != 0 {
		if err := services.Reaper.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start reaper")
		}
		defer func() {
			if err := services.Reaper.Stop(); err != nil {
				log.Error().Err(err).Msg("failed to stop reaper")
			}
		}()
	}

	server := setupServer(services, store)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Dur("acceptance_window", services.App.Policy().AcceptanceWindow).
			Msg("trade block server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("graceful shutdown complete")
}
