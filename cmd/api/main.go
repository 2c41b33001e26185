package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/checkout"
	"server/internal/domain"
	"server/internal/fees"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/payments"
	"server/internal/payout"
	"server/internal/webhook"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	var store domain.RequestStore
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()

		pgStore := repo.NewRequestRepository(dbpool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply schema")
		}
		store = pgStore
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory store")
		store = repo.NewMemoryStore()
	}

	port := payments.NewStripePort(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	tracker := payout.NewTracker(store, port, logger)
	checkoutSvc := checkout.NewService(store, tracker, port,
		fees.Rate(cfg.PlatformFeeBps), cfg.ClientURL, logger)
	processor := webhook.NewProcessor(store, tracker, port, logger)

	app := handlers.NewApp(store, checkoutSvc, processor, tracker, port, cfg.ClientURL, logger)
	router := httpapi.NewRouter(app, logger, cfg.AllowedOrigins, cfg.CheckoutPerMin)

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
