// Vamo backend server entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"vamo-backend/internal/ai"
	"vamo-backend/internal/config"
	"vamo-backend/internal/metrics"
	"vamo-backend/internal/pkg/db"
	"vamo-backend/internal/repository"
	"vamo-backend/internal/server"
	"vamo-backend/internal/service"
)

func main() {
	configPath := flag.String("config", "./config", "path to config directory")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Msg("Starting Vamo backend")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	aiClient, err := ai.NewHTTPClient(&cfg.AI, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create AI client")
	}

	m := metrics.New()

	profileRepo := repository.NewProfileRepository(pool.Pool)
	projectRepo := repository.NewProjectRepository(pool.Pool)
	ledgerRepo := repository.NewLedgerRepository(pool.Pool)
	messageRepo := repository.NewMessageRepository(pool.Pool)
	summaryRepo := repository.NewSummaryRepository(pool.Pool)
	tractionRepo := repository.NewTractionRepository(pool.Pool)
	activityRepo := repository.NewActivityRepository(pool.Pool)
	offerRepo := repository.NewOfferRepository(pool.Pool)

	rewardSvc := service.NewRewardService(ledgerRepo, profileRepo, activityRepo, m,
		cfg.Rewards.PromptHourlyLimit, cfg.Rewards.RateWindow, log.Logger)
	tractionSvc := service.NewTractionService(tractionRepo, activityRepo, log.Logger)
	contextSvc := service.NewContextService(messageRepo, summaryRepo, aiClient, m,
		cfg.Chat.SummarizeThreshold, cfg.Chat.ContextMessageLimit, log.Logger)
	chatSvc := service.NewChatService(projectRepo, messageRepo, activityRepo,
		rewardSvc, tractionSvc, contextSvc, aiClient, m, cfg.Chat.MaxMessageLength, log.Logger)
	offerSvc := service.NewOfferService(projectRepo, profileRepo, offerRepo,
		tractionRepo, activityRepo, messageRepo, aiClient, m, log.Logger)

	srv := server.New(chatSvc, rewardSvc, offerSvc, pool, m.Handler(), log.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.Server.ListenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server stopped unexpectedly")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Vamo backend stopped")
}
