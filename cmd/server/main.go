package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"matchmaker-backend/internal/config"
	"matchmaker-backend/internal/database"
	"matchmaker-backend/internal/gamefinder"
	"matchmaker-backend/internal/handlers"
	"matchmaker-backend/internal/kafka"
	"matchmaker-backend/internal/matchmaking"
	"matchmaker-backend/internal/server"
)

func main() {
	// Load environment variables; a missing .env file is fine
	_ = godotenv.Load()

	cfg := config.Load()

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	// Game finder configuration, hot-reloadable at runtime via the API
	finderSettings, err := gamefinder.LoadOrCreateSettings(cfg.FinderConfigFile)
	if err != nil {
		logger.Fatal("failed to load game finder settings", zap.Error(err))
	}
	finder := gamefinder.NewFinder(finderSettings, logger)

	// Optional analytics pipeline
	var analytics *kafka.AnalyticsService
	if cfg.AnalyticsEnabled {
		producer := kafka.NewProducer(kafka.DefaultProducerConfig(cfg.KafkaBrokers, cfg.KafkaTopic), logger)
		defer producer.Close()
		analytics = kafka.NewAnalyticsService(producer, true)
	}

	// Optional match history store
	var store *database.MatchStore
	if cfg.DatabaseURL != "" {
		store, err = database.NewMatchStore(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer store.Close()
	}

	// Queue tracker: restore persisted queues and start their tick loops
	tracker := matchmaking.NewQueueTracker(finder, cfg.QueuesFile, cfg.TickInterval, logger)
	tracker.OnMatch(func(record matchmaking.MatchRecord) {
		analytics.MatchFound(record)
		if store != nil {
			if err := store.SaveMatch(record); err != nil {
				logger.Warn("failed to record match", zap.Error(err))
			}
		}
	})
	if err := tracker.LoadFromFile(); err != nil {
		logger.Fatal("failed to load queues", zap.Error(err))
	}

	queueHandler := handlers.NewQueueHandler(tracker, finder, store, analytics, logger)
	joinHandler := handlers.NewJoinHandler(tracker, analytics, logger)

	srv := server.NewServer(cfg, queueHandler, joinHandler)

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// SIGINT/SIGTERM lock the tracker: new joins are refused while ongoing
	// ticks keep servicing the clients already queued.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received, waiting for all queues to become empty")
	tracker.Lock()

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancelDrain()
	if err := tracker.Drain(drainCtx); err != nil {
		logger.Warn("drain did not complete cleanly", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("server exited")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
