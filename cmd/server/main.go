package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ayash-Bera/calypso/backend/internal/api/handlers"
	"github.com/Ayash-Bera/calypso/backend/internal/cache"
	"github.com/Ayash-Bera/calypso/backend/internal/config"
	"github.com/Ayash-Bera/calypso/backend/internal/middleware"
	"github.com/Ayash-Bera/calypso/backend/internal/orchestrator"
	"github.com/Ayash-Bera/calypso/backend/internal/provider"
	"github.com/Ayash-Bera/calypso/backend/internal/ratelimit"
	"github.com/Ayash-Bera/calypso/backend/internal/services"
	"github.com/Ayash-Bera/calypso/backend/internal/stats"
	"github.com/Ayash-Bera/calypso/backend/internal/stream"
	"github.com/Ayash-Bera/calypso/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	logger := utils.NewLogger()
	logger.Info("Starting search mediation service...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	limiter := ratelimit.New(cfg.RateLimit.Quota, cfg.RateLimit.Window, logger)
	queryCache := cache.New(cfg.Cache.TTL, cfg.Cache.Capacity, logger)
	tracker := stats.NewTracker()

	orch := orchestrator.New(logger)
	registered := 0
	for _, pc := range cfg.Providers {
		if !pc.Configured() {
			logger.WithField("provider", pc.Name).Warn("Provider missing credentials, skipping")
			continue
		}
		orch.Register(
			provider.NewHTTPProvider(pc.Name, pc.BaseURL, pc.APIKey, pc.Timeout(), logger),
			pc.Priority,
			pc.Capabilities,
			pc.Timeout(),
		)
		registered++
		logger.WithFields(logrus.Fields{
			"provider": pc.Name,
			"priority": pc.Priority,
		}).Info("Provider registered")
	}
	if registered == 0 {
		logger.Warn("No providers configured, serving mock results")
		orch.Register(provider.NewMockProvider(), 99, []string{"web_search"}, time.Second)
	}

	broker, err := stream.NewBroker(stream.Config{
		Stagger: cfg.Stream.Stagger,
		Grace:   cfg.Stream.Grace,
		Workers: cfg.Stream.Workers,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create stream broker")
	}

	searchService := services.NewSearchService(limiter, queryCache, orch, broker, tracker, logger)
	searchHandler := handlers.NewSearchHandler(searchService, broker, logger)
	statusHandler := handlers.NewStatusHandler(orch, tracker, logger)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.SecurityHeaders())

	router.POST("/search", searchHandler.HandleSearch)
	router.GET("/search/stream", searchHandler.HandleStreamSearch)
	router.GET("/health", statusHandler.HandleHealth)
	router.GET("/stats", statusHandler.HandleStats)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("HTTP shutdown did not finish cleanly")
		}
		searchService.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("Server error")
	}

	logger.Info("Server stopped")
}
