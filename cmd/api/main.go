package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/timmy/wanderlust/internal/api"
	"github.com/timmy/wanderlust/internal/api/handler"
	"github.com/timmy/wanderlust/internal/api/middleware"
	"github.com/timmy/wanderlust/internal/app"
	"github.com/timmy/wanderlust/internal/config"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/repository"
	"github.com/timmy/wanderlust/internal/service"
)

func main() {
	appLogger := app.NewLogger("wanderlust-api")
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to get database handle")
	}
	defer sqlDB.Close()

	destinations := repository.NewDestinationRepository(db)
	interactions := repository.NewInteractionRepository(db)
	posts := repository.NewPostRepository(db)
	reviews := repository.NewReviewRepository(db)
	pending := repository.NewPendingDestinationRepository(db)

	ctx := context.Background()

	embedding, err := app.Embedding(cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize embedding provider")
	}
	qdrantRepo, err := app.Qdrant(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize Qdrant")
	}
	if qdrantRepo != nil {
		defer qdrantRepo.Close()
	}

	// Vector search needs both an embedding provider and an index
	var index service.VectorIndex
	if embedding != nil && cfg.Search.UseVector {
		if qdrantRepo != nil {
			index = service.NewQdrantIndex(qdrantRepo)
		} else {
			index = service.NewFlatIndex(destinations)
		}
		if err := index.Rebuild(ctx); err != nil {
			appLogger.WithError(err).Warn("Vector index unavailable, partial matches use catalog scan")
			index = nil
		} else {
			fields := logger.Fields{logger.FieldSize: index.Len()}
			if flat, ok := index.(*service.FlatIndex); ok {
				fields["skipped"] = flat.Skipped()
			}
			appLogger.WithFields(fields).Info("Vector index ready")
		}
	}

	var relevance *service.RelevanceCache
	var warmer *service.CacheWarmer
	if cfg.Relevance.Enabled {
		relevance = service.NewRelevanceCache(
			repository.NewRelevanceRepository(db),
			app.RelevanceJudge(cfg),
			cfg.Relevance.Timeout,
			appLogger,
		)
		warmer = service.NewCacheWarmer(destinations, relevance, appLogger, &service.WarmConfig{
			RatePerSec: cfg.Relevance.WarmRate,
			MaxCombos:  cfg.Relevance.WarmMaxCombos,
			KeyTags:    cfg.Recommend.KeyTags,
		})
	}

	extractorCache, closeCache, err := app.ExtractorCache(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize filter cache")
	}
	defer closeCache()
	extractor := service.NewFilterExtractor(&service.FilterExtractorConfig{
		Enabled:  cfg.LLM.Enabled && cfg.LLM.APIKey != "",
		LLM:      app.LLM(cfg),
		CacheTTL: cfg.LLM.CacheTTL,
	}, app.Guard("filter_extractor", &cfg.Provider), extractorCache, destinations)
	if extractor.IsEnabled() {
		appLogger.WithField("model", cfg.LLM.Model).Info("LLM filter extraction enabled")
	}

	var content service.Ranker = service.NewTFIDFRanker()
	if embedding != nil {
		content = service.NewFallbackRanker(service.NewEmbeddingRanker(embedding, destinations), content)
	}
	collab := service.NewCollaborativeFilter(service.NewPerRequestMatrix(interactions, destinations), cfg.Recommend.KeyTags)
	recommender := service.NewRecommendationService(
		destinations,
		interactions,
		content,
		collab,
		service.NewRandomizer(cfg.Recommend.RandomSeed),
		nil,
		appLogger,
		service.RecommendConfig{
			DefaultLimit:   cfg.Recommend.DefaultLimit,
			MaxLimit:       cfg.Recommend.MaxLimit,
			TrendingWindow: cfg.Recommend.TrendingWindow,
			ProfileTokens:  cfg.Recommend.ProfileTokens,
		},
	)
	searchService := service.NewSearchService(
		destinations,
		reviews,
		interactions,
		embedding,
		index,
		relevance,
		extractor,
		appLogger,
		&service.SearchConfig{PageSize: cfg.Search.PageSize},
	)
	interactionService := service.NewInteractionService(interactions, destinations, posts, reviews, appLogger)
	adminHandler := handler.NewAdminHandler(warmer, pending, appLogger)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	router := api.SetupRouter(&api.Handlers{
		Health:       handler.NewHealthHandler(sqlDB),
		Recommend:    handler.NewRecommendHandler(recommender, service.NewPostRecommender(posts, interactions, nil, appLogger)),
		Search:       handler.NewSearchHandler(searchService),
		Destinations: handler.NewDestinationHandler(destinations, reviews, interactionService, relevance),
		Interactions: handler.NewInteractionHandler(interactionService),
		Admin:        adminHandler,
	}, api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
		MetricsPath: metricsPath,
		Logger:      appLogger,
	})

	// Scheduled relevance cache warming
	scheduler := cron.New()
	if warmer != nil && cfg.Relevance.WarmSchedule != "" {
		if _, err := scheduler.AddFunc(cfg.Relevance.WarmSchedule, func() {
			warmCtx := logger.SetComponent(context.Background(), "warm_cron")
			if _, err := adminHandler.RunWarm(warmCtx); err != nil {
				logger.FromContext(warmCtx).WithError(err).Warn("Scheduled cache warming failed")
			}
		}); err != nil {
			appLogger.WithError(err).Fatal("Invalid relevance warm schedule")
		}
		scheduler.Start()
		appLogger.WithField("schedule", cfg.Relevance.WarmSchedule).Info("Relevance cache warming scheduled")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
