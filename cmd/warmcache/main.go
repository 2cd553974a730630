package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/wanderlust/internal/app"
	"github.com/timmy/wanderlust/internal/config"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/repository"
	"github.com/timmy/wanderlust/internal/service"
)

func main() {
	appLogger := app.NewLogger("wanderlust-warmcache")
	defer logger.Sync()

	countries := flag.Int("countries", 10, "Number of most common countries to warm")
	maxCombos := flag.Int("max-combos", 0, "Maximum number of filter combinations (0 = config value)")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	combos := cfg.Relevance.WarmMaxCombos
	if *maxCombos > 0 {
		combos = *maxCombos
	}
	relevance := service.NewRelevanceCache(
		repository.NewRelevanceRepository(db),
		app.RelevanceJudge(cfg),
		cfg.Relevance.Timeout,
		appLogger,
	)
	warmer := service.NewCacheWarmer(repository.NewDestinationRepository(db), relevance, appLogger, &service.WarmConfig{
		TopCountries: *countries,
		RatePerSec:   cfg.Relevance.WarmRate,
		MaxCombos:    combos,
		KeyTags:      cfg.Recommend.KeyTags,
	})

	stats, err := warmer.Warm(logger.SetComponent(ctx, "warmcache"))
	if err != nil {
		appLogger.WithError(err).Fatal("Cache warming failed")
	}
	appLogger.WithFields(logger.Fields{
		"combinations": stats.Combinations,
		"lookups":      stats.Lookups,
		"failed":       stats.Failed,
		"duration_ms":  stats.EndTime.Sub(stats.StartTime).Milliseconds(),
	}).Info("Cache warming completed")
}
