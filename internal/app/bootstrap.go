// Package app builds the stores, providers and guards shared by the commands.
package app

import (
	"context"
	"fmt"

	"github.com/timmy/wanderlust/internal/cache"
	"github.com/timmy/wanderlust/internal/config"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/repository"
	"github.com/timmy/wanderlust/internal/service"
	"github.com/timmy/wanderlust/internal/storage"
)

// NewLogger creates the process logger from the LOG_* environment and makes
// it the default.
func NewLogger(serviceName string) *logger.Logger {
	envCfg := logger.LoadFromEnv()
	if envCfg.ServiceName == "wanderlust" {
		envCfg.ServiceName = serviceName
	}
	l := logger.NewFromEnv(envCfg)
	logger.SetDefaultLogger(l)
	return l
}

// Guard creates a provider guard from the shared provider settings.
func Guard(name string, cfg *config.ProviderConfig) *service.ProviderGuard {
	return service.NewProviderGuard(name, service.GuardConfig{
		Timeout:     cfg.Timeout,
		MaxFailures: cfg.BreakerFailures,
		OpenTimeout: cfg.BreakerOpenDelay,
	})
}

// Embedding returns the guarded embedding provider, or nil when no provider
// is configured.
func Embedding(cfg *config.Config) (service.EmbeddingProvider, error) {
	if !cfg.Embedding.Enabled() {
		return nil, nil
	}
	provider, err := service.NewEmbeddingProvider(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	return service.NewGuardedEmbeddingProvider(provider, Guard("embedding", &cfg.Provider)), nil
}

// Qdrant connects to the destination collection, or returns nil when Qdrant
// is disabled.
func Qdrant(ctx context.Context, cfg *config.Config) (*repository.QdrantRepository, error) {
	if !cfg.Qdrant.Enabled {
		return nil, nil
	}
	repo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Qdrant repository: %w", err)
	}
	if err := repo.EnsureCollection(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to ensure Qdrant collection: %w", err)
	}
	return repo, nil
}

// LLM returns the chat model settings shared by the extractor and the judge.
func LLM(cfg *config.Config) service.LLMConfig {
	return service.LLMConfig{
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.Provider.Timeout,
	}
}

// RelevanceJudge picks the configured judge. "llm" needs an enabled LLM and
// falls back to the heuristic judge otherwise.
func RelevanceJudge(cfg *config.Config) service.RelevanceJudge {
	if cfg.Relevance.Judge == "llm" && cfg.LLM.Enabled && cfg.LLM.APIKey != "" {
		llm := LLM(cfg)
		return service.NewLLMRelevanceJudge(&llm, Guard("relevance", &cfg.Provider))
	}
	return service.HeuristicJudge{}
}

// ExtractorCache returns the shared Redis cache when enabled and an
// in-process cache otherwise. The returned close function is never nil.
func ExtractorCache(ctx context.Context, cfg *config.Config) (cache.Provider, func(), error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cfg.LLM.CacheSize, cfg.LLM.CacheTTL), func() {}, nil
	}
	rc, err := cache.NewRedisCache(ctx, &cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   "wanderlust:filters:",
	})
	if err != nil {
		return nil, nil, err
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ObjectStorage connects to the S3-compatible bucket holding catalog snapshots.
func ObjectStorage(ctx context.Context, cfg *config.StorageConfig) (*storage.S3Storage, error) {
	s, err := storage.NewS3Storage(ctx, &storage.S3Config{
		Type:      storage.StorageType(cfg.Type),
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
	}
	return s, nil
}
