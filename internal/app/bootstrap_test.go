package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/wanderlust/internal/cache"
	"github.com/timmy/wanderlust/internal/config"
	"github.com/timmy/wanderlust/internal/service"
)

func TestRelevanceJudgeSelection(t *testing.T) {
	tests := []struct {
		name    string
		judge   string
		enabled bool
		apiKey  string
		wantLLM bool
	}{
		{"heuristic by default", "heuristic", true, "k", false},
		{"llm", "llm", true, "k", true},
		{"llm disabled", "llm", false, "k", false},
		{"llm without key", "llm", true, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Relevance.Judge = tt.judge
			cfg.LLM.Enabled = tt.enabled
			cfg.LLM.APIKey = tt.apiKey

			_, isLLM := RelevanceJudge(cfg).(*service.LLMRelevanceJudge)
			assert.Equal(t, tt.wantLLM, isLLM)
		})
	}
}

func TestEmbeddingDisabledWithoutKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.Embedding.Provider = "jina"
	cfg.Embedding.Model = "jina-embeddings-v3"
	cfg.Embedding.Dimensions = 1024

	provider, err := Embedding(cfg)
	require.NoError(t, err)
	assert.Nil(t, provider)

	cfg.Embedding.APIKey = "key"
	provider, err = Embedding(cfg)
	require.NoError(t, err)
	assert.IsType(t, &service.GuardedEmbeddingProvider{}, provider)
	assert.Equal(t, 1024, provider.Dimensions())
}

func TestExtractorCacheFallsBackToMemory(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.CacheSize = 10
	cfg.LLM.CacheTTL = time.Minute

	store, closeFn, err := ExtractorCache(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	defer closeFn()
	assert.IsType(t, &cache.MemoryCache{}, store)
}

func TestGuardUsesProviderSettings(t *testing.T) {
	g := Guard("llm", &config.ProviderConfig{Timeout: time.Second, BreakerFailures: 2})
	assert.Equal(t, "llm", g.Name())
	assert.Equal(t, "closed", g.State())
}
