package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/wanderlust/internal/domain"
)

func TestRelevanceCacheHitsSameRowForEquivalentFilters(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	d := stores.addDestination(t, domain.Destination{Name: "Nice", Country: "France", Season: domain.SeasonSummer})
	judge := &countingJudge{score: 72}
	cache := NewRelevanceCache(stores.relevance, judge, 0, testLogger())

	first, err := cache.GetOrCompute(ctx, &d, domain.FilterSet{Seasons: []domain.Season{domain.SeasonSummer}})
	require.NoError(t, err)
	second, err := cache.GetOrCompute(ctx, &d, domain.FilterSet{Seasons: []domain.Season{domain.SeasonSummer, " "}, Country: "  "})
	require.NoError(t, err)

	assert.Equal(t, 72.0, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), judge.calls.Load())
	n, err := stores.relevance.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRelevanceCacheClampsScores(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	d := stores.addDestination(t, domain.Destination{Name: "Nice", Country: "France"})

	high, err := NewRelevanceCache(stores.relevance, &countingJudge{score: 140}, 0, testLogger()).
		GetOrCompute(ctx, &d, domain.FilterSet{Country: "France"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, high)

	low, err := NewRelevanceCache(stores.relevance, &countingJudge{score: -5}, 0, testLogger()).
		GetOrCompute(ctx, &d, domain.FilterSet{Country: "Spain"})
	require.NoError(t, err)
	assert.Zero(t, low)
}

func TestRelevanceCacheJudgeFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	d := stores.addDestination(t, domain.Destination{Name: "Nice", Country: "France"})
	judge := &countingJudge{err: errProviderDown}
	cache := NewRelevanceCache(stores.relevance, judge, 0, testLogger())

	_, err := cache.GetOrCompute(ctx, &d, domain.FilterSet{Country: "France"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))

	n, err := stores.relevance.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// the next lookup retries the judge
	judge.err = nil
	judge.score = 40
	score, err := cache.GetOrCompute(ctx, &d, domain.FilterSet{Country: "France"})
	require.NoError(t, err)
	assert.Equal(t, 40.0, score)
	assert.Equal(t, int64(2), judge.calls.Load())
}

func TestRelevanceCacheRejectsEmptyFilters(t *testing.T) {
	stores := newTestStores(t)
	d := stores.addDestination(t, domain.Destination{Name: "Nice", Country: "France"})
	judge := &countingJudge{score: 10}

	_, err := NewRelevanceCache(stores.relevance, judge, 0, testLogger()).
		GetOrCompute(context.Background(), &d, domain.FilterSet{Tags: []string{""}})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Zero(t, judge.calls.Load())
}

func TestRelevanceCacheFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	d := stores.addDestination(t, domain.Destination{Name: "Nice", Country: "France"})
	fs := domain.FilterSet{Country: "France"}

	_, err := stores.relevance.Insert(ctx, &domain.RelevanceScore{DestinationID: d.ID, FiltersHash: fs.Hash(), Score: 33})
	require.NoError(t, err)

	// a racing writer computed a different score
	row, err := stores.relevance.Insert(ctx, &domain.RelevanceScore{DestinationID: d.ID, FiltersHash: fs.Hash(), Score: 99})
	require.NoError(t, err)
	assert.Equal(t, 33.0, row.Score)

	judge := &countingJudge{score: 99}
	score, err := NewRelevanceCache(stores.relevance, judge, 0, testLogger()).GetOrCompute(ctx, &d, fs)
	require.NoError(t, err)
	assert.Equal(t, 33.0, score)
	assert.Zero(t, judge.calls.Load())
}

func TestHeuristicJudge(t *testing.T) {
	d := &domain.Destination{Country: "France"}
	score, err := HeuristicJudge{}.Score(context.Background(), d, &domain.FilterSet{Country: "france"})
	require.NoError(t, err)
	assert.Equal(t, ScorePercentage(30), score)
}

func TestParseJudgeReply(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    float64
		wantErr bool
	}{
		{"plain", `{"score": 87}`, 87, false},
		{"think block and fence", "<think>{\"score\": 1}</think>\n```json\n{\"score\": 64.5}\n```", 64.5, false},
		{"prose around", `Sure! {"score": 12} hope that helps`, 12, false},
		{"missing score", `{"relevance": 50}`, 0, true},
		{"no json", `fifty`, 0, true},
		{"incomplete", `{"score": 5`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJudgeReply(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSONObjectIgnoresBracesInStrings(t *testing.T) {
	raw, err := extractJSONObject(`x {"a": "}{", "b": {"c": "\"}"}} y`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": "}{", "b": {"c": "\"}"}}`, raw)
}

// chatServer answers every completion with content and counts requests.
func chatServer(t *testing.T, status int, content string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req llmRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
			return
		}
		body, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestLLMRelevanceJudge(t *testing.T) {
	srv, _ := chatServer(t, http.StatusOK, `{"score": 91}`)
	judge := NewLLMRelevanceJudge(&LLMConfig{Model: "m", APIKey: "test-key", BaseURL: srv.URL}, NewProviderGuard("relevance", GuardConfig{}))

	score, err := judge.Score(context.Background(), &domain.Destination{Name: "Nice"}, &domain.FilterSet{Country: "France"})
	require.NoError(t, err)
	assert.Equal(t, 91.0, score)
}

func TestLLMRelevanceJudgeProviderError(t *testing.T) {
	srv, _ := chatServer(t, http.StatusTooManyRequests, "")
	judge := NewLLMRelevanceJudge(&LLMConfig{Model: "m", APIKey: "test-key", BaseURL: srv.URL}, NewProviderGuard("relevance", GuardConfig{}))

	_, err := judge.Score(context.Background(), &domain.Destination{Name: "Nice"}, &domain.FilterSet{Country: "France"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
	assert.Contains(t, err.Error(), "rate limited")
}
