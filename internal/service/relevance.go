package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/metrics"
	"github.com/timmy/wanderlust/internal/prompts"
)

// RelevanceJudge scores how well a destination fits a filter set, in [0, 100].
type RelevanceJudge interface {
	Score(ctx context.Context, d *domain.Destination, filters *domain.FilterSet) (float64, error)
}

// RelevanceCache memoizes judge scores per (destination, filters hash).
type RelevanceCache struct {
	store   RelevanceStore
	judge   RelevanceJudge
	timeout time.Duration
	logger  *logger.Logger
}

// NewRelevanceCache creates a new RelevanceCache. A non-positive timeout
// defaults to 15 seconds.
func NewRelevanceCache(store RelevanceStore, judge RelevanceJudge, timeout time.Duration, log *logger.Logger) *RelevanceCache {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RelevanceCache{store: store, judge: judge, timeout: timeout, logger: log}
}

// Size returns the number of cached scores.
func (c *RelevanceCache) Size(ctx context.Context) (int64, error) {
	return c.store.Count(ctx)
}

// log returns a logger from context if available, otherwise returns the default logger
func (c *RelevanceCache) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return c.logger
}

// GetOrCompute returns the cached score for (d, filters) or asks the judge
// once, clamps the answer to [0, 100] and stores it. Concurrent misses for the
// same key resolve to the first stored row. A judge failure stores nothing.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - d: destination to score.
//   - filters: filter set; it is normalized before hashing.
// Returns:
//   - float64: relevance score in [0, 100].
//   - error: validation error for an empty filter set, ErrProviderUnavailable on judge failure.
func (c *RelevanceCache) GetOrCompute(ctx context.Context, d *domain.Destination, filters domain.FilterSet) (float64, error) {
	filters.Normalize()
	if filters.IsEmpty() {
		return 0, domain.NewValidationError(MessageNoFilters)
	}
	hash := filters.Hash()

	cached, err := c.store.Get(ctx, d.ID, hash)
	if err != nil {
		return 0, err
	}
	if cached != nil {
		metrics.RecordRelevanceLookup(true)
		return cached.Score, nil
	}
	metrics.RecordRelevanceLookup(false)

	start := time.Now()
	judgeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	score, err := c.judge.Score(judgeCtx, d, &filters)
	cancel()
	if err != nil {
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			err = domain.NewProviderUnavailableError("relevance", err)
		}
		c.log(ctx).WithFields(logger.Fields{
			logger.FieldDestinationID: d.ID,
		}).WithError(err).Warn("Relevance judge failed")
		return 0, err
	}

	row, err := c.store.Insert(ctx, &domain.RelevanceScore{
		DestinationID: d.ID,
		FiltersHash:   hash,
		Score:         clampScore(score),
	})
	if err != nil {
		return 0, err
	}

	logger.With(logger.Fields{
		logger.FieldDestinationID: d.ID,
		logger.FieldDurationMs:    time.Since(start).Milliseconds(),
		logger.FieldCacheHit:      false,
	}).Debug(ctx, "Relevance computed")
	return row.Score, nil
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// HeuristicJudge scores with the weighted similarity percentage.
type HeuristicJudge struct{}

// Score implements RelevanceJudge.
func (HeuristicJudge) Score(_ context.Context, d *domain.Destination, filters *domain.FilterSet) (float64, error) {
	return ScorePercentage(CalculateSimilarity(d, filters)), nil
}

// LLMRelevanceJudge asks a chat model for a 0-100 score.
type LLMRelevanceJudge struct {
	chat  *chatClient
	guard *ProviderGuard
}

// NewLLMRelevanceJudge creates a new LLM judge guarded by guard (may be nil).
func NewLLMRelevanceJudge(cfg *LLMConfig, guard *ProviderGuard) *LLMRelevanceJudge {
	return &LLMRelevanceJudge{chat: newChatClient(cfg), guard: guard}
}

type judgeReply struct {
	Score *float64 `json:"score"`
}

// Score implements RelevanceJudge.
func (j *LLMRelevanceJudge) Score(ctx context.Context, d *domain.Destination, filters *domain.FilterSet) (float64, error) {
	return guardCall(ctx, j.guard, func(ctx context.Context) (float64, error) {
		content, err := j.chat.complete(ctx, prompts.RelevanceJudgeSystemPrompt, prompts.RelevanceJudgeUserPrompt(d, filters), 20)
		if err != nil {
			return 0, err
		}
		return parseJudgeReply(content)
	})
}

func parseJudgeReply(content string) (float64, error) {
	raw, err := extractJSONObject(content)
	if err != nil {
		return 0, err
	}
	var reply judgeReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return 0, fmt.Errorf("failed to parse judge reply: %w", err)
	}
	if reply.Score == nil {
		return 0, fmt.Errorf("judge reply has no score")
	}
	return *reply.Score, nil
}
