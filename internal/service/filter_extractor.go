package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/timmy/wanderlust/internal/cache"
	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/prompts"
	"github.com/timmy/wanderlust/internal/repository"
)

const (
	filterCacheKeyPrefix = "filters:"
	maxExtractorRunes    = 500
	extractorCountryPool = 200
)

var (
	budgetMaxPattern = regexp.MustCompile(`(?:under|below|up to|less than|max(?:imum)?|within)\s*\$?€?\s*(\d[\d,]*(?:\.\d+)?)`)
	budgetMinPattern = regexp.MustCompile(`(?:over|above|more than|at least|from|min(?:imum)?)\s*\$?€?\s*(\d[\d,]*(?:\.\d+)?)`)
)

// CountryLister returns known catalog countries, most common first.
type CountryLister interface {
	TopCountries(ctx context.Context, limit int) ([]repository.CountryCount, error)
}

// FilterExtractorConfig holds configuration for the NL-to-filters extractor.
type FilterExtractorConfig struct {
	Enabled  bool
	LLM      LLMConfig
	CacheTTL time.Duration
}

// FilterExtractor turns a free-text travel request into a FilterSet.
type FilterExtractor struct {
	chat      *chatClient
	guard     *ProviderGuard
	cache     cache.Provider
	ttl       time.Duration
	countries CountryLister
	enabled   bool
}

// NewFilterExtractor creates a new extractor. With the LLM disabled only the
// keyword rules are used. store and countries may be nil.
func NewFilterExtractor(cfg *FilterExtractorConfig, guard *ProviderGuard, store cache.Provider, countries CountryLister) *FilterExtractor {
	e := &FilterExtractor{guard: guard, cache: store, countries: countries}
	if cfg == nil {
		return e
	}
	e.ttl = cfg.CacheTTL
	if e.ttl <= 0 {
		e.ttl = 10 * time.Minute
	}
	if cfg.Enabled {
		e.chat = newChatClient(&cfg.LLM)
		e.enabled = true
	}
	return e
}

// IsEnabled returns whether the LLM extractor is enabled.
func (e *FilterExtractor) IsEnabled() bool {
	return e.enabled
}

// Extract returns the filters described by text. LLM failures and open
// breakers fall back to keyword rules; only LLM answers are memoized.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - text: free-text request.
// Returns:
//   - *domain.FilterSet: normalized filters restricted to the catalog vocabularies.
//   - error: validation error for blank text.
func (e *FilterExtractor) Extract(ctx context.Context, text string) (*domain.FilterSet, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, domain.NewValidationError("text must not be empty")
	}
	if runes := []rune(trimmed); len(runes) > maxExtractorRunes {
		trimmed = string(runes[:maxExtractorRunes])
	}

	key := filterCacheKeyPrefix + cache.NormalizeKey(trimmed)
	if fs, ok := e.cached(ctx, key); ok {
		return fs, nil
	}

	if e.enabled {
		fs, err := guardCall(ctx, e.guard, func(ctx context.Context) (*domain.FilterSet, error) {
			content, err := e.chat.complete(ctx, prompts.FilterExtractionSystemPrompt(), trimmed, 300)
			if err != nil {
				return nil, err
			}
			return parseFilterReply(content)
		})
		if err == nil {
			e.store(ctx, key, fs)
			return fs, nil
		}
		logger.With(logger.Fields{
			logger.FieldProvider: "filter_extractor",
		}).Warn(ctx, "Filter extraction failed, using keyword rules: %v", err)
	}

	return e.fallbackExtract(ctx, trimmed), nil
}

func (e *FilterExtractor) cached(ctx context.Context, key string) (*domain.FilterSet, bool) {
	if e.cache == nil {
		return nil, false
	}
	raw, err := e.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			logger.FromContext(ctx).WithError(err).Warn("Filter cache read failed")
		}
		return nil, false
	}
	var fs domain.FilterSet
	if err := json.Unmarshal(raw, &fs); err != nil {
		return nil, false
	}
	return &fs, true
}

func (e *FilterExtractor) store(ctx context.Context, key string, fs *domain.FilterSet) {
	if e.cache == nil {
		return
	}
	raw, err := json.Marshal(fs)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, raw, e.ttl); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Filter cache write failed")
	}
}

// parseFilterReply extracts the JSON object from a model reply and keeps only
// vocabulary values.
func parseFilterReply(content string) (*domain.FilterSet, error) {
	raw, err := extractJSONObject(content)
	if err != nil {
		return nil, err
	}
	var fs domain.FilterSet
	if err := json.Unmarshal([]byte(raw), &fs); err != nil {
		return nil, fmt.Errorf("failed to parse filters: %w", err)
	}
	restrictToVocabulary(&fs)
	return &fs, nil
}

// restrictToVocabulary drops unknown values, rewrites known ones to their
// canonical spelling and discards an invalid budget range.
func restrictToVocabulary(fs *domain.FilterSet) {
	fs.Climates = canonical(fs.Climates, domain.Climates)
	fs.Seasons = canonical(fs.Seasons, domain.Seasons)
	fs.ActivityTypes = canonical(fs.ActivityTypes, domain.ActivityTypes)
	fs.Vibes = canonical(fs.Vibes, domain.Vibes)
	fs.ComfortLevels = canonical(fs.ComfortLevels, domain.ComfortLevels)
	fs.Languages = canonical(fs.Languages, domain.Languages)
	fs.Tags = canonical(fs.Tags, domain.Tags)
	fs.Normalize()
	if fs.Validate() != nil {
		fs.BudgetMin, fs.BudgetMax = nil, nil
	}
}

func canonical[T ~string](values []T, vocabulary []T) []T {
	var out []T
	for _, v := range values {
		for _, known := range vocabulary {
			if strings.EqualFold(strings.TrimSpace(string(v)), string(known)) {
				out = append(out, known)
				break
			}
		}
	}
	return out
}

// fallbackExtract applies the keyword rules.
func (e *FilterExtractor) fallbackExtract(ctx context.Context, text string) *domain.FilterSet {
	lower := strings.ToLower(text)
	fs := &domain.FilterSet{}

	for _, tok := range tokenize(lower) {
		if season, ok := prompts.SeasonKeywords[tok]; ok {
			fs.Seasons = append(fs.Seasons, season)
		}
		fs.ActivityTypes = appendStemMatch(fs.ActivityTypes, tok, prompts.ActivityKeywords)
		fs.Tags = appendStemMatch(fs.Tags, tok, prompts.TagKeywords)
		fs.ComfortLevels = appendStemMatch(fs.ComfortLevels, tok, prompts.ComfortKeywords)
	}
	for _, c := range domain.Climates {
		if strings.Contains(lower, strings.ToLower(string(c))) {
			fs.Climates = append(fs.Climates, c)
		}
	}
	if containsAny(lower, prompts.FamilyKeywords) {
		fs.FamilyFriendly = domain.Bool(true)
	}
	if containsAny(lower, prompts.NoVisaKeywords) {
		fs.VisaRequired = domain.Bool(false)
	}
	fs.BudgetMax = firstAmount(budgetMaxPattern, lower)
	fs.BudgetMin = firstAmount(budgetMinPattern, lower)
	fs.Country = e.detectCountry(ctx, lower)

	restrictToVocabulary(fs)
	return fs
}

func (e *FilterExtractor) detectCountry(ctx context.Context, lower string) string {
	if e.countries == nil {
		return ""
	}
	rows, err := e.countries.TopCountries(ctx, extractorCountryPool)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to load countries for filter extraction")
		return ""
	}
	for _, row := range rows {
		if row.Country != "" && strings.Contains(lower, strings.ToLower(row.Country)) {
			return row.Country
		}
	}
	return ""
}

// appendStemMatch matches short stems exactly (or with an s/ing suffix) and
// longer stems as prefixes.
func appendStemMatch(out []string, token string, keywords map[string]string) []string {
	for stem, value := range keywords {
		switch {
		case token == stem, token == stem+"s", token == stem+"ing":
		case len(stem) >= 4 && strings.HasPrefix(token, stem):
		default:
			continue
		}
		out = append(out, value)
	}
	return out
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func firstAmount(pattern *regexp.Regexp, text string) *float64 {
	m := pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}
