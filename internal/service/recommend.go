package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/metrics"
	"github.com/timmy/wanderlust/internal/repository"
)

// Recommendation sources, in cascade priority order first.
const (
	SourceSearch        = "search"
	SourceFavorite      = "favorite"
	SourceView          = "view"
	SourceReview        = "review"
	SourcePopular       = "popular"
	SourceSeasonal      = "seasonal"
	SourceTrending      = "trending"
	SourceInspiration   = "inspiration"
	SourcePersonalized  = "personalized"
	SourceCollaborative = "collaborative"
)

// similarityWeights scores one destination against a filter set.
var similarityWeights = map[string]float64{
	domain.FilterCountry:        30,
	domain.FilterClimate:        15,
	domain.FilterActivityTypes:  15,
	domain.FilterSeason:         10,
	domain.FilterVibe:           5,
	domain.FilterComfortLevel:   5,
	domain.FilterLanguage:       5,
	domain.FilterFamilyFriendly: 5,
	domain.FilterVisaRequired:   5,
	domain.FilterTags:           10,
}

// MaxSimilarityScore is the sum of the similarity weights and the
// denominator of every score percentage.
var MaxSimilarityScore = func() float64 {
	var sum float64
	for _, w := range similarityWeights {
		sum += w
	}
	return sum
}()

const (
	recentInteractionBonus = 10.0
	sameCountryBoostFactor = 0.5
	recentInteractionLimit = 10
	cascadeSeedsPerKind    = 2
	seedLookupLimit        = 20
)

// CalculateSimilarity is the weighted field-match score of d against f.
func CalculateSimilarity(d *domain.Destination, f *domain.FilterSet) float64 {
	var score float64
	if f.Country != "" && strings.EqualFold(strings.TrimSpace(d.Country), strings.TrimSpace(f.Country)) {
		score += similarityWeights[domain.FilterCountry]
	}
	if containsTyped(f.Climates, d.Climate) {
		score += similarityWeights[domain.FilterClimate]
	}
	if overlaps(d.ActivityTypes, f.ActivityTypes) {
		score += similarityWeights[domain.FilterActivityTypes]
	}
	if containsTyped(f.Seasons, d.Season) {
		score += similarityWeights[domain.FilterSeason]
	}
	if overlaps(d.Vibes, f.Vibes) {
		score += similarityWeights[domain.FilterVibe]
	}
	if overlaps(d.ComfortLevels, f.ComfortLevels) {
		score += similarityWeights[domain.FilterComfortLevel]
	}
	if overlaps(d.Languages, f.Languages) {
		score += similarityWeights[domain.FilterLanguage]
	}
	if f.FamilyFriendly != nil && d.FamilyFriendly == *f.FamilyFriendly {
		score += similarityWeights[domain.FilterFamilyFriendly]
	}
	if f.VisaRequired != nil && d.VisaRequired == *f.VisaRequired {
		score += similarityWeights[domain.FilterVisaRequired]
	}
	if len(f.Tags) > 0 {
		if n := overlapCount(d.Tags, f.Tags); n > 0 {
			score += similarityWeights[domain.FilterTags] * float64(n) / float64(len(f.Tags))
		}
	}
	return score
}

// ScorePercentage converts a similarity score to a percentage capped at 100.
func ScorePercentage(score float64) float64 {
	if score <= 0 || MaxSimilarityScore == 0 {
		return 0
	}
	pct := score / MaxSimilarityScore * 100
	return math.Round(math.Min(pct, 100)*10) / 10
}

// RecommendRequest asks for up to Limit destinations for a user.
type RecommendRequest struct {
	UserID     *uint
	ExcludeIDs []uint
	Limit      int
}

// Recommendation is a ranked destination with its provenance.
type Recommendation struct {
	Destination     domain.Destination `json:"destination"`
	Score           float64            `json:"score"`
	ScorePercentage float64            `json:"score_percentage"`
	IsPopular       bool               `json:"is_popular"`
	IsRecommended   bool               `json:"is_recommended"`
	Source          string             `json:"source"`
}

// RecommendConfig holds configuration for the recommendation service.
type RecommendConfig struct {
	DefaultLimit   int
	MaxLimit       int
	TrendingWindow time.Duration
	ProfileTokens  int
}

// RecommendationService orchestrates the candidate sources.
type RecommendationService struct {
	catalog      Catalog
	interactions InteractionLog
	profiles     *ProfileBuilder
	content      Ranker
	collab       *CollaborativeFilter
	rand         Randomizer
	now          Clock
	logger       *logger.Logger
	cfg          RecommendConfig
}

// NewRecommendationService creates a new recommendation service.
// Parameters:
//   - catalog: destination catalog.
//   - interactions: interaction log.
//   - content: ranker for profile-vs-destination similarity.
//   - collab: collaborative filter.
//   - random: random source for sampling and shuffles.
//   - now: clock; nil means time.Now.
//   - log: logger instance.
//   - cfg: limits and windows.
//
// Returns:
//   - *RecommendationService: initialized service.
func NewRecommendationService(
	catalog Catalog,
	interactions InteractionLog,
	content Ranker,
	collab *CollaborativeFilter,
	random Randomizer,
	now Clock,
	log *logger.Logger,
	cfg RecommendConfig,
) *RecommendationService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 4
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 50
	}
	if cfg.TrendingWindow <= 0 {
		cfg.TrendingWindow = 30 * 24 * time.Hour
	}
	if cfg.ProfileTokens <= 0 {
		cfg.ProfileTokens = ProfileTopNLong
	}
	if now == nil {
		now = time.Now
	}
	if random == nil {
		random = NewRandomizer(0)
	}
	if content == nil {
		content = NewTFIDFRanker()
	}
	return &RecommendationService{
		catalog:      catalog,
		interactions: interactions,
		profiles:     NewProfileBuilder(interactions, 0),
		content:      content,
		collab:       collab,
		rand:         random,
		now:          now,
		logger:       log,
		cfg:          cfg,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *RecommendationService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

func (s *RecommendationService) limit(requested int) int {
	if requested <= 0 {
		return s.cfg.DefaultLimit
	}
	if requested > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return requested
}

// cascade accumulates recommendations with a monotonically growing exclusion set.
type cascade struct {
	limit    int
	excluded map[uint]struct{}
	items    []Recommendation
}

func newCascade(limit int, exclude []uint) *cascade {
	return &cascade{limit: limit, excluded: idSet(exclude), items: make([]Recommendation, 0, limit)}
}

func (c *cascade) full() bool {
	return len(c.items) >= c.limit
}

func (c *cascade) remaining() int {
	return c.limit - len(c.items)
}

func (c *cascade) exclude(id uint) {
	c.excluded[id] = struct{}{}
}

func (c *cascade) isExcluded(id uint) bool {
	_, ok := c.excluded[id]
	return ok
}

func (c *cascade) excludedIDs() []uint {
	ids := make([]uint, 0, len(c.excluded))
	for id := range c.excluded {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// add appends recs in order until the limit, skipping excluded ids.
func (c *cascade) add(recs []Recommendation) {
	for _, r := range recs {
		if c.full() {
			return
		}
		if c.isExcluded(r.Destination.ID) {
			continue
		}
		c.exclude(r.Destination.ID)
		c.items = append(c.items, r)
	}
}

func (c *cascade) bySource() map[string]int {
	out := make(map[string]int)
	for _, r := range c.items {
		out[r.Source]++
	}
	return out
}

// Recommend produces at most Limit destinations by cascading through the last
// search, two recent favorites, views and reviews, then popular destinations.
// Anonymous callers get popular destinations only. Output keeps cascade order.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: user, exclusions and limit.
// Returns:
//   - []Recommendation: never containing an excluded id, at most Limit long.
//   - error: non-nil if a store query fails.
func (s *RecommendationService) Recommend(ctx context.Context, req RecommendRequest) ([]Recommendation, error) {
	start := time.Now()
	c := newCascade(s.limit(req.Limit), req.ExcludeIDs)

	if req.UserID != nil {
		userID := *req.UserID
		if err := s.fromLastSearch(ctx, userID, c); err != nil {
			return nil, err
		}
		for _, step := range []struct {
			kind   domain.InteractionKind
			source string
		}{
			{domain.InteractionFavorite, SourceFavorite},
			{domain.InteractionView, SourceView},
			{domain.InteractionReview, SourceReview},
		} {
			if c.full() {
				break
			}
			if err := s.fromSeeds(ctx, userID, step.kind, step.source, c); err != nil {
				return nil, err
			}
		}
	}

	if err := s.topUpPopular(ctx, c, false); err != nil {
		return nil, err
	}

	metrics.RecordRecommendations(c.bySource())
	metrics.RecordRecommendationView("cascade", time.Since(start))
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldCount:      len(c.items),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		"sources":              c.bySource(),
	}).Debug("Recommendations computed")
	return c.items, nil
}

func (s *RecommendationService) fromLastSearch(ctx context.Context, userID uint, c *cascade) error {
	rows, err := s.interactions.Query(ctx, repository.InteractionQuery{
		UserID: &userID,
		Kinds:  []domain.InteractionKind{domain.InteractionSearch},
		Limit:  1,
	})
	if err != nil {
		return fmt.Errorf("failed to load last search: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	filters, err := rows[0].Filters()
	if err != nil {
		s.log(ctx).WithError(err).Warn("Ignoring unreadable search snapshot")
		return nil
	}
	if filters.IsEmpty() {
		return nil
	}
	recs, err := s.behaviorCandidates(ctx, userID, filters, c, SourceSearch)
	if err != nil {
		return err
	}
	c.add(recs)
	return nil
}

// fromSeeds synthesizes filters from the user's most recent distinct
// destinations of one kind. Seeds are excluded from their own candidates.
func (s *RecommendationService) fromSeeds(ctx context.Context, userID uint, kind domain.InteractionKind, source string, c *cascade) error {
	rows, err := s.interactions.Query(ctx, repository.InteractionQuery{
		UserID: &userID,
		Kinds:  []domain.InteractionKind{kind},
		Limit:  seedLookupLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to load %s seeds: %w", kind, err)
	}

	seen := make(map[uint]struct{}, cascadeSeedsPerKind)
	for _, in := range rows {
		if len(seen) >= cascadeSeedsPerKind || c.full() {
			break
		}
		if in.Destination == nil {
			continue
		}
		if _, dup := seen[in.Destination.ID]; dup {
			continue
		}
		seen[in.Destination.ID] = struct{}{}

		seed := in.Destination
		c.exclude(seed.ID)
		filters := domain.FiltersFromDestination(seed)
		recs, err := s.behaviorCandidates(ctx, userID, &filters, c, source)
		if err != nil {
			return err
		}
		c.add(recs)
	}
	return nil
}

// behaviorCandidates ranks recently interacted destinations (+10), then
// same-country destinations (+half the country weight), then any other
// destination with a positive score. At most c.remaining() are returned.
func (s *RecommendationService) behaviorCandidates(ctx context.Context, userID uint, filters *domain.FilterSet, c *cascade, source string) ([]Recommendation, error) {
	want := c.remaining()
	if want <= 0 {
		return nil, nil
	}
	picked := make(map[uint]struct{})
	var recs []Recommendation
	push := func(d domain.Destination, score float64) {
		picked[d.ID] = struct{}{}
		recs = append(recs, Recommendation{
			Destination:     d,
			Score:           score,
			ScorePercentage: ScorePercentage(score),
			IsPopular:       d.IsPopular,
			IsRecommended:   true,
			Source:          source,
		})
	}
	available := func(id uint) bool {
		if c.isExcluded(id) {
			return false
		}
		_, dup := picked[id]
		return !dup
	}

	recent, err := s.interactions.Query(ctx, repository.InteractionQuery{UserID: &userID, Limit: recentInteractionLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent interactions: %w", err)
	}
	for _, in := range recent {
		if in.Destination == nil || !available(in.Destination.ID) {
			continue
		}
		if score := CalculateSimilarity(in.Destination, filters); score > 0 {
			push(*in.Destination, score+recentInteractionBonus)
		}
	}

	if filters.Country != "" {
		sameCountry, err := s.catalog.Find(ctx, repository.CatalogQuery{
			CountryEquals: filters.Country,
			ExcludeIDs:    c.excludedIDs(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load same-country candidates: %w", err)
		}
		for i := range sameCountry {
			d := &sameCountry[i]
			if !available(d.ID) {
				continue
			}
			push(*d, CalculateSimilarity(d, filters)+similarityWeights[domain.FilterCountry]*sameCountryBoostFactor)
		}
	}

	if len(recs) < want {
		others, err := s.catalog.Find(ctx, repository.CatalogQuery{
			ExcludeIDs: c.excludedIDs(),
			Match: func(d *domain.Destination) bool {
				return filters.Country == "" || !strings.EqualFold(strings.TrimSpace(d.Country), strings.TrimSpace(filters.Country))
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load other candidates: %w", err)
		}
		for i := range others {
			d := &others[i]
			if !available(d.ID) {
				continue
			}
			if score := CalculateSimilarity(d, filters); score > 0 {
				push(*d, score)
			}
		}
	}

	sortRecommendations(recs)
	if len(recs) > want {
		recs = recs[:want]
	}
	return recs, nil
}

// topUpPopular fills the remaining slots with popular destinations, in
// catalog order or shuffled.
func (s *RecommendationService) topUpPopular(ctx context.Context, c *cascade, shuffle bool) error {
	if c.full() {
		return nil
	}
	query := repository.CatalogQuery{Popular: domain.Bool(true), ExcludeIDs: c.excludedIDs()}
	if !shuffle {
		query.Limit = c.remaining()
	}
	popular, err := s.catalog.Find(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to load popular destinations: %w", err)
	}
	if shuffle {
		s.rand.Shuffle(len(popular), func(i, j int) { popular[i], popular[j] = popular[j], popular[i] })
	}
	recs := make([]Recommendation, 0, len(popular))
	for _, d := range popular {
		recs = append(recs, Recommendation{
			Destination:   d,
			IsPopular:     true,
			IsRecommended: true,
			Source:        SourcePopular,
		})
	}
	c.add(recs)
	return nil
}

// sortRecommendations orders by score desc, ties by destination id asc.
func sortRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Destination.ID < recs[j].Destination.ID
	})
}
