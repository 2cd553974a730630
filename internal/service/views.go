package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/metrics"
	"github.com/timmy/wanderlust/internal/repository"
)

// trendingWeights weighs interactions inside the trending window.
var trendingWeights = map[domain.InteractionKind]float64{
	domain.InteractionView:     1,
	domain.InteractionFavorite: 2,
	domain.InteractionReview:   3,
}

// Inspiration samples between 60% and 80% of the user's filter sets.
const (
	inspirationMinShare = 0.6
	inspirationMaxShare = 0.8
	inspirationHistory  = 10
)

func (s *RecommendationService) finish(ctx context.Context, view string, start time.Time, c *cascade) []Recommendation {
	metrics.RecordRecommendations(c.bySource())
	metrics.RecordRecommendationView(view, time.Since(start))
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldStrategy:   view,
		logger.FieldCount:      len(c.items),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Debug("Recommendation view computed")
	return c.items
}

// ============================================
// Seasonal
// ============================================

// Seasonal recommends destinations whose best season is the current one.
// For identified users the last search refines the ranking.
func (s *RecommendationService) Seasonal(ctx context.Context, req RecommendRequest) ([]Recommendation, error) {
	start := time.Now()
	c := newCascade(s.limit(req.Limit), req.ExcludeIDs)
	season := domain.SeasonForMonth(s.now().Month())

	filters := domain.FilterSet{}
	if req.UserID != nil {
		last, err := s.lastSearchFilters(ctx, *req.UserID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			filters = *last
		}
	}
	filters.Seasons = []domain.Season{season}

	rows, err := s.catalog.Find(ctx, repository.CatalogQuery{
		Seasons:    []domain.Season{season},
		ExcludeIDs: c.excludedIDs(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load seasonal destinations: %w", err)
	}
	recs := make([]Recommendation, 0, len(rows))
	for i := range rows {
		score := CalculateSimilarity(&rows[i], &filters)
		recs = append(recs, Recommendation{
			Destination:     rows[i],
			Score:           score,
			ScorePercentage: ScorePercentage(score),
			IsPopular:       rows[i].IsPopular,
			IsRecommended:   true,
			Source:          SourceSeasonal,
		})
	}
	sortRecommendations(recs)
	c.add(recs)

	if err := s.topUpPopular(ctx, c, false); err != nil {
		return nil, err
	}
	return s.finish(ctx, SourceSeasonal, start, c), nil
}

func (s *RecommendationService) lastSearchFilters(ctx context.Context, userID uint) (*domain.FilterSet, error) {
	rows, err := s.interactions.Query(ctx, repository.InteractionQuery{
		UserID: &userID,
		Kinds:  []domain.InteractionKind{domain.InteractionSearch},
		Limit:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load last search: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	fs, err := rows[0].Filters()
	if err != nil {
		return nil, nil
	}
	return fs, nil
}

// ============================================
// Trending
// ============================================

// Trending ranks destinations by weighted interaction counts inside the
// trending window. Shortfalls are filled with shuffled popular destinations.
func (s *RecommendationService) Trending(ctx context.Context, req RecommendRequest) ([]Recommendation, error) {
	start := time.Now()
	c := newCascade(s.limit(req.Limit), req.ExcludeIDs)
	since := s.now().Add(-s.cfg.TrendingWindow)

	kinds := []domain.InteractionKind{domain.InteractionView, domain.InteractionFavorite, domain.InteractionReview}
	counts, err := s.interactions.CountByDestinationSince(ctx, kinds, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count trending interactions: %w", err)
	}

	totals := make(map[uint]float64)
	for _, row := range counts {
		totals[row.DestinationID] += float64(row.Total) * trendingWeights[row.Kind]
	}
	ranked := make([]Scored, 0, len(totals))
	var top float64
	for id, total := range totals {
		if c.isExcluded(id) || total <= 0 {
			continue
		}
		ranked = append(ranked, Scored{ID: id, Score: total})
		top = math.Max(top, total)
	}
	sortScored(ranked)
	if len(ranked) > c.limit {
		ranked = ranked[:c.limit]
	}

	recs, err := s.hydrate(ctx, ranked, SourceTrending, func(score float64) float64 {
		return math.Round(score/top*1000) / 10
	})
	if err != nil {
		return nil, err
	}
	c.add(recs)

	if err := s.topUpPopular(ctx, c, true); err != nil {
		return nil, err
	}
	return s.finish(ctx, SourceTrending, start, c), nil
}

// hydrate loads the destinations of ranked ids, keeping the ranked order.
func (s *RecommendationService) hydrate(ctx context.Context, ranked []Scored, source string, pct func(float64) float64) ([]Recommendation, error) {
	if len(ranked) == 0 {
		return nil, nil
	}
	wanted := make(map[uint]struct{}, len(ranked))
	for _, r := range ranked {
		wanted[r.ID] = struct{}{}
	}
	rows, err := s.catalog.Find(ctx, repository.CatalogQuery{
		Match: func(d *domain.Destination) bool {
			_, ok := wanted[d.ID]
			return ok
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load ranked destinations: %w", err)
	}
	byID := make(map[uint]domain.Destination, len(rows))
	for _, d := range rows {
		byID[d.ID] = d
	}

	recs := make([]Recommendation, 0, len(ranked))
	for _, r := range ranked {
		d, ok := byID[r.ID]
		if !ok {
			continue
		}
		recs = append(recs, Recommendation{
			Destination:     d,
			Score:           r.Score,
			ScorePercentage: pct(r.Score),
			IsPopular:       d.IsPopular,
			IsRecommended:   true,
			Source:          source,
		})
	}
	return recs, nil
}

// ============================================
// Inspiration
// ============================================

// Inspiration samples 60-80% of the filter sets derived from the user's
// favorites and searches, scores the catalog against each sample and keeps
// every destination's best score. The sample is drawn from the service's
// Randomizer so a fixed seed reproduces it.
func (s *RecommendationService) Inspiration(ctx context.Context, req RecommendRequest) ([]Recommendation, error) {
	start := time.Now()
	c := newCascade(s.limit(req.Limit), req.ExcludeIDs)

	if req.UserID != nil {
		pool, err := s.inspirationPool(ctx, *req.UserID)
		if err != nil {
			return nil, err
		}
		sample := s.sampleFilterSets(pool)
		if len(sample) > 0 {
			rows, err := s.catalog.Find(ctx, repository.CatalogQuery{ExcludeIDs: c.excludedIDs()})
			if err != nil {
				return nil, fmt.Errorf("failed to load inspiration candidates: %w", err)
			}
			recs := make([]Recommendation, 0, len(rows))
			for i := range rows {
				var best float64
				for j := range sample {
					best = math.Max(best, CalculateSimilarity(&rows[i], &sample[j]))
				}
				if best <= 0 {
					continue
				}
				recs = append(recs, Recommendation{
					Destination:     rows[i],
					Score:           best,
					ScorePercentage: ScorePercentage(best),
					IsPopular:       rows[i].IsPopular,
					IsRecommended:   true,
					Source:          SourceInspiration,
				})
			}
			sortRecommendations(recs)
			c.add(recs)
		}
	}

	if err := s.topUpPopular(ctx, c, false); err != nil {
		return nil, err
	}
	return s.finish(ctx, SourceInspiration, start, c), nil
}

// inspirationPool returns favorite-derived then search-derived filter sets.
func (s *RecommendationService) inspirationPool(ctx context.Context, userID uint) ([]domain.FilterSet, error) {
	rows, err := s.interactions.Query(ctx, repository.InteractionQuery{
		UserID: &userID,
		Kinds:  []domain.InteractionKind{domain.InteractionFavorite, domain.InteractionSearch},
		Limit:  inspirationHistory * 2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load inspiration history: %w", err)
	}

	var favorites, searches []domain.FilterSet
	for _, in := range rows {
		switch in.Kind {
		case domain.InteractionFavorite:
			if in.Destination != nil && len(favorites) < inspirationHistory {
				favorites = append(favorites, domain.FiltersFromDestination(in.Destination))
			}
		case domain.InteractionSearch:
			fs, err := in.Filters()
			if err == nil && !fs.IsEmpty() && len(searches) < inspirationHistory {
				searches = append(searches, *fs)
			}
		}
	}
	return append(favorites, searches...), nil
}

// sampleFilterSets keeps a random 60-80% share of pool, at least one set.
func (s *RecommendationService) sampleFilterSets(pool []domain.FilterSet) []domain.FilterSet {
	if len(pool) == 0 {
		return nil
	}
	share := inspirationMinShare + (inspirationMaxShare-inspirationMinShare)*s.rand.Float64()
	k := int(math.Ceil(float64(len(pool)) * share))
	if k < 1 {
		k = 1
	}
	if k > len(pool) {
		k = len(pool)
	}
	shuffled := append([]domain.FilterSet(nil), pool...)
	s.rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:k]
}

// ============================================
// Personalized
// ============================================

// Personalized blends profile-vs-destination content similarity with
// collaborative scores. Cold-start users get popular destinations.
func (s *RecommendationService) Personalized(ctx context.Context, req RecommendRequest) ([]Recommendation, error) {
	start := time.Now()
	c := newCascade(s.limit(req.Limit), req.ExcludeIDs)

	if req.UserID != nil {
		recs, err := s.personalizedCandidates(ctx, *req.UserID, c)
		if err != nil {
			return nil, err
		}
		c.add(recs)
	}

	if err := s.topUpPopular(ctx, c, false); err != nil {
		return nil, err
	}
	return s.finish(ctx, SourcePersonalized, start, c), nil
}

func (s *RecommendationService) personalizedCandidates(ctx context.Context, userID uint, c *cascade) ([]Recommendation, error) {
	profile, err := s.profiles.Build(ctx, userID, s.cfg.ProfileTokens)
	if err != nil {
		return nil, err
	}
	if profile.IsEmpty() {
		return nil, nil
	}

	rows, err := s.catalog.Find(ctx, repository.CatalogQuery{ExcludeIDs: c.excludedIDs()})
	if err != nil {
		return nil, fmt.Errorf("failed to load personalized candidates: %w", err)
	}
	candidates := make([]Candidate, len(rows))
	for i := range rows {
		candidates[i] = Candidate{ID: rows[i].ID, Text: rows[i].SearchText()}
	}

	content, err := s.content.Rank(ctx, profile.Text(), candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to rank content candidates: %w", err)
	}
	for i := range content {
		content[i].Score *= 100
	}

	var collab []Scored
	if s.collab != nil {
		collab, err = s.collab.Recommend(ctx, userID, profile.Top(ProfileTopNShort), c.excludedIDs())
		if err != nil {
			s.log(ctx).WithError(err).Warn("Collaborative scoring failed, using content scores only")
			collab = nil
		}
	}

	blended := Blend(content, collab)
	kept := blended[:0]
	for _, b := range blended {
		if b.Score > 0 {
			kept = append(kept, b)
		}
	}
	if len(kept) > c.remaining() {
		kept = kept[:c.remaining()]
	}
	return s.hydrate(ctx, kept, SourcePersonalized, func(score float64) float64 {
		return math.Round(math.Min(score, 100)*10) / 10
	})
}
