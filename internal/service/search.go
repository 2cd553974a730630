package service

import (
	"context"
	"errors"
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

// Search sort orders.
const (
	SortRelevance  = "relevance"
	SortRating     = "rating"
	SortBudgetAsc  = "budget_asc"
	SortBudgetDesc = "budget_desc"
	SortPopularity = "popularity"
)

const (
	DefaultSearchPageSize = 8

	// searchTargetMany applies when more than one exact match exists.
	searchTargetMany = 10
	searchTargetFew  = 8
)

// SearchConfig holds configuration for search service.
type SearchConfig struct {
	PageSize int
}

// SearchRequest is a structured destination search.
type SearchRequest struct {
	UserID        *uint
	Filters       domain.FilterSet
	SortBy        string
	Page          int
	WithRelevance bool
}

// SearchResult is one page of search results.
type SearchResult struct {
	Items        []domain.ScoredDestination `json:"items"`
	Filters      domain.FilterSet           `json:"filters"`
	Total        int                        `json:"total"`
	Page         int                        `json:"page"`
	PageSize     int                        `json:"page_size"`
	TotalPages   int                        `json:"total_pages"`
	ExactCount   int                        `json:"exact_count"`
	PartialCount int                        `json:"partial_count"`
	Message      string                     `json:"message,omitempty"`
}

// SearchService handles destination search operations.
type SearchService struct {
	engine       *FilterEngine
	catalog      Catalog
	ratings      RatingSource
	interactions InteractionLog
	embedding    EmbeddingProvider
	index        VectorIndex
	text         Ranker
	relevance    *RelevanceCache
	extractor    *FilterExtractor
	logger       *logger.Logger
	pageSize     int
}

// NewSearchService creates a new search service.
// Parameters:
//   - catalog: destination catalog.
//   - ratings: average review ratings, used for the rating sort.
//   - interactions: log receiving search interactions of identified users.
//   - embedding: query embedding provider (optional).
//   - index: destination vector index (optional, used together with embedding).
//   - relevance: relevance cache for ai_relevance (optional).
//   - extractor: NL-to-filters extractor for chat search (optional).
//   - log: logger instance.
//   - cfg: search configuration settings.
//
// Returns:
//   - *SearchService: initialized search service.
func NewSearchService(
	catalog Catalog,
	ratings RatingSource,
	interactions InteractionLog,
	embedding EmbeddingProvider,
	index VectorIndex,
	relevance *RelevanceCache,
	extractor *FilterExtractor,
	log *logger.Logger,
	cfg *SearchConfig,
) *SearchService {
	pageSize := DefaultSearchPageSize
	if cfg != nil && cfg.PageSize > 0 {
		pageSize = cfg.PageSize
	}
	return &SearchService{
		engine:       NewFilterEngine(catalog),
		catalog:      catalog,
		ratings:      ratings,
		interactions: interactions,
		embedding:    embedding,
		index:        index,
		text:         NewTFIDFRanker(),
		relevance:    relevance,
		extractor:    extractor,
		logger:       log,
		pageSize:     pageSize,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *SearchService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// ValidSort reports whether sortBy names a known order; empty means relevance.
func ValidSort(sortBy string) bool {
	switch sortBy {
	case "", SortRelevance, SortRating, SortBudgetAsc, SortBudgetDesc, SortPopularity:
		return true
	}
	return false
}

// Search returns exact matches scored 100 followed, when there are fewer than
// the target, by partial matches scored with PartialScore. The merged list is
// sorted by req.SortBy and paged.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: filters, sort, page and optional caller.
// Returns:
//   - *SearchResult: the requested page and totals.
//   - error: validation errors or a store failure.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	start := time.Now()
	if !ValidSort(req.SortBy) {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown sort %q", req.SortBy))
	}
	filters := req.Filters
	filters.Normalize()
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	page := max(req.Page, 1)
	result := &SearchResult{Filters: filters, Page: page, PageSize: s.pageSize}

	exact, err := s.engine.ExactMatches(ctx, filters)
	if err != nil {
		return nil, err
	}
	if exact.NoFilters {
		result.Message = exact.Message
		result.Items = []domain.ScoredDestination{}
		return result, nil
	}

	target := searchTargetFew
	if len(exact.Matches) > 1 {
		target = searchTargetMany
	}
	items := exact.Matches
	if need := target - len(exact.Matches); need > 0 {
		partial, err := s.partialMatches(ctx, &filters, exact.Matches, need)
		if err != nil {
			return nil, err
		}
		result.PartialCount = len(partial)
		items = append(items, partial...)
	}
	result.ExactCount = len(exact.Matches)
	result.Message = exact.Message
	if len(items) == 0 {
		result.Message = MessageNoMatches
	}

	if err := s.attachRatings(ctx, items); err != nil {
		return nil, err
	}
	sortSearchResults(items, req.SortBy)

	result.Total = len(items)
	result.TotalPages = (len(items) + s.pageSize - 1) / s.pageSize
	lo := min((page-1)*s.pageSize, len(items))
	hi := min(lo+s.pageSize, len(items))
	result.Items = append([]domain.ScoredDestination{}, items[lo:hi]...)

	if req.WithRelevance {
		s.attachRelevance(ctx, result.Items, filters)
	}
	if req.UserID != nil && page == 1 {
		s.logSearch(ctx, *req.UserID, &filters)
	}

	metrics.RecordSearch(result.ExactCount, result.PartialCount)
	s.log(ctx).WithFields(logger.Fields{
		"exact":                result.ExactCount,
		"partial":              result.PartialCount,
		"sort":                 req.SortBy,
		"page":                 page,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Debug("Search completed")
	return result, nil
}

// ChatSearch extracts filters from free text and runs Search with them.
func (s *SearchService) ChatSearch(ctx context.Context, userID *uint, text, sortBy string, page int) (*SearchResult, error) {
	if s.extractor == nil {
		return nil, domain.NewProviderUnavailableError("filter_extractor", errors.New("not configured"))
	}
	filters, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, SearchRequest{UserID: userID, Filters: *filters, SortBy: sortBy, Page: page})
}

// partialMatches picks up to need non-exact destinations with a positive
// PartialScore. Candidates come from the vector index when it is available and
// otherwise from the whole catalog, with TF-IDF similarity as tie-break.
func (s *SearchService) partialMatches(ctx context.Context, filters *domain.FilterSet, exact []domain.ScoredDestination, need int) ([]domain.ScoredDestination, error) {
	excluded := make([]uint, len(exact))
	for i, m := range exact {
		excluded[i] = m.Destination.ID
	}
	query := filterQueryText(filters)

	candidates, similarity, err := s.vectorCandidates(ctx, query, excluded)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Vector search unavailable, using TF-IDF over the catalog")
		candidates = nil
	}
	if len(candidates) == 0 {
		candidates, similarity, err = s.textCandidates(ctx, query, excluded)
		if err != nil {
			return nil, err
		}
	}

	out := make([]domain.ScoredDestination, 0, len(candidates))
	for i := range candidates {
		d := &candidates[i]
		score := PartialScore(d, filters)
		if score <= 0 {
			continue
		}
		out = append(out, domain.ScoredDestination{
			Destination:     *d,
			Score:           score,
			ScorePercentage: score,
			IsPopular:       d.IsPopular,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		sa, sb := similarity[a.Destination.ID], similarity[b.Destination.ID]
		if sa != sb {
			return sa > sb
		}
		return a.Destination.ID < b.Destination.ID
	})
	if len(out) > need {
		out = out[:need]
	}
	return out, nil
}

// vectorCandidates returns the DefaultTopK nearest destinations, or nil
// candidates when no vector index is configured.
func (s *SearchService) vectorCandidates(ctx context.Context, query string, excluded []uint) ([]domain.Destination, map[uint]float64, error) {
	if s.embedding == nil || s.index == nil || s.index.Len() == 0 || query == "" {
		return nil, nil, nil
	}
	vector, err := s.embedding.EmbedQuery(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	k := DefaultTopK(s.index.Len())
	hits, err := s.index.Query(ctx, vector, k, excluded)
	if err != nil {
		return nil, nil, err
	}
	similarity := make(map[uint]float64, len(hits))
	for _, h := range hits {
		similarity[h.ID] = h.Score
	}
	rows, err := s.catalog.Find(ctx, repository.CatalogQuery{
		Match: func(d *domain.Destination) bool {
			_, ok := similarity[d.ID]
			return ok
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load vector candidates: %w", err)
	}
	return rows, similarity, nil
}

func (s *SearchService) textCandidates(ctx context.Context, query string, excluded []uint) ([]domain.Destination, map[uint]float64, error) {
	rows, err := s.catalog.Find(ctx, repository.CatalogQuery{ExcludeIDs: excluded})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load partial candidates: %w", err)
	}
	similarity := make(map[uint]float64, len(rows))
	if query == "" {
		return rows, similarity, nil
	}
	docs := make([]Candidate, len(rows))
	for i := range rows {
		docs[i] = Candidate{ID: rows[i].ID, Text: rows[i].SearchText()}
	}
	ranked, err := s.text.Rank(ctx, query, docs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to rank partial candidates: %w", err)
	}
	for _, r := range ranked {
		similarity[r.ID] = r.Score
	}
	return rows, similarity, nil
}

// filterQueryText joins the textual filter values into a similarity query.
func filterQueryText(f *domain.FilterSet) string {
	parts := []string{f.Country}
	for _, c := range f.Climates {
		parts = append(parts, string(c))
	}
	for _, season := range f.Seasons {
		parts = append(parts, string(season))
	}
	parts = append(parts, f.ActivityTypes...)
	parts = append(parts, f.Tags...)
	parts = append(parts, f.Vibes...)
	parts = append(parts, f.ComfortLevels...)
	parts = append(parts, f.Languages...)
	return strings.TrimSpace(strings.Join(strings.Fields(strings.Join(parts, " ")), " "))
}

func (s *SearchService) attachRatings(ctx context.Context, items []domain.ScoredDestination) error {
	if s.ratings == nil || len(items) == 0 {
		return nil
	}
	ids := make([]uint, len(items))
	for i := range items {
		ids[i] = items[i].Destination.ID
	}
	ratings, err := s.ratings.AverageRatings(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load ratings: %w", err)
	}
	for i := range items {
		items[i].Rating = math.Round(ratings[items[i].Destination.ID]*10) / 10
	}
	return nil
}

// attachRelevance fills AIRelevance; failures leave the field empty.
func (s *SearchService) attachRelevance(ctx context.Context, items []domain.ScoredDestination, filters domain.FilterSet) {
	if s.relevance == nil {
		return
	}
	for i := range items {
		score, err := s.relevance.GetOrCompute(ctx, &items[i].Destination, filters)
		if err != nil {
			s.log(ctx).WithFields(logger.Fields{
				logger.FieldDestinationID: items[i].Destination.ID,
			}).WithError(err).Warn("Skipping AI relevance")
			continue
		}
		items[i].AIRelevance = &score
	}
}

func (s *SearchService) logSearch(ctx context.Context, userID uint, filters *domain.FilterSet) {
	if s.interactions == nil {
		return
	}
	in := &domain.UserInteraction{UserID: userID, Kind: domain.InteractionSearch}
	if err := in.SetFilters(filters); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to encode search filters")
		return
	}
	if err := s.interactions.Log(ctx, in); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to log search interaction")
	}
}

// sortSearchResults orders in place. Ties always fall back to destination id.
func sortSearchResults(items []domain.ScoredDestination, sortBy string) {
	less := func(a, b *domain.ScoredDestination) (bool, bool) {
		switch sortBy {
		case SortRating:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating, true
			}
			if a.Score != b.Score {
				return a.Score > b.Score, true
			}
		case SortBudgetAsc:
			if a.Score != b.Score {
				return a.Score > b.Score, true
			}
			am, bm := budgetOr(a.Destination.BudgetMin, math.Inf(1)), budgetOr(b.Destination.BudgetMin, math.Inf(1))
			if am != bm {
				return am < bm, true
			}
		case SortBudgetDesc:
			if a.Score != b.Score {
				return a.Score > b.Score, true
			}
			am, bm := budgetOr(a.Destination.BudgetMax, math.Inf(-1)), budgetOr(b.Destination.BudgetMax, math.Inf(-1))
			if am != bm {
				return am > bm, true
			}
		case SortPopularity:
			if a.Score != b.Score {
				return a.Score > b.Score, true
			}
			if a.IsPopular != b.IsPopular {
				return a.IsPopular, true
			}
		default:
			if a.Score != b.Score {
				return a.Score > b.Score, true
			}
			if a.Rating != b.Rating {
				return a.Rating > b.Rating, true
			}
		}
		return false, false
	}
	sort.SliceStable(items, func(i, j int) bool {
		if ok, decided := less(&items[i], &items[j]); decided {
			return ok
		}
		return items[i].Destination.ID < items[j].Destination.ID
	})
}

func budgetOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
