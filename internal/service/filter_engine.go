package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/repository"
)

// User-visible filter messages.
const (
	MessageNoFilters = "select at least one filter"
	MessageNoMatches = "no destinations match the filters"
)

// Scoring constants for exact and partial matches.
const (
	ExactMatchScore = 100.0
	MaxPartialScore = 99.9

	oppositeSeasonPenalty   = 0.7
	activityMismatchPenalty = 0.8
	countryMismatchPenalty  = 0.8
	climateMismatchPenalty  = 0.8
)

// FilterResult is the outcome of an exact-match query.
type FilterResult struct {
	Matches   []domain.ScoredDestination
	Message   string
	NoFilters bool
}

// FilterEngine translates a FilterSet into a catalog predicate and scores matches.
type FilterEngine struct {
	catalog Catalog
}

// NewFilterEngine creates a new FilterEngine.
func NewFilterEngine(catalog Catalog) *FilterEngine {
	return &FilterEngine{catalog: catalog}
}

// ExactMatches returns every destination satisfying all active criteria, each
// scored ExactMatchScore. An empty filter set yields no matches and NoFilters.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filters: normalized filter set.
// Returns:
//   - *FilterResult: matches in catalog order plus an optional user message.
//   - error: non-nil if the catalog query fails.
func (e *FilterEngine) ExactMatches(ctx context.Context, filters domain.FilterSet) (*FilterResult, error) {
	if filters.IsEmpty() {
		return &FilterResult{Message: MessageNoFilters, NoFilters: true}, nil
	}

	rows, err := e.catalog.Find(ctx, repository.CatalogQuery{
		Match: func(d *domain.Destination) bool { return Matches(d, &filters) },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find exact matches: %w", err)
	}

	result := &FilterResult{Matches: make([]domain.ScoredDestination, 0, len(rows))}
	for _, d := range rows {
		result.Matches = append(result.Matches, domain.ScoredDestination{
			Destination:     d,
			Score:           ExactMatchScore,
			ScorePercentage: ExactMatchScore,
			IsPopular:       d.IsPopular,
			IsExactMatch:    true,
		})
	}
	if len(result.Matches) == 0 {
		result.Message = MessageNoMatches
	}
	return result, nil
}

// Matches reports whether d satisfies every active criterion of f.
func Matches(d *domain.Destination, f *domain.FilterSet) bool {
	return len(MatchedCriteria(d, f)) == len(f.ActiveCriteria())
}

// MatchedCriteria returns the active criteria of f that d satisfies, in the
// order of FilterSet.ActiveCriteria.
func MatchedCriteria(d *domain.Destination, f *domain.FilterSet) []string {
	var matched []string
	for _, criterion := range f.ActiveCriteria() {
		if matchCriterion(d, f, criterion) {
			matched = append(matched, criterion)
		}
	}
	return matched
}

func matchCriterion(d *domain.Destination, f *domain.FilterSet, criterion string) bool {
	switch criterion {
	case domain.FilterCountry:
		return matchCountry(d.Country, f.Country)
	case domain.FilterClimate:
		return containsTyped(f.Climates, d.Climate)
	case domain.FilterSeason:
		return containsTyped(f.Seasons, d.Season)
	case domain.FilterActivityTypes:
		return overlaps(d.ActivityTypes, f.ActivityTypes)
	case domain.FilterVibe:
		return overlaps(d.Vibes, f.Vibes)
	case domain.FilterComfortLevel:
		return overlaps(d.ComfortLevels, f.ComfortLevels)
	case domain.FilterLanguage:
		return overlaps(d.Languages, f.Languages)
	case domain.FilterTags:
		return overlaps(d.Tags, f.Tags)
	case domain.FilterFamilyFriendly:
		return f.FamilyFriendly != nil && d.FamilyFriendly == *f.FamilyFriendly
	case domain.FilterVisaRequired:
		return f.VisaRequired != nil && d.VisaRequired == *f.VisaRequired
	case domain.FilterBudget:
		return matchBudget(d, f.BudgetMin, f.BudgetMax)
	}
	return false
}

func matchCountry(declared, requested string) bool {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" {
		return false
	}
	return strings.Contains(strings.ToLower(declared), requested)
}

func containsTyped[T ~string](set []T, v T) bool {
	if v == "" {
		return false
	}
	for _, item := range set {
		if strings.EqualFold(string(item), string(v)) {
			return true
		}
	}
	return false
}

func overlaps(declared domain.StringArray, requested []string) bool {
	return overlapCount(declared, requested) > 0
}

func overlapCount(declared domain.StringArray, requested []string) int {
	n := 0
	for _, r := range requested {
		if declared.Contains(r) {
			n++
		}
	}
	return n
}

// matchBudget checks interval overlap. With one bound only the overlap is
// half-open; a destination lacking the needed bound never matches.
func matchBudget(d *domain.Destination, reqMin, reqMax *float64) bool {
	switch {
	case reqMin != nil && reqMax != nil:
		return d.BudgetMin != nil && d.BudgetMax != nil &&
			*d.BudgetMin <= *reqMax && *d.BudgetMax >= *reqMin
	case reqMin != nil:
		return d.BudgetMax != nil && *d.BudgetMax >= *reqMin
	case reqMax != nil:
		return d.BudgetMin != nil && *d.BudgetMin <= *reqMax
	}
	return false
}

// PartialScore scores a non-exact candidate as matched/active criteria with
// compounded mismatch penalties, rounded to one decimal within [0, 99.9].
func PartialScore(d *domain.Destination, f *domain.FilterSet) float64 {
	active := f.ActiveCriteria()
	if len(active) == 0 {
		return 0
	}
	score := float64(len(MatchedCriteria(d, f))) / float64(len(active)) * 100

	if len(f.Seasons) > 0 && !containsTyped(f.Seasons, d.Season) && isOppositeSeason(d.Season, f.Seasons) {
		score *= oppositeSeasonPenalty
	}
	if len(f.ActivityTypes) > 0 && !overlaps(d.ActivityTypes, f.ActivityTypes) {
		score *= activityMismatchPenalty
	}
	if f.Country != "" && !matchCountry(d.Country, f.Country) {
		score *= countryMismatchPenalty
	}
	if len(f.Climates) > 0 && !containsTyped(f.Climates, d.Climate) {
		score *= climateMismatchPenalty
	}

	score = math.Round(score*10) / 10
	return math.Max(0, math.Min(score, MaxPartialScore))
}

func isOppositeSeason(declared domain.Season, requested []domain.Season) bool {
	for _, s := range requested {
		if s.Opposite() != "" && strings.EqualFold(string(s.Opposite()), string(declared)) {
			return true
		}
	}
	return false
}
