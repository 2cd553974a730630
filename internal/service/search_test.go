package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/repository"
)

// italy seeds two exact matches for {Italy, Summer} and three other rows.
type italy struct {
	rome, milan, venice, nice, oslo domain.Destination
}

func seedItaly(t *testing.T, s *testStores) italy {
	t.Helper()
	return italy{
		rome:   s.addDestination(t, domain.Destination{Name: "Rome", Country: "Italy", Season: domain.SeasonSummer, Tags: domain.StringArray{"History"}}),
		milan:  s.addDestination(t, domain.Destination{Name: "Milan", Country: "Italy"}),
		venice: s.addDestination(t, domain.Destination{Name: "Venice", Country: "Italy", Season: domain.SeasonSummer, BudgetMin: domain.Float(200), IsPopular: true}),
		nice:   s.addDestination(t, domain.Destination{Name: "Nice", Country: "France", Season: domain.SeasonSummer}),
		oslo:   s.addDestination(t, domain.Destination{Name: "Oslo", Country: "Norway", Season: domain.SeasonWinter}),
	}
}

var italySummer = domain.FilterSet{Country: "Italy", Seasons: []domain.Season{domain.SeasonSummer}}

func newTestSearch(s *testStores, cfg *SearchConfig) *SearchService {
	return NewSearchService(s.destinations, s.reviews, s.interactions, nil, nil, nil, nil, testLogger(), cfg)
}

func resultIDs(items []domain.ScoredDestination) []uint {
	out := make([]uint, len(items))
	for i, it := range items {
		out[i] = it.Destination.ID
	}
	return out
}

func TestSearchExactThenPartial(t *testing.T) {
	stores := newTestStores(t)
	it := seedItaly(t, stores)

	res, err := newTestSearch(stores, nil).Search(context.Background(), SearchRequest{Filters: italySummer})
	require.NoError(t, err)

	assert.Equal(t, 2, res.ExactCount)
	assert.Equal(t, 2, res.PartialCount)
	assert.Equal(t, []uint{it.rome.ID, it.venice.ID, it.milan.ID, it.nice.ID}, resultIDs(res.Items))
	assert.True(t, res.Items[0].IsExactMatch)
	assert.Equal(t, ExactMatchScore, res.Items[0].Score)
	assert.False(t, res.Items[2].IsExactMatch)
	assert.Equal(t, 50.0, res.Items[2].Score)
	assert.Less(t, res.Items[3].Score, res.Items[2].Score)
	assert.NotContains(t, resultIDs(res.Items), it.oslo.ID, "opposite season and wrong country score zero")
	assert.Empty(t, res.Message)
}

func TestSearchNoFilters(t *testing.T) {
	stores := newTestStores(t)
	seedItaly(t, stores)

	res, err := newTestSearch(stores, nil).Search(context.Background(), SearchRequest{})
	require.NoError(t, err)
	assert.Equal(t, MessageNoFilters, res.Message)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}

func TestSearchValidation(t *testing.T) {
	stores := newTestStores(t)
	svc := newTestSearch(stores, nil)

	_, err := svc.Search(context.Background(), SearchRequest{Filters: italySummer, SortBy: "cheapest"})
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Search(context.Background(), SearchRequest{Filters: domain.FilterSet{BudgetMin: domain.Float(10), BudgetMax: domain.Float(5)}})
	assert.True(t, domain.IsValidation(err))
}

func TestSearchNoMatches(t *testing.T) {
	stores := newTestStores(t)
	seedItaly(t, stores)

	res, err := newTestSearch(stores, nil).Search(context.Background(), SearchRequest{
		Filters: domain.FilterSet{Country: "Peru", Seasons: []domain.Season{domain.SeasonSummer}, Tags: []string{"Islands"}},
	})
	require.NoError(t, err)
	assert.Zero(t, res.ExactCount)
	assert.Equal(t, MessageNoMatches, res.Message)
}

func TestSearchSorts(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	it := seedItaly(t, stores)
	require.NoError(t, stores.reviews.Create(ctx, &domain.Review{UserID: 1, DestinationID: it.venice.ID, Rating: 5}))
	require.NoError(t, stores.reviews.Create(ctx, &domain.Review{UserID: 2, DestinationID: it.venice.ID, Rating: 4}))
	require.NoError(t, stores.reviews.Create(ctx, &domain.Review{UserID: 1, DestinationID: it.rome.ID, Rating: 3}))
	svc := newTestSearch(stores, nil)

	tests := []struct {
		sort  string
		first uint
	}{
		{SortRelevance, it.venice.ID}, // equal scores, then rating
		{SortRating, it.venice.ID},
		{SortBudgetAsc, it.venice.ID}, // Rome has no declared minimum
		{SortBudgetDesc, it.rome.ID},  // neither declares a maximum, id decides
		{SortPopularity, it.venice.ID},
	}
	for _, tt := range tests {
		t.Run(tt.sort, func(t *testing.T) {
			res, err := svc.Search(ctx, SearchRequest{Filters: italySummer, SortBy: tt.sort})
			require.NoError(t, err)
			require.NotEmpty(t, res.Items)
			assert.Equal(t, tt.first, res.Items[0].Destination.ID)
			assert.True(t, res.Items[0].IsExactMatch, "exact matches stay ahead")
		})
	}

	res, err := svc.Search(ctx, SearchRequest{Filters: italySummer, SortBy: SortRating})
	require.NoError(t, err)
	assert.Equal(t, 4.5, res.Items[0].Rating)
}

func TestSearchPagingAndLogging(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	it := seedItaly(t, stores)
	svc := newTestSearch(stores, &SearchConfig{PageSize: 3})
	user := uint(5)

	first, err := svc.Search(ctx, SearchRequest{UserID: &user, Filters: italySummer, Page: 1})
	require.NoError(t, err)
	assert.Len(t, first.Items, 3)
	assert.Equal(t, 4, first.Total)
	assert.Equal(t, 2, first.TotalPages)

	second, err := svc.Search(ctx, SearchRequest{UserID: &user, Filters: italySummer, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, []uint{it.nice.ID}, resultIDs(second.Items))

	beyond, err := svc.Search(ctx, SearchRequest{Filters: italySummer, Page: 9})
	require.NoError(t, err)
	assert.NotNil(t, beyond.Items)
	assert.Empty(t, beyond.Items)

	logged, err := stores.interactions.Query(ctx, repository.InteractionQuery{UserID: &user, Kinds: []domain.InteractionKind{domain.InteractionSearch}})
	require.NoError(t, err)
	require.Len(t, logged, 1, "only the first page is logged")
	fs, err := logged[0].Filters()
	require.NoError(t, err)
	assert.Equal(t, "Italy", fs.Country)
}

func TestSearchWithRelevance(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	seedItaly(t, stores)

	judge := &countingJudge{score: 80}
	svc := NewSearchService(stores.destinations, stores.reviews, nil, nil, nil,
		NewRelevanceCache(stores.relevance, judge, 0, testLogger()), nil, testLogger(), nil)
	res, err := svc.Search(ctx, SearchRequest{Filters: italySummer, WithRelevance: true})
	require.NoError(t, err)
	for _, item := range res.Items {
		require.NotNil(t, item.AIRelevance)
		assert.Equal(t, 80.0, *item.AIRelevance)
	}

	// provider failures degrade to no relevance
	down := NewSearchService(stores.destinations, stores.reviews, nil, nil, nil,
		NewRelevanceCache(stores.relevance, &countingJudge{err: errProviderDown}, 0, testLogger()), nil, testLogger(), nil)
	res, err = down.Search(ctx, SearchRequest{Filters: domain.FilterSet{Country: "France"}, WithRelevance: true})
	require.NoError(t, err)
	require.NotEmpty(t, res.Items)
	for _, item := range res.Items {
		assert.Nil(t, item.AIRelevance)
	}
}

func TestSearchUsesVectorIndex(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	it := seedItaly(t, stores)
	for _, d := range []domain.Destination{it.rome, it.milan, it.venice, it.nice, it.oslo} {
		require.NoError(t, stores.destinations.UpdateEmbedding(ctx, d.ID, []float32{1, 0}))
	}
	index := NewFlatIndex(stores.destinations)
	require.NoError(t, index.Rebuild(ctx))
	require.Equal(t, 5, index.Len())

	embedding := &fakeEmbedding{dims: 2, fn: func(string) []float32 { return []float32{1, 0} }}
	svc := NewSearchService(stores.destinations, nil, nil, embedding, index, nil, nil, testLogger(), nil)
	res, err := svc.Search(ctx, SearchRequest{Filters: italySummer})
	require.NoError(t, err)
	assert.Equal(t, []uint{it.rome.ID, it.venice.ID, it.milan.ID, it.nice.ID}, resultIDs(res.Items))
	assert.Equal(t, int64(1), embedding.calls.Load())

	// a failing provider falls back to the catalog scan
	broken := NewSearchService(stores.destinations, nil, nil, &fakeEmbedding{err: errProviderDown}, index, nil, nil, testLogger(), nil)
	res, err = broken.Search(ctx, SearchRequest{Filters: italySummer})
	require.NoError(t, err)
	assert.Equal(t, 2, res.PartialCount)
}

func TestChatSearch(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	it := seedItaly(t, stores)

	_, err := newTestSearch(stores, nil).ChatSearch(ctx, nil, "summer in italy", "", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))

	extractor := NewFilterExtractor(nil, nil, nil, stores.destinations)
	svc := NewSearchService(stores.destinations, stores.reviews, stores.interactions, nil, nil, nil, extractor, testLogger(), nil)
	res, err := svc.ChatSearch(ctx, nil, "Somewhere in Italy this summer", "", 1)
	require.NoError(t, err)
	assert.Equal(t, "Italy", res.Filters.Country)
	assert.Equal(t, 2, res.ExactCount)
	assert.Equal(t, it.rome.ID, res.Items[0].Destination.ID)
}

// recordingIndex reports a fixed size and remembers the requested k.
type recordingIndex struct {
	size  int
	hits  []Scored
	gotK  int
	calls int
}

func (r *recordingIndex) Rebuild(context.Context) error { return nil }
func (r *recordingIndex) Len() int                      { return r.size }

func (r *recordingIndex) Query(_ context.Context, _ []float32, k int, _ []uint) ([]Scored, error) {
	r.calls++
	r.gotK = k
	return r.hits, nil
}

func TestSearchVectorTopK(t *testing.T) {
	stores := newTestStores(t)
	it := seedItaly(t, stores)
	embedding := &fakeEmbedding{dims: 2, fn: func(string) []float32 { return []float32{1, 0} }}

	tests := []struct {
		name  string
		size  int
		wantK int
	}{
		{"large index caps at ten", 40, 10},
		{"small index uses its size", 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := &recordingIndex{size: tt.size, hits: []Scored{{ID: it.milan.ID, Score: 0.9}}}
			svc := NewSearchService(stores.destinations, nil, nil, embedding, index, nil, nil, testLogger(), nil)

			res, err := svc.Search(context.Background(), SearchRequest{Filters: italySummer})
			require.NoError(t, err)
			require.Equal(t, 1, index.calls)
			assert.Equal(t, tt.wantK, index.gotK)
			assert.Equal(t, []uint{it.rome.ID, it.venice.ID, it.milan.ID}, resultIDs(res.Items), "partials come only from the index hits")
		})
	}
}
