package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/repository"
)

func newTestInteractions(s *testStores) *InteractionService {
	return NewInteractionService(s.interactions, s.destinations, s.posts, s.reviews, testLogger())
}

func TestRecordValidation(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	svc := newTestInteractions(stores)
	missing := uint(404)

	tests := []struct {
		name     string
		req      RecordRequest
		notFound bool
	}{
		{name: "unknown kind", req: RecordRequest{UserID: 1, Kind: "poke"}},
		{name: "view without destination", req: RecordRequest{UserID: 1, Kind: domain.InteractionView}},
		{name: "search without filters", req: RecordRequest{UserID: 1, Kind: domain.InteractionSearch}},
		{name: "search with inverted budget", req: RecordRequest{UserID: 1, Kind: domain.InteractionSearch,
			Filters: &domain.FilterSet{BudgetMin: domain.Float(9), BudgetMax: domain.Float(1)}}},
		{name: "like without post", req: RecordRequest{UserID: 1, Kind: domain.InteractionLikePost}},
		{name: "unknown destination", req: RecordRequest{UserID: 1, Kind: domain.InteractionFavorite, DestinationID: &missing}, notFound: true},
		{name: "unknown post", req: RecordRequest{UserID: 1, Kind: domain.InteractionSavePost, PostID: &missing}, notFound: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Record(ctx, tt.req)
			require.Error(t, err)
			if tt.notFound {
				assert.True(t, domain.IsNotFound(err))
			} else {
				assert.True(t, domain.IsValidation(err))
			}
		})
	}

	all, err := stores.interactions.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "rejected actions are not logged")
}

func TestRecordPostReaction(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	d := stores.addDestination(t, domain.Destination{Name: "Nice", Country: "France"})
	post := stores.addPost(t, domain.InspirationPost{UserID: 2, DestinationID: &d.ID, Tags: domain.StringArray{"Sea"}, Vibes: domain.StringArray{"Calm"}}, 0)
	svc := newTestInteractions(stores)

	for i := 0; i < 2; i++ {
		in, err := svc.Record(ctx, RecordRequest{UserID: 1, Kind: domain.InteractionLikePost, PostID: &post.ID})
		require.NoError(t, err)
		require.NotNil(t, in.DestinationID)
		assert.Equal(t, d.ID, *in.DestinationID)
		snap, err := in.PostTags()
		require.NoError(t, err)
		assert.Equal(t, []string{"Sea"}, snap.Tags)
	}

	counts, err := stores.posts.ReactionCounts(ctx, []uint{post.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[post.ID][domain.ReactionLike], "repeated likes count once")

	user := uint(1)
	logged, err := stores.interactions.Query(ctx, repository.InteractionQuery{UserID: &user})
	require.NoError(t, err)
	assert.Len(t, logged, 2, "every action is logged")
}

func TestRecordReview(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	d := stores.addDestination(t, domain.Destination{Name: "Nice", Country: "France"})
	svc := newTestInteractions(stores)

	_, err := svc.Record(ctx, RecordRequest{UserID: 1, Kind: domain.InteractionReview, DestinationID: &d.ID, Rating: 4, Text: "lovely"})
	require.NoError(t, err)

	_, err = svc.Record(ctx, RecordRequest{UserID: 1, Kind: domain.InteractionReview, DestinationID: &d.ID, Rating: 5})
	assert.True(t, domain.IsValidation(err), "one review per user and destination")

	_, err = svc.Record(ctx, RecordRequest{UserID: 2, Kind: domain.InteractionReview, DestinationID: &d.ID, Rating: 0})
	assert.True(t, domain.IsValidation(err))

	ratings, err := stores.reviews.AverageRatings(ctx, []uint{d.ID})
	require.NoError(t, err)
	assert.Equal(t, 4.0, ratings[d.ID])
}

func TestRecordSearch(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	svc := newTestInteractions(stores)

	in, err := svc.Record(ctx, RecordRequest{UserID: 3, Kind: domain.InteractionSearch,
		Filters: &domain.FilterSet{Country: " Italy ", Tags: []string{"Sea", "sea", ""}}})
	require.NoError(t, err)
	fs, err := in.Filters()
	require.NoError(t, err)
	assert.Equal(t, "Italy", fs.Country)
	assert.Equal(t, []string{"Sea"}, fs.Tags)
}
