package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/wanderlust/internal/domain"
)

func (s *testStores) addPost(t *testing.T, p domain.InspirationPost, age time.Duration) domain.InspirationPost {
	t.Helper()
	p.CreatedAt = time.Now().UTC().Add(-age)
	require.NoError(t, s.posts.Create(context.Background(), &p))
	return p
}

func postIDs(recs []PostRecommendation) []uint {
	out := make([]uint, len(recs))
	for i, r := range recs {
		out[i] = r.Post.ID
	}
	return out
}

func TestRecommendPosts(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	malta := stores.addDestination(t, domain.Destination{Name: "Valletta", Country: "Malta", Tags: domain.StringArray{"Sea", "Islands"}})
	alps := stores.addDestination(t, domain.Destination{Name: "Zermatt", Country: "Switzerland"})

	own := stores.addPost(t, domain.InspirationPost{UserID: 1, DestinationID: &malta.ID, Tags: domain.StringArray{"Sea"}}, 4*time.Hour)
	match := stores.addPost(t, domain.InspirationPost{UserID: 2, DestinationID: &malta.ID, Tags: domain.StringArray{"Sea", "Islands"}}, 3*time.Hour)
	other := stores.addPost(t, domain.InspirationPost{UserID: 2, DestinationID: &alps.ID, Tags: domain.StringArray{"Mountains"}}, 2*time.Hour)
	viewed := stores.addPost(t, domain.InspirationPost{UserID: 3, DestinationID: &malta.ID, Tags: domain.StringArray{"Sea"}}, time.Hour)

	user := uint(1)
	stores.addInteraction(t, user, domain.InteractionFavorite, malta.ID, time.Hour)
	require.NoError(t, stores.interactions.Log(ctx, &domain.UserInteraction{UserID: user, Kind: domain.InteractionViewPost, PostID: &viewed.ID}))

	rec := NewPostRecommender(stores.posts, stores.interactions, nil, testLogger())

	recs, err := rec.RecommendPosts(ctx, &user, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{match.ID, other.ID}, postIDs(recs))
	assert.Greater(t, recs[0].Score, 0.0)
	assert.LessOrEqual(t, recs[0].ScorePercentage, 100.0)
	assert.Zero(t, recs[1].Score, "top-up posts carry no score")
	assert.NotContains(t, postIDs(recs), own.ID)
	assert.NotContains(t, postIDs(recs), viewed.ID)

	anon, err := rec.RecommendPosts(ctx, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint{viewed.ID, other.ID, match.ID}, postIDs(anon), "newest first")

	cold := uint(99)
	recs, err = rec.RecommendPosts(ctx, &cold, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 4)
}

func TestRecommendPostsExcludesOldInteractions(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	malta := stores.addDestination(t, domain.Destination{Name: "Valletta", Country: "Malta", Tags: domain.StringArray{"Sea"}})
	saved := stores.addPost(t, domain.InspirationPost{UserID: 2, DestinationID: &malta.ID, Tags: domain.StringArray{"Sea"}}, 48*time.Hour)
	fresh := stores.addPost(t, domain.InspirationPost{UserID: 2, DestinationID: &malta.ID, Tags: domain.StringArray{"Sea"}}, time.Hour)

	user := uint(1)
	require.NoError(t, stores.interactions.Log(ctx, &domain.UserInteraction{
		UserID: user, Kind: domain.InteractionSavePost, PostID: &saved.ID, CreatedAt: time.Now().UTC().Add(-30 * 24 * time.Hour),
	}))
	// a long, more recent history pushes the save far back
	for i := 0; i < 600; i++ {
		stores.addInteraction(t, user, domain.InteractionView, malta.ID, time.Duration(i)*time.Minute)
	}

	recs, err := NewPostRecommender(stores.posts, stores.interactions, nil, testLogger()).RecommendPosts(ctx, &user, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{fresh.ID}, postIDs(recs))
}
