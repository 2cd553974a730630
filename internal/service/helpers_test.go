package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testStores bundles the sqlite-backed repositories used by service tests.
type testStores struct {
	db           *gorm.DB
	destinations *repository.DestinationRepository
	interactions *repository.InteractionRepository
	posts        *repository.PostRepository
	reviews      *repository.ReviewRepository
	relevance    *repository.RelevanceRepository
}

func newTestStores(t *testing.T) *testStores {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// shared-cache sqlite rejects concurrent writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &testStores{
		db:           db,
		destinations: repository.NewDestinationRepository(db),
		interactions: repository.NewInteractionRepository(db),
		posts:        repository.NewPostRepository(db),
		reviews:      repository.NewReviewRepository(db),
		relevance:    repository.NewRelevanceRepository(db),
	}
}

func (s *testStores) addDestination(t *testing.T, d domain.Destination) domain.Destination {
	t.Helper()
	require.NoError(t, s.destinations.Create(context.Background(), &d))
	return d
}

// addInteraction logs an event with an explicit age so ordering is stable.
func (s *testStores) addInteraction(t *testing.T, userID uint, kind domain.InteractionKind, destID uint, age time.Duration) {
	t.Helper()
	id := destID
	in := &domain.UserInteraction{
		UserID:        userID,
		Kind:          kind,
		DestinationID: &id,
		CreatedAt:     time.Now().UTC().Add(-age),
	}
	require.NoError(t, s.interactions.Log(context.Background(), in))
}

func (s *testStores) addSearch(t *testing.T, userID uint, fs domain.FilterSet, age time.Duration) {
	t.Helper()
	in := &domain.UserInteraction{UserID: userID, Kind: domain.InteractionSearch, CreatedAt: time.Now().UTC().Add(-age)}
	require.NoError(t, in.SetFilters(&fs))
	require.NoError(t, s.interactions.Log(context.Background(), in))
}

func testLogger() *logger.Logger {
	return logger.NewDefault()
}

func ids(recs []Recommendation) []uint {
	out := make([]uint, len(recs))
	for i, r := range recs {
		out[i] = r.Destination.ID
	}
	return out
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// fakeEmbedding maps texts to vectors through a lookup function.
type fakeEmbedding struct {
	dims  int
	fn    func(text string) []float32
	err   error
	calls atomic.Int64
}

func (f *fakeEmbedding) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.fn(text), nil
}

func (f *fakeEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return f.Embed(ctx, query)
}

func (f *fakeEmbedding) Dimensions() int {
	return f.dims
}

// countingJudge returns a fixed score or error and counts calls.
type countingJudge struct {
	score float64
	err   error
	calls atomic.Int64
}

func (j *countingJudge) Score(context.Context, *domain.Destination, *domain.FilterSet) (float64, error) {
	j.calls.Add(1)
	return j.score, j.err
}

var errProviderDown = errors.New("provider down")
