package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/wanderlust/internal/api/handler"
	"github.com/timmy/wanderlust/internal/api/middleware"
	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/repository"
	"github.com/timmy/wanderlust/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testServer struct {
	router       *gin.Engine
	destinations *repository.DestinationRepository
	interactions *repository.InteractionRepository
	rome, milan  domain.Destination
	paris        domain.Destination
}

// newTestServer wires the full stack on an in-memory database with the
// heuristic judge and the rule-based filter extractor.
func newTestServer(t *testing.T, withRelevance bool) *testServer {
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
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	log := logger.NewDefault()
	destinations := repository.NewDestinationRepository(db)
	interactions := repository.NewInteractionRepository(db)
	posts := repository.NewPostRepository(db)
	reviews := repository.NewReviewRepository(db)

	ts := &testServer{destinations: destinations, interactions: interactions}
	ctx := context.Background()
	ts.rome = domain.Destination{Name: "Rome", Country: "Italy", Season: domain.SeasonSummer, Description: "Ancient city"}
	ts.milan = domain.Destination{Name: "Milan", Country: "Italy", Season: domain.SeasonAutumn}
	ts.paris = domain.Destination{Name: "Paris", Country: "France", Season: domain.SeasonSpring, IsPopular: true}
	require.NoError(t, destinations.Create(ctx, &ts.rome))
	require.NoError(t, destinations.Create(ctx, &ts.milan))
	require.NoError(t, destinations.Create(ctx, &ts.paris))

	var relevance *service.RelevanceCache
	var warmer *service.CacheWarmer
	if withRelevance {
		relevance = service.NewRelevanceCache(repository.NewRelevanceRepository(db), service.HeuristicJudge{}, 0, log)
		warmer = service.NewCacheWarmer(destinations, relevance, log, &service.WarmConfig{TopCountries: 1, MaxCombos: 2})
	}
	interactionService := service.NewInteractionService(interactions, destinations, posts, reviews, log)
	search := service.NewSearchService(destinations, reviews, interactions, nil, nil, relevance,
		service.NewFilterExtractor(nil, nil, nil, destinations), log, nil)

	ts.router = SetupRouter(&Handlers{
		Health: handler.NewHealthHandler(sqlDB),
		Recommend: handler.NewRecommendHandler(
			service.NewRecommendationService(destinations, interactions, nil, nil, service.NewRandomizer(1), nil, log, service.RecommendConfig{}),
			service.NewPostRecommender(posts, interactions, nil, log),
		),
		Search:       handler.NewSearchHandler(search),
		Destinations: handler.NewDestinationHandler(destinations, reviews, interactionService, relevance),
		Interactions: handler.NewInteractionHandler(interactionService),
		Admin:        handler.NewAdminHandler(warmer, repository.NewPendingDestinationRepository(db), log),
	}, RouterConfig{Mode: "test", CORS: middleware.CORSConfig{AllowAllOrigins: true}, MetricsPath: "/metrics", Logger: log})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.HeaderUserID, userID)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type relevanceResponse struct {
	Score       float64 `json:"score"`
	FiltersHash string  `json:"filters_hash"`
}

type listResponse struct {
	Items []service.Recommendation `json:"items"`
	Total int                      `json:"total"`
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))

	w = ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wanderlust_")
}

func TestRecommendationRoutes(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodGet, "/api/v1/recommendations", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[listResponse](t, w)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, ts.paris.ID, resp.Items[0].Destination.ID)
	assert.Equal(t, service.SourcePopular, resp.Items[0].Source)

	for _, view := range []string{"seasonal", "trending", "inspiration", "personalized"} {
		t.Run(view, func(t *testing.T) {
			w := ts.do(t, http.MethodGet, "/api/v1/recommendations/"+view+"?limit=2", "5", nil)
			assert.Equal(t, http.StatusOK, w.Code)
			resp := decode[listResponse](t, w)
			assert.LessOrEqual(t, resp.Total, 2)
		})
	}

	tests := []struct {
		name   string
		path   string
		userID string
	}{
		{"limit too large", "/api/v1/recommendations?limit=500", ""},
		{"bad exclude", "/api/v1/recommendations?exclude=1,abc", ""},
		{"bad user header", "/api/v1/recommendations", "bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodGet, tt.path, tt.userID, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	w = ts.do(t, http.MethodGet, "/api/v1/posts/recommended", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSearchRoutes(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/v1/search", "3", handler.SearchRequest{
		Filters: domain.FilterSet{Country: "Italy", Seasons: []domain.Season{domain.SeasonSummer}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[service.SearchResult](t, w)
	assert.Equal(t, 1, res.ExactCount)
	assert.Equal(t, ts.rome.ID, res.Items[0].Destination.ID)

	logged, err := ts.interactions.Query(context.Background(), repository.InteractionQuery{
		Kinds: []domain.InteractionKind{domain.InteractionSearch},
	})
	require.NoError(t, err)
	assert.Len(t, logged, 1)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown season", "/api/v1/search", `{"filters": {"season": ["Monsoon"]}}`},
		{"unknown sort", "/api/v1/search", `{"filters": {"country": "Italy"}, "sort_by": "cheapest"}`},
		{"negative budget", "/api/v1/search", `{"filters": {"budget_min": -1}}`},
		{"inverted budget", "/api/v1/search", `{"filters": {"budget_min": 10, "budget_max": 5}}`},
		{"malformed", "/api/v1/search", `{"filters": `},
		{"blank chat", "/api/v1/search/chat", `{"text": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	w = ts.do(t, http.MethodPost, "/api/v1/search/chat", "", handler.ChatSearchRequest{Text: "Somewhere in Italy this summer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res = decode[service.SearchResult](t, w)
	assert.Equal(t, "Italy", res.Filters.Country)
	assert.Equal(t, 1, res.ExactCount)
}

func TestDestinationRoutes(t *testing.T) {
	ts := newTestServer(t, true)
	ctx := context.Background()
	path := "/api/v1/destinations/" + uintString(ts.rome.ID)

	w := ts.do(t, http.MethodGet, path, "8", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[handler.DestinationResponse](t, w)
	assert.Equal(t, "Rome", detail.Destination.Name)

	user := uint(8)
	views, err := ts.interactions.Query(ctx, repository.InteractionQuery{UserID: &user})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.InteractionView, views[0].Kind)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/v1/destinations/999", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/destinations/abc", "", nil).Code)

	w = ts.do(t, http.MethodPost, path+"/relevance", "", domain.FilterSet{Country: " Italy "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rel := decode[relevanceResponse](t, w)
	assert.Equal(t, service.ScorePercentage(30), rel.Score)
	assert.Equal(t, (&domain.FilterSet{Country: "Italy"}).Hash(), rel.FiltersHash)

	w = ts.do(t, http.MethodPost, path+"/relevance", "", domain.FilterSet{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRelevanceDisabled(t *testing.T) {
	ts := newTestServer(t, false)
	w := ts.do(t, http.MethodPost, "/api/v1/destinations/"+uintString(ts.rome.ID)+"/relevance", "", domain.FilterSet{Country: "Italy"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/admin/relevance/warm", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInteractionRoute(t *testing.T) {
	ts := newTestServer(t, false)
	rome := ts.rome.ID

	tests := []struct {
		name   string
		userID string
		body   any
		status int
	}{
		{"anonymous", "", handler.InteractionRequest{Kind: domain.InteractionFavorite, DestinationID: &rome}, http.StatusUnauthorized},
		{"unknown kind", "4", map[string]any{"kind": "poke", "destination_id": rome}, http.StatusBadRequest},
		{"missing destination", "4", handler.InteractionRequest{Kind: domain.InteractionFavorite}, http.StatusBadRequest},
		{"rating out of range", "4", map[string]any{"kind": "review", "destination_id": rome, "rating": 9}, http.StatusBadRequest},
		{"unknown destination", "4", map[string]any{"kind": "view", "destination_id": 999}, http.StatusNotFound},
		{"favorite", "4", handler.InteractionRequest{Kind: domain.InteractionFavorite, DestinationID: &rome}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/interactions", tt.userID, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	// a favorite seeds the next recommendation
	w := ts.do(t, http.MethodGet, "/api/v1/recommendations", "4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[listResponse](t, w)
	require.NotEmpty(t, resp.Items)
	assert.Equal(t, ts.milan.ID, resp.Items[0].Destination.ID)
}

func TestPendingApproval(t *testing.T) {
	ts := newTestServer(t, false)

	body := handler.PendingRequest{
		Name:        "Matera",
		Country:     "Italy",
		Description: "Cave dwellings",
		Climate:     domain.ClimateWarm,
		Season:      domain.SeasonSpring,
	}
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, "/api/v1/destinations/pending", "", body).Code)

	bad := body
	bad.Season = "Monsoon"
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/v1/destinations/pending", "6", bad).Code)

	w := ts.do(t, http.MethodPost, "/api/v1/destinations/pending", "6", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	pending := decode[domain.PendingDestination](t, w)
	assert.Equal(t, domain.PendingStatusPending, pending.Status)

	approvePath := "/api/v1/admin/pending/" + uintString(pending.ID) + "/approve"
	w = ts.do(t, http.MethodPost, approvePath, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[domain.Destination](t, w)
	assert.Equal(t, "Matera", created.Name)

	got, err := ts.destinations.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Italy", got.Country)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, approvePath, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/v1/admin/pending/999/approve", "", nil).Code)
}

func TestWarmRoutes(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(t, http.MethodGet, "/api/v1/admin/relevance/warm", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"is_running": false}`, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/v1/admin/relevance/warm", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	warm := decode[handler.WarmResponse](t, w)
	require.NotNil(t, warm.Stats)
	assert.Equal(t, int64(2), warm.Stats.Combinations)
	assert.Equal(t, int64(6), warm.Stats.Lookups)
	assert.Equal(t, int64(6), warm.Stats.CachedScores)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/relevance/warm", "", nil)
	status := decode[handler.WarmStatusResponse](t, w)
	assert.False(t, status.IsRunning)
	assert.Equal(t, "success", status.LastRunStatus)
	assert.NotEmpty(t, status.LastRunTime)
}

func uintString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
