package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wanderlust_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wanderlust_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Recommendation Metrics
	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wanderlust_recommendations_total",
			Help: "Recommendations returned, by the candidate source that produced them",
		},
		[]string{"source"},
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wanderlust_recommendation_duration_seconds",
			Help:    "Duration of recommendation views in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"view"},
	)

	// Relevance Cache Metrics
	RelevanceCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wanderlust_relevance_cache_hits_total",
			Help: "Total number of relevance cache hits",
		},
	)

	RelevanceCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wanderlust_relevance_cache_misses_total",
			Help: "Total number of relevance cache misses",
		},
	)

	RelevanceWarmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wanderlust_relevance_warmed_total",
			Help: "Relevance rows written by the cache warmer",
		},
	)

	// Provider Metrics
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wanderlust_provider_calls_total",
			Help: "External provider calls by outcome",
		},
		[]string{"provider", "outcome"}, // outcome: "ok", "error", "open"
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wanderlust_provider_duration_seconds",
			Help:    "Duration of external provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// Search Metrics
	SearchResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wanderlust_search_results",
			Help:    "Number of destinations returned per search, by match tier",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"tier"}, // "exact", "partial"
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRecommendations counts served recommendations per source.
func RecordRecommendations(bySource map[string]int) {
	for source, n := range bySource {
		RecommendationsServed.WithLabelValues(source).Add(float64(n))
	}
}

// RecordRecommendationView records the latency of one recommendation view.
func RecordRecommendationView(view string, duration time.Duration) {
	RecommendationDuration.WithLabelValues(view).Observe(duration.Seconds())
}

// RecordRelevanceLookup records a relevance cache hit or miss.
func RecordRelevanceLookup(hit bool) {
	if hit {
		RelevanceCacheHits.Inc()
		return
	}
	RelevanceCacheMisses.Inc()
}

// RecordProviderCall records the outcome of an external provider call.
func RecordProviderCall(provider, outcome string, duration time.Duration) {
	ProviderCalls.WithLabelValues(provider, outcome).Inc()
	ProviderDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordSearch records the size of each result tier of a search.
func RecordSearch(exact, partial int) {
	SearchResults.WithLabelValues("exact").Observe(float64(exact))
	SearchResults.WithLabelValues("partial").Observe(float64(partial))
}
