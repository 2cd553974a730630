package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/repository"
	"golang.org/x/time/rate"
)

// WarmCatalog is the catalog view the cache warmer needs.
type WarmCatalog interface {
	TopCountries(ctx context.Context, limit int) ([]repository.CountryCount, error)
	All(ctx context.Context) ([]domain.Destination, error)
}

// WarmConfig holds configuration for cache warming.
type WarmConfig struct {
	TopCountries int
	RatePerSec   float64
	MaxCombos    int
	KeyTags      []string
}

// WarmStats summarizes one warming run.
type WarmStats struct {
	Combinations int64
	Lookups      int64
	Failed       int64
	CachedScores int64
	StartTime    time.Time
	EndTime      time.Time
}

// CacheWarmer precomputes relevance scores for popular filter combinations.
type CacheWarmer struct {
	catalog   WarmCatalog
	cache     *RelevanceCache
	limiter   *rate.Limiter
	countries int
	maxCombos int
	keyTags   []string
	logger    *logger.Logger
	running   atomic.Bool
}

// NewCacheWarmer creates a new CacheWarmer. A non-positive rate disables
// rate limiting.
func NewCacheWarmer(catalog WarmCatalog, cache *RelevanceCache, log *logger.Logger, cfg *WarmConfig) *CacheWarmer {
	w := &CacheWarmer{
		catalog:   catalog,
		cache:     cache,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		countries: 10,
		keyTags:   DefaultKeyTags,
		logger:    log,
	}
	if cfg == nil {
		return w
	}
	if cfg.RatePerSec > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	if cfg.TopCountries > 0 {
		w.countries = cfg.TopCountries
	}
	if len(cfg.KeyTags) > 0 {
		w.keyTags = cfg.KeyTags
	}
	w.maxCombos = cfg.MaxCombos
	return w
}

// Combinations enumerates (country|any) × (season|any) × (activity|any) ×
// (key tag|any), skipping the all-any combination. Countries are the most
// common catalog countries and activities those present in the catalog.
func (w *CacheWarmer) Combinations(ctx context.Context, catalog []domain.Destination) ([]domain.FilterSet, error) {
	rows, err := w.catalog.TopCountries(ctx, w.countries)
	if err != nil {
		return nil, fmt.Errorf("failed to load top countries: %w", err)
	}
	countries := []string{""}
	for _, r := range rows {
		countries = append(countries, r.Country)
	}
	seasons := append([]domain.Season{""}, domain.Seasons...)
	activities := append([]string{""}, presentActivities(catalog)...)
	tags := append([]string{""}, w.keyTags...)

	var out []domain.FilterSet
	for _, country := range countries {
		for _, season := range seasons {
			for _, activity := range activities {
				for _, tag := range tags {
					if country == "" && season == "" && activity == "" && tag == "" {
						continue
					}
					fs := domain.FilterSet{Country: country}
					if season != "" {
						fs.Seasons = []domain.Season{season}
					}
					if activity != "" {
						fs.ActivityTypes = []string{activity}
					}
					if tag != "" {
						fs.Tags = []string{tag}
					}
					out = append(out, fs)
					if w.maxCombos > 0 && len(out) >= w.maxCombos {
						return out, nil
					}
				}
			}
		}
	}
	return out, nil
}

func presentActivities(catalog []domain.Destination) []string {
	var out []string
	for _, a := range domain.ActivityTypes {
		for i := range catalog {
			if catalog[i].ActivityTypes.Contains(a) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// ErrWarmInProgress is returned when a warming run is already active.
var ErrWarmInProgress = errors.New("cache warming already in progress")

// Warm scores every destination against every combination through the
// relevance cache. Provider failures are counted and skipped.
// Parameters:
//   - ctx: context for cancellation; a cancelled run returns partial stats.
// Returns:
//   - *WarmStats: counts for the run.
//   - error: ErrWarmInProgress, a store failure or the context error.
func (w *CacheWarmer) Warm(ctx context.Context) (*WarmStats, error) {
	if !w.running.CompareAndSwap(false, true) {
		return nil, ErrWarmInProgress
	}
	defer w.running.Store(false)

	stats := &WarmStats{StartTime: time.Now()}
	catalog, err := w.catalog.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	combos, err := w.Combinations(ctx, catalog)
	if err != nil {
		return nil, err
	}
	stats.Combinations = int64(len(combos))

	logger.With(logger.Fields{
		"combinations": len(combos),
		"destinations": len(catalog),
	}).Info(ctx, "Starting relevance cache warming")

	var runErr error
warm:
	for _, fs := range combos {
		for i := range catalog {
			if err := w.limiter.Wait(ctx); err != nil {
				runErr = err
				break warm
			}
			stats.Lookups++
			if _, err := w.cache.GetOrCompute(ctx, &catalog[i], fs); err != nil {
				if !errors.Is(err, domain.ErrProviderUnavailable) {
					runErr = err
					break warm
				}
				stats.Failed++
			}
		}
	}
	stats.EndTime = time.Now()

	if size, err := w.cache.Size(context.WithoutCancel(ctx)); err != nil {
		logger.CtxWarn(ctx, "Failed to count cached relevance scores: %v", err)
	} else {
		stats.CachedScores = size
	}

	logger.With(logger.Fields{
		"combinations":         stats.Combinations,
		"lookups":              stats.Lookups,
		"failed":               stats.Failed,
		"cached_scores":        stats.CachedScores,
		logger.FieldDurationMs: stats.EndTime.Sub(stats.StartTime).Milliseconds(),
	}).Info(ctx, "Relevance cache warming finished")
	return stats, runErr
}
