package service

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/metrics"
)

// GuardConfig configures a provider circuit breaker.
type GuardConfig struct {
	Timeout       time.Duration
	MaxFailures   uint32
	OpenTimeout   time.Duration
	HalfOpenProbe uint32
}

// ProviderGuard bounds external provider calls with a single timeout and a
// circuit breaker. Calls are never retried.
type ProviderGuard struct {
	name    string
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[any]
}

// NewProviderGuard creates a guard for the named provider.
func NewProviderGuard(name string, cfg GuardConfig) *ProviderGuard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenProbe == 0 {
		cfg.HalfOpenProbe = 1
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenProbe,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.With(logger.Fields{
				logger.FieldProvider: name,
				"from":               from.String(),
				"to":                 to.String(),
			}).Warn(context.Background(), "Provider circuit breaker changed state")
		},
	})
	return &ProviderGuard{name: name, timeout: cfg.Timeout, cb: cb}
}

// Name returns the provider name.
func (g *ProviderGuard) Name() string {
	return g.name
}

// State returns the breaker state for health reporting.
func (g *ProviderGuard) State() string {
	return g.cb.State().String()
}

// guardCall runs fn under the guard's timeout and breaker. Any failure,
// including an open breaker, is reported as ErrProviderUnavailable.
func guardCall[T any](ctx context.Context, g *ProviderGuard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if g == nil {
		return fn(ctx)
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.cb.Execute(func() (any, error) {
		return fn(callCtx)
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "open"
		}
		metrics.RecordProviderCall(g.name, outcome, time.Since(start))
		return zero, domain.NewProviderUnavailableError(g.name, err)
	}
	metrics.RecordProviderCall(g.name, "ok", time.Since(start))

	typed, ok := out.(T)
	if !ok {
		return zero, nil
	}
	return typed, nil
}

// GuardedEmbeddingProvider wraps an EmbeddingProvider with a ProviderGuard.
type GuardedEmbeddingProvider struct {
	inner EmbeddingProvider
	guard *ProviderGuard
}

// NewGuardedEmbeddingProvider wraps inner.
func NewGuardedEmbeddingProvider(inner EmbeddingProvider, guard *ProviderGuard) *GuardedEmbeddingProvider {
	return &GuardedEmbeddingProvider{inner: inner, guard: guard}
}

// Embed implements EmbeddingProvider.
func (p *GuardedEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return guardCall(ctx, p.guard, func(ctx context.Context) ([]float32, error) {
		return p.inner.Embed(ctx, text)
	})
}

// EmbedBatch implements EmbeddingProvider.
func (p *GuardedEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return guardCall(ctx, p.guard, func(ctx context.Context) ([][]float32, error) {
		return p.inner.EmbedBatch(ctx, texts)
	})
}

// EmbedQuery implements EmbeddingProvider.
func (p *GuardedEmbeddingProvider) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return guardCall(ctx, p.guard, func(ctx context.Context) ([]float32, error) {
		return p.inner.EmbedQuery(ctx, query)
	})
}

// Dimensions implements EmbeddingProvider.
func (p *GuardedEmbeddingProvider) Dimensions() int {
	return p.inner.Dimensions()
}
