package service

import (
	"context"
	"time"

	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/repository"
)

// Catalog is the destination query interface consumed by the engines.
type Catalog interface {
	Find(ctx context.Context, q repository.CatalogQuery) ([]domain.Destination, error)
	Get(ctx context.Context, id uint) (*domain.Destination, error)
}

// InteractionLog is the append-only store of user actions.
type InteractionLog interface {
	Log(ctx context.Context, in *domain.UserInteraction) error
	Query(ctx context.Context, q repository.InteractionQuery) ([]domain.UserInteraction, error)
	All(ctx context.Context) ([]domain.UserInteraction, error)
	CountByDestinationSince(ctx context.Context, kinds []domain.InteractionKind, since time.Time) ([]repository.DestinationKindCount, error)
	InteractedPostIDs(ctx context.Context, userID uint) ([]uint, error)
}

// RatingSource provides average review ratings per destination.
type RatingSource interface {
	AverageRatings(ctx context.Context, ids []uint) (map[uint]float64, error)
}

// PostStore is the inspiration post feed.
type PostStore interface {
	List(ctx context.Context, q repository.PostQuery) ([]domain.InspirationPost, error)
	Get(ctx context.Context, id uint) (*domain.InspirationPost, error)
	React(ctx context.Context, postID, userID uint, kind domain.ReactionKind) error
}

// RelevanceStore persists relevance judgements keyed by (destination, filters hash).
type RelevanceStore interface {
	Get(ctx context.Context, destinationID uint, filtersHash string) (*domain.RelevanceScore, error)
	Insert(ctx context.Context, row *domain.RelevanceScore) (*domain.RelevanceScore, error)
	Count(ctx context.Context) (int64, error)
}

// EmbeddingLookup returns precomputed destination embeddings by id.
type EmbeddingLookup interface {
	Embeddings(ctx context.Context, ids []uint) (map[uint][]float32, error)
}

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time
