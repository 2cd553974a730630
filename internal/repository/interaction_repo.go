package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/wanderlust/internal/domain"
	"gorm.io/gorm"
)

// InteractionQuery narrows the interaction log. Zero values mean "any".
type InteractionQuery struct {
	UserID *uint
	Kinds  []domain.InteractionKind
	Since  time.Time
	Limit  int
}

// InteractionRepository is the append-only store of user actions.
type InteractionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository creates a new InteractionRepository.
func NewInteractionRepository(db *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// Log appends an interaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - in: interaction to persist; Kind must be valid.
// Returns:
//   - error: validation error for an unknown kind, or the insert error.
func (r *InteractionRepository) Log(ctx context.Context, in *domain.UserInteraction) error {
	if !in.Kind.Valid() {
		return domain.NewValidationError(fmt.Sprintf("unknown interaction kind %q", in.Kind))
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Omit("Destination", "Post").Create(in).Error; err != nil {
		return fmt.Errorf("failed to log interaction: %w", err)
	}
	return nil
}

// Query returns interactions newest first with destination and post preloaded.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - q: filter on user, kinds and time window.
// Returns:
//   - []domain.UserInteraction: ordered by created_at DESC, id DESC.
//   - error: non-nil if the query fails.
func (r *InteractionRepository) Query(ctx context.Context, q InteractionQuery) ([]domain.UserInteraction, error) {
	query := r.db.WithContext(ctx).
		Preload("Destination").
		Preload("Post").
		Preload("Post.Destination")

	if q.UserID != nil {
		query = query.Where("user_id = ?", *q.UserID)
	}
	if len(q.Kinds) > 0 {
		query = query.Where("kind IN ?", q.Kinds)
	}
	if !q.Since.IsZero() {
		query = query.Where("created_at >= ?", q.Since)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []domain.UserInteraction
	if err := query.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	return rows, nil
}

// All returns the full log (destination and post links only) for matrix construction.
func (r *InteractionRepository) All(ctx context.Context) ([]domain.UserInteraction, error) {
	var rows []domain.UserInteraction
	if err := r.db.WithContext(ctx).
		Preload("Post").
		Where("destination_id IS NOT NULL OR post_id IS NOT NULL").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}
	return rows, nil
}

// DestinationKindCount is an aggregated interaction count.
type DestinationKindCount struct {
	DestinationID uint
	Kind          domain.InteractionKind
	Total         int64
}

// CountByDestinationSince aggregates destination interactions of the given kinds
// created at or after since.
func (r *InteractionRepository) CountByDestinationSince(ctx context.Context, kinds []domain.InteractionKind, since time.Time) ([]DestinationKindCount, error) {
	var rows []DestinationKindCount
	if err := r.db.WithContext(ctx).Model(&domain.UserInteraction{}).
		Select("destination_id, kind, COUNT(*) AS total").
		Where("destination_id IS NOT NULL AND kind IN ? AND created_at >= ?", kinds, since).
		Group("destination_id, kind").
		Order("destination_id ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count interactions: %w", err)
	}
	return rows, nil
}

// InteractedPostIDs returns the distinct posts a user touched.
func (r *InteractionRepository) InteractedPostIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&domain.UserInteraction{}).
		Where("user_id = ? AND post_id IS NOT NULL", userID).
		Distinct().
		Order("post_id ASC").
		Pluck("post_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list interacted posts: %w", err)
	}
	return ids, nil
}
