package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/wanderlust/internal/domain"
	"gorm.io/gorm"
)

// ReviewRepository handles destination reviews.
type ReviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository creates a new ReviewRepository.
func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review. A user may review each destination once.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	if review.Rating < 1 || review.Rating > 5 {
		return domain.NewValidationError("rating must be between 1 and 5")
	}
	err := r.db.WithContext(ctx).Create(review).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.NewValidationError("review already added")
	}
	return err
}

// AverageRatings returns the mean rating per destination. Destinations
// without reviews are omitted; an empty ids slice means all destinations.
func (r *ReviewRepository) AverageRatings(ctx context.Context, ids []uint) (map[uint]float64, error) {
	var rows []struct {
		DestinationID uint
		Average       float64
	}
	query := r.db.WithContext(ctx).Model(&domain.Review{}).
		Select("destination_id, AVG(rating) AS average").
		Group("destination_id")
	if len(ids) > 0 {
		query = query.Where("destination_id IN ?", ids)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to average ratings: %w", err)
	}

	out := make(map[uint]float64, len(rows))
	for _, row := range rows {
		out[row.DestinationID] = row.Average
	}
	return out, nil
}
