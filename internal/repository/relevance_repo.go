package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/wanderlust/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RelevanceRepository persists cached relevance judgements.
type RelevanceRepository struct {
	db *gorm.DB
}

// NewRelevanceRepository creates a new RelevanceRepository.
func NewRelevanceRepository(db *gorm.DB) *RelevanceRepository {
	return &RelevanceRepository{db: db}
}

// Get looks up the cached row for (destinationID, filtersHash).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - destinationID: scored destination.
//   - filtersHash: 32-hex-char filters hash.
// Returns:
//   - *domain.RelevanceScore: cached row, nil on a miss.
//   - error: non-nil only if the lookup itself fails.
func (r *RelevanceRepository) Get(ctx context.Context, destinationID uint, filtersHash string) (*domain.RelevanceScore, error) {
	var row domain.RelevanceScore
	err := r.db.WithContext(ctx).
		Where("destination_id = ? AND filters_hash = ?", destinationID, filtersHash).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read relevance cache: %w", err)
	}
	return &row, nil
}

// Insert stores a judgement. On a concurrent duplicate the first write wins
// and the stored row is returned.
func (r *RelevanceRepository) Insert(ctx context.Context, row *domain.RelevanceScore) (*domain.RelevanceScore, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "destination_id"}, {Name: "filters_hash"}},
			DoNothing: true,
		}).
		Create(row)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to write relevance cache: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return row, nil
	}

	existing, err := r.Get(ctx, row.DestinationID, row.FiltersHash)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return row, nil
	}
	return existing, nil
}

// Count returns the number of cached rows.
func (r *RelevanceRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.RelevanceScore{}).Count(&count).Error
	return count, err
}
