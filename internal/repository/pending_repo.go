package repository

import (
	"context"
	"fmt"

	"github.com/timmy/wanderlust/internal/domain"
	"gorm.io/gorm"
)

// PendingDestinationRepository handles user-proposed destinations.
type PendingDestinationRepository struct {
	db *gorm.DB
}

// NewPendingDestinationRepository creates a new PendingDestinationRepository.
func NewPendingDestinationRepository(db *gorm.DB) *PendingDestinationRepository {
	return &PendingDestinationRepository{db: db}
}

// Create stores a new proposal in pending state.
func (r *PendingDestinationRepository) Create(ctx context.Context, p *domain.PendingDestination) error {
	p.Status = domain.PendingStatusPending
	return r.db.WithContext(ctx).Create(p).Error
}

// Approve promotes a pending destination into the catalog and relinks its posts.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: pending destination ID.
// Returns:
//   - *domain.Destination: the created catalog destination.
//   - error: NotFound, a validation error for incomplete proposals, or a store error.
func (r *PendingDestinationRepository) Approve(ctx context.Context, id uint) (*domain.Destination, error) {
	var created *domain.Destination
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending domain.PendingDestination
		if err := tx.First(&pending, id).Error; err != nil {
			return notFound(err, fmt.Sprintf("pending destination %d", id))
		}
		if pending.Status != domain.PendingStatusPending {
			return domain.NewValidationError(fmt.Sprintf("pending destination %d is already %s", id, pending.Status))
		}

		dest, err := pending.ApproveToDestination()
		if err != nil {
			return err
		}
		if err := tx.Create(dest).Error; err != nil {
			return fmt.Errorf("failed to create destination: %w", err)
		}

		if err := tx.Model(&domain.InspirationPost{}).
			Where("pending_destination_id = ?", pending.ID).
			Updates(map[string]interface{}{
				"destination_id":         dest.ID,
				"pending_destination_id": nil,
			}).Error; err != nil {
			return fmt.Errorf("failed to relink posts: %w", err)
		}

		if err := tx.Model(&pending).Update("status", domain.PendingStatusApproved).Error; err != nil {
			return fmt.Errorf("failed to update pending status: %w", err)
		}
		created = dest
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
