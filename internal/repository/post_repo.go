package repository

import (
	"context"
	"fmt"

	"github.com/timmy/wanderlust/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostQuery narrows the inspiration post feed.
type PostQuery struct {
	ExcludeUserID *uint
	ExcludeIDs    []uint
	Limit         int
}

// PostRepository handles inspiration posts and their reactions.
type PostRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new PostRepository.
func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create validates and inserts a post.
func (r *PostRepository) Create(ctx context.Context, p *domain.InspirationPost) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

// Get retrieves a post with its destination.
func (r *PostRepository) Get(ctx context.Context, id uint) (*domain.InspirationPost, error) {
	var p domain.InspirationPost
	if err := r.db.WithContext(ctx).
		Preload("Destination").
		Preload("PendingDestination").
		First(&p, id).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("post %d", id))
	}
	return &p, nil
}

// List returns posts newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - q: exclusions and limit.
// Returns:
//   - []domain.InspirationPost: posts with destinations preloaded.
//   - error: non-nil if the query fails.
func (r *PostRepository) List(ctx context.Context, q PostQuery) ([]domain.InspirationPost, error) {
	query := r.db.WithContext(ctx).
		Preload("Destination").
		Preload("PendingDestination")
	if q.ExcludeUserID != nil {
		query = query.Where("user_id <> ?", *q.ExcludeUserID)
	}
	if len(q.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", q.ExcludeIDs)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []domain.InspirationPost
	if err := query.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return rows, nil
}

// React records a like or save. Repeated reactions are ignored.
func (r *PostRepository) React(ctx context.Context, postID, userID uint, kind domain.ReactionKind) error {
	reaction := &domain.PostReaction{PostID: postID, UserID: userID, Kind: kind}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(reaction).Error
}

// ReactionCounts returns like and save totals per post.
func (r *PostRepository) ReactionCounts(ctx context.Context, postIDs []uint) (map[uint]map[domain.ReactionKind]int64, error) {
	out := make(map[uint]map[domain.ReactionKind]int64, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		PostID uint
		Kind   domain.ReactionKind
		Total  int64
	}
	if err := r.db.WithContext(ctx).Model(&domain.PostReaction{}).
		Select("post_id, kind, COUNT(*) AS total").
		Where("post_id IN ?", postIDs).
		Group("post_id, kind").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count reactions: %w", err)
	}
	for _, row := range rows {
		if out[row.PostID] == nil {
			out[row.PostID] = make(map[domain.ReactionKind]int64, 2)
		}
		out[row.PostID][row.Kind] = row.Total
	}
	return out, nil
}
