package service

import (
	"context"
	"fmt"

	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/logger"
)

// ReviewWriter stores destination reviews.
type ReviewWriter interface {
	Create(ctx context.Context, review *domain.Review) error
}

// RecordRequest describes one user action to log.
type RecordRequest struct {
	UserID        uint
	Kind          domain.InteractionKind
	DestinationID *uint
	PostID        *uint
	Filters       *domain.FilterSet
	Rating        int
	Text          string
}

// InteractionService validates and records user actions.
type InteractionService struct {
	log     InteractionLog
	catalog Catalog
	posts   PostStore
	reviews ReviewWriter
	logger  *logger.Logger
}

// NewInteractionService creates a new InteractionService.
func NewInteractionService(log InteractionLog, catalog Catalog, posts PostStore, reviews ReviewWriter, l *logger.Logger) *InteractionService {
	return &InteractionService{log: log, catalog: catalog, posts: posts, reviews: reviews, logger: l}
}

// Record logs an interaction after checking that its target exists.
// Post reactions also store the like or save, reviews also store the review.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: the action.
// Returns:
//   - *domain.UserInteraction: the stored event.
//   - error: validation or not-found errors, or a store failure.
func (s *InteractionService) Record(ctx context.Context, req RecordRequest) (*domain.UserInteraction, error) {
	if !req.Kind.Valid() {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown interaction kind %q", req.Kind))
	}
	in := &domain.UserInteraction{UserID: req.UserID, Kind: req.Kind}

	switch {
	case req.Kind == domain.InteractionSearch:
		if req.Filters == nil {
			return nil, domain.NewValidationError("search interaction requires filters")
		}
		fs := *req.Filters
		fs.Normalize()
		if err := fs.Validate(); err != nil {
			return nil, err
		}
		if err := in.SetFilters(&fs); err != nil {
			return nil, fmt.Errorf("failed to encode filters: %w", err)
		}

	case req.Kind.IsPostKind():
		if req.PostID == nil {
			return nil, domain.NewValidationError(fmt.Sprintf("%s interaction requires post_id", req.Kind))
		}
		post, err := s.posts.Get(ctx, *req.PostID)
		if err != nil {
			return nil, err
		}
		in.PostID = &post.ID
		in.DestinationID = post.DestinationID
		if err := in.SetPostTags(&domain.PostSnapshot{Tags: post.Tags, Vibes: post.Vibes}); err != nil {
			return nil, fmt.Errorf("failed to encode post snapshot: %w", err)
		}
		if kind, ok := reactionFor(req.Kind); ok {
			if err := s.posts.React(ctx, post.ID, req.UserID, kind); err != nil {
				return nil, fmt.Errorf("failed to store reaction: %w", err)
			}
		}

	default:
		if req.DestinationID == nil {
			return nil, domain.NewValidationError(fmt.Sprintf("%s interaction requires destination_id", req.Kind))
		}
		dest, err := s.catalog.Get(ctx, *req.DestinationID)
		if err != nil {
			return nil, err
		}
		in.DestinationID = &dest.ID
		if req.Kind == domain.InteractionReview && s.reviews != nil {
			if err := s.reviews.Create(ctx, &domain.Review{
				UserID:        req.UserID,
				DestinationID: dest.ID,
				Rating:        req.Rating,
				Text:          req.Text,
			}); err != nil {
				return nil, err
			}
		}
	}

	if err := s.log.Log(ctx, in); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).WithFields(logger.Fields{
		"kind":                    in.Kind,
		logger.FieldDestinationID: in.DestinationID,
	}).Debug("Interaction recorded")
	return in, nil
}

func reactionFor(kind domain.InteractionKind) (domain.ReactionKind, bool) {
	switch kind {
	case domain.InteractionLikePost:
		return domain.ReactionLike, true
	case domain.InteractionSavePost:
		return domain.ReactionSave, true
	}
	return "", false
}
