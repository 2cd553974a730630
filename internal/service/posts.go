package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/metrics"
	"github.com/timmy/wanderlust/internal/repository"
)

const (
	defaultPostLimit   = 10
	postCandidateLimit = 500
)

// PostRecommendation is a ranked inspiration post.
type PostRecommendation struct {
	Post            domain.InspirationPost `json:"post"`
	Score           float64                `json:"score"`
	ScorePercentage float64                `json:"score_percentage"`
}

// PostRecommender ranks inspiration posts against the user's profile.
type PostRecommender struct {
	posts        PostStore
	interactions InteractionLog
	profiles     *ProfileBuilder
	ranker       Ranker
	logger       *logger.Logger
}

// NewPostRecommender creates a new PostRecommender. A nil ranker uses TF-IDF.
func NewPostRecommender(posts PostStore, interactions InteractionLog, ranker Ranker, log *logger.Logger) *PostRecommender {
	if ranker == nil {
		ranker = NewTFIDFRanker()
	}
	return &PostRecommender{
		posts:        posts,
		interactions: interactions,
		profiles:     NewProfileBuilder(interactions, 0),
		ranker:       ranker,
		logger:       log,
	}
}

// RecommendPosts compares the user's top-10 profile tokens with each post's
// tags, vibes, description and destination country. The user's own posts and
// posts they already interacted with are excluded. Anonymous and cold-start
// users get the newest posts.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: acting user, nil for anonymous.
//   - limit: maximum number of posts (0 means 10).
// Returns:
//   - []PostRecommendation: ranked posts, best first.
//   - error: non-nil if a store query fails.
func (r *PostRecommender) RecommendPosts(ctx context.Context, userID *uint, limit int) ([]PostRecommendation, error) {
	start := time.Now()
	if limit <= 0 {
		limit = defaultPostLimit
	}

	if userID == nil {
		return r.newest(ctx, repository.PostQuery{Limit: limit})
	}

	seen, err := r.interactedPosts(ctx, *userID)
	if err != nil {
		return nil, err
	}
	query := repository.PostQuery{ExcludeUserID: userID, ExcludeIDs: seen}

	profile, err := r.profiles.Build(ctx, *userID, ProfileTopNLong)
	if err != nil {
		return nil, err
	}
	if profile.IsEmpty() {
		query.Limit = limit
		return r.newest(ctx, query)
	}

	query.Limit = postCandidateLimit
	posts, err := r.posts.List(ctx, query)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, len(posts))
	byID := make(map[uint]domain.InspirationPost, len(posts))
	for i := range posts {
		candidates[i] = Candidate{ID: posts[i].ID, Text: posts[i].SearchText()}
		byID[posts[i].ID] = posts[i]
	}

	ranked, err := r.ranker.Rank(ctx, profile.Text(), candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to rank posts: %w", err)
	}

	out := make([]PostRecommendation, 0, limit)
	picked := make(map[uint]struct{}, limit)
	for _, s := range ranked {
		if len(out) >= limit || s.Score <= 0 {
			break
		}
		picked[s.ID] = struct{}{}
		out = append(out, PostRecommendation{
			Post:            byID[s.ID],
			Score:           s.Score,
			ScorePercentage: math.Round(s.Score*1000) / 10,
		})
	}
	// top up with the newest unmatched posts
	for _, p := range posts {
		if len(out) >= limit {
			break
		}
		if _, ok := picked[p.ID]; ok {
			continue
		}
		out = append(out, PostRecommendation{Post: p})
	}

	metrics.RecordRecommendationView("posts", time.Since(start))
	return out, nil
}

func (r *PostRecommender) newest(ctx context.Context, q repository.PostQuery) ([]PostRecommendation, error) {
	posts, err := r.posts.List(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]PostRecommendation, len(posts))
	for i, p := range posts {
		out[i] = PostRecommendation{Post: p}
	}
	return out, nil
}

func (r *PostRecommender) interactedPosts(ctx context.Context, userID uint) ([]uint, error) {
	ids, err := r.interactions.InteractedPostIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post history: %w", err)
	}
	return ids, nil
}
