package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/wanderlust/internal/api/middleware"
	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/service"
)

// RecommendHandler serves the recommendation views and the post feed.
type RecommendHandler struct {
	recommender *service.RecommendationService
	posts       *service.PostRecommender
}

// NewRecommendHandler creates a new recommendation handler.
// Parameters:
//   - recommender: destination recommendation service.
//   - posts: inspiration post recommender.
// Returns:
//   - *RecommendHandler: initialized handler.
func NewRecommendHandler(recommender *service.RecommendationService, posts *service.PostRecommender) *RecommendHandler {
	return &RecommendHandler{recommender: recommender, posts: posts}
}

type recommendQuery struct {
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Exclude string `form:"exclude"`
}

type viewFunc func(ctx context.Context, req service.RecommendRequest) ([]service.Recommendation, error)

// serve binds the shared query parameters and runs one view.
func (h *RecommendHandler) serve(c *gin.Context, action string, view viewFunc) {
	var q recommendQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	exclude, err := parseIDList(q.Exclude)
	if err != nil {
		respondError(c, err, action)
		return
	}

	recs, err := view(c.Request.Context(), service.RecommendRequest{
		UserID:     middleware.UserID(c),
		ExcludeIDs: exclude,
		Limit:      q.Limit,
	})
	if err != nil {
		respondError(c, err, action)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": recs,
		"total": len(recs),
	})
}

// Recommend handles GET /api/v1/recommendations.
func (h *RecommendHandler) Recommend(c *gin.Context) {
	h.serve(c, "Recommendation", h.recommender.Recommend)
}

// Seasonal handles GET /api/v1/recommendations/seasonal.
func (h *RecommendHandler) Seasonal(c *gin.Context) {
	h.serve(c, "Seasonal recommendation", h.recommender.Seasonal)
}

// Trending handles GET /api/v1/recommendations/trending.
func (h *RecommendHandler) Trending(c *gin.Context) {
	h.serve(c, "Trending recommendation", h.recommender.Trending)
}

// Inspiration handles GET /api/v1/recommendations/inspiration.
func (h *RecommendHandler) Inspiration(c *gin.Context) {
	h.serve(c, "Inspiration recommendation", h.recommender.Inspiration)
}

// Personalized handles GET /api/v1/recommendations/personalized.
func (h *RecommendHandler) Personalized(c *gin.Context) {
	h.serve(c, "Personalized recommendation", h.recommender.Personalized)
}

// RecommendedPosts handles GET /api/v1/posts/recommended.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *RecommendHandler) RecommendedPosts(c *gin.Context) {
	var q recommendQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	posts, err := h.posts.RecommendPosts(c.Request.Context(), middleware.UserID(c), q.Limit)
	if err != nil {
		respondError(c, err, "Post recommendation")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": posts,
		"total": len(posts),
	})
}

// parseIDList parses a comma-separated list of positive ids.
func parseIDList(raw string) ([]uint, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseUint(p, 10, 32)
		if err != nil || id == 0 {
			return nil, domain.NewValidationError(fmt.Sprintf("invalid id %q", p))
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// pathID parses the :id route parameter.
func pathID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, domain.NewValidationError(fmt.Sprintf("invalid id %q", c.Param("id")))
	}
	return uint(id), nil
}
