package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/wanderlust/internal/api/middleware"
	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/service"
)

// DestinationHandler serves destination details and relevance scores.
type DestinationHandler struct {
	catalog      service.Catalog
	ratings      service.RatingSource
	interactions *service.InteractionService
	relevance    *service.RelevanceCache
}

// NewDestinationHandler creates a new destination handler.
// Parameters:
//   - catalog: destination catalog.
//   - ratings: average review ratings (optional).
//   - interactions: records detail views of identified users (optional).
//   - relevance: relevance cache (optional; nil disables the relevance endpoint).
// Returns:
//   - *DestinationHandler: initialized handler.
func NewDestinationHandler(
	catalog service.Catalog,
	ratings service.RatingSource,
	interactions *service.InteractionService,
	relevance *service.RelevanceCache,
) *DestinationHandler {
	return &DestinationHandler{
		catalog:      catalog,
		ratings:      ratings,
		interactions: interactions,
		relevance:    relevance,
	}
}

// DestinationResponse is a destination with its average rating.
type DestinationResponse struct {
	Destination *domain.Destination `json:"destination"`
	Rating      float64             `json:"rating"`
}

// Get handles GET /api/v1/destinations/:id. Identified users get a view
// interaction logged.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *DestinationHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := pathID(c)
	if err != nil {
		respondError(c, err, "Destination lookup")
		return
	}

	d, err := h.catalog.Get(ctx, id)
	if err != nil {
		respondError(c, err, "Destination lookup")
		return
	}

	resp := DestinationResponse{Destination: d}
	if h.ratings != nil {
		ratings, err := h.ratings.AverageRatings(ctx, []uint{id})
		if err != nil {
			middleware.GetLogger(c).WithError(err).Warn("Failed to load destination rating")
		}
		resp.Rating = ratings[id]
	}

	if userID := middleware.UserID(c); userID != nil && h.interactions != nil {
		if _, err := h.interactions.Record(ctx, service.RecordRequest{
			UserID:        *userID,
			Kind:          domain.InteractionView,
			DestinationID: &id,
		}); err != nil {
			middleware.GetLogger(c).WithError(err).Warn("Failed to log destination view")
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Relevance handles POST /api/v1/destinations/:id/relevance. The body is the
// filter set to judge against.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *DestinationHandler) Relevance(c *gin.Context) {
	if h.relevance == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "relevance scoring is disabled"})
		return
	}

	id, err := pathID(c)
	if err != nil {
		respondError(c, err, "Relevance")
		return
	}
	var filters domain.FilterSet
	if err := c.ShouldBindJSON(&filters); err != nil {
		badRequest(c, err)
		return
	}
	filters.Normalize()

	ctx := c.Request.Context()
	d, err := h.catalog.Get(ctx, id)
	if err != nil {
		respondError(c, err, "Relevance")
		return
	}
	score, err := h.relevance.GetOrCompute(ctx, d, filters)
	if err != nil {
		respondError(c, err, "Relevance")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"destination_id": id,
		"filters_hash":   filters.Hash(),
		"score":          score,
	})
}
