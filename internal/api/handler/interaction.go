package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/wanderlust/internal/api/middleware"
	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/service"
)

// InteractionHandler records user actions.
type InteractionHandler struct {
	interactions *service.InteractionService
}

// NewInteractionHandler creates a new interaction handler.
func NewInteractionHandler(interactions *service.InteractionService) *InteractionHandler {
	return &InteractionHandler{interactions: interactions}
}

// InteractionRequest is the body of POST /api/v1/interactions.
type InteractionRequest struct {
	Kind          domain.InteractionKind `json:"kind" binding:"required,interaction_kind"`
	DestinationID *uint                  `json:"destination_id" binding:"omitempty,min=1"`
	PostID        *uint                  `json:"post_id" binding:"omitempty,min=1"`
	Filters       *domain.FilterSet      `json:"filters"`
	Rating        int                    `json:"rating" binding:"omitempty,min=1,max=5"`
	Text          string                 `json:"text" binding:"max=5000"`
}

// Record handles POST /api/v1/interactions. The acting user comes from the
// X-User-ID header and is required.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *InteractionHandler) Record(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": middleware.HeaderUserID + " header is required"})
		return
	}

	var req InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	in, err := h.interactions.Record(c.Request.Context(), service.RecordRequest{
		UserID:        *userID,
		Kind:          req.Kind,
		DestinationID: req.DestinationID,
		PostID:        req.PostID,
		Filters:       req.Filters,
		Rating:        req.Rating,
		Text:          req.Text,
	})
	if err != nil {
		respondError(c, err, "Interaction")
		return
	}

	c.JSON(http.StatusCreated, in)
}
