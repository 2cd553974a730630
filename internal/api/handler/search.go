package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/wanderlust/internal/api/middleware"
	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/service"
)

// SearchHandler handles search-related endpoints.
type SearchHandler struct {
	searchService *service.SearchService
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - searchService: search service instance.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Filters       domain.FilterSet `json:"filters"`
	SortBy        string           `json:"sort_by" binding:"omitempty,oneof=relevance rating budget_asc budget_desc popularity"`
	Page          int              `json:"page" binding:"omitempty,min=1"`
	WithRelevance bool             `json:"with_relevance"`
}

// ChatSearchRequest is the body of POST /api/v1/search/chat.
type ChatSearchRequest struct {
	Text   string `json:"text" binding:"required,max=2000"`
	SortBy string `json:"sort_by" binding:"omitempty,oneof=relevance rating budget_asc budget_desc popularity"`
	Page   int    `json:"page" binding:"omitempty,min=1"`
}

// Search handles POST /api/v1/search.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.searchService.Search(c.Request.Context(), service.SearchRequest{
		UserID:        middleware.UserID(c),
		Filters:       req.Filters,
		SortBy:        req.SortBy,
		Page:          req.Page,
		WithRelevance: req.WithRelevance,
	})
	if err != nil {
		respondError(c, err, "Search")
		return
	}

	c.JSON(http.StatusOK, result)
}

// ChatSearch handles POST /api/v1/search/chat. The text is turned into filters
// first and the structured search runs on them.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) ChatSearch(c *gin.Context) {
	var req ChatSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.searchService.ChatSearch(c.Request.Context(), middleware.UserID(c), req.Text, req.SortBy, req.Page)
	if err != nil {
		respondError(c, err, "Chat search")
		return
	}

	c.JSON(http.StatusOK, result)
}
