package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/wanderlust/internal/api/middleware"
	"github.com/timmy/wanderlust/internal/domain"
	"github.com/timmy/wanderlust/internal/logger"
	"github.com/timmy/wanderlust/internal/service"
)

// PendingStore holds user-proposed destinations awaiting approval.
type PendingStore interface {
	Create(ctx context.Context, p *domain.PendingDestination) error
	Approve(ctx context.Context, id uint) (*domain.Destination, error)
}

// AdminHandler handles cache warming and pending destination moderation.
type AdminHandler struct {
	warmer  *service.CacheWarmer
	pending PendingStore
	logger  *logger.Logger

	// Warm job state
	mu            sync.RWMutex
	isRunning     bool
	lastStats     *service.WarmStats
	lastRunTime   time.Time
	lastRunStatus string
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - warmer: relevance cache warmer (optional).
//   - pending: pending destination store.
//   - log: logger instance.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(warmer *service.CacheWarmer, pending PendingStore, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		warmer:  warmer,
		pending: pending,
		logger:  log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (h *AdminHandler) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return h.logger
}

// WarmResponse represents the warm API response.
type WarmResponse struct {
	Message string             `json:"message"`
	Stats   *service.WarmStats `json:"stats,omitempty"`
}

// WarmStatusResponse represents the warm job status.
type WarmStatusResponse struct {
	IsRunning     bool               `json:"is_running"`
	LastRunTime   string             `json:"last_run_time,omitempty"`
	LastRunStatus string             `json:"last_run_status,omitempty"`
	LastStats     *service.WarmStats `json:"last_stats,omitempty"`
}

// RunWarm runs one warming pass and records its outcome. The scheduled job
// and the HTTP trigger share it so the status covers both.
// Parameters:
//   - ctx: context for cancellation.
// Returns:
//   - *service.WarmStats: counts for the run.
//   - error: service.ErrWarmInProgress or the warmer's error.
func (h *AdminHandler) RunWarm(ctx context.Context) (*service.WarmStats, error) {
	if h.warmer == nil {
		return nil, domain.NewProviderUnavailableError("relevance", errors.New("relevance scoring is disabled"))
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		return nil, service.ErrWarmInProgress
	}
	h.isRunning = true
	h.mu.Unlock()

	stats, err := h.warmer.Warm(ctx)

	h.mu.Lock()
	h.isRunning = false
	h.lastRunTime = time.Now()
	if stats != nil {
		h.lastStats = stats
	}
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	return stats, err
}

// TriggerWarm handles POST /api/v1/admin/relevance/warm.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) TriggerWarm(c *gin.Context) {
	ctx := c.Request.Context()
	logger.CtxInfo(ctx, "Received warm request: client_ip=%s", c.ClientIP())

	// the run outlives a client disconnect
	stats, err := h.RunWarm(context.WithoutCancel(ctx))
	switch {
	case errors.Is(err, service.ErrWarmInProgress):
		logger.CtxWarn(ctx, "Warm request rejected: already running, client_ip=%s", c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": "Cache warming is already running"})
		return
	case err != nil:
		respondError(c, err, "Cache warming")
		return
	}

	h.log(ctx).WithFields(logger.Fields{
		"lookups": stats.Lookups,
		"failed":  stats.Failed,
	}).Info("Cache warming completed")
	c.JSON(http.StatusOK, WarmResponse{
		Message: "Cache warming completed",
		Stats:   stats,
	})
}

// WarmStatus handles GET /api/v1/admin/relevance/warm.
func (h *AdminHandler) WarmStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := WarmStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		LastStats:     h.lastStats,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// PendingRequest is the body of POST /api/v1/destinations/pending.
type PendingRequest struct {
	Name        string         `json:"name" binding:"required,max=200"`
	Country     string         `json:"country" binding:"required,max=100"`
	City        string         `json:"city" binding:"max=100"`
	Description string         `json:"description" binding:"max=5000"`
	Climate     domain.Climate `json:"climate" binding:"climate"`
	Season      domain.Season  `json:"season" binding:"season"`
	Tags        []string       `json:"tags"`
	Vibes       []string       `json:"vibes"`
}

// SubmitPending handles POST /api/v1/destinations/pending.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) SubmitPending(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": middleware.HeaderUserID + " header is required"})
		return
	}

	var req PendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p := &domain.PendingDestination{
		UserID:      *userID,
		Name:        req.Name,
		Country:     req.Country,
		City:        req.City,
		Description: req.Description,
		Climate:     req.Climate,
		Season:      req.Season,
		Tags:        domain.StringArray(req.Tags),
		Vibes:       domain.StringArray(req.Vibes),
	}
	if err := h.pending.Create(c.Request.Context(), p); err != nil {
		respondError(c, err, "Pending destination")
		return
	}
	c.JSON(http.StatusCreated, p)
}

// ApprovePending handles POST /api/v1/admin/pending/:id/approve.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) ApprovePending(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := pathID(c)
	if err != nil {
		respondError(c, err, "Approval")
		return
	}

	dest, err := h.pending.Approve(ctx, id)
	if err != nil {
		respondError(c, err, "Approval")
		return
	}

	h.log(ctx).WithFields(logger.Fields{
		"pending_id":              id,
		logger.FieldDestinationID: dest.ID,
	}).Info("Pending destination approved")
	c.JSON(http.StatusOK, dest)
}
