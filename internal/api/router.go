package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timmy/wanderlust/internal/api/handler"
	"github.com/timmy/wanderlust/internal/api/middleware"
	"github.com/timmy/wanderlust/internal/logger"
)

// Handlers bundles the HTTP handlers served by the router.
type Handlers struct {
	Health       *handler.HealthHandler
	Recommend    *handler.RecommendHandler
	Search       *handler.SearchHandler
	Destinations *handler.DestinationHandler
	Interactions *handler.InteractionHandler
	Admin        *handler.AdminHandler
}

// RouterConfig holds router settings.
type RouterConfig struct {
	Mode        string
	CORS        middleware.CORSConfig
	MetricsPath string // empty disables the metrics endpoint
	Logger      *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(h *Handlers, cfg RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
	handler.RegisterValidators()

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Metrics())
	r.Use(middleware.Identity())

	r.GET("/health", h.Health.Health)
	if cfg.MetricsPath != "" {
		r.GET(cfg.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/api/v1")
	{
		// Recommendations
		recs := v1.Group("/recommendations")
		recs.GET("", h.Recommend.Recommend)
		recs.GET("/seasonal", h.Recommend.Seasonal)
		recs.GET("/trending", h.Recommend.Trending)
		recs.GET("/inspiration", h.Recommend.Inspiration)
		recs.GET("/personalized", h.Recommend.Personalized)

		v1.GET("/posts/recommended", h.Recommend.RecommendedPosts)

		// Search
		v1.POST("/search", h.Search.Search)
		v1.POST("/search/chat", h.Search.ChatSearch)

		// Destinations
		v1.GET("/destinations/:id", h.Destinations.Get)
		v1.POST("/destinations/:id/relevance", h.Destinations.Relevance)

		v1.POST("/interactions", h.Interactions.Record)

		if h.Admin != nil {
			v1.POST("/destinations/pending", h.Admin.SubmitPending)

			admin := v1.Group("/admin")
			admin.POST("/relevance/warm", h.Admin.TriggerWarm)
			admin.GET("/relevance/warm", h.Admin.WarmStatus)
			admin.POST("/pending/:id/approve", h.Admin.ApprovePending)
		}
	}

	return r
}
