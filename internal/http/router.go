package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/concierge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/concierge-backend/internal/http/middleware"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	// TraceService enables otelgin spans when set.
	TraceService string

	AuthMiddleware *httpMW.AuthMiddleware
	// AuthRequired also puts search and embeddings behind a token.
	AuthRequired bool

	HealthHandler    *httpH.HealthHandler
	SearchHandler    *httpH.SearchHandler
	EmbeddingHandler *httpH.EmbeddingHandler
	DocumentHandler  *httpH.DocumentHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TraceService != "" {
		r.Use(otelgin.Middleware(cfg.TraceService))
	}
	r.Use(httpMW.RequestIDs())
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.AccessLog(cfg.Log, cfg.Metrics))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")

	public := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			if cfg.AuthRequired {
				public.Use(cfg.AuthMiddleware.RequireAuth())
			} else {
				public.Use(cfg.AuthMiddleware.OptionalAuth())
			}
		}

		// Search
		if cfg.SearchHandler != nil {
			public.POST("/search", cfg.SearchHandler.Search)
		}

		// Embeddings
		if cfg.EmbeddingHandler != nil {
			public.POST("/embeddings", cfg.EmbeddingHandler.Embed)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Documents
		if cfg.DocumentHandler != nil {
			protected.POST("/documents", cfg.DocumentHandler.Upload)
			protected.GET("/documents", cfg.DocumentHandler.List)
			protected.GET("/documents/:id", cfg.DocumentHandler.Get)
			protected.GET("/documents/:id/view", cfg.DocumentHandler.View)
			protected.POST("/documents/:id/reprocess", cfg.DocumentHandler.Reprocess)
			protected.DELETE("/documents/:id", cfg.DocumentHandler.Archive)
		}
	}

	return r
}
