package app

import (
	apphttp "github.com/yungbote/concierge-backend/internal/http"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const traceServiceName = "concierge-api"

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *apphttp.Server {
	routerCfg := apphttp.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		CORSOrigins:      cfg.CORSOrigins,
		AuthMiddleware:   middleware.Auth,
		AuthRequired:     cfg.AuthRequired,
		HealthHandler:    handlers.Health,
		SearchHandler:    handlers.Search,
		EmbeddingHandler: handlers.Embedding,
		DocumentHandler:  handlers.Document,
	}
	if observability.TracingEnabled() {
		routerCfg.TraceService = traceServiceName
	}
	return apphttp.NewServer(routerCfg)
}
