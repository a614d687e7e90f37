package app

import (
	"context"

	httpH "github.com/yungbote/concierge-backend/internal/http/handlers"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Search    *httpH.SearchHandler
	Embedding *httpH.EmbeddingHandler
	Document  *httpH.DocumentHandler
}

func wireHandlers(log *logger.Logger, clients Clients, services Services) Handlers {
	log.Info("Wiring handlers...")
	out := Handlers{
		Health:    httpH.NewHealthHandler(readinessChecks(clients)...),
		Search:    httpH.NewSearchHandler(log, services.Search),
		Embedding: httpH.NewEmbeddingHandler(log, services.Embedder),
	}
	if services.Documents != nil {
		out.Document = httpH.NewDocumentHandler(log, services.Documents)
	}
	return out
}

func readinessChecks(clients Clients) []httpH.ReadinessCheck {
	var checks []httpH.ReadinessCheck
	if clients.Postgres != nil {
		checks = append(checks, httpH.ReadinessCheck{Name: "postgres", Check: clients.Postgres.Ping})
	}
	if rdb := clients.Redis; rdb != nil {
		checks = append(checks, httpH.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return checks
}
