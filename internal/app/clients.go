package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	redisclient "github.com/yungbote/concierge-backend/internal/clients/redis"
	"github.com/yungbote/concierge-backend/internal/data/db"
	"github.com/yungbote/concierge-backend/internal/platform/gcp"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/platform/qdrant"
	"github.com/yungbote/concierge-backend/internal/temporalx"
)

type Clients struct {
	Postgres *db.PostgresService
	Redis    *goredis.Client
	Blobs    gcp.BlobStore
	OCR      gcp.OCR
	Vectors  qdrant.VectorStore
	Temporal temporalsdkclient.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Postgres
	pg, err := db.NewPostgresService(log)
	if err != nil {
		return out, fmt.Errorf("init postgres: %w", err)
	}
	out.Postgres = pg
	if cfg.MigrateOnStart {
		if err := pg.AutoMigrateAll(); err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("postgres automigrate: %w", err)
		}
	}

	// Redis
	if cfg.CacheBackend == CacheBackendRedis {
		rdb, err := redisclient.NewClient(ctx, log, cfg.Redis)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
	}

	// Gcs
	blobs, err := resolveBlobStore(ctx, log, cfg)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init blob store: %w", err)
	}
	out.Blobs = blobs

	// Document AI
	if cfg.OCR.Enabled() {
		ocr, err := gcp.NewOCR(ctx, log, cfg.OCR)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init document ai: %w", err)
		}
		out.OCR = ocr
	} else {
		log.Info("DOCUMENTAI_PROCESSOR_ID not set; scanned documents will not be OCR'd")
	}

	// Qdrant
	vectors, err := resolveVectorStore(ctx, log, cfg)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init vector store: %w", err)
	}
	out.Vectors = vectors

	// Temporal
	tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init temporal: %w", err)
	}
	out.Temporal = tc

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.OCR != nil {
		_ = c.OCR.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Postgres != nil {
		_ = c.Postgres.Close()
	}
}
