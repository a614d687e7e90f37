package app

import (
	"fmt"
	"net/http"

	"gorm.io/gorm"

	"github.com/yungbote/concierge-backend/internal/cache"
	"github.com/yungbote/concierge-backend/internal/embedding"
	"github.com/yungbote/concierge-backend/internal/ingestion"
	"github.com/yungbote/concierge-backend/internal/ingestion/extractor"
	"github.com/yungbote/concierge-backend/internal/ingestion/pipeline"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/search"
	"github.com/yungbote/concierge-backend/internal/services"
	"github.com/yungbote/concierge-backend/internal/temporalx/docingest"
	"github.com/yungbote/concierge-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Cache       cache.Cache
	MemoryCache *cache.Memory
	Embedder    *embedding.Generator
	Search      *search.Engine
	Auth        services.AuthService

	// Nil when no document bucket is configured.
	Extractor  *extractor.Extractor
	Pipeline   *pipeline.Pipeline
	Documents  *ingestion.Service
	Dispatcher ingestion.Dispatcher
	Inline     *ingestion.InlineDispatcher
	Worker     *temporalworker.Runner
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")
	var out Services
	if err := cfg.Validate(); err != nil {
		return out, err
	}

	// Cache
	switch cfg.CacheBackend {
	case CacheBackendRedis:
		if clients.Redis == nil {
			return out, fmt.Errorf("CACHE_BACKEND=redis requires REDIS_ADDR")
		}
		out.Cache = cache.NewRedis(clients.Redis, cfg.Redis.KeyPrefix+"embedding")
	case CacheBackendMemory:
		out.MemoryCache = cache.NewMemory(cache.WithMaxEntries(cfg.CacheMaxEntries))
		out.Cache = out.MemoryCache
	case CacheBackendNone:
		out.Cache = cache.Noop{}
	default:
		return out, fmt.Errorf("unknown CACHE_BACKEND %q (allowed: none, memory, redis)", cfg.CacheBackend)
	}

	// Embeddings
	loader, model, err := embedding.NewLoader(cfg.Embedding, &http.Client{Timeout: cfg.Embedding.Timeout})
	if err != nil {
		return out, fmt.Errorf("init embedding loader: %w", err)
	}
	genOpts := []embedding.Option{
		embedding.WithDimensions(cfg.Embedding.Dims),
		embedding.WithCache(out.Cache, cfg.EmbeddingCacheTTL),
		embedding.WithLoadTimeout(cfg.EmbeddingLoadTimeout),
		embedding.WithLogger(log),
	}
	if metrics != nil {
		genOpts = append(genOpts, embedding.WithMetrics(metrics))
	}
	out.Embedder = embedding.NewGenerator(model, loader, genOpts...)
	log.Info("Embedding generator configured", "provider", cfg.Embedding.Provider, "model", model, "dimensions", out.Embedder.Dimensions())
	if cfg.hashingOutsideDev() {
		log.Warn("Hashing embeddings only match on shared tokens; set EMBEDDING_PROVIDER=tei for semantic search",
			"environment", cfg.Environment,
			"provider", cfg.Embedding.Provider,
		)
	}

	// Search
	engineOpts := []search.EngineOption{
		search.WithTimeout(cfg.SearchTimeout),
		search.WithMaxLimit(cfg.SearchMaxLimit),
	}
	if clients.Vectors != nil {
		engineOpts = append(engineOpts, search.WithChunkIndex(search.NewVectorIndex(log, clients.Vectors, repos.Search)))
	}
	if metrics != nil {
		engineOpts = append(engineOpts, search.WithMetrics(metrics))
	}
	out.Search = search.NewEngine(log, out.Embedder, search.NewPGStore(repos.Search), engineOpts...)

	// Auth
	out.Auth = services.NewAuthService(log, cfg.JWTSecretKey)
	if !out.Auth.Enabled() {
		log.Warn("JWT_SECRET_KEY not set; document routes will reject every request")
	}

	if clients.Blobs == nil {
		return out, nil
	}

	// Ingestion
	var extractorOpts []extractor.Option
	if clients.OCR != nil {
		extractorOpts = append(extractorOpts, extractor.WithOCR(clients.OCR))
	}
	out.Extractor = extractor.New(log, extractorOpts...)
	if !out.Extractor.OCREnabled() {
		log.Warn("Document AI OCR not configured; scanned PDFs and images will fail ingestion")
	}
	tx := pipeline.GormTx(db)
	out.Pipeline, err = pipeline.New(pipeline.Deps{
		Log:        log,
		Tx:         tx,
		Documents:  repos.Document,
		Chunks:     repos.DocumentChunk,
		Blobs:      clients.Blobs,
		Extractor:  out.Extractor,
		Embedder:   out.Embedder,
		Vectors:    clients.Vectors,
		Namespaces: search.ChunkNamespace,
		Metrics:    metrics,
	}, cfg.Ingest)
	if err != nil {
		return out, fmt.Errorf("init ingest pipeline: %w", err)
	}

	if clients.Temporal != nil {
		dispatcher, err := docingest.NewDispatcher(log, clients.Temporal, cfg.Temporal.TaskQueue)
		if err != nil {
			return out, fmt.Errorf("init temporal dispatcher: %w", err)
		}
		out.Dispatcher = dispatcher
		out.Worker, err = temporalworker.NewRunner(log, cfg.Temporal, clients.Temporal, out.Pipeline)
		if err != nil {
			return out, fmt.Errorf("init temporal worker: %w", err)
		}
	} else {
		out.Inline = ingestion.NewInlineDispatcher(log, out.Pipeline, cfg.InlineAsync)
		out.Dispatcher = out.Inline
	}

	out.Documents, err = ingestion.NewService(ingestion.Deps{
		Log:        log,
		Tx:         tx,
		Documents:  repos.Document,
		Chunks:     repos.DocumentChunk,
		Blobs:      clients.Blobs,
		Processor:  out.Pipeline,
		Dispatcher: out.Dispatcher,
		Vectors:    clients.Vectors,
		Namespaces: search.ChunkNamespace,
	}, ingestion.Config{
		SignedURLTTL:   cfg.SignedURLTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		return out, fmt.Errorf("init document service: %w", err)
	}
	return out, nil
}
