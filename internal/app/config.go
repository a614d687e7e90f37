package app

import (
	"fmt"
	"strings"
	"time"

	redisclient "github.com/yungbote/concierge-backend/internal/clients/redis"
	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/embedding"
	"github.com/yungbote/concierge-backend/internal/ingestion/pipeline"
	"github.com/yungbote/concierge-backend/internal/platform/envutil"
	"github.com/yungbote/concierge-backend/internal/platform/gcp"
	"github.com/yungbote/concierge-backend/internal/search"
	"github.com/yungbote/concierge-backend/internal/temporalx"
)

const (
	CacheBackendNone   = "none"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	Port        string
	LogMode     string
	Environment string
	Version     string
	MetricsAddr string

	MigrateOnStart bool

	JWTSecretKey string
	AuthRequired bool
	CORSOrigins  []string

	Embedding            embedding.Config
	EmbeddingCacheTTL    time.Duration
	EmbeddingLoadTimeout time.Duration
	EmbeddingWarmOnStart bool

	CacheBackend    string
	CacheMaxEntries int
	Redis           redisclient.Config

	SearchTimeout  time.Duration
	SearchMaxLimit int

	// VectorProvider is "none" or "qdrant". Left empty it is inferred from
	// QDRANT_URL; see resolveVectorProviderMode.
	VectorProvider string

	// DocumentsEnabled gates the upload routes; search works without a bucket.
	DocumentsEnabled bool
	MaxUploadBytes   int64
	SignedURLTTL     time.Duration
	InlineAsync      bool

	OCR      gcp.OCRConfig
	Temporal temporalx.Config
	Ingest   pipeline.Config
}

func LoadConfig() Config {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		Environment: envutil.String("ENVIRONMENT", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),
		MetricsAddr: envutil.String("METRICS_ADDR", ""),

		MigrateOnStart: envutil.Bool("POSTGRES_AUTO_MIGRATE", true),

		JWTSecretKey: envutil.String("JWT_SECRET_KEY", ""),
		AuthRequired: envutil.Bool("AUTH_REQUIRED", false),
		CORSOrigins:  splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),

		Embedding: embedding.Config{
			Provider: envutil.String("EMBEDDING_PROVIDER", embedding.ProviderHashing),
			Model:    envutil.String("EMBEDDING_MODEL", ""),
			BaseURL:  envutil.String("EMBEDDING_BASE_URL", ""),
			Path:     envutil.String("EMBEDDING_PATH", ""),
			APIKey:   envutil.String("EMBEDDING_API_KEY", ""),
			Dims:     envutil.Int("EMBEDDING_DIM", embedding.DefaultDimensions),
			Timeout:  envutil.Seconds("EMBEDDING_TIMEOUT_SECONDS", 30*time.Second),
		},
		EmbeddingCacheTTL:    envutil.Seconds("EMBEDDING_CACHE_TTL_SECONDS", 10*time.Minute),
		EmbeddingLoadTimeout: envutil.Seconds("EMBEDDING_LOAD_TIMEOUT_SECONDS", 2*time.Minute),
		EmbeddingWarmOnStart: envutil.Bool("EMBEDDING_WARM_ON_START", false),

		CacheBackend:    strings.ToLower(envutil.String("CACHE_BACKEND", "")),
		CacheMaxEntries: envutil.Int("CACHE_MAX_ENTRIES", 10000),
		Redis:           redisclient.ConfigFromEnv(),

		SearchTimeout:  envutil.Seconds("SEARCH_TIMEOUT_SECONDS", search.DefaultTimeout),
		SearchMaxLimit: envutil.Int("SEARCH_MAX_LIMIT", search.DefaultMaxLimit),

		VectorProvider: strings.ToLower(envutil.String("VECTOR_PROVIDER", "")),

		DocumentsEnabled: envutil.String("DOCUMENTS_GCS_BUCKET_NAME", "") != "",
		MaxUploadBytes:   int64(envutil.Int("MAX_UPLOAD_MB", 50)) << 20,
		SignedURLTTL:     envutil.Seconds("SIGNED_URL_TTL_SECONDS", 15*time.Minute),
		InlineAsync:      envutil.Bool("INGEST_INLINE_ASYNC", true),

		OCR:      gcp.OCRConfigFromEnv(),
		Temporal: temporalx.LoadConfig(),
		Ingest:   pipeline.ConfigFromEnv(),
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = CacheBackendMemory
		if cfg.Redis.Enabled() {
			cfg.CacheBackend = CacheBackendRedis
		}
	}
	if cfg.SearchMaxLimit <= 0 {
		cfg.SearchMaxLimit = search.DefaultMaxLimit
	}
	return cfg
}

// Validate rejects settings the schema cannot hold. Stored vectors are
// vector(EmbeddingDim), so the generator must produce exactly that width.
// hashingOutsideDev reports whether the token-hashing embedder is active in
// an environment that serves real guests.
func (c Config) hashingOutsideDev() bool {
	switch strings.ToLower(strings.TrimSpace(c.Embedding.Provider)) {
	case "", embedding.ProviderHashing, "local":
	default:
		return false
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "", "development", "dev", "local", "test":
		return false
	}
	return true
}

func (c Config) Validate() error {
	if c.Embedding.Dims != types.EmbeddingDim {
		return &BootstrapError{
			Component: componentEmbedding,
			Code:      BootstrapDimensionMismatch,
			Mode:      c.Embedding.Provider,
			Source:    "EMBEDDING_DIM",
			Cause:     fmt.Errorf("EMBEDDING_DIM=%d but document vectors are stored as vector(%d)", c.Embedding.Dims, types.EmbeddingDim),
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
