package app

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/concierge-backend/internal/embedding"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/search"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{
		"PORT", "CACHE_BACKEND", "REDIS_ADDR", "EMBEDDING_PROVIDER", "EMBEDDING_DIM",
		"SEARCH_TIMEOUT_SECONDS", "SEARCH_MAX_LIMIT", "DOCUMENTS_GCS_BUCKET_NAME",
		"CORS_ALLOWED_ORIGINS", "AUTH_REQUIRED", "TEMPORAL_ADDRESS",
	} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, CacheBackendMemory, cfg.CacheBackend)
	assert.Equal(t, embedding.ProviderHashing, cfg.Embedding.Provider)
	assert.Equal(t, embedding.DefaultDimensions, cfg.Embedding.Dims)
	assert.Equal(t, search.DefaultTimeout, cfg.SearchTimeout)
	assert.Equal(t, search.DefaultMaxLimit, cfg.SearchMaxLimit)
	assert.False(t, cfg.DocumentsEnabled)
	assert.False(t, cfg.AuthRequired)
	assert.Empty(t, cfg.CORSOrigins)
	assert.False(t, cfg.Temporal.Enabled())
	assert.Equal(t, int64(50<<20), cfg.MaxUploadBytes)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("SEARCH_TIMEOUT_SECONDS", "5")
	t.Setenv("SEARCH_MAX_LIMIT", "0")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("DOCUMENTS_GCS_BUCKET_NAME", "hotel-docs")
	t.Setenv("AUTH_REQUIRED", "true")

	cfg := LoadConfig()
	assert.Equal(t, CacheBackendRedis, cfg.CacheBackend, "redis is inferred from REDIS_ADDR")
	assert.Equal(t, 5*time.Second, cfg.SearchTimeout)
	assert.Equal(t, search.DefaultMaxLimit, cfg.SearchMaxLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.DocumentsEnabled)
	assert.True(t, cfg.AuthRequired)
}

func TestLoadConfigExplicitCacheBackendWins(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CACHE_BACKEND", "None")

	assert.Equal(t, CacheBackendNone, LoadConfig().CacheBackend)
}

func TestConfigValidateEmbeddingDim(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "")
	require.NoError(t, LoadConfig().Validate())

	t.Setenv("EMBEDDING_DIM", "768")
	cfg := LoadConfig()
	err := cfg.Validate()
	require.Error(t, err)

	var be *BootstrapError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, BootstrapDimensionMismatch, be.Code)
	assert.Equal(t, "EMBEDDING_DIM", be.Source)
	assert.Contains(t, err.Error(), "vector(384)")

	_, err = wireServices(nil, logger.Nop(), cfg, Repos{}, Clients{}, nil)
	assert.ErrorAs(t, err, &be, "services refuse to wire a generator the schema cannot store")
}

func TestConfigHashingOutsideDev(t *testing.T) {
	cases := []struct {
		env, provider string
		want          bool
	}{
		{"development", embedding.ProviderHashing, false},
		{"test", "", false},
		{"production", embedding.ProviderHashing, true},
		{"staging", "local", true},
		{"production", "", true},
		{"production", embedding.ProviderTEI, false},
	}
	for _, tc := range cases {
		cfg := Config{Environment: tc.env, Embedding: embedding.Config{Provider: tc.provider}}
		assert.Equal(t, tc.want, cfg.hashingOutsideDev(), "env=%s provider=%q", tc.env, tc.provider)
	}
}
