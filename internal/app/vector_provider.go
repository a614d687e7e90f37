package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/platform/qdrant"
)

var newQdrantVectorStore = func(ctx context.Context, log *logger.Logger, cfg qdrant.Config) (qdrant.VectorStore, error) {
	return qdrant.NewVectorStore(ctx, log, cfg, nil)
}

var qdrantConfigCodes = map[qdrant.ConfigErrorCode]BootstrapErrorCode{
	qdrant.ConfigErrorMissingURL:        BootstrapMissingQdrantURL,
	qdrant.ConfigErrorInvalidURL:        BootstrapInvalidQdrantURL,
	qdrant.ConfigErrorMissingCollection: BootstrapMissingQdrantCollection,
	qdrant.ConfigErrorInvalidVectorDim:  BootstrapInvalidQdrantVectorDim,
}

// resolveVectorStore returns the optional chunk index. A nil store with a nil
// error means search runs on Postgres alone.
func resolveVectorStore(ctx context.Context, log *logger.Logger, cfg Config) (qdrant.VectorStore, error) {
	metrics := observability.Current()
	provider, source, err := resolveVectorProviderMode(cfg.VectorProvider)
	if err != nil {
		metrics.ObserveVectorStoreProviderBootstrap(cfg.VectorProvider, "error", string(bootstrapCode(err)))
		logBootstrapFailure(log, "Vector store provider selection failed", err)
		return nil, err
	}
	if provider == VectorProviderNone {
		log.Info("Vector store disabled; chunk search uses pgvector only", "provider_mode_source", source)
		metrics.ObserveVectorStoreProviderBootstrap(string(provider), "disabled", "none")
		return nil, nil
	}

	vs, err := openQdrant(ctx, log, cfg)
	if err != nil {
		err = classifyVectorError(string(provider), source, err)
		metrics.ObserveVectorStoreProviderBootstrap(string(provider), "error", string(bootstrapCode(err)))
		logBootstrapFailure(log, "Vector store provider bootstrap failed", err)
		return nil, err
	}
	metrics.ObserveVectorStoreProviderBootstrap(string(provider), "success", "none")
	return instrumentVectorStore(string(provider), vs), nil
}

func openQdrant(ctx context.Context, log *logger.Logger, cfg Config) (qdrant.VectorStore, error) {
	qcfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if dims := cfg.Embedding.Dims; dims > 0 && qcfg.VectorDim != dims {
		return nil, &BootstrapError{
			Component: componentVectorStore,
			Code:      BootstrapDimensionMismatch,
			Cause:     fmt.Errorf("QDRANT_VECTOR_DIM=%d does not match EMBEDDING_DIM=%d", qcfg.VectorDim, dims),
		}
	}
	log.Info("Selecting vector store provider",
		"provider", VectorProviderQdrant,
		"qdrant_url", qcfg.URL,
		"qdrant_collection", qcfg.Collection,
		"qdrant_namespace_prefix", qcfg.NamespacePrefix,
		"qdrant_vector_dim", qcfg.VectorDim,
	)
	return newQdrantVectorStore(ctx, log, qcfg)
}

// classifyVectorError tags err with a bootstrap code. Network failures of any
// shape count as connect_failed so alerts can tell an unreachable Qdrant from
// a misconfigured one.
func classifyVectorError(provider, source string, err error) error {
	var be *BootstrapError
	if errors.As(err, &be) {
		be.Mode, be.Source = provider, source
		return be
	}
	return &BootstrapError{
		Component: componentVectorStore,
		Code:      vectorErrorCode(err),
		Mode:      provider,
		Source:    source,
		Cause:     err,
	}
}

func vectorErrorCode(err error) BootstrapErrorCode {
	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		if code, ok := qdrantConfigCodes[cfgErr.Code]; ok {
			return code
		}
		return BootstrapQdrantConfigFailed
	}

	var urlErr *neturl.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return BootstrapConnectFailed
	}
	var opErr *qdrant.OperationError
	if errors.As(err, &opErr) && (opErr.Code == qdrant.OperationErrorTransportFailed || opErr.Code == qdrant.OperationErrorTimeout) {
		return BootstrapConnectFailed
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "ready check failed") || strings.Contains(msg, "connection refused") {
		return BootstrapConnectFailed
	}
	return BootstrapProviderInitFailed
}
