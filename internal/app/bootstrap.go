package app

import (
	"errors"
	"fmt"

	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

// BootstrapErrorCode classifies why an optional backend could not be wired.
// The codes double as the error_code label on bootstrap metrics and logs.
type BootstrapErrorCode string

const (
	BootstrapConnectFailed BootstrapErrorCode = "connect_failed"

	// Object storage.
	BootstrapInvalidMode         BootstrapErrorCode = "invalid_mode"
	BootstrapMissingBucket       BootstrapErrorCode = "missing_bucket"
	BootstrapMissingEmulatorHost BootstrapErrorCode = "missing_emulator_host"
	BootstrapInvalidEmulatorHost BootstrapErrorCode = "invalid_emulator_host"
	BootstrapInvalidPublicBase   BootstrapErrorCode = "invalid_public_base_url"

	// Vector store.
	BootstrapInvalidProvider         BootstrapErrorCode = "invalid_provider"
	BootstrapMissingQdrantURL        BootstrapErrorCode = "missing_qdrant_url"
	BootstrapInvalidQdrantURL        BootstrapErrorCode = "invalid_qdrant_url"
	BootstrapMissingQdrantCollection BootstrapErrorCode = "missing_qdrant_collection"
	BootstrapInvalidQdrantVectorDim  BootstrapErrorCode = "invalid_qdrant_vector_dim"
	BootstrapDimensionMismatch       BootstrapErrorCode = "embedding_dimension_mismatch"
	BootstrapQdrantConfigFailed      BootstrapErrorCode = "qdrant_config_failed"
	BootstrapProviderInitFailed      BootstrapErrorCode = "provider_init_failed"
)

const (
	componentObjectStorage = "object storage"
	componentVectorStore   = "vector store"
	componentEmbedding     = "embedding"
)

// BootstrapError wraps a startup failure of an optional backend with the
// mode that was selected and where that choice came from.
type BootstrapError struct {
	Component string
	Code      BootstrapErrorCode
	Mode      string
	Source    string
	Cause     error
}

func (e *BootstrapError) Error() string {
	if e == nil {
		return "bootstrap failed"
	}
	return fmt.Sprintf("%s bootstrap failed (code=%s mode=%q source=%q): %v", e.Component, e.Code, e.Mode, e.Source, e.Cause)
}

func (e *BootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// bootstrapCode extracts the code from err, defaulting to connect_failed for
// anything unclassified.
func bootstrapCode(err error) BootstrapErrorCode {
	var be *BootstrapError
	if errors.As(err, &be) && be.Code != "" {
		return be.Code
	}
	return BootstrapConnectFailed
}

func logBootstrapFailure(log *logger.Logger, msg string, err error) {
	var be *BootstrapError
	if !errors.As(err, &be) {
		log.Error(msg, "error", err)
		return
	}
	log.Error(msg,
		"component", be.Component,
		"mode", be.Mode,
		"mode_source", be.Source,
		"error_code", be.Code,
		"error", err,
	)
}
