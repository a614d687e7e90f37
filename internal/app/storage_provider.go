package app

import (
	"context"
	"errors"

	"github.com/yungbote/concierge-backend/internal/platform/gcp"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

var (
	storageConfigFromEnv = gcp.StorageConfigFromEnv
	newBlobStore         = func(ctx context.Context, log *logger.Logger, cfg gcp.StorageConfig) (gcp.BlobStore, error) {
		return gcp.NewBlobStore(ctx, log, cfg, nil)
	}
)

var storageConfigCodes = map[gcp.StorageConfigErrorCode]BootstrapErrorCode{
	gcp.StorageConfigErrorInvalidMode:         BootstrapInvalidMode,
	gcp.StorageConfigErrorMissingBucket:       BootstrapMissingBucket,
	gcp.StorageConfigErrorMissingEmulatorHost: BootstrapMissingEmulatorHost,
	gcp.StorageConfigErrorInvalidEmulatorHost: BootstrapInvalidEmulatorHost,
	gcp.StorageConfigErrorInvalidPublicBase:   BootstrapInvalidPublicBase,
}

// resolveBlobStore opens the document bucket. Without DOCUMENTS_GCS_BUCKET_NAME
// the document routes stay disabled and nil, nil is returned.
func resolveBlobStore(ctx context.Context, log *logger.Logger, cfg Config) (gcp.BlobStore, error) {
	if !cfg.DocumentsEnabled {
		log.Info("DOCUMENTS_GCS_BUCKET_NAME not set; document upload disabled")
		return nil, nil
	}

	storageCfg, err := storageConfigFromEnv()
	if err != nil {
		err = classifyStorageError(storageCfg, err)
		logBootstrapFailure(log, "Object storage configuration invalid", err)
		return nil, err
	}
	log.Info("Selecting object storage provider",
		"mode", storageCfg.Mode,
		"mode_source", storageCfg.ModeSource(),
		"emulator_host", storageCfg.EmulatorHost,
		"bucket", storageCfg.Bucket,
	)

	blobs, err := newBlobStore(ctx, log, storageCfg)
	if err != nil {
		err = classifyStorageError(storageCfg, err)
		logBootstrapFailure(log, "Object storage bootstrap failed", err)
		return nil, err
	}
	return blobs, nil
}

// classifyStorageError maps config errors to their codes; anything else is a
// failure to reach the bucket.
func classifyStorageError(storageCfg gcp.StorageConfig, err error) error {
	code := BootstrapConnectFailed
	var cfgErr *gcp.StorageConfigError
	if errors.As(err, &cfgErr) {
		if mapped, ok := storageConfigCodes[cfgErr.Code]; ok {
			code = mapped
		}
	}
	return &BootstrapError{
		Component: componentObjectStorage,
		Code:      code,
		Mode:      string(storageCfg.Mode),
		Source:    storageCfg.ModeSource(),
		Cause:     err,
	}
}
