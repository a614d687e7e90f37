package qdrant

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/concierge-backend/internal/platform/envutil"
)

const (
	DefaultNamespacePrefix = "concierge"
	DefaultVectorDim       = 384
	defaultTimeout         = 10 * time.Second
)

type Config struct {
	URL             string
	APIKey          string
	Collection      string
	NamespacePrefix string
	VectorDim       int
	// AutoCreate creates a missing collection with cosine distance.
	AutoCreate bool
	Timeout    time.Duration
	// MaxRetries bounds extra attempts for transport errors and 5xx answers.
	MaxRetries int
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL        ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL        ConfigErrorCode = "invalid_url"
	ConfigErrorMissingCollection ConfigErrorCode = "missing_collection"
	ConfigErrorInvalidVectorDim  ConfigErrorCode = "invalid_vector_dim"
)

var configErrorMessages = map[ConfigErrorCode]string{
	ConfigErrorMissingURL:        "QDRANT_URL is required",
	ConfigErrorInvalidURL:        "invalid QDRANT_URL=%q; expected an absolute URL like http://qdrant:6333",
	ConfigErrorMissingCollection: "QDRANT_COLLECTION is required",
	ConfigErrorInvalidVectorDim:  "invalid QDRANT_VECTOR_DIM=%q; expected a positive integer",
}

// ConfigError names the offending setting. Value holds the raw input for
// the invalid_* codes.
type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid qdrant config"
	}
	msg, ok := configErrorMessages[e.Code]
	if !ok {
		return "invalid qdrant config"
	}
	if strings.Contains(msg, "%q") {
		return fmt.Sprintf(msg, e.Value)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ResolveConfigFromEnv reads QDRANT_*. QDRANT_VECTOR_DIM defaults to the
// embedding width.
func ResolveConfigFromEnv() (Config, error) {
	dim := DefaultVectorDim
	if raw := envutil.String("QDRANT_VECTOR_DIM", ""); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, &ConfigError{Code: ConfigErrorInvalidVectorDim, Value: raw, Cause: err}
		}
		dim = parsed
	}
	cfg := Config{
		URL:             envutil.String("QDRANT_URL", ""),
		APIKey:          envutil.String("QDRANT_API_KEY", ""),
		Collection:      envutil.String("QDRANT_COLLECTION", "document_chunks"),
		NamespacePrefix: envutil.String("QDRANT_NAMESPACE_PREFIX", DefaultNamespacePrefix),
		VectorDim:       dim,
		AutoCreate:      envutil.Bool("QDRANT_AUTO_CREATE", true),
		Timeout:         envutil.Seconds("QDRANT_TIMEOUT_SECONDS", defaultTimeout),
		MaxRetries:      envutil.Int("QDRANT_MAX_RETRIES", 2),
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	switch {
	case strings.TrimSpace(cfg.URL) == "":
		return &ConfigError{Code: ConfigErrorMissingURL}
	case strings.TrimSpace(cfg.Collection) == "":
		return &ConfigError{Code: ConfigErrorMissingCollection}
	case cfg.VectorDim <= 0:
		return &ConfigError{Code: ConfigErrorInvalidVectorDim, Value: strconv.Itoa(cfg.VectorDim)}
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Code: ConfigErrorInvalidURL, Value: cfg.URL, Cause: err}
	}
	return nil
}
