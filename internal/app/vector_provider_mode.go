package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/concierge-backend/internal/platform/envutil"
)

type VectorProvider string

const (
	VectorProviderNone   VectorProvider = "none"
	VectorProviderQdrant VectorProvider = "qdrant"
)

const (
	vectorModeSourceExplicit = "vector_provider"
	vectorModeSourceInferred = "qdrant_url"
	vectorModeSourceDefault  = "default"
)

// resolveVectorProviderMode picks the chunk index tier. An explicit
// VECTOR_PROVIDER wins; otherwise qdrant is used whenever QDRANT_URL is set.
func resolveVectorProviderMode(raw string) (VectorProvider, string, error) {
	switch p := VectorProvider(strings.ToLower(strings.TrimSpace(raw))); p {
	case VectorProviderNone, VectorProviderQdrant:
		return p, vectorModeSourceExplicit, nil
	case "":
		if envutil.String("QDRANT_URL", "") != "" {
			return VectorProviderQdrant, vectorModeSourceInferred, nil
		}
		return VectorProviderNone, vectorModeSourceDefault, nil
	default:
		return "", vectorModeSourceExplicit, &BootstrapError{
			Component: componentVectorStore,
			Code:      BootstrapInvalidProvider,
			Mode:      string(p),
			Source:    vectorModeSourceExplicit,
			Cause:     fmt.Errorf("unsupported vector provider %q (allowed: %q, %q)", raw, VectorProviderNone, VectorProviderQdrant),
		}
	}
}
