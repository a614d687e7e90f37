package embedding

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	ProviderHashing = "hashing"
	ProviderTEI     = "tei"
	ProviderOpenAI  = "openai"
)

// Config selects and configures an embedding backend.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	Path     string
	APIKey   string
	Dims     int
	Timeout  time.Duration
}

// NewLoader returns the loader for cfg.Provider and the model name to report.
func NewLoader(cfg Config, httpClient *http.Client) (Loader, string, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	model := strings.TrimSpace(cfg.Model)
	switch provider {
	case "", ProviderHashing, "local":
		if model == "" {
			model = DefaultModelName
		}
		return HashingLoader(cfg.Dims), model, nil
	case ProviderTEI, "huggingface", "hf":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, "", fmt.Errorf("embedding provider %q requires EMBEDDING_BASE_URL", provider)
		}
		if model == "" {
			model = "sentence-transformers/all-MiniLM-L6-v2"
		}
		return TEILoader(TEIConfig{
			BaseURL: cfg.BaseURL,
			Path:    cfg.Path,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}, httpClient), model, nil
	case ProviderOpenAI:
		if model == "" {
			model = "all-minilm"
		}
		return OpenAILoader(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   model,
		}), model, nil
	default:
		return nil, "", fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
