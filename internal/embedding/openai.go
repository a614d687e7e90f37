package embedding

import (
	"context"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// OpenAIModel calls an OpenAI-compatible /v1/embeddings endpoint. The server
// pools internally, so every text yields a single feature row.
type OpenAIModel struct {
	embedder embeddings.Embedder
}

func NewOpenAIModel(cfg OpenAIConfig) (*OpenAIModel, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("openai embeddings: model required")
	}
	token := strings.TrimSpace(cfg.APIKey)
	if token == "" {
		// Local OpenAI-compatible servers accept any token.
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, openai.WithBaseURL(base))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	emb, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}
	return &OpenAIModel{embedder: emb}, nil
}

func OpenAILoader(cfg OpenAIConfig) Loader {
	return func(context.Context) (Model, error) {
		return NewOpenAIModel(cfg)
	}
}

func (m *OpenAIModel) FeatureExtract(ctx context.Context, texts []string) ([][][]float32, error) {
	vecs, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([][][]float32, len(vecs))
	for i, v := range vecs {
		out[i] = [][]float32{v}
	}
	return out, nil
}
