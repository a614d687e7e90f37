package handlers

import (
	"context"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/concierge-backend/internal/embedding"
	"github.com/yungbote/concierge-backend/internal/http/response"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

type EmbeddingHandler struct {
	log      *logger.Logger
	embedder Embedder
}

func NewEmbeddingHandler(log *logger.Logger, embedder Embedder) *EmbeddingHandler {
	return &EmbeddingHandler{log: log.With("handler", "EmbeddingHandler"), embedder: embedder}
}

type embeddingRequest struct {
	Text string `json:"text"`
}

type embeddingResponse struct {
	Success    bool      `json:"success"`
	Embedding  []float32 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
	Model      string    `json:"model"`
	TextLength int       `json:"text_length"`
}

// POST /api/embeddings
func (h *EmbeddingHandler) Embed(c *gin.Context) {
	var req embeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Fail(c, &embedding.InvalidInputError{Reason: "body must be a JSON object with a text field"})
		return
	}
	vec, err := h.embedder.Embed(c.Request.Context(), req.Text)
	if err != nil {
		if errors.Is(err, embedding.ErrModelUnavailable) {
			h.log.Error("Embedding failed", "model", h.embedder.Model(), "error", err)
		}
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, embeddingResponse{
		Success:    true,
		Embedding:  vec,
		Dimensions: len(vec),
		Model:      h.embedder.Model(),
		TextLength: utf8.RuneCountInString(req.Text),
	})
}
