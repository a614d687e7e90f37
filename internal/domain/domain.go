package domain

import "github.com/yungbote/concierge-backend/internal/domain/documents"

type Document = documents.Document
type DocumentChunk = documents.DocumentChunk

const EmbeddingDim = documents.EmbeddingDim
