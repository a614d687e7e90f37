package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/platform/qdrant"
)

const upsertBatchSize = 128

// syncVectors mirrors the committed chunks into the hotel's vector namespace.
// Postgres stays the source of truth; callers treat an error as degraded, not
// failed.
func (p *Pipeline) syncVectors(ctx context.Context, doc *types.Document, chunks []*types.DocumentChunk) (int, error) {
	if p.deps.Vectors == nil {
		return 0, nil
	}
	ns := p.deps.Namespaces(doc.HotelID)
	if err := p.deps.Vectors.DeleteByFilter(ctx, ns, documentFilter(doc.ID)); err != nil {
		return 0, fmt.Errorf("clear stale vectors: %w", err)
	}

	upserted := 0
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))
		batch := make([]qdrant.Vector, 0, end-start)
		for _, c := range chunks[start:end] {
			batch = append(batch, qdrant.Vector{
				ID:     c.ID.String(),
				Values: c.Embedding.Slice(),
				Metadata: map[string]any{
					"type":        "chunk",
					"hotel_id":    doc.HotelID.String(),
					"document_id": doc.ID.String(),
					"chunk_id":    c.ID.String(),
					"chunk_index": c.ChunkIndex,
				},
			})
		}
		if err := p.deps.Vectors.Upsert(ctx, ns, batch); err != nil {
			return upserted, fmt.Errorf("upsert vectors: %w", err)
		}
		upserted += len(batch)
	}
	return upserted, nil
}

// DeleteDocumentVectors removes every chunk vector of a document.
func DeleteDocumentVectors(ctx context.Context, vs qdrant.VectorStore, namespace string, documentID uuid.UUID) error {
	if vs == nil {
		return nil
	}
	return vs.DeleteByFilter(ctx, namespace, documentFilter(documentID))
}

func documentFilter(documentID uuid.UUID) qdrant.Filter {
	return qdrant.Filter{Must: []qdrant.Condition{
		qdrant.Match("type", "chunk"),
		qdrant.Match("document_id", documentID.String()),
	}}
}
