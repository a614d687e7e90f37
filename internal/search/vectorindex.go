package search

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/concierge-backend/internal/data/repos/documents"
	"github.com/yungbote/concierge-backend/internal/platform/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/platform/qdrant"
)

const defaultOverfetch = 3

// VectorIndex finds candidate chunks in a qdrant namespace per hotel and
// re-scores them in Postgres. Candidates that moved hotel, lost their document
// or belong to unprocessed documents are dropped by the re-score.
type VectorIndex struct {
	log       *logger.Logger
	vs        qdrant.VectorStore
	repo      documents.SearchRepo
	overfetch int
}

func NewVectorIndex(log *logger.Logger, vs qdrant.VectorStore, repo documents.SearchRepo) *VectorIndex {
	if log == nil {
		log = logger.Nop()
	}
	return &VectorIndex{
		log:       log.With("service", "SearchVectorIndex"),
		vs:        vs,
		repo:      repo,
		overfetch: defaultOverfetch,
	}
}

// ChunkNamespace is the vector namespace holding a hotel's chunks.
func ChunkNamespace(hotelID uuid.UUID) string {
	return "hotel:" + hotelID.String()
}

func (x *VectorIndex) SearchChunks(ctx context.Context, q Query) ([]ChunkResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	matches, err := x.vs.QueryMatches(ctx, ChunkNamespace(q.Scope.HotelID), q.Embedding, limit*x.overfetch, qdrant.Filter{
		Must: []qdrant.Condition{qdrant.Match("type", "chunk")},
	})
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			x.log.Warn("vector index returned non-uuid chunk id", "id", m.ID)
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []ChunkResult{}, nil
	}

	rows, err := x.repo.LoadChunkMatches(dbctx.Context{Ctx: ctx}, q.Scope.HotelID, ids, q.Embedding)
	if err != nil {
		return nil, err
	}
	if stale := len(ids) - len(rows); stale > 0 {
		x.log.Debug("vector index candidates dropped on re-score", "hotel_id", q.Scope.HotelID.String(), "dropped", stale)
	}

	out := make([]ChunkResult, 0, limit)
	for _, r := range chunkResults(rows) {
		if r.Similarity < q.Threshold {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
