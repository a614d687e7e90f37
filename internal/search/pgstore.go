package search

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/concierge-backend/internal/data/repos/documents"
	"github.com/yungbote/concierge-backend/internal/platform/dbctx"
)

// PGStore answers Store queries with pgvector through documents.SearchRepo.
type PGStore struct {
	repo documents.SearchRepo
}

func NewPGStore(repo documents.SearchRepo) *PGStore {
	return &PGStore{repo: repo}
}

func (s *PGStore) SearchChunks(ctx context.Context, q Query) ([]ChunkResult, error) {
	rows, err := s.repo.SearchChunks(dbctx.Context{Ctx: ctx}, documents.ChunkQuery{
		HotelID:   q.Scope.HotelID,
		Embedding: q.Embedding,
		Threshold: q.Threshold,
		Limit:     q.Limit,
	})
	if err != nil {
		return nil, err
	}
	return chunkResults(rows), nil
}

func (s *PGStore) SearchDocuments(ctx context.Context, q Query) ([]DocumentResult, error) {
	var ids []uuid.UUID
	if q.Scope.DocumentID != nil {
		ids = []uuid.UUID{*q.Scope.DocumentID}
	}
	return s.searchDocuments(ctx, q, ids)
}

func (s *PGStore) SearchDocumentsByIDs(ctx context.Context, q Query) ([]DocumentResult, error) {
	if len(q.Scope.DocumentIDs) == 0 {
		return []DocumentResult{}, nil
	}
	return s.searchDocuments(ctx, q, q.Scope.DocumentIDs)
}

func (s *PGStore) ListDocuments(ctx context.Context, scope Scope, limit int) ([]DocumentResult, error) {
	rows, err := s.repo.ListDocuments(dbctx.Context{Ctx: ctx}, scope.HotelID, scopeIDs(scope), limit)
	if err != nil {
		return nil, err
	}
	return documentResults(rows), nil
}

func (s *PGStore) searchDocuments(ctx context.Context, q Query, ids []uuid.UUID) ([]DocumentResult, error) {
	rows, err := s.repo.SearchDocuments(dbctx.Context{Ctx: ctx}, documents.DocumentQuery{
		HotelID:     q.Scope.HotelID,
		DocumentIDs: ids,
		Embedding:   q.Embedding,
		Threshold:   q.Threshold,
		Limit:       q.Limit,
	})
	if err != nil {
		return nil, err
	}
	return documentResults(rows), nil
}

func scopeIDs(scope Scope) []uuid.UUID {
	if len(scope.DocumentIDs) > 0 {
		return scope.DocumentIDs
	}
	if scope.DocumentID != nil {
		return []uuid.UUID{*scope.DocumentID}
	}
	return nil
}

func chunkResults(rows []documents.ChunkMatch) []ChunkResult {
	out := make([]ChunkResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, ChunkResult{
			ChunkID:       r.ChunkID,
			DocumentID:    r.DocumentID,
			HotelID:       r.HotelID,
			DocumentTitle: r.DocumentTitle,
			ChunkIndex:    r.ChunkIndex,
			Content:       r.Content,
			Similarity:    r.Similarity,
			CreatedAt:     r.DocumentCreatedAt,
		})
	}
	return out
}

func documentResults(rows []documents.DocumentMatch) []DocumentResult {
	out := make([]DocumentResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, DocumentResult{
			DocumentID:  r.DocumentID,
			HotelID:     r.HotelID,
			Title:       r.Title,
			Description: r.Description,
			FileType:    r.FileType,
			StorageURL:  r.StorageURL,
			Snippet:     r.Snippet,
			Similarity:  r.Similarity,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out
}
