// Package searchtest provides in-memory collaborators for search tests.
package searchtest

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/concierge-backend/internal/embedding"
	"github.com/yungbote/concierge-backend/internal/search"
)

// Embedder wraps a hashing Generator and counts calls.
type Embedder struct {
	gen        *embedding.Generator
	Err        error
	WarmCalls  atomic.Int64
	EmbedCalls atomic.Int64
}

func NewEmbedder() *Embedder {
	return &Embedder{gen: embedding.NewGenerator("", embedding.HashingLoader(embedding.DefaultDimensions))}
}

func (e *Embedder) Warm(ctx context.Context) error {
	e.WarmCalls.Add(1)
	if e.Err != nil {
		return e.Err
	}
	return e.gen.Warm(ctx)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.EmbedCalls.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	return e.gen.EmbedQuery(ctx, text)
}

// Vector embeds text for fixtures; it panics on error.
func (e *Embedder) Vector(text string) []float32 {
	v, err := e.gen.Embed(context.Background(), text)
	if err != nil {
		panic(err)
	}
	return v
}

func (e *Embedder) Calls() int64 { return e.WarmCalls.Load() + e.EmbedCalls.Load() }

type Document struct {
	ID        uuid.UUID
	HotelID   uuid.UUID
	Title     string
	Content   string
	Processed bool
	Archived  bool
	CreatedAt time.Time
	Embedding []float32
}

type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Index      int
	Content    string
	Embedding  []float32
}

// Store is an in-memory search.Store with per-method error injection.
type Store struct {
	mu     sync.Mutex
	docs   map[uuid.UUID]Document
	chunks []Chunk

	ChunkErr    error
	DocumentErr error
	ListErr     error
	// Delay is applied to every call, honouring ctx.
	Delay time.Duration

	calls atomic.Int64
}

func NewStore() *Store {
	return &Store{docs: map[uuid.UUID]Document{}}
}

func (s *Store) AddDocument(d Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	s.docs[d.ID] = d
}

func (s *Store) AddChunk(c Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.chunks = append(s.chunks, c)
}

func (s *Store) Calls() int64 { return s.calls.Load() }

func (s *Store) enter(ctx context.Context) error {
	s.calls.Add(1)
	if s.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.Delay):
		return nil
	}
}

func (s *Store) visible(id, hotel uuid.UUID) (Document, bool) {
	d, ok := s.docs[id]
	if !ok || d.HotelID != hotel || !d.Processed || d.Archived {
		return Document{}, false
	}
	return d, true
}

func (s *Store) SearchChunks(ctx context.Context, q search.Query) ([]search.ChunkResult, error) {
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	if s.ChunkErr != nil {
		return nil, s.ChunkErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []search.ChunkResult
	for _, c := range s.chunks {
		d, ok := s.visible(c.DocumentID, q.Scope.HotelID)
		if !ok {
			continue
		}
		sim := embedding.Cosine(q.Embedding, c.Embedding)
		if sim < q.Threshold {
			continue
		}
		out = append(out, search.ChunkResult{
			ChunkID:       c.ID,
			DocumentID:    d.ID,
			HotelID:       d.HotelID,
			DocumentTitle: d.Title,
			ChunkIndex:    c.Index,
			Content:       c.Content,
			Similarity:    sim,
			CreatedAt:     d.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if out[i].ChunkIndex != out[j].ChunkIndex {
			return out[i].ChunkIndex < out[j].ChunkIndex
		}
		return bytes.Compare(out[i].ChunkID[:], out[j].ChunkID[:]) < 0
	})
	return truncate(out, q.Limit), nil
}

func (s *Store) SearchDocuments(ctx context.Context, q search.Query) ([]search.DocumentResult, error) {
	var ids []uuid.UUID
	if q.Scope.DocumentID != nil {
		ids = []uuid.UUID{*q.Scope.DocumentID}
	}
	return s.searchDocuments(ctx, q, ids)
}

func (s *Store) SearchDocumentsByIDs(ctx context.Context, q search.Query) ([]search.DocumentResult, error) {
	return s.searchDocuments(ctx, q, q.Scope.DocumentIDs)
}

func (s *Store) searchDocuments(ctx context.Context, q search.Query, ids []uuid.UUID) ([]search.DocumentResult, error) {
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	if s.DocumentErr != nil {
		return nil, s.DocumentErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []search.DocumentResult
	for _, d := range s.scoped(q.Scope.HotelID, ids) {
		if len(d.Embedding) == 0 {
			continue
		}
		sim := embedding.Cosine(q.Embedding, d.Embedding)
		if sim < q.Threshold {
			continue
		}
		r := documentResult(d)
		r.Similarity = &sim
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if *out[i].Similarity != *out[j].Similarity {
			return *out[i].Similarity > *out[j].Similarity
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].DocumentID[:], out[j].DocumentID[:]) < 0
	})
	return truncate(out, q.Limit), nil
}

func (s *Store) ListDocuments(ctx context.Context, scope search.Scope, limit int) ([]search.DocumentResult, error) {
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := scope.DocumentIDs
	if len(ids) == 0 && scope.DocumentID != nil {
		ids = []uuid.UUID{*scope.DocumentID}
	}
	var out []search.DocumentResult
	for _, d := range s.scoped(scope.HotelID, ids) {
		out = append(out, documentResult(d))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].DocumentID[:], out[j].DocumentID[:]) < 0
	})
	return truncate(out, limit), nil
}

func (s *Store) scoped(hotel uuid.UUID, ids []uuid.UUID) []Document {
	var out []Document
	if len(ids) > 0 {
		for _, id := range ids {
			if d, ok := s.visible(id, hotel); ok {
				out = append(out, d)
			}
		}
		return out
	}
	for id := range s.docs {
		if d, ok := s.visible(id, hotel); ok {
			out = append(out, d)
		}
	}
	return out
}

func documentResult(d Document) search.DocumentResult {
	snippet := d.Content
	if r := []rune(snippet); len(r) > 300 {
		snippet = string(r[:300])
	}
	return search.DocumentResult{
		DocumentID: d.ID,
		HotelID:    d.HotelID,
		Title:      d.Title,
		FileType:   "text/plain",
		Snippet:    snippet,
		CreatedAt:  d.CreatedAt,
	}
}

func truncate[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
