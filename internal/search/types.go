package search

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SearchType string

const (
	TypeRAGChunks         SearchType = "rag_chunks"
	TypeSingleDocument    SearchType = "single_document"
	TypeMultipleDocuments SearchType = "multiple_documents"
	TypeAllDocuments      SearchType = "all_documents"
)

const (
	DefaultLimit          = 5
	DefaultMaxLimit       = 50
	DefaultMatchThreshold = 0.1
	DefaultTimeout        = 60 * time.Second
)

type Options struct {
	Limit          int
	DocumentID     string
	DocumentIDs    []string
	MatchThreshold float64
	UseChunks      bool
}

func DefaultOptions() Options {
	return Options{
		Limit:          DefaultLimit,
		MatchThreshold: DefaultMatchThreshold,
		UseChunks:      true,
	}
}

type Request struct {
	Query   string
	HotelID string
	Options Options
}

// Scope is the validated tenant and document restriction of a request.
type Scope struct {
	HotelID     uuid.UUID
	DocumentID  *uuid.UUID
	DocumentIDs []uuid.UUID
}

// Query is what strategies and stores receive.
type Query struct {
	Scope     Scope
	Embedding []float32
	Threshold float64
	Limit     int
}

// ChunkResult is one matching chunk. CreatedAt is the parent document's
// creation time and participates in tie-breaking.
type ChunkResult struct {
	ChunkID       uuid.UUID `json:"chunk_id"`
	DocumentID    uuid.UUID `json:"document_id"`
	HotelID       uuid.UUID `json:"hotel_id"`
	DocumentTitle string    `json:"title"`
	ChunkIndex    int       `json:"chunk_index"`
	Content       string    `json:"content"`
	Similarity    float64   `json:"similarity"`
	CreatedAt     time.Time `json:"document_created_at"`
}

// DocumentResult is one matching document. Similarity is nil for listings.
type DocumentResult struct {
	DocumentID  uuid.UUID `json:"document_id"`
	HotelID     uuid.UUID `json:"hotel_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	FileType    string    `json:"file_type"`
	StorageURL  string    `json:"storage_url,omitempty"`
	Snippet     string    `json:"content"`
	Similarity  *float64  `json:"similarity,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Result holds exactly one of Chunk or Document.
type Result struct {
	Chunk    *ChunkResult
	Document *DocumentResult
}

func ChunkHit(c ChunkResult) Result       { return Result{Chunk: &c} }
func DocumentHit(d DocumentResult) Result { return Result{Document: &d} }

func (r Result) Score() float64 {
	switch {
	case r.Chunk != nil:
		return r.Chunk.Similarity
	case r.Document != nil && r.Document.Similarity != nil:
		return *r.Document.Similarity
	default:
		return 0
	}
}

func (r Result) HotelID() uuid.UUID {
	if r.Chunk != nil {
		return r.Chunk.HotelID
	}
	if r.Document != nil {
		return r.Document.HotelID
	}
	return uuid.Nil
}

func (r Result) DocumentID() uuid.UUID {
	if r.Chunk != nil {
		return r.Chunk.DocumentID
	}
	if r.Document != nil {
		return r.Document.DocumentID
	}
	return uuid.Nil
}

func (r Result) MarshalJSON() ([]byte, error) {
	switch {
	case r.Chunk != nil:
		return json.Marshal(struct {
			Type string    `json:"type"`
			ID   uuid.UUID `json:"id"`
			*ChunkResult
		}{Type: "chunk", ID: r.Chunk.ChunkID, ChunkResult: r.Chunk})
	case r.Document != nil:
		return json.Marshal(struct {
			Type string    `json:"type"`
			ID   uuid.UUID `json:"id"`
			*DocumentResult
		}{Type: "document", ID: r.Document.DocumentID, DocumentResult: r.Document})
	default:
		return []byte("null"), nil
	}
}

type Response struct {
	Query       string     `json:"query"`
	HotelID     string     `json:"hotel_id"`
	DocumentID  *string    `json:"document_id"`
	DocumentIDs []string   `json:"document_ids"`
	Results     []Result   `json:"results"`
	Count       int        `json:"count"`
	SearchType  SearchType `json:"search_type"`
	UseChunks   bool       `json:"use_chunks"`
}

// Embedder produces query vectors.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Warm(ctx context.Context) error
}

// Store answers the similarity queries. Every method must restrict rows to
// q.Scope.HotelID and to processed, non-archived documents.
type Store interface {
	SearchChunks(ctx context.Context, q Query) ([]ChunkResult, error)
	// SearchDocuments honours q.Scope.DocumentID when set.
	SearchDocuments(ctx context.Context, q Query) ([]DocumentResult, error)
	SearchDocumentsByIDs(ctx context.Context, q Query) ([]DocumentResult, error)
	ListDocuments(ctx context.Context, scope Scope, limit int) ([]DocumentResult, error)
}

// ChunkIndex is an optional approximate index consulted before the store.
type ChunkIndex interface {
	SearchChunks(ctx context.Context, q Query) ([]ChunkResult, error)
}

// Metrics receives one observation per completed search.
type Metrics interface {
	ObserveSearch(searchType, outcome string, dur time.Duration)
}
