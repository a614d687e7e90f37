package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/concierge-backend/internal/data/repos/documents"
	"github.com/yungbote/concierge-backend/internal/platform/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/qdrant"
)

type fakeSearchRepo struct {
	chunkQuery    documents.ChunkQuery
	docQuery      documents.DocumentQuery
	listIDs       []uuid.UUID
	loadIDs       []uuid.UUID
	loadHotel     uuid.UUID
	chunks        []documents.ChunkMatch
	docs          []documents.DocumentMatch
	err           error
	searchDocCall int
}

func (f *fakeSearchRepo) SearchChunks(_ dbctx.Context, q documents.ChunkQuery) ([]documents.ChunkMatch, error) {
	f.chunkQuery = q
	return f.chunks, f.err
}

func (f *fakeSearchRepo) SearchDocuments(_ dbctx.Context, q documents.DocumentQuery) ([]documents.DocumentMatch, error) {
	f.searchDocCall++
	f.docQuery = q
	return f.docs, f.err
}

func (f *fakeSearchRepo) ListDocuments(_ dbctx.Context, _ uuid.UUID, ids []uuid.UUID, _ int) ([]documents.DocumentMatch, error) {
	f.listIDs = ids
	return f.docs, f.err
}

func (f *fakeSearchRepo) LoadChunkMatches(_ dbctx.Context, hotelID uuid.UUID, ids []uuid.UUID, _ []float32) ([]documents.ChunkMatch, error) {
	f.loadHotel = hotelID
	f.loadIDs = ids
	return f.chunks, f.err
}

type fakeVectorStore struct {
	namespace string
	topK      int
	filter    qdrant.Filter
	matches   []qdrant.VectorMatch
	err       error
}

func (f *fakeVectorStore) Upsert(context.Context, string, []qdrant.Vector) error { return nil }

func (f *fakeVectorStore) QueryMatches(_ context.Context, ns string, _ []float32, topK int, filter qdrant.Filter) ([]qdrant.VectorMatch, error) {
	f.namespace, f.topK, f.filter = ns, topK, filter
	return f.matches, f.err
}

func (f *fakeVectorStore) DeleteIDs(context.Context, string, []string) error { return nil }

func (f *fakeVectorStore) DeleteByFilter(context.Context, string, qdrant.Filter) error { return nil }

func TestPGStoreMapsScopeToDocumentIDs(t *testing.T) {
	hotel, doc := uuid.New(), uuid.New()
	sim := 0.7
	repo := &fakeSearchRepo{docs: []documents.DocumentMatch{{DocumentID: doc, HotelID: hotel, Title: "Spa", Snippet: "open 9-5", Similarity: &sim}}}
	store := NewPGStore(repo)
	ctx := context.Background()

	out, err := store.SearchDocuments(ctx, Query{Scope: Scope{HotelID: hotel, DocumentID: &doc}, Embedding: []float32{1}, Threshold: 0.2, Limit: 4})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []uuid.UUID{doc}, repo.docQuery.DocumentIDs)
	assert.Equal(t, 0.2, repo.docQuery.Threshold)
	assert.Equal(t, 4, repo.docQuery.Limit)
	assert.Equal(t, "open 9-5", out[0].Snippet)
	assert.Equal(t, 0.7, *out[0].Similarity)

	_, err = store.SearchDocuments(ctx, Query{Scope: Scope{HotelID: hotel}, Embedding: []float32{1}})
	require.NoError(t, err)
	assert.Empty(t, repo.docQuery.DocumentIDs)

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	_, err = store.SearchDocumentsByIDs(ctx, Query{Scope: Scope{HotelID: hotel, DocumentIDs: ids}, Embedding: []float32{1}})
	require.NoError(t, err)
	assert.Equal(t, ids, repo.docQuery.DocumentIDs)

	_, err = store.ListDocuments(ctx, Scope{HotelID: hotel, DocumentID: &doc}, 5)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{doc}, repo.listIDs)
}

func TestPGStoreSearchDocumentsByIDsWithoutIDsIsEmpty(t *testing.T) {
	repo := &fakeSearchRepo{}
	out, err := NewPGStore(repo).SearchDocumentsByIDs(context.Background(), Query{Scope: Scope{HotelID: uuid.New()}})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, repo.searchDocCall, "an unscoped id search must not widen to the whole hotel")
}

func TestPGStoreChunkMapping(t *testing.T) {
	hotel, doc, chunk := uuid.New(), uuid.New(), uuid.New()
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeSearchRepo{chunks: []documents.ChunkMatch{{
		ChunkID: chunk, DocumentID: doc, HotelID: hotel, DocumentTitle: "Guide",
		DocumentCreatedAt: created, ChunkIndex: 2, Content: "Breakfast 7-10", Similarity: 0.4,
	}}}

	out, err := NewPGStore(repo).SearchChunks(context.Background(), Query{Scope: Scope{HotelID: hotel}, Embedding: []float32{1}, Threshold: 0.1, Limit: 5})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, hotel, repo.chunkQuery.HotelID)
	assert.Equal(t, ChunkResult{
		ChunkID: chunk, DocumentID: doc, HotelID: hotel, DocumentTitle: "Guide",
		ChunkIndex: 2, Content: "Breakfast 7-10", Similarity: 0.4, CreatedAt: created,
	}, out[0])
}

func TestVectorIndexRescoresCandidatesInHotel(t *testing.T) {
	hotel := uuid.New()
	keep, low := uuid.New(), uuid.New()
	vs := &fakeVectorStore{matches: []qdrant.VectorMatch{
		{ID: keep.String(), Score: 0.9},
		{ID: "not-a-uuid", Score: 0.8},
		{ID: low.String(), Score: 0.7},
	}}
	repo := &fakeSearchRepo{chunks: []documents.ChunkMatch{
		{ChunkID: keep, HotelID: hotel, Similarity: 0.6},
		{ChunkID: low, HotelID: hotel, Similarity: 0.05},
	}}
	idx := NewVectorIndex(nil, vs, repo)

	out, err := idx.SearchChunks(context.Background(), Query{Scope: Scope{HotelID: hotel}, Embedding: []float32{1}, Threshold: 0.1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, keep, out[0].ChunkID)
	assert.Equal(t, 0.6, out[0].Similarity, "score comes from the Postgres re-score")

	assert.Equal(t, ChunkNamespace(hotel), vs.namespace)
	assert.Equal(t, 2*defaultOverfetch, vs.topK)
	require.Len(t, vs.filter.Must, 1)
	assert.Equal(t, "type", vs.filter.Must[0].Key)
	assert.Equal(t, hotel, repo.loadHotel)
	assert.Equal(t, []uuid.UUID{keep, low}, repo.loadIDs)
}

func TestVectorIndexNoCandidatesSkipsPostgres(t *testing.T) {
	repo := &fakeSearchRepo{}
	idx := NewVectorIndex(nil, &fakeVectorStore{}, repo)

	out, err := idx.SearchChunks(context.Background(), Query{Scope: Scope{HotelID: uuid.New()}, Embedding: []float32{1}})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Nil(t, repo.loadIDs)
}

func TestVectorIndexPropagatesStoreError(t *testing.T) {
	boom := errors.New("qdrant down")
	idx := NewVectorIndex(nil, &fakeVectorStore{err: boom}, &fakeSearchRepo{})

	_, err := idx.SearchChunks(context.Background(), Query{Scope: Scope{HotelID: uuid.New()}, Embedding: []float32{1}})
	assert.ErrorIs(t, err, boom)
}
