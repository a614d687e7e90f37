package search_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/concierge-backend/internal/embedding"
	"github.com/yungbote/concierge-backend/internal/search"
	"github.com/yungbote/concierge-backend/internal/search/searchtest"
)

const breakfastChunk = "Free breakfast served 7-10am in the lobby restaurant."

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	emb    *searchtest.Embedder
	store  *searchtest.Store
	engine *search.Engine
	hotel  uuid.UUID
	doc    uuid.UUID
	chunk  uuid.UUID
}

func newFixture(t *testing.T, opts ...search.EngineOption) *fixture {
	t.Helper()
	f := &fixture{
		emb:   searchtest.NewEmbedder(),
		store: searchtest.NewStore(),
		hotel: uuid.New(),
		doc:   uuid.New(),
		chunk: uuid.New(),
	}
	f.store.AddDocument(searchtest.Document{
		ID:        f.doc,
		HotelID:   f.hotel,
		Title:     "Amenities",
		Content:   breakfastChunk,
		Processed: true,
		CreatedAt: base,
		Embedding: f.emb.Vector(breakfastChunk),
	})
	f.store.AddChunk(searchtest.Chunk{
		ID:         f.chunk,
		DocumentID: f.doc,
		Index:      0,
		Content:    breakfastChunk,
		Embedding:  f.emb.Vector(breakfastChunk),
	})
	f.engine = search.NewEngine(nil, f.emb, f.store, opts...)
	return f
}

func (f *fixture) request(query string, mutate ...func(*search.Options)) search.Request {
	opts := search.DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	return search.Request{Query: query, HotelID: f.hotel.String(), Options: opts}
}

func TestBreakfastExampleReturnsChunk(t *testing.T) {
	f := newFixture(t)

	resp, err := f.engine.Search(context.Background(), f.request("breakfast hours"))
	require.NoError(t, err)

	assert.Equal(t, search.TypeRAGChunks, resp.SearchType)
	require.NotEmpty(t, resp.Results)
	top := resp.Results[0]
	require.NotNil(t, top.Chunk)
	assert.Equal(t, f.chunk, top.Chunk.ChunkID)
	assert.Equal(t, breakfastChunk, top.Chunk.Content)
	assert.Greater(t, top.Score(), 0.1)
	assert.Equal(t, len(resp.Results), resp.Count)
	assert.True(t, resp.UseChunks)
	assert.Equal(t, f.hotel.String(), resp.HotelID)
}

func TestHighThresholdIsEmptySuccess(t *testing.T) {
	f := newFixture(t)

	resp, err := f.engine.Search(context.Background(), f.request("breakfast hours", func(o *search.Options) {
		o.MatchThreshold = 0.99
	}))
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Equal(t, search.TypeAllDocuments, resp.SearchType)
}

func TestMissingHotelFailsBeforeAnyCollaboratorCall(t *testing.T) {
	f := newFixture(t)

	for _, hotel := range []string{"", "   "} {
		_, err := f.engine.Search(context.Background(), search.Request{
			Query:   "breakfast hours",
			HotelID: hotel,
			Options: search.DefaultOptions(),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, search.ErrMissingScope)
	}
	assert.Zero(t, f.emb.Calls())
	assert.Zero(t, f.store.Calls())
}

func TestMalformedInputIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]search.Request{
		"hotel": {Query: "x", HotelID: "not-a-uuid", Options: search.DefaultOptions()},
		"document": f.request("x", func(o *search.Options) {
			o.DocumentID = "nope"
		}),
		"document_ids": f.request("x", func(o *search.Options) {
			o.DocumentIDs = []string{uuid.NewString(), "nope"}
		}),
		"threshold": f.request("x", func(o *search.Options) {
			o.MatchThreshold = 1.5
		}),
	}
	for name, req := range cases {
		_, err := f.engine.Search(ctx, req)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, search.ErrInvalidInput, name)
	}
	assert.Zero(t, f.emb.Calls())
	assert.Zero(t, f.store.Calls())
}

func TestDocumentsWithoutChunksNeverYieldRAGChunks(t *testing.T) {
	emb := searchtest.NewEmbedder()
	store := searchtest.NewStore()
	hotel := uuid.New()
	d1, d2 := uuid.New(), uuid.New()
	for i, id := range []uuid.UUID{d1, d2} {
		content := fmt.Sprintf("Fresh towels available at the front desk %d", i)
		store.AddDocument(searchtest.Document{
			ID: id, HotelID: hotel, Title: "Housekeeping", Content: content,
			Processed: true, CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Embedding: emb.Vector(content),
		})
	}
	engine := search.NewEngine(nil, emb, store)
	ctx := context.Background()

	cases := []struct {
		opts search.Options
		want search.SearchType
	}{
		{search.DefaultOptions(), search.TypeAllDocuments},
		{func() search.Options {
			o := search.DefaultOptions()
			o.DocumentID = d1.String()
			return o
		}(), search.TypeSingleDocument},
		{func() search.Options {
			o := search.DefaultOptions()
			o.DocumentID = d1.String()
			o.DocumentIDs = []string{d1.String(), d2.String()}
			return o
		}(), search.TypeMultipleDocuments},
	}
	for _, tc := range cases {
		resp, err := engine.Search(ctx, search.Request{Query: "towels", HotelID: hotel.String(), Options: tc.opts})
		require.NoError(t, err)
		assert.Equal(t, tc.want, resp.SearchType)
		assert.NotEmpty(t, resp.Results)
		for _, r := range resp.Results {
			assert.Nil(t, r.Chunk)
			require.NotNil(t, r.Document)
			require.NotNil(t, r.Document.Similarity)
		}
	}

	resp, err := engine.Search(ctx, search.Request{
		Query:   "towels",
		HotelID: hotel.String(),
		Options: func() search.Options {
			o := search.DefaultOptions()
			o.DocumentID = d2.String()
			return o
		}(),
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, d2, resp.Results[0].DocumentID())
}

func TestNoCrossHotelLeakage(t *testing.T) {
	words := []string{"breakfast", "pool", "spa", "towels", "parking", "wifi", "checkout", "gym", "lobby", "bar", "shuttle", "laundry"}
	rng := rand.New(rand.NewSource(42))
	sentence := func(n int) string {
		s := ""
		for i := 0; i < n; i++ {
			s += words[rng.Intn(len(words))] + " "
		}
		return s
	}

	emb := searchtest.NewEmbedder()
	store := searchtest.NewStore()
	hotels := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, h := range hotels {
		for d := 0; d < 6; d++ {
			docID := uuid.New()
			content := sentence(8)
			store.AddDocument(searchtest.Document{
				ID: docID, HotelID: h, Title: "doc", Content: content,
				Processed: rng.Intn(5) != 0, CreatedAt: base.Add(time.Duration(rng.Intn(1000)) * time.Minute),
				Embedding: emb.Vector(content),
			})
			chunks := rng.Intn(4)
			for c := 0; c < chunks; c++ {
				text := sentence(5)
				store.AddChunk(searchtest.Chunk{DocumentID: docID, Index: c, Content: text, Embedding: emb.Vector(text)})
			}
		}
	}

	engine := search.NewEngine(nil, emb, store)
	for i := 0; i < 60; i++ {
		h := hotels[rng.Intn(len(hotels))]
		opts := search.DefaultOptions()
		opts.Limit = 1 + rng.Intn(10)
		opts.MatchThreshold = rng.Float64() * 0.3
		opts.UseChunks = rng.Intn(3) != 0
		resp, err := engine.Search(context.Background(), search.Request{Query: sentence(2), HotelID: h.String(), Options: opts})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(resp.Results), opts.Limit)
		for _, r := range resp.Results {
			assert.Equal(t, h, r.HotelID())
			assert.GreaterOrEqual(t, r.Score(), opts.MatchThreshold)
		}
	}
}

func TestRepeatedSearchIsIdempotent(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		text := fmt.Sprintf("Breakfast buffet option %d includes pastries", i)
		f.store.AddChunk(searchtest.Chunk{DocumentID: f.doc, Index: i + 1, Content: text, Embedding: f.emb.Vector(text)})
	}

	req := f.request("breakfast pastries")
	first, err := f.engine.Search(context.Background(), req)
	require.NoError(t, err)
	second, err := f.engine.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLimitIsEnforced(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 80; i++ {
		text := fmt.Sprintf("breakfast note %d", i)
		f.store.AddChunk(searchtest.Chunk{DocumentID: f.doc, Index: i + 1, Content: text, Embedding: f.emb.Vector(text)})
	}
	ctx := context.Background()

	for _, tc := range []struct{ limit, want int }{
		{3, 3},
		{0, search.DefaultLimit},
		{-4, search.DefaultLimit},
		{1000, search.DefaultMaxLimit},
	} {
		resp, err := f.engine.Search(ctx, f.request("breakfast", func(o *search.Options) {
			o.Limit = tc.limit
			o.MatchThreshold = 0
		}))
		require.NoError(t, err)
		assert.Len(t, resp.Results, tc.want, "limit=%d", tc.limit)
		assert.Equal(t, tc.want, resp.Count)
	}
}

func TestChunkFailureFallsBackToDocuments(t *testing.T) {
	f := newFixture(t)
	f.store.ChunkErr = errors.New("chunk table locked")

	resp, err := f.engine.Search(context.Background(), f.request("breakfast hours"))
	require.NoError(t, err)
	assert.Equal(t, search.TypeAllDocuments, resp.SearchType)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, f.doc, resp.Results[0].DocumentID())
}

func TestDocumentFailureIsBackendError(t *testing.T) {
	f := newFixture(t)
	f.store.ChunkErr = errors.New("chunk table locked")
	f.store.DocumentErr = errors.New("connection reset")

	_, err := f.engine.Search(context.Background(), f.request("breakfast hours"))
	require.Error(t, err)
	assert.ErrorIs(t, err, search.ErrSearchBackend)
	var be *search.SearchBackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, string(search.TypeAllDocuments), be.Strategy)
}

func TestChunkSuccessSkipsDocumentFailure(t *testing.T) {
	f := newFixture(t)
	f.store.DocumentErr = errors.New("never reached")

	resp, err := f.engine.Search(context.Background(), f.request("breakfast hours"))
	require.NoError(t, err)
	assert.Equal(t, search.TypeRAGChunks, resp.SearchType)
}

func TestDisabledChunksGoStraightToDocuments(t *testing.T) {
	f := newFixture(t)
	f.store.ChunkErr = errors.New("must not be called")

	resp, err := f.engine.Search(context.Background(), f.request("breakfast hours", func(o *search.Options) {
		o.UseChunks = false
		o.DocumentID = f.doc.String()
	}))
	require.NoError(t, err)
	assert.Equal(t, search.TypeSingleDocument, resp.SearchType)
	assert.False(t, resp.UseChunks)
	require.NotNil(t, resp.DocumentID)
	assert.Equal(t, f.doc.String(), *resp.DocumentID)
	require.Len(t, resp.Results, 1)
	assert.NotNil(t, resp.Results[0].Document)
}

func TestBudgetExceededIsTimeout(t *testing.T) {
	f := newFixture(t, search.WithTimeout(30*time.Millisecond))
	f.store.Delay = time.Second

	start := time.Now()
	_, err := f.engine.Search(context.Background(), f.request("breakfast hours"))
	require.Error(t, err)
	assert.ErrorIs(t, err, search.ErrSearchTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestModelUnavailablePropagates(t *testing.T) {
	f := newFixture(t)
	f.emb.Err = &embedding.ModelUnavailableError{Model: "m", Err: errors.New("no weights")}

	_, err := f.engine.Search(context.Background(), f.request("breakfast hours"))
	assert.ErrorIs(t, err, embedding.ErrModelUnavailable)
	assert.Zero(t, f.store.Calls())
}

func TestEmptyQueryListsProcessedDocumentsNewestFirst(t *testing.T) {
	f := newFixture(t)
	newer := uuid.New()
	f.store.AddDocument(searchtest.Document{ID: newer, HotelID: f.hotel, Title: "Spa", Processed: true, CreatedAt: base.Add(time.Hour)})
	f.store.AddDocument(searchtest.Document{HotelID: f.hotel, Title: "Draft", Processed: false, CreatedAt: base.Add(2 * time.Hour)})
	f.store.AddDocument(searchtest.Document{HotelID: f.hotel, Title: "Old", Processed: true, Archived: true, CreatedAt: base.Add(3 * time.Hour)})
	f.store.AddDocument(searchtest.Document{HotelID: uuid.New(), Title: "Other hotel", Processed: true, CreatedAt: base})

	resp, err := f.engine.Search(context.Background(), f.request("   "))
	require.NoError(t, err)
	assert.Equal(t, search.TypeAllDocuments, resp.SearchType)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, newer, resp.Results[0].DocumentID())
	assert.Equal(t, f.doc, resp.Results[1].DocumentID())
	assert.Nil(t, resp.Results[0].Document.Similarity)
	assert.Zero(t, f.emb.Calls())

	scoped, err := f.engine.Search(context.Background(), f.request("", func(o *search.Options) {
		o.DocumentIDs = []string{f.doc.String()}
	}))
	require.NoError(t, err)
	assert.Equal(t, search.TypeMultipleDocuments, scoped.SearchType)
	require.Len(t, scoped.Results, 1)
	assert.Equal(t, []string{f.doc.String()}, scoped.DocumentIDs)
}

func TestUnprocessedDocumentChunksAreExcluded(t *testing.T) {
	f := newFixture(t)
	draft := uuid.New()
	f.store.AddDocument(searchtest.Document{ID: draft, HotelID: f.hotel, Title: "Draft", Processed: false, CreatedAt: base})
	f.store.AddChunk(searchtest.Chunk{DocumentID: draft, Content: "breakfast hours", Embedding: f.emb.Vector("breakfast hours")})

	resp, err := f.engine.Search(context.Background(), f.request("breakfast hours"))
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.NotEqual(t, draft, r.DocumentID())
	}
}

func TestEqualScoresPreferOlderDocumentThenChunkIndex(t *testing.T) {
	f := newFixture(t)
	older, newer := uuid.New(), uuid.New()
	f.store.AddDocument(searchtest.Document{ID: newer, HotelID: f.hotel, Title: "B", Processed: true, CreatedAt: base.Add(time.Hour)})
	f.store.AddDocument(searchtest.Document{ID: older, HotelID: f.hotel, Title: "A", Processed: true, CreatedAt: base.Add(-time.Hour)})
	text := "valet parking"
	vec := f.emb.Vector(text)
	f.store.AddChunk(searchtest.Chunk{DocumentID: newer, Index: 0, Content: text, Embedding: vec})
	f.store.AddChunk(searchtest.Chunk{DocumentID: older, Index: 3, Content: text, Embedding: vec})
	f.store.AddChunk(searchtest.Chunk{DocumentID: older, Index: 1, Content: text, Embedding: vec})

	resp, err := f.engine.Search(context.Background(), f.request(text))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(resp.Results), 3)
	got := resp.Results[:3]
	assert.Equal(t, older, got[0].DocumentID())
	assert.Equal(t, 1, got[0].Chunk.ChunkIndex)
	assert.Equal(t, older, got[1].DocumentID())
	assert.Equal(t, 3, got[1].Chunk.ChunkIndex)
	assert.Equal(t, newer, got[2].DocumentID())
}

type stubIndex struct {
	rows  []search.ChunkResult
	err   error
	calls int
}

func (s *stubIndex) SearchChunks(context.Context, search.Query) ([]search.ChunkResult, error) {
	s.calls++
	return s.rows, s.err
}

func TestChunkIndexTierPrecedesStore(t *testing.T) {
	hit := search.ChunkResult{ChunkID: uuid.New(), ChunkIndex: 0, Content: "from index", Similarity: 0.8}
	idx := &stubIndex{}
	f := newFixture(t, search.WithChunkIndex(idx))
	hit.HotelID = f.hotel
	hit.DocumentID = f.doc
	idx.rows = []search.ChunkResult{hit}
	f.store.ChunkErr = errors.New("store must not be consulted")

	resp, err := f.engine.Search(context.Background(), f.request("breakfast hours"))
	require.NoError(t, err)
	assert.Equal(t, search.TypeRAGChunks, resp.SearchType)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "from index", resp.Results[0].Chunk.Content)
	assert.Equal(t, 1, idx.calls)
}

func TestChunkIndexFailureFallsBackToStore(t *testing.T) {
	idx := &stubIndex{err: errors.New("qdrant down")}
	f := newFixture(t, search.WithChunkIndex(idx))

	resp, err := f.engine.Search(context.Background(), f.request("breakfast hours"))
	require.NoError(t, err)
	assert.Equal(t, search.TypeRAGChunks, resp.SearchType)
	assert.Equal(t, f.chunk, resp.Results[0].Chunk.ChunkID)
}

func TestResultJSONCarriesType(t *testing.T) {
	f := newFixture(t)
	resp, err := f.engine.Search(context.Background(), f.request("breakfast hours"))
	require.NoError(t, err)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded struct {
		Results []map[string]any `json:"results"`
		Count   int              `json:"count"`
		Type    string           `json:"search_type"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NotEmpty(t, decoded.Results)
	assert.Equal(t, "chunk", decoded.Results[0]["type"])
	assert.Equal(t, f.chunk.String(), decoded.Results[0]["id"])
	assert.Equal(t, breakfastChunk, decoded.Results[0]["content"])
	assert.Equal(t, "rag_chunks", decoded.Type)
}
