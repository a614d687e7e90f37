// Package search answers hotel-scoped semantic queries over document chunks
// and whole documents with an ordered fallback chain.
package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const (
	tierVectorIndex = "vector_index"
	tierPgvector    = "pgvector"
	listingStrategy = "listing"
)

type EngineOption func(*Engine)

func WithChunkIndex(idx ChunkIndex) EngineOption {
	return func(e *Engine) { e.index = idx }
}

func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithMaxLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxLimit = n
		}
	}
}

func WithMetrics(m Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

type Engine struct {
	log      *logger.Logger
	embedder Embedder
	store    Store
	index    ChunkIndex
	metrics  Metrics
	timeout  time.Duration
	maxLimit int
}

func NewEngine(log *logger.Logger, embedder Embedder, store Store, opts ...EngineOption) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{
		log:      log.With("service", "SearchEngine"),
		embedder: embedder,
		store:    store,
		timeout:  DefaultTimeout,
		maxLimit: DefaultMaxLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search validates req, embeds the query and runs the strategy chain.
//
// A missing hotel fails before any collaborator is touched. The model load is
// done before the time budget starts; everything after it must finish within
// the budget or the call fails with SearchTimeoutError.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.HotelID) == "" {
		return nil, &MissingScopeError{}
	}
	scope, err := parseScope(req)
	if err != nil {
		return nil, err
	}
	opts := req.Options
	if math.IsNaN(opts.MatchThreshold) || opts.MatchThreshold < 0 || opts.MatchThreshold > 1 {
		return nil, &InvalidInputError{Field: "match_threshold", Reason: "must be between 0 and 1"}
	}
	limit := e.clampLimit(opts.Limit)
	text := strings.TrimSpace(req.Query)

	resp := &Response{
		Query:       req.Query,
		HotelID:     scope.HotelID.String(),
		DocumentIDs: echoIDs(scope.DocumentIDs),
		Results:     []Result{},
		UseChunks:   opts.UseChunks,
	}
	if scope.DocumentID != nil {
		s := scope.DocumentID.String()
		resp.DocumentID = &s
	}

	if text != "" {
		if err := e.embedder.Warm(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	budgetCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		searchType SearchType
		results    []Result
	)
	if text == "" {
		searchType = documentSearchType(scope)
		results, err = e.list(budgetCtx, scope, limit)
	} else {
		searchType, results, err = e.search(budgetCtx, scope, text, opts, limit)
	}
	if err != nil {
		e.observe(searchType, "error", start)
		return nil, err
	}

	scored := text != ""
	results = e.validate(scope, results, scored, opts.MatchThreshold)
	if scored {
		rank(results)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []Result{}
	}

	resp.Results = results
	resp.Count = len(results)
	resp.SearchType = searchType
	outcome := "ok"
	if len(results) == 0 {
		outcome = "empty"
	}
	e.observe(searchType, outcome, start)
	return resp, nil
}

func (e *Engine) search(ctx context.Context, scope Scope, text string, opts Options, limit int) (SearchType, []Result, error) {
	docType := documentSearchType(scope)

	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		if terr := e.timeoutError(ctx); terr != nil {
			return docType, nil, terr
		}
		return docType, nil, err
	}

	q := Query{Scope: scope, Embedding: vec, Threshold: opts.MatchThreshold, Limit: limit}

	strategies := make([]Strategy, 0, 2)
	if opts.UseChunks {
		strategies = append(strategies, e.chunkStrategy())
	}
	strategies = append(strategies, e.documentStrategy(docType))

	out, err := FirstNonEmpty(ctx, q, strategies...)
	for _, f := range out.Recovered {
		e.log.Warn("search strategy failed, falling back",
			"strategy", f.Strategy,
			"hotel_id", scope.HotelID.String(),
			"error", f.Err,
		)
	}
	if terr := e.timeoutError(ctx); terr != nil {
		return SearchType(out.Strategy), nil, terr
	}
	if err != nil {
		return SearchType(out.Strategy), nil, &SearchBackendError{Strategy: out.Strategy, Err: err}
	}
	if out.Strategy == "" {
		out.Strategy = string(docType)
	}
	return SearchType(out.Strategy), out.Results, nil
}

func (e *Engine) list(ctx context.Context, scope Scope, limit int) ([]Result, error) {
	docs, err := e.store.ListDocuments(ctx, scope, limit)
	if err != nil {
		if terr := e.timeoutError(ctx); terr != nil {
			return nil, terr
		}
		return nil, &SearchBackendError{Strategy: listingStrategy, Err: err}
	}
	return documentHits(docs), nil
}

// chunkStrategy consults the approximate index first, when there is one, and
// then the store. Its errors never reach the caller: the document strategy
// follows it.
func (e *Engine) chunkStrategy() Strategy {
	tiers := make([]Strategy, 0, 2)
	if e.index != nil {
		tiers = append(tiers, Strategy{Name: tierVectorIndex, Run: func(ctx context.Context, q Query) ([]Result, error) {
			rows, err := e.index.SearchChunks(ctx, q)
			return chunkHits(rows), err
		}})
	}
	tiers = append(tiers, Strategy{Name: tierPgvector, Run: func(ctx context.Context, q Query) ([]Result, error) {
		rows, err := e.store.SearchChunks(ctx, q)
		return chunkHits(rows), err
	}})

	return Strategy{
		Name: string(TypeRAGChunks),
		Run: func(ctx context.Context, q Query) ([]Result, error) {
			out, err := FirstNonEmpty(ctx, q, tiers...)
			for _, f := range out.Recovered {
				e.log.Warn("chunk tier failed", "tier", f.Strategy, "error", f.Err)
			}
			return out.Results, err
		},
	}
}

func (e *Engine) documentStrategy(t SearchType) Strategy {
	run := func(ctx context.Context, q Query) ([]Result, error) {
		rows, err := e.store.SearchDocuments(ctx, q)
		return documentHits(rows), err
	}
	if t == TypeMultipleDocuments {
		run = func(ctx context.Context, q Query) ([]Result, error) {
			rows, err := e.store.SearchDocumentsByIDs(ctx, q)
			return documentHits(rows), err
		}
	}
	return Strategy{Name: string(t), Run: run}
}

// validate drops rows outside the hotel scope and, for similarity searches,
// rows below the threshold. A store returning such rows is a bug; it is
// logged rather than surfaced.
func (e *Engine) validate(scope Scope, rows []Result, scored bool, threshold float64) []Result {
	out := rows[:0]
	for _, r := range rows {
		if r.Chunk == nil && r.Document == nil {
			continue
		}
		if r.HotelID() != scope.HotelID {
			e.log.Error("search store returned row outside hotel scope",
				"hotel_id", scope.HotelID.String(),
				"row_hotel_id", r.HotelID().String(),
				"document_id", r.DocumentID().String(),
			)
			continue
		}
		if scored && r.Score() < threshold {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (e *Engine) timeoutError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &SearchTimeoutError{Budget: e.timeout, Err: ctx.Err()}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return nil
}

func (e *Engine) clampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > e.maxLimit {
		return e.maxLimit
	}
	return n
}

func (e *Engine) observe(t SearchType, outcome string, start time.Time) {
	if e.metrics == nil {
		return
	}
	if t == "" {
		t = "unknown"
	}
	e.metrics.ObserveSearch(string(t), outcome, time.Since(start))
}

func documentSearchType(scope Scope) SearchType {
	switch {
	case len(scope.DocumentIDs) > 0:
		return TypeMultipleDocuments
	case scope.DocumentID != nil:
		return TypeSingleDocument
	default:
		return TypeAllDocuments
	}
}

func parseScope(req Request) (Scope, error) {
	var scope Scope
	hotelID, err := uuid.Parse(strings.TrimSpace(req.HotelID))
	if err != nil || hotelID == uuid.Nil {
		return scope, &InvalidInputError{Field: "hotel_id", Reason: "must be a UUID"}
	}
	scope.HotelID = hotelID

	if raw := strings.TrimSpace(req.Options.DocumentID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return scope, &InvalidInputError{Field: "document_id", Reason: "must be a UUID"}
		}
		scope.DocumentID = &id
	}

	seen := make(map[uuid.UUID]struct{}, len(req.Options.DocumentIDs))
	for i, raw := range req.Options.DocumentIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return scope, &InvalidInputError{Field: fmt.Sprintf("document_ids[%d]", i), Reason: "must be a UUID"}
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		scope.DocumentIDs = append(scope.DocumentIDs, id)
	}
	return scope, nil
}

// rank orders by score descending. Ties go to the older document, then the
// lower chunk index, then the lower id.
func rank(rows []Result) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if sa, sb := a.Score(), b.Score(); sa != sb {
			return sa > sb
		}
		ca, cb := createdAt(a), createdAt(b)
		if !ca.Equal(cb) {
			return ca.Before(cb)
		}
		ia, ib := chunkIndex(a), chunkIndex(b)
		if ia != ib {
			return ia < ib
		}
		ida, idb := resultID(a), resultID(b)
		return bytes.Compare(ida[:], idb[:]) < 0
	})
}

func createdAt(r Result) time.Time {
	if r.Chunk != nil {
		return r.Chunk.CreatedAt
	}
	return r.Document.CreatedAt
}

func chunkIndex(r Result) int {
	if r.Chunk != nil {
		return r.Chunk.ChunkIndex
	}
	return 0
}

func resultID(r Result) uuid.UUID {
	if r.Chunk != nil {
		return r.Chunk.ChunkID
	}
	return r.Document.DocumentID
}

func chunkHits(rows []ChunkResult) []Result {
	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		out = append(out, ChunkHit(r))
	}
	return out
}

func documentHits(rows []DocumentResult) []Result {
	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		out = append(out, DocumentHit(r))
	}
	return out
}

func echoIDs(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
