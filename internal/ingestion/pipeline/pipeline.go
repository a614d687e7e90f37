package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/concierge-backend/internal/data/db"
	"github.com/yungbote/concierge-backend/internal/data/repos/documents"
	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/ingestion/extractor"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/envutil"
	"github.com/yungbote/concierge-backend/internal/platform/gcp"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/platform/qdrant"
)

const (
	dataQualityStage = "document_ingest"
	persistAttempts  = 3
)

var (
	ErrDocumentNotFound = errors.New("ingest: document not found")
	ErrFileTooLarge     = errors.New("ingest: file exceeds download limit")
)

type Embedder interface {
	Model() string
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// TxRunner runs fn inside one database transaction.
type TxRunner func(ctx context.Context, fn func(dbc dbctx.Context) error) error

func GormTx(gdb *gorm.DB) TxRunner {
	return func(ctx context.Context, fn func(dbc dbctx.Context) error) error {
		return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(dbctx.Context{Ctx: ctx, Tx: tx})
		})
	}
}

type Deps struct {
	Log       *logger.Logger
	Tx        TxRunner
	Documents documents.DocumentRepo
	Chunks    documents.DocumentChunkRepo
	Blobs     gcp.BlobStore
	Extractor *extractor.Extractor
	Embedder  Embedder
	// Optional.
	Vectors    qdrant.VectorStore
	Namespaces func(hotelID uuid.UUID) string
	Metrics    *observability.Metrics
}

type Config struct {
	ChunkSize        int
	ChunkOverlap     int
	BatchSize        int
	Concurrency      int
	MaxDownloadBytes int64
}

func ConfigFromEnv() Config {
	return Config{
		ChunkSize:        envutil.Int("INGEST_CHUNK_SIZE", extractor.DefaultChunkSize),
		ChunkOverlap:     envutil.Int("INGEST_CHUNK_OVERLAP", extractor.DefaultChunkOverlap),
		BatchSize:        envutil.Int("INGEST_EMBED_BATCH_SIZE", 32),
		Concurrency:      envutil.Int("INGEST_EMBED_CONCURRENCY", 4),
		MaxDownloadBytes: int64(envutil.Int("INGEST_MAX_DOWNLOAD_MB", 50)) << 20,
	}
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = extractor.DefaultChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.MaxDownloadBytes <= 0 {
		c.MaxDownloadBytes = 50 << 20
	}
	return c
}

type Summary struct {
	DocumentID      uuid.UUID     `json:"document_id"`
	HotelID         uuid.UUID     `json:"hotel_id"`
	Kind            string        `json:"kind"`
	OCR             bool          `json:"ocr"`
	Pages           int           `json:"pages,omitempty"`
	TextLength      int           `json:"text_length"`
	Chunks          int           `json:"chunks"`
	VectorsUpserted int           `json:"vectors_upserted"`
	VectorsSkipped  bool          `json:"vectors_skipped"`
	Issues          []string      `json:"issues,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Pipeline turns one stored document into persisted chunks with embeddings.
type Pipeline struct {
	log  *logger.Logger
	deps Deps
	cfg  Config
}

func New(deps Deps, cfg Config) (*Pipeline, error) {
	if deps.Tx == nil || deps.Documents == nil || deps.Chunks == nil || deps.Blobs == nil || deps.Extractor == nil || deps.Embedder == nil {
		return nil, fmt.Errorf("ingest pipeline: missing deps")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Vectors != nil && deps.Namespaces == nil {
		return nil, fmt.Errorf("ingest pipeline: vector store requires a namespace func")
	}
	return &Pipeline{
		log:  deps.Log.With("service", "IngestPipeline"),
		deps: deps,
		cfg:  cfg.withDefaults(),
	}, nil
}

// Run processes documentID end to end. A failure before the commit records
// processing_error and leaves processed and the chunk set as they were, so a
// first run stays unprocessed and a failed rerun keeps serving the old chunks.
func (p *Pipeline) Run(ctx context.Context, documentID uuid.UUID) (*Summary, error) {
	started := time.Now()
	ctx, span := observability.StartSpan(ctx, "ingest.document", attribute.String("document_id", documentID.String()))
	defer span.End()

	doc, err := p.deps.Documents.GetByID(dbctx.Context{Ctx: ctx}, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	log := p.log.With("document_id", doc.ID, "hotel_id", doc.HotelID)
	span.SetAttributes(attribute.String("hotel_id", doc.HotelID.String()))

	sum := &Summary{DocumentID: doc.ID, HotelID: doc.HotelID}
	fail := func(stage string, err error) (*Summary, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		p.markFailed(ctx, log, doc.ID, fmt.Sprintf("%s: %v", stage, err))
		p.deps.Metrics.IncIngestDocument("failed")
		return nil, fmt.Errorf("ingest %s: %w", stage, err)
	}

	var data []byte
	if err := p.stage("download", func() error {
		data, err = p.download(ctx, doc.StorageKey)
		return err
	}); err != nil {
		return fail("download", err)
	}

	var ext *extractor.Result
	if err := p.stage("extract", func() error {
		ext, err = p.deps.Extractor.Extract(ctx, extractor.Input{FileName: doc.FileName, ContentType: doc.FileType, Data: data})
		return err
	}); err != nil {
		return fail("extract", err)
	}
	sum.Kind, sum.OCR, sum.Pages = string(ext.Kind), ext.OCR, ext.Pages
	sum.TextLength = len([]rune(ext.Text))
	sum.Issues = append(sum.Issues, ext.Issues...)

	texts := extractor.SplitIntoChunks(ext.Text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)

	var vecs [][]float32
	if err := p.stage("embed", func() error {
		vecs, err = p.embedAll(ctx, texts)
		return err
	}); err != nil {
		return fail("embed", err)
	}

	now := time.Now().UTC()
	chunks := make([]*types.DocumentChunk, 0, len(texts))
	for i, t := range texts {
		chunks = append(chunks, newChunk(doc.ID, i, t, vecs[i], now))
	}
	docVec := meanVector(vecs)
	meta := documentMetadata(doc.Metadata, ext, p.deps.Embedder.Model(), now)

	if err := p.stage("persist", func() error {
		return p.persist(ctx, log, doc.ID, chunks, ext.Text, docVec, meta)
	}); err != nil {
		return fail("persist", err)
	}
	sum.Chunks = len(chunks)

	if err := p.stage("vector_sync", func() error {
		n, err := p.syncVectors(ctx, doc, chunks)
		sum.VectorsUpserted = n
		sum.VectorsSkipped = p.deps.Vectors == nil
		return err
	}); err != nil {
		log.Warn("chunk vector sync failed; search falls back to pgvector", "error", err)
		sum.Issues = append(sum.Issues, observability.IssueVectorSync)
	}

	sum.Duration = time.Since(started)
	observability.ReportDataQuality(ctx, log, dataQualityStage, sum.Issues, map[string]any{
		"document_id": doc.ID.String(),
		"hotel_id":    doc.HotelID.String(),
		"kind":        sum.Kind,
		"chunks":      sum.Chunks,
	})
	p.deps.Metrics.IncIngestDocument("processed")
	log.Info("document processed",
		"kind", sum.Kind,
		"chunks", sum.Chunks,
		"text_length", sum.TextLength,
		"ocr", sum.OCR,
		"vectors_upserted", sum.VectorsUpserted,
		"duration_ms", sum.Duration.Milliseconds(),
	)
	return sum, nil
}

// persist swaps the chunk set and marks the document processed in one
// transaction. Conflicts with a concurrent run of the same document are
// retried on a fresh transaction.
func (p *Pipeline) persist(ctx context.Context, log *logger.Logger, id uuid.UUID, chunks []*types.DocumentChunk, text string, docVec []float32, meta datatypes.JSON) error {
	var err error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		err = p.deps.Tx(ctx, func(dbc dbctx.Context) error {
			if _, err := p.deps.Chunks.ReplaceForDocument(dbc, id, chunks); err != nil {
				return fmt.Errorf("replace chunks: %w", err)
			}
			if err := p.deps.Documents.MarkProcessed(dbc, id, text, docVec, len(chunks)); err != nil {
				return fmt.Errorf("mark processed: %w", err)
			}
			return p.deps.Documents.UpdateFields(dbc, id, map[string]interface{}{"metadata": meta})
		})
		if err == nil || !db.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		log.Warn("persist conflict; retrying", "attempt", attempt, "sqlstate", db.PgCode(err), "error", err)
	}
	return err
}

func (p *Pipeline) stage(name string, fn func() error) error {
	started := time.Now()
	err := fn()
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.deps.Metrics.ObserveIngestStage(name, status, time.Since(started))
	return err
}

func (p *Pipeline) download(ctx context.Context, key string) ([]byte, error) {
	rc, err := p.deps.Blobs.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, p.cfg.MaxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	if int64(len(data)) > p.cfg.MaxDownloadBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrFileTooLarge, p.cfg.MaxDownloadBytes)
	}
	return data, nil
}

// markFailed records the failure even when ctx is already cancelled.
func (p *Pipeline) markFailed(ctx context.Context, log *logger.Logger, id uuid.UUID, reason string) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.deps.Documents.MarkFailed(dbctx.Context{Ctx: wctx}, id, reason); err != nil {
		log.Error("failed to record processing error", "error", err, "reason", reason)
		return
	}
	log.Warn("document processing failed", "reason", reason)
}

func newChunk(documentID uuid.UUID, index int, text string, vec []float32, now time.Time) *types.DocumentChunk {
	return &types.DocumentChunk{
		ID:         uuid.New(),
		DocumentID: documentID,
		ChunkIndex: index,
		Content:    text,
		Embedding:  pgvectorOf(vec),
		Metadata:   datatypes.JSON(mustJSON(map[string]any{"runes": len([]rune(text))})),
		CreatedAt:  now,
	}
}

func documentMetadata(existing datatypes.JSON, ext *extractor.Result, model string, now time.Time) datatypes.JSON {
	meta := map[string]any{}
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &meta)
	}
	meta["extraction"] = map[string]any{
		"kind":            string(ext.Kind),
		"pages":           ext.Pages,
		"ocr":             ext.OCR,
		"detected_title":  ext.Title,
		"issues":          ext.Issues,
		"embedding_model": model,
		"processed_at":    now.Format(time.RFC3339),
	}
	return datatypes.JSON(mustJSON(meta))
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return b
}
