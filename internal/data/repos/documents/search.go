package documents

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/platform/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const snippetRunes = 300

// hnswEfSearch widens the HNSW candidate list for filtered scans. The hotel
// and threshold predicates are applied after the index, so the pgvector
// default of 40 can leave a small hotel with no rows in a large table.
const hnswEfSearch = 200

type ChunkQuery struct {
	HotelID   uuid.UUID
	Embedding []float32
	Threshold float64
	Limit     int
}

type DocumentQuery struct {
	HotelID uuid.UUID
	// DocumentIDs restricts the search when non-empty.
	DocumentIDs []uuid.UUID
	Embedding   []float32
	Threshold   float64
	Limit       int
}

type ChunkMatch struct {
	ChunkID           uuid.UUID `gorm:"column:chunk_id"`
	DocumentID        uuid.UUID `gorm:"column:document_id"`
	HotelID           uuid.UUID `gorm:"column:hotel_id"`
	DocumentTitle     string    `gorm:"column:document_title"`
	DocumentCreatedAt time.Time `gorm:"column:document_created_at"`
	ChunkIndex        int       `gorm:"column:chunk_index"`
	Content           string    `gorm:"column:content"`
	Similarity        float64   `gorm:"column:similarity"`
}

type DocumentMatch struct {
	DocumentID  uuid.UUID `gorm:"column:document_id"`
	HotelID     uuid.UUID `gorm:"column:hotel_id"`
	Title       string    `gorm:"column:title"`
	Description *string   `gorm:"column:description"`
	FileType    string    `gorm:"column:file_type"`
	StorageURL  string    `gorm:"column:storage_url"`
	Snippet     string    `gorm:"column:snippet"`
	// Similarity is NULL for listings.
	Similarity *float64  `gorm:"column:similarity"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// SearchRepo runs the pgvector similarity queries. Every query is limited to
// one hotel and to processed, non-archived documents. Equal distances are
// ordered by document age, then chunk index, then id.
type SearchRepo interface {
	SearchChunks(dbc dbctx.Context, q ChunkQuery) ([]ChunkMatch, error)
	SearchDocuments(dbc dbctx.Context, q DocumentQuery) ([]DocumentMatch, error)
	ListDocuments(dbc dbctx.Context, hotelID uuid.UUID, documentIDs []uuid.UUID, limit int) ([]DocumentMatch, error)
	// LoadChunkMatches scores the given chunks exactly, dropping any that are
	// outside the hotel or belong to unprocessed documents.
	LoadChunkMatches(dbc dbctx.Context, hotelID uuid.UUID, chunkIDs []uuid.UUID, embedding []float32) ([]ChunkMatch, error)
}

type searchRepo struct {
	db  *gorm.DB
	log *logger.Logger

	versionOnce sync.Once
	iterative   bool
}

func NewSearchRepo(db *gorm.DB, baseLog *logger.Logger) SearchRepo {
	return &searchRepo{db: db, log: baseLog.With("repo", "SearchRepo")}
}

const chunkSelect = `
SELECT c.id AS chunk_id,
       c.document_id,
       d.hotel_id,
       d.title AS document_title,
       d.created_at AS document_created_at,
       c.chunk_index,
       c.content,
       1 - (c.embedding <=> @vec) AS similarity
FROM document_chunk c
JOIN document d ON d.id = c.document_id
WHERE d.hotel_id = @hotel
  AND d.processed = TRUE
  AND d.deleted_at IS NULL`

const chunkOrder = `
ORDER BY c.embedding <=> @vec ASC, d.created_at ASC, c.chunk_index ASC, c.id ASC`

func (r *searchRepo) SearchChunks(dbc dbctx.Context, q ChunkQuery) ([]ChunkMatch, error) {
	out := []ChunkMatch{}
	if q.HotelID == uuid.Nil || len(q.Embedding) == 0 {
		return out, nil
	}
	sql := chunkSelect + `
  AND 1 - (c.embedding <=> @vec) >= @threshold` + chunkOrder + `
LIMIT @limit`
	err := r.annScan(dbc, func(tx *gorm.DB) error {
		return tx.Raw(sql, map[string]interface{}{
			"vec":       pgvector.NewVector(q.Embedding),
			"hotel":     q.HotelID,
			"threshold": q.Threshold,
			"limit":     clampLimit(q.Limit),
		}).Scan(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *searchRepo) LoadChunkMatches(dbc dbctx.Context, hotelID uuid.UUID, chunkIDs []uuid.UUID, embedding []float32) ([]ChunkMatch, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := []ChunkMatch{}
	if hotelID == uuid.Nil || len(chunkIDs) == 0 || len(embedding) == 0 {
		return out, nil
	}
	sql := chunkSelect + `
  AND c.id IN @ids` + chunkOrder
	err := transaction.WithContext(dbc.Ctx).Raw(sql, map[string]interface{}{
		"vec":   pgvector.NewVector(embedding),
		"hotel": hotelID,
		"ids":   chunkIDs,
	}).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *searchRepo) SearchDocuments(dbc dbctx.Context, q DocumentQuery) ([]DocumentMatch, error) {
	out := []DocumentMatch{}
	if q.HotelID == uuid.Nil || len(q.Embedding) == 0 {
		return out, nil
	}
	args := map[string]interface{}{
		"vec":       pgvector.NewVector(q.Embedding),
		"hotel":     q.HotelID,
		"threshold": q.Threshold,
		"limit":     clampLimit(q.Limit),
		"snippet":   snippetRunes,
	}
	var sb strings.Builder
	sb.WriteString(`
SELECT d.id AS document_id,
       d.hotel_id,
       d.title,
       d.description,
       d.file_type,
       d.storage_url,
       LEFT(COALESCE(d.content, ''), @snippet) AS snippet,
       1 - (d.embedding <=> @vec) AS similarity,
       d.created_at
FROM document d
WHERE d.hotel_id = @hotel
  AND d.processed = TRUE
  AND d.deleted_at IS NULL
  AND d.embedding IS NOT NULL`)
	if len(q.DocumentIDs) > 0 {
		sb.WriteString(`
  AND d.id IN @ids`)
		args["ids"] = q.DocumentIDs
	}
	sb.WriteString(`
  AND 1 - (d.embedding <=> @vec) >= @threshold
ORDER BY d.embedding <=> @vec ASC, d.created_at ASC, d.id ASC
LIMIT @limit`)

	err := r.annScan(dbc, func(tx *gorm.DB) error {
		return tx.Raw(sb.String(), args).Scan(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *searchRepo) ListDocuments(dbc dbctx.Context, hotelID uuid.UUID, documentIDs []uuid.UUID, limit int) ([]DocumentMatch, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := []DocumentMatch{}
	if hotelID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.Document{}).
		Select(`id AS document_id, hotel_id, title, description, file_type, storage_url,
			LEFT(COALESCE(content, ''), ?) AS snippet, NULL::float8 AS similarity, created_at`, snippetRunes).
		Where("hotel_id = ? AND processed = ?", hotelID, true)
	if len(documentIDs) > 0 {
		q = q.Where("id IN ?", documentIDs)
	}
	if err := q.Order("created_at DESC, id ASC").Limit(clampLimit(limit)).Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// annScan runs fn in a transaction (a savepoint when dbc already carries one)
// whose HNSW scans use a wider candidate list and, on pgvector 0.8 or later,
// keep scanning in exact distance order until enough rows pass the filters.
// The settings are SET LOCAL and end with the enclosing transaction.
func (r *searchRepo) annScan(dbc dbctx.Context, fn func(tx *gorm.DB) error) error {
	base := dbc.Tx
	if base == nil {
		base = r.db
	}
	return base.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range r.scanSettings(tx) {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("hnsw scan settings: %w", err)
			}
		}
		return fn(tx)
	})
}

func (r *searchRepo) scanSettings(tx *gorm.DB) []string {
	r.versionOnce.Do(func() {
		var version string
		err := tx.Raw(`SELECT extversion FROM pg_extension WHERE extname = 'vector'`).Scan(&version).Error
		if err != nil {
			r.log.Warn("pgvector version lookup failed; iterative index scans disabled", "error", err)
			return
		}
		r.iterative = versionAtLeast(version, 0, 8)
		r.log.Debug("pgvector detected", "version", version, "iterative_scan", r.iterative)
	})
	return hnswScanSettings(r.iterative)
}

func hnswScanSettings(iterative bool) []string {
	stmts := []string{fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", hnswEfSearch)}
	if iterative {
		stmts = append(stmts, "SET LOCAL hnsw.iterative_scan = strict_order")
	}
	return stmts
}

// versionAtLeast compares the major.minor prefix of an extension version.
func versionAtLeast(version string, major, minor int) bool {
	parts := strings.SplitN(strings.TrimSpace(version), ".", 3)
	if len(parts) < 2 {
		return false
	}
	gotMajor, err1 := strconv.Atoi(parts[0])
	gotMinor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return false
	}
	if gotMajor != major {
		return gotMajor > major
	}
	return gotMinor >= minor
}

func clampLimit(n int) int {
	if n <= 0 {
		return 5
	}
	return n
}
