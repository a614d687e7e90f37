package documents

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/platform/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type DocumentChunkRepo interface {
	// ReplaceForDocument deletes the document's chunks and inserts chunks.
	// Callers pass a transaction so the swap is atomic.
	ReplaceForDocument(dbc dbctx.Context, documentID uuid.UUID, chunks []*types.DocumentChunk) ([]*types.DocumentChunk, error)
	GetByDocumentID(dbc dbctx.Context, documentID uuid.UUID) ([]*types.DocumentChunk, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.DocumentChunk, error)
	DeleteByDocumentID(dbc dbctx.Context, documentID uuid.UUID) (int64, error)
}

type documentChunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentChunkRepo(db *gorm.DB, baseLog *logger.Logger) DocumentChunkRepo {
	return &documentChunkRepo{db: db, log: baseLog.With("repo", "DocumentChunkRepo")}
}

func (r *documentChunkRepo) ReplaceForDocument(dbc dbctx.Context, documentID uuid.UUID, chunks []*types.DocumentChunk) ([]*types.DocumentChunk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if documentID == uuid.Nil {
		return []*types.DocumentChunk{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("document_id = ?", documentID).
		Delete(&types.DocumentChunk{}).Error; err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []*types.DocumentChunk{}, nil
	}
	for _, c := range chunks {
		c.DocumentID = documentID
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
	}

	// Keep batches small because Content is large
	const batchSize = 100

	if err := transaction.WithContext(dbc.Ctx).CreateInBatches(chunks, batchSize).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

func (r *documentChunkRepo) GetByDocumentID(dbc dbctx.Context, documentID uuid.UUID) ([]*types.DocumentChunk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DocumentChunk
	if documentID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentChunkRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.DocumentChunk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DocumentChunk
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentChunkRepo) DeleteByDocumentID(dbc dbctx.Context, documentID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if documentID == uuid.Nil {
		return 0, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("document_id = ?", documentID).
		Delete(&types.DocumentChunk{})
	return res.RowsAffected, res.Error
}
