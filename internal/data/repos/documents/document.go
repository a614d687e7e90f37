package documents

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/platform/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type DocumentRepo interface {
	Create(dbc dbctx.Context, doc *types.Document) (*types.Document, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Document, error)
	GetForHotel(dbc dbctx.Context, hotelID, id uuid.UUID) (*types.Document, error)
	ListByHotel(dbc dbctx.Context, hotelID uuid.UUID, limit, offset int) ([]*types.Document, error)
	ListUnprocessed(dbc dbctx.Context, hotelID uuid.UUID, limit int) ([]*types.Document, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	MarkProcessed(dbc dbctx.Context, id uuid.UUID, content string, embedding []float32, chunkCount int) error
	MarkFailed(dbc dbctx.Context, id uuid.UUID, reason string) error
	SoftDelete(dbc dbctx.Context, hotelID, id uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Create(dbc dbctx.Context, doc *types.Document) (*types.Document, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if doc == nil {
		return nil, errors.New("document required")
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if err := transaction.WithContext(dbc.Ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

// GetByID returns nil, nil when the document does not exist or is archived.
func (r *documentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Document, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var doc types.Document
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == uuid.Nil {
		return nil, nil
	}
	return &doc, nil
}

func (r *documentRepo) GetForHotel(dbc dbctx.Context, hotelID, id uuid.UUID) (*types.Document, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if hotelID == uuid.Nil || id == uuid.Nil {
		return nil, nil
	}
	var doc types.Document
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND hotel_id = ?", id, hotelID).
		Limit(1).
		Find(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == uuid.Nil {
		return nil, nil
	}
	return &doc, nil
}

func (r *documentRepo) ListByHotel(dbc dbctx.Context, hotelID uuid.UUID, limit, offset int) ([]*types.Document, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Document
	if hotelID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("hotel_id = ?", hotelID).
		Order("created_at DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListUnprocessed returns the oldest unprocessed documents first. A nil
// hotelID lists across hotels.
func (r *documentRepo) ListUnprocessed(dbc dbctx.Context, hotelID uuid.UUID, limit int) ([]*types.Document, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("processed = ?", false).
		Order("created_at ASC, id ASC")
	if hotelID != uuid.Nil {
		q = q.Where("hotel_id = ?", hotelID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.Document
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Document{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *documentRepo) MarkProcessed(dbc dbctx.Context, id uuid.UUID, content string, embedding []float32, chunkCount int) error {
	updates := map[string]interface{}{
		"content":          content,
		"chunk_count":      chunkCount,
		"processed":        true,
		"processing_error": "",
	}
	if len(embedding) > 0 {
		updates["embedding"] = pgvector.NewVector(embedding)
	} else {
		updates["embedding"] = gorm.Expr("NULL")
	}
	return r.UpdateFields(dbc, id, updates)
}

// MarkFailed records reason without touching processed: a document that
// already has a committed chunk set stays searchable on it.
func (r *documentRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, reason string) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{"processing_error": reason})
}

func (r *documentRepo) SoftDelete(dbc dbctx.Context, hotelID, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if hotelID == uuid.Nil || id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id = ? AND hotel_id = ?", id, hotelID).
		Delete(&types.Document{}).Error
}
