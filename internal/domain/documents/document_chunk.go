package documents

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// DocumentChunk rows are written once per processing run and replaced as a set.
type DocumentChunk struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_document_chunk_position" json:"document_id"`
	Document   *Document `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"-"`

	ChunkIndex int             `gorm:"column:chunk_index;not null;uniqueIndex:idx_document_chunk_position" json:"chunk_index"`
	Content    string          `gorm:"column:content;type:text;not null" json:"content"`
	Embedding  pgvector.Vector `gorm:"column:embedding;type:vector(384);not null" json:"-"`

	Metadata datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (DocumentChunk) TableName() string { return "document_chunk" }
