package documents

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EmbeddingDim is the width of every stored and query vector.
const EmbeddingDim = 384

type Document struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	HotelID uuid.UUID `gorm:"type:uuid;not null;index" json:"hotel_id"`

	Title       string  `gorm:"column:title;not null" json:"title"`
	Description *string `gorm:"column:description;type:text" json:"description,omitempty"`
	FileType    string  `gorm:"column:file_type;index" json:"file_type"`
	FileName    string  `gorm:"column:file_name" json:"file_name"`
	StorageKey  string  `gorm:"column:storage_key" json:"storage_key"`
	StorageURL  string  `gorm:"column:storage_url" json:"storage_url"`

	// Extracted plain text, kept for snippets and reprocessing.
	Content   string           `gorm:"column:content;type:text" json:"-"`
	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector(384)" json:"-"`

	Processed       bool   `gorm:"column:processed;not null;default:false;index" json:"processed"`
	ProcessingError string `gorm:"column:processing_error;type:text" json:"processing_error,omitempty"`
	ChunkCount      int    `gorm:"column:chunk_count;not null;default:0" json:"chunk_count"`

	Metadata datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Document) TableName() string { return "document" }
