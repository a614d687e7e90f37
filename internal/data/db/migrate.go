package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/concierge-backend/internal/domain"
)

func EnsureExtensions(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}
	return nil
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Document{},
		&types.DocumentChunk{},
	)
}

// EnsureSearchIndexes creates the ANN and listing indexes the search queries
// rely on.
func EnsureSearchIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_document_chunk_embedding_hnsw
			ON document_chunk USING hnsw (embedding vector_cosine_ops);`,
		`CREATE INDEX IF NOT EXISTS idx_document_embedding_hnsw
			ON document USING hnsw (embedding vector_cosine_ops);`,
		`CREATE INDEX IF NOT EXISTS idx_document_hotel_listing
			ON document (hotel_id, created_at DESC) WHERE deleted_at IS NULL;`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure search index: %w", err)
		}
	}
	return nil
}
