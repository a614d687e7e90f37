package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/concierge-backend/internal/data/repos/documents"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type DocumentRepo = documents.DocumentRepo
type DocumentChunkRepo = documents.DocumentChunkRepo
type SearchRepo = documents.SearchRepo

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return documents.NewDocumentRepo(db, baseLog)
}

func NewDocumentChunkRepo(db *gorm.DB, baseLog *logger.Logger) DocumentChunkRepo {
	return documents.NewDocumentChunkRepo(db, baseLog)
}

func NewSearchRepo(db *gorm.DB, baseLog *logger.Logger) SearchRepo {
	return documents.NewSearchRepo(db, baseLog)
}
