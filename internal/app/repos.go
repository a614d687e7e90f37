package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/concierge-backend/internal/data/repos"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type Repos struct {
	Document      repos.DocumentRepo
	DocumentChunk repos.DocumentChunkRepo
	Search        repos.SearchRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Document:      repos.NewDocumentRepo(db, log),
		DocumentChunk: repos.NewDocumentChunkRepo(db, log),
		Search:        repos.NewSearchRepo(db, log),
	}
}
