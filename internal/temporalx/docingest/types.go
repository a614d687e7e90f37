package docingest

import (
	"github.com/google/uuid"
)

const (
	WorkflowName    = "document_ingest"
	ActivityProcess = "document_ingest_process"

	// ErrTypePermanent marks activity failures that retrying cannot fix.
	ErrTypePermanent = "DocumentIngestPermanent"
)

type Input struct {
	DocumentID string `json:"document_id"`
}

// WorkflowID is stable per document so a reprocess request attaches to an
// in-flight run instead of racing it.
func WorkflowID(documentID uuid.UUID) string {
	return WorkflowName + ":" + documentID.String()
}
