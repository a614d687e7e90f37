package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const inlineProcessTimeout = 10 * time.Minute

// InlineDispatcher runs the pipeline in-process. In async mode each document
// is processed on its own goroutine, detached from the request context.
type InlineDispatcher struct {
	log   *logger.Logger
	proc  Processor
	async bool
	wg    sync.WaitGroup
}

func NewInlineDispatcher(log *logger.Logger, proc Processor, async bool) *InlineDispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &InlineDispatcher{log: log.With("dispatcher", "inline"), proc: proc, async: async}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, documentID uuid.UUID) error {
	if !d.async {
		_, err := d.proc.Run(ctx, documentID)
		return d.logResult(documentID, err)
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), inlineProcessTimeout)
		defer cancel()
		_, err := d.proc.Run(pctx, documentID)
		_ = d.logResult(documentID, err)
	}()
	return nil
}

// Wait blocks until in-flight async runs finish.
func (d *InlineDispatcher) Wait() { d.wg.Wait() }

// logResult swallows pipeline errors: the pipeline already recorded them on
// the document, so the upload itself still succeeds.
func (d *InlineDispatcher) logResult(documentID uuid.UUID, err error) error {
	if err != nil {
		d.log.Warn("inline document processing failed", "document_id", documentID, "error", err)
	}
	return nil
}
