package docingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/concierge-backend/internal/ingestion/extractor"
	"github.com/yungbote/concierge-backend/internal/ingestion/pipeline"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type Processor interface {
	Run(ctx context.Context, documentID uuid.UUID) (*pipeline.Summary, error)
}

type Activities struct {
	Log       *logger.Logger
	Processor Processor
}

func (a *Activities) Process(ctx context.Context, in Input) (pipeline.Summary, error) {
	var out pipeline.Summary
	if a == nil || a.Processor == nil {
		return out, fmt.Errorf("docingest: activity not configured")
	}
	id, err := uuid.Parse(strings.TrimSpace(in.DocumentID))
	if err != nil || id == uuid.Nil {
		return out, temporal.NewNonRetryableApplicationError("docingest: invalid document_id", ErrTypePermanent, err)
	}

	stop := startHeartbeat(ctx)
	defer stop()

	sum, err := a.Processor.Run(ctx, id)
	if err != nil {
		if a.Log != nil {
			a.Log.Warn("document ingest activity failed",
				"document_id", id,
				"attempt", activity.GetInfo(ctx).Attempt,
				"error", err,
			)
		}
		if isPermanent(err) {
			return out, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypePermanent, err)
		}
		return out, err
	}
	if sum != nil {
		out = *sum
	}
	return out, nil
}

func isPermanent(err error) bool {
	return errors.Is(err, pipeline.ErrDocumentNotFound) ||
		errors.Is(err, pipeline.ErrFileTooLarge) ||
		errors.Is(err, extractor.ErrEmptyFile) ||
		errors.Is(err, extractor.ErrUnsupported) ||
		errors.Is(err, extractor.ErrNoText) ||
		errors.Is(err, extractor.ErrTooLarge)
}

func startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
