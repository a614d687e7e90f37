package docingest

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/concierge-backend/internal/ingestion/pipeline"
)

func Workflow(ctx workflow.Context, in Input) (pipeline.Summary, error) {
	var out pipeline.Summary
	if strings.TrimSpace(in.DocumentID) == "" {
		return out, fmt.Errorf("docingest: missing document_id")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        2 * time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypePermanent},
		},
	})

	if err := workflow.ExecuteActivity(ctx, ActivityProcess, in).Get(ctx, &out); err != nil {
		workflow.GetLogger(ctx).Warn("document ingest failed", "document_id", in.DocumentID, "error", err)
		return out, err
	}
	return out, nil
}
