package docingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

// Dispatcher starts one document_ingest workflow per document.
type Dispatcher struct {
	log       *logger.Logger
	client    temporalsdkclient.Client
	taskQueue string
}

func NewDispatcher(log *logger.Logger, c temporalsdkclient.Client, taskQueue string) (*Dispatcher, error) {
	if c == nil {
		return nil, fmt.Errorf("docingest: temporal client is not configured")
	}
	if taskQueue == "" {
		return nil, fmt.Errorf("docingest: task queue is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{log: log.With("dispatcher", "temporal"), client: c, taskQueue: taskQueue}, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, documentID uuid.UUID) error {
	wfID := WorkflowID(documentID)
	_, err := d.client.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                       wfID,
		TaskQueue:                d.taskQueue,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}, WorkflowName, Input{DocumentID: documentID.String()})
	if err != nil {
		return fmt.Errorf("start %s: %w", wfID, err)
	}
	d.log.Debug("document ingest workflow started", "workflow_id", wfID, "task_queue", d.taskQueue)
	return nil
}
