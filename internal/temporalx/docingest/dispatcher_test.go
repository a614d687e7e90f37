package docingest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

func TestDispatcherStartsWorkflow(t *testing.T) {
	c := &mocks.Client{}
	id := uuid.New()

	c.On("ExecuteWorkflow",
		mock.Anything,
		mock.MatchedBy(func(o temporalsdkclient.StartWorkflowOptions) bool {
			return o.ID == WorkflowID(id) && o.TaskQueue == "concierge-ingest"
		}),
		WorkflowName,
		Input{DocumentID: id.String()},
	).Return(&mocks.WorkflowRun{}, nil).Once()

	d, err := NewDispatcher(logger.Nop(), c, "concierge-ingest")
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(context.Background(), id))
	c.AssertExpectations(t)
}

func TestDispatcherWrapsStartError(t *testing.T) {
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("namespace not found")).Once()

	d, err := NewDispatcher(logger.Nop(), c, "concierge-ingest")
	require.NoError(t, err)
	err = d.Dispatch(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "namespace not found")
}

func TestNewDispatcherValidates(t *testing.T) {
	_, err := NewDispatcher(logger.Nop(), nil, "q")
	assert.Error(t, err)
	_, err = NewDispatcher(logger.Nop(), &mocks.Client{}, "")
	assert.Error(t, err)
}
