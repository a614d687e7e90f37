package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/concierge-backend/internal/platform/envutil"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/temporalx"
	"github.com/yungbote/concierge-backend/internal/temporalx/docingest"
)

type Runner struct {
	log  *logger.Logger
	cfg  temporalx.Config
	tc   temporalsdkclient.Client
	proc docingest.Processor
}

func NewRunner(log *logger.Logger, cfg temporalx.Config, tc temporalsdkclient.Client, proc docingest.Processor) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if proc == nil {
		return nil, fmt.Errorf("temporal worker missing document processor")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{log: log.With("component", "temporal_worker"), cfg: cfg, tc: tc, proc: proc}, nil
}

// Start polls the ingest task queue until ctx is done. A worker that fails
// to start is rebuilt and retried for TEMPORAL_WORKER_START_MAX_WAIT_SECONDS;
// a missing namespace is registered first when auto-registration is on.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}
	cfg := r.cfg
	r.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)

	maxWait := envutil.Seconds("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60*time.Second)
	err := temporalx.RetryUntil(ctx, maxWait, cfg.DialBackoff, cfg.DialBackoffMax, func(attempt int) error {
		if err := ctx.Err(); err != nil {
			return temporalx.GiveUp(err)
		}
		w := r.newWorker()
		if err := w.Start(); err != nil {
			w.Stop()
			r.recoverStart(ctx, attempt, err)
			return err
		}
		go func() {
			<-ctx.Done()
			w.Stop()
		}()
		r.log.Info("Temporal worker started", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempts", attempt)
		return nil
	})
	var nfe *serviceerror.NamespaceNotFound
	if errors.As(err, &nfe) {
		return fmt.Errorf("temporal namespace not found (namespace=%s): %w", cfg.Namespace, err)
	}
	return err
}

func (r *Runner) recoverStart(ctx context.Context, attempt int, startErr error) {
	r.log.Warn("Temporal worker failed to start; retrying", "task_queue", r.cfg.TaskQueue, "attempt", attempt, "error", startErr)
	var nfe *serviceerror.NamespaceNotFound
	if !errors.As(startErr, &nfe) || !r.cfg.AutoRegisterNamespace {
		return
	}
	if err := temporalx.EnsureNamespace(ctx, r.cfg, r.log); err != nil {
		r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
	}
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.cfg.WorkerConcurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.cfg.WorkerConcurrency,
	})
	acts := &docingest.Activities{Log: r.log, Processor: r.proc}
	w.RegisterWorkflowWithOptions(docingest.Workflow, workflow.RegisterOptions{Name: docingest.WorkflowName})
	w.RegisterActivityWithOptions(acts.Process, activity.RegisterOptions{Name: docingest.ActivityProcess})
	return w
}
