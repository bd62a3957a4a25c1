package workflow

import (
	"context"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/config"
	"github.com/sells-group/decision-cli/internal/pipeline"
)

// DefaultTaskQueue is used when the config leaves task_queue empty.
const DefaultTaskQueue = "decision-analysis"

// Dial connects to the Temporal frontend described by cfg.
func Dial(cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    NewLogger(zap.L()),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: dial temporal %s", cfg.HostPort)
	}
	return c, nil
}

func taskQueue(cfg config.TemporalConfig) string {
	if cfg.TaskQueue == "" {
		return DefaultTaskQueue
	}
	return cfg.TaskQueue
}

// NewWorker registers the workflow and the pipeline activities on the
// configured task queue.
func NewWorker(c client.Client, cfg config.TemporalConfig, p *pipeline.Pipeline) worker.Worker {
	w := worker.New(c, taskQueue(cfg), worker.Options{})
	w.RegisterWorkflowWithOptions(AnalyzeDecisionWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivity(NewActivities(p))
	return w
}

// Start launches an analysis for a run created with pipeline.Start. The
// workflow ID is derived from the run ID so a run is analyzed once.
func Start(ctx context.Context, c client.Client, cfg config.TemporalConfig, in AnalyzeInput) (client.WorkflowRun, error) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "decision-" + in.RunID,
		TaskQueue: taskQueue(cfg),
	}, WorkflowName, in)
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: start analysis for run %s", in.RunID)
	}
	zap.L().Info("workflow: analysis started",
		zap.String("run_id", in.RunID),
		zap.String("workflow_id", run.GetID()),
		zap.String("temporal_run_id", run.GetRunID()),
	)
	return run, nil
}
