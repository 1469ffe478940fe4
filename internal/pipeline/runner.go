package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Pelix05/Code-Agent-Project/internal/log"
	"github.com/Pelix05/Code-Agent-Project/internal/queue"
	"github.com/Pelix05/Code-Agent-Project/internal/status"
	"github.com/Pelix05/Code-Agent-Project/internal/workspace"
)

// RunQueue is the slice of the run queue the workers need.
type RunQueue interface {
	Dequeue(ctx context.Context) (*queue.Run, error)
	Complete(ctx context.Context, runID string, st queue.Status, lastError *string) error
}

// WorkspaceSource resolves workspace descriptors by id.
type WorkspaceSource interface {
	Get(id string) (workspace.Descriptor, bool)
}

// ResultSink persists the outcome of a run.
type ResultSink interface {
	Persist(wsID, marker string, result []byte) error
}

// Runner drains the run queue with a fixed pool of workers. Each worker claims
// one run at a time and drives it through the static, dynamic, and auto-fix
// stages; a failing stage never aborts the run, only an orchestration failure
// does.
type Runner struct {
	queue      RunQueue
	workspaces WorkspaceSource
	sink       ResultSink
	toolsets   map[workspace.Language]Toolset

	workers      int
	pollInterval time.Duration
	logger       *slog.Logger
}

func NewRunner(q RunQueue, ws WorkspaceSource, sink ResultSink, toolsets map[workspace.Language]Toolset, workers int, pollInterval time.Duration) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Runner{
		queue:        q,
		workspaces:   ws,
		sink:         sink,
		toolsets:     toolsets,
		workers:      workers,
		pollInterval: pollInterval,
		logger:       log.WithComponent("pipeline"),
	}
}

// Start runs the worker pool until ctx is cancelled. Blocking.
func (r *Runner) Start(ctx context.Context) error {
	r.logger.Info("pipeline workers started", "workers", r.workers, "poll_interval", r.pollInterval)
	defer r.logger.Info("pipeline workers stopped")

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r.workerLoop(ctx, worker)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

func (r *Runner) workerLoop(ctx context.Context, worker int) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.processNext(ctx); err != nil {
				r.logger.Error("failed to process run", "worker", worker, "error", err)
			}
		}
	}
}

// processNext claims and executes at most one run.
func (r *Runner) processNext(ctx context.Context) error {
	run, err := r.queue.Dequeue(ctx)
	if err != nil {
		return fmt.Errorf("dequeue: %w", err)
	}
	if run == nil {
		return nil
	}
	r.execute(ctx, run)
	return nil
}

// Execute drives one run through all stages and persists the outcome.
// Exported so a caller holding an already-claimed run can process it inline.
func (r *Runner) Execute(ctx context.Context, run *queue.Run) {
	r.execute(ctx, run)
}

func (r *Runner) execute(ctx context.Context, run *queue.Run) {
	logger := log.WithRun(run.ID).With("workspace", run.WorkspaceID)
	logger.Info("pipeline run started")

	ws, ok := r.workspaces.Get(run.WorkspaceID)
	if !ok {
		r.fail(ctx, run, logger, fmt.Sprintf("workspace %q is not registered", run.WorkspaceID))
		return
	}
	ts, ok := r.toolsets[ws.Language]
	if !ok {
		r.fail(ctx, run, logger, fmt.Sprintf("no toolset for language %q", ws.Language))
		return
	}

	result := Result{
		Workspace: ws.ID,
		Language:  string(ws.Language),
	}

	staticOut, staticErr := ts.Analyze(ctx, ws)
	result.Static = r.stageText(logger, "static", staticOut, staticErr)

	rawOut, rawErr := ts.Test(ctx, ws)
	raw := r.stageText(logger, "dynamic", rawOut, rawErr)
	result.DynamicRaw = raw
	result.Dynamic = CleanDynamicOutput(raw)

	report, err := ts.Fix(ctx, ws)
	if err != nil {
		logger.Warn("auto-fix stage failed", "error", err)
		report, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	result.AutoFixReports = report

	doc, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		r.fail(ctx, run, logger, fmt.Sprintf("marshal result: %v", err))
		return
	}
	if err := r.sink.Persist(ws.ID, status.MarkerDone, doc); err != nil {
		r.fail(ctx, run, logger, fmt.Sprintf("persist result: %v", err))
		return
	}

	if err := r.queue.Complete(ctx, run.ID, queue.StatusSucceeded, nil); err != nil {
		logger.Error("failed to complete run", "error", err)
		return
	}
	logger.Info("pipeline run finished")
}

// stageText folds a stage error into the stage's text so one broken tool
// never hides the others' output.
func (r *Runner) stageText(logger *slog.Logger, stage string, out string, err error) string {
	if err == nil {
		return out
	}
	logger.Warn("pipeline stage failed", "stage", stage, "error", err)
	if out != "" {
		return out
	}
	return err.Error()
}

func (r *Runner) fail(ctx context.Context, run *queue.Run, logger *slog.Logger, msg string) {
	logger.Error("pipeline run failed", "error", msg)
	if err := r.sink.Persist(run.WorkspaceID, status.MarkerError, nil); err != nil {
		logger.Error("failed to persist error status", "error", err)
	}
	if err := r.queue.Complete(ctx, run.ID, queue.StatusFailed, &msg); err != nil {
		logger.Error("failed to complete run", "error", err)
	}
}
