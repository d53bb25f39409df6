package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/mkostova/taskgrid/pkg/graph"
	"github.com/mkostova/taskgrid/pkg/models"
	"github.com/mkostova/taskgrid/pkg/namespace"
	"github.com/mkostova/taskgrid/pkg/report"
)

// runLevel dispatches every task of a level into a worker pool bounded by
// MaxParallelism and blocks until each one is terminal (the level barrier).
// Workers share no mutable state: each emits its outcome to the aggregator
// and to a level-local channel drained after the barrier.
func (s *Scheduler) runLevel(ctx context.Context, lvl graph.Level, g *graph.Graph, nsMgr *namespace.Manager, agg *report.Aggregator) map[string]models.RunStatus {
	s.logger.Infof("Executing level %d with %d task(s), max parallelism %d", lvl.Index, len(lvl.Tasks), s.cfg.MaxParallelism)

	sem := make(chan struct{}, s.cfg.MaxParallelism)
	outcomes := make(chan report.Outcome, len(lvl.Tasks))
	var wg sync.WaitGroup

	for i, id := range lvl.Tasks {
		task, _ := g.Task(id)
		// Stagger dispatch so a wide level does not hit the target in one
		// burst. Interruptible by cancellation.
		if s.cfg.StaggerDelay > 0 && i > 0 {
			select {
			case <-time.After(s.cfg.StaggerDelay):
			case <-ctx.Done():
			}
		}

		wg.Add(1)
		go func(task models.Task) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				// Never dispatched: no namespace was allocated, so there is
				// nothing to clean up.
				outcomes <- report.Outcome{Run: models.TaskRun{
					TaskID: task.ID,
					RunID:  nsMgr.RunID(),
					Status: models.SkippedRunStatus,
					Error:  &models.TaskError{Kind: models.CancelledKind, Message: "run cancelled before dispatch"},
				}}
				return
			}
			outcomes <- s.runTask(ctx, task, nsMgr)
		}(task)
	}

	wg.Wait()
	close(outcomes)

	statuses := make(map[string]models.RunStatus, len(lvl.Tasks))
	for o := range outcomes {
		statuses[o.Run.TaskID] = o.Run.Status
		agg.Ingest(o)
	}
	return statuses
}

// runTask executes one task end to end: namespace allocation, the executor
// call under the per-task timeout, outcome classification, and the
// unconditional cleanup hook.
func (s *Scheduler) runTask(ctx context.Context, task models.Task, nsMgr *namespace.Manager) report.Outcome {
	ns := nsMgr.Allocate(task)
	started := time.Now()
	run := models.TaskRun{
		TaskID:    task.ID,
		RunID:     nsMgr.RunID(),
		Namespace: ns,
		Status:    models.RunningRunStatus,
		Attempts:  1,
		StartedAt: &started,
	}

	taskCtx, cancel := context.WithTimeout(ctx, s.cfg.PerTaskTimeout)
	record, err := s.exec.Run(taskCtx, task, ns)
	cancel()

	ended := time.Now()
	run.EndedAt = &ended

	var result *models.ResultRecord
	switch {
	case err != nil && taskCtx.Err() == context.DeadlineExceeded:
		run.Status = models.FailedRunStatus
		run.Error = &models.TaskError{Kind: models.TimeoutKind, Message: "task exceeded per-task timeout of " + s.cfg.PerTaskTimeout.String()}
		s.logger.Errorf("Task %s timed out after %s", task.ID, s.cfg.PerTaskTimeout)
	case err != nil && ctx.Err() != nil:
		run.Status = models.SkippedRunStatus
		run.Error = &models.TaskError{Kind: models.CancelledKind, Message: "run cancelled while task in flight"}
		s.logger.Warnf("Task %s cancelled in flight", task.ID)
	case err != nil:
		run.Status = models.FailedRunStatus
		run.Error = &models.TaskError{Kind: models.TaskFailureKind, Message: err.Error()}
		s.logger.Errorf("Task %s failed: %v", task.ID, err)
	case record.FailedCount > 0:
		result = &record
		run.Status = models.FailedRunStatus
		run.Error = &models.TaskError{Kind: models.TaskFailureKind, Message: "assertion failures"}
		s.logger.Errorf("Task %s finished with %d assertion failure(s)", task.ID, record.FailedCount)
	default:
		result = &record
		run.Status = models.SucceededRunStatus
		s.logger.Infof("Task %s succeeded (%d assertion(s) passed)", task.ID, record.PassedCount)
	}

	// Cleanup runs no matter how the task ended and survives run
	// cancellation, bounded by the shutdown grace period.
	cleanupCtx, cleanupCancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownGrace)
	if cerr := nsMgr.Cleanup(cleanupCtx, task.ID); cerr != nil {
		run.CleanupErr = cerr.Error()
	}
	cleanupCancel()

	return report.Outcome{Run: run, Result: result}
}
