// Package scheduler drives level-by-level execution of a plan: bounded
// concurrency within a level, a hard barrier between levels, failure
// isolation and checkpoint gating across them.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mkostova/taskgrid/pkg/executor"
	"github.com/mkostova/taskgrid/pkg/graph"
	"github.com/mkostova/taskgrid/pkg/models"
	"github.com/mkostova/taskgrid/pkg/namespace"
	"github.com/mkostova/taskgrid/pkg/report"
)

// Logger defines the logging interface for the Scheduler.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// HealthChecker re-verifies target readiness after a checkpoint. Satisfied by
// health.Verifier.
type HealthChecker interface {
	Verify(ctx context.Context) error
}

// Scheduler executes a plan against one TaskExecutor. It exclusively owns
// TaskRun mutation; results reach the report only through the aggregator's
// channel.
type Scheduler struct {
	cfg     models.RunConfig
	exec    executor.TaskExecutor
	checker HealthChecker // may be nil when per-checkpoint verification is off
	logger  Logger
}

// New builds a Scheduler. checker may be nil unless
// cfg.HealthCheckEveryCheckpoint is set.
func New(cfg models.RunConfig, exec executor.TaskExecutor, checker HealthChecker, logger Logger) *Scheduler {
	return &Scheduler{cfg: cfg, exec: exec, checker: checker, logger: logger}
}

// Run executes every level of the plan in order and returns the finalized
// report. The returned error is non-nil only for pre-execution failures; task
// failures are expressed through the report, never thrown across the barrier.
func (s *Scheduler) Run(ctx context.Context, runID string, plan *graph.Plan) (models.RunReport, error) {
	if len(plan.Levels) == 0 {
		return models.RunReport{}, errors.New("empty plan")
	}

	nsMgr := namespace.NewManager(runID, s.exec, s.logger)
	agg := report.NewAggregator(runID, s.cfg.PlanName, plan.TaskCount())
	statuses := make(map[string]models.RunStatus, plan.TaskCount())

	abortReason := ""
	abortKind := models.CancelledKind

	for _, lvl := range plan.Levels {
		if abortReason != "" {
			s.skipLevel(lvl, agg, statuses, runID, abortKind, abortReason)
			continue
		}
		if ctx.Err() != nil {
			abortReason = "run cancelled"
			abortKind = models.CancelledKind
			s.skipLevel(lvl, agg, statuses, runID, abortKind, abortReason)
			continue
		}

		if cp, ok := plan.Checkpoint(lvl); ok {
			blocked := s.gateCheckpoint(cp, agg, statuses, runID)
			if len(blocked) > 0 {
				// Checkpoints override failure isolation: a blocked gate
				// aborts the run even with StopOnError off.
				abortReason = fmt.Sprintf("checkpoint '%s' blocked by failed tasks [%s]", cp.ID, strings.Join(blocked, ", "))
				abortKind = models.CheckpointBlockedKind
				continue
			}
			if s.cfg.HealthCheckEveryCheckpoint && s.checker != nil {
				if err := s.checker.Verify(ctx); err != nil {
					abortReason = fmt.Sprintf("health check after checkpoint '%s' failed: %v", cp.ID, err)
					abortKind = models.CancelledKind
				}
			}
			continue
		}

		levelStatuses := s.runLevel(ctx, lvl, plan.Graph, nsMgr, agg)
		failed := 0
		for id, st := range levelStatuses {
			statuses[id] = st
			if st == models.FailedRunStatus {
				failed++
			}
		}
		if failed > 0 {
			s.logger.Warnf("Level %d finished with %d failed task(s)", lvl.Index, failed)
			if s.cfg.StopOnError {
				abortReason = fmt.Sprintf("stop-on-error: %d task(s) failed in level %d", failed, lvl.Index)
				abortKind = models.TaskFailureKind
			}
		}
		if ctx.Err() != nil {
			abortReason = "run cancelled"
			abortKind = models.CancelledKind
		}
	}

	// Cancellation or aborts must never skip cleanup for dispatched tasks.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownGrace)
	nsMgr.CleanupAll(cleanupCtx)
	cancel()

	rep := agg.Finalize(abortReason)
	s.logger.Infof("Run %s finished: status=%s succeeded=%d failed=%d skipped=%d",
		runID, rep.Status, rep.Succeeded, rep.Failed, rep.Skipped)
	return rep, nil
}

// RunLevel executes a single level in isolation, assuming its dependencies
// were satisfied by an earlier run.
func (s *Scheduler) RunLevel(ctx context.Context, runID string, plan *graph.Plan, index int) (models.RunReport, error) {
	lvl, ok := plan.Level(index)
	if !ok {
		return models.RunReport{}, errors.Errorf("level %d out of range (plan has %d levels)", index, len(plan.Levels))
	}
	if _, isCheckpoint := plan.Checkpoint(lvl); isCheckpoint {
		return models.RunReport{}, errors.Errorf("level %d is a checkpoint; nothing to execute", index)
	}

	nsMgr := namespace.NewManager(runID, s.exec, s.logger)
	agg := report.NewAggregator(runID, s.cfg.PlanName, len(lvl.Tasks))
	s.runLevel(ctx, lvl, plan.Graph, nsMgr, agg)

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownGrace)
	nsMgr.CleanupAll(cleanupCtx)
	cancel()

	abortReason := ""
	if ctx.Err() != nil {
		abortReason = "run cancelled"
	}
	return agg.Finalize(abortReason), nil
}

// gateCheckpoint resolves a checkpoint level from recorded predecessor
// statuses. It returns the failed predecessor ids; empty means the gate
// opened. Checkpoints never reach the executor and need no namespace.
func (s *Scheduler) gateCheckpoint(cp models.Task, agg *report.Aggregator, statuses map[string]models.RunStatus, runID string) []string {
	var blocked []string
	for _, dep := range cp.DependsOn {
		if statuses[dep] != models.SucceededRunStatus {
			blocked = append(blocked, dep)
		}
	}

	now := time.Now()
	run := models.TaskRun{
		TaskID:    cp.ID,
		RunID:     runID,
		Status:    models.SucceededRunStatus,
		StartedAt: &now,
		EndedAt:   &now,
	}
	if len(blocked) > 0 {
		run.Status = models.FailedRunStatus
		run.Error = &models.TaskError{
			Kind:      models.CheckpointBlockedKind,
			Message:   fmt.Sprintf("%d of %d predecessor task(s) did not succeed", len(blocked), len(cp.DependsOn)),
			BlockedBy: blocked,
		}
		s.logger.Warnf("Checkpoint %s blocked by %v", cp.ID, blocked)
	} else {
		s.logger.Infof("Checkpoint %s passed", cp.ID)
	}
	statuses[cp.ID] = run.Status
	agg.Ingest(report.Outcome{Run: run})
	return blocked
}

// skipLevel records a Skipped TaskRun for every task in a level that will not
// be dispatched, citing the abort reason.
func (s *Scheduler) skipLevel(lvl graph.Level, agg *report.Aggregator, statuses map[string]models.RunStatus, runID string, kind models.ErrorKind, reason string) {
	for _, id := range lvl.Tasks {
		run := models.TaskRun{
			TaskID: id,
			RunID:  runID,
			Status: models.SkippedRunStatus,
			Error:  &models.TaskError{Kind: kind, Message: reason},
		}
		statuses[id] = models.SkippedRunStatus
		agg.Ingest(report.Outcome{Run: run})
	}
	s.logger.Infof("Skipped level %d (%d task(s)): %s", lvl.Index, len(lvl.Tasks), reason)
}
