// Package service ties the pieces together: it loads run configuration from
// the store, compiles the plan, gates on target health, executes, and
// persists the resulting report.
package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mkostova/taskgrid/pkg/executor"
	"github.com/mkostova/taskgrid/pkg/graph"
	"github.com/mkostova/taskgrid/pkg/health"
	"github.com/mkostova/taskgrid/pkg/models"
	"github.com/mkostova/taskgrid/pkg/scheduler"
	"github.com/mkostova/taskgrid/pkg/storage"
)

// Logger defines the logging interface for RunService.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// RunService orchestrates full runs of a plan against one executor.
type RunService struct {
	store  storage.Store
	exec   executor.TaskExecutor
	logger Logger
}

func NewRunService(store storage.Store, exec executor.TaskExecutor, logger Logger) *RunService {
	return &RunService{store: store, exec: exec, logger: logger}
}

// LoadConfig returns the stored configuration for a plan, or defaults when
// the store has none. The result is normalized and runnable either way.
func (s *RunService) LoadConfig(planName string) models.RunConfig {
	cfg, err := s.store.GetRunConfig(planName)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warnf("Failed to load config for plan '%s', using defaults: %v", planName, err)
		}
		cfg = models.DefaultRunConfig(planName)
	}
	cfg.PlanName = planName
	cfg.Normalize()
	return cfg
}

// BuildPlan validates the task list into a DAG and levels it.
func (s *RunService) BuildPlan(tasks []models.Task) (*graph.Plan, error) {
	g, err := graph.Build(tasks)
	if err != nil {
		return nil, errors.Wrap(err, "configuration error")
	}
	plan, err := g.Levels()
	if err != nil {
		return nil, errors.Wrap(err, "configuration error")
	}
	s.logger.Infof("Plan compiled: %d task(s) across %d level(s)", plan.TaskCount(), len(plan.Levels))
	return plan, nil
}

// ExecuteRun runs the whole plan cfg.IterationCount times, each iteration
// under a fresh run id so namespaces from one iteration are unreachable from
// the next. The last iteration's report is persisted and returned.
func (s *RunService) ExecuteRun(ctx context.Context, tasks []models.Task, cfg models.RunConfig) (models.RunReport, error) {
	cfg.Normalize()
	plan, err := s.BuildPlan(tasks)
	if err != nil {
		return models.RunReport{}, err
	}

	var checker scheduler.HealthChecker
	if cfg.HealthCheck.TargetURL != "" {
		verifier := health.NewVerifier(cfg.HealthCheck, s.logger)
		defer verifier.Close()
		// Fatal precondition: no task is dispatched when the target is down.
		if err := verifier.Verify(ctx); err != nil {
			return models.RunReport{}, err
		}
		checker = verifier
	} else {
		s.logger.Warnf("No health check target configured, skipping readiness probe")
	}

	sched := scheduler.New(cfg, s.exec, checker, s.logger)
	var last models.RunReport
	for i := 0; i < cfg.IterationCount; i++ {
		runID := uuid.NewString()
		s.logger.Infof("Starting run %s (iteration %d/%d) of plan '%s'", runID, i+1, cfg.IterationCount, cfg.PlanName)
		rep, err := sched.Run(ctx, runID, plan)
		if err != nil {
			return models.RunReport{}, err
		}
		last = rep
		if err := s.persist(rep); err != nil {
			s.logger.Errorf("Failed to persist report for run %s: %v", rep.RunID, err)
			return last, err
		}
		if rep.Status == models.AbortedReportStatus {
			break
		}
	}
	return last, nil
}

// ExecuteLevel runs a single level of the plan, assuming earlier levels were
// satisfied by a previous run.
func (s *RunService) ExecuteLevel(ctx context.Context, tasks []models.Task, cfg models.RunConfig, index int) (models.RunReport, error) {
	cfg.Normalize()
	plan, err := s.BuildPlan(tasks)
	if err != nil {
		return models.RunReport{}, err
	}
	if cfg.HealthCheck.TargetURL != "" {
		verifier := health.NewVerifier(cfg.HealthCheck, s.logger)
		defer verifier.Close()
		if err := verifier.Verify(ctx); err != nil {
			return models.RunReport{}, err
		}
	}

	sched := scheduler.New(cfg, s.exec, nil, s.logger)
	rep, err := sched.RunLevel(ctx, uuid.NewString(), plan, index)
	if err != nil {
		return models.RunReport{}, err
	}
	if err := s.persist(rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// Report loads the last persisted report for a plan.
func (s *RunService) Report(planName string) (models.RunReport, error) {
	rep, err := s.store.GetRunReport(planName)
	if err != nil {
		return models.RunReport{}, errors.Wrapf(err, "no report for plan '%s'", planName)
	}
	return rep, nil
}

func (s *RunService) persist(rep models.RunReport) (err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	if err = txStore.SaveRunReport(rep); err != nil {
		return errors.Wrapf(err, "failed to save report for plan '%s'", rep.PlanName)
	}
	s.logger.Infof("Persisted report for plan '%s' (run %s, status %s)", rep.PlanName, rep.RunID, rep.Status)
	return nil
}
