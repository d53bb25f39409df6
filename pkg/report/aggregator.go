// Package report collects per-task outcomes into a run report that stays
// consistent at any point during execution.
package report

import (
	"sort"
	"sync"
	"time"

	"github.com/mkostova/taskgrid/pkg/models"
)

// Outcome pairs a terminal TaskRun with the executor result, if the task
// actually ran. Workers emit outcomes; only the aggregator mutates the
// report.
type Outcome struct {
	Run    models.TaskRun
	Result *models.ResultRecord
}

// Aggregator ingests outcomes over a channel and maintains running totals, so
// a partial report is available at any time (useful for cancellation). One
// consumer goroutine is the sole writer of the report; workers never touch
// shared state directly.
type Aggregator struct {
	ch   chan Outcome
	done chan struct{}

	mu     sync.RWMutex
	report models.RunReport
}

// NewAggregator creates an aggregator for one run and starts its consumer.
func NewAggregator(runID, planName string, totalTasks int) *Aggregator {
	a := &Aggregator{
		ch:   make(chan Outcome, totalTasks),
		done: make(chan struct{}),
		report: models.RunReport{
			RunID:      runID,
			PlanName:   planName,
			Status:     models.RunningReportStatus,
			StartedAt:  time.Now(),
			TotalTasks: totalTasks,
			Tasks:      make(map[string]models.TaskReport, totalTasks),
		},
	}
	go a.consume()
	return a
}

// Ingest submits a terminal outcome. Safe for concurrent use.
func (a *Aggregator) Ingest(o Outcome) {
	a.ch <- o
}

func (a *Aggregator) consume() {
	defer close(a.done)
	for o := range a.ch {
		a.mu.Lock()
		a.apply(o)
		a.mu.Unlock()
	}
}

// apply folds one outcome into the report. Caller holds the lock.
func (a *Aggregator) apply(o Outcome) {
	a.report.Tasks[o.Run.TaskID] = models.TaskReport{Run: o.Run, Result: o.Result}
	switch o.Run.Status {
	case models.SucceededRunStatus:
		a.report.Succeeded++
	case models.FailedRunStatus:
		a.report.Failed++
		a.report.FailedTasks = append(a.report.FailedTasks, o.Run.TaskID)
		sort.Strings(a.report.FailedTasks)
	case models.SkippedRunStatus:
		a.report.Skipped++
	}
	if o.Result != nil {
		a.report.PassedTotal += o.Result.PassedCount
		a.report.FailedTotal += o.Result.FailedCount
	}
}

// Snapshot returns a consistent copy of the report as of now.
func (a *Aggregator) Snapshot() models.RunReport {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.copyReport()
}

// Finalize stops ingestion, waits for buffered outcomes to drain, computes
// the overall status and returns the finished report. abortReason is empty
// for runs that exhausted their plan.
func (a *Aggregator) Finalize(abortReason string) models.RunReport {
	close(a.ch)
	<-a.done

	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	a.report.EndedAt = &now
	a.report.AbortReason = abortReason
	switch {
	case abortReason != "":
		a.report.Status = models.AbortedReportStatus
	case a.report.Failed > 0:
		a.report.Status = models.CompletedWithFailuresReportStatus
	default:
		a.report.Status = models.CompletedReportStatus
	}
	return a.copyReport()
}

func (a *Aggregator) copyReport() models.RunReport {
	out := a.report
	out.Tasks = make(map[string]models.TaskReport, len(a.report.Tasks))
	for k, v := range a.report.Tasks {
		out.Tasks[k] = v
	}
	out.FailedTasks = append([]string(nil), a.report.FailedTasks...)
	return out
}
