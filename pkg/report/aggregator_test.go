package report_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkostova/taskgrid/pkg/models"
	"github.com/mkostova/taskgrid/pkg/report"
)

func outcome(taskID string, status models.RunStatus, rec *models.ResultRecord) report.Outcome {
	return report.Outcome{
		Run:    models.TaskRun{TaskID: taskID, RunID: "run-1", Status: status},
		Result: rec,
	}
}

func TestAggregator_StreamingTotals(t *testing.T) {
	agg := report.NewAggregator("run-1", "smoke", 3)
	agg.Ingest(outcome("A", models.SucceededRunStatus, &models.ResultRecord{PassedCount: 2}))
	agg.Ingest(outcome("B", models.FailedRunStatus, &models.ResultRecord{PassedCount: 1, FailedCount: 1}))
	agg.Ingest(outcome("C", models.SkippedRunStatus, nil))

	rep := agg.Finalize("")
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, "smoke", rep.PlanName)
	assert.Equal(t, 3, rep.TotalTasks)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 3, rep.PassedTotal)
	assert.Equal(t, 1, rep.FailedTotal)
	assert.Equal(t, []string{"B"}, rep.FailedTasks)
	require.NotNil(t, rep.EndedAt)
}

func TestAggregator_SnapshotIsConsistentMidRun(t *testing.T) {
	agg := report.NewAggregator("run-1", "smoke", 10)
	agg.Ingest(outcome("A", models.SucceededRunStatus, &models.ResultRecord{PassedCount: 1}))

	// The consumer goroutine applies outcomes asynchronously; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := agg.Snapshot()
		if snap.Succeeded == 1 {
			assert.Equal(t, models.RunningReportStatus, snap.Status)
			assert.Nil(t, snap.EndedAt)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot never observed the ingested outcome")
		}
		time.Sleep(time.Millisecond)
	}
	agg.Finalize("")
}

func TestAggregator_SnapshotIsACopy(t *testing.T) {
	agg := report.NewAggregator("run-1", "smoke", 1)
	agg.Ingest(outcome("A", models.FailedRunStatus, nil))
	rep := agg.Finalize("")

	rep.Tasks["evil"] = models.TaskReport{}
	rep.FailedTasks[0] = "mutated"

	again := agg.Snapshot()
	assert.NotContains(t, again.Tasks, "evil")
	assert.Equal(t, []string{"A"}, again.FailedTasks)
}

func TestAggregator_FinalStatus(t *testing.T) {
	tests := []struct {
		name        string
		statuses    []models.RunStatus
		abortReason string
		want        models.ReportStatus
	}{
		{"all succeeded", []models.RunStatus{models.SucceededRunStatus, models.SucceededRunStatus}, "", models.CompletedReportStatus},
		{"some failed", []models.RunStatus{models.SucceededRunStatus, models.FailedRunStatus}, "", models.CompletedWithFailuresReportStatus},
		{"aborted wins over failures", []models.RunStatus{models.FailedRunStatus}, "checkpoint 'gate' blocked", models.AbortedReportStatus},
		{"aborted with no failures", []models.RunStatus{models.SucceededRunStatus}, "run cancelled", models.AbortedReportStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := report.NewAggregator("run-1", "smoke", len(tt.statuses))
			for i, st := range tt.statuses {
				agg.Ingest(outcome(fmt.Sprintf("t%d", i), st, nil))
			}
			rep := agg.Finalize(tt.abortReason)
			assert.Equal(t, tt.want, rep.Status)
			assert.Equal(t, tt.abortReason, rep.AbortReason)
		})
	}
}
