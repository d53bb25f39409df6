package models

import "time"

// FailureDetail is a single assertion failure surfaced by the executor.
type FailureDetail struct {
	Name     string `json:"name"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Message  string `json:"message,omitempty"`
}

// ResultRecord is the executor's account of one task execution. Immutable
// once ingested by the aggregator.
type ResultRecord struct {
	PassedCount    int             `json:"passed_count"`
	FailedCount    int             `json:"failed_count"`
	DurationMs     int64           `json:"duration_ms"`
	FailureDetails []FailureDetail `json:"failure_details,omitempty"`
}

type ReportStatus string

const (
	RunningReportStatus               ReportStatus = "RUNNING"
	CompletedReportStatus             ReportStatus = "COMPLETED"
	CompletedWithFailuresReportStatus ReportStatus = "COMPLETED_WITH_FAILURES"
	AbortedReportStatus               ReportStatus = "ABORTED"
)

// TaskReport is the per-task slice of a RunReport: the terminal TaskRun plus
// the executor result, if the task ran.
type TaskReport struct {
	Run    TaskRun       `json:"run"`
	Result *ResultRecord `json:"result,omitempty"`
}

// RunReport aggregates all task outcomes of a run. It is created empty at run
// start, updated as outcomes stream in, and finalized once the plan is
// exhausted or aborted.
type RunReport struct {
	RunID       string       `json:"run_id"`
	PlanName    string       `json:"plan_name"`
	Status      ReportStatus `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	EndedAt     *time.Time   `json:"ended_at,omitempty"`
	TotalTasks  int          `json:"total_tasks"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	Skipped     int          `json:"skipped"`
	PassedTotal int          `json:"passed_total"` // Sum of assertion passes across tasks
	FailedTotal int          `json:"failed_total"` // Sum of assertion failures across tasks
	FailedTasks []string     `json:"failed_tasks,omitempty"`
	// AbortReason is set when Status is ABORTED (checkpoint gate, stop-on-error
	// or cancellation).
	AbortReason string                `json:"abort_reason,omitempty"`
	Tasks       map[string]TaskReport `json:"tasks"`
}
