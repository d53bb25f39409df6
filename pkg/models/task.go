package models

import (
	"encoding/json"
	"time"
)

// TaskKind distinguishes ordinary work items from checkpoint barriers.
// Checkpoints never reach the executor; they gate on predecessor outcomes.
type TaskKind string

const (
	StandardTask   TaskKind = "TASK"
	CheckpointTask TaskKind = "CHECKPOINT"
)

// Task is a declared unit of work in a plan. Tasks are immutable after the
// plan is built; per-run mutable state lives on TaskRun.
type Task struct {
	ID        string          `json:"id" db:"id"`                 // Unique, stable across runs
	Name      string          `json:"name" db:"name"`             // Descriptive name (e.g., "CreateOrder")
	Kind      TaskKind        `json:"kind" db:"kind"`             // "TASK" or "CHECKPOINT"
	DependsOn []string        `json:"depends_on" db:"depends_on"` // Task IDs that must be terminal first
	Payload   json.RawMessage `json:"payload,omitempty"`          // Opaque executor input
}

// IsCheckpoint reports whether the task is a checkpoint barrier.
func (t Task) IsCheckpoint() bool {
	return t.Kind == CheckpointTask
}

type RunStatus string

const (
	PendingRunStatus   RunStatus = "PENDING"
	RunningRunStatus   RunStatus = "RUNNING"
	SucceededRunStatus RunStatus = "SUCCEEDED"
	FailedRunStatus    RunStatus = "FAILED"
	SkippedRunStatus   RunStatus = "SKIPPED"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == SucceededRunStatus || s == FailedRunStatus || s == SkippedRunStatus
}

// ErrorKind classifies the failure recorded on a TaskRun.
type ErrorKind string

const (
	TaskFailureKind       ErrorKind = "TASK_FAILURE"
	TimeoutKind           ErrorKind = "TIMEOUT"
	CheckpointBlockedKind ErrorKind = "CHECKPOINT_BLOCKED"
	CancelledKind         ErrorKind = "CANCELLED"
)

// TaskError is the structured failure detail on a TaskRun.
type TaskError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	// BlockedBy lists the failed predecessor ids when Kind is
	// CHECKPOINT_BLOCKED, or the abort source for skips.
	BlockedBy []string `json:"blocked_by,omitempty"`
}

// TaskRun is the per-run execution record of one task. It is created at
// dispatch, mutated only by the executing worker, and terminal once the
// status leaves RUNNING.
type TaskRun struct {
	TaskID     string     `json:"task_id" db:"task_id"`
	RunID      string     `json:"run_id" db:"run_id"`
	Namespace  string     `json:"namespace" db:"namespace"` // Resource tag prefix, unique per task per run
	Status     RunStatus  `json:"status" db:"status"`
	Attempts   int        `json:"attempts" db:"attempts"`
	StartedAt  *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	Error      *TaskError `json:"error,omitempty"`
	CleanupErr string     `json:"cleanup_error,omitempty"` // Non-fatal annotation, never flips Status
}
