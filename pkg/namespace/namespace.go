// Package namespace isolates each task's side-effect resources behind a
// unique tag prefix and guarantees cleanup runs for every dispatched task.
package namespace

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/mkostova/taskgrid/pkg/models"
)

// Separator joins run id and task id in a namespace. The graph builder bars
// it from task ids, which makes the encoding collision-free.
const Separator = "/"

// For returns the resource namespace for one task in one run. Pure and
// deterministic: equal inputs always produce the same tag, and distinct
// (runID, taskID) pairs can never collide because taskID cannot contain the
// separator.
func For(runID, taskID string) string {
	return runID + Separator + taskID
}

// Cleaner invokes a task's cleanup hook. Satisfied by executor.TaskExecutor.
type Cleaner interface {
	Cleanup(ctx context.Context, task models.Task, namespace string) error
}

// Logger is the narrow logging surface the manager needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Manager owns the TaskID -> namespace mapping for the lifetime of one run.
// Allocations are write-once; cleanup is invoked at most once per task no
// matter how many callers race for it.
type Manager struct {
	runID   string
	cleaner Cleaner
	logger  Logger

	mu        sync.Mutex
	allocated map[string]models.Task
	cleaned   map[string]bool
}

// NewManager builds a Manager scoped to one run id.
func NewManager(runID string, cleaner Cleaner, logger Logger) *Manager {
	return &Manager{
		runID:     runID,
		cleaner:   cleaner,
		logger:    logger,
		allocated: make(map[string]models.Task),
		cleaned:   make(map[string]bool),
	}
}

// Allocate records the task as dispatched and returns its namespace.
// Re-allocating the same task id returns the same namespace.
func (m *Manager) Allocate(task models.Task) string {
	m.mu.Lock()
	if _, ok := m.allocated[task.ID]; !ok {
		m.allocated[task.ID] = task
	}
	m.mu.Unlock()
	return For(m.runID, task.ID)
}

// Cleanup invokes the cleanup hook for a previously allocated task, exactly
// once. Failures are logged and returned as an annotation for the TaskRun;
// they never abort the run and must never flip a task status.
func (m *Manager) Cleanup(ctx context.Context, taskID string) error {
	m.mu.Lock()
	task, ok := m.allocated[taskID]
	if !ok {
		m.mu.Unlock()
		return errors.Errorf("cleanup for unallocated task '%s'", taskID)
	}
	if m.cleaned[taskID] {
		m.mu.Unlock()
		return nil
	}
	m.cleaned[taskID] = true
	m.mu.Unlock()

	if err := m.cleaner.Cleanup(ctx, task, For(m.runID, taskID)); err != nil {
		m.logger.Errorf("Cleanup for task %s failed: %v", taskID, err)
		return err
	}
	m.logger.Infof("Cleaned up namespace %s", For(m.runID, taskID))
	return nil
}

// CleanupAll sweeps every allocated task that has not been cleaned yet. Used
// on abort paths so cancellation can never skip a dispatched task's cleanup.
func (m *Manager) CleanupAll(ctx context.Context) {
	m.mu.Lock()
	var pending []string
	for id := range m.allocated {
		if !m.cleaned[id] {
			pending = append(pending, id)
		}
	}
	m.mu.Unlock()

	for _, id := range pending {
		_ = m.Cleanup(ctx, id)
	}
}

// RunID returns the run this manager is scoped to.
func (m *Manager) RunID() string {
	return m.runID
}

// Allocated returns the number of tasks that received a namespace.
func (m *Manager) Allocated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.allocated)
}
