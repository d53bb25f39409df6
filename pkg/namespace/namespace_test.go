package namespace_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkostova/taskgrid/pkg/models"
	"github.com/mkostova/taskgrid/pkg/namespace"
)

type testLogger struct{}

func (testLogger) Infof(format string, args ...interface{})  {}
func (testLogger) Errorf(format string, args ...interface{}) {}

type recordingCleaner struct {
	mu    sync.Mutex
	calls map[string]int
	fail  bool
}

func newRecordingCleaner() *recordingCleaner {
	return &recordingCleaner{calls: map[string]int{}}
}

func (c *recordingCleaner) Cleanup(ctx context.Context, task models.Task, ns string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[task.ID]++
	if c.fail {
		return errors.New("cleanup endpoint returned 500")
	}
	return nil
}

func TestFor_Deterministic(t *testing.T) {
	assert.Equal(t, "run-1/taskA", namespace.For("run-1", "taskA"))
	assert.Equal(t, namespace.For("run-1", "taskA"), namespace.For("run-1", "taskA"))
}

func TestFor_NoCollisions(t *testing.T) {
	// Ids cannot contain the separator, so distinct pairs cannot produce the
	// same namespace.
	seen := map[string]string{}
	for _, runID := range []string{"r1", "r2", "r1x"} {
		for _, taskID := range []string{"a", "b", "ab", "a-b"} {
			ns := namespace.For(runID, taskID)
			prev, dup := seen[ns]
			assert.False(t, dup, "namespace %s collides with %s", ns, prev)
			seen[ns] = runID + "+" + taskID
		}
	}
}

func TestFor_FreshRunIDMeansFreshNamespaces(t *testing.T) {
	assert.NotEqual(t, namespace.For("run-1", "A"), namespace.For("run-2", "A"))
}

func TestManager_AllocateIsWriteOnce(t *testing.T) {
	m := namespace.NewManager("run-1", newRecordingCleaner(), testLogger{})
	tsk := models.Task{ID: "A"}

	first := m.Allocate(tsk)
	second := m.Allocate(tsk)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, m.Allocated())
}

func TestManager_CleanupExactlyOnce(t *testing.T) {
	cleaner := newRecordingCleaner()
	m := namespace.NewManager("run-1", cleaner, testLogger{})
	m.Allocate(models.Task{ID: "A"})

	require.NoError(t, m.Cleanup(context.Background(), "A"))
	require.NoError(t, m.Cleanup(context.Background(), "A"))
	assert.Equal(t, 1, cleaner.calls["A"])
}

func TestManager_CleanupExactlyOnceUnderConcurrency(t *testing.T) {
	cleaner := newRecordingCleaner()
	m := namespace.NewManager("run-1", cleaner, testLogger{})
	m.Allocate(models.Task{ID: "A"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Cleanup(context.Background(), "A")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, cleaner.calls["A"])
}

func TestManager_CleanupUnallocatedTask(t *testing.T) {
	m := namespace.NewManager("run-1", newRecordingCleaner(), testLogger{})
	err := m.Cleanup(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestManager_CleanupFailureIsReturnedNotFatal(t *testing.T) {
	cleaner := newRecordingCleaner()
	cleaner.fail = true
	m := namespace.NewManager("run-1", cleaner, testLogger{})
	m.Allocate(models.Task{ID: "A"})

	err := m.Cleanup(context.Background(), "A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cleanup endpoint")
	// Still counted as done: no second invocation on retry.
	_ = m.Cleanup(context.Background(), "A")
	assert.Equal(t, 1, cleaner.calls["A"])
}

func TestManager_CleanupAllSweepsPending(t *testing.T) {
	cleaner := newRecordingCleaner()
	m := namespace.NewManager("run-1", cleaner, testLogger{})
	m.Allocate(models.Task{ID: "A"})
	m.Allocate(models.Task{ID: "B"})
	m.Allocate(models.Task{ID: "C"})
	require.NoError(t, m.Cleanup(context.Background(), "B"))

	m.CleanupAll(context.Background())
	assert.Equal(t, 1, cleaner.calls["A"])
	assert.Equal(t, 1, cleaner.calls["B"])
	assert.Equal(t, 1, cleaner.calls["C"])
}
