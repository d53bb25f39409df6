// Package executor defines the boundary between the orchestrator and the
// actual work a task performs. The scheduler treats implementations as
// opaque: it hands over a task plus its resource namespace and gets back a
// ResultRecord or an error.
package executor

import (
	"context"

	"github.com/mkostova/taskgrid/pkg/models"
)

// TaskExecutor runs tasks and cleans up the resources they tagged. Run is
// subject to the per-task timeout via ctx; Cleanup is invoked exactly once
// per dispatched task regardless of the task outcome and should tolerate
// partially created state.
type TaskExecutor interface {
	Run(ctx context.Context, task models.Task, namespace string) (models.ResultRecord, error)
	Cleanup(ctx context.Context, task models.Task, namespace string) error
}
