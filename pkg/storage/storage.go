package storage

import (
	"github.com/pkg/errors"

	"github.com/mkostova/taskgrid/pkg/models"
)

// ErrNotFound is returned when the requested key has no stored value.
var ErrNotFound = errors.New("not found")

// Store is the configuration store the orchestrator reads run configuration
// from and writes run reports back to. Reports are keyed by plan name and
// merged on save, so re-running a plan updates the "last run" view instead of
// growing unbounded history.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Run configuration
	SaveRunConfig(cfg models.RunConfig) error
	GetRunConfig(planName string) (models.RunConfig, error)

	// Run reports
	SaveRunReport(rep models.RunReport) error
	GetRunReport(planName string) (models.RunReport, error)
	ListRunReports() ([]models.RunReport, error)
}
