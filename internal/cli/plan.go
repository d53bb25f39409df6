package cli

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/mkostova/taskgrid/pkg/models"
)

// planFile is the on-disk JSON shape of a plan: a named list of tasks with
// dependency edges, checkpoint markers and opaque executor payloads.
type planFile struct {
	Name  string `json:"name"`
	Tasks []struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		DependsOn  []string        `json:"depends_on"`
		Checkpoint bool            `json:"checkpoint"`
		Payload    json.RawMessage `json:"payload"`
	} `json:"tasks"`
}

// LoadPlanFile reads a plan definition and returns the plan name plus its
// task list. Graph validation happens later, in the builder.
func LoadPlanFile(path string) (string, []models.Task, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, errors.Wrapf(err, "failed to read plan file %s", path)
	}
	var pf planFile
	if err := json.Unmarshal(raw, &pf); err != nil {
		return "", nil, errors.Wrapf(err, "failed to parse plan file %s", path)
	}
	if pf.Name == "" {
		return "", nil, errors.Errorf("plan file %s has no name", path)
	}

	tasks := make([]models.Task, 0, len(pf.Tasks))
	for _, t := range pf.Tasks {
		kind := models.StandardTask
		if t.Checkpoint {
			kind = models.CheckpointTask
		}
		name := t.Name
		if name == "" {
			name = t.ID
		}
		tasks = append(tasks, models.Task{
			ID:        t.ID,
			Name:      name,
			Kind:      kind,
			DependsOn: t.DependsOn,
			Payload:   t.Payload,
		})
	}
	return pf.Name, tasks, nil
}
