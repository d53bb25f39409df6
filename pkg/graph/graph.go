// Package graph validates a declared task list into a dependency DAG and
// computes its level-by-level execution order.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/mkostova/taskgrid/pkg/models"
)

// NamespaceSeparator is reserved for namespace encoding and therefore barred
// from task ids.
const NamespaceSeparator = "/"

// DanglingDependencyError reports a dependency edge pointing at a task id
// that does not exist in the plan.
type DanglingDependencyError struct {
	TaskID  string
	Missing string
}

func (e *DanglingDependencyError) Error() string {
	return fmt.Sprintf("task '%s' depends on unknown task '%s'", e.TaskID, e.Missing)
}

// CycleError reports a dependency cycle, naming the tasks on it.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency: [%s]", strings.Join(e.Cycle, " -> "))
}

// Graph is a validated dependency DAG. It is immutable after Build and safe
// for concurrent reads.
type Graph struct {
	tasks map[string]models.Task
	order []string // task ids in declaration order
}

// Build validates the task list and its dependency edges. It is a pure
// function of its input: no side effects, deterministic output. Validation
// failures are ConfigurationErrors and happen before anything executes.
func Build(tasks []models.Task) (*Graph, error) {
	if len(tasks) == 0 {
		return nil, errors.New("plan contains no tasks")
	}

	g := &Graph{tasks: make(map[string]models.Task, len(tasks))}
	for _, t := range tasks {
		if t.ID == "" {
			return nil, errors.New("task with empty id")
		}
		if strings.Contains(t.ID, NamespaceSeparator) {
			return nil, fmt.Errorf("task id '%s' contains reserved character '%s'", t.ID, NamespaceSeparator)
		}
		if _, exists := g.tasks[t.ID]; exists {
			return nil, fmt.Errorf("duplicate task id '%s'", t.ID)
		}
		if t.Kind == "" {
			t.Kind = models.StandardTask
		}
		g.tasks[t.ID] = t
		g.order = append(g.order, t.ID)
	}

	for _, id := range g.order {
		for _, dep := range g.tasks[id].DependsOn {
			if _, ok := g.tasks[dep]; !ok {
				return nil, &DanglingDependencyError{TaskID: id, Missing: dep}
			}
		}
	}

	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	return g, nil
}

// Task returns the task with the given id.
func (g *Graph) Task(id string) (models.Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Tasks returns all tasks keyed by id.
func (g *Graph) Tasks() map[string]models.Task {
	return g.tasks
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// detectCycles runs a DFS with an explicit recursion stack so the reported
// CycleError names the full cycle, not just one node on it.
func (g *Graph) detectCycles() error {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(g.tasks))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		state[id] = visiting
		stack = append(stack, id)
		deps := append([]string(nil), g.tasks[id].DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			switch state[dep] {
			case visiting:
				// Slice the recursion stack from the first occurrence of dep
				// to name the cycle.
				start := 0
				for i, v := range stack {
					if v == dep {
						start = i
						break
					}
				}
				return &CycleError{Cycle: append(append([]string(nil), stack[start:]...), dep)}
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = visited
		return nil
	}

	ids := append([]string(nil), g.order...)
	sort.Strings(ids)
	for _, id := range ids {
		if state[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}
