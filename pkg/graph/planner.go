package graph

import (
	"sort"

	"github.com/mkostova/taskgrid/pkg/models"
)

// Level is a maximal set of task ids whose dependencies all live in earlier
// levels, so every task in it may run concurrently.
type Level struct {
	Index int
	Tasks []string
}

// HasCheckpoint reports whether any task in the level is a checkpoint. A
// checkpoint occupies its own level by construction, so this means the level
// is the checkpoint.
func (l Level) HasCheckpoint(g *Graph) bool {
	for _, id := range l.Tasks {
		if t, ok := g.Task(id); ok && t.IsCheckpoint() {
			return true
		}
	}
	return false
}

// Plan is the ordered leveling of a graph. Built once per run, never mutated
// during execution.
type Plan struct {
	Graph  *Graph
	Levels []Level
}

// Levels computes the execution plan by iterative topological peeling:
// repeatedly collect every task whose dependencies are already placed, place
// them as the next level, and repeat until no tasks remain. Ties inside a
// level are broken by sorted task id so the leveling is reproducible.
func (g *Graph) Levels() (*Plan, error) {
	placed := make(map[string]bool, len(g.tasks))
	remaining := make(map[string]bool, len(g.tasks))
	for id := range g.tasks {
		remaining[id] = true
	}

	plan := &Plan{Graph: g}
	for len(remaining) > 0 {
		var ready []string
		for id := range remaining {
			ok := true
			for _, dep := range g.tasks[id].DependsOn {
				if !placed[dep] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			// Peeling stalled: the builder should have rejected this graph
			// already, re-check defensively.
			var stuck []string
			for id := range remaining {
				stuck = append(stuck, id)
			}
			sort.Strings(stuck)
			return nil, &CycleError{Cycle: stuck}
		}
		sort.Strings(ready)
		var standard, checkpoints []string
		for _, id := range ready {
			if g.tasks[id].IsCheckpoint() {
				checkpoints = append(checkpoints, id)
			} else {
				standard = append(standard, id)
			}
			placed[id] = true
			delete(remaining, id)
		}
		if len(standard) > 0 {
			plan.Levels = append(plan.Levels, Level{Index: len(plan.Levels), Tasks: standard})
		}
		// A checkpoint is a barrier, never a sibling: each one gets a level of
		// its own even when it became ready alongside standard tasks.
		for _, id := range checkpoints {
			plan.Levels = append(plan.Levels, Level{Index: len(plan.Levels), Tasks: []string{id}})
		}
	}
	return plan, nil
}

// TaskCount returns the total number of tasks across all levels.
func (p *Plan) TaskCount() int {
	n := 0
	for _, lvl := range p.Levels {
		n += len(lvl.Tasks)
	}
	return n
}

// Level returns the level at index, or false when out of range.
func (p *Plan) Level(index int) (Level, bool) {
	if index < 0 || index >= len(p.Levels) {
		return Level{}, false
	}
	return p.Levels[index], true
}

// Checkpoint returns the checkpoint task of a level, if the level is one.
func (p *Plan) Checkpoint(lvl Level) (models.Task, bool) {
	for _, id := range lvl.Tasks {
		if t, ok := p.Graph.Task(id); ok && t.IsCheckpoint() {
			return t, true
		}
	}
	return models.Task{}, false
}
