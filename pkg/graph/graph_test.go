package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkostova/taskgrid/pkg/graph"
	"github.com/mkostova/taskgrid/pkg/models"
)

func task(id string, deps ...string) models.Task {
	return models.Task{ID: id, Name: id, Kind: models.StandardTask, DependsOn: deps}
}

func TestBuild_Valid(t *testing.T) {
	g, err := graph.Build([]models.Task{
		task("A"),
		task("B", "A"),
		task("C", "A"),
		task("D", "B", "C"),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())

	got, ok := g.Task("D")
	assert.True(t, ok)
	assert.Equal(t, []string{"B", "C"}, got.DependsOn)
}

func TestBuild_DefaultsKind(t *testing.T) {
	g, err := graph.Build([]models.Task{{ID: "A", Name: "A"}})
	require.NoError(t, err)
	got, _ := g.Task("A")
	assert.Equal(t, models.StandardTask, got.Kind)
}

func TestBuild_EmptyPlan(t *testing.T) {
	_, err := graph.Build(nil)
	assert.Error(t, err)
}

func TestBuild_DuplicateID(t *testing.T) {
	_, err := graph.Build([]models.Task{task("A"), task("A")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate task id 'A'")
}

func TestBuild_ReservedCharacterInID(t *testing.T) {
	_, err := graph.Build([]models.Task{task("a/b")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved character")
}

func TestBuild_DanglingDependency(t *testing.T) {
	_, err := graph.Build([]models.Task{task("A", "ghost")})
	require.Error(t, err)

	var dangling *graph.DanglingDependencyError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "A", dangling.TaskID)
	assert.Equal(t, "ghost", dangling.Missing)
}

func TestBuild_CycleIsNamed(t *testing.T) {
	_, err := graph.Build([]models.Task{
		task("A", "B"),
		task("B", "A"),
	})
	require.Error(t, err)

	var cycle *graph.CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Contains(t, cycle.Cycle, "A")
	assert.Contains(t, cycle.Cycle, "B")
}

func TestBuild_SelfCycle(t *testing.T) {
	_, err := graph.Build([]models.Task{task("A", "A")})
	var cycle *graph.CycleError
	require.ErrorAs(t, err, &cycle)
}

func TestBuild_LongerCycleBehindValidPrefix(t *testing.T) {
	_, err := graph.Build([]models.Task{
		task("A"),
		task("B", "A", "D"),
		task("C", "B"),
		task("D", "C"),
	})
	var cycle *graph.CycleError
	require.ErrorAs(t, err, &cycle)
	assert.GreaterOrEqual(t, len(cycle.Cycle), 3)
}
