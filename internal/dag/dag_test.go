package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow/pkg/schema"
)

func TestBuild_Empty(t *testing.T) {
	_, err := Build(nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestBuild_EmptyID(t *testing.T) {
	_, err := Build([]Node{{ID: ""}})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)
}

func TestBuild_DuplicateStep(t *testing.T) {
	_, err := Build([]Node{{ID: "a"}, {ID: "a"}})
	require.Error(t, err)
	ferr := err.(*schema.FlowError)
	assert.Equal(t, schema.ErrCodeDuplicateStep, ferr.Code)
	assert.Equal(t, "a", ferr.StepID)
}

func TestBuild_UnknownDependency(t *testing.T) {
	_, err := Build([]Node{{ID: "a", DependsOn: []string{"ghost"}}})
	require.Error(t, err)
	ferr := err.(*schema.FlowError)
	assert.Equal(t, schema.ErrCodeUnknownDependency, ferr.Code)
	assert.Contains(t, ferr.Message, "ghost")
}

func TestBuild_SelfDependency(t *testing.T) {
	_, err := Build([]Node{{ID: "a", DependsOn: []string{"a"}}})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeCycleDetected, err.(*schema.FlowError).Code)
}

func TestBuild_Cycle(t *testing.T) {
	_, err := Build([]Node{
		{ID: "a", DependsOn: []string{"c"}},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"b"}},
	})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeCycleDetected, err.(*schema.FlowError).Code)
}

func TestBuild_Linear(t *testing.T) {
	g, err := Build([]Node{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"b"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, g.Sorted)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, g.Batches)
}

func TestBuild_Diamond(t *testing.T) {
	g, err := Build([]Node{
		{ID: "fetch"},
		{ID: "parse", DependsOn: []string{"fetch"}},
		{ID: "enrich", DependsOn: []string{"fetch"}},
		{ID: "store", DependsOn: []string{"parse", "enrich"}},
	})
	require.NoError(t, err)

	require.Len(t, g.Batches, 3)
	assert.Equal(t, []string{"fetch"}, g.Batches[0])
	assert.Equal(t, []string{"enrich", "parse"}, g.Batches[1])
	assert.Equal(t, []string{"store"}, g.Batches[2])
}

func TestBuild_IndependentStepsShareBatch(t *testing.T) {
	g, err := Build([]Node{{ID: "c"}, {ID: "a"}, {ID: "b"}})
	require.NoError(t, err)

	require.Len(t, g.Batches, 1)
	assert.Equal(t, []string{"a", "b", "c"}, g.Batches[0])
}

func TestBuild_BatchPlacement(t *testing.T) {
	// A step lands in the batch right after its deepest dependency, even
	// when another dependency sits much earlier.
	g, err := Build([]Node{
		{ID: "root"},
		{ID: "mid", DependsOn: []string{"root"}},
		{ID: "leaf", DependsOn: []string{"root", "mid"}},
	})
	require.NoError(t, err)

	require.Len(t, g.Batches, 3)
	assert.Equal(t, []string{"leaf"}, g.Batches[2])
}

func TestBuild_Deterministic(t *testing.T) {
	nodes := []Node{
		{ID: "z"},
		{ID: "m", DependsOn: []string{"z"}},
		{ID: "a", DependsOn: []string{"z"}},
		{ID: "k", DependsOn: []string{"m", "a"}},
	}

	first, err := Build(nodes)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		g, err := Build(nodes)
		require.NoError(t, err)
		assert.Equal(t, first.Sorted, g.Sorted)
		assert.Equal(t, first.Batches, g.Batches)
	}
}

func TestBuild_DuplicateDependencyTolerated(t *testing.T) {
	g, err := Build([]Node{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a", "a", "a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, g.Edges["b"])
}

func TestSortStrings(t *testing.T) {
	s := []string{"pear", "apple", "fig", "apple"}
	sortStrings(s)
	assert.Equal(t, []string{"apple", "apple", "fig", "pear"}, s)
}
