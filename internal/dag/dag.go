// Package dag builds the dependency graph of a workflow, validates it, and
// computes the topological batching the scheduler walks.
package dag

import (
	"github.com/stepflow/stepflow/pkg/schema"
)

// Node is the dependency-relevant slice of a step definition.
type Node struct {
	ID        string
	DependsOn []string
}

// Graph is the validated, acyclic dependency structure of a workflow.
// Built once per workflow and cached; the graph is immutable.
type Graph struct {
	Edges   map[string][]string // step ID → dependencies
	Reverse map[string][]string // step ID → dependents
	Sorted  []string            // topological order, deterministic
	Batches [][]string          // topological layers of mutually independent steps
}

// Build validates the node set and constructs the graph. It fails with
// DUPLICATE_STEP on a repeated ID, UNKNOWN_DEPENDENCY on a reference to a
// missing step (or a self-reference), and CYCLE_DETECTED when Kahn's
// algorithm cannot place every node.
func Build(nodes []Node) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow has no steps")
	}

	ids := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, schema.NewError(schema.ErrCodeValidation, "step has empty ID")
		}
		if _, exists := ids[n.ID]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeDuplicateStep, "duplicate step ID: %s", n.ID).WithStep(n.ID)
		}
		ids[n.ID] = struct{}{}
	}

	g := &Graph{
		Edges:   make(map[string][]string, len(nodes)),
		Reverse: make(map[string][]string, len(nodes)),
	}

	for _, n := range nodes {
		seen := make(map[string]bool, len(n.DependsOn))
		deps := make([]string, 0, len(n.DependsOn))
		for _, dep := range n.DependsOn {
			if dep == n.ID {
				return nil, schema.NewErrorf(schema.ErrCodeCycleDetected, "step %s depends on itself", n.ID).WithStep(n.ID)
			}
			if _, exists := ids[dep]; !exists {
				return nil, schema.NewErrorf(schema.ErrCodeUnknownDependency,
					"step %s depends on unknown step: %s", n.ID, dep).WithStep(n.ID)
			}
			if seen[dep] {
				continue // tolerate repeated declarations
			}
			seen[dep] = true
			deps = append(deps, dep)
			g.Reverse[dep] = append(g.Reverse[dep], n.ID)
		}
		g.Edges[n.ID] = deps
	}

	// Kahn's algorithm: topological sort + cycle detection.
	inDegree := make(map[string]int, len(nodes))
	for id, deps := range g.Edges {
		inDegree[id] = len(deps)
	}

	queue := make([]string, 0)
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sortStrings(queue)

	sorted := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		sorted = append(sorted, node)

		dependents := make([]string, len(g.Reverse[node]))
		copy(dependents, g.Reverse[node])
		sortStrings(dependents)

		for _, dep := range dependents {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(sorted) != len(nodes) {
		return nil, schema.NewError(schema.ErrCodeCycleDetected, "workflow contains a cycle")
	}
	g.Sorted = sorted
	g.Batches = computeBatches(g)

	return g, nil
}

// computeBatches groups steps into topological layers: batch 0 holds the
// roots, batch k holds steps whose dependencies all sit in batches 0..k-1.
func computeBatches(g *Graph) [][]string {
	depth := make(map[string]int, len(g.Sorted))
	for _, id := range g.Sorted {
		maxDep := -1
		for _, dep := range g.Edges[id] {
			if depth[dep] > maxDep {
				maxDep = depth[dep]
			}
		}
		depth[id] = maxDep + 1
	}

	maxLevel := 0
	for _, d := range depth {
		if d > maxLevel {
			maxLevel = d
		}
	}

	batches := make([][]string, maxLevel+1)
	for _, id := range g.Sorted {
		d := depth[id]
		batches[d] = append(batches[d], id)
	}
	return batches
}

// sortStrings sorts a slice of strings in-place using insertion sort.
// Used for small slices to keep batch ordering deterministic.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		key := s[i]
		j := i - 1
		for j >= 0 && s[j] > key {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = key
	}
}
