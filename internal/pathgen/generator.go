// Package pathgen synthesizes endpoint call sequences from a dependency graph.
// Valid paths respect producer-before-consumer order; invalid paths deliberately break it.
package pathgen

import (
	"math/rand/v2"
	"slices"
	"time"

	"api-path-tester/internal/types"
)

// Graph is the read-only view of the dependency graph the generator walks.
type Graph interface {
	Nodes() []string
	StartNodes() []string
	Successors(name string) []string
	Predecessors(name string) []string
	InDegree(name string) int
}

// InvalidClass names the way an invalid path breaks dependency order.
type InvalidClass string

const (
	ClassReordered         InvalidClass = "reordered"
	ClassMissingDependency InvalidClass = "missing_dependency"
	ClassPermutation       InvalidClass = "permutation"
)

// InvalidPath is a generated path together with how it was made invalid.
type InvalidPath struct {
	Class InvalidClass
	Path  types.Path
}

// Generator produces random paths. It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator. A zero seed draws the seed from the clock,
// any other value makes the generated sequences reproducible.
func NewGenerator(seed int64) *Generator {
	s := uint64(seed)
	if seed == 0 {
		s = uint64(time.Now().UnixNano())
	}
	return &Generator{rng: rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))}
}

// GenerateValidPaths walks the graph from random start nodes. A successor is only
// eligible once every one of its predecessors is already on the path, so paths may
// end before maxDepth.
func (g *Generator) GenerateValidPaths(graph Graph, maxDepth, count int) []types.Path {
	if count <= 0 {
		return []types.Path{}
	}
	paths := make([]types.Path, 0, count)
	starts := graph.StartNodes()

	for i := 0; i < count; i++ {
		if len(starts) == 0 {
			continue
		}

		current := starts[g.rng.IntN(len(starts))]
		visited := map[string]bool{current: true}
		path := types.Path{current}

		for step := 0; step < maxDepth-1; step++ {
			var eligible []string
			for _, next := range graph.Successors(current) {
				if visited[next] {
					continue
				}
				if allVisited(graph.Predecessors(next), visited) {
					eligible = append(eligible, next)
				}
			}
			if len(eligible) == 0 {
				break
			}
			current = eligible[g.rng.IntN(len(eligible))]
			visited[current] = true
			path = append(path, current)
		}
		paths = append(paths, path)
	}

	return paths
}

// GenerateInvalidPaths returns up to count paths built from three classes, in order:
// a shuffled valid path, single nodes that have unmet prerequisites, and random samples
// of distinct nodes. Paths are not deduplicated and random samples are not re-checked.
func (g *Generator) GenerateInvalidPaths(graph Graph, maxDepth, count int) []InvalidPath {
	if count <= 0 {
		return []InvalidPath{}
	}
	var paths []InvalidPath
	nodes := graph.Nodes()

	// Wrong order
	for _, valid := range g.GenerateValidPaths(graph, maxDepth, 1) {
		if len(valid) < 2 {
			continue
		}
		shuffled := slices.Clone(valid)
		g.rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		if !slices.Equal(shuffled, valid) {
			paths = append(paths, InvalidPath{Class: ClassReordered, Path: shuffled})
		}
	}

	// Missing dependency
	var withDeps []string
	for _, name := range nodes {
		if graph.InDegree(name) > 0 {
			withDeps = append(withDeps, name)
		}
	}
	for i := 0; i < count/2; i++ {
		if len(withDeps) == 0 {
			break
		}
		node := withDeps[g.rng.IntN(len(withDeps))]
		paths = append(paths, InvalidPath{Class: ClassMissingDependency, Path: types.Path{node}})
	}

	// Arbitrary permutations need room for at least two steps
	remaining := count - len(paths)
	for i := 0; i < remaining && len(nodes) > 0 && maxDepth >= 2; i++ {
		paths = append(paths, InvalidPath{Class: ClassPermutation, Path: g.sample(nodes, g.pathLength(maxDepth))})
	}

	if len(paths) > count {
		paths = paths[:count]
	}
	return paths
}

// pathLength picks a length in [2, maxDepth]. maxDepth must be at least 2.
func (g *Generator) pathLength(maxDepth int) int {
	return 2 + g.rng.IntN(maxDepth-1)
}

// sample draws k distinct names without replacement.
func (g *Generator) sample(nodes []string, k int) types.Path {
	pool := slices.Clone(nodes)
	if k > len(pool) {
		k = len(pool)
	}
	for i := 0; i < k; i++ {
		j := i + g.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return types.Path(pool[:k])
}

func allVisited(names []string, visited map[string]bool) bool {
	for _, name := range names {
		if !visited[name] {
			return false
		}
	}
	return true
}
