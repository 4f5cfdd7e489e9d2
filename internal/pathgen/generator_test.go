package pathgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-path-tester/internal/graph"
	"api-path-tester/internal/types"
)

func bankingGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, _, err := graph.Build(map[string]types.EndpointSpec{
		"CreateUser":        {Method: "POST", Path: "/users", Provides: "user_id", DataKey: "user"},
		"CreateAccount":     {Method: "POST", Path: "/accounts", Provides: "account_id", Requires: []string{"user_id"}, DataKey: "account"},
		"CreateTransaction": {Method: "POST", Path: "/transactions", Requires: []string{"account_id"}, DataKey: "transaction"},
		"GetAnalytics":      {Method: "POST", Path: "/analytics", Requires: []string{"user_id", "account_id"}, DataKey: "analytics"},
	})
	require.NoError(t, err)
	return g
}

func indexOf(path types.Path, name string) int {
	for i, n := range path {
		if n == name {
			return i
		}
	}
	return -1
}

func TestGenerateValidPathsRespectDependencies(t *testing.T) {
	g := bankingGraph(t)

	for seed := int64(1); seed <= 50; seed++ {
		paths := NewGenerator(seed).GenerateValidPaths(g, 4, 5)
		require.Len(t, paths, 5)

		for _, path := range paths {
			require.NotEmpty(t, path)
			assert.LessOrEqual(t, len(path), 4)
			assert.Equal(t, 0, g.InDegree(path[0]))

			for i, node := range path {
				for _, pred := range g.Predecessors(node) {
					at := indexOf(path, pred)
					assert.True(t, at >= 0 && at < i, "seed %d: %s must come after %s in %s", seed, node, pred, path)
				}
			}
		}
	}
}

func TestGenerateValidPathsShapes(t *testing.T) {
	g := bankingGraph(t)

	t.Run("max depth one yields start nodes only", func(t *testing.T) {
		paths := NewGenerator(7).GenerateValidPaths(g, 1, 3)
		for _, path := range paths {
			assert.Equal(t, types.Path{"CreateUser"}, path)
		}
	})

	t.Run("second step is forced by predecessors", func(t *testing.T) {
		paths := NewGenerator(7).GenerateValidPaths(g, 3, 10)
		for _, path := range paths {
			require.Len(t, path, 3)
			assert.Equal(t, "CreateAccount", path[1])
			assert.Contains(t, []string{"CreateTransaction", "GetAnalytics"}, path[2])
		}
	})

	t.Run("no start nodes yields no paths", func(t *testing.T) {
		cyclic := stubGraph{nodes: []string{"A"}, inDegree: map[string]int{"A": 1}}
		assert.Empty(t, NewGenerator(7).GenerateValidPaths(cyclic, 3, 3))
	})

	t.Run("non positive count", func(t *testing.T) {
		assert.Empty(t, NewGenerator(7).GenerateValidPaths(g, 3, 0))
		assert.Empty(t, NewGenerator(7).GenerateValidPaths(g, 3, -1))
	})
}

func TestGeneratorSeedIsReproducible(t *testing.T) {
	g := bankingGraph(t)

	first := NewGenerator(42)
	second := NewGenerator(42)

	assert.Equal(t, first.GenerateValidPaths(g, 3, 10), second.GenerateValidPaths(g, 3, 10))
	assert.Equal(t, first.GenerateInvalidPaths(g, 3, 10), second.GenerateInvalidPaths(g, 3, 10))
}

func TestGenerateInvalidPaths(t *testing.T) {
	g := bankingGraph(t)

	for seed := int64(1); seed <= 50; seed++ {
		paths := NewGenerator(seed).GenerateInvalidPaths(g, 3, 6)
		require.Len(t, paths, 6, "seed %d", seed)

		missing := 0
		for _, p := range paths {
			switch p.Class {
			case ClassReordered:
				require.Len(t, p.Path, 3)
				assert.Contains(t, p.Path, "CreateUser")
				assert.Contains(t, p.Path, "CreateAccount")
				// every valid path opens with CreateUser -> CreateAccount
				assert.False(t, p.Path[0] == "CreateUser" && p.Path[1] == "CreateAccount", "shuffle kept valid order: %s", p.Path)
			case ClassMissingDependency:
				missing++
				require.Len(t, p.Path, 1)
				assert.Greater(t, g.InDegree(p.Path[0]), 0)
			case ClassPermutation:
				assert.GreaterOrEqual(t, len(p.Path), 2)
				assert.LessOrEqual(t, len(p.Path), 3)
				seen := map[string]bool{}
				for _, n := range p.Path {
					assert.False(t, seen[n], "duplicate node %s in %s", n, p.Path)
					seen[n] = true
				}
			default:
				t.Fatalf("unexpected class %q", p.Class)
			}
		}
		assert.Equal(t, 3, missing, "seed %d", seed)
	}
}

func TestGenerateInvalidPathsTruncates(t *testing.T) {
	g := bankingGraph(t)

	assert.Empty(t, NewGenerator(3).GenerateInvalidPaths(g, 3, 0))

	paths := NewGenerator(3).GenerateInvalidPaths(g, 3, 1)
	assert.Len(t, paths, 1)
}

func TestGenerateInvalidPathsWithoutDependencies(t *testing.T) {
	flat := stubGraph{nodes: []string{"A", "B", "C"}, starts: []string{"A", "B", "C"}}

	paths := NewGenerator(5).GenerateInvalidPaths(flat, 2, 4)
	require.Len(t, paths, 4)
	for _, p := range paths {
		assert.Equal(t, ClassPermutation, p.Class)
		assert.Len(t, p.Path, 2)
	}
}

type stubGraph struct {
	nodes    []string
	starts   []string
	inDegree map[string]int
}

func (s stubGraph) Nodes() []string                   { return s.nodes }
func (s stubGraph) StartNodes() []string              { return s.starts }
func (s stubGraph) Successors(name string) []string   { return nil }
func (s stubGraph) Predecessors(name string) []string { return nil }
func (s stubGraph) InDegree(name string) int          { return s.inDegree[name] }

func TestGenerateInvalidPathsDepthOne(t *testing.T) {
	g := bankingGraph(t)

	for seed := int64(1); seed <= 20; seed++ {
		paths := NewGenerator(seed).GenerateInvalidPaths(g, 1, 4)
		require.Len(t, paths, 2, "seed %d", seed)
		for _, p := range paths {
			assert.Equal(t, ClassMissingDependency, p.Class)
			assert.Len(t, p.Path, 1)
		}
	}

	flat := stubGraph{nodes: []string{"A", "B"}, starts: []string{"A", "B"}}
	assert.Empty(t, NewGenerator(1).GenerateInvalidPaths(flat, 1, 3))
}
