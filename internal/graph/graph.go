// Package graph builds the endpoint dependency graph from provides/requires declarations.
// An edge A -> B means B requires a variable that A provides.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"api-path-tester/internal/types"
)

// Errors returned by Build.
var (
	ErrInvalidSpec       = errors.New("dependency graph: invalid endpoint spec")
	ErrAmbiguousProvides = errors.New("dependency graph: variable provided by more than one endpoint")
	ErrCycleDetected     = errors.New("dependency graph: circular dependency detected")
)

// Edge is a directed producer -> consumer relationship.
type Edge struct {
	From     string
	To       string
	Variable string
}

// Graph is an immutable dependency graph over endpoint names.
// Neighbour lists are sorted so seeded path generation is reproducible.
type Graph struct {
	nodes        []string
	specs        map[string]types.EndpointSpec
	successors   map[string][]string
	predecessors map[string][]string
	unresolved   map[string][]string
	edges        []Edge
}

// Build creates the dependency graph for the given endpoint specs.
// It returns the graph together with the specs keyed by name, with each spec's Name filled in.
func Build(specs map[string]types.EndpointSpec) (*Graph, map[string]types.EndpointSpec, error) {
	g := &Graph{
		specs:        make(map[string]types.EndpointSpec, len(specs)),
		successors:   make(map[string][]string, len(specs)),
		predecessors: make(map[string][]string, len(specs)),
		unresolved:   make(map[string][]string),
	}

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	// First pass: nodes and the provides map
	providers := make(map[string]string)
	for _, name := range names {
		spec := specs[name]
		if err := checkSpec(name, spec); err != nil {
			return nil, nil, err
		}
		spec.Name = name
		g.specs[name] = spec
		g.nodes = append(g.nodes, name)
		g.successors[name] = []string{}
		g.predecessors[name] = []string{}

		if spec.Provides == "" {
			continue
		}
		if other, exists := providers[spec.Provides]; exists {
			return nil, nil, fmt.Errorf("%w: %q is provided by both %s and %s", ErrAmbiguousProvides, spec.Provides, other, name)
		}
		providers[spec.Provides] = name
	}

	// Second pass: edges from producer to consumer
	for _, name := range names {
		seen := make(map[string]bool)
		for _, variable := range g.specs[name].Requires {
			producer, ok := providers[variable]
			if !ok {
				g.unresolved[name] = append(g.unresolved[name], variable)
				continue
			}
			if producer == name {
				return nil, nil, fmt.Errorf("%w: %s requires %q which it provides itself", ErrCycleDetected, name, variable)
			}
			g.edges = append(g.edges, Edge{From: producer, To: name, Variable: variable})
			if seen[producer] {
				continue
			}
			seen[producer] = true
			g.successors[producer] = append(g.successors[producer], name)
			g.predecessors[name] = append(g.predecessors[name], producer)
		}
	}

	for _, name := range names {
		sort.Strings(g.successors[name])
		sort.Strings(g.predecessors[name])
	}
	sort.Slice(g.edges, func(i, j int) bool {
		if g.edges[i].From != g.edges[j].From {
			return g.edges[i].From < g.edges[j].From
		}
		if g.edges[i].To != g.edges[j].To {
			return g.edges[i].To < g.edges[j].To
		}
		return g.edges[i].Variable < g.edges[j].Variable
	})

	if cycles := g.DetectCycles(); len(cycles) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrCycleDetected, cycles[0])
	}

	return g, g.Specs(), nil
}

func checkSpec(name string, spec types.EndpointSpec) error {
	var missing []string
	if strings.TrimSpace(name) == "" {
		missing = append(missing, "name")
	}
	if spec.Method == "" {
		missing = append(missing, "method")
	}
	if spec.Path == "" {
		missing = append(missing, "path")
	}
	if spec.DataKey == "" {
		missing = append(missing, "data_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %q is missing %s", ErrInvalidSpec, name, strings.Join(missing, ", "))
	}
	return nil
}

// Nodes returns all endpoint names in sorted order.
func (g *Graph) Nodes() []string {
	return clone(g.nodes)
}

// Has reports whether the graph contains the named endpoint.
func (g *Graph) Has(name string) bool {
	_, ok := g.specs[name]
	return ok
}

// Spec returns the endpoint spec for a node.
func (g *Graph) Spec(name string) (types.EndpointSpec, bool) {
	spec, ok := g.specs[name]
	return spec, ok
}

// Specs returns a copy of all endpoint specs keyed by name.
func (g *Graph) Specs() map[string]types.EndpointSpec {
	out := make(map[string]types.EndpointSpec, len(g.specs))
	for name, spec := range g.specs {
		spec.Requires = clone(spec.Requires)
		out[name] = spec
	}
	return out
}

// Successors returns the endpoints that consume something the node provides.
func (g *Graph) Successors(name string) []string {
	return clone(g.successors[name])
}

// Predecessors returns the endpoints the node depends on.
func (g *Graph) Predecessors(name string) []string {
	return clone(g.predecessors[name])
}

// InDegree returns the number of distinct producers the node depends on.
func (g *Graph) InDegree(name string) int {
	return len(g.predecessors[name])
}

// Unresolved returns the required variables of a node that no endpoint provides.
func (g *Graph) Unresolved(name string) []string {
	return clone(g.unresolved[name])
}

// StartNodes returns nodes with in-degree 0 and no unresolved requirements.
func (g *Graph) StartNodes() []string {
	var starts []string
	for _, name := range g.nodes {
		if g.InDegree(name) == 0 && len(g.unresolved[name]) == 0 {
			starts = append(starts, name)
		}
	}
	return starts
}

// Edges returns every producer -> consumer edge, one per required variable.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Cycle is a detected circular dependency.
type Cycle struct {
	Path []string
}

func (c Cycle) String() string {
	if len(c.Path) == 0 {
		return "empty cycle"
	}
	return strings.Join(append(clone(c.Path), c.Path[0]), " -> ")
}

// DetectCycles returns the cycles found by a depth-first walk over successor edges.
func (g *Graph) DetectCycles() []Cycle {
	var cycles []Cycle
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string

	var dfs func(name string) bool
	dfs = func(name string) bool {
		visited[name] = true
		onStack[name] = true
		stack = append(stack, name)

		for _, next := range g.successors[name] {
			if !visited[next] {
				if dfs(next) {
					return true
				}
			} else if onStack[next] {
				for i, n := range stack {
					if n == next {
						cycles = append(cycles, Cycle{Path: clone(stack[i:])})
						break
					}
				}
				return true
			}
		}

		stack = stack[:len(stack)-1]
		onStack[name] = false
		return false
	}

	for _, name := range g.nodes {
		if !visited[name] {
			stack = stack[:0]
			onStack = make(map[string]bool)
			dfs(name)
		}
	}
	return cycles
}

func clone(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
