// Package depgraph provides the dependency ordering shared by the
// forecast rule engine and the KPI manager: given named computable
// nodes and the names each one reads, it produces a deterministic
// topological evaluation order.
package depgraph

import (
	"fmt"
	"strings"
)

// CircularDependencyError reports a dependency cycle among computable
// nodes, naming the members of the cycle.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Cycle, " -> "))
}

// Graph is a dependency graph over named nodes. Dependencies naming
// nodes never added to the graph are treated as externally available
// and impose no ordering constraint.
type Graph struct {
	order []string
	deps  map[string][]string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{deps: make(map[string][]string)}
}

// AddNode registers a node and the names it reads. Re-adding a node
// replaces its dependency set.
func (g *Graph) AddNode(name string, deps ...string) {
	if _, exists := g.deps[name]; !exists {
		g.order = append(g.order, name)
	}
	g.deps[name] = append([]string(nil), deps...)
}

// Has reports whether a node was registered.
func (g *Graph) Has(name string) bool {
	_, ok := g.deps[name]
	return ok
}

// Order returns a total order over the registered nodes in which every
// node follows all nodes it depends on. Nodes with no constraint
// between them keep registration order, so the result is identical
// across runs with identical registration. A cycle fails with
// CircularDependencyError.
func (g *Graph) Order() ([]string, error) {
	indegree := make(map[string]int, len(g.order))
	dependents := make(map[string][]string, len(g.order))
	for _, name := range g.order {
		indegree[name] = 0
	}
	for _, name := range g.order {
		for _, dep := range g.deps[name] {
			if _, internal := indegree[dep]; !internal {
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	ordered := make([]string, 0, len(g.order))
	done := make(map[string]bool, len(g.order))
	for len(ordered) < len(g.order) {
		// Pick the first-registered node whose dependencies are all done;
		// scanning in registration order keeps ties stable.
		progressed := false
		for _, name := range g.order {
			if done[name] || indegree[name] != 0 {
				continue
			}
			done[name] = true
			ordered = append(ordered, name)
			for _, dependent := range dependents[name] {
				indegree[dependent]--
			}
			progressed = true
			break
		}
		if !progressed {
			return nil, &CircularDependencyError{Cycle: g.findCycle(done)}
		}
	}
	return ordered, nil
}

// findCycle walks the unresolved subgraph to name one concrete cycle.
func (g *Graph) findCycle(done map[string]bool) []string {
	state := make(map[string]int) // 0 unvisited, 1 on stack, 2 finished
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		state[name] = 1
		stack = append(stack, name)
		for _, dep := range g.deps[name] {
			if _, internal := g.deps[dep]; !internal || done[dep] {
				continue
			}
			switch state[dep] {
			case 0:
				if visit(dep) {
					return true
				}
			case 1:
				for i, n := range stack {
					if n == dep {
						cycle = append([]string(nil), stack[i:]...)
						return true
					}
				}
			}
		}
		state[name] = 2
		stack = stack[:len(stack)-1]
		return false
	}

	for _, name := range g.order {
		if !done[name] && state[name] == 0 {
			if visit(name) {
				return cycle
			}
		}
	}
	// Unreachable for a graph Order() failed on, but never return empty.
	return g.order
}
