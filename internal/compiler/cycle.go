package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/contentql/internal/model"
)

// Cycle is a set of views whose definitions select from each other. Such
// views can never be resolved.
type Cycle struct {
	Path    []string `json:"path"` // e.g. ["a", "b", "a"]
	Message string   `json:"message"`
}

// dependencyGraph maps a view name to the views its definition selects from.
type dependencyGraph map[string][]string

// FindViewCycles reports every cycle in the view dependency graph built
// from the parsed view definitions. Sources that are not views are
// ignored. A view selecting from itself is a cycle of one.
//
// The algorithm:
//  1. Build view -> source view edges from each definition's FROM clause
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
//
// Results are ordered by the first view name of each path.
func FindViewCycles(views map[string]model.QueryCommand) []Cycle {
	graph := buildDependencyGraph(views)

	var cycles []Cycle
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].Path[0] < cycles[j].Path[0]
	})
	return cycles
}

func buildDependencyGraph(views map[string]model.QueryCommand) dependencyGraph {
	graph := make(dependencyGraph, len(views))
	for name, cmd := range views {
		graph[name] = []string{}
		seen := make(map[string]bool)
		for _, source := range commandSources(cmd) {
			if _, isView := views[source]; isView && !seen[source] {
				seen[source] = true
				graph[name] = append(graph[name], source)
			}
		}
		sort.Strings(graph[name])
	}
	return graph
}

// commandSources returns the table and view names a command selects from.
func commandSources(cmd model.QueryCommand) []string {
	switch c := cmd.(type) {
	case model.Query:
		var names []string
		for _, sel := range model.Selectors(c.Source) {
			names = append(names, sel.Name)
		}
		return names
	case model.SetQuery:
		return append(commandSources(c.Left), commandSources(c.Right)...)
	default:
		return nil
	}
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in name order so the output is deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		counter = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is the root of an SCC: pop it
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToCycle(scc []string, graph dependencyGraph) Cycle {
	sort.Strings(scc)
	if len(scc) == 1 {
		name := scc[0]
		return Cycle{
			Path:    []string{name, name},
			Message: fmt.Sprintf("view %q selects from itself", name),
		}
	}
	path := cyclePath(scc, graph)
	return Cycle{
		Path:    path,
		Message: fmt.Sprintf("views select from each other: %s", strings.Join(path, " -> ")),
	}
}

// cyclePath walks the SCC from its smallest member, following edges to
// unvisited members until it returns to the start.
func cyclePath(scc []string, graph dependencyGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
