package graph

import (
	"fmt"
	"slices"
	"strings"
)

// Get returns the node for key, or nil if not found.
func (g *Graph) Get(key Key) *Node {
	return g.Nodes[key]
}

// DirectDeps returns the direct dependencies of key.
func (g *Graph) DirectDeps(key Key) []Key {
	if node := g.Nodes[key]; node != nil {
		return node.Dependencies
	}
	return nil
}

// TransitiveDeps returns all transitive dependencies of key in
// breadth-first order.
func (g *Graph) TransitiveDeps(key Key) []Key {
	var result []Key
	visited := map[Key]bool{key: true}
	queue := []Key{key}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node := g.Nodes[current]
		if node == nil {
			continue
		}
		for _, dep := range node.Dependencies {
			if !visited[dep] {
				visited[dep] = true
				result = append(result, dep)
				queue = append(queue, dep)
			}
		}
	}
	return result
}

// Path finds the shortest dependency path from one node to another.
// Returns nil if no path exists.
func (g *Graph) Path(from, to Key) []Key {
	if from == to {
		return []Key{from}
	}
	prev := map[Key]Key{}
	visited := map[Key]bool{from: true}
	queue := []Key{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node := g.Nodes[current]
		if node == nil {
			continue
		}
		for _, dep := range node.Dependencies {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			prev[dep] = current
			if dep == to {
				path := []Key{to}
				for k := to; k != from; {
					k = prev[k]
					path = append(path, k)
				}
				slices.Reverse(path)
				return path
			}
			queue = append(queue, dep)
		}
	}
	return nil
}

// CycleError reports a dependency cycle, which makes a build order
// impossible.
type CycleError struct {
	Cycle []Key
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, k := range e.Cycle {
		parts[i] = k.String()
	}
	return "dependency cycle: " + strings.Join(parts, " -> ")
}

// BuildOrder returns the nodes that need building, every dependency before
// its dependents. Ties are broken by declaration order from the root.
func (g *Graph) BuildOrder() ([]Key, error) {
	if cycles := g.FindCycles(); len(cycles) > 0 {
		return nil, &CycleError{Cycle: cycles[0]}
	}
	var order []Key
	done := make(map[Key]bool)
	var visit func(key Key)
	visit = func(key Key) {
		if done[key] {
			return
		}
		done[key] = true
		node := g.Nodes[key]
		if node == nil {
			return
		}
		for _, dep := range node.Dependencies {
			visit(dep)
		}
		if !node.IsRoot && !node.Present {
			order = append(order, key)
		}
	}
	visit(g.Root)
	return order, nil
}

// Stats returns statistics about the graph.
func (g *Graph) Stats() Stats {
	stats := Stats{
		Total:  len(g.Nodes),
		Direct: len(g.DirectDeps(g.Root)),
		Cyclic: g.HasCycles(),
	}
	stats.Transitive = max(len(g.TransitiveDeps(g.Root))-stats.Direct, 0)
	for _, node := range g.Nodes {
		if !node.IsRoot && !node.Present {
			stats.Missing++
		}
	}
	stats.MaxDepth = g.maxDepth()
	return stats
}

func (g *Graph) maxDepth() int {
	depths := make(map[Key]int)
	onPath := make(map[Key]bool)
	var deepest int

	var dfs func(key Key, depth int)
	dfs = func(key Key, depth int) {
		if onPath[key] {
			return
		}
		if d, ok := depths[key]; ok && d >= depth {
			return
		}
		depths[key] = depth
		deepest = max(deepest, depth)
		node := g.Nodes[key]
		if node == nil {
			return
		}
		onPath[key] = true
		for _, dep := range node.Dependencies {
			dfs(dep, depth+1)
		}
		delete(onPath, key)
	}
	dfs(g.Root, 0)
	return deepest
}

// HasCycles returns true if the graph contains cycles.
func (g *Graph) HasCycles() bool {
	return len(g.FindCycles()) > 0
}

// FindCycles returns the cycles reachable in the graph, each starting and
// ending at the node that closes it. Nodes are visited in sorted order so
// the result is deterministic.
func (g *Graph) FindCycles() [][]Key {
	var cycles [][]Key
	visited := make(map[Key]bool)
	onStack := make(map[Key]bool)
	var path []Key

	var walk func(key Key)
	walk = func(key Key) {
		visited[key] = true
		onStack[key] = true
		path = append(path, key)
		if node := g.Nodes[key]; node != nil {
			for _, dep := range node.Dependencies {
				if !visited[dep] {
					walk(dep)
				} else if onStack[dep] {
					start := slices.Index(path, dep)
					cycle := slices.Clone(path[start:])
					cycles = append(cycles, append(cycle, dep))
				}
			}
		}
		path = path[:len(path)-1]
		onStack[key] = false
	}

	for _, key := range g.sortedKeys() {
		if !visited[key] {
			walk(key)
		}
	}
	return cycles
}

func (g *Graph) sortedKeys() []Key {
	keys := make([]Key, 0, len(g.Nodes))
	for k := range g.Nodes {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}

// Explain describes why key is in the graph: the chain from the root to it.
func (g *Graph) Explain(key Key) (string, error) {
	path := g.Path(g.Root, key)
	if path == nil {
		return "", fmt.Errorf("%s is not reachable from %s", key, g.Root)
	}
	parts := make([]string, len(path))
	for i, k := range path {
		parts[i] = k.String()
	}
	return strings.Join(parts, " -> "), nil
}
