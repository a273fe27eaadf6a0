package graph

import "slices"

// New returns a graph holding only root.
func New(root Key) *Graph {
	return &Graph{
		Root:  root,
		Nodes: map[Key]*Node{root: {Key: root, IsRoot: true}},
	}
}

// Add inserts key if it is not in the graph yet and returns its node. A nil
// source marks the dependency as already present locally.
func (g *Graph) Add(key Key, src *Source) *Node {
	if n, ok := g.Nodes[key]; ok {
		return n
	}
	n := &Node{Key: key, Source: src, Present: src == nil}
	g.Nodes[key] = n
	return n
}

// AddEdge records that from depends on to. Both are added if missing, as
// present dependencies. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to Key) {
	f := g.Add(from, nil)
	t := g.Add(to, nil)
	if slices.Contains(f.Dependencies, to) {
		return
	}
	f.Dependencies = append(f.Dependencies, to)
	t.Dependents = append(t.Dependents, from)
}
