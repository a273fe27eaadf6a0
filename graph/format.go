package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const separatorWidth = 60 // Width of separator lines in text output

// Entry is one node in flat list output.
type Entry struct {
	Coordinate   string   `json:"coordinate" yaml:"coordinate"`
	Version      string   `json:"version" yaml:"version"`
	Present      bool     `json:"present" yaml:"present"`
	Source       *Source  `json:"source,omitempty" yaml:"source,omitempty"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	RequiredBy   []string `json:"required_by,omitempty" yaml:"required_by,omitempty"`
}

// ToList returns every node except the root, sorted by key.
func (g *Graph) ToList() []Entry {
	var entries []Entry
	for _, key := range g.sortedKeys() {
		node := g.Nodes[key]
		if node.IsRoot {
			continue
		}
		entries = append(entries, Entry{
			Coordinate:   key.Coordinate.String(),
			Version:      key.Version,
			Present:      node.Present,
			Source:       node.Source,
			Dependencies: keyStrings(node.Dependencies),
			RequiredBy:   keyStrings(node.Dependents),
		})
	}
	return entries
}

// jsonGraph is the JSON document written by ToJSON.
type jsonGraph struct {
	Root       string   `json:"root"`
	BuildOrder []string `json:"build_order"`
	Nodes      []Entry  `json:"nodes"`
}

// ToJSON outputs the root, the build order and every node.
func (g *Graph) ToJSON() ([]byte, error) {
	order, err := g.BuildOrder()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(jsonGraph{
		Root:       g.Root.String(),
		BuildOrder: keyStrings(order),
		Nodes:      g.ToList(),
	}, "", "  ")
}

// ToDOT outputs the graph in Graphviz DOT format. Dependencies that need a
// build are drawn bold.
func (g *Graph) ToDOT() string {
	var buf bytes.Buffer
	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box];\n\n")

	keys := g.sortedKeys()
	for _, key := range keys {
		node := g.Nodes[key]
		attrs := fmt.Sprintf(`label="%s\n%s"`, key.Coordinate, key.Version) //nolint:gocritic // DOT format requires this quote style
		switch {
		case node.IsRoot:
			attrs += ", style=filled"
		case !node.Present:
			attrs += ", style=bold"
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", key.String(), attrs)
	}
	buf.WriteString("\n")
	for _, key := range keys {
		for _, dep := range g.Nodes[key].Dependencies {
			fmt.Fprintf(&buf, "  %q -> %q;\n", key.String(), dep.String())
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

// ToText outputs a human-readable tree with a summary.
func (g *Graph) ToText() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Dependency Graph (root: %s)\n", g.Root)
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	stats := g.Stats()
	fmt.Fprintf(&buf, "Total dependencies: %d\n", stats.Total-1)
	fmt.Fprintf(&buf, "Direct dependencies: %d\n", stats.Direct)
	fmt.Fprintf(&buf, "Transitive dependencies: %d\n", stats.Transitive)
	fmt.Fprintf(&buf, "To build: %d\n", stats.Missing)
	fmt.Fprintf(&buf, "Max depth: %d\n\n", stats.MaxDepth)

	buf.WriteString("Dependency Tree:\n")
	g.printTree(&buf, g.Root, "", true, make(map[Key]bool))
	return buf.String()
}

func (g *Graph) printTree(buf *bytes.Buffer, key Key, prefix string, isLast bool, visited map[Key]bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	if prefix == "" && key == g.Root {
		buf.WriteString(key.String())
	} else {
		buf.WriteString(prefix + connector + key.String())
	}

	node := g.Nodes[key]
	if node != nil && !node.IsRoot && !node.Present {
		buf.WriteString(" (build)")
	}
	if visited[key] {
		buf.WriteString(" (circular)\n")
		return
	}
	buf.WriteString("\n")
	if node == nil {
		return
	}

	visited[key] = true
	defer func() { visited[key] = false }()
	for i, dep := range node.Dependencies {
		childPrefix := prefix
		if key != g.Root {
			if isLast {
				childPrefix += "    "
			} else {
				childPrefix += "│   "
			}
		}
		g.printTree(buf, dep, childPrefix, i == len(node.Dependencies)-1, visited)
	}
}

func keyStrings(keys []Key) []string {
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
