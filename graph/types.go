package graph

import (
	"github.com/albertocavalcante/go-voom/label"
)

// Key identifies one version of one dependency.
type Key struct {
	Coordinate label.Coordinate
	Version    string
}

// String returns "group/name@version".
func (k Key) String() string {
	if k.Version == "" {
		return k.Coordinate.String()
	}
	return k.Coordinate.String() + "@" + k.Version
}

// Graph is a dependency graph rooted at one project.
type Graph struct {
	// Root is the project the graph was built for.
	Root Key

	// Nodes contains every dependency in the graph, root included.
	Nodes map[Key]*Node
}

// Node is one dependency in the graph.
type Node struct {
	Key Key

	// Dependencies are the direct dependencies, in declaration order.
	Dependencies []Key

	// Dependents are the nodes that directly depend on this one.
	Dependents []Key

	// Source says where the dependency is built from. Nil for the root and
	// for dependencies that need no build.
	Source *Source

	// Present is true when the artifact is already installed locally.
	Present bool

	IsRoot bool
}

// Source locates the revision a dependency is built from.
type Source struct {
	Repository string `json:"repository" yaml:"repository"`
	Branch     string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	SHA        string `json:"sha" yaml:"sha"`
}

// Stats summarizes a graph.
type Stats struct {
	// Total is the number of nodes, root included.
	Total int `json:"total" yaml:"total"`

	// Direct is the number of direct dependencies of the root.
	Direct int `json:"direct" yaml:"direct"`

	// Transitive is the number of dependencies reached only indirectly.
	Transitive int `json:"transitive" yaml:"transitive"`

	// Missing is the number of dependencies that need building.
	Missing int `json:"missing" yaml:"missing"`

	// MaxDepth is the length of the longest dependency chain from the root.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// Cyclic is set when some dependency depends on itself.
	Cyclic bool `json:"cyclic" yaml:"cyclic"`
}
