// Package graph holds the dependency graph behind build-deps: which
// dependencies a project needs, where each one is built from, and in which
// order to build them.
//
// # Building a Graph
//
//	g := graph.New(rootKey)
//	g.Add(depKey, &graph.Source{Repository: "core", SHA: sha})
//	g.AddEdge(rootKey, depKey)
//
// # Querying the Graph
//
//	order, err := g.BuildOrder() // dependencies before dependents
//	path := g.Path(rootKey, depKey)
//
// # Output Formats
//
//	text := g.ToText()
//	dot := g.ToDOT()
//	jsonBytes, _ := g.ToJSON()
//	entries := g.ToList() // for YAML or tabular output
package graph
