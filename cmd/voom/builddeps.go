package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-voom"
	"github.com/albertocavalcante/go-voom/graph"
	"github.com/albertocavalcante/go-voom/label"
)

type buildStep struct {
	Coordinate string        `json:"coordinate" yaml:"coordinate"`
	Version    string        `json:"version" yaml:"version"`
	Source     *graph.Source `json:"source" yaml:"source"`
}

func newBuildDepsCmd(a *app) *cobra.Command {
	var branch string
	cmd := &cobra.Command{
		Use:   "build-deps [descriptor]",
		Short: "List the voom-built dependencies that must be built locally, in order",
		Long: `Walk the qualified dependencies of a descriptor transitively, skip those
already installed under m2_dir, and print the rest in build order with the
repository and commit each one is built from.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := descriptorArg(args)
			if err != nil {
				return err
			}
			r, err := a.resolver()
			if err != nil {
				return err
			}
			g, err := r.BuildDeps(cmd.Context(), path, voom.BuildDepsOptions{
				Branch:      branch,
				ArtifactDir: a.v.GetString("m2_dir"),
			})
			if err != nil {
				return err
			}
			order, err := g.BuildOrder()
			if err != nil {
				return err
			}
			steps := make([]buildStep, 0, len(order))
			for _, k := range order {
				steps = append(steps, buildStep{Coordinate: k.Coordinate.String(), Version: k.Version, Source: g.Get(k).Source})
			}
			return a.render(steps, func(w io.Writer) error {
				if len(steps) == 0 {
					_, err := fmt.Fprintln(w, "nothing to build")
					return err
				}
				for i, s := range steps {
					src := "unknown source"
					if s.Source != nil {
						src = fmt.Sprintf("%s %s:%s@%s", s.Source.Repository, s.Source.Branch, pathOrDot(s.Source.Path), s.Source.SHA)
					}
					if _, err := fmt.Fprintf(w, "%d. %s %s\t%s\n", i+1, s.Coordinate, s.Version, src); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "only look up sources on this branch")
	return cmd
}

func newDepsCmd(a *app) *cobra.Command {
	deps := &cobra.Command{
		Use:   "deps",
		Short: "Inspect the dependency graph of a descriptor",
	}

	var (
		format string
		stats  bool
	)
	graphCmd := &cobra.Command{
		Use:   "graph [descriptor]",
		Short: "Print the qualified dependency graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := descriptorArg(args)
			if err != nil {
				return err
			}
			r, err := a.resolver()
			if err != nil {
				return err
			}
			g, err := r.BuildDeps(cmd.Context(), path, voom.BuildDepsOptions{ArtifactDir: a.v.GetString("m2_dir")})
			if err != nil {
				return err
			}
			if stats {
				st := g.Stats()
				return a.render(st, func(w io.Writer) error {
					cycles := "none"
					if st.Cyclic {
						cycles = "found"
					}
					_, err := fmt.Fprintf(w, "%d direct, %d transitive, %d to build\nlongest chain: %d\ncycles: %s\n",
						st.Direct, st.Transitive, st.Missing, st.MaxDepth, cycles)
					return err
				})
			}
			switch format {
			case "text":
				_, err = fmt.Fprint(a.out, g.ToText())
			case "dot":
				_, err = fmt.Fprint(a.out, g.ToDOT())
			case "json":
				var data []byte
				if data, err = g.ToJSON(); err == nil {
					_, err = fmt.Fprintln(a.out, string(data))
				}
			default:
				err = fmt.Errorf("unknown graph format %q (want text, dot or json)", format)
			}
			return err
		},
	}
	graphCmd.Flags().StringVar(&format, "format", "text", "text | dot | json")
	graphCmd.Flags().BoolVar(&stats, "stats", false, "print a summary instead of the graph")

	var explainFor string
	explainCmd := &cobra.Command{
		Use:   "why <group/name> [descriptor]",
		Short: "Show the dependency chain that pulls in a dependency",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, err := label.ParseCoordinate(args[0])
			if err != nil {
				return err
			}
			path, err := descriptorArg(args[1:])
			if err != nil {
				return err
			}
			r, err := a.resolver()
			if err != nil {
				return err
			}
			g, err := r.BuildDeps(cmd.Context(), path, voom.BuildDepsOptions{})
			if err != nil {
				return err
			}
			found := false
			for _, e := range g.ToList() {
				if e.Coordinate != coord.String() || (explainFor != "" && e.Version != explainFor) {
					continue
				}
				s, err := g.Explain(graph.Key{Coordinate: coord, Version: e.Version})
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(a.out, s); err != nil {
					return err
				}
				found = true
			}
			if found {
				return nil
			}
			return fmt.Errorf("%s is not a dependency of %s", args[0], path)
		},
	}
	explainCmd.Flags().StringVar(&explainFor, "version", "", "only this version")

	deps.AddCommand(graphCmd, explainCmd)
	return deps
}
