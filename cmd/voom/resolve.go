package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/albertocavalcante/go-voom"
	"github.com/albertocavalcante/go-voom/label"
)

// filterFlags are the resolution filters shared by several commands.
type filterFlags struct {
	prefix     string
	repository string
	branch     string
	path       string
}

func (f *filterFlags) register(fs *pflag.FlagSet, withPrefix bool) {
	if withPrefix {
		fs.StringVar(&f.prefix, "version-prefix", "", "only versions starting with this prefix, e.g. 1.2")
		fs.StringVar(&f.path, "path", "", "only the descriptor in this repository directory")
	}
	fs.StringVar(&f.repository, "repo", "", "only this repository (name or origin URL)")
	fs.StringVar(&f.branch, "branch", "", "only this branch (e.g. main or origin/main)")
}

func (f *filterFlags) request(coord label.Coordinate) voom.Request {
	return voom.Request{
		Coordinate:    coord,
		VersionPrefix: f.prefix,
		Repository:    f.repository,
		Branch:        f.branch,
		Path:          f.path,
	}
}

func newResolveCmd(a *app) *cobra.Command {
	var (
		filters filterFlags
		long    bool
		all     bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <group/name>",
		Short: "Resolve the newest qualified version of a dependency",
		Long: `Resolve the newest commit at which the dependency still has the matching
version and print it as a qualified version. Run retag first so the tags are
current. Exits with an error when several branches or repositories match,
unless --all is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, err := label.ParseCoordinate(args[0])
			if err != nil {
				return err
			}
			r, err := a.resolver()
			if err != nil {
				return err
			}
			res, err := r.Resolve(cmd.Context(), filters.request(coord))
			if err != nil {
				return err
			}
			candidates := res.Candidates
			if !all {
				v, err := res.Unique()
				if err != nil {
					var amb *voom.AmbiguousResolutionError
					if errors.As(err, &amb) {
						return fmt.Errorf("%w\nnarrow with --repo, --branch or --path, or pass --all", err)
					}
					return err
				}
				candidates = []voom.ResolvedVersion{v}
			}
			return a.render(resolvedOutput(candidates, long), func(w io.Writer) error {
				for _, c := range candidates {
					if all {
						if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Qualified(long), c.Repository, c.Branch, pathOrDot(c.Path)); err != nil {
							return err
						}
						continue
					}
					if _, err := fmt.Fprintln(w, c.Qualified(long)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	filters.register(cmd.Flags(), true)
	cmd.Flags().BoolVar(&long, "long", false, "use the full commit sha")
	cmd.Flags().BoolVar(&all, "all", false, "print every candidate instead of requiring a single one")
	return cmd
}

type resolvedEntry struct {
	voom.ResolvedVersion `yaml:",inline"`
	Qualified            string `json:"qualified" yaml:"qualified"`
}

func resolvedOutput(vs []voom.ResolvedVersion, long bool) []resolvedEntry {
	out := make([]resolvedEntry, 0, len(vs))
	for _, v := range vs {
		out = append(out, resolvedEntry{ResolvedVersion: v, Qualified: v.Qualified(long)})
	}
	return out
}

func pathOrDot(p string) string {
	if p == "" {
		return "."
	}
	return p
}
