package main

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-voom/box"
	"github.com/albertocavalcante/go-voom/label"
	"github.com/albertocavalcante/go-voom/vcs"
)

func newBoxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "box",
		Short: "Manage checkouts of resolved dependencies in the box directory",
		Long: `The box directory (box_dir) holds one link per dependency, pointing into a
worktree checked out at the resolved commit. Build tools that follow local
checkouts, such as Leiningen's checkouts directory, can use it directly.`,
	}
	cmd.AddCommand(newBoxAddCmd(a), newBoxRemoveCmd(a), newBoxListCmd(a))
	return cmd
}

func (a *app) openBox() (*box.Box, error) {
	return box.Open(a.v.GetString("box_dir"), a.logger.With("component", "box"))
}

func (a *app) worktrees(repository string) *vcs.Repo {
	return vcs.Open(filepath.Join(a.reposDir(), repository), a.runner())
}

func newBoxAddCmd(a *app) *cobra.Command {
	var (
		filters filterFlags
		name    string
	)
	cmd := &cobra.Command{
		Use:   "add <group/name>",
		Short: "Resolve a dependency and link a checkout of it into the box",
		Args:  cobra.ExactArgs(1),
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
			v, err := res.Unique()
			if err != nil {
				return err
			}
			b, err := a.openBox()
			if err != nil {
				return err
			}
			e, err := b.Add(cmd.Context(), a.worktrees(v.Repository), box.Entry{
				Name:       name,
				Coordinate: coord.String(),
				Version:    v.Qualified(false),
				Repository: v.Repository,
				Branch:     v.Branch,
				Path:       v.Path,
				SHA:        v.SHA,
			})
			if err != nil {
				return err
			}
			return a.render(e, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s -> %s %s\n", e.Name, e.Coordinate, e.Version)
				return err
			})
		},
	}
	filters.register(cmd.Flags(), true)
	cmd.Flags().StringVar(&name, "name", "", "link name (default: the dependency's name)")
	return cmd
}

func newBoxRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a dependency from the box",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBox()
			if err != nil {
				return err
			}
			e, ok, err := b.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: %w", args[0], box.ErrNotFound)
			}
			return b.Remove(cmd.Context(), a.worktrees(e.Repository), e.Name)
		},
	}
}

func newBoxListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the dependencies in the box",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBox()
			if err != nil {
				return err
			}
			entries, err := b.List()
			if err != nil {
				return err
			}
			return a.render(entries, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, e := range entries {
					state := ""
					if !e.Linked {
						state = "(link missing)"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\n", e.Name, e.Coordinate, e.Version, e.Repository, e.Branch, state)
				}
				return tw.Flush()
			})
		},
	}
}
