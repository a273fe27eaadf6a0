package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-voom"
)

func newFreshenCmd(a *app) *cobra.Command {
	var (
		filters    filterFlags
		dryRun     bool
		anyVersion bool
		long       bool
	)
	cmd := &cobra.Command{
		Use:   "freshen [descriptor]",
		Short: "Bump qualified dependency versions in a build descriptor",
		Long: `Resolve every dependency whose version is qualified with a commit and
rewrite the descriptor with the newest one. A dependency stays on its base
version unless --any-version is given, and is never moved to an older commit.
The descriptor defaults to the one in the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := descriptorArg(args)
			if err != nil {
				return err
			}
			r, err := a.resolver(voom.WithAnyVersion(anyVersion), voom.WithLongSHA(long))
			if err != nil {
				return err
			}
			report, err := r.Freshen(cmd.Context(), path, voom.FreshenOptions{
				Repository: filters.repository,
				Branch:     filters.branch,
				DryRun:     dryRun,
			})
			if err != nil {
				return err
			}
			if err := a.render(report, func(w io.Writer) error { return printFreshen(w, report, dryRun) }); err != nil {
				return err
			}
			if err := report.Err(); err != nil {
				return &exitError{code: 2, err: fmt.Errorf("some dependencies were not resolved:\n%w", err)}
			}
			return nil
		},
	}
	filters.register(cmd.Flags(), false)
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print the changes without writing the descriptor")
	cmd.Flags().BoolVar(&anyVersion, "any-version", false, "allow moving to a different base version")
	cmd.Flags().BoolVar(&long, "long", false, "write full commit shas")
	return cmd
}

func printFreshen(w io.Writer, report *voom.FreshenReport, dryRun bool) error {
	for _, o := range report.Outcomes {
		var err error
		switch o.Status {
		case voom.FreshenUpdated:
			_, err = fmt.Fprintf(w, "%s %s -> %s\n", o.Dependency.Coordinate, o.Dependency.Version, o.NewVersion)
		case voom.FreshenSkipped:
			if o.Err == nil && o.Reason == "version is not qualified" {
				continue
			}
			_, err = fmt.Fprintf(w, "%s %s: skipped, %s\n", o.Dependency.Coordinate, o.Dependency.Version, o.Reason)
		}
		if err != nil {
			return err
		}
	}
	switch {
	case len(report.Edits) == 0:
		_, err := fmt.Fprintf(w, "%s is up to date\n", report.Path)
		return err
	case dryRun:
		_, err := fmt.Fprintf(w, "would update %d dependencies in %s\n", len(report.Edits), report.Path)
		return err
	}
	_, err := fmt.Fprintf(w, "updated %d dependencies in %s\n", len(report.Edits), report.Path)
	return err
}

// descriptorArg returns the descriptor named on the command line, or the
// one in the working directory.
func descriptorArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	rel, err := manifestIn(".", "")
	if err != nil {
		return "", err
	}
	return filepath.FromSlash(rel), nil
}
